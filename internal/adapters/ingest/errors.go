package ingest

import "errors"

var (
	// ErrUnsupportedFormat is returned for a file extension with no reader.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrMissingColumn is returned when no header row names identity, prior and current columns.
	ErrMissingColumn = errors.New("missing required column")
	// ErrEmptySheet is returned for a workbook without rows.
	ErrEmptySheet = errors.New("worksheet is empty")
)

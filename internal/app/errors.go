package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrUnknownMetric   = errors.New("unknown metric")
	ErrDuplicateUpload = errors.New("duplicate upload")
	ErrBusy            = errors.New("upload queue unavailable")
)

package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/okian/tom/internal/adapters/ingest"
	service "github.com/okian/tom/internal/app"
	"github.com/okian/tom/internal/domain/model"
)

// UploadFormField is the multipart field carrying a spreadsheet.
const UploadFormField = "file"

// IdempotencyHeader lets a client name its upload; re-sending the same key
// is acknowledged without rescoring.
const IdempotencyHeader = "Idempotency-Key"

// UploadDependencies defines the interface for upload processing dependencies.
type UploadDependencies interface {
	Submit(ctx context.Context, u model.Upload) (string, error)
}

// UploadsHandler handles upload requests.
type UploadsHandler struct {
	deps     UploadDependencies
	maxBytes int64
}

// NewUploadsHandler creates a new uploads handler. maxBytes <= 0 selects the default.
func NewUploadsHandler(deps UploadDependencies, maxBytes int64) *UploadsHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &UploadsHandler{deps: deps, maxBytes: maxBytes}
}

type uploadResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	UploadID  string `json:"upload_id"`
	Metric    string `json:"metric"`
	Rows      int    `json:"rows"`
	Skipped   int    `json:"skipped"`
}

// HandlePostUpload handles POST /uploads/{metric}. The body is either a JSON
// array of rows or a multipart form with a spreadsheet under "file".
func (h *UploadsHandler) HandlePostUpload(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_upload"

	kind, err := metricFromPath(r)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	res, source, err := h.parse(r)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if len(res.Records) == 0 {
		writeServiceError(w, op, ErrNoRows)
		return
	}

	id, err := h.deps.Submit(r.Context(), model.Upload{
		ID:      strings.TrimSpace(r.Header.Get(IdempotencyHeader)),
		Kind:    kind,
		Source:  source,
		Records: res.Records,
	})
	resp := uploadResponse{
		UploadID: id,
		Metric:   string(kind),
		Rows:     len(res.Records),
		Skipped:  res.SkippedTotal(),
	}
	switch {
	case errors.Is(err, service.ErrDuplicateUpload):
		resp.Status, resp.Duplicate = "duplicate", true
		writeJSON(w, http.StatusOK, resp)
	case err != nil:
		writeServiceError(w, op, err)
	default:
		resp.Status = "accepted"
		writeJSON(w, http.StatusAccepted, resp)
	}
}

func (h *UploadsHandler) parse(r *http.Request) (*ingest.Result, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, "", err
		}
		res, err := ingest.ParseJSON(data)
		if err != nil {
			return nil, "", errors.Join(ErrBadRequest, err)
		}
		return res, "json", nil
	}

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", err
		}
		return nil, "", errors.Join(ErrBadRequest, err)
	}
	file, header, err := r.FormFile(UploadFormField)
	if err != nil {
		return nil, "", errors.Join(ErrBadRequest, err)
	}
	defer func() { _ = file.Close() }()

	res, err := ingest.Parse(file, header.Filename)
	if err != nil {
		return nil, "", errors.Join(ErrBadRequest, err)
	}
	return res, header.Filename, nil
}

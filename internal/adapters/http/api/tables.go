package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/tom/internal/adapters/repository"
	"github.com/okian/tom/internal/domain/model"
)

// TableDependencies defines the interface for table reads.
type TableDependencies interface {
	Table(ctx context.Context, kind model.MetricKind) (repository.StoredTable, error)
}

// TablesHandler handles scored table requests.
type TablesHandler struct {
	deps TableDependencies
}

// NewTablesHandler creates a new tables handler.
func NewTablesHandler(deps TableDependencies) *TablesHandler {
	return &TablesHandler{deps: deps}
}

type tableResponse struct {
	Metric               string               `json:"metric"`
	Direction            model.Direction      `json:"direction"`
	Benchmark            float64              `json:"benchmark"`
	IncludeInLeaderboard bool                 `json:"include_in_leaderboard"`
	UploadID             string               `json:"upload_id"`
	UpdatedAt            time.Time            `json:"updated_at"`
	Records              []model.MetricRecord `json:"records"`
}

// HandleGetTable handles GET /tables/{metric} requests.
func (h *TablesHandler) HandleGetTable(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_table"

	kind, err := metricFromPath(r)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	t, err := h.deps.Table(r.Context(), kind)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	records := t.Records
	if records == nil {
		records = []model.MetricRecord{}
	}
	writeJSON(w, http.StatusOK, tableResponse{
		Metric:               string(t.Kind),
		Direction:            t.Config.Direction,
		Benchmark:            t.Config.Benchmark,
		IncludeInLeaderboard: t.Config.IncludeInLeaderboard,
		UploadID:             t.UploadID,
		UpdatedAt:            t.UpdatedAt,
		Records:              records,
	})
}

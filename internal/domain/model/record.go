package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Status classifies a record or a leaderboard entry.
type Status string

// Status values.
const (
	StatusExcellent  Status = "Excellent"
	StatusImproved   Status = "Improved"
	StatusMaintained Status = "Maintained"
	StatusDecreased  Status = "Decreased"
)

// RawRecord is one employee's two-period measurement for a metric table.
type RawRecord struct {
	Identity     string  `json:"identity"`
	PriorValue   float64 `json:"prior_value"`
	CurrentValue float64 `json:"current_value"`
}

// MetricRecord is a RawRecord with its derived scoring fields.
// Change, FairScore and Status are produced together by the scoring engine.
type MetricRecord struct {
	RawRecord
	Change    float64 `json:"change"`
	FairScore float64 `json:"fair_score"`
	Status    Status  `json:"status"`
}

// Upload is a batch of raw rows for one metric table.
type Upload struct {
	ID      string      // idempotency key; assigned when empty
	Seq     uint64      // submission order, assigned on acceptance
	Kind    MetricKind  // target metric table
	Source  string      // file name or "json"
	Records []RawRecord // parsed rows
}

// Key returns a content-derived name-based UUID. It names uploads submitted
// without an ID.
func (u Upload) Key() string {
	var b strings.Builder
	b.WriteString(string(u.Kind))
	for _, r := range u.Records {
		fmt.Fprintf(&b, "|%s|%g|%g", r.Identity, r.PriorValue, r.CurrentValue)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(b.String())).String()
}

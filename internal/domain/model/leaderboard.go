package model

// Recognition is the label awarded by leaderboard position.
type Recognition string

// Recognition values, best first.
const (
	RecognitionChampion     Recognition = "Champion"
	RecognitionRunnerUp     Recognition = "Runner-Up"
	RecognitionThirdPlace   Recognition = "Third Place"
	RecognitionTopPerformer Recognition = "Top Performer"
	RecognitionStarPlayer   Recognition = "Star Player"
	RecognitionRisingStar   Recognition = "Rising Star"
	RecognitionTeamMember   Recognition = "Team Member"
)

// LeaderboardEntry is one employee's cross-metric rollup.
type LeaderboardEntry struct {
	Rank               int         `json:"rank"`
	CanonicalName      string      `json:"canonical_name"`
	TotalFairScore     float64     `json:"total_fair_score"`
	AverageFairScore   float64     `json:"average_fair_score"`
	AverageImprovement float64     `json:"average_improvement"`
	TableCount         int         `json:"table_count"`
	Recognition        Recognition `json:"recognition"`
	Status             Status      `json:"status"`
}

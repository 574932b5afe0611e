package model

// Tier buckets a scored lead for the dashboard.
type Tier string

const (
	TierHot          Tier = "hot"
	TierWarm         Tier = "warm"
	TierNurture      Tier = "nurture"
	TierDisqualified Tier = "disqualified"
)

// Requirement is a hard pass/fail gate. A lead failing any enabled
// requirement is disqualified regardless of its score.
type Requirement struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Signifier is a weighted scoring dimension.
type Signifier struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Weight  int    `json:"weight"`
	Enabled bool   `json:"enabled"`
}

// TierThresholds are minimum total scores per tier, evaluated hot -> warm ->
// nurture; below the nurture minimum a lead is disqualified.
type TierThresholds struct {
	Hot     int `json:"hot" yaml:"hot"`
	Warm    int `json:"warm" yaml:"warm"`
	Nurture int `json:"nurture" yaml:"nurture"`
}

// ScoringConfig is the org-level rubric the scoring tool was prompted with.
type ScoringConfig struct {
	Requirements []Requirement  `json:"requirements"`
	Signifiers   []Signifier    `json:"signifiers"`
	Thresholds   TierThresholds `json:"thresholds"`
}

type RequirementResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

type SignifierScore struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Weight        int    `json:"weight"`
	Score         int    `json:"score"` // 0-100
	WeightedScore int    `json:"weighted_score"`
	Reason        string `json:"reason,omitempty"`
}

// ScoringResult is the validated verdict derived from the tool's scoring
// artifact. TotalScore is always within [0,100] and Tier is disqualified
// whenever PassesRequirements is false.
type ScoringResult struct {
	PassesRequirements bool                `json:"passes_requirements"`
	RequirementResults []RequirementResult `json:"requirement_results"`
	ScoreBreakdown     []SignifierScore    `json:"score_breakdown"`
	TotalScore         int                 `json:"total_score"`
	Tier               Tier                `json:"tier"`
	Notes              string              `json:"notes,omitempty"`
}

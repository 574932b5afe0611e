// Package scoring turns the research tool's scoring artifact into a
// validated, tiered verdict. The artifact is untrusted tool output, so
// parsing is an explicit two-stage decode: generic JSON first, then
// field-by-field defaulting, since a missing field is expected, not exceptional.
package scoring

import (
	"encoding/json"
	"fmt"
	"math"

	"leadscout/internal/domain"
	"leadscout/internal/domain/model"
)

// artifact mirrors the JSON file the tool writes: the ScoringResult shape
// without the computed fields. Pointers mark fields whose absence must be
// distinguished from their zero value.
type artifact struct {
	RequirementResults []struct {
		ID     string `json:"id"`
		Passed *bool  `json:"passed"`
		Reason string `json:"reason"`
	} `json:"requirementResults"`
	ScoreBreakdown []struct {
		ID     string `json:"id"`
		Score  *int   `json:"score"`
		Reason string `json:"reason"`
	} `json:"scoreBreakdown"`
	TotalScore *int   `json:"totalScore"`
	Notes      string `json:"notes"`
}

// Parse decodes raw into a ScoringResult under cfg's rubric. An unparsable
// artifact is a hard failure of that job: the error wraps
// domain.ErrScoreParse and the caller preserves the raw bytes for
// inspection.
func Parse(raw []byte, cfg model.ScoringConfig) (*model.ScoringResult, error) {
	var art artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrScoreParse, err)
	}

	reqByID := map[string]int{}
	for i, rr := range art.RequirementResults {
		reqByID[rr.ID] = i
	}
	sigByID := map[string]int{}
	for i, ss := range art.ScoreBreakdown {
		sigByID[ss.ID] = i
	}

	res := &model.ScoringResult{
		PassesRequirements: true,
		Notes:              art.Notes,
	}

	for _, req := range cfg.Requirements {
		if !req.Enabled {
			continue
		}
		rr := model.RequirementResult{ID: req.ID, Name: req.Name}
		if i, ok := reqByID[req.ID]; ok && art.RequirementResults[i].Passed != nil {
			rr.Passed = *art.RequirementResults[i].Passed
			rr.Reason = art.RequirementResults[i].Reason
		} else {
			// Requirement the tool never judged: fail closed.
			rr.Passed = false
			rr.Reason = "not evaluated by scoring tool"
		}
		if !rr.Passed {
			res.PassesRequirements = false
		}
		res.RequirementResults = append(res.RequirementResults, rr)
	}

	weightSum := 0
	weightedSum := 0
	for _, sig := range cfg.Signifiers {
		if !sig.Enabled {
			continue
		}
		ss := model.SignifierScore{ID: sig.ID, Name: sig.Name, Weight: sig.Weight}
		if i, ok := sigByID[sig.ID]; ok && art.ScoreBreakdown[i].Score != nil {
			ss.Score = clamp(*art.ScoreBreakdown[i].Score)
			ss.Reason = art.ScoreBreakdown[i].Reason
		}
		ss.WeightedScore = ss.Score * sig.Weight
		weightSum += sig.Weight
		weightedSum += ss.WeightedScore
		res.ScoreBreakdown = append(res.ScoreBreakdown, ss)
	}

	if weightSum > 0 {
		res.TotalScore = int(math.Round(float64(weightedSum) / float64(weightSum)))
	}
	// Trust but verify: a tool-supplied total wins, clamped into range.
	if art.TotalScore != nil {
		res.TotalScore = clamp(*art.TotalScore)
	}

	res.Tier = assignTier(res, cfg.Thresholds)
	return res, nil
}

// assignTier picks the highest tier whose minimum the score meets. A failed
// requirement disqualifies regardless of score.
func assignTier(res *model.ScoringResult, t model.TierThresholds) model.Tier {
	if !res.PassesRequirements || res.TotalScore < t.Nurture {
		return model.TierDisqualified
	}
	switch {
	case res.TotalScore >= t.Hot:
		return model.TierHot
	case res.TotalScore >= t.Warm:
		return model.TierWarm
	default:
		return model.TierNurture
	}
}

// Validate checks that res covers every enabled requirement and signifier
// of cfg and that all scores are in range. It returns human-readable
// discrepancies for diagnostics; validation is advisory and never blocks
// persistence.
func Validate(res *model.ScoringResult, cfg model.ScoringConfig) []string {
	var problems []string

	covered := map[string]bool{}
	for _, rr := range res.RequirementResults {
		covered[rr.ID] = true
	}
	for _, req := range cfg.Requirements {
		if req.Enabled && !covered[req.ID] {
			problems = append(problems, fmt.Sprintf("requirement %q has no result", req.ID))
		}
	}

	scored := map[string]bool{}
	for _, ss := range res.ScoreBreakdown {
		scored[ss.ID] = true
		if ss.Score < 0 || ss.Score > 100 {
			problems = append(problems, fmt.Sprintf("signifier %q score %d out of range [0,100]", ss.ID, ss.Score))
		}
	}
	for _, sig := range cfg.Signifiers {
		if sig.Enabled && !scored[sig.ID] {
			problems = append(problems, fmt.Sprintf("signifier %q has no score", sig.ID))
		}
	}

	if res.TotalScore < 0 || res.TotalScore > 100 {
		problems = append(problems, fmt.Sprintf("total score %d out of range [0,100]", res.TotalScore))
	}
	if !res.PassesRequirements && res.Tier != model.TierDisqualified {
		problems = append(problems, "failed requirements but tier is not disqualified")
	}
	return problems
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

package scoring

import (
	"errors"
	"testing"

	"leadscout/internal/domain"
	"leadscout/internal/domain/model"
)

func testRubric() model.ScoringConfig {
	return applyThresholdDefaults(model.ScoringConfig{
		Requirements: []model.Requirement{
			{ID: "us-based", Name: "US based", Enabled: true},
			{ID: "ignored", Name: "Disabled requirement", Enabled: false},
		},
		Signifiers: []model.Signifier{
			{ID: "a", Name: "Signifier A", Weight: 5, Enabled: true},
			{ID: "b", Name: "Signifier B", Weight: 5, Enabled: true},
			{ID: "off", Name: "Disabled signifier", Weight: 100, Enabled: false},
		},
	})
}

func TestParseWeightedMean(t *testing.T) {
	raw := []byte(`{
		"requirementResults": [{"id":"us-based","passed":true,"reason":"HQ in Austin"}],
		"scoreBreakdown": [
			{"id":"a","score":80,"reason":"strong"},
			{"id":"b","score":40,"reason":"weak"}
		]
	}`)
	res, err := Parse(raw, testRubric())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.TotalScore != 60 {
		t.Errorf("equal weights 80 and 40 must average to 60, got %d", res.TotalScore)
	}
	if res.Tier != model.TierWarm {
		t.Errorf("score 60 should be warm, got %s", res.Tier)
	}
	if !res.PassesRequirements {
		t.Error("all enabled requirements passed")
	}
	if len(res.ScoreBreakdown) != 2 {
		t.Errorf("disabled signifier must not appear in breakdown, got %d entries", len(res.ScoreBreakdown))
	}
	if res.ScoreBreakdown[0].WeightedScore != 400 {
		t.Errorf("weighted score = %d", res.ScoreBreakdown[0].WeightedScore)
	}
}

func TestParseFailedRequirementDisqualifies(t *testing.T) {
	raw := []byte(`{
		"requirementResults": [{"id":"us-based","passed":false,"reason":"HQ in Berlin"}],
		"scoreBreakdown": [
			{"id":"a","score":95},
			{"id":"b","score":95}
		]
	}`)
	res, err := Parse(raw, testRubric())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.TotalScore != 95 {
		t.Errorf("total = %d", res.TotalScore)
	}
	if res.Tier != model.TierDisqualified {
		t.Errorf("failed requirement must disqualify regardless of score, got %s", res.Tier)
	}
}

func TestParseMissingFieldsFailClosed(t *testing.T) {
	// Tool judged nothing: requirement fails closed, signifiers score zero.
	res, err := Parse([]byte(`{}`), testRubric())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.PassesRequirements {
		t.Error("unevaluated requirement must fail closed")
	}
	if len(res.RequirementResults) != 1 || res.RequirementResults[0].Reason != "not evaluated by scoring tool" {
		t.Errorf("requirement results = %+v", res.RequirementResults)
	}
	if res.TotalScore != 0 || res.Tier != model.TierDisqualified {
		t.Errorf("got total=%d tier=%s", res.TotalScore, res.Tier)
	}
}

func TestParseToolTotalWinsAndIsClamped(t *testing.T) {
	raw := []byte(`{
		"requirementResults": [{"id":"us-based","passed":true}],
		"scoreBreakdown": [{"id":"a","score":10},{"id":"b","score":10}],
		"totalScore": 250
	}`)
	res, err := Parse(raw, testRubric())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.TotalScore != 100 {
		t.Errorf("tool total must win and clamp to 100, got %d", res.TotalScore)
	}
	if res.Tier != model.TierHot {
		t.Errorf("tier = %s", res.Tier)
	}
}

func TestParseClampsSignifierScores(t *testing.T) {
	raw := []byte(`{
		"requirementResults": [{"id":"us-based","passed":true}],
		"scoreBreakdown": [{"id":"a","score":-20},{"id":"b","score":9000}]
	}`)
	res, err := Parse(raw, testRubric())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.ScoreBreakdown[0].Score != 0 || res.ScoreBreakdown[1].Score != 100 {
		t.Errorf("scores not clamped: %+v", res.ScoreBreakdown)
	}
	if res.TotalScore != 50 {
		t.Errorf("total = %d", res.TotalScore)
	}
}

func TestParseRejectsMalformedArtifact(t *testing.T) {
	_, err := Parse([]byte(`{"scoreBreakdown": [`), testRubric())
	if !errors.Is(err, domain.ErrScoreParse) {
		t.Fatalf("want ErrScoreParse, got %v", err)
	}
}

func TestAssignTierBoundaries(t *testing.T) {
	th := model.TierThresholds{Hot: 80, Warm: 60, Nurture: 40}
	tests := []struct {
		score  int
		passes bool
		want   model.Tier
	}{
		{100, true, model.TierHot},
		{80, true, model.TierHot},
		{79, true, model.TierWarm},
		{60, true, model.TierWarm},
		{59, true, model.TierNurture},
		{40, true, model.TierNurture},
		{39, true, model.TierDisqualified},
		{0, true, model.TierDisqualified},
		{100, false, model.TierDisqualified},
	}
	for _, tt := range tests {
		got := assignTier(&model.ScoringResult{TotalScore: tt.score, PassesRequirements: tt.passes}, th)
		if got != tt.want {
			t.Errorf("score=%d passes=%v: want %s, got %s", tt.score, tt.passes, got, tt.want)
		}
	}
}

func TestValidateReportsGapsWithoutBlocking(t *testing.T) {
	res := &model.ScoringResult{
		TotalScore:         120,
		PassesRequirements: false,
		Tier:               model.TierHot,
	}
	problems := Validate(res, testRubric())
	if len(problems) < 4 {
		t.Fatalf("want missing requirement, missing signifiers, range and tier problems, got %v", problems)
	}

	clean, err := Parse([]byte(`{
		"requirementResults": [{"id":"us-based","passed":true}],
		"scoreBreakdown": [{"id":"a","score":70},{"id":"b","score":70}]
	}`), testRubric())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if problems := Validate(clean, testRubric()); len(problems) != 0 {
		t.Errorf("clean result must validate, got %v", problems)
	}
}

func TestLoadConfigAppliesThresholdDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Thresholds.Hot != 80 || cfg.Thresholds.Warm != 60 || cfg.Thresholds.Nurture != 40 {
		t.Errorf("defaults = %+v", cfg.Thresholds)
	}
}

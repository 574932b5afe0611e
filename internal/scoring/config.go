package scoring

import (
	"encoding/json"
	"fmt"
	"os"

	"leadscout/internal/domain/model"
)

// LoadConfig reads an org's scoring rubric from a JSON file. The dashboard
// owns rubric editing; the pipeline only consumes the stored shape.
func LoadConfig(path string) (model.ScoringConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return model.ScoringConfig{}, fmt.Errorf("read rubric: %w", err)
	}
	var cfg model.ScoringConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return model.ScoringConfig{}, fmt.Errorf("parse rubric: %w", err)
	}
	if len(cfg.Signifiers) == 0 && len(cfg.Requirements) == 0 {
		return model.ScoringConfig{}, fmt.Errorf("rubric %s defines no requirements or signifiers", path)
	}
	return applyThresholdDefaults(cfg), nil
}

// DefaultConfig is the fallback rubric used when no org rubric is
// configured, mostly for dev mode and tests.
func DefaultConfig() model.ScoringConfig {
	return applyThresholdDefaults(model.ScoringConfig{
		Requirements: []model.Requirement{
			{ID: "icp-fit", Name: "Matches ideal customer profile", Enabled: true},
		},
		Signifiers: []model.Signifier{
			{ID: "company-size", Name: "Company size", Weight: 5, Enabled: true},
			{ID: "buying-signals", Name: "Buying signals", Weight: 5, Enabled: true},
		},
	})
}

func applyThresholdDefaults(cfg model.ScoringConfig) model.ScoringConfig {
	if cfg.Thresholds.Hot <= 0 {
		cfg.Thresholds.Hot = 80
	}
	if cfg.Thresholds.Warm <= 0 {
		cfg.Thresholds.Warm = 60
	}
	if cfg.Thresholds.Nurture <= 0 {
		cfg.Thresholds.Nurture = 40
	}
	return cfg
}

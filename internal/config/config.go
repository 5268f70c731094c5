// Package config loads and validates the pipeline's configuration tree.
// The shape mirrors the nested sections recognized by spec.md section 6:
// features, cpd, detection, confirm, refractory.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"onset-detect/internal/domain"
)

// FeaturesConfig controls the Feature Engine (section 4.1).
type FeaturesConfig struct {
	VolWindowS int `yaml:"vol_window_s"`
}

// CPDPriceConfig controls the CUSUM axis of the CPD Gate (section 4.2).
type CPDPriceConfig struct {
	KSigma  float64 `yaml:"k_sigma"`
	HMult   float64 `yaml:"h_mult"`
	MinPreS int     `yaml:"min_pre_s"`
}

// CPDVolumeConfig controls the Page-Hinkley axis of the CPD Gate.
type CPDVolumeConfig struct {
	Delta  float64 `yaml:"delta"`
	Lambda float64 `yaml:"lambda"`
}

// CPDConfig is the optional change-point pre-filter. Default disabled.
type CPDConfig struct {
	Use       bool            `yaml:"use"`
	Price     CPDPriceConfig  `yaml:"price"`
	Volume    CPDVolumeConfig `yaml:"volume"`
	CooldownS float64         `yaml:"cooldown_s"`
}

// OnsetAxisConfig holds the three absolute-threshold axis parameters
// consulted by the Candidate Detector (section 4.3).
type OnsetAxisConfig struct {
	SpeedRet1sThreshold        float64 `yaml:"speed_ret_1s_threshold"`
	ParticipationZVolThreshold float64 `yaml:"participation_z_vol_threshold"`
	FrictionSpreadNarrowingPct float64 `yaml:"friction_spread_narrowing_pct"`
	FrictionBaselineWindowS    int     `yaml:"friction_baseline_window_s"`
}

// DetectionConfig controls the Candidate Detector (section 4.3).
type DetectionConfig struct {
	MinAxesRequired int             `yaml:"min_axes_required"`
	Onset           OnsetAxisConfig `yaml:"onset"`
	Gradual         GradualConfig   `yaml:"gradual"`
}

// GradualConfig controls the "gradual" dual-pathway candidate strategy, the
// supplemental extension point named in spec.md section 9: a sustained
// slow build-up that never crosses the sharp speed threshold on any single
// tick but averages above a lower bar over AvgTicks consecutive ticks.
type GradualConfig struct {
	AvgTicks                   int     `yaml:"avg_ticks"`
	SpeedRet1sThreshold        float64 `yaml:"speed_ret_1s_threshold"`
	ParticipationZVolThreshold float64 `yaml:"participation_z_vol_threshold"`
}

// ConfirmDeltaConfig holds the per-axis delta thresholds the Confirm
// Detector applies when comparing post-window records against the
// pre-window baseline.
type ConfirmDeltaConfig struct {
	RetMin     float64 `yaml:"ret_min"`
	ZVolMin    float64 `yaml:"zvol_min"`
	SpreadDrop float64 `yaml:"spread_drop"`
}

// ConfirmConfig controls the Confirm Detector (section 4.4).
type ConfirmConfig struct {
	WindowS           int                `yaml:"window_s"`
	PreWindowS        int                `yaml:"pre_window_s"`
	PersistentN       int                `yaml:"persistent_n"`
	MinAxes           int                `yaml:"min_axes"`
	RequirePriceAxis  bool               `yaml:"require_price_axis"`
	ExcludeCandPoint  bool               `yaml:"exclude_cand_point"`
	Delta             ConfirmDeltaConfig `yaml:"delta"`
	OnsetStrengthMin  float64            `yaml:"onset_strength_min"`
}

// RefractoryConfig controls the Refractory Manager (section 4.5).
type RefractoryConfig struct {
	DurationS        int  `yaml:"duration_s"`
	ExtendOnConfirm  bool `yaml:"extend_on_confirm"`
}

// StrategiesConfig selects which candidate detection strategies are active.
// "sharp" is the core spec.md behavior; "gradual" is the supplemental
// dual-pathway extension point named in spec.md section 9.
type StrategiesConfig struct {
	Enabled []string `yaml:"enabled"`
}

// Config is the full, immutable configuration value injected at pipeline
// construction. Swapping configuration requires tearing down and
// rebuilding the pipeline; there is no live reconfiguration.
type Config struct {
	Features   FeaturesConfig   `yaml:"features"`
	CPD        CPDConfig        `yaml:"cpd"`
	Detection  DetectionConfig  `yaml:"detection"`
	Confirm    ConfirmConfig    `yaml:"confirm"`
	Refractory RefractoryConfig `yaml:"refractory"`
	Strategies StrategiesConfig `yaml:"strategies"`
}

// Default returns the tuned defaults named throughout spec.md sections
// 4.1-4.5.
func Default() Config {
	return Config{
		Features: FeaturesConfig{VolWindowS: 300},
		CPD: CPDConfig{
			Use: false,
			Price: CPDPriceConfig{
				KSigma:  0.7,
				HMult:   6.0,
				MinPreS: 10,
			},
			Volume: CPDVolumeConfig{
				Delta:  0.05,
				Lambda: 6.0,
			},
			CooldownS: 3.0,
		},
		Detection: DetectionConfig{
			MinAxesRequired: 2,
			Onset: OnsetAxisConfig{
				SpeedRet1sThreshold:        0.002,
				ParticipationZVolThreshold: 2.5,
				FrictionSpreadNarrowingPct: 0.6,
				FrictionBaselineWindowS:    60,
			},
			Gradual: GradualConfig{
				AvgTicks:                   10,
				SpeedRet1sThreshold:        0.0008,
				ParticipationZVolThreshold: 1.5,
			},
		},
		Confirm: ConfirmConfig{
			WindowS:          12,
			PreWindowS:       5,
			PersistentN:      22,
			MinAxes:          2,
			RequirePriceAxis: true,
			ExcludeCandPoint: true,
			Delta: ConfirmDeltaConfig{
				RetMin:     0.0001,
				ZVolMin:    0.1,
				SpreadDrop: 0.0001,
			},
			OnsetStrengthMin: 0.67,
		},
		Refractory: RefractoryConfig{
			DurationS:       45,
			ExtendOnConfirm: true,
		},
		Strategies: StrategiesConfig{Enabled: []string{"sharp"}},
	}
}

// Load reads a YAML configuration file, merges it over Default(), and
// validates the result. A missing path is not an error: Default() alone
// is used.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: reading %s: %v", domain.ErrConfig, path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", domain.ErrConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects structurally invalid configuration at construction
// time, per the ConfigError recovery policy of spec.md section 7: refuse
// to construct the pipeline, never guess.
func (c Config) Validate() error {
	switch {
	case c.Features.VolWindowS <= 0:
		return fmt.Errorf("%w: features.vol_window_s must be > 0", domain.ErrConfig)
	case c.Detection.MinAxesRequired < 1 || c.Detection.MinAxesRequired > 3:
		return fmt.Errorf("%w: detection.min_axes_required must be in [1,3]", domain.ErrConfig)
	case contains(c.Strategies.Enabled, "gradual") && c.Detection.Gradual.AvgTicks <= 0:
		return fmt.Errorf("%w: detection.gradual.avg_ticks must be > 0", domain.ErrConfig)
	case c.Confirm.WindowS <= 0:
		return fmt.Errorf("%w: confirm.window_s must be > 0", domain.ErrConfig)
	case c.Confirm.PreWindowS < 0:
		return fmt.Errorf("%w: confirm.pre_window_s must be >= 0", domain.ErrConfig)
	case c.Confirm.PersistentN <= 0:
		return fmt.Errorf("%w: confirm.persistent_n must be > 0", domain.ErrConfig)
	case c.Confirm.MinAxes < 1 || c.Confirm.MinAxes > 3:
		return fmt.Errorf("%w: confirm.min_axes must be in [1,3]", domain.ErrConfig)
	case c.Confirm.OnsetStrengthMin < 0 || c.Confirm.OnsetStrengthMin > 1:
		return fmt.Errorf("%w: confirm.onset_strength_min must be in [0,1]", domain.ErrConfig)
	case c.Refractory.DurationS < 0:
		return fmt.Errorf("%w: refractory.duration_s must be >= 0", domain.ErrConfig)
	case c.CPD.Use && c.CPD.Price.MinPreS < 0:
		return fmt.Errorf("%w: cpd.price.min_pre_s must be >= 0", domain.ErrConfig)
	}
	for _, s := range c.Strategies.Enabled {
		if s != "sharp" && s != "gradual" {
			return fmt.Errorf("%w: strategies.enabled has unknown strategy %q", domain.ErrConfig, s)
		}
	}
	if len(c.Strategies.Enabled) == 0 {
		return fmt.Errorf("%w: strategies.enabled must name at least one strategy", domain.ErrConfig)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

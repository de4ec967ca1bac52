package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/uyouii/optimal-stopping/common"
)

const (
	EstimatorGMM = "gmm"
	EstimatorKDE = "kde"

	RulePenalized = "penalized"
	RuleTailRisk  = "tail_risk"
)

var validate = validator.New()

// Config is built once at startup and passed by value to every component.
type Config struct {
	StreamLength int `yaml:"stream_length" default:"1000" validate:"gte=1"`
	// warm-up items are never selectable
	WarmupLength int    `yaml:"warmup_length" default:"200" validate:"gte=0,ltfield=StreamLength"`
	Estimator    string `yaml:"estimator" default:"gmm" validate:"oneof=gmm kde"`
	Rule         string `yaml:"rule" default:"penalized" validate:"oneof=penalized tail_risk"`

	ComponentCount      int       `yaml:"component_count" default:"2" validate:"gte=1,lte=12"`
	ThresholdCandidates []float64 `yaml:"threshold_candidates" default:"[0.5,0.6,0.7,0.8,0.9]" validate:"required,min=1,dive,gt=0,lt=1"`
	SplitFraction       float64   `yaml:"split_fraction" default:"0.5" validate:"gt=0,lt=1"`

	FinalAcceptProbability float64 `yaml:"final_accept_probability" default:"0.5" validate:"gte=0,lte=1"`
	RandomSeed             *uint64 `yaml:"random_seed"`

	Mixture Mixture `yaml:"mixture"`
	Kde     Kde     `yaml:"kde"`
	Drift   Drift   `yaml:"drift"`
	Logging Logging `yaml:"logging"`
}

type Mixture struct {
	MaxIterations int     `yaml:"max_iterations" default:"100" validate:"gte=1"`
	Tolerance     float64 `yaml:"tolerance" default:"0.001" validate:"gt=0"`
	// added to every component variance so a component can not collapse onto one point
	RegCovar float64 `yaml:"reg_covar" default:"0.000001" validate:"gt=0"`
}

type Kde struct {
	BwAdjust float64 `yaml:"bw_adjust" default:"1.0" validate:"gt=0"`
}

type Drift struct {
	Enabled              bool    `yaml:"enabled"`
	Hazard               float64 `yaml:"hazard" default:"0.002" validate:"gt=0,lt=1"`
	ChangePointThreshold float64 `yaml:"change_point_threshold" default:"0.75" validate:"gt=0,lte=1"`
	ObserveWindow        int     `yaml:"observe_window" default:"5" validate:"gte=1"`
	MaxDataSize          int     `yaml:"max_data_size" default:"400" validate:"gtfield=ReserveSize"`
	ReserveSize          int     `yaml:"reserve_size" default:"100" validate:"gte=1"`
}

type Logging struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"100" validate:"gte=1"`
	MaxBackups int    `yaml:"max_backups" default:"3" validate:"gte=0"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return c
}

// Load reads a YAML configuration file, fills defaults and validates it.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return Config{}, fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		msgs := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", e.Namespace(), e.Tag(), e.Param()))
		}
		return fmt.Errorf("%w: %s", common.ErrorInvalidConfig, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", common.ErrorInvalidConfig, err)
}

// Candidates returns a copy of the threshold candidates in configured order.
func (c Config) Candidates() []float64 {
	res := make([]float64, len(c.ThresholdCandidates))
	copy(res, c.ThresholdCandidates)
	return res
}

func (c Config) WithSeed(seed uint64) Config {
	c.RandomSeed = &seed
	return c
}

package prm

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// default values for planning options.
const (
	// connection distance cap of Uniform-Radius.
	defaultRadius = 5.0

	// node budget of Uniform-Radius.
	defaultNumNodes = 300

	// first batch and regrow batch of Lazy-kNN; the regrow batch is also used by
	// Uniform-Radius when a query fails.
	defaultInitialRoadmapSize = 40
	defaultUpdateRoadmapSize  = 20

	// neighbour fan-out of Lazy-kNN.
	defaultKNearest = 5

	// stagnation budget of Visibility-Guard.
	defaultNTry = 40

	// repairs and regrowths tolerated before a run is abandoned.
	defaultMaxRetries = 40

	// candidate path requests tolerated before a run is abandoned.
	defaultMaxReplans = 10000

	// samples drawn by one Visibility-Guard phase at most.
	defaultMaxSamples = 20000

	// free-sample attempts per requested free sample.
	defaultSampleAttempts = 1000
)

// Config holds the recognized planning options. Keys follow the option names used
// by scenario files, so a decoded map and a JSON body look the same.
type Config struct {
	Radius             float64 `json:"radius"`
	NumNodes           int     `json:"numNodes"`
	InitialRoadmapSize int     `json:"initialRoadmapSize"`
	UpdateRoadmapSize  int     `json:"updateRoadmapSize"`
	KNearest           int     `json:"kNearest"`
	NTry               int     `json:"ntry"`
	MaxRetries         int     `json:"maxRetries"`
	MaxReplans         int     `json:"maxReplans"`
	MaxSamples         int     `json:"maxSamples"`
	SampleAttempts     int     `json:"sampleAttempts"`
	// StopWhenConnected ends a Visibility-Guard phase as soon as the roadmap is a
	// single component.
	StopWhenConnected bool  `json:"stopWhenConnected"`
	Seed              int64 `json:"seed"`
}

// DefaultConfig returns the default planning options.
func DefaultConfig() Config {
	return Config{
		Radius:             defaultRadius,
		NumNodes:           defaultNumNodes,
		InitialRoadmapSize: defaultInitialRoadmapSize,
		UpdateRoadmapSize:  defaultUpdateRoadmapSize,
		KNearest:           defaultKNearest,
		NTry:               defaultNTry,
		MaxRetries:         defaultMaxRetries,
		MaxReplans:         defaultMaxReplans,
		MaxSamples:         defaultMaxSamples,
		SampleAttempts:     defaultSampleAttempts,
	}
}

// DecodeConfig overlays attrs on DefaultConfig. Numbers may arrive as any numeric
// type or as strings; unknown keys are rejected.
func DecodeConfig(attrs map[string]interface{}) (Config, error) {
	conf := DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &conf,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Config{}, errors.Wrap(err, "error creating config decoder")
	}
	if err := decoder.Decode(attrs); err != nil {
		return Config{}, errors.Wrap(err, "error decoding planner config")
	}
	return conf, conf.Validate()
}

// Validate checks every option range and reports all violations at once.
func (c Config) Validate() error {
	var err error
	if c.Radius <= 0 {
		err = multierr.Append(err, errors.Errorf("radius must be positive, got %v", c.Radius))
	}
	if c.NumNodes < 0 {
		err = multierr.Append(err, errors.Errorf("numNodes must not be negative, got %d", c.NumNodes))
	}
	if c.InitialRoadmapSize < 0 {
		err = multierr.Append(err, errors.Errorf("initialRoadmapSize must not be negative, got %d", c.InitialRoadmapSize))
	}
	if c.UpdateRoadmapSize < 0 {
		err = multierr.Append(err, errors.Errorf("updateRoadmapSize must not be negative, got %d", c.UpdateRoadmapSize))
	}
	if c.KNearest <= 0 {
		err = multierr.Append(err, errors.Errorf("kNearest must be positive, got %d", c.KNearest))
	}
	if c.NTry <= 0 {
		err = multierr.Append(err, errors.Errorf("ntry must be positive, got %d", c.NTry))
	}
	if c.MaxRetries < 0 {
		err = multierr.Append(err, errors.Errorf("maxRetries must not be negative, got %d", c.MaxRetries))
	}
	if c.MaxReplans <= 0 {
		err = multierr.Append(err, errors.Errorf("maxReplans must be positive, got %d", c.MaxReplans))
	}
	if c.MaxSamples <= 0 {
		err = multierr.Append(err, errors.Errorf("maxSamples must be positive, got %d", c.MaxSamples))
	}
	if c.SampleAttempts <= 0 {
		err = multierr.Append(err, errors.Errorf("sampleAttempts must be positive, got %d", c.SampleAttempts))
	}
	return err
}

// Package config defines the configuration of a calibration run: where the recorded datasets
// live, which of them to process and how.
package config

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/emguan/CIS-PA2/logging"
	"github.com/emguan/CIS-PA2/registration"
)

// File name suffixes of the records belonging to one dataset.
const (
	CalBodySuffix     = "-calbody.txt"
	CalReadingsSuffix = "-calreadings.txt"
	EMPivotSuffix     = "-empivot.txt"
	OptPivotSuffix    = "-optpivot.txt"
	OutputSuffix      = "-output-1.txt"
	PlotSuffix        = "-errors.png"
)

// Default values filled in by Ensure.
const (
	DefaultDataDir   = "data"
	DefaultOutputDir = "output"
	DefaultLogLevel  = "info"
)

var datasetNameRegexp = regexp.MustCompile(`^[a-zA-Z0-9]+([_-][a-zA-Z0-9]+)*$`)

// A Config describes a calibration run.
type Config struct {
	DataDir   string   `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	OutputDir string   `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	Datasets  []string `json:"datasets,omitempty" yaml:"datasets,omitempty"`
	// Parallel processes datasets, and the frames within them, concurrently.
	Parallel bool `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	// PlotErrors saves a per-frame error plot of the C prediction next to each output.
	PlotErrors bool `json:"plot_errors,omitempty" yaml:"plot_errors,omitempty"`
	// DegeneracyEpsilon is the relative singular value ratio below which a registration is
	// reported as degenerate. Zero selects registration.DefaultDegeneracyEpsilon.
	DegeneracyEpsilon float64                       `json:"degeneracy_epsilon,omitempty" yaml:"degeneracy_epsilon,omitempty"`
	LogLevel          string                        `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogConfig         []logging.LoggerPatternConfig `json:"log,omitempty" yaml:"log,omitempty"`
	// LogFile, when set, also writes logs to this size-rotated file.
	LogFile string `json:"log_file,omitempty" yaml:"log_file,omitempty"`

	ConfigFilePath string `json:"-" yaml:"-"`
}

// Ensure fills in defaults and validates the config.
func (c *Config) Ensure() error {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.DegeneracyEpsilon == 0 {
		c.DegeneracyEpsilon = registration.DefaultDegeneracyEpsilon
	}
	return c.Validate("")
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.DegeneracyEpsilon < 0 || c.DegeneracyEpsilon >= 1 {
		return goutils.NewConfigValidationError(joinPath(path, "degeneracy_epsilon"),
			errors.Errorf("must be in [0, 1), got %v", c.DegeneracyEpsilon))
	}
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			return goutils.NewConfigValidationError(joinPath(path, "log_level"), err)
		}
	}

	seen := make(map[string]struct{}, len(c.Datasets))
	for idx, name := range c.Datasets {
		datasetPath := joinPath(path, fmt.Sprintf("datasets.%d", idx))
		if name == "" {
			return goutils.NewConfigValidationFieldRequiredError(datasetPath, "name")
		}
		if !datasetNameRegexp.MatchString(name) {
			return goutils.NewConfigValidationError(datasetPath, errors.Errorf("invalid dataset name %q", name))
		}
		if _, ok := seen[name]; ok {
			return goutils.NewConfigValidationError(datasetPath, errors.Errorf("duplicate dataset name %q", name))
		}
		seen[name] = struct{}{}
	}

	for idx, lpc := range c.LogConfig {
		logPath := joinPath(path, fmt.Sprintf("log.%d", idx))
		if lpc.Pattern == "" {
			return goutils.NewConfigValidationFieldRequiredError(logPath, "pattern")
		}
		if !logging.ValidatePattern(lpc.Pattern) {
			return goutils.NewConfigValidationError(logPath, errors.Errorf("invalid logger pattern %q", lpc.Pattern))
		}
		if _, err := logging.LevelFromString(lpc.Level); err != nil {
			return goutils.NewConfigValidationError(logPath, err)
		}
	}
	return nil
}

// Level returns the parsed log level, INFO when unset.
func (c *Config) Level() logging.Level {
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// DatasetPaths are the record files belonging to one dataset.
type DatasetPaths struct {
	Name        string
	CalBody     string
	CalReadings string
	EMPivot     string
	OptPivot    string
	Output      string
	// Plot is empty unless PlotErrors is set.
	Plot string
}

// Paths returns where the records of the named dataset are read from and written to.
func (c *Config) Paths(name string) DatasetPaths {
	paths := DatasetPaths{
		Name:        name,
		CalBody:     filepath.Join(c.DataDir, name+CalBodySuffix),
		CalReadings: filepath.Join(c.DataDir, name+CalReadingsSuffix),
		EMPivot:     filepath.Join(c.DataDir, name+EMPivotSuffix),
		OptPivot:    filepath.Join(c.DataDir, name+OptPivotSuffix),
		Output:      filepath.Join(c.OutputDir, name+OutputSuffix),
	}
	if c.PlotErrors {
		paths.Plot = filepath.Join(c.OutputDir, name+PlotSuffix)
	}
	return paths
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

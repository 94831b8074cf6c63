// Package main is the calibrate command: it predicts EM marker positions from optical readings
// and runs EM and optical pivot calibrations on recorded datasets.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/emguan/CIS-PA2/calibration"
	"github.com/emguan/CIS-PA2/config"
	"github.com/emguan/CIS-PA2/dataio"
	"github.com/emguan/CIS-PA2/logging"
	"github.com/emguan/CIS-PA2/utils"
)

const (
	// Flags.
	flagConfig      = "config"
	flagDebug       = "debug"
	flagEpsilon     = "epsilon"
	flagParallel    = "parallel"
	flagCalBody     = "calbody"
	flagCalReadings = "calreadings"
	flagOutput      = "output"
	flagEMPivot     = "empivot"
	flagOptPivot    = "optpivot"
	flagDataDir     = "data-dir"
	flagOutputDir   = "output-dir"
	flagPlot        = "plot"
)

// Rotation limits of the log file named in the config.
const (
	logFileMaxSizeMB  = 10
	logFileMaxBackups = 3
)

var logger = logging.NewLogger("calibrate")

func main() {
	if err := realMain(os.Args); err != nil {
		logger.Error(err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// state is built once per invocation in the app's Before hook.
type state struct {
	cfg      *config.Config
	registry *logging.Registry

	// logger is the package logger configured for this invocation.
	logger  logging.Logger
	logFile *logging.FileAppender
}

func (s *state) options(log logging.Logger) calibration.Options {
	return calibration.Options{
		DegeneracyEpsilon: s.cfg.DegeneracyEpsilon,
		Parallel:          s.cfg.Parallel,
		Logger:            log,
	}
}

func newApp() *cli.App {
	st := &state{}
	return &cli.App{
		Name:  "calibrate",
		Usage: "register tracker frames and calibrate pivoting probes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.Float64Flag{
				Name:  flagEpsilon,
				Usage: "relative singular value ratio below which a registration is reported degenerate",
			},
			&cli.BoolFlag{
				Name:  flagParallel,
				Usage: "process frames and datasets concurrently",
			},
		},
		Before: func(c *cli.Context) error {
			cfg := &config.Config{}
			if path := c.String(flagConfig); path != "" {
				var err error
				if cfg, err = config.Read(path); err != nil {
					return err
				}
			}
			if c.IsSet(flagEpsilon) {
				cfg.DegeneracyEpsilon = c.Float64(flagEpsilon)
			}
			if c.IsSet(flagParallel) {
				cfg.Parallel = c.Bool(flagParallel)
			}
			if c.Bool(flagDebug) {
				cfg.LogLevel = "debug"
			}
			if err := cfg.Ensure(); err != nil {
				return err
			}

			var extra []logging.Appender
			if cfg.LogFile != "" {
				st.logFile = logging.NewFileAppender(cfg.LogFile, logFileMaxSizeMB, logFileMaxBackups)
				extra = append(extra, st.logFile)
			}
			st.logger = logging.NewConfiguredLogger(logger, cfg.Level(), extra...)
			logging.ReplaceGlobal(st.logger)
			st.cfg = cfg
			st.registry = logging.NewRegistry(cfg.Level())
			return st.registry.UpdateConfig(cfg.LogConfig, st.logger)
		},
		After: func(c *cli.Context) error {
			logging.ReplaceGlobal(logger)
			if st.logFile == nil {
				return nil
			}
			return st.logFile.Close()
		},
		Commands: []*cli.Command{
			{
				Name:  "expected",
				Usage: "predict the EM markers of every calibration frame and compare them with the readings",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagCalBody, Required: true, Usage: "calibration body `FILE`"},
					&cli.PathFlag{Name: flagCalReadings, Required: true, Usage: "calibration readings `FILE`"},
					&cli.PathFlag{Name: flagOutput, Usage: "write the predicted markers to `FILE`"},
					&cli.PathFlag{Name: flagPlot, Usage: "save a plot of the per-frame errors to `FILE` (.png or .svg)"},
				},
				Action: func(c *cli.Context) error {
					return expectedAction(c, st)
				},
			},
			{
				Name:  "empivot",
				Usage: "calibrate the EM probe from a pivot recording",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagEMPivot, Required: true, Usage: "EM pivot `FILE`"},
				},
				Action: func(c *cli.Context) error {
					return emPivotAction(c, st)
				},
			},
			{
				Name:  "optpivot",
				Usage: "calibrate the optical probe in EM base coordinates from a pivot recording",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagCalBody, Required: true, Usage: "calibration body `FILE`"},
					&cli.PathFlag{Name: flagOptPivot, Required: true, Usage: "optical pivot `FILE`"},
				},
				Action: func(c *cli.Context) error {
					return optPivotAction(c, st)
				},
			},
			{
				Name:      "run",
				Usage:     "run every pipeline on each dataset named in the config or on the command line",
				ArgsUsage: "[dataset...]",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagDataDir, Usage: "read dataset records from `DIR`"},
					&cli.PathFlag{Name: flagOutputDir, Usage: "write outputs to `DIR`"},
				},
				Action: func(c *cli.Context) error {
					return runAction(c, st)
				},
			},
		},
	}
}

func realMain(args []string) error {
	return newApp().Run(args)
}

func expectedAction(c *cli.Context, st *state) error {
	body, err := dataio.ReadCalBodyFile(c.Path(flagCalBody))
	if err != nil {
		return err
	}
	readings, err := dataio.ReadCalReadingsFile(c.Path(flagCalReadings), body)
	if err != nil {
		return err
	}

	expected, err := calibration.PredictExpectedC(c.Context, body, readings, st.options(st.logger))
	if err != nil {
		return err
	}
	stats, err := calibration.CompareFrames(expected.Points(), calibration.MeasuredC(readings))
	if err != nil {
		return err
	}
	for k, fe := range stats.Frames {
		st.logger.Infow("frame error", "frame", k, "mean", fe.Mean, "median", fe.Median, "rms", fe.RMS, "max", fe.Max)
	}
	st.logger.Infow("expected C", "mean_error", stats.MeanOfMeans, "rms_error", stats.MeanOfRMS,
		"degenerate_frames", expected.Degenerate)

	if out := c.Path(flagOutput); out != "" {
		if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
			return err
		}
		if err := dataio.WriteOutputFile(out, filepath.Base(out), expected.Points()); err != nil {
			return err
		}
		st.logger.Infow("wrote output", "path", out)
	}
	if plotPath := c.Path(flagPlot); plotPath != "" {
		if err := calibration.PlotFrameErrors(stats, filepath.Base(c.Path(flagCalReadings)), plotPath); err != nil {
			return err
		}
		st.logger.Infow("wrote error plot", "path", plotPath)
	}
	return nil
}

func emPivotAction(c *cli.Context, st *state) error {
	piv, err := dataio.ReadEMPivotFile(c.Path(flagEMPivot))
	if err != nil {
		return err
	}
	res, err := calibration.EMPivot(c.Context, piv, st.options(st.logger))
	if err != nil {
		return err
	}
	st.logger.Infow("EM pivot", "tip", res.Tip, "post", res.Post, "rms", res.RMS, "rank", res.Rank)
	return nil
}

func optPivotAction(c *cli.Context, st *state) error {
	body, err := dataio.ReadCalBodyFile(c.Path(flagCalBody))
	if err != nil {
		return err
	}
	piv, err := dataio.ReadOptPivotFile(c.Path(flagOptPivot))
	if err != nil {
		return err
	}
	res, err := calibration.OptPivot(c.Context, body, piv, st.options(st.logger))
	if err != nil {
		return err
	}
	st.logger.Infow("optical pivot", "tip", res.Tip, "post", res.Post, "rms", res.RMS, "rank", res.Rank)
	return nil
}

func runAction(c *cli.Context, st *state) error {
	cfg := *st.cfg
	if c.IsSet(flagDataDir) {
		cfg.DataDir = c.Path(flagDataDir)
	}
	if c.IsSet(flagOutputDir) {
		cfg.OutputDir = c.Path(flagOutputDir)
	}
	if c.Args().Present() {
		cfg.Datasets = c.Args().Slice()
	}
	if err := cfg.Validate(""); err != nil {
		return err
	}
	if len(cfg.Datasets) == 0 {
		return errors.New("no datasets to run; name them in the config or on the command line")
	}

	var mu sync.Mutex
	reports := make(map[string]*calibration.DatasetReport, len(cfg.Datasets))
	runOne := func(ctx context.Context, i int) error {
		name := cfg.Datasets[i]
		sub := st.logger.Sublogger(name)
		dsLogger := st.registry.GetOrRegister(sub.Name(), sub)
		report, err := calibration.RunDataset(ctx, cfg.Paths(name), st.options(dsLogger))
		if err != nil {
			return errors.Wrapf(err, "dataset %s", name)
		}
		mu.Lock()
		reports[name] = report
		mu.Unlock()
		return nil
	}

	var err error
	if cfg.Parallel {
		err = utils.ForEachInParallel(c.Context, len(cfg.Datasets), runOne)
	} else {
		err = utils.ForEach(c.Context, len(cfg.Datasets), runOne)
	}
	st.logger.Infow("finished", "datasets", len(reports), "failed", len(cfg.Datasets)-len(reports))

	ordered := make([]*calibration.DatasetReport, 0, len(reports))
	for _, name := range cfg.Datasets {
		if r, ok := reports[name]; ok {
			ordered = append(ordered, r)
		}
	}
	if len(ordered) > 0 {
		fmt.Fprintln(c.App.Writer, calibration.Summary(ordered))
	}
	return err
}

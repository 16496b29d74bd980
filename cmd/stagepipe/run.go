package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fogfactory/stagepipe"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var errRejected = errors.New("photo rejected")

// photo is the demo item: each stage stamps its name on it.
type photo struct {
	ID    uuid.UUID
	Seq   int
	Steps []string
}

type runOptions struct {
	configFile  string
	items       int
	failEvery   int
	metricsFile string
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the photo gallery pipeline",
		Long: `Run generated photos through a download, resize and upload pipeline.

Stages, worker counts and queue capacities come from the configuration file
(YAML, JSON or TOML). Without one, three stages of 3, 4 and 5 workers are used.
Environment variables prefixed with STAGEPIPE_ override the file settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			return runPipeline(cmd.OutOrStdout(), newLogger(cmd.ErrOrStderr(), verbose), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "Pipeline configuration file")
	cmd.Flags().IntVarP(&opts.items, "items", "n", 1000, "Number of photos to process")
	cmd.Flags().IntVar(&opts.failEvery, "fail-every", 0, "Reject one photo out of N in the first stage (0 disables)")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file once done")

	return cmd
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: zerolog.SyncWriter(w), NoColor: true}).Level(level).With().Timestamp().Logger()
}

func defaultConfig() *stagepipe.Config {
	return &stagepipe.Config{
		Name: "gallery",
		Stages: []stagepipe.StageConfig{
			{Name: "download", Workers: 3, QueueCapacity: 100},
			{Name: "resize", Workers: 4, QueueCapacity: 100},
			{Name: "upload", Workers: 5, QueueCapacity: 100},
		},
	}
}

// stamp returns the transform of a stage. failEvery rejects one photo out of failEvery.
func stamp(stage string, failEvery int) stagepipe.Transform[*photo, *photo] {
	return func(p *photo) (*photo, error) {
		if failEvery > 0 && (p.Seq+1)%failEvery == 0 {
			return nil, fmt.Errorf("%w: %s", errRejected, p.ID)
		}
		p.Steps = append(p.Steps, stage)
		return p, nil
	}
}

func runPipeline(out io.Writer, logger zerolog.Logger, opts runOptions) error {
	if opts.items < 0 {
		return fmt.Errorf("items must be positive (got: %d)", opts.items)
	}

	cfg := defaultConfig()
	if opts.configFile != "" {
		var err error
		if cfg, err = stagepipe.LoadConfig(opts.configFile); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	metrics, err := stagepipe.NewMetrics(reg)
	if err != nil {
		return err
	}

	transforms := make(map[string]stagepipe.Transform[*photo, *photo], len(cfg.Stages))
	for i, s := range cfg.Stages {
		transforms[s.Name] = stamp(s.Name, lo.Ternary(i == 0, opts.failEvery, 0))
	}
	p, err := stagepipe.FromConfig(cfg, transforms, stagepipe.WithLogger(logger), stagepipe.WithMetrics(metrics))
	if err != nil {
		return err
	}

	photos := lo.Times(opts.items, func(i int) *photo { return &photo{ID: uuid.New(), Seq: i} })
	report, err := p.Run(lo.SliceToChannel(0, photos))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "pipeline: %s\n", p.Name())
	fmt.Fprintf(out, "submitted: %d\n", report.Submitted)
	fmt.Fprintf(out, "processed: %d\n", report.Processed)
	fmt.Fprintf(out, "failed: %d\n", report.Failed())
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  - %s\n", f.Err)
	}

	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

package stagepipe_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fogfactory/stagepipe"
	"github.com/maxatome/go-testdeep/td"
	"github.com/samber/lo"
)

const photosConfig = `
name: photos
stages:
  - name: download
    workers: 3
    queue_capacity: 100
  - name: resize
    workers: 4
    queue_capacity: 50
  - workers: 5
    queue_capacity: 20
`

func writeConfig(t testing.TB, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	td.Require(t).CmpNoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {

	t.Run("success_yaml", func(t *testing.T) {
		// Arrange
		path := writeConfig(t, "pipeline.yml", photosConfig)

		// Act
		cfg, err := stagepipe.LoadConfig(path)

		// Assert
		td.Require(t).CmpNoError(err)
		td.Cmp(t, cfg, &stagepipe.Config{
			Name:         "photos",
			SinkCapacity: 20,
			Stages: []stagepipe.StageConfig{
				{Name: "download", Workers: 3, QueueCapacity: 100},
				{Name: "resize", Workers: 4, QueueCapacity: 50},
				{Name: "stage-2", Workers: 5, QueueCapacity: 20},
			},
		})
	})

	t.Run("success_json_with_env_override", func(t *testing.T) {
		// Arrange
		path := writeConfig(t, "pipeline.json", `{"name": "photos", "stages": [{"name": "upload", "workers": 1, "queue_capacity": 2}]}`)
		t.Setenv("STAGEPIPE_SINK_CAPACITY", "7")
		t.Setenv("STAGEPIPE_NAME", "gallery")

		// Act
		cfg, err := stagepipe.LoadConfig(path)

		// Assert
		td.Require(t).CmpNoError(err)
		td.Cmp(t, cfg.Name, "gallery")
		td.Cmp(t, cfg.SinkCapacity, 7)
	})

	t.Run("error_missing_file", func(t *testing.T) {
		// Act
		cfg, err := stagepipe.LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))

		// Assert
		td.CmpError(t, err)
		td.CmpNil(t, cfg)
	})

	t.Run("error_invalid_worker_count", func(t *testing.T) {
		// Arrange
		path := writeConfig(t, "pipeline.yml", "stages:\n  - name: download\n    workers: 0\n    queue_capacity: 1\n")

		// Act
		_, err := stagepipe.LoadConfig(path)

		// Assert
		td.CmpErrorIs(t, err, stagepipe.ErrInvalidConfig)
		td.CmpContains(t, err, "Workers")
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() stagepipe.Config {
		return stagepipe.Config{
			Name:         "photos",
			SinkCapacity: 1,
			Stages: []stagepipe.StageConfig{
				{Name: "download", Workers: 1, QueueCapacity: 1},
				{Name: "resize", Workers: 1, QueueCapacity: 1},
			},
		}
	}

	tests := []struct {
		name   string
		update func(*stagepipe.Config)
		errMsg string
	}{
		{"no_stage", func(c *stagepipe.Config) { c.Stages = nil }, "Stages"},
		{"zero_capacity", func(c *stagepipe.Config) { c.Stages[1].QueueCapacity = 0 }, "QueueCapacity"},
		{"negative_workers", func(c *stagepipe.Config) { c.Stages[0].Workers = -1 }, "Workers"},
		{"zero_sink_capacity", func(c *stagepipe.Config) { c.SinkCapacity = -1 }, "SinkCapacity"},
		{"duplicated_names", func(c *stagepipe.Config) { c.Stages[1].Name = "download" }, "duplicated stage names [download]"},
		{"reserved_name", func(c *stagepipe.Config) { c.Stages[1].Name = stagepipe.SinkStageName }, "reserved"},
	}

	cfg := valid()
	td.CmpNoError(t, cfg.Validate())

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			cfg := valid()
			tc.update(&cfg)

			// Act
			err := cfg.Validate()

			// Assert
			td.CmpErrorIs(t, err, stagepipe.ErrInvalidConfig)
			td.CmpContains(t, err, tc.errMsg)
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg := func() *stagepipe.Config {
		return &stagepipe.Config{
			Stages: []stagepipe.StageConfig{
				{Name: "download", Workers: 2, QueueCapacity: 4},
				{Name: "resize", Workers: 3, QueueCapacity: 4},
			},
		}
	}

	t.Run("success_run", func(t *testing.T) {
		// Arrange
		p, err := stagepipe.FromConfig(cfg(), map[string]stagepipe.Transform[int, int]{
			"download": stagepipe.Identity[int](),
			"resize":   double(-1),
		})
		td.Require(t).CmpNoError(err)

		// Act
		report, err := p.Run(lo.SliceToChannel(0, lo.Range(20)))

		// Assert
		td.Require(t).CmpNoError(err)
		td.Cmp(t, p.Name(), "pipeline")
		td.Cmp(t, lo.Map(p.Stages(), func(s *stagepipe.Stage[int, int], _ int) string { return s.Name() }),
			[]string{"download", "resize"})
		td.Cmp(t, report.Items, td.Bag(lo.Map(lo.Range(20), func(i, _ int) any { return i * 2 })...))
	})

	t.Run("error_missing_transform", func(t *testing.T) {
		// Act
		p, err := stagepipe.FromConfig(cfg(), map[string]stagepipe.Transform[int, int]{
			"download": stagepipe.Identity[int](),
		})

		// Assert
		td.CmpErrorIs(t, err, stagepipe.ErrInvalidConfig)
		td.CmpContains(t, err, `"resize"`)
		td.CmpNil(t, p)
	})
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/maxatome/go-testdeep/td"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCmd(t *testing.T) {

	t.Run("success_default_config", func(t *testing.T) {
		// Act
		out, err := execute(t, "run", "--items", "200")

		// Assert
		td.Require(t).CmpNoError(err)
		td.Cmp(t, out, td.All(
			td.Contains("pipeline: gallery\n"),
			td.Contains("submitted: 200\n"),
			td.Contains("processed: 200\n"),
			td.Contains("failed: 0\n"),
		))
	})

	t.Run("success_fail_every", func(t *testing.T) {
		// Act
		out, err := execute(t, "run", "-n", "50", "--fail-every", "10")

		// Assert
		td.Require(t).CmpNoError(err)
		td.Cmp(t, out, td.All(
			td.Contains("processed: 45\n"),
			td.Contains("failed: 5\n"),
			td.Contains("photo rejected"),
		))
	})

	t.Run("success_config_and_metrics_file", func(t *testing.T) {
		// Arrange
		dir := t.TempDir()
		config := filepath.Join(dir, "pipeline.yml")
		metrics := filepath.Join(dir, "metrics.prom")
		td.Require(t).CmpNoError(os.WriteFile(config, []byte(`
name: thumbnails
stages:
  - name: resize
    workers: 2
    queue_capacity: 4
`), 0o600))

		// Act
		out, err := execute(t, "run", "--config", config, "--items", "20", "--metrics-file", metrics)

		// Assert
		td.Require(t).CmpNoError(err)
		td.Cmp(t, out, td.All(
			td.Contains("pipeline: thumbnails\n"),
			td.Contains("processed: 20\n"),
		))
		content, err := os.ReadFile(metrics)
		td.Require(t).CmpNoError(err)
		td.Cmp(t, string(content), td.Contains(`stagepipe_items_processed_total{stage="resize"} 20`))
	})

	t.Run("error_invalid_config", func(t *testing.T) {
		// Arrange
		config := filepath.Join(t.TempDir(), "pipeline.yml")
		td.Require(t).CmpNoError(os.WriteFile(config, []byte("stages: []\n"), 0o600))

		// Act
		_, err := execute(t, "run", "--config", config)

		// Assert
		td.CmpError(t, err)
	})

	t.Run("error_negative_items", func(t *testing.T) {
		// Act
		_, err := execute(t, "run", "--items=-1")

		// Assert
		td.CmpContains(t, err, "items must be positive")
	})
}

func TestVersionCmd(t *testing.T) {
	// Act
	out, err := execute(t, "version")

	// Assert
	td.CmpNoError(t, err)
	td.Cmp(t, out, td.HasPrefix("stagepipe version "))
}

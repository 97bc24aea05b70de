package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
)

func TestTuningDefaults(t *testing.T) {
	cfg := &config{}

	tn, err := cfg.loadTuning()
	gt.NoError(t, err)
	gt.Equal(t, tn.mirror.PageSize, 100)
	gt.Equal(t, tn.mirror.Concurrency, 4)
	gt.Equal(t, tn.mirror.MaxAttempts, 5)
	gt.Equal(t, tn.mirror.BackoffBase, time.Second)
	gt.Equal(t, tn.mirror.BackoffMax, 30*time.Second)
	gt.Equal(t, tn.requestTimeout, 30*time.Second)
	gt.Equal(t, tn.artifactTimeout, 2*time.Minute)
}

func TestTuningFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yml")
	gt.NoError(t, os.WriteFile(path, []byte(`
page_size: 50
max_attempts: 3
backoff_base: 500ms
artifact_timeout: 5m
`), 0644))

	cfg := &config{tuningPath: path}
	tn, err := cfg.loadTuning()
	gt.NoError(t, err)

	gt.Equal(t, tn.mirror.PageSize, 50)
	gt.Equal(t, tn.mirror.MaxAttempts, 3)
	gt.Equal(t, tn.mirror.BackoffBase, 500*time.Millisecond)
	gt.Equal(t, tn.artifactTimeout, 5*time.Minute)

	// Untouched values keep their defaults
	gt.Equal(t, tn.mirror.Concurrency, 4)
	gt.Equal(t, tn.mirror.BackoffMax, 30*time.Second)
	gt.Equal(t, tn.requestTimeout, 30*time.Second)
}

func TestTuningFileInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad yaml", "page_size: [oops"},
		{"bad duration", "backoff_base: soon"},
		{"negative duration", "backoff_base: -2s"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tuning.yml")
			gt.NoError(t, os.WriteFile(path, []byte(tc.body), 0644))

			cfg := &config{tuningPath: path}
			_, err := cfg.loadTuning()
			gt.Error(t, err)
		})
	}
}

func TestTuningFileMissing(t *testing.T) {
	cfg := &config{tuningPath: filepath.Join(t.TempDir(), "nope.yml")}
	_, err := cfg.loadTuning()
	gt.Error(t, err)
}

func TestStateDirDefault(t *testing.T) {
	cfg := &config{archiveDir: "/srv/archive", logLevel: "info"}
	cfg.setup()
	gt.Equal(t, cfg.stateDir, filepath.Join("/srv/archive", ".state"))

	cfg = &config{archiveDir: "/srv/archive", stateDir: "/var/lib/echosync", logLevel: "info"}
	cfg.setup()
	gt.Equal(t, cfg.stateDir, "/var/lib/echosync")
}

func TestNewRunnerRequiresAPIKey(t *testing.T) {
	cfg := &config{archiveDir: t.TempDir(), logLevel: "info"}
	cfg.setup()

	_, err := cfg.newRunner()
	gt.Error(t, err)

	cfg.apiKey = "xi-test"
	runner, err := cfg.newRunner()
	gt.NoError(t, err)
	gt.V(t, runner).NotNil()
}

package cli

import (
	"os"
	"path/filepath"
	"time"

	"github.com/harukit/echosync/pkg/adapter"
	"github.com/harukit/echosync/pkg/repository"
	"github.com/harukit/echosync/pkg/usecase/mirror"
	"github.com/harukit/echosync/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values shared across commands
type config struct {
	apiKey     string
	baseURL    string
	archiveDir string
	stateDir   string
	logLevel   string
	tuningPath string
}

// globalFlags returns common flags used across commands with
// destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "api-key",
			Usage:       "ElevenLabs API key",
			Sources:     cli.EnvVars("ELEVENLABS_API_KEY"),
			Destination: &cfg.apiKey,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "ElevenLabs API base URL",
			Value:       adapter.DefaultBaseURL,
			Sources:     cli.EnvVars("ECHOSYNC_BASE_URL"),
			Destination: &cfg.baseURL,
		},
		&cli.StringFlag{
			Name:        "archive-dir",
			Aliases:     []string{"a"},
			Usage:       "Root directory of the local archive",
			Value:       "./archive",
			Sources:     cli.EnvVars("ECHOSYNC_ARCHIVE_DIR"),
			Destination: &cfg.archiveDir,
		},
		&cli.StringFlag{
			Name:        "state-dir",
			Usage:       "Directory for operational state (default: <archive-dir>/.state)",
			Sources:     cli.EnvVars("ECHOSYNC_STATE_DIR"),
			Destination: &cfg.stateDir,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("ECHOSYNC_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "tuning",
			Usage:       "Path to YAML file with sync tuning parameters",
			Sources:     cli.EnvVars("ECHOSYNC_TUNING"),
			Destination: &cfg.tuningPath,
		},
	}
}

// setup applies configuration that every command needs
func (cfg *config) setup() {
	logging.Setup(cfg.logLevel)
	if cfg.stateDir == "" {
		cfg.stateDir = filepath.Join(cfg.archiveDir, ".state")
	}
}

// tuning carries the operational tuning parameters from the optional
// YAML file. The file is the tuning surface; absent values keep their
// defaults.
type tuning struct {
	mirror          mirror.Config
	requestTimeout  time.Duration
	artifactTimeout time.Duration
}

// tuningFile is the YAML shape; durations are Go duration strings
type tuningFile struct {
	PageSize        int    `yaml:"page_size"`
	Concurrency     int    `yaml:"concurrency"`
	MaxAttempts     int    `yaml:"max_attempts"`
	BackoffBase     string `yaml:"backoff_base"`
	BackoffMax      string `yaml:"backoff_max"`
	RequestTimeout  string `yaml:"request_timeout"`
	ArtifactTimeout string `yaml:"artifact_timeout"`
}

func (cfg *config) loadTuning() (*tuning, error) {
	t := &tuning{
		mirror:          mirror.DefaultConfig(),
		requestTimeout:  30 * time.Second,
		artifactTimeout: 2 * time.Minute,
	}
	if cfg.tuningPath == "" {
		return t, nil
	}

	data, err := os.ReadFile(cfg.tuningPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read tuning file", goerr.V("path", cfg.tuningPath))
	}

	var file tuningFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse tuning file", goerr.V("path", cfg.tuningPath))
	}

	if file.PageSize > 0 {
		t.mirror.PageSize = file.PageSize
	}
	if file.Concurrency > 0 {
		t.mirror.Concurrency = file.Concurrency
	}
	if file.MaxAttempts > 0 {
		t.mirror.MaxAttempts = file.MaxAttempts
	}
	if err := parseDuration(file.BackoffBase, &t.mirror.BackoffBase); err != nil {
		return nil, err
	}
	if err := parseDuration(file.BackoffMax, &t.mirror.BackoffMax); err != nil {
		return nil, err
	}
	if err := parseDuration(file.RequestTimeout, &t.requestTimeout); err != nil {
		return nil, err
	}
	if err := parseDuration(file.ArtifactTimeout, &t.artifactTimeout); err != nil {
		return nil, err
	}

	return t, nil
}

func parseDuration(value string, dst *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return goerr.Wrap(err, "invalid duration in tuning file", goerr.V("value", value))
	}
	if d <= 0 {
		return goerr.New("duration in tuning file must be positive", goerr.V("value", value))
	}
	*dst = d
	return nil
}

// newCheckpointStore creates the checkpoint store under the state dir
func (cfg *config) newCheckpointStore() *repository.CheckpointStore {
	return repository.NewCheckpointStore(cfg.stateDir)
}

// newArchive creates the archive writer
func (cfg *config) newArchive() *repository.Archive {
	return repository.NewArchive(cfg.archiveDir)
}

// newRunner wires the sync orchestrator with its dependencies
func (cfg *config) newRunner() (*mirror.Runner, error) {
	if cfg.apiKey == "" {
		return nil, goerr.New("api-key is required")
	}

	t, err := cfg.loadTuning()
	if err != nil {
		return nil, err
	}

	client := adapter.NewElevenLabs(cfg.baseURL, cfg.apiKey, t.requestTimeout, t.artifactTimeout)
	return mirror.New(client, cfg.newCheckpointStore(), cfg.newArchive(), t.mirror), nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr        string   `yaml:"addr"`
	AuthToken   string   `yaml:"authToken"` // bearer token for mutating routes (optional)
	CORSOrigins []string `yaml:"corsOrigins"`
}

type Monitor struct {
	Root               string        `yaml:"root"`
	Extensions         []string      `yaml:"extensions"`
	PollInterval       time.Duration `yaml:"pollInterval"` // ex: 1s
	WindowSize         int           `yaml:"windowSize"`
	CandidateThreshold float64       `yaml:"candidateThreshold"`
	ConfirmTimeout     time.Duration `yaml:"confirmTimeout"`
	ConfirmEveryWindow bool          `yaml:"confirmEveryWindow"`
	Watch              bool          `yaml:"watch"` // fsnotify wake-ups between ticks
	AutoStart          bool          `yaml:"autoStart"`
}

type Scorer struct {
	ZScoreK float64 `yaml:"zScoreK"`
	Warmup  int     `yaml:"warmup"` // records before scores leave 0
}

type Confirmer struct {
	ModelPath string  `yaml:"modelPath"`
	Threshold float64 `yaml:"threshold"` // overrides the model file when > 0
}

type Report struct {
	CSVPath       string `yaml:"csvPath"`
	DisplayBuffer int    `yaml:"displayBuffer"`
	SnapshotCron  string `yaml:"snapshotCron"` // ex: "@every 5m"; empty disables
	SnapshotDir   string `yaml:"snapshotDir"`
}

type Slack struct {
	Enabled bool   `yaml:"enabled"`
	Webhook string `yaml:"webhook"`
}

type Tracing struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Monitor   Monitor   `yaml:"monitor"`
	Scorer    Scorer    `yaml:"scorer"`
	Confirmer Confirmer `yaml:"confirmer"`
	Report    Report    `yaml:"report"`
	Storage   struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	RulesFile string  `yaml:"rulesFile"`
	Slack     Slack   `yaml:"slack"`
	Tracing   Tracing `yaml:"tracing"`
}

// Default returns a config with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the YAML file at path. A missing file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if len(c.Monitor.Extensions) == 0 {
		c.Monitor.Extensions = []string{".log", ".txt", ".csv"}
	}
	for i, e := range c.Monitor.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		c.Monitor.Extensions[i] = e
	}
	if c.Monitor.PollInterval <= 0 {
		c.Monitor.PollInterval = time.Second
	}
	if c.Monitor.WindowSize <= 0 {
		c.Monitor.WindowSize = 50
	}
	if c.Monitor.CandidateThreshold == 0 {
		c.Monitor.CandidateThreshold = 0.6
	}
	if c.Monitor.ConfirmTimeout == 0 {
		c.Monitor.ConfirmTimeout = 2 * time.Second
	}
	if c.Scorer.ZScoreK == 0 {
		c.Scorer.ZScoreK = 2.0
	}
	if c.Scorer.Warmup == 0 {
		c.Scorer.Warmup = 10
	}
	if c.Report.CSVPath == "" {
		c.Report.CSVPath = "realtime_report.csv"
	}
	if c.Report.DisplayBuffer <= 0 {
		c.Report.DisplayBuffer = 256
	}
	if c.Report.SnapshotDir == "" {
		c.Report.SnapshotDir = "data/snapshots"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/log-stream-detector.db"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "go-log-stream-detector"
	}
	if c.Tracing.OTLPEndpoint == "" {
		c.Tracing.OTLPEndpoint = "localhost:4317"
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1.0
	}
}

func (c *Config) Validate() error {
	// 0 significa "nao definido" e vira 0.6 em applyDefaults
	if c.Monitor.CandidateThreshold <= 0 || c.Monitor.CandidateThreshold > 1 {
		return fmt.Errorf("monitor.candidateThreshold must be within (0,1], got %v", c.Monitor.CandidateThreshold)
	}
	if c.Slack.Enabled && c.Slack.Webhook == "" {
		return fmt.Errorf("slack.enabled requires slack.webhook")
	}
	return nil
}

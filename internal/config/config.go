package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GeneratorConfig controls model loading and flow sampling.
type GeneratorConfig struct {
	Seed                uint64 `yaml:"seed"`
	ModelsDir           string `yaml:"models_dir"`
	Selection           string `yaml:"selection"`
	ConstrainToFlow     bool   `yaml:"constrain_to_flow"`
	Noise               bool   `yaml:"noise"`
	Protocol            string `yaml:"protocol"`
	Count               int    `yaml:"count"`
	NumWorkers          int    `yaml:"num_workers"`
	SizeOfResultChannel int    `yaml:"size_of_result_channel"`
	StartTime           string `yaml:"start_time"`
	FlowInterval        string `yaml:"flow_interval"`
}

// TextConfig holds the settings of the JSON-lines writer.
type TextConfig struct {
	RootPath string `yaml:"root_path"`
}

// GobConfig holds the settings of the gob writer.
type GobConfig struct {
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds the connection details for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NATSConfig holds the NATS connection and subject.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// AMQPConfig holds the RabbitMQ connection and routing.
type AMQPConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

// WriterDef defines one output writer from the config file.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	Text       TextConfig       `yaml:"text"`
	Gob        GobConfig        `yaml:"gob"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSConfig       `yaml:"nats"`
	AMQP       AMQPConfig       `yaml:"amqp"`
}

// APIConfig holds the listen addresses of ns-synth-api.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	GRPCAddr   string `yaml:"grpc_addr"`
	MaxStream  int    `yaml:"max_stream"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Generator GeneratorConfig `yaml:"generator"`
	Writers   []WriterDef     `yaml:"writers"`
	API       APIConfig       `yaml:"api"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyDefaults fills unset fields and rejects values that cannot work.
func (c *Config) applyDefaults() error {
	g := &c.Generator
	if g.ModelsDir == "" {
		g.ModelsDir = "models"
	}
	if g.Protocol == "" {
		g.Protocol = "TCP"
	}
	if g.Count < 0 {
		return fmt.Errorf("generator count must not be negative, got %d", g.Count)
	}
	if g.NumWorkers <= 0 {
		g.NumWorkers = 1
	}
	if g.SizeOfResultChannel <= 0 {
		g.SizeOfResultChannel = 1024
	}
	if g.StartTime != "" {
		if _, err := time.Parse(time.RFC3339Nano, g.StartTime); err != nil {
			return fmt.Errorf("generator start_time: %w", err)
		}
	}
	if g.FlowInterval != "" {
		d, err := time.ParseDuration(g.FlowInterval)
		if err != nil {
			return fmt.Errorf("generator flow_interval: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("generator flow_interval must not be negative")
		}
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.MaxStream <= 0 {
		c.API.MaxStream = 10000
	}
	return nil
}

// Start returns the configured start time, or now when none is set.
func (g GeneratorConfig) Start() time.Time {
	if g.StartTime == "" {
		return time.Now()
	}
	t, _ := time.Parse(time.RFC3339Nano, g.StartTime)
	return t
}

// Interval returns the spacing between the start times of consecutive batch
// flows; zero when unset.
func (g GeneratorConfig) Interval() time.Duration {
	d, _ := time.ParseDuration(g.FlowInterval)
	return d
}

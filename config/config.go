package config

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/common/model"
	yaml "gopkg.in/yaml.v3"
)

// DefaultConfig is used for any field the user leaves unset.
var DefaultConfig = Config{
	Host:         "127.0.0.1:5666",
	Interval:     model.Duration(5 * time.Second),
	QueryTimeout: model.Duration(10 * time.Second),
	Loglevel:     "info",
}

// CustomQuery configures one user-defined appliance query whose payload is
// turned into metrics by a JQ filter.
type CustomQuery struct {
	Name string `yaml:"name"`
	Req  string `yaml:"req"`
	JQ   string `yaml:"jq"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
func (q *CustomQuery) UnmarshalYAML(unmarshal func(any) error) error {
	type plain CustomQuery
	if err := unmarshal((*plain)(q)); err != nil {
		return err
	}
	if q.Name == "" || q.Req == "" || q.JQ == "" {
		return fmt.Errorf("custom queries require name, req, and jq to be set")
	}
	return nil
}

// Config represents the fnos exporter config file.
type Config struct {
	Host          string         `yaml:"host"`
	Username      string         `yaml:"username"`
	Password      string         `yaml:"password"`
	Interval      model.Duration `yaml:"interval"`
	QueryTimeout  model.Duration `yaml:"query_timeout"`
	Loglevel      string         `yaml:"loglevel"`
	Collectors    []string       `yaml:"collectors"`
	CustomQueries []CustomQuery  `yaml:"custom_queries"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
func (c *Config) UnmarshalYAML(unmarshal func(any) error) error {
	*c = DefaultConfig
	type plain Config
	if err := unmarshal((*plain)(c)); err != nil {
		return err
	}
	if c.Username == "" {
		return fmt.Errorf("config requires a username to be set")
	}
	if c.Password == "" {
		return fmt.Errorf("config requires a password to be set")
	}
	return nil
}

// SafeConfig is a mutex-enabled Config.
type SafeConfig struct {
	sync.RWMutex
	Config *Config
}

// Snapshot returns a copy of the current config for lock-free use.
func (sc *SafeConfig) Snapshot() Config {
	sc.RLock()
	defer sc.RUnlock()
	return *sc.Config
}

// AppLogLevel applies a log level to the application.
func (sc *SafeConfig) AppLogLevel() string {
	sc.RLock()
	defer sc.RUnlock()
	if sc.Config.Loglevel != "" {
		return sc.Config.Loglevel
	}
	return "info"
}

// ReloadConfig reads a given configuration file.
// If successfully read, the SafeConfig mutex is obtained and config structure rebuilt.
func (sc *SafeConfig) ReloadConfig(configFile string) error {
	c, err := NewConfigFromFile(configFile)
	if err != nil {
		return err
	}

	sc.Lock()
	sc.Config = c
	sc.Unlock()

	return nil
}

// NewConfigFromFile reads exporter config from an input file path.
func NewConfigFromFile(configFilePath string) (*Config, error) {
	file, err := os.Open(configFilePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readConfigFrom(file)
}

func readConfigFrom(r io.Reader) (*Config, error) {
	config := &Config{}
	if err := yaml.NewDecoder(r).Decode(config); err != nil {
		return config, err
	}

	return config, nil
}

package config

import (
	"cmp"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/inconshreveable/log15"
	"github.com/wtsi-hgi/library-exports/db"
)

const (
	defaultListen        = ":8080"
	defaultMaxUploadSize = 25 << 20
	defaultZipWorkers    = 4
)

type yamlConfig struct {
	Listen        string `yaml:"Listen"`
	Connection    string `yaml:"Connection"`
	SessionTTL    uint64 `yaml:"SessionTTL"`
	MaxUploadSize int64  `yaml:"MaxUploadSize"`
	ZipWorkers    int    `yaml:"ZipWorkers"`
	ReloadTime    uint64 `yaml:"ReloadTime"`
}

type Config struct {
	path string

	mu         sync.RWMutex
	yamlConfig yamlConfig
	stop       chan struct{}
}

// ParseConfig parses the Yaml file at the given path to get server config.
//
// If the ReloadTime setting is non-zero, the config will be reloaded after
// waiting that many seconds, allowing limits to be changed without restarting
// the server. Listen and Connection are only read at startup.
//
// The following is the config structure:
//
//	{
//	    Listen        string // host:port, default ":8080"
//	    Connection    string // sqlite:path or mysql:dsn
//	    SessionTTL    uint64 // seconds, default 600
//	    MaxUploadSize int64  // bytes per upload request, default 25MiB
//	    ZipWorkers    int    // files compressed in parallel, default 4
//	    ReloadTime    uint64 // seconds
//	}
func ParseConfig(path string) (*Config, error) {
	c := &Config{path: path, stop: make(chan struct{})}

	if err := c.loadConfig(); err != nil {
		return nil, err
	}

	return c, nil
}

// Default returns a Config with all settings at their defaults.
func Default() *Config {
	return &Config{stop: make(chan struct{})}
}

func (c *Config) loadConfig() error {
	defer c.scheduleReload()

	f, err := os.Open(c.path)
	if err != nil {
		return err
	}

	defer f.Close()

	var y yamlConfig

	if err = yaml.NewDecoder(f).Decode(&y); err != nil {
		return err
	}

	c.mu.Lock()
	c.yamlConfig = y
	c.mu.Unlock()

	return nil
}

func (c *Config) scheduleReload() {
	c.mu.RLock()
	reload := c.yamlConfig.ReloadTime
	c.mu.RUnlock()

	if reload == 0 {
		return
	}

	go c.reload(time.Second * time.Duration(reload)) //nolint:gosec
}

func (c *Config) reload(wait time.Duration) {
	select {
	case <-time.After(wait):
	case <-c.stop:
		return
	}

	if err := c.loadConfig(); err != nil {
		log15.Warn("error reloading config", "path", c.path, "err", err)
	}
}

// Stop prevents any further reloads of the config.
func (c *Config) Stop() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}

// GetListen returns the address the server should listen on.
func (c *Config) GetListen() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return cmp.Or(c.yamlConfig.Listen, defaultListen)
}

// GetConnection returns the print session database connection string.
func (c *Config) GetConnection() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.yamlConfig.Connection
}

// GetSessionTTL returns how long new print sessions accept uploads for.
func (c *Config) GetSessionTTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.yamlConfig.SessionTTL == 0 {
		return db.DefaultSessionTTL
	}

	return time.Second * time.Duration(c.yamlConfig.SessionTTL) //nolint:gosec
}

// GetMaxUploadSize returns the maximum size of an upload request body.
func (c *Config) GetMaxUploadSize() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.yamlConfig.MaxUploadSize <= 0 {
		return defaultMaxUploadSize
	}

	return c.yamlConfig.MaxUploadSize
}

// GetZipWorkers returns the number of files to compress in parallel when
// building an archive.
func (c *Config) GetZipWorkers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.yamlConfig.ZipWorkers <= 0 {
		return defaultZipWorkers
	}

	return c.yamlConfig.ZipWorkers
}

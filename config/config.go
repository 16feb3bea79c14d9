// Package config loads the client configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ynotnauk/go-convex/entities"
)

const envPrefix string = "CONVEX_"

var (
	ErrBlankAddress    error = errors.New("server address cannot be blank")
	ErrBlankConfig     error = errors.New("config path cannot be blank")
	ErrBlankNickname   error = errors.New("nickname cannot be blank")
	ErrInvalidAttempts error = errors.New("connect attempts must be at least 1")
	ErrInvalidPort     error = errors.New("server port must be between 1 and 65535")
)

type ServerConfig struct {
	Address         string `yaml:"address"`
	ArchiveSize     int    `yaml:"archive_size"`
	ConnectAttempts int    `yaml:"connect_attempts"`
	Port            int    `yaml:"port"`
	TLS             bool   `yaml:"tls"`
}

type OutboundConfig struct {
	// Burst and Rate bound outbound lines per second. A zero rate disables
	// flood control.
	Burst int     `yaml:"burst"`
	Rate  float64 `yaml:"rate"`
}

type LogConfig struct {
	File          string        `yaml:"file"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Level         string        `yaml:"level"`
}

type Config struct {
	ApiKeys    map[string]string `yaml:"api_keys"`
	Channels   []string          `yaml:"channels"`
	Identity   entities.Identity `yaml:"identity"`
	IgnoreList []string          `yaml:"ignore_list"`
	Log        LogConfig         `yaml:"log"`
	Outbound   OutboundConfig    `yaml:"outbound"`
	Plugins    []string          `yaml:"plugins"`
	Server     ServerConfig      `yaml:"server"`
}

// ApplyEnv overrides file values with CONVEX_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) Save(path string) error {
	if path == "" {
		return ErrBlankConfig
	}
	contents, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, contents, 0600)
}

func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return ErrBlankAddress
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ErrInvalidPort
	}
	if c.Server.ConnectAttempts < 1 {
		return ErrInvalidAttempts
	}
	if c.Identity.Nickname == "" {
		return ErrBlankNickname
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SERVER_ADDRESS": &c.Server.Address,
		"NICKNAME":       &c.Identity.Nickname,
		"REALNAME":       &c.Identity.Realname,
		"PASSWORD":       &c.Identity.Password,
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_FILE":       &c.Log.File,
	}
	for name, target := range strs {
		if value, ok := lookup(envPrefix + name); ok {
			*target = value
		}
	}
	if value, ok := lookup(envPrefix + "SERVER_PORT"); ok {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%sSERVER_PORT: %w", envPrefix, err)
		}
		c.Server.Port = port
	}
	if value, ok := lookup(envPrefix + "SERVER_TLS"); ok {
		tls, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%sSERVER_TLS: %w", envPrefix, err)
		}
		c.Server.TLS = tls
	}
	if value, ok := lookup(envPrefix + "CHANNELS"); ok {
		c.Channels = splitList(value)
	}
	if value, ok := lookup(envPrefix + "PLUGINS"); ok {
		c.Plugins = splitList(value)
	}
	return nil
}

func Default() *Config {
	return &Config{
		ApiKeys: map[string]string{},
		Identity: entities.Identity{
			Nickname: "convex",
			Realname: "Convex",
		},
		Log: LogConfig{
			File:          filepath.Join("logs", "convex.log"),
			FlushInterval: 5 * time.Second,
			Level:         "info",
		},
		Outbound: OutboundConfig{
			Burst: 5,
			Rate:  2,
		},
		Server: ServerConfig{
			Address:         "irc.libera.chat",
			ArchiveSize:     200,
			ConnectAttempts: 3,
			Port:            6697,
			TLS:             true,
		},
	}
}

// Load reads path on top of the defaults, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrBlankConfig
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config := Default()
	if err := yaml.Unmarshal(contents, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadEnvFiles loads .env style files into the process environment. Missing
// files are skipped; variables already set are left alone.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// LoadOrCreate writes the default configuration to path when it does not
// exist yet and then loads it. It reports whether the file was created.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		return nil, false, ErrBlankConfig
	}
	created := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Default().Save(path); err != nil {
			return nil, false, err
		}
		created = true
	}
	config, err := Load(path)
	if err != nil {
		return nil, created, err
	}
	return config, created, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

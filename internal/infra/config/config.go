package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Download    DownloadConfig    `mapstructure:"download" yaml:"download"`
	Remote      RemoteConfig      `mapstructure:"remote" yaml:"remote"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output"`
	Transcriber TranscriberConfig `mapstructure:"transcriber" yaml:"transcriber"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Store       StoreConfig       `mapstructure:"store" yaml:"store"`

	Port string `mapstructure:"port" yaml:"port"`
}

type DownloadConfig struct {
	Dir         string        `mapstructure:"dir" yaml:"dir"`
	CacheDir    string        `mapstructure:"cache_dir" yaml:"cache_dir"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	ChunkSize   int64         `mapstructure:"chunk_size" yaml:"chunk_size"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	AutoDelete  bool          `mapstructure:"auto_delete" yaml:"auto_delete"`
}

type RemoteConfig struct {
	// Quality selects the audio stream tier: "high" takes the maximum
	// bitrate, anything else takes the candidate closest to 128 kbps.
	Quality string `mapstructure:"quality" yaml:"quality"`
}

type OutputConfig struct {
	// Mode is one of "clipboard", "file" or "both".
	Mode string `mapstructure:"mode" yaml:"mode"`
	Dir  string `mapstructure:"dir" yaml:"dir"`
	// ClipboardCommand overrides clipboard tool discovery, e.g. "wl-copy".
	ClipboardCommand string `mapstructure:"clipboard_command" yaml:"clipboard_command"`
}

type TranscriberConfig struct {
	// Backend is "whispercli" (local binary) or "openai" (HTTP API).
	Backend  string `mapstructure:"backend" yaml:"backend"`
	Binary   string `mapstructure:"binary" yaml:"binary"`
	Model    string `mapstructure:"model" yaml:"model"`
	Language string `mapstructure:"language" yaml:"language"`

	OpenAIBase  string `mapstructure:"openai_base" yaml:"openai_base"`
	OpenAIKey   string `mapstructure:"openai_key" yaml:"openai_key"`
	OpenAIModel string `mapstructure:"openai_model" yaml:"openai_model"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}

	v := viper.New()

	// Set Defaults
	v.SetDefault("port", "8090")
	v.SetDefault("download.dir", "./downloads")
	v.SetDefault("download.cache_dir", "./cache")
	v.SetDefault("download.cache_ttl", "1h")
	v.SetDefault("download.chunk_size", 2*1024*1024)
	v.SetDefault("download.concurrency", 4)
	v.SetDefault("download.auto_delete", false)
	v.SetDefault("remote.quality", "high")
	v.SetDefault("output.mode", "both")
	v.SetDefault("output.dir", "./transcripts")
	v.SetDefault("transcriber.backend", "whispercli")
	v.SetDefault("transcriber.binary", "whisper-cli")
	v.SetDefault("transcriber.model", "models/ggml-base.en.bin")
	v.SetDefault("transcriber.openai_base", "https://api.openai.com/v1")
	v.SetDefault("transcriber.openai_model", "whisper-1")
	v.SetDefault("log.path", "scribeq.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.path", "scribeq.db")

	// Read config file when present. The daemon runs fine on defaults plus
	// environment variables, so only an explicitly requested file is required.
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %s", path)
	} else if _, errEx := os.Stat("config.yaml.example"); errEx == nil {
		return nil, fmt.Errorf("configuration file 'config.yaml' not found\n\n" +
			"To fix this, run:\n" +
			"  cp config.yaml.example config.yaml\n" +
			"Then adjust it for your machine.")
	}

	// Support Environment Variables
	v.SetEnvPrefix("SCRIBEQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	c.Output.Mode = strings.ToLower(c.Output.Mode)
	switch c.Output.Mode {
	case "clipboard", "file", "both":
	default:
		return fmt.Errorf("output.mode must be clipboard, file or both, got %q", c.Output.Mode)
	}

	c.Remote.Quality = strings.ToLower(c.Remote.Quality)
	if c.Remote.Quality == "" {
		c.Remote.Quality = "high"
	}

	c.Transcriber.Backend = strings.ToLower(c.Transcriber.Backend)
	switch c.Transcriber.Backend {
	case "whispercli":
	case "openai":
		if c.Transcriber.OpenAIKey == "" {
			return fmt.Errorf("transcriber.openai_key is required when backend is openai")
		}
	default:
		return fmt.Errorf("transcriber.backend must be whispercli or openai, got %q", c.Transcriber.Backend)
	}

	if c.Download.ChunkSize <= 0 {
		c.Download.ChunkSize = 2 * 1024 * 1024
	}

	if c.Download.Concurrency <= 0 {
		// Default to a sane value
		c.Download.Concurrency = 4
	}

	if c.Download.CacheTTL <= 0 {
		c.Download.CacheTTL = time.Hour
	}

	if c.Download.Dir == "" {
		c.Download.Dir = "./downloads"
	}

	if c.Download.CacheDir == "" {
		c.Download.CacheDir = "./cache"
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./transcripts"
	}

	return nil
}

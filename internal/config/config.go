package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/gmsas95/docrefine/internal/errors"
)

// Config holds all configuration for docrefine. It is built once by Load and
// passed by value to constructors; nothing mutates it afterwards.
type Config struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Refine   RefineConfig   `mapstructure:"refine"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Output   OutputConfig   `mapstructure:"output"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Server   ServerConfig   `mapstructure:"server"`
}

// ServiceConfig holds the model service endpoint
type ServiceConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Probe   bool   `mapstructure:"probe"`
}

// RefineConfig holds decoding options and request pacing
type RefineConfig struct {
	Temperature       float64       `mapstructure:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Timeout           int           `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Breaker           BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig holds circuit breaker settings for the model service
type BreakerConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Failures int  `mapstructure:"failures"`
	Cooldown int  `mapstructure:"cooldown"`
}

// OCRConfig holds OCR engine and document loading settings
type OCRConfig struct {
	Languages    []string `mapstructure:"languages"`
	PDFDPI       int      `mapstructure:"pdf_dpi"`
	PdftoppmPath string   `mapstructure:"pdftoppm_path"`
	Cache        bool     `mapstructure:"cache"`
}

// PipelineConfig holds run defaults
type PipelineConfig struct {
	Tasks        []string `mapstructure:"tasks"`
	PreviewChars int      `mapstructure:"preview_chars"`
}

// OutputConfig holds result file settings
type OutputConfig struct {
	Dir     string `mapstructure:"dir"`
	Pattern string `mapstructure:"pattern"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path"`
}

// MetricsConfig holds metrics export settings
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Address  string `mapstructure:"address"`
	Port     int    `mapstructure:"port"`
	InputDir string `mapstructure:"input_dir"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.SetDefault("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "docrefine.db"))
	v.SetDefault("storage.badger_path", filepath.Join(dataDir, "ocr-cache"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "docrefine.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.WrapAs(apperrors.ErrConfigInvalid, fmt.Errorf("failed to read config: %w", err))
		}
	}

	// Environment variables (DOCREFINE_SERVICE_MODEL, DOCREFINE_REFINE_MAX_TOKENS, etc.)
	v.SetEnvPrefix("DOCREFINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.WrapAs(apperrors.ErrConfigInvalid, fmt.Errorf("failed to unmarshal config: %w", err))
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration Load would produce with no file and no
// environment, rooted at dataDir. Tests and embedders use it directly.
func Default(dataDir string) Config {
	return Config{
		Service: ServiceConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen2.5vl:latest",
			Probe:   true,
		},
		Refine: RefineConfig{
			Temperature: 0.1,
			MaxTokens:   2000,
			Breaker:     BreakerConfig{Failures: 3, Cooldown: 30},
		},
		OCR: OCRConfig{
			Languages:    []string{"spa", "eng"},
			PDFDPI:       300,
			PdftoppmPath: "pdftoppm",
			Cache:        true,
		},
		Pipeline: PipelineConfig{
			Tasks:        []string{"clean", "extract", "summarize"},
			PreviewChars: 500,
		},
		Output: OutputConfig{
			Dir:     ".",
			Pattern: "resultado_{stem}.json",
		},
		Storage: StorageConfig{
			DataDir:    dataDir,
			SQLitePath: filepath.Join(dataDir, "docrefine.db"),
			BadgerPath: filepath.Join(dataDir, "ocr-cache"),
		},
		Server: ServerConfig{
			Address: "127.0.0.1",
			Port:    8088,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default("")

	v.SetDefault("service.base_url", d.Service.BaseURL)
	v.SetDefault("service.model", d.Service.Model)
	v.SetDefault("service.probe", d.Service.Probe)

	v.SetDefault("refine.temperature", d.Refine.Temperature)
	v.SetDefault("refine.max_tokens", d.Refine.MaxTokens)
	v.SetDefault("refine.timeout", 0)
	v.SetDefault("refine.requests_per_second", 0)
	v.SetDefault("refine.breaker.enabled", false)
	v.SetDefault("refine.breaker.failures", d.Refine.Breaker.Failures)
	v.SetDefault("refine.breaker.cooldown", d.Refine.Breaker.Cooldown)

	v.SetDefault("ocr.languages", d.OCR.Languages)
	v.SetDefault("ocr.pdf_dpi", d.OCR.PDFDPI)
	v.SetDefault("ocr.pdftoppm_path", d.OCR.PdftoppmPath)
	v.SetDefault("ocr.cache", d.OCR.Cache)

	v.SetDefault("pipeline.tasks", d.Pipeline.Tasks)
	v.SetDefault("pipeline.preview_chars", d.Pipeline.PreviewChars)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.pattern", d.Output.Pattern)

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.input_dir", "")
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "docrefine")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "docrefine")
}

// loadEnvOverrides applies the Ollama-style variables users already have set
func loadEnvOverrides(cfg *Config) {
	if url := ResolveEnvWithAliases("DOCREFINE_SERVICE_BASE_URL"); url != "" {
		cfg.Service.BaseURL = url
	}
	if model := ResolveEnvWithAliases("DOCREFINE_SERVICE_MODEL"); model != "" {
		cfg.Service.Model = model
	}

	cfg.Service.BaseURL = strings.TrimRight(cfg.Service.BaseURL, "/")
	if cfg.Service.BaseURL != "" && !strings.Contains(cfg.Service.BaseURL, "://") {
		cfg.Service.BaseURL = "http://" + cfg.Service.BaseURL
	}
}

func validate(cfg *Config) error {
	invalid := func(format string, args ...interface{}) error {
		return apperrors.WrapAs(apperrors.ErrConfigInvalid, fmt.Errorf(format, args...))
	}

	if cfg.Service.BaseURL == "" {
		return invalid("service.base_url is required")
	}
	if cfg.Service.Model == "" {
		return invalid("service.model is required")
	}
	if cfg.Refine.MaxTokens <= 0 {
		return invalid("refine.max_tokens must be positive, got %d", cfg.Refine.MaxTokens)
	}
	if cfg.Refine.Temperature < 0 {
		return invalid("refine.temperature must not be negative")
	}
	if cfg.Refine.RequestsPerSecond < 0 {
		return invalid("refine.requests_per_second must not be negative")
	}
	if cfg.OCR.PDFDPI <= 0 {
		return invalid("ocr.pdf_dpi must be positive, got %d", cfg.OCR.PDFDPI)
	}
	if cfg.Pipeline.PreviewChars < 0 {
		cfg.Pipeline.PreviewChars = 0
	}
	if cfg.Output.Pattern == "" {
		cfg.Output.Pattern = "resultado_{stem}.json"
	}

	return nil
}

// RefineTimeout returns the per-request timeout, zero meaning none
func (c *Config) RefineTimeout() time.Duration {
	return time.Duration(c.Refine.Timeout) * time.Second
}

// OutputPath derives the default result path for a source document
func (c *Config) OutputPath(sourcePath string) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	name := strings.ReplaceAll(c.Output.Pattern, "{stem}", stem)
	return filepath.Join(c.Output.Dir, name)
}

// ServerAddr returns the listen address for the HTTP API
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

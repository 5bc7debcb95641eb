package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	API    APIConfig    `yaml:"api" mapstructure:"api"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// APIConfig points the client at the parsing service.
type APIConfig struct {
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// ExportConfig controls where spreadsheets are saved.
type ExportConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	FileName string `yaml:"file_name" mapstructure:"file_name"`
}

// ServerConfig configures the local dev server.
type ServerConfig struct {
	Port              int       `yaml:"port" mapstructure:"port"`
	MaxBodyBytes      int64     `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RequestsPerMinute int       `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	MaxCharsPerItem   int       `yaml:"max_chars_per_item" mapstructure:"max_chars_per_item"`
	AllowedOrigins    []string  `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	OCR               OCRConfig `yaml:"ocr" mapstructure:"ocr"`
}

// OCRConfig selects the image text extractor.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	TesseractPath string `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout_secs", 0)
	v.SetDefault("api.requests_per_minute", 0)
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.file_name", "parsed_results.xlsx")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.max_body_bytes", 200_000)
	v.SetDefault("server.requests_per_minute", 120)
	v.SetDefault("server.max_chars_per_item", 50_000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("server.ocr.provider", "tesseract")
	v.SetDefault("server.ocr.tesseract_path", "tesseract")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "client" for commands that talk to the service and "serve" for the dev
// server.
func (c *Config) Validate(mode string) error {
	var errs []error
	switch mode {
	case "client":
		if strings.TrimSpace(c.API.BaseURL) == "" {
			errs = append(errs, errors.New("api.base_url is required"))
		}
		if c.API.TimeoutSecs < 0 {
			errs = append(errs, errors.New("api.timeout_secs must be >= 0"))
		}
		if c.API.RequestsPerMinute < 0 {
			errs = append(errs, errors.New("api.requests_per_minute must be >= 0"))
		}
		if strings.ContainsAny(c.Export.FileName, `/\`) || c.Export.FileName == "" {
			errs = append(errs, fmt.Errorf("export.file_name must be a plain file name, got %q", c.Export.FileName))
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Errorf("server.port must be > 0 and <= 65535, got %d", c.Server.Port))
		}
		if c.Server.MaxBodyBytes <= 0 {
			errs = append(errs, errors.New("server.max_body_bytes must be > 0"))
		}
		if c.Server.MaxCharsPerItem <= 0 {
			errs = append(errs, errors.New("server.max_chars_per_item must be > 0"))
		}
		if c.Server.OCR.Provider == "mistral" && c.Server.OCR.MistralKey == "" {
			errs = append(errs, errors.New("server.ocr.mistral_api_key is required for the mistral provider"))
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Wrap(errors.Join(errs...), "config: invalid")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

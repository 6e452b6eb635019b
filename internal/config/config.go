// Package config loads process configuration for go-lumen.
//
// Precedence: environment variables override the YAML config file, which
// overrides built-in defaults. A .env file in the working directory is
// loaded first so local development does not need exported variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all process-level settings.
type Config struct {
	// Server
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`
	DataDir  string `yaml:"data_dir"`

	// Auth
	SessionSecret      string `yaml:"session_secret"`
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	GoogleRedirectURL  string `yaml:"google_redirect_url"`

	// Camera
	CameraIndex int `yaml:"camera_index"`

	// Detector
	ModelPath         string `yaml:"model_path"`
	DetectionInterval int    `yaml:"detection_interval"`

	// Language model
	OpenAIAPIKey  string        `yaml:"openai_api_key"`
	OpenAIBaseURL string        `yaml:"openai_base_url"`
	GeminiAPIKey  string        `yaml:"gemini_api_key"`
	VisionTimeout time.Duration `yaml:"vision_timeout"`
	Language      string        `yaml:"language"`

	// Speech
	Voice string `yaml:"voice"`

	// Memory / logging
	CooldownSeconds int `yaml:"cooldown_seconds"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Addr:              ":8000",
		LogLevel:          "info",
		DataDir:           "data",
		CameraIndex:       0,
		ModelPath:         "models/yolov8n.onnx",
		DetectionInterval: 10,
		OpenAIBaseURL:     "https://api.openai.com/v1",
		VisionTimeout:     8 * time.Second,
		Language:          "English",
		Voice:             "en-US-AriaNeural",
		CooldownSeconds:   60,
	}
}

// Load reads configuration from an optional .env file, an optional YAML
// file, and the environment.
func Load() (Config, error) {
	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := Default()

	path := os.Getenv("LUMEN_CONFIG")
	if path == "" {
		if _, err := os.Stat("lumen.yaml"); err == nil {
			path = "lumen.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.SessionSecret == "" {
		return cfg, fmt.Errorf("SESSION_SECRET is required")
	}
	if cfg.DetectionInterval < 1 {
		cfg.DetectionInterval = 1
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Addr, "LUMEN_ADDR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.DataDir, "LUMEN_DATA_DIR")
	setString(&c.SessionSecret, "SESSION_SECRET")
	setString(&c.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&c.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.GoogleRedirectURL, "GOOGLE_REDIRECT_URL")
	setInt(&c.CameraIndex, "CAMERA_INDEX")
	setString(&c.ModelPath, "MODEL_PATH")
	setInt(&c.DetectionInterval, "DETECTION_INTERVAL")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&c.GeminiAPIKey, "GOOGLE_API_KEY")
	setString(&c.Language, "TARGET_LANGUAGE")
	setString(&c.Voice, "TTS_VOICE")
	setInt(&c.CooldownSeconds, "LOG_COOLDOWN_SECONDS")

	if v := os.Getenv("VISION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.VisionTimeout = d
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

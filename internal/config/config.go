package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RequestMode selects the engine request channel implementation.
const (
	ModeThreaded = "threaded"
	ModeCoop     = "coop"
)

type AppConfig struct {
	// EngineBaseURL is the engine directory endpoint.
	EngineBaseURL string `yaml:"engine_base_url"`
	// EngineID / VariantID preselect an engine; empty means "first offered"
	// and "best available variant".
	EngineID  string `yaml:"engine_id"`
	VariantID string `yaml:"variant_id"`

	// RequestMode is "threaded" or "coop".
	RequestMode string `yaml:"request_mode"`
	// RequestTimeout caps a single engine call. Zero disables the client-side
	// timeout; a stuck request is then only resolved by a user action.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	PlayerColor string `yaml:"player_color"`

	// RedisURL enables session autosave when set.
	RedisURL   string        `yaml:"redis_url"`
	Profile    string        `yaml:"profile"`
	SessionTTL time.Duration `yaml:"session_ttl"`

	// FrameRate is the render/poll frequency in frames per second.
	FrameRate int `yaml:"frame_rate"`

	// ExportDir receives PNG board exports.
	ExportDir string `yaml:"export_dir"`
}

// Load reads the optional YAML config file (NN_CHESS_CONFIG or
// nn-chess.yaml), applies environment overrides, and validates.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EngineBaseURL: "https://api.unchessful.games",
		RequestMode:   ModeThreaded,
		PlayerColor:   "white",
		Profile:       "default",
		SessionTTL:    24 * time.Hour,
		FrameRate:     30,
		ExportDir:     ".",
	}

	path := strings.TrimSpace(os.Getenv("NN_CHESS_CONFIG"))
	if path == "" {
		path = "nn-chess.yaml"
	}
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	cfg.RequestMode = strings.ToLower(strings.TrimSpace(cfg.RequestMode))
	switch cfg.RequestMode {
	case ModeThreaded, ModeCoop:
	case "":
		cfg.RequestMode = ModeThreaded
	default:
		return nil, fmt.Errorf("unknown request mode %q", cfg.RequestMode)
	}

	cfg.PlayerColor = strings.ToLower(strings.TrimSpace(cfg.PlayerColor))
	if cfg.PlayerColor != "white" && cfg.PlayerColor != "black" {
		return nil, fmt.Errorf("player color must be white or black, got %q", cfg.PlayerColor)
	}

	if strings.TrimSpace(cfg.EngineBaseURL) == "" {
		return nil, errors.New("engine base url is required")
	}
	if cfg.FrameRate <= 0 || cfg.FrameRate > 120 {
		cfg.FrameRate = 30
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.RequestTimeout < 0 {
		cfg.RequestTimeout = 0
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	setString(&cfg.EngineBaseURL, "ENGINE_BASE_URL")
	setString(&cfg.EngineID, "ENGINE_ID")
	setString(&cfg.VariantID, "ENGINE_VARIANT_ID")
	setString(&cfg.RequestMode, "REQUEST_MODE")
	setString(&cfg.PlayerColor, "PLAYER_COLOR")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.Profile, "NN_CHESS_PROFILE")
	setString(&cfg.ExportDir, "EXPORT_DIR")
	setDuration(&cfg.RequestTimeout, "REQUEST_TIMEOUT")
	setDuration(&cfg.SessionTTL, "SESSION_TTL")
	setInt(&cfg.FrameRate, "FRAME_RATE")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			*dst = d
		}
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			*dst = n
		}
	}
}

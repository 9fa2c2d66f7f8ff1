package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the client core.
type Config struct {
	Server  ServerConfig
	Audio   AudioConfig
	Session SessionConfig
}

type ServerConfig struct {
	BaseURL    string
	StreamPath string

	// The server defines no timeouts of its own; these bound every call.
	ChatTimeout       time.Duration
	EndSessionTimeout time.Duration
	LookupTimeout     time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	PlayerCommand   string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	ChunkInterval   time.Duration
}

type SessionConfig struct {
	AutoSubmit bool
	CompactUI  bool
	CachePath  string
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	cachePath := strings.TrimSpace(os.Getenv("LINGCHAT_CACHE_DIR"))
	if cachePath == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, errors.New("could not determine user config directory")
		}
		cachePath = filepath.Join(configDir, "lingchat", "cache")
	}

	cfg := Config{
		Server: ServerConfig{
			BaseURL:           envOrDefault("LINGCHAT_SERVER_URL", "http://127.0.0.1:5000"),
			StreamPath:        envOrDefault("LINGCHAT_STREAM_PATH", "/stream"),
			ChatTimeout:       envOrDefaultDuration("LINGCHAT_CHAT_TIMEOUT_MS", 30*time.Second),
			EndSessionTimeout: envOrDefaultDuration("LINGCHAT_END_SESSION_TIMEOUT_MS", 60*time.Second),
			LookupTimeout:     envOrDefaultDuration("LINGCHAT_LOOKUP_TIMEOUT_MS", 10*time.Second),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("LINGCHAT_FFMPEG_COMMAND", "ffmpeg"),
			PlayerCommand:   envOrDefault("LINGCHAT_FFPLAY_COMMAND", "ffplay"),
			InputFormat:     envOrDefault("LINGCHAT_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("LINGCHAT_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("LINGCHAT_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("LINGCHAT_CHANNELS", 1),
			ChunkInterval:   envOrDefaultDuration("LINGCHAT_CHUNK_INTERVAL_MS", time.Second),
		},
		Session: SessionConfig{
			AutoSubmit: envOrDefaultBool("LINGCHAT_AUTO_SUBMIT", false),
			CompactUI:  envOrDefaultBool("LINGCHAT_COMPACT_UI", false),
			CachePath:  cachePath,
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkInterval <= 0 {
		cfg.Audio.ChunkInterval = time.Second
	}
	if !strings.HasPrefix(cfg.Server.StreamPath, "/") {
		cfg.Server.StreamPath = "/" + cfg.Server.StreamPath
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

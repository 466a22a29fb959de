package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Engine, resolver, and decoder kinds.
const (
	EngineHTTP = "http"
	EngineStub = "stub"

	ResolverYtDlp       = "ytdlp"
	ResolverPassthrough = "passthrough"

	DecoderFFmpeg = "ffmpeg"
	DecoderFile   = "file"
)

// Config holds the server configuration.
type Config struct {
	ServerAddr string `yaml:"server_addr"`
	LogLevel   string `yaml:"log_level"`

	Engine         string        `yaml:"engine"`
	WhisperModel   string        `yaml:"whisper_model"`
	WhisperURL     string        `yaml:"whisper_url"`
	WhisperTimeout time.Duration `yaml:"whisper_timeout"`

	Resolver  string `yaml:"resolver"`
	YtDlpPath string `yaml:"ytdlp_path"`

	Decoder          string        `yaml:"decoder"`
	FFmpegPath       string        `yaml:"ffmpeg_path"`
	FileEmitInterval time.Duration `yaml:"file_emit_interval"`
	ChunkSeconds     int           `yaml:"chunk_seconds"`
	RecentCap        int           `yaml:"recent_cap"`

	RedisAddr    string `yaml:"redis_addr"`
	RedisChannel string `yaml:"redis_channel"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ServerAddr:   ":8080",
		LogLevel:     "info",
		Engine:       EngineHTTP,
		WhisperModel: "tiny",
		WhisperURL:   "http://127.0.0.1:8000",
		Resolver:     ResolverYtDlp,
		YtDlpPath:    "yt-dlp",
		Decoder:      DecoderFFmpeg,
		FFmpegPath:   "ffmpeg",
		ChunkSeconds: 8,
		RecentCap:    200,
		RedisChannel: "streamcaption:events",
	}
}

// Load builds the configuration from defaults, a .env file in the working
// directory, the YAML file named by STREAM_CONFIG_FILE, and finally the
// environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("STREAM_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddr = getEnv("APP_SERVER_ADDR", c.ServerAddr)
	c.LogLevel = getEnv("STREAM_LOG_LEVEL", c.LogLevel)
	c.Engine = getEnv("STREAM_ENGINE", c.Engine)
	c.WhisperModel = getEnv("WHISPER_MODEL", c.WhisperModel)
	c.WhisperURL = getEnv("WHISPER_SERVER_URL", c.WhisperURL)
	c.WhisperTimeout = getDurationEnv("WHISPER_TIMEOUT", c.WhisperTimeout)
	c.Resolver = getEnv("STREAM_RESOLVER", c.Resolver)
	c.YtDlpPath = getEnv("YTDLP_PATH", c.YtDlpPath)
	c.Decoder = getEnv("STREAM_DECODER", c.Decoder)
	c.FFmpegPath = getEnv("FFMPEG_PATH", c.FFmpegPath)
	c.FileEmitInterval = getDurationEnv("STREAM_FILE_EMIT_INTERVAL", c.FileEmitInterval)
	c.ChunkSeconds = getIntEnv("STREAM_CHUNK_SECONDS", c.ChunkSeconds)
	c.RecentCap = getIntEnv("STREAM_RECENT_CAP", c.RecentCap)
	c.RedisAddr = getEnv("STREAM_REDIS_ADDR", c.RedisAddr)
	c.RedisChannel = getEnv("STREAM_REDIS_CHANNEL", c.RedisChannel)
}

// Validate rejects unknown component kinds and out of range values.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineHTTP, EngineStub:
	default:
		return fmt.Errorf("invalid engine %q (must be %s or %s)", c.Engine, EngineHTTP, EngineStub)
	}
	switch c.Resolver {
	case ResolverYtDlp, ResolverPassthrough:
	default:
		return fmt.Errorf("invalid resolver %q (must be %s or %s)", c.Resolver, ResolverYtDlp, ResolverPassthrough)
	}
	switch c.Decoder {
	case DecoderFFmpeg, DecoderFile:
	default:
		return fmt.Errorf("invalid decoder %q (must be %s or %s)", c.Decoder, DecoderFFmpeg, DecoderFile)
	}
	if c.ChunkSeconds <= 0 {
		return fmt.Errorf("chunk seconds must be positive, got %d", c.ChunkSeconds)
	}
	if c.RecentCap <= 0 {
		return fmt.Errorf("recent cap must be positive, got %d", c.RecentCap)
	}
	if c.WhisperTimeout < 0 {
		return errors.New("whisper timeout cannot be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid duration for %s: %v\n", key, err)
		return fallback
	}
	if d < 0 {
		return fallback
	}
	return d
}

func getIntEnv(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid integer for %s: %v\n", key, err)
		return fallback
	}
	return n
}

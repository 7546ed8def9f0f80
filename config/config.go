package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// DefaultPath is where Load looks when no explicit path is given.
const DefaultPath = "config/config.yaml"

type Config struct {
	Env string `yaml:"env"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	MySQL struct {
		DSN          string `yaml:"dsn"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		MaxIdleConns int    `yaml:"max_idle_conns"`
	} `yaml:"mysql"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Storage struct {
		// Backend is "minio" or "filesystem".
		Backend  string `yaml:"backend"`
		BasePath string `yaml:"base_path"`
		BaseURL  string `yaml:"base_url"`
	} `yaml:"storage"`

	MinIO struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"access_key"`
		SecretKey  string `yaml:"secret_key"`
		Bucket     string `yaml:"bucket"`
		UseSSL     bool   `yaml:"use_ssl"`
		ExpiryHour int    `yaml:"expiry_hours"`
	} `yaml:"minio"`

	Providers struct {
		Image ProviderConfig `yaml:"image"`
		TTS   ProviderConfig `yaml:"tts"`
		Music ProviderConfig `yaml:"music"`
	} `yaml:"providers"`

	Queue QueueConfig `yaml:"queue"`

	Render RenderConfig `yaml:"render"`

	Lease struct {
		// Backend is "redis" or "local".
		Backend string        `yaml:"backend"`
		TTL     time.Duration `yaml:"ttl"`
	} `yaml:"lease"`
}

// ProviderConfig drives provider selection for one capability family.
// UseMock left unset means mock.
type ProviderConfig struct {
	UseMock  *bool  `yaml:"use_mock"`
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

type QueueConfig struct {
	Concurrency int            `yaml:"concurrency"`
	// Weights from the file are merged over the default weights.
	Weights     map[string]int `yaml:"weights"`
	MaxRetry    int            `yaml:"max_retry"`
	Timeout     time.Duration  `yaml:"timeout"`
	Retention   time.Duration  `yaml:"retention"`
}

type RenderConfig struct {
	FFmpegBinary     string  `yaml:"ffmpeg_binary"`
	FPS              int     `yaml:"fps"`
	CRF              int     `yaml:"crf"`
	Preset           string  `yaml:"preset"`
	AudioBitrate     string  `yaml:"audio_bitrate"`
	MusicDuckDB      float64 `yaml:"music_duck_db"`
	FCPXMLMusicDB    float64 `yaml:"fcpxml_music_db"`
	ScratchRoot      string  `yaml:"scratch_root"`
	ClipParallelism  int     `yaml:"clip_parallelism"`
	FontSize         float64 `yaml:"font_size"`
	SideMargin       int     `yaml:"side_margin"`
	LineHeight       int     `yaml:"line_height"`
	MaxDownloadBytes int64   `yaml:"max_download_bytes"`
}

// Load starts from Default, decodes the YAML file at path (DefaultPath when
// empty) over it, layers .env and environment overrides on top and validates
// the result. Keys absent from the file keep their defaults; keys present keep
// their value even when it is zero.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	cfg := Default()
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only configuration is allowed
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Env, "PIPELINE_ENV")
	setString(&c.Server.Port, "PORT")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.MySQL.DSN, "MYSQL_DSN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Storage.Backend, "STORAGE_BACKEND")
	setString(&c.MinIO.Endpoint, "MINIO_ENDPOINT")
	setString(&c.MinIO.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.MinIO.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.MinIO.Bucket, "MINIO_BUCKET")
	setString(&c.Providers.Image.APIKey, "IMAGE_API_KEY")
	setString(&c.Providers.TTS.APIKey, "TTS_API_KEY")
	setString(&c.Providers.Music.APIKey, "MUSIC_API_KEY")
	setString(&c.Render.FFmpegBinary, "FFMPEG_BINARY")

	if v, ok := os.LookupEnv("USE_MOCK_PROVIDERS"); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Providers.Image.UseMock = &b
			c.Providers.TTS.UseMock = &b
			c.Providers.Music.UseMock = &b
		}
	}
}

// Default returns the configuration used for every key the file leaves out.
func Default() *Config {
	c := &Config{Env: "development"}
	c.Server.Port = ":8080"
	c.Log.Level = "info"
	c.MySQL.MaxOpenConns = 25
	c.MySQL.MaxIdleConns = 5
	c.Redis.Addr = "127.0.0.1:6379"
	c.Storage.Backend = "minio"
	c.Storage.BasePath = "./storage"
	c.MinIO.ExpiryHour = 72

	c.Queue = QueueConfig{
		Concurrency: 5,
		Weights: map[string]int{
			"storyboard": 3,
			"images":     2,
			"voiceover":  2,
			"music":      1,
			"render":     1,
		},
		MaxRetry:  3,
		Timeout:   20 * time.Minute,
		Retention: 24 * time.Hour,
	}

	c.Render = RenderConfig{
		FFmpegBinary:     "ffmpeg",
		FPS:              30,
		CRF:              23,
		Preset:           "fast",
		AudioBitrate:     "192k",
		MusicDuckDB:      -12,
		FCPXMLMusicDB:    -12,
		ClipParallelism:  2,
		FontSize:         64,
		SideMargin:       80,
		LineHeight:       80,
		MaxDownloadBytes: 200 << 20,
	}

	c.Lease.Backend = "redis"
	return c
}

// applyDefaults fills the values derived from other settings.
func (c *Config) applyDefaults() {
	if c.Render.ScratchRoot == "" {
		c.Render.ScratchRoot = os.TempDir()
	}
	if c.Lease.TTL == 0 {
		c.Lease.TTL = c.Queue.Timeout + time.Minute
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "minio":
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return errors.New("config: minio.endpoint and minio.bucket are required for the minio storage backend")
		}
	case "filesystem":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Lease.Backend {
	case "redis", "local":
	default:
		return fmt.Errorf("config: unknown lease backend %q", c.Lease.Backend)
	}
	if c.Render.FPS < 1 || c.Render.FPS > 120 {
		return fmt.Errorf("config: render.fps out of range: %d", c.Render.FPS)
	}
	if c.Render.CRF < 0 || c.Render.CRF > 51 {
		return fmt.Errorf("config: render.crf out of range: %d", c.Render.CRF)
	}
	if c.Render.MusicDuckDB > 0 {
		return fmt.Errorf("config: render.music_duck_db must attenuate (<= 0), got %v", c.Render.MusicDuckDB)
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("config: queue.concurrency must be positive")
	}
	if c.Queue.MaxRetry < 0 {
		return fmt.Errorf("config: queue.max_retry must not be negative, got %d", c.Queue.MaxRetry)
	}
	if c.Queue.Timeout <= 0 {
		return fmt.Errorf("config: queue.timeout must be positive")
	}
	if c.Render.ClipParallelism < 1 {
		return fmt.Errorf("config: render.clip_parallelism must be positive")
	}
	if c.Render.FontSize <= 0 {
		return fmt.Errorf("config: render.font_size must be positive")
	}
	return nil
}

// MockEnabled resolves the tri-state use_mock flag; unset means true.
func (p ProviderConfig) MockEnabled() bool {
	return p.UseMock == nil || *p.UseMock
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

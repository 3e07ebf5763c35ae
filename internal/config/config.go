// Package config loads handcard settings from YAML, .env and HANDCARD_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ayusman/handcard/internal/detector"
	"github.com/ayusman/handcard/internal/dwell"
	"github.com/ayusman/handcard/internal/enrich"
	"github.com/ayusman/handcard/internal/placement"
	"github.com/ayusman/handcard/internal/spatial"
)

// APIKeyEnv is the environment variable holding the Gemini API key.
const APIKeyEnv = "GEMINI_API_KEY"

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Camera     CameraConfig     `mapstructure:"camera"`
	Surfaces   SurfacesConfig   `mapstructure:"surfaces"`
	Detector   DetectorConfig   `mapstructure:"detector"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Store      StoreConfig      `mapstructure:"store"`
	Server     ServerConfig     `mapstructure:"server"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode" validate:"oneof=debug release"`
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

type CameraConfig struct {
	DeviceID        int     `mapstructure:"device_id" validate:"min=0"`
	ActiveFPS       int     `mapstructure:"active_fps" validate:"min=1,max=60"`
	IdleFPS         int     `mapstructure:"idle_fps" validate:"min=1,max=60"`
	MotionThreshold float64 `mapstructure:"motion_threshold" validate:"gt=0,lte=100"`
}

type PlaneConfig struct {
	Point  []float64 `mapstructure:"point" validate:"len=3"`
	Normal []float64 `mapstructure:"normal" validate:"len=3"`
}

// SurfacesConfig describes the fixed scene geometry attached to each frame.
type SurfacesConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	VerticalFOVDeg float64       `mapstructure:"vertical_fov_deg" validate:"gt=0,lt=180"`
	Aspect         float64       `mapstructure:"aspect" validate:"gt=0"`
	Planes         []PlaneConfig `mapstructure:"planes" validate:"dive"`
}

type DetectorConfig struct {
	ScriptPath  string        `mapstructure:"script_path"`
	PythonPath  string        `mapstructure:"python_path"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
}

type PipelineConfig struct {
	Enabled                 bool    `mapstructure:"enabled"`
	ConfidenceThreshold     float64 `mapstructure:"confidence_threshold" validate:"gte=0,lte=1"`
	DwellSeconds            float64 `mapstructure:"dwell_seconds" validate:"gt=0"`
	LandmarkConfidenceFloor float64 `mapstructure:"landmark_confidence_floor" validate:"gte=0,lte=1"`
	FallbackDistance        float64 `mapstructure:"fallback_distance" validate:"gt=0"`
}

type EnrichmentConfig struct {
	APIKey      string         `mapstructure:"api_key"`
	BaseURL     string         `mapstructure:"base_url" validate:"url"`
	Model       string         `mapstructure:"model" validate:"required"`
	Timeout     time.Duration  `mapstructure:"timeout" validate:"gt=0"`
	Temperature float64        `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int            `mapstructure:"max_tokens" validate:"gt=0"`
	Profile     enrich.Profile `mapstructure:"profile"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"min=0"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
	// MaxHistory bounds the history table at startup. Zero keeps everything.
	MaxHistory int `mapstructure:"max_history" validate:"min=0"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	StaticDir    string        `mapstructure:"static_dir"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PushInterval time.Duration `mapstructure:"push_interval" validate:"gt=0"`
}

// Load reads configuration. An empty path uses defaults plus environment
// overrides. A .env file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HANDCARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Enrichment.APIKey == "" {
		cfg.Enrichment.APIKey = os.Getenv(APIKeyEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DefaultStorePath returns ~/.handcard/handcard.db.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "handcard.db"
	}
	return home + "/.handcard/handcard.db"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.mode", "debug")
	v.SetDefault("log.level", "")

	v.SetDefault("camera.device_id", 0)
	v.SetDefault("camera.active_fps", 15)
	v.SetDefault("camera.idle_fps", 5)
	v.SetDefault("camera.motion_threshold", 1.0)

	v.SetDefault("surfaces.enabled", true)
	v.SetDefault("surfaces.vertical_fov_deg", 60.0)
	v.SetDefault("surfaces.aspect", 4.0/3.0)
	v.SetDefault("surfaces.planes", []map[string]any{
		{"point": []float64{0, -0.4, 0}, "normal": []float64{0, 1, 0}},
	})

	v.SetDefault("detector.script_path", "")
	v.SetDefault("detector.python_path", "")
	v.SetDefault("detector.idle_timeout", detector.DefaultConfig().IdleTimeout)

	v.SetDefault("pipeline.enabled", true)
	v.SetDefault("pipeline.confidence_threshold", dwell.DefaultConfidenceThreshold)
	v.SetDefault("pipeline.dwell_seconds", dwell.DefaultDwell.Seconds())
	v.SetDefault("pipeline.landmark_confidence_floor", placement.DefaultLandmarkFloor)
	v.SetDefault("pipeline.fallback_distance", placement.DefaultFallbackDistance)

	v.SetDefault("enrichment.api_key", "")
	v.SetDefault("enrichment.base_url", enrich.DefaultGeminiBaseURL)
	v.SetDefault("enrichment.model", enrich.DefaultGeminiModel)
	v.SetDefault("enrichment.timeout", 30*time.Second)
	v.SetDefault("enrichment.temperature", 0.4)
	v.SetDefault("enrichment.max_tokens", 1024)
	v.SetDefault("enrichment.profile.week", 0)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.max_history", 500)

	v.SetDefault("server.addr", "127.0.0.1:8765")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.push_interval", 100*time.Millisecond)
}

// DwellConfig converts the pipeline options for the debouncer.
func (p PipelineConfig) DwellConfig() dwell.Config {
	return dwell.Config{
		ConfidenceThreshold: p.ConfidenceThreshold,
		Dwell:               time.Duration(p.DwellSeconds * float64(time.Second)),
	}
}

// Resolver builds the placement resolver from the pipeline options.
func (p PipelineConfig) Resolver() *placement.Resolver {
	return placement.NewResolver(p.LandmarkConfidenceFloor, p.FallbackDistance)
}

// Options converts to the detector package settings.
func (d DetectorConfig) Options() detector.Config {
	return detector.Config{
		ScriptPath:  d.ScriptPath,
		PythonPath:  d.PythonPath,
		IdleTimeout: d.IdleTimeout,
	}
}

// Camera builds the scene query attached to frames. It returns nil when
// surfaces are disabled, which leaves frames without query capability.
func (s SurfacesConfig) Camera() *spatial.PinholeCamera {
	if !s.Enabled {
		return nil
	}
	planes := make([]spatial.Plane, 0, len(s.Planes))
	for _, p := range s.Planes {
		planes = append(planes, spatial.Plane{
			Point:  vec(p.Point),
			Normal: vec(p.Normal).Normalize(),
		})
	}
	return spatial.NewPinholeCamera(s.VerticalFOVDeg, s.Aspect, planes...)
}

func vec(v []float64) spatial.Vec3 {
	if len(v) != 3 {
		return spatial.Vec3{}
	}
	return spatial.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

// README: Config loader (viper + .env) with SCOUT_ env overrides and defaults for every knob.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"scout/internal/backpressure"
	"scout/internal/modules/chips"
	"scout/internal/modules/mode"
	"scout/internal/modules/venue"
)

// EnvPrefix prefixes every environment override: cache.places.ttl is read
// from SCOUT_CACHE_PLACES_TTL.
const EnvPrefix = "SCOUT"

type CacheConfig struct {
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type CachesConfig struct {
	Intent  CacheConfig `mapstructure:"intent"`
	Geocode CacheConfig `mapstructure:"geocode"`
	Places  CacheConfig `mapstructure:"places"`
	Rank    CacheConfig `mapstructure:"rank"`
	Assist  CacheConfig `mapstructure:"assist"`
	// PlacesLiveTTL replaces Places.TTL when the query constrains open-now.
	PlacesLiveTTL time.Duration `mapstructure:"places_live_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Shards        int           `mapstructure:"shards"`
}

type TimeoutsConfig struct {
	Intent    time.Duration `mapstructure:"intent"`
	Geocode   time.Duration `mapstructure:"geocode"`
	Places    time.Duration `mapstructure:"places"`
	Narration time.Duration `mapstructure:"narration"`
}

type LanguageConfig struct {
	Supported       []string `mapstructure:"supported"`
	Default         string   `mapstructure:"default"`
	PrimaryRegion   string   `mapstructure:"primary_region"`
	PrimaryLanguage string   `mapstructure:"primary_language"`
}

type Config struct {
	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	DB struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	Redis struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"redis"`
	AI struct {
		GeminiKey string `mapstructure:"gemini_key"`
		Model     string `mapstructure:"model"`
	} `mapstructure:"ai"`
	Maps struct {
		APIKey  string  `mapstructure:"api_key"`
		BaseURL string  `mapstructure:"base_url"`
		Region  string  `mapstructure:"region"`
		QPS     float64 `mapstructure:"qps"`
		Burst   int     `mapstructure:"burst"`
		// RadiusMeters biases text search around a resolved location.
		RadiusMeters uint `mapstructure:"radius_meters"`
	} `mapstructure:"maps"`
	Firebase struct {
		ProjectID       string `mapstructure:"project_id"`
		CredentialsFile string `mapstructure:"credentials_file"`
		CheckRevoked    bool   `mapstructure:"check_revoked"`
	} `mapstructure:"firebase"`
	Quota struct {
		Daily int `mapstructure:"daily"`
	} `mapstructure:"quota"`

	Cache    CachesConfig         `mapstructure:"cache"`
	Timeouts TimeoutsConfig       `mapstructure:"timeouts"`
	Gate     backpressure.Options `mapstructure:"gate"`
	Mode     mode.Thresholds      `mapstructure:"mode"`
	Chips    chips.Thresholds     `mapstructure:"chips"`
	Radii    venue.Radii          `mapstructure:"radii"`
	Ranking  venue.Weights        `mapstructure:"ranking"`
	Language LanguageConfig       `mapstructure:"language"`
}

// aliases are unprefixed variable names honoured for secrets.
var aliases = map[string]string{
	"ai.gemini_key": "GEMINI_API_KEY",
	"maps.api_key":  "GOOGLE_MAPS_API_KEY",
}

// Load reads .env, an optional config.yaml and SCOUT_ environment overrides.
func Load() (Config, error) {
	loadEnvFile()
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config: %w", err)
		}
	}
	return decode(v)
}

// LoadFile is Load with an explicit config file.
func LoadFile(path string) (Config, error) {
	loadEnvFile()
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range aliases {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
	return v
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("db.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("ai.gemini_key", "")
	v.SetDefault("ai.model", "gemini-1.5-flash")
	v.SetDefault("maps.api_key", "")
	v.SetDefault("maps.base_url", "")
	v.SetDefault("maps.region", "")
	v.SetDefault("maps.qps", 10.0)
	v.SetDefault("maps.burst", 20)
	v.SetDefault("maps.radius_meters", 3000)
	v.SetDefault("firebase.project_id", "")
	v.SetDefault("firebase.credentials_file", "")
	v.SetDefault("firebase.check_revoked", false)
	v.SetDefault("quota.daily", 200)

	v.SetDefault("cache.intent.capacity", 4096)
	v.SetDefault("cache.intent.ttl", time.Hour)
	v.SetDefault("cache.geocode.capacity", 4096)
	v.SetDefault("cache.geocode.ttl", 24*time.Hour)
	v.SetDefault("cache.places.capacity", 2048)
	v.SetDefault("cache.places.ttl", 15*time.Minute)
	v.SetDefault("cache.rank.capacity", 2048)
	v.SetDefault("cache.rank.ttl", 15*time.Minute)
	v.SetDefault("cache.assist.capacity", 1024)
	v.SetDefault("cache.assist.ttl", 5*time.Minute)
	v.SetDefault("cache.places_live_ttl", 2*time.Minute)
	v.SetDefault("cache.sweep_interval", time.Minute)
	v.SetDefault("cache.shards", 16)

	v.SetDefault("timeouts.intent", 4*time.Second)
	v.SetDefault("timeouts.geocode", 3*time.Second)
	v.SetDefault("timeouts.places", 5*time.Second)
	v.SetDefault("timeouts.narration", 3*time.Second)

	v.SetDefault("gate.max_concurrent", 64)
	v.SetDefault("gate.queue_depth", 128)
	v.SetDefault("gate.queue_timeout", 2*time.Second)

	v.SetDefault("mode.recovery_confidence", mode.DefaultThresholds.RecoveryConfidence)
	v.SetDefault("chips.sort_min_results", chips.DefaultThresholds.SortMinResults)
	v.SetDefault("chips.sort_min_confidence", chips.DefaultThresholds.SortMinConfidence)
	v.SetDefault("chips.max_chips", chips.DefaultThresholds.MaxChips)
	v.SetDefault("chips.max_clarify", chips.DefaultThresholds.MaxClarify)

	v.SetDefault("radii.street.exact_km", venue.DefaultRadii.Street.ExactKm)
	v.SetDefault("radii.street.nearby_km", venue.DefaultRadii.Street.NearbyKm)
	v.SetDefault("radii.landmark.exact_km", venue.DefaultRadii.Landmark.ExactKm)
	v.SetDefault("radii.landmark.nearby_km", venue.DefaultRadii.Landmark.NearbyKm)
	v.SetDefault("radii.area.exact_km", venue.DefaultRadii.Area.ExactKm)
	v.SetDefault("radii.area.nearby_km", venue.DefaultRadii.Area.NearbyKm)

	v.SetDefault("ranking.rating", venue.DefaultWeights.Rating)
	v.SetDefault("ranking.distance", venue.DefaultWeights.Distance)
	v.SetDefault("ranking.relevance", venue.DefaultWeights.Relevance)

	v.SetDefault("language.supported", []string{"en", "es", "fr", "zh-TW", "ja", "ko", "he", "ar", "ru"})
	v.SetDefault("language.default", "en")
	v.SetDefault("language.primary_region", "")
	v.SetDefault("language.primary_language", "")
}

func validate(cfg *Config) error {
	if cfg.Maps.APIKey == "" {
		return fmt.Errorf("maps.api_key is required")
	}
	if c := cfg.Mode.RecoveryConfidence; c < 0 || c > 1 {
		return fmt.Errorf("mode.recovery_confidence must be in [0,1], got %v", c)
	}
	if c := cfg.Chips.SortMinConfidence; c < 0 || c > 1 {
		return fmt.Errorf("chips.sort_min_confidence must be in [0,1], got %v", c)
	}
	if cfg.Chips.MaxChips < 2 {
		return fmt.Errorf("chips.max_chips must be at least 2")
	}
	if cfg.Gate.MaxConcurrent < 1 {
		return fmt.Errorf("gate.max_concurrent must be positive")
	}
	for name, r := range map[string]venue.Radius{"street": cfg.Radii.Street, "landmark": cfg.Radii.Landmark, "area": cfg.Radii.Area} {
		if r.ExactKm <= 0 || r.NearbyKm < r.ExactKm {
			return fmt.Errorf("radii.%s: need 0 < exact_km <= nearby_km", name)
		}
	}
	if w := cfg.Ranking; w.Rating < 0 || w.Distance < 0 || w.Relevance < 0 {
		return fmt.Errorf("ranking weights must not be negative")
	}
	if len(cfg.Language.Supported) == 0 {
		return fmt.Errorf("language.supported must not be empty")
	}
	return nil
}

// loadEnvFile loads the first .env found in the working directory or the
// module root. A missing file is not an error.
func loadEnvFile() {
	paths := []string{".env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if godotenv.Load(p) == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

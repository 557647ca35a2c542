package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. BEPRO_REDIS_ADDR.
const EnvPrefix = "BEPRO"

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig points at the sqlite file holding users, posts and interactions.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OpenAIConfig enables sensationalism rating and mission generation when APIKey is set.
type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base_url"`
	MaxRetries int    `mapstructure:"max_retries"` // 0 means 2, negative disables
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	ReadTimeout  string `mapstructure:"read_timeout"`  // duration string, e.g., "15s"
	WriteTimeout string `mapstructure:"write_timeout"` // duration string
}

// RankingConfig tunes feed assembly and the background ranking workers.
type RankingConfig struct {
	FeedCacheTTL     string `mapstructure:"feed_cache_ttl"`
	TrendingInterval string `mapstructure:"trending_interval"`
	RatingInterval   string `mapstructure:"rating_interval"`
	HistoryLimit     int    `mapstructure:"history_limit"`
	CandidateLimit   int    `mapstructure:"candidate_limit"`
}

// MissionsConfig controls mission generation.
type MissionsConfig struct {
	Language string `mapstructure:"language"`
	Count    int    `mapstructure:"count"`
}

// DigestConfig controls the scheduled per-user digest files.
type DigestConfig struct {
	Schedule  string `mapstructure:"schedule"` // cron spec
	OutputDir string `mapstructure:"output_dir"`
	TopN      int    `mapstructure:"top_n"`
	Title     string `mapstructure:"title"`
	Preface   string `mapstructure:"preface"`
}

// Config is the top-level configuration structure.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Server   ServerConfig   `mapstructure:"server"`
	Ranking  RankingConfig  `mapstructure:"ranking"`
	Missions MissionsConfig `mapstructure:"missions"`
	Digest   DigestConfig   `mapstructure:"digest"`
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./bepro.db"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "15s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "60s"
	}
	if c.Ranking.FeedCacheTTL == "" {
		c.Ranking.FeedCacheTTL = "2m"
	}
	if c.Ranking.TrendingInterval == "" {
		c.Ranking.TrendingInterval = "10m"
	}
	if c.Ranking.RatingInterval == "" {
		c.Ranking.RatingInterval = "15m"
	}
	if c.Ranking.HistoryLimit == 0 {
		c.Ranking.HistoryLimit = 200
	}
	if c.Ranking.CandidateLimit == 0 {
		c.Ranking.CandidateLimit = 500
	}
	if c.Missions.Language == "" {
		c.Missions.Language = "English"
	}
	if c.Missions.Count == 0 {
		c.Missions.Count = 3
	}
	if c.Digest.Schedule == "" {
		c.Digest.Schedule = "0 7 * * *"
	}
	if c.Digest.OutputDir == "" {
		c.Digest.OutputDir = "./out"
	}
	if c.Digest.TopN == 0 {
		c.Digest.TopN = 10
	}
}

// Durations holds the parsed duration strings of a Config.
type Durations struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	FeedCacheTTL     time.Duration
	TrendingInterval time.Duration
	RatingInterval   time.Duration
}

// ParseDurations validates every duration string, naming the offending key.
func (c *Config) ParseDurations() (Durations, error) {
	var d Durations
	for _, f := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"server.read_timeout", c.Server.ReadTimeout, &d.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout, &d.WriteTimeout},
		{"ranking.feed_cache_ttl", c.Ranking.FeedCacheTTL, &d.FeedCacheTTL},
		{"ranking.trending_interval", c.Ranking.TrendingInterval, &d.TrendingInterval},
		{"ranking.rating_interval", c.Ranking.RatingInterval, &d.RatingInterval},
	} {
		v, err := time.ParseDuration(f.raw)
		if err != nil {
			return Durations{}, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		*f.dst = v
	}
	return d, nil
}

// Keys lists every dotted config key, e.g. "ranking.candidate_limit".
func Keys() []string {
	return keys(reflect.TypeOf(Config{}), "")
}

func keys(t reflect.Type, prefix string) []string {
	var out []string
	for i := range t.NumField() {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			out = append(out, keys(f.Type, name)...)
			continue
		}
		out = append(out, name)
	}
	return out
}

// BindEnv maps every config key to its BEPRO_ variable. Unmarshal only sees
// env values for keys viper already knows about, so each one is bound.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range Keys() {
		if err := v.BindEnv(k); err != nil {
			return fmt.Errorf("bind env %s: %w", k, err)
		}
	}
	return nil
}

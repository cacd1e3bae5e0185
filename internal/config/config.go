package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"focusflow/internal/models"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type SessionConfig struct {
	DefaultMode        string `mapstructure:"default_mode" yaml:"default_mode"`
	CustomStudyMinutes int    `mapstructure:"custom_study_minutes" yaml:"custom_study_minutes"`
	CustomBreakMinutes int    `mapstructure:"custom_break_minutes" yaml:"custom_break_minutes"`
	LongBreakMinutes   int    `mapstructure:"long_break_minutes" yaml:"long_break_minutes"`
	LongBreakInterval  int    `mapstructure:"long_break_interval" yaml:"long_break_interval"`
}

type PlanConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url"`
	Model          string  `mapstructure:"model" yaml:"model"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxSubtasks    int     `mapstructure:"max_subtasks" yaml:"max_subtasks"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
}

type HTTPConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"` // empty disables the HTTP server
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
}

type Config struct {
	DatabasePath   string        `mapstructure:"database_path" yaml:"database_path"`
	SocketPath     string        `mapstructure:"socket_path" yaml:"socket_path"`
	OwnerID        string        `mapstructure:"owner_id" yaml:"owner_id"`
	TickIntervalMs int           `mapstructure:"tick_interval_ms" yaml:"tick_interval_ms"`
	Session        SessionConfig `mapstructure:"session" yaml:"session"`
	Plan           PlanConfig    `mapstructure:"plan" yaml:"plan"`
	HTTP           HTTPConfig    `mapstructure:"http" yaml:"http"`
}

// Loader owns a viper instance so the daemon can re-read the same sources
// when the config file changes.
type Loader struct {
	v *viper.Viper
}

func NewLoader(configPath string) *Loader {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/focusflow")
		v.AddConfigPath("/etc/focusflow/")
	}

	v.SetEnvPrefix("FOCUSFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return &Loader{v: v}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_path", "focusflow.db")
	v.SetDefault("socket_path", "/tmp/focusflow.sock")
	v.SetDefault("owner_id", defaultOwner())
	v.SetDefault("tick_interval_ms", 1000)

	v.SetDefault("session.default_mode", string(models.ModePomodoro))
	v.SetDefault("session.custom_study_minutes", 25)
	v.SetDefault("session.custom_break_minutes", 5)
	v.SetDefault("session.long_break_minutes", 30)
	v.SetDefault("session.long_break_interval", 4)

	v.SetDefault("plan.enabled", true)
	v.SetDefault("plan.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("plan.model", "mistralai/mistral-7b-instruct:free")
	v.SetDefault("plan.api_key", "")
	v.SetDefault("plan.timeout_seconds", 30)
	v.SetDefault("plan.max_subtasks", 3)
	v.SetDefault("plan.temperature", 0.3)

	v.SetDefault("http.listen_addr", ":3001")
	v.SetDefault("http.api_key", "")
}

func defaultOwner() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

// Load reads the config file (a missing file is fine) and returns the
// sanitised result.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Config file not found, using defaults.")
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Plan.APIKey == "" {
		cfg.Plan.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	cfg.sanitize()
	return &cfg, nil
}

// Watch re-decodes the config whenever the file changes and hands the new
// value to onChange. Decode errors are logged and the change is skipped.
func (l *Loader) Watch(onChange func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("Config file changed: %s (%s)", e.Name, e.Op)
		cfg, err := l.decode()
		if err != nil {
			log.Printf("Warning: ignoring config change: %v", err)
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// ConfigFile is the file viper ended up reading, empty if none.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// LoadConfig is the one-shot form used by the CLI.
func LoadConfig(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

func (c *Config) sanitize() {
	if c.TickIntervalMs < 10 {
		log.Printf("Warning: tick_interval_ms %d too low, setting to 1000", c.TickIntervalMs)
		c.TickIntervalMs = 1000
	}
	if c.OwnerID == "" {
		log.Println("Warning: empty owner_id, using 'local'")
		c.OwnerID = "local"
	}
	if _, err := models.ParseMode(c.Session.DefaultMode); err != nil {
		log.Printf("Warning: invalid session.default_mode '%s', defaulting to '%s'", c.Session.DefaultMode, models.ModePomodoro)
		c.Session.DefaultMode = string(models.ModePomodoro)
	}
	if c.Session.CustomStudyMinutes < 1 {
		log.Println("Warning: session.custom_study_minutes too low, setting to 25")
		c.Session.CustomStudyMinutes = 25
	}
	if c.Session.CustomBreakMinutes < 1 {
		log.Println("Warning: session.custom_break_minutes too low, setting to 5")
		c.Session.CustomBreakMinutes = 5
	}
	if c.Session.LongBreakMinutes < 1 {
		log.Println("Warning: session.long_break_minutes too low, setting to 30")
		c.Session.LongBreakMinutes = 30
	}
	if c.Session.LongBreakInterval < 1 {
		log.Println("Warning: session.long_break_interval too low, setting to 4")
		c.Session.LongBreakInterval = 4
	}
	if c.Plan.MaxSubtasks < 1 {
		log.Println("Warning: plan.max_subtasks too low, setting to 3")
		c.Plan.MaxSubtasks = 3
	}
	if c.Plan.TimeoutSeconds < 1 {
		log.Println("Warning: plan.timeout_seconds too low, setting to 30")
		c.Plan.TimeoutSeconds = 30
	}
	if c.Plan.Temperature < 0 || c.Plan.Temperature > 2 {
		log.Printf("Warning: plan.temperature %.2f out of range, setting to 0.3", c.Plan.Temperature)
		c.Plan.Temperature = 0.3
	}
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (p PlanConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// Redacted returns a copy safe to print or log.
func (c Config) Redacted() Config {
	if c.Plan.APIKey != "" {
		c.Plan.APIKey = "***"
	}
	if c.HTTP.APIKey != "" {
		c.HTTP.APIKey = "***"
	}
	return c
}

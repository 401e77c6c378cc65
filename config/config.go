// Package config loads the server configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/warp/school-engine/fees"
	"github.com/warp/school-engine/generic"
	"github.com/warp/school-engine/payroll"
)

// EnvPrefix prefixes every environment override, e.g. SCHOOL_DATABASE_PATH.
const EnvPrefix = "SCHOOL"

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Fees     FeesConfig
	Payroll  PayrollConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds the SQLite location
type DatabaseConfig struct {
	Path string // file path, or ":memory:"
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	CORSAllowOrigins []string
}

// FeesConfig holds the school-wide fee settings
type FeesConfig struct {
	SessionStart      string // yyyy-MM-dd; empty until the school configures it
	SiblingDiscount   string // monthly amount, decimal string
	MonthsPerYear     int64
	ExamCyclesPerYear int64
}

// PayrollConfig holds the salary constants
type PayrollConfig struct {
	DaysInMonth    int64
	AllowedAbsents int
}

// Load reads configuration from the environment.
//
// Priority (highest to lowest):
// 1. Environment variables with SCHOOL_ prefix (e.g., SCHOOL_FEES_SESSION_START)
// 2. .env in the working directory
// 3. config.yaml
// 4. Built-in defaults
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("error reading .env: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("error checking .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/school-engine")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Fees: FeesConfig{
			SessionStart:      v.GetString("fees.session_start"),
			SiblingDiscount:   v.GetString("fees.sibling_discount"),
			MonthsPerYear:     v.GetInt64("fees.months_per_year"),
			ExamCyclesPerYear: v.GetInt64("fees.exam_cycles_per_year"),
		},
		Payroll: PayrollConfig{
			DaysInMonth:    v.GetInt64("payroll.days_in_month"),
			AllowedAbsents: v.GetInt("payroll.allowed_absents"),
		},
	}

	// allowed_absents = 0 is a real setting, so only default it when unset
	if !v.IsSet("payroll.allowed_absents") {
		cfg.Payroll.AllowedAbsents = *payroll.DefaultRules().AllowedAbsents
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "school-engine"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/school.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if cfg.Fees.SiblingDiscount == "" {
		cfg.Fees.SiblingDiscount = "0"
	}
	if cfg.Fees.MonthsPerYear == 0 {
		cfg.Fees.MonthsPerYear = fees.DefaultMultipliers().MonthsPerYear
	}
	if cfg.Fees.ExamCyclesPerYear == 0 {
		cfg.Fees.ExamCyclesPerYear = fees.DefaultMultipliers().ExamCyclesPerYear
	}
	if cfg.Payroll.DaysInMonth == 0 {
		cfg.Payroll.DaysInMonth = payroll.DefaultRules().DaysInMonth
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.App.Port == "" || c.App.Port == "0" {
		return fmt.Errorf("app.port must be set")
	}
	if c.Fees.SessionStart != "" {
		if _, err := generic.ParseDate(c.Fees.SessionStart); err != nil {
			return fmt.Errorf("fees.session_start: %w", err)
		}
	}
	discount, err := decimal.NewFromString(c.Fees.SiblingDiscount)
	if err != nil {
		return fmt.Errorf("fees.sibling_discount must be a number, got %q", c.Fees.SiblingDiscount)
	}
	if discount.IsNegative() {
		return fmt.Errorf("fees.sibling_discount cannot be negative")
	}
	if c.Fees.MonthsPerYear < 0 || c.Fees.ExamCyclesPerYear < 0 {
		return fmt.Errorf("fees multipliers cannot be negative")
	}
	if c.Payroll.DaysInMonth < 0 {
		return fmt.Errorf("payroll.days_in_month cannot be negative")
	}
	if c.Payroll.AllowedAbsents < 0 {
		return fmt.Errorf("payroll.allowed_absents cannot be negative")
	}
	if c.App.Env == "production" {
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}
	return nil
}

// FeeSettings converts the fee section into engine settings. Class fee
// defaults are stored data, not configuration, and are left empty.
func (c *Config) FeeSettings() fees.Settings {
	s := fees.Settings{
		SiblingDiscount: decimal.RequireFromString(c.Fees.SiblingDiscount),
		Multipliers: fees.Multipliers{
			MonthsPerYear:     c.Fees.MonthsPerYear,
			ExamCyclesPerYear: c.Fees.ExamCyclesPerYear,
		},
	}
	if c.Fees.SessionStart != "" {
		s.SessionStart, _ = generic.ParseDate(c.Fees.SessionStart)
	}
	return s
}

// PayrollRules converts the payroll section into salary rules.
func (c *Config) PayrollRules() payroll.Rules {
	return payroll.Rules{
		DaysInMonth:    c.Payroll.DaysInMonth,
		AllowedAbsents: payroll.FreeAbsents(c.Payroll.AllowedAbsents),
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.App.Port
}

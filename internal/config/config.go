package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aeroshield/stormrisk-cli/internal/atcf"
	"github.com/aeroshield/stormrisk-cli/internal/insurance"
	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/pkg/weatherlab"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	WeatherLab WeatherLabConfig `yaml:"weatherlab" mapstructure:"weatherlab"`
	ATCF       ATCFConfig       `yaml:"atcf" mapstructure:"atcf"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. MaxConns and MinConns only
// apply to the postgres driver.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// WeatherLabConfig holds the ensemble forecast download settings.
type WeatherLabConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ATCFConfig holds the NHC active-storm feed and best-track mirror settings.
type ATCFConfig struct {
	StormsURL   string `yaml:"storms_url" mapstructure:"storms_url"`
	MirrorURL   string `yaml:"mirror_url" mapstructure:"mirror_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FetchConfig configures download behavior shared by all sources.
type FetchConfig struct {
	DataDir     string  `yaml:"data_dir" mapstructure:"data_dir"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnalysisConfig carries the business parameters plus execution tuning.
type AnalysisConfig struct {
	UncertaintyGrowthKMPerHour float64 `yaml:"uncertainty_growth_km_per_hour" mapstructure:"uncertainty_growth_km_per_hour"`
	MinDisruptionHours         float64 `yaml:"min_disruption_hours" mapstructure:"min_disruption_hours"`
	PenetrationRate            float64 `yaml:"penetration_rate" mapstructure:"penetration_rate"`
	ClaimRate                  float64 `yaml:"claim_rate" mapstructure:"claim_rate"`
	PayoutPerClaimUSD          float64 `yaml:"payout_per_claim_usd" mapstructure:"payout_per_claim_usd"`
	MaxConcurrentStorms        int     `yaml:"max_concurrent_storms" mapstructure:"max_concurrent_storms"`
	SpreadScaling              float64 `yaml:"spread_scaling" mapstructure:"spread_scaling"`
}

// Params converts the config section to pipeline parameters.
func (a AnalysisConfig) Params() model.AnalysisParams {
	return model.AnalysisParams{
		UncertaintyGrowthKMPerHour: a.UncertaintyGrowthKMPerHour,
		MinDisruptionHours:         a.MinDisruptionHours,
		PenetrationRate:            a.PenetrationRate,
		ClaimRate:                  a.ClaimRate,
		PayoutPerClaimUSD:          a.PayoutPerClaimUSD,
	}
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// TemporalConfig configures the scheduled-analysis worker. ReportDir is
// where the daily workflow writes its report files.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
	CronUTC   string `yaml:"cron_utc" mapstructure:"cron_utc"`
	ReportDir string `yaml:"report_dir" mapstructure:"report_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STORMRISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	defaults := model.DefaultParams()
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "stormrisk.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("weatherlab.base_url", weatherlab.DefaultBaseURL)
	v.SetDefault("weatherlab.model", weatherlab.DefaultModel)
	v.SetDefault("weatherlab.timeout_secs", 120)
	v.SetDefault("atcf.storms_url", atcf.DefaultStormsURL)
	v.SetDefault("atcf.mirror_url", atcf.DefaultMirrorURL)
	v.SetDefault("atcf.timeout_secs", 60)
	v.SetDefault("fetch.data_dir", "data")
	v.SetDefault("fetch.rate_per_sec", 2.0)
	v.SetDefault("fetch.burst", 4)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("analysis.uncertainty_growth_km_per_hour", defaults.UncertaintyGrowthKMPerHour)
	v.SetDefault("analysis.min_disruption_hours", defaults.MinDisruptionHours)
	v.SetDefault("analysis.penetration_rate", defaults.PenetrationRate)
	v.SetDefault("analysis.claim_rate", defaults.ClaimRate)
	v.SetDefault("analysis.payout_per_claim_usd", defaults.PayoutPerClaimUSD)
	v.SetDefault("analysis.max_concurrent_storms", 4)
	v.SetDefault("analysis.spread_scaling", 0.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("temporal.host_port", "127.0.0.1:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "stormrisk-analysis")
	v.SetDefault("temporal.cron_utc", "30 6 * * *")
	v.SetDefault("temporal.report_dir", "reports")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a command mode depends on, so misconfiguration
// fails at startup instead of mid-run. Parameter range checks are delegated
// to the estimator's validator to keep one source of truth.
func (c *Config) Validate(mode string) error {
	var issues []string

	analyze := func() {
		if err := insurance.ValidateParams(c.Analysis.Params()); err != nil {
			issues = append(issues, err.Error())
		}
		if c.Analysis.MaxConcurrentStorms < 1 || c.Analysis.MaxConcurrentStorms > 32 {
			issues = append(issues, "analysis.max_concurrent_storms must be between 1 and 32")
		}
		if c.Analysis.SpreadScaling < 0 {
			issues = append(issues, "analysis.spread_scaling must be >= 0")
		}
	}
	store := func() {
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			issues = append(issues, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			issues = append(issues, "store.database_url is required")
		}
	}

	switch mode {
	case "analyze":
		analyze()
		store()
	case "fetch":
		if c.Fetch.DataDir == "" {
			issues = append(issues, "fetch.data_dir is required")
		}
		if c.WeatherLab.BaseURL == "" {
			issues = append(issues, "weatherlab.base_url is required")
		}
		if c.ATCF.MirrorURL == "" {
			issues = append(issues, "atcf.mirror_url is required")
		}
	case "serve":
		analyze()
		store()
		if c.Server.Port <= 0 {
			issues = append(issues, "server.port must be > 0")
		}
	case "worker":
		analyze()
		store()
		if c.Temporal.HostPort == "" {
			issues = append(issues, "temporal.host_port is required")
		}
		if c.Temporal.TaskQueue == "" {
			issues = append(issues, "temporal.task_queue is required")
		}
		if c.Temporal.ReportDir == "" {
			issues = append(issues, "temporal.report_dir is required")
		}
		if c.Fetch.DataDir == "" {
			issues = append(issues, "fetch.data_dir is required")
		}
	case "store":
		store()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(issues) > 0 {
		return eris.Errorf("config: %s", strings.Join(issues, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

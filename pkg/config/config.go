package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	Server     struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		Path           string `mapstructure:"PATH"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
		LockTTL     time.Duration `mapstructure:"LOCK_TTL"`
	} `mapstructure:"REDIS"`
	Tracker Tracker `mapstructure:"TRACKER"`
	Sync    Sync    `mapstructure:"SYNC"`
	Stream  struct {
		ServerURL string `mapstructure:"SERVER_URL"`
		MemberID  string `mapstructure:"MEMBER_ID"`
	} `mapstructure:"STREAM"`
	Otel      Otel `mapstructure:"OTEL"`
	Vault     struct {
		Path  string `mapstructure:"PATH"`
		Mount string `mapstructure:"MOUNT"`
	} `mapstructure:"VAULT"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
}

// Otel selects the trace exporter. An empty Exporter disables tracing.
type Otel struct {
	Exporter    string  `mapstructure:"EXPORTER"`
	Endpoint    string  `mapstructure:"ENDPOINT"`
	Insecure    bool    `mapstructure:"INSECURE"`
	SampleRatio float64 `mapstructure:"SAMPLE_RATIO"`
}

// Tracker holds the remote issue tracker connection settings.
type Tracker struct {
	BaseURL     string        `mapstructure:"BASE_URL"`
	Email       string        `mapstructure:"EMAIL"`
	APIToken    string        `mapstructure:"API_TOKEN"`
	Project     string        `mapstructure:"PROJECT"`
	MaxAttempts int           `mapstructure:"MAX_ATTEMPTS"`
	BaseDelay   time.Duration `mapstructure:"BASE_DELAY"`
	PageSize    int           `mapstructure:"PAGE_SIZE"`
	Timeout     time.Duration `mapstructure:"TIMEOUT"`
}

// Sync holds the defaults used when the sync state row is first created.
type Sync struct {
	Enabled          bool   `mapstructure:"ENABLED"`
	IntervalMs       int64  `mapstructure:"INTERVAL_MS"`
	BaselineDate     string `mapstructure:"BASELINE_DATE"`
	RewardExpression string `mapstructure:"REWARD_EXPRESSION"`
}

// Baseline parses BaselineDate. An empty value yields nil.
func (s Sync) Baseline() (*time.Time, error) {
	if strings.TrimSpace(s.BaselineDate) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s.BaselineDate))
	if err != nil {
		return nil, fmt.Errorf("invalid baseline date %q: %w", s.BaselineDate, err)
	}
	return &t, nil
}

var (
	config   = viper.New()
	watchMu  sync.Mutex
	watching bool
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "ticketsync")
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("DATABASE.TYPE", "sqlite")
	v.SetDefault("DATABASE.PATH", "ticketsync.db")
	v.SetDefault("REDIS.LOCK_TTL", 5*time.Minute)
	v.SetDefault("TRACKER.MAX_ATTEMPTS", 3)
	v.SetDefault("TRACKER.BASE_DELAY", time.Second)
	v.SetDefault("TRACKER.PAGE_SIZE", 50)
	v.SetDefault("TRACKER.TIMEOUT", 30*time.Second)
	v.SetDefault("SYNC.ENABLED", false)
	v.SetDefault("SYNC.INTERVAL_MS", 300000)
	v.SetDefault("STREAM.SERVER_URL", "http://localhost:8080")
	v.SetDefault("OTEL.SAMPLE_RATIO", 1.0)
	v.SetDefault("VAULT.MOUNT", "secret")
}

// Load reads the config file at path (or ./config.yaml when path is empty)
// and overlays the environment. A missing default file is not an error.
func Load(path string) (*Config, error) {
	setDefaults(config)

	if path != "" {
		config.SetConfigFile(path)
	} else {
		config.SetConfigName("config")
		config.SetConfigType("yaml")
		config.AddConfigPath(".")
	}

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return decode(config)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := cfg.Sync.Baseline(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch calls fn with the re-read config every time the config file changes.
// Only the first call registers a watcher.
func Watch(fn func(*Config)) {
	watchMu.Lock()
	defer watchMu.Unlock()
	if watching || config.ConfigFileUsed() == "" {
		return
	}
	watching = true

	config.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := decode(config)
		if err != nil {
			zap.L().Error("failed to reload config", zap.String("file", e.Name), zap.Error(err))
			return
		}
		zap.L().Info("config reloaded", zap.String("file", e.Name))
		fn(cfg)
	})
	config.WatchConfig()
}

// Module supplies an already loaded config to the fx graph.
func Module(cfg *Config) fx.Option {
	return fx.Module("config", fx.Supply(cfg))
}

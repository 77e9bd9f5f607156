package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
	Janitor  JanitorConfig  `mapstructure:"janitor"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
}

type ServerConfig struct {
	HTTPAddress    string   `mapstructure:"http_address"`
	RPCAddress     string   `mapstructure:"rpc_address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// GameConfig holds the round defaults applied to newly created rooms.
type GameConfig struct {
	RoundSeconds      int           `mapstructure:"round_seconds"`
	TickInterval      time.Duration `mapstructure:"tick_interval"`
	DefaultMaxRounds  int           `mapstructure:"default_max_rounds"`
	MessagesPerSecond float64       `mapstructure:"messages_per_second"`
	MessageBurst      int           `mapstructure:"message_burst"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

type JanitorConfig struct {
	Schedule string        `mapstructure:"schedule"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

type MonitorConfig struct {
	Namespace string `mapstructure:"namespace"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", "127.0.0.1:8081")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.dbname", "thiefhunt")
	v.SetDefault("database.sqlite.path", "thiefhunt.db")
	v.SetDefault("game.round_seconds", 60)
	v.SetDefault("game.tick_interval", time.Second)
	v.SetDefault("game.default_max_rounds", 5)
	v.SetDefault("game.messages_per_second", 10.0)
	v.SetDefault("game.message_burst", 20)
	v.SetDefault("game.heartbeat_interval", 30*time.Second)
	v.SetDefault("janitor.schedule", "@hourly")
	v.SetDefault("janitor.max_age", 24*time.Hour)
	v.SetDefault("monitor.namespace", "thiefhunt")
}

// LoadConfig reads config.yaml from path. A missing file is not an error:
// defaults and environment variables (e.g. SERVER_HTTP_ADDRESS) still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

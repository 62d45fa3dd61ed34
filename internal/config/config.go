package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Places   PlacesConfig   `mapstructure:"places"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type StorageConfig struct {
	Driver string       `mapstructure:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// GatewayConfig configures the WhatsApp gateway client. CountryCode is
// prepended to phone numbers that do not already carry it.
type GatewayConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	CountryCode string        `mapstructure:"country_code"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// DispatchConfig controls scheduling spacing and processor throttling.
type DispatchConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	BatchLimit int           `mapstructure:"batch_limit"`
	SendDelay  time.Duration `mapstructure:"send_delay"`
	PollRate   time.Duration `mapstructure:"poll_rate"`
	SweepRate  time.Duration `mapstructure:"sweep_rate"`
}

type PlacesConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Country   string        `mapstructure:"country"`
	Language  string        `mapstructure:"language"`
	PageSize  int           `mapstructure:"page_size"`
	PageDelay time.Duration `mapstructure:"page_delay"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("zapcamp")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/zapcamp")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ZAPCAMP")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./data/zapcamp.db")

	viper.SetDefault("gateway.base_url", "http://localhost:3000")
	viper.SetDefault("gateway.country_code", "55")
	viper.SetDefault("gateway.timeout", 30*time.Second)

	viper.SetDefault("dispatch.interval", 1*time.Minute)
	viper.SetDefault("dispatch.batch_limit", 10)
	viper.SetDefault("dispatch.send_delay", 2*time.Second)
	viper.SetDefault("dispatch.poll_rate", 30*time.Second)
	viper.SetDefault("dispatch.sweep_rate", 1*time.Minute)

	viper.SetDefault("places.base_url", "https://google.serper.dev")
	viper.SetDefault("places.country", "br")
	viper.SetDefault("places.language", "pt-br")
	viper.SetDefault("places.page_size", 20)
	viper.SetDefault("places.page_delay", 1*time.Second)
	viper.SetDefault("places.timeout", 20*time.Second)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

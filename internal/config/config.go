package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Device  DeviceConfig  `mapstructure:"device"`
	Queue   QueueConfig   `mapstructure:"queue"`
	History HistoryConfig `mapstructure:"history"`
	Notes   NotesConfig   `mapstructure:"notes"`
	Service ServiceConfig `mapstructure:"service"`
	HTTP    HTTPConfig    `mapstructure:"http"`
}

type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DeviceConfig struct {
	WSURL string `mapstructure:"ws_url"`
}

type QueueConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type HistoryConfig struct {
	Size int `mapstructure:"size"`
}

type NotesConfig struct {
	Workspace string `mapstructure:"workspace"`
}

type ServiceConfig struct {
	LogLevel string `mapstructure:"log_level"`
}

type HTTPConfig struct {
	Port    int  `mapstructure:"port"`
	Enabled bool `mapstructure:"enabled"`
}

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("backend.base_url", "http://localhost:8080")
	viper.SetDefault("backend.timeout", 15*time.Second)
	viper.SetDefault("device.ws_url", "ws://localhost:8081/device")
	viper.SetDefault("queue.poll_interval", 30*time.Second)
	viper.SetDefault("history.size", 10)
	viper.SetDefault("notes.workspace", ".")
	viper.SetDefault("service.log_level", "info")
	viper.SetDefault("http.port", 8090)
	viper.SetDefault("http.enabled", true)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

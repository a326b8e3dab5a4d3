package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Port   int    `mapstructure:"port"`
	Secret string `mapstructure:"secret"`

	ControlPlaneURL   string `mapstructure:"control_plane_url"`
	ControlPlaneToken string `mapstructure:"control_plane_token"`

	RoomBaseURL string `mapstructure:"room_base_url"`
	RoomPrefix  string `mapstructure:"room_prefix"`
	DisplayName string `mapstructure:"display_name"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("room_prefix", "meet")
	v.SetDefault("display_name", "guest")

	// The bearer credential is provisioned outside the app; env always wins
	// over the config file for it.
	v.SetDefault("control_plane_token", os.Getenv("CONTROL_PLANE_TOKEN"))

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Control plane: %s\n", cfg.Mode, cfg.Port, cfg.ControlPlaneURL)
	return &cfg, nil
}

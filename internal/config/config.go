package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	DebugfsRoot string `mapstructure:"debugfs_root"`
	SysfsRoot   string `mapstructure:"sysfs_root"`
	StateFile   string `mapstructure:"state_file"`
	DisplayName string `mapstructure:"display_name"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	LogFile     string `mapstructure:"log_file"`
}

func Default() *Config {
	return &Config{
		DebugfsRoot: "/sys/kernel/debug/dri",
		SysfsRoot:   "/sys/class/drm",
		StateFile:   "/var/lib/vdisplay/session.json",
		DisplayName: "Virtual Displ",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("vdisplay")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("VDISPLAY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configDir() string {
	return "/etc/vdisplay"
}

// Package config loads docdb's startup options from flags, environment
// variables and an optional YAML file, using spf13/viper the way the
// teacher's cli package binds it.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is docdb's full set of startup options.
type Config struct {
	ListenAddr   string
	DataDir      string
	DatabaseName string
	APIKey       string
	LogLevel     string
}

// BindFlags registers the viper keys this package reads, with their
// defaults. Call once during CLI init, before Load.
func BindFlags(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("database_name", "docdb")
	v.SetDefault("api_key", "")
	v.SetDefault("log_level", "info")
}

// Load reads the bound keys into a Config.
func Load(v *viper.Viper) Config {
	return Config{
		ListenAddr:   v.GetString("listen_addr"),
		DataDir:      v.GetString("data_dir"),
		DatabaseName: v.GetString("database_name"),
		APIKey:       v.GetString("api_key"),
		LogLevel:     v.GetString("log_level"),
	}
}

// DBPath is the bbolt file path within DataDir.
func (c Config) DBPath() string {
	return fmt.Sprintf("%s/%s.db", c.DataDir, c.DatabaseName)
}

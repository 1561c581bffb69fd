package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadAppliesDefaults(t *testing.T) {
	v := viper.New()
	BindFlags(v)

	cfg := Load(v)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "docdb", cfg.DatabaseName)
	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadHonorsOverrides(t *testing.T) {
	v := viper.New()
	BindFlags(v)
	v.Set("listen_addr", ":9090")
	v.Set("api_key", "secret")

	cfg := Load(v)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "secret", cfg.APIKey)
}

func TestDBPathJoinsDataDirAndName(t *testing.T) {
	cfg := Config{DataDir: "/var/lib/docdb", DatabaseName: "primary"}
	assert.Equal(t, "/var/lib/docdb/primary.db", cfg.DBPath())
}

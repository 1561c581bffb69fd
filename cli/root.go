// Package cli implements docdb's command-line entrypoint: flag/config
// binding via spf13/cobra and spf13/viper, and the startup sequence that
// wires the engine to the HTTP server with graceful shutdown.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docdb/api"
	"docdb/common"
	"docdb/config"
	"docdb/engine"
	httpserver "docdb/http"
)

var cfgFile string

// RootCmd is docdb's entrypoint command.
var RootCmd = &cobra.Command{
	Use:   "docdbd",
	Short: "an embedded, single-node document database server",
	Long: `docdbd serves a durable key/document store over HTTP/JSON: set,
get, delete, batch and transactional writes, a boolean/comparison/geo query
language over a secondary field index, and a live change-event stream.`,
	RunE: runServer,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./docdb.yaml)")
	RootCmd.PersistentFlags().String("listen-addr", "", "HTTP listen address, e.g. :8080")
	RootCmd.PersistentFlags().String("data-dir", "", "directory holding the database file")
	RootCmd.PersistentFlags().String("database-name", "", "database file name, without extension")
	RootCmd.PersistentFlags().String("api-key", "", "required X-API-Key header value; empty disables auth")
	RootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error")

	viper.BindPFlag("listen_addr", RootCmd.PersistentFlags().Lookup("listen-addr"))
	viper.BindPFlag("data_dir", RootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("database_name", RootCmd.PersistentFlags().Lookup("database-name"))
	viper.BindPFlag("api_key", RootCmd.PersistentFlags().Lookup("api-key"))
	viper.BindPFlag("log_level", RootCmd.PersistentFlags().Lookup("log-level"))

	config.BindFlags(viper.GetViper())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("docdb")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		common.Logger.WithField("file", viper.ConfigFileUsed()).Info("loaded config file")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg := config.Load(viper.GetViper())
	common.Logger.SetLevel(logLevel(cfg.LogLevel))

	eng, err := engine.Open(cfg.DBPath())
	if err != nil {
		return err
	}
	defer eng.Close()

	serverConfig := httpserver.DefaultServerConfig()
	e := api.NewServer(eng, cfg.APIKey, serverConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		common.Logger.Info("shutdown signal received")
		cancel()
	}()

	common.Logger.WithField("addr", cfg.ListenAddr).Info("starting docdb server")
	return httpserver.StartWithGracefulShutdown(ctx, e, cfg.ListenAddr, serverConfig.ShutdownTimeout)
}

func logLevel(level string) logrus.Level {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return l
}

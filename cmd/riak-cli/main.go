package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pior/riak"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	servers    []string
	timeout    time.Duration
	bucketType string
	client     *riak.Client
	loadedCfg  fileConfig
)

var rootCmd = &cobra.Command{
	Use:           "riak-cli",
	Short:         "Command-line client for Riak KV over the protocol buffers interface",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		loadedCfg, err = loadConfig(configPath(), cfgFile != "")
		if err != nil {
			return err
		}
		if len(servers) > 0 {
			loadedCfg.Servers = servers
		}
		if cmd.Flags().Changed("timeout") {
			loadedCfg.RequestTimeout = timeout
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(loadedCfg.LogLevel)}))
		slog.SetDefault(logger)

		client, err = riak.NewClient(riak.NewStaticServers(loadedCfg.Servers...), riak.Config{
			MaxSize:        loadedCfg.MaxConnections,
			ConnectTimeout: loadedCfg.ConnectTimeout,
			Logger:         logger,
		})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if client != nil {
			client.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/riak-cli/config.toml)")
	rootCmd.PersistentFlags().StringSliceVarP(&servers, "servers", "s", nil, "server addresses (host:port)")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "request timeout")
	rootCmd.PersistentFlags().StringVar(&bucketType, "type", "", "bucket type")

	rootCmd.AddCommand(pingCmd, infoCmd, getCmd, putCmd, deleteCmd, bucketsCmd, keysCmd, metricsCmd)
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "riak-cli", "config.toml")
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelWarn
	}
	return level
}

// requestContext bounds one command by the request timeout.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), loadedCfg.RequestTimeout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

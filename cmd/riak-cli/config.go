package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pior/riak"
)

// fileConfig is the optional TOML configuration file:
//
//	servers = ["10.0.0.1:8087", "10.0.0.2:8087"]
//	connect_timeout = "2s"
//	request_timeout = "5s"
//	max_connections = 4
//	log_level = "debug"
type fileConfig struct {
	Servers        []string      `toml:"servers"`
	ConnectTimeout time.Duration `toml:"connect_timeout"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	MaxConnections int32         `toml:"max_connections"`
	LogLevel       string        `toml:"log_level"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Servers:        []string{"127.0.0.1:8087"},
		ConnectTimeout: riak.DefaultConnectTimeout,
		RequestTimeout: 10 * time.Second,
		MaxConnections: 2,
		LogLevel:       "warn",
	}
}

// loadConfig reads path over the defaults. A missing file is not an error
// unless the path was given explicitly.
func loadConfig(path string, explicit bool) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("load %s: unknown keys %v", path, undecoded)
	}
	return cfg, nil
}

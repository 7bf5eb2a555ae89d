// Package config loads the server configuration from an HCL file. A
// missing file yields the defaults; the CLI layers its flag overrides on
// top of whatever is loaded here.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the full server configuration.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
}

// ServerSettings contains server-level configuration.
type ServerSettings struct {
	Address            string `hcl:"address,optional"`
	Port               int    `hcl:"port,optional"`
	LogLevel           string `hcl:"log_level,optional"`
	Store              string `hcl:"store,optional"`   // "sqlite" or "memory"
	DBPath             string `hcl:"db_path,optional"` // sqlite database file
	AuthSecret         string `hcl:"auth_secret,optional"`
	TargetScore        int    `hcl:"target_score,optional"`
	DisconnectGraceSec int    `hcl:"disconnect_grace_sec,optional"`
	ConnectionTTLHours int    `hcl:"connection_ttl_hours,optional"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Address:            "localhost",
			Port:               8080,
			LogLevel:           "info",
			Store:              "sqlite",
			DBPath:             "thirteen.db",
			TargetScore:        21,
			DisconnectGraceSec: 5,
			ConnectionTTLHours: 2,
		},
	}
}

// Load reads the configuration file at path. A missing file returns the
// defaults without error.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse config: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("decode config: %s", diags.Error())
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default().Server
	if cfg.Server.Address == "" {
		cfg.Server.Address = def.Address
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Port
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = def.LogLevel
	}
	if cfg.Server.Store == "" {
		cfg.Server.Store = def.Store
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = def.DBPath
	}
	if cfg.Server.TargetScore == 0 {
		cfg.Server.TargetScore = def.TargetScore
	}
	if cfg.Server.DisconnectGraceSec == 0 {
		cfg.Server.DisconnectGraceSec = def.DisconnectGraceSec
	}
	if cfg.Server.ConnectionTTLHours == 0 {
		cfg.Server.ConnectionTTLHours = def.ConnectionTTLHours
	}
}

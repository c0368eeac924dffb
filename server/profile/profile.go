// Package profile holds the runtime configuration resolved at startup.
package profile

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Profile is the server's runtime configuration.
type Profile struct {
	// Mode is "prod" or "dev".
	Mode string
	// Addr is the bind address; empty binds all interfaces.
	Addr string
	// Port is the bind port.
	Port int
	// Data is the directory holding local state (sqlite db and friends).
	Data string
	// Driver is the database driver: sqlite, mysql or postgres.
	Driver string
	// DSN is the database connection string. Defaults to a sqlite file
	// under Data.
	DSN string
	// Secret signs access tokens.
	Secret string
	// AIBaseURL is the completion provider endpoint the relay talks to.
	AIBaseURL string
}

const defaultAIBaseURL = "https://api.deepseek.com/v1"

// GetFromViper builds a Profile from bound flags and environment.
func GetFromViper() (*Profile, error) {
	p := &Profile{
		Mode:      viper.GetString("mode"),
		Addr:      viper.GetString("addr"),
		Port:      viper.GetInt("port"),
		Data:      viper.GetString("data"),
		Driver:    viper.GetString("driver"),
		DSN:       viper.GetString("dsn"),
		Secret:    viper.GetString("secret"),
		AIBaseURL: viper.GetString("ai-base-url"),
	}
	if p.Mode != "prod" && p.Mode != "dev" {
		p.Mode = "dev"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver == "sqlite" && p.DSN == "" {
		if p.Data == "" {
			return nil, errors.New("data directory required for the sqlite driver")
		}
		p.DSN = filepath.Join(p.Data, fmt.Sprintf("inkwell_%s.db", p.Mode))
	}
	if p.Secret == "" {
		return nil, errors.New("secret required")
	}
	if p.AIBaseURL == "" {
		p.AIBaseURL = defaultAIBaseURL
	}
	return p, nil
}

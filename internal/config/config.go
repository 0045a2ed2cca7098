// Package config wires viper-backed configuration for plait. Values
// resolve in the usual order: explicit flag, PLAIT_* environment
// variable, config file, built-in default.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	v    *viper.Viper
	once sync.Once
)

// Keys used across the command surface.
const (
	KeyActor           = "actor"            // default assignee for start
	KeyJSON            = "json"             // machine-readable output
	KeySyncMinInterval = "sync.min-interval" // throttle between backend sweeps
	KeyTreeCacheDir    = "tree.cache-dir"   // clone cache for remote references
)

// Get returns the process-wide configuration, initialized on first use.
func Get() *viper.Viper {
	once.Do(initConfig)
	return v
}

func initConfig() {
	v = viper.New()
	v.SetEnvPrefix("PLAIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyActor, defaultActor())
	v.SetDefault(KeyJSON, false)
	v.SetDefault(KeySyncMinInterval, time.Minute)
	v.SetDefault(KeyTreeCacheDir, defaultCacheDir())

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".plait")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "plait"))
	}
	// A missing config file is the normal case.
	_ = v.ReadInConfig()
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "plait")
	}
	return filepath.Join(os.TempDir(), "plait-cache")
}

// Actor returns who mutations should be attributed to.
func Actor() string {
	return Get().GetString(KeyActor)
}

// SyncMinInterval returns the minimum wait between backend sync sweeps.
func SyncMinInterval() time.Duration {
	return Get().GetDuration(KeySyncMinInterval)
}

// TreeCacheDir returns where remote child repositories are cloned.
func TreeCacheDir() string {
	return Get().GetString(KeyTreeCacheDir)
}

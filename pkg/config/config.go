// Copyright 2025 The imgdock Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/imgdock/imgdock/pkg/dlog"
)

// Config holds all process-wide settings. It is loaded once at startup;
// components receive it by value and never re-read the environment.
// The only live-reloaded setting is the log level.
type Config struct {
	StorageEndpoint  string   `mapstructure:"storageEndpoint"`
	StorageBucket    string   `mapstructure:"storageBucket"`
	StorageAccessKey string   `mapstructure:"storageAccessKey"`
	StorageSecretKey string   `mapstructure:"storageSecretKey"`
	StorageUseSSL    bool     `mapstructure:"storageUseSSL"`
	PublicDomain     string   `mapstructure:"publicDomain"`
	MongoURI         string   `mapstructure:"mongoURI"`
	RedisURL         string   `mapstructure:"redisURL"`
	Port             int      `mapstructure:"port"`
	MaxSizeMB        uint64   `mapstructure:"maxSizeMB"`
	AllowedTypes     []string `mapstructure:"allowedTypes"`
	EncryptionKey    string   `mapstructure:"encryptionKey"`
	LogLevel         string   `mapstructure:"logLevel"`
}

// MaxSize returns the upload size ceiling in bytes.
func (c Config) MaxSize() uint64 {
	return c.MaxSizeMB * 1024 * 1024
}

// EncryptionKeyBytes decodes the optional hex-encoded response
// encryption key. An empty setting yields a nil key, which disables
// the obfuscated response variant.
func (c Config) EncryptionKeyBytes() ([]byte, error) {
	if c.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryptionKey is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryptionKey must decode to exactly 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Validate checks that every required setting is present and coherent.
func (c Config) Validate() error {
	switch {
	case c.StorageEndpoint == "":
		return errors.New("storageEndpoint is required")
	case c.StorageBucket == "":
		return errors.New("storageBucket is required")
	case c.StorageAccessKey == "":
		return errors.New("storageAccessKey is required")
	case c.StorageSecretKey == "":
		return errors.New("storageSecretKey is required")
	case c.PublicDomain == "":
		return errors.New("publicDomain is required")
	case c.MongoURI == "":
		return errors.New("mongoURI is required")
	case c.RedisURL == "":
		return errors.New("redisURL is required")
	case c.MaxSizeMB == 0:
		return errors.New("maxSizeMB must be positive")
	case len(c.AllowedTypes) == 0:
		return errors.New("allowedTypes must not be empty")
	}
	if _, err := c.EncryptionKeyBytes(); err != nil {
		return err
	}
	return nil
}

var (
	once sync.Once

	mu sync.RWMutex

	config Config
)

func InitConfig() error {
	var initErr error
	once.Do(func() {
		initErr = LoadAndWatch()
	})
	return initErr
}

func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return config
}

func LoadAndWatch() error {
	pflag.Int("port", 0, "HTTP listen port.")
	pflag.String("logLevel", "", "Log level (debug, info, warn, error, fatal).")
	pflag.Parse()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return fmt.Errorf("failed to bind pflags: %w", err)
	}

	viper.SetDefault("port", 3000)
	viper.SetDefault("maxSizeMB", 99)
	viper.SetDefault("allowedTypes", []string{"image/jpeg", "image/png", "image/gif", "image/webp"})
	viper.SetDefault("storageUseSSL", true)
	viper.SetDefault("logLevel", "info")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/imgdock/")

	viper.SetEnvPrefix("IMGDOCK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			dlog.Infof("Config file not found, using environment and defaults.")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}

	mu.Lock()
	if err := viper.Unmarshal(&config); err != nil {
		mu.Unlock()
		return fmt.Errorf("the initial configuration cannot be decoded into the struct: %w", err)
	}
	err := config.Validate()
	mu.Unlock()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Only the log level is applied on reload; everything else stays as
	// captured at startup so request handling never observes a config
	// change mid-flight.
	viper.OnConfigChange(func(e fsnotify.Event) {
		dlog.Infof("Config file changed: %s", e.Name)

		newLogLevel, err := dlog.ParseLevel(viper.GetString("logLevel"))
		if err != nil {
			dlog.Warnf("New log level in config is invalid: %v. Keeping previous level.", err)
			return
		}
		dlog.SetLevel(newLogLevel)
		dlog.Infof("Log level reloaded successfully to: %s", viper.GetString("logLevel"))
	})
	viper.WatchConfig()

	return nil
}

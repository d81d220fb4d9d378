// Copyright 2025 Poiesic Systems
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

// Package config loads docpipe settings from a YAML file and .env files.
//
// Command-line flags take precedence over file values; the CLI applies the
// file first and then any flag the user set explicitly.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/docpipe/ai"
	"gopkg.in/yaml.v3"
)

// File mirrors the YAML configuration file.
type File struct {
	Root        string     `yaml:"root"`
	LogLevel    string     `yaml:"log_level"`
	LogFormat   string     `yaml:"log_format"`
	PoolSize    int        `yaml:"pool_size"`
	MetricsAddr string     `yaml:"metrics_addr"`
	Embeddings  Embeddings `yaml:"embeddings"`
	Watch       Watch      `yaml:"watch"`
}

// Embeddings configures the embedding strategy chain.
type Embeddings struct {
	LocalHost         string        `yaml:"local_host"`
	LocalModel        string        `yaml:"local_model"`
	DisableLocal      bool          `yaml:"disable_local"`
	RemoteHost        string        `yaml:"remote_host"`
	RemoteModel       string        `yaml:"remote_model"`
	APIKey            string        `yaml:"api_key"`
	Dimension         int           `yaml:"dimension"`
	RemoteRPS         float64       `yaml:"remote_rps"`
	RemoteMaxAttempts int           `yaml:"remote_max_attempts"`
	RemoteRetryDelay  time.Duration `yaml:"remote_retry_delay"`
}

// Watch configures the inbox watcher.
type Watch struct {
	Inbox   string `yaml:"inbox"`
	User    string `yaml:"user"`
	Project string `yaml:"project"`
}

// Load reads the YAML file at path. An empty path yields an empty File.
func Load(path string) (*File, error) {
	f := &File{}
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return f, nil
}

// LoadEnv loads variables from the given .env files without overriding
// variables already set. Missing files are ignored.
func LoadEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// AIOptions returns options for every embedding setting present in the file.
func (f *File) AIOptions() []ai.ConfigOption {
	e := f.Embeddings
	var opts []ai.ConfigOption
	if e.LocalHost != "" {
		opts = append(opts, ai.WithLocalHost(e.LocalHost))
	}
	if e.LocalModel != "" {
		opts = append(opts, ai.WithLocalModel(e.LocalModel))
	}
	if e.DisableLocal {
		opts = append(opts, ai.WithoutLocal())
	}
	if e.RemoteHost != "" {
		opts = append(opts, ai.WithRemoteHost(e.RemoteHost))
	}
	if e.RemoteModel != "" {
		opts = append(opts, ai.WithRemoteModel(e.RemoteModel))
	}
	if e.APIKey != "" {
		opts = append(opts, ai.WithAPIKey(e.APIKey))
	}
	if e.Dimension > 0 {
		opts = append(opts, ai.WithDimension(e.Dimension))
	}
	if e.RemoteRPS > 0 {
		opts = append(opts, ai.WithRemoteRateLimit(e.RemoteRPS))
	}
	if e.RemoteMaxAttempts > 0 {
		opts = append(opts, ai.WithRemoteRetry(e.RemoteMaxAttempts, e.RemoteRetryDelay))
	}
	return opts
}

// Copyright 2020 Vizier DB.
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

// Package config loads the dataset subsystem's configuration from a YAML file with environment
// overrides.
package config

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v2"

	"github.com/vizierdb/vizier/go/libraries/utils/filesys"
	"github.com/vizierdb/vizier/go/libraries/vizcore/mimir"
)

// Environment variables overriding file settings.
const (
	EnvDataDir = "VIZIER_DATA_DIR"
	EnvFileDir = "VIZIER_FILE_DIR"
)

// Config holds the locations and endpoints the dataset subsystem works against.
type Config struct {
	// DataDir is the directory dataset versions are stored in.
	DataDir string `yaml:"dataDir"`

	// FileDir is the directory uploaded and downloaded files are stored in.
	FileDir string `yaml:"fileDir"`

	// MimirURL is the API root of the Mimir engine, used by the pushdown backend.
	MimirURL string `yaml:"mimirUrl"`

	// Debug enables verbose logging.
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DataDir:  ".vizierdb/datasets",
		FileDir:  ".vizierdb/files",
		MimirURL: mimir.URLFromEnv(),
	}
}

// Load reads a configuration file and applies environment overrides. A missing file yields the
// defaults.
func Load(fs filesys.ReadableFS, path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := fs.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "failed to read config %s", path)
		}
		if err == nil {
			if err = yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, errors.Wrapf(err, "malformed config %s", path)
			}
		}
	}

	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvFileDir); v != "" {
		cfg.FileDir = v
	}
	if v := os.Getenv(mimir.EnvURL); v != "" {
		cfg.MimirURL = v
	}
	if cfg.MimirURL == "" {
		cfg.MimirURL = mimir.DefaultURL
	}

	return cfg, nil
}

// NewLogger builds the subsystem's logger according to the configuration.
func (c Config) NewLogger() (*zap.Logger, error) {
	if c.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

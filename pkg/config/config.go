/*
 * Copyright 2025 Quay Labs, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads daemon and capability configuration from JSON files
// with environment-variable overlay.
package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/quaylabs/peripheral/pkg/logger"
)

var errLoadConfigFailed = errors.New("failed to load configuration")

// Loader populates dst from one configuration source.
type Loader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by configuration structs that can check
// themselves after loading.
type Validator interface {
	Validate() error
}

// Config chains a file loader with an environment overlay and runs
// validation when the destination supports it.
type Config struct {
	fileLoader Loader
	envLoader  Loader
	logger     logger.Logger
}

func NewConfig(log logger.Logger, envPrefix string) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{
		fileLoader: &FileLoader{},
		envLoader:  NewEnvLoader(log, envPrefix),
		logger:     log,
	}
}

// Load reads the file at path (when non-empty), applies environment
// overrides on top, then validates.
func (c *Config) Load(ctx context.Context, path string, dst interface{}) error {
	if path != "" {
		if err := c.fileLoader.Load(ctx, path, dst); err != nil {
			return fmt.Errorf("%w: %w", errLoadConfigFailed, err)
		}
	}

	if err := c.envLoader.Load(ctx, "", dst); err != nil {
		return fmt.Errorf("%w: %w", errLoadConfigFailed, err)
	}

	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", errLoadConfigFailed, err)
		}
	}

	c.logger.Debug().Str("path", path).Msg("Configuration loaded")

	return nil
}

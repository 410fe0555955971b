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

package sharing

import (
	"fmt"
	"time"

	"github.com/quaylabs/peripheral/pkg/capability"
	"github.com/quaylabs/peripheral/pkg/models"
)

const (
	minChunkSizeBytes = 4 * 1024
)

// Config describes the peer-to-peer sharing capability. It is an immutable
// value: adjustments and merges produce a new Config.
type Config struct {
	Enabled                bool            `json:"enabled"`
	MaxConcurrentTransfers int             `json:"max_concurrent_transfers"`
	MaxFileSizeBytes       int64           `json:"max_file_size_bytes"`
	ChunkSizeBytes         int64           `json:"chunk_size_bytes"`
	TransferTimeout        models.Duration `json:"transfer_timeout"`
	DiscoveryTimeout       models.Duration `json:"discovery_timeout"`
	HistoryLimit           int             `json:"history_limit"`
	HistoryMaxAge          models.Duration `json:"history_max_age"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:                true,
		MaxConcurrentTransfers: 3,
		MaxFileSizeBytes:       2 << 30, // 2 GiB
		ChunkSizeBytes:         1 << 20, // 1 MiB
		TransferTimeout:        models.Duration(5 * time.Minute),
		DiscoveryTimeout:       models.Duration(10 * time.Second),
		HistoryLimit:           100,
		HistoryMaxAge:          models.Duration(24 * time.Hour),
	}
}

func (c Config) Validate() error {
	switch {
	case c.MaxConcurrentTransfers <= 0:
		return fmt.Errorf("%w: max_concurrent_transfers must be positive", capability.ErrInvalidConfiguration)
	case c.MaxFileSizeBytes <= 0:
		return fmt.Errorf("%w: max_file_size_bytes must be positive", capability.ErrInvalidConfiguration)
	case c.ChunkSizeBytes <= 0:
		return fmt.Errorf("%w: chunk_size_bytes must be positive", capability.ErrInvalidConfiguration)
	case c.ChunkSizeBytes > c.MaxFileSizeBytes:
		return fmt.Errorf("%w: chunk_size_bytes exceeds max_file_size_bytes", capability.ErrInvalidConfiguration)
	case c.TransferTimeout <= 0:
		return fmt.Errorf("%w: transfer_timeout must be positive", capability.ErrInvalidConfiguration)
	case c.DiscoveryTimeout <= 0:
		return fmt.Errorf("%w: discovery_timeout must be positive", capability.ErrInvalidConfiguration)
	case c.HistoryLimit <= 0:
		return fmt.Errorf("%w: history_limit must be positive", capability.ErrInvalidConfiguration)
	case c.HistoryMaxAge <= 0:
		return fmt.Errorf("%w: history_max_age must be positive", capability.ErrInvalidConfiguration)
	default:
		return nil
	}
}

// Merged returns a right-biased override: every field of other replaces the
// receiver. A nil other leaves the receiver unchanged.
func (c Config) Merged(other *Config) Config {
	if other == nil {
		return c
	}

	return *other
}

// AdjustedFor lowers resource usage under constrained environments. It is
// pure and never increases a size, rate, or duration field.
func (c Config) AdjustedFor(env models.Environment) Config {
	out := c

	if env.LowPowerMode {
		out.MaxConcurrentTransfers = max(1, c.MaxConcurrentTransfers/2)
		out.ChunkSizeBytes = max(minChunkSizeBytes, c.ChunkSizeBytes/2)
		out.MaxFileSizeBytes = max(minChunkSizeBytes, c.MaxFileSizeBytes/2)
	}

	if env.DebugMode {
		out.HistoryLimit = max(10, c.HistoryLimit/2)
	}

	return out
}

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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/peripheral/pkg/logger"
	"github.com/quaylabs/peripheral/pkg/models"
)

type serverSection struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type testConfig struct {
	Name     string          `json:"name"`
	Debug    bool            `json:"debug"`
	Timeout  models.Duration `json:"timeout"`
	Server   serverSection   `json:"server"`
	validErr error
}

func (c *testConfig) Validate() error { return c.validErr }

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestFileLoader(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `{"name":"capd","debug":true,"timeout":"30s","server":{"host":"localhost","port":9090}}`)

	var cfg testConfig

	loader := &FileLoader{}
	require.NoError(t, loader.Load(context.Background(), path, &cfg))

	assert.Equal(t, "capd", cfg.Name)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Timeout))
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestFileLoaderMissingFile(t *testing.T) {
	t.Parallel()

	loader := &FileLoader{}

	var cfg testConfig

	require.Error(t, loader.Load(context.Background(), "/nonexistent/config.json", &cfg))
}

func TestEnvLoaderOverlay(t *testing.T) {
	t.Setenv("TESTCAP_NAME", "from-env")
	t.Setenv("TESTCAP_SERVER_PORT", "7070")
	t.Setenv("TESTCAP_TIMEOUT", "45s")

	cfg := testConfig{Name: "from-file", Server: serverSection{Port: 9090}}

	loader := NewEnvLoader(logger.NewTestLogger(), "TESTCAP_")
	require.NoError(t, loader.Load(context.Background(), "", &cfg))

	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, time.Duration(cfg.Timeout))
}

func TestEnvLoaderConfigJSON(t *testing.T) {
	t.Setenv("TESTJSON_CONFIG_JSON", `{"name":"json-wins","server":{"port":1}}`)

	var cfg testConfig

	loader := NewEnvLoader(logger.NewTestLogger(), "TESTJSON_")
	require.NoError(t, loader.Load(context.Background(), "", &cfg))

	assert.Equal(t, "json-wins", cfg.Name)
	assert.Equal(t, 1, cfg.Server.Port)
}

func TestEnvLoaderRejectsNonPointer(t *testing.T) {
	t.Parallel()

	loader := NewEnvLoader(logger.NewTestLogger(), "X_")

	require.ErrorIs(t, loader.Load(context.Background(), "", nil), ErrDstMustBeNonNilPointer)

	s := "nope"
	require.ErrorIs(t, loader.Load(context.Background(), "", &s), ErrDstMustBePointerToStruct)
}

func TestConfigLoadRunsValidation(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `{"name":"capd"}`)

	cfg := testConfig{validErr: errors.New("bad config")} //nolint:err113 // test-local

	c := NewConfig(logger.NewTestLogger(), "NOPREFIX_")
	err := c.Load(context.Background(), path, &cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad config")
}

func TestConfigLoadFileThenEnv(t *testing.T) {
	t.Setenv("OVERLAY_DEBUG", "true")

	path := writeTempConfig(t, `{"name":"capd","debug":false}`)

	var cfg testConfig

	c := NewConfig(logger.NewTestLogger(), "OVERLAY_")
	require.NoError(t, c.Load(context.Background(), path, &cfg))

	assert.Equal(t, "capd", cfg.Name)
	assert.True(t, cfg.Debug)
}

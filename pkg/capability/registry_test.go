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

package capability

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/peripheral/pkg/logger"
)

func TestRegistryGetUnknownType(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	_, err := r.Get(context.Background(), "nope", "n", nil, logger.NewTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no capability registered")
}

func TestRegistryRegisterAndGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	r.Register("stub", func(_ context.Context, name string, _ json.RawMessage, log logger.Logger) (Capability, error) {
		return NewBase(name, &stubResource{}, log), nil
	})

	c, err := r.Get(context.Background(), "stub", "stub-0", nil, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, "stub-0", c.Name())

	assert.Equal(t, []string{"stub"}, r.Types())
}

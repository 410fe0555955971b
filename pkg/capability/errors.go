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
	"errors"
	"fmt"
)

var (
	// ErrNotAvailable is returned by the availability gate whenever a domain
	// operation is invoked outside the available state.
	ErrNotAvailable = errors.New("capability unavailable")

	// ErrFeatureDisabled is returned when an operation's feature toggle is off.
	ErrFeatureDisabled = errors.New("feature disabled")

	// ErrNotFound is returned for lookups of unknown domain objects.
	ErrNotFound = errors.New("not found")

	// ErrInvalidStateTransition is returned for activate/deactivate calls that
	// do not match the current lifecycle state.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrInvalidConfiguration is returned when a configuration fails validation.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnsupported is returned for unsupported object or media types.
	ErrUnsupported = errors.New("unsupported type")

	// ErrPermissionDenied is returned when the platform denies access.
	ErrPermissionDenied = errors.New("permission denied")
)

// LimitError reports a rejected operation together with the resource limit
// that rejected it, so callers can surface the configured value.
type LimitError struct {
	Resource string
	Limit    int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("too many active %s (limit %d)", e.Resource, e.Limit)
}

// AsLimitError unwraps err into a *LimitError when one is present.
func AsLimitError(err error) (*LimitError, bool) {
	var le *LimitError
	if errors.As(err, &le) {
		return le, true
	}

	return nil, false
}

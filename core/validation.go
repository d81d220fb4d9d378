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


package core

import (
	"fmt"
	"strings"
)

// ValidateSegment checks that s can be used as a single path segment.
//
// Validation rules:
//   - s must not be empty
//   - s must not contain "..", "/", "\" or NUL
//
// Callers trim surrounding whitespace before validating (see CleanSegment).
func ValidateSegment(s string) error {
	if s == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptySegment)
	}
	if strings.Contains(s, "..") ||
		strings.ContainsAny(s, "/\\\x00") {
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrUnsafeSegment, s)
	}
	return nil
}

// CleanSegment trims s and validates the result.
func CleanSegment(s string) (string, error) {
	s = strings.TrimSpace(s)
	if err := ValidateSegment(s); err != nil {
		return "", err
	}
	return s, nil
}

// ValidateNamespace validates both the user and project segments.
func ValidateNamespace(ns Namespace) error {
	if err := ValidateSegment(ns.User); err != nil {
		return fmt.Errorf("user: %w", err)
	}
	if err := ValidateSegment(ns.Project); err != nil {
		return fmt.Errorf("project: %w", err)
	}
	return nil
}

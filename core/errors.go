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

import "errors"

// Domain errors
var (
	// ErrValidation indicates a malformed identifier or an unknown artifact kind.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a missing upload, marker, embedding or namespace.
	ErrNotFound = errors.New("not found")

	// ErrExtraction indicates a parser failure on a supported file type.
	ErrExtraction = errors.New("extraction failed")

	// ErrEmptySegment indicates an identifier that is empty after trimming.
	ErrEmptySegment = errors.New("segment cannot be empty")

	// ErrUnsafeSegment indicates an identifier containing a path separator,
	// a parent reference or a NUL byte.
	ErrUnsafeSegment = errors.New("segment contains forbidden characters")

	// ErrUnknownKind indicates an artifact kind other than upload, marker or embedding.
	ErrUnknownKind = errors.New("unknown artifact kind")
)

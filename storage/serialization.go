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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docpipe/core"
)

// Registry values are MUS-encoded. Timestamps are stored as Unix milliseconds.

type timestampSer struct{}

// TimestampMUS encodes a time.Time as a varint of Unix milliseconds.
var TimestampMUS = timestampSer{}

func (timestampSer) Marshal(t time.Time, bs []byte) (n int) {
	return varint.Int64.Marshal(t.UnixMilli(), bs)
}

func (timestampSer) Unmarshal(bs []byte) (t time.Time, n int, err error) {
	ms, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMilli(ms).UTC(), n, nil
}

func (timestampSer) Size(t time.Time) (size int) {
	return varint.Int64.Size(t.UnixMilli())
}

type uploadEntrySer struct{}

// UploadEntryMUS encodes a core.UploadEntry field by field.
var UploadEntryMUS = uploadEntrySer{}

func (uploadEntrySer) Marshal(v core.UploadEntry, bs []byte) (n int) {
	n = ord.String.Marshal(string(v.ID), bs)
	n += ord.String.Marshal(v.OriginalName, bs[n:])
	n += ord.String.Marshal(v.ContentType, bs[n:])
	n += varint.Int64.Marshal(v.Size, bs[n:])
	n += ord.String.Marshal(v.Checksum, bs[n:])
	return n + TimestampMUS.Marshal(v.CreatedAt, bs[n:])
}

func (uploadEntrySer) Unmarshal(bs []byte) (v core.UploadEntry, n int, err error) {
	var (
		id string
		n1 int
	)
	id, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.ID = core.UploadID(id)
	v.OriginalName, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ContentType, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Size, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Checksum, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = TimestampMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (uploadEntrySer) Size(v core.UploadEntry) (size int) {
	size = ord.String.Size(string(v.ID))
	size += ord.String.Size(v.OriginalName)
	size += ord.String.Size(v.ContentType)
	size += varint.Int64.Size(v.Size)
	size += ord.String.Size(v.Checksum)
	return size + TimestampMUS.Size(v.CreatedAt)
}

// MarshalTimestamp serializes a timestamp to bytes.
func MarshalTimestamp(t time.Time) []byte {
	buf := make([]byte, TimestampMUS.Size(t))
	TimestampMUS.Marshal(t, buf)
	return buf
}

// UnmarshalTimestamp deserializes a timestamp from bytes.
func UnmarshalTimestamp(data []byte) (time.Time, error) {
	t, _, err := TimestampMUS.Unmarshal(data)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return t, nil
}

// MarshalUploadEntry serializes an UploadEntry to bytes.
func MarshalUploadEntry(entry *core.UploadEntry) []byte {
	buf := make([]byte, UploadEntryMUS.Size(*entry))
	UploadEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalUploadEntry deserializes an UploadEntry from bytes.
func UnmarshalUploadEntry(data []byte) (*core.UploadEntry, error) {
	entry, _, err := UploadEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &entry, nil
}

type namespaceSer struct{}

// NamespaceMUS encodes a core.Namespace as its user then its project.
var NamespaceMUS = namespaceSer{}

func (namespaceSer) Marshal(v core.Namespace, bs []byte) (n int) {
	n = ord.String.Marshal(v.User, bs)
	return n + ord.String.Marshal(v.Project, bs[n:])
}

func (namespaceSer) Unmarshal(bs []byte) (v core.Namespace, n int, err error) {
	var n1 int
	v.User, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Project, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (namespaceSer) Size(v core.Namespace) int {
	return ord.String.Size(v.User) + ord.String.Size(v.Project)
}

// MarshalNamespace serializes a namespace to bytes.
func MarshalNamespace(ns core.Namespace) []byte {
	buf := make([]byte, NamespaceMUS.Size(ns))
	NamespaceMUS.Marshal(ns, buf)
	return buf
}

// UnmarshalNamespace deserializes a namespace from bytes.
func UnmarshalNamespace(data []byte) (core.Namespace, error) {
	ns, _, err := NamespaceMUS.Unmarshal(data)
	if err != nil {
		return core.Namespace{}, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return ns, nil
}

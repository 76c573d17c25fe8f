// Copyright 2025 The imgdock Authors
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

// Package storage defines the collaborator interfaces of the transfer
// broker (object storage, metadata store, cache) and the records that
// flow between them. Business logic depends on the interfaces only.
package storage

import (
	"context"
	"errors"
	"net/url"
	"time"
)

// ErrNotFound reports a missing cache entry or metadata record.
var ErrNotFound = errors.New("record not found")

const (
	// PendingTTL bounds how long an authorized upload slot stays valid.
	// It matches the presigned URL validity window.
	PendingTTL = 300 * time.Second

	// RecordTTL is the lifetime of a cached lookup projection.
	RecordTTL = 24 * time.Hour
)

// PendingKey is the cache key of the ephemeral pending record.
func PendingKey(id string) string {
	return "pending:" + id
}

// RecordKey is the cache key of the read-path projection.
func RecordKey(id string) string {
	return "i:" + id
}

// PendingTransfer is the ephemeral record written when an upload is
// authorized and consumed by its completion call.
type PendingTransfer struct {
	Key  string `json:"key"`
	Size uint64 `json:"size"`
	Type string `json:"type,omitempty"`
}

// FinalRecord is the persisted metadata document. Immutable once
// written; d and p are reserved extension fields that default to empty.
type FinalRecord struct {
	ID          string  `bson:"_id" json:"id"`
	Key         string  `bson:"f" json:"f"`
	SizeMB      float64 `bson:"s" json:"s"`
	CreatedAt   int64   `bson:"t" json:"t"`
	Description string  `bson:"d" json:"d"`
	Permission  string  `bson:"p" json:"p"`
}

// RecordPayload is the read-path projection of a final record. The
// cache stores it without the c flag; c is injected on cache-originated
// responses only and never persisted.
type RecordPayload struct {
	URL         string  `json:"url"`
	Key         string  `json:"f"`
	SizeMB      float64 `json:"s"`
	CreatedAt   int64   `json:"t"`
	Description string  `json:"d,omitempty"`
	Permission  string  `json:"p,omitempty"`
	CacheHit    int     `json:"c,omitempty"`
}

// NewRecordPayload projects a final record onto its response form,
// deriving the public URL from the configured domain. Path separators
// in the storage key stay literal so the URL mirrors the bucket layout.
func NewRecordPayload(rec *FinalRecord, publicDomain string) RecordPayload {
	escaped := (&url.URL{Path: rec.Key}).EscapedPath()
	return RecordPayload{
		URL:         publicDomain + "/" + escaped,
		Key:         rec.Key,
		SizeMB:      rec.SizeMB,
		CreatedAt:   rec.CreatedAt,
		Description: rec.Description,
		Permission:  rec.Permission,
	}
}

// ObjectStore is the object-storage collaborator. The server never
// relays file bytes; it only issues presigned PUT URLs and checks that
// an object exists.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// RecordStore is the persistent metadata collaborator.
type RecordStore interface {
	Insert(ctx context.Context, rec *FinalRecord) error
	// FindByID returns ErrNotFound when no record exists for id.
	FindByID(ctx context.Context, id string) (*FinalRecord, error)
}

// Cache is the ephemeral TTL key-value collaborator.
type Cache interface {
	// Get returns ErrNotFound on a missing key.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Del reports whether the key existed and was removed. The boolean
	// is the atomic admission gate for transfer completion.
	Del(ctx context.Context, key string) (bool, error)
}

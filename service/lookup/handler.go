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

// Package lookup serves retrieval requests cache-first. The cache is
// advisory: unreadable or corrupt entries fall through to the metadata
// store, which is the sole source of truth. When an encryption key is
// configured, responses are wrapped in the hex AES-GCM envelope.
package lookup

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/imgdock/imgdock/pkg/api"
	"github.com/imgdock/imgdock/pkg/config"
	"github.com/imgdock/imgdock/pkg/cryptox"
	"github.com/imgdock/imgdock/pkg/dlog"
	"github.com/imgdock/imgdock/pkg/storage"
)

// Handler serves GET /i/{id}.
type Handler struct {
	cache   storage.Cache
	records storage.RecordStore
	cfg     config.Config
	key     []byte
}

// New builds the lookup handler; it fails if the configured encryption
// key is malformed. A nil key selects the plain response variant.
func New(cache storage.Cache, records storage.RecordStore, cfg config.Config) (*Handler, error) {
	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	return &Handler{cache: cache, records: records, cfg: cfg, key: key}, nil
}

type plainResponse struct {
	OK int    `json:"ok"`
	ID string `json:"id"`
	storage.RecordPayload
}

type obfuscatedResponse struct {
	OK      int    `json:"ok"`
	Payload string `json:"payload"`
}

// Get implements the cache-aside read path.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	cacheKey := storage.RecordKey(id)

	// Cache read failures of any kind are a miss, never an error.
	if raw, err := h.cache.Get(ctx, cacheKey); err == nil {
		var payload storage.RecordPayload
		if json.Unmarshal([]byte(raw), &payload) == nil {
			payload.CacheHit = 1
			h.respond(w, id, payload)
			return
		}
		dlog.Warnf("Corrupt cache entry for %s, falling back to store", id)
	} else if !errors.Is(err, storage.ErrNotFound) {
		dlog.Warnf("Cache read for %s failed: %v", id, err)
	}

	rec, err := h.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			api.WriteError(w, api.NotFound("record not found"))
			return
		}
		api.WriteError(w, api.Internal("store", err))
		return
	}

	payload := storage.NewRecordPayload(rec, h.cfg.PublicDomain)

	// Best-effort write-back; never fails the request.
	if b, err := json.Marshal(payload); err == nil {
		if err := h.cache.Set(ctx, cacheKey, string(b), storage.RecordTTL); err != nil {
			dlog.Warnf("Cache write-back for %s failed: %v", id, err)
		}
	}

	h.respond(w, id, payload)
}

func (h *Handler) respond(w http.ResponseWriter, id string, payload storage.RecordPayload) {
	if h.key == nil {
		api.WriteJSON(w, http.StatusOK, plainResponse{OK: 1, ID: id, RecordPayload: payload})
		return
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		api.WriteError(w, api.Internal("cipher", err))
		return
	}
	envelope, err := cryptox.Encrypt(plaintext, h.key)
	if err != nil {
		api.WriteError(w, api.Internal("cipher", err))
		return
	}

	api.WriteJSON(w, http.StatusOK, obfuscatedResponse{OK: 1, Payload: envelope})
}

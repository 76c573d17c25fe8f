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

// Package transfer implements the upload lifecycle: a client asks for
// permission to upload, uploads directly to object storage through a
// presigned URL, then confirms completion. The pending cache record is
// the only state between the two calls; its TTL matches the presigned
// URL validity, so an abandoned slot expires on its own.
package transfer

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/imgdock/imgdock/pkg/api"
	"github.com/imgdock/imgdock/pkg/config"
	"github.com/imgdock/imgdock/pkg/dlog"
	"github.com/imgdock/imgdock/pkg/storage"
	"github.com/imgdock/imgdock/pkg/util"
)

// Handler serves the transfer lifecycle endpoints.
type Handler struct {
	Objects storage.ObjectStore
	Cache   storage.Cache
	Records storage.RecordStore
	Cfg     config.Config
}

type createRequest struct {
	Name string `json:"name"`
	Size uint64 `json:"size"`
	Type string `json:"type"`
}

type createResponse struct {
	OK        int    `json:"ok"`
	ID        string `json:"id"`
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

type completeResponse struct {
	OK int    `json:"ok"`
	ID string `json:"id"`
}

// Create handles POST /transfer. It validates the request, issues a
// presigned PUT URL and records the pending transfer under a TTL.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, api.BadRequest("invalid request body"))
		return
	}

	if apiErr := validate(&req, h.Cfg.AllowedTypes, h.Cfg.MaxSize(), h.Cfg.MaxSizeMB); apiErr != nil {
		api.WriteError(w, apiErr)
		return
	}

	id := util.NewID()
	date, _ := util.NowParts()
	key := date + "/" + req.Name

	dlog.Infof("Transfer %s -> %s", id, key)

	uploadURL, err := h.Objects.PresignPut(ctx, key, req.Type, storage.PendingTTL)
	if err != nil {
		api.WriteError(w, api.Internal("storage", err))
		return
	}

	pending, err := json.Marshal(&storage.PendingTransfer{Key: key, Size: req.Size, Type: req.Type})
	if err != nil {
		api.WriteError(w, api.Internal("cache", err))
		return
	}
	if err := h.Cache.Set(ctx, storage.PendingKey(id), string(pending), storage.PendingTTL); err != nil {
		api.WriteError(w, api.Internal("cache", err))
		return
	}

	api.WriteJSON(w, http.StatusOK, createResponse{OK: 1, ID: id, UploadURL: uploadURL, Key: key})
}

// Complete handles POST /transfer/{id}/done. The pending record is
// read, the upload is verified against object storage, and an atomic
// delete of the pending key gates the commit: only the caller whose
// delete removed the key inserts the final record, so concurrent
// completions commit at most once.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	pendingKey := storage.PendingKey(id)

	raw, err := h.Cache.Get(ctx, pendingKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Expiry and never-created are deliberately conflated; the
			// distinction is not observable to the client.
			api.WriteError(w, api.NotFound("transfer expired or not found"))
			return
		}
		api.WriteError(w, api.Internal("cache", err))
		return
	}

	var pending storage.PendingTransfer
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		api.WriteError(w, api.Internal("cache", err))
		return
	}

	exists, err := h.Objects.Exists(ctx, pending.Key)
	if err != nil {
		api.WriteError(w, api.Internal("storage", err))
		return
	}
	if !exists {
		api.WriteError(w, api.BadRequest("file not uploaded to storage"))
		return
	}

	dlog.Infof("Verified %s", id)

	removed, err := h.Cache.Del(ctx, pendingKey)
	if err != nil {
		api.WriteError(w, api.Internal("cache", err))
		return
	}
	if !removed {
		// A concurrent completion consumed the record first.
		api.WriteError(w, api.NotFound("transfer expired or not found"))
		return
	}

	_, ts := util.NowParts()
	rec := &storage.FinalRecord{
		ID:        id,
		Key:       pending.Key,
		SizeMB:    sizeToMB(pending.Size),
		CreatedAt: ts,
	}

	if err := h.Records.Insert(ctx, rec); err != nil {
		api.WriteError(w, api.Internal("store", err))
		return
	}

	dlog.Infof("Saved %s", id)

	// Best-effort read-cache population; a failure only degrades the
	// next lookup to a store hit.
	if payload, err := json.Marshal(storage.NewRecordPayload(rec, h.Cfg.PublicDomain)); err == nil {
		if err := h.Cache.Set(ctx, storage.RecordKey(id), string(payload), storage.RecordTTL); err != nil {
			dlog.Warnf("Cache populate for %s failed: %v", id, err)
		}
	}

	api.WriteJSON(w, http.StatusOK, completeResponse{OK: 1, ID: id})
}

// sizeToMB converts the declared byte size to megabytes rounded
// half-up to two decimals. Units transition exactly once, here.
func sizeToMB(size uint64) float64 {
	return math.Round(float64(size)/1048576*100) / 100
}

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

package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgdock/imgdock/pkg/config"
	"github.com/imgdock/imgdock/pkg/storage"
)

type fakeObjects struct {
	uploadURL  string
	exists     bool
	presignErr error
	existsErr  error

	presignedKey  string
	presignedType string
}

func (f *fakeObjects) PresignPut(_ context.Context, key, contentType string, _ time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	f.presignedKey = key
	f.presignedType = contentType
	return f.uploadURL, nil
}

func (f *fakeObjects) Exists(_ context.Context, _ string) (bool, error) {
	return f.exists, f.existsErr
}

type fakeRecords struct {
	recs      map[string]*storage.FinalRecord
	insertErr error
	findErr   error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{recs: make(map[string]*storage.FinalRecord)}
}

func (f *fakeRecords) Insert(_ context.Context, rec *storage.FinalRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.recs[rec.ID] = rec
	return nil
}

func (f *fakeRecords) FindByID(_ context.Context, id string) (*storage.FinalRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	rec, ok := f.recs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

type memCache struct {
	m      map[string]string
	setErr map[string]error
}

func newMemCache() *memCache {
	return &memCache{m: make(map[string]string), setErr: make(map[string]error)}
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c.m[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	for prefix, err := range c.setErr {
		if strings.HasPrefix(key, prefix) {
			return err
		}
	}
	c.m[key] = value
	return nil
}

func (c *memCache) Del(_ context.Context, key string) (bool, error) {
	_, ok := c.m[key]
	delete(c.m, key)
	return ok, nil
}

func testConfig() config.Config {
	return config.Config{
		PublicDomain: "https://cdn.example.com",
		MaxSizeMB:    99,
		AllowedTypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
	}
}

func newTestHandler() (*Handler, *fakeObjects, *memCache, *fakeRecords) {
	objects := &fakeObjects{uploadURL: "https://storage.example.com/signed-put", exists: true}
	cache := newMemCache()
	records := newFakeRecords()
	h := &Handler{Objects: objects, Cache: cache, Records: records, Cfg: testConfig()}
	return h, objects, cache, records
}

func doCreate(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/transfer", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Create(rr, req)
	return rr
}

func doComplete(t *testing.T, h *Handler, id string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/transfer/"+id+"/done", nil)
	req.SetPathValue("id", id)
	rr := httptest.NewRecorder()
	h.Complete(rr, req)
	return rr
}

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9]{6}$`)

func TestCreate(t *testing.T) {
	h, objects, cache, _ := newTestHandler()

	rr := doCreate(t, h, `{"name":"cat.png","size":2000000,"type":"image/png"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		OK        int    `json:"ok"`
		ID        string `json:"id"`
		UploadURL string `json:"uploadUrl"`
		Key       string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Equal(t, 1, resp.OK)
	assert.Regexp(t, idPattern, resp.ID)
	assert.Equal(t, "https://storage.example.com/signed-put", resp.UploadURL)

	// Storage key is <YYYYMMDD>/<name> for the current UTC day.
	wantKey := time.Now().UTC().Format("20060102") + "/cat.png"
	assert.Equal(t, wantKey, resp.Key)
	assert.Equal(t, wantKey, objects.presignedKey)
	assert.Equal(t, "image/png", objects.presignedType)

	// A pending record now exists under pending:<id>.
	raw, ok := cache.m[storage.PendingKey(resp.ID)]
	require.True(t, ok, "pending record missing")
	var pending storage.PendingTransfer
	require.NoError(t, json.Unmarshal([]byte(raw), &pending))
	assert.Equal(t, wantKey, pending.Key)
	assert.Equal(t, uint64(2000000), pending.Size)
}

func TestCreateValidation(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"empty name", `{"name":"","size":100,"type":"image/png"}`, http.StatusBadRequest},
		{"disallowed type", `{"name":"doc.pdf","size":100,"type":"application/pdf"}`, http.StatusBadRequest},
		{"type check is case-insensitive", `{"name":"cat.png","size":100,"type":"IMAGE/PNG"}`, http.StatusOK},
		{"size at ceiling", fmt.Sprintf(`{"name":"big.png","size":%d,"type":"image/png"}`, 99*1024*1024), http.StatusOK},
		{"size one byte over ceiling", fmt.Sprintf(`{"name":"big.png","size":%d,"type":"image/png"}`, 99*1024*1024+1), http.StatusRequestEntityTooLarge},
		{"malformed body", `{"name":`, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, _, _, _ := newTestHandler()
			rr := doCreate(t, h, tc.body)
			assert.Equal(t, tc.wantStatus, rr.Code, rr.Body.String())
			if tc.wantStatus != http.StatusOK {
				assert.Contains(t, rr.Body.String(), `"ok":0`)
			}
		})
	}
}

func TestCreateWildcardAllowList(t *testing.T) {
	h, _, _, _ := newTestHandler()
	h.Cfg.AllowedTypes = []string{"*"}

	rr := doCreate(t, h, `{"name":"doc.pdf","size":100,"type":"application/pdf"}`)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestCreatePresignFailure(t *testing.T) {
	h, objects, cache, _ := newTestHandler()
	objects.presignErr = fmt.Errorf("connection refused")

	rr := doCreate(t, h, `{"name":"cat.png","size":100,"type":"image/png"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, cache.m, "no pending record on presign failure")
}

func seedPending(t *testing.T, cache *memCache, id string, pending storage.PendingTransfer) {
	t.Helper()
	raw, err := json.Marshal(pending)
	require.NoError(t, err)
	cache.m[storage.PendingKey(id)] = string(raw)
}

func TestComplete(t *testing.T) {
	h, _, cache, records := newTestHandler()
	seedPending(t, cache, "abc123", storage.PendingTransfer{Key: "20250901/cat.png", Size: 2000000})

	rr := doComplete(t, h, "abc123")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"ok":1,"id":"abc123"}`, rr.Body.String())

	rec, ok := records.recs["abc123"]
	require.True(t, ok, "final record not inserted")
	assert.Equal(t, "20250901/cat.png", rec.Key)
	assert.Equal(t, 1.91, rec.SizeMB)
	assert.InDelta(t, time.Now().Unix(), rec.CreatedAt, 5)
	assert.Empty(t, rec.Description)
	assert.Empty(t, rec.Permission)

	// Pending record consumed, read cache populated.
	_, pendingLeft := cache.m[storage.PendingKey("abc123")]
	assert.False(t, pendingLeft, "pending record must be consumed")

	raw, ok := cache.m[storage.RecordKey("abc123")]
	require.True(t, ok, "read cache not populated")
	var payload storage.RecordPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	assert.Equal(t, "https://cdn.example.com/20250901/cat.png", payload.URL)
	assert.Zero(t, payload.CacheHit, "cache flag must never be persisted")
}

func TestCompleteTwice(t *testing.T) {
	h, _, cache, _ := newTestHandler()
	seedPending(t, cache, "abc123", storage.PendingTransfer{Key: "20250901/cat.png", Size: 1048576})

	first := doComplete(t, h, "abc123")
	require.Equal(t, http.StatusOK, first.Code)

	second := doComplete(t, h, "abc123")
	assert.Equal(t, http.StatusNotFound, second.Code)
	assert.Contains(t, second.Body.String(), "expired or not found")
}

func TestCompleteUnknownID(t *testing.T) {
	h, _, _, _ := newTestHandler()

	rr := doComplete(t, h, "nosuch")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "expired or not found")
}

func TestCompleteNotUploaded(t *testing.T) {
	h, objects, cache, records := newTestHandler()
	objects.exists = false
	seedPending(t, cache, "abc123", storage.PendingTransfer{Key: "20250901/cat.png", Size: 100})

	rr := doComplete(t, h, "abc123")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "not uploaded")

	// The slot survives a premature completion attempt.
	_, pendingLeft := cache.m[storage.PendingKey("abc123")]
	assert.True(t, pendingLeft, "pending record must not be consumed before the upload exists")
	assert.Empty(t, records.recs)
}

func TestCompleteCachePopulateFailureIsNonFatal(t *testing.T) {
	h, _, cache, records := newTestHandler()
	cache.setErr["i:"] = fmt.Errorf("cache down")
	seedPending(t, cache, "abc123", storage.PendingTransfer{Key: "20250901/cat.png", Size: 100})

	rr := doComplete(t, h, "abc123")
	assert.Equal(t, http.StatusOK, rr.Code, "cache population failure must not fail the request")
	assert.Contains(t, records.recs, "abc123")
}

func TestSizeToMB(t *testing.T) {
	testCases := []struct {
		size uint64
		want float64
	}{
		{1048576, 1.0},
		{1572864, 1.5},
		{2000000, 1.91},
		{0, 0},
		{10486, 0.01},
	}

	for _, tc := range testCases {
		if got := sizeToMB(tc.size); got != tc.want {
			t.Errorf("sizeToMB(%d) = %v, want %v", tc.size, got, tc.want)
		}
	}
}

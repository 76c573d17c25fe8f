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

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
)

func TestRedisCache_Get(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := &RedisCache{client: client}

	testCases := []struct {
		name    string
		key     string
		mocker  func()
		want    string
		wantErr error
	}{
		{
			name: "hit",
			key:  PendingKey("abc123"),
			mocker: func() {
				pending, _ := json.Marshal(&PendingTransfer{Key: "20250901/cat.png", Size: 2000000})
				mock.ExpectGet("pending:abc123").SetVal(string(pending))
			},
			want: `{"key":"20250901/cat.png","size":2000000}`,
		},
		{
			name: "miss maps to ErrNotFound",
			key:  PendingKey("gone00"),
			mocker: func() {
				mock.ExpectGet("pending:gone00").SetErr(redis.Nil)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "transport error passes through",
			key:  RecordKey("abc123"),
			mocker: func() {
				mock.ExpectGet("i:abc123").SetErr(errors.New("connection refused"))
			},
			wantErr: errors.New("connection refused"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.mocker()
			got, err := cache.Get(context.Background(), tc.key)
			if (err != nil) != (tc.wantErr != nil) {
				t.Fatalf("Get() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr != nil && errors.Is(tc.wantErr, ErrNotFound) && !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() error = %v, want ErrNotFound", err)
			}
			if got != tc.want {
				t.Errorf("Get() = %q, want %q", got, tc.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("there were unfulfilled expectations: %s", err)
			}
		})
	}
}

func TestRedisCache_Set(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := &RedisCache{client: client}

	testCases := []struct {
		name    string
		mocker  func()
		wantErr bool
	}{
		{
			name: "pending record with TTL",
			mocker: func() {
				mock.ExpectSet("pending:abc123", "payload", PendingTTL).SetVal("OK")
			},
		},
		{
			name: "redis error",
			mocker: func() {
				mock.ExpectSet("pending:abc123", "payload", PendingTTL).SetErr(errors.New("redis error"))
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.mocker()
			err := cache.Set(context.Background(), PendingKey("abc123"), "payload", PendingTTL)
			if (err != nil) != tc.wantErr {
				t.Errorf("Set() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("there were unfulfilled expectations: %s", err)
			}
		})
	}
}

func TestRedisCache_Del(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := &RedisCache{client: client}

	testCases := []struct {
		name        string
		mocker      func()
		wantRemoved bool
		wantErr     bool
	}{
		{
			name: "key consumed",
			mocker: func() {
				mock.ExpectDel("pending:abc123").SetVal(1)
			},
			wantRemoved: true,
		},
		{
			name: "key already gone",
			mocker: func() {
				mock.ExpectDel("pending:abc123").SetVal(0)
			},
			wantRemoved: false,
		},
		{
			name: "redis error",
			mocker: func() {
				mock.ExpectDel("pending:abc123").SetErr(errors.New("redis error"))
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.mocker()
			removed, err := cache.Del(context.Background(), PendingKey("abc123"))
			if (err != nil) != tc.wantErr {
				t.Fatalf("Del() error = %v, wantErr %v", err, tc.wantErr)
			}
			if removed != tc.wantRemoved {
				t.Errorf("Del() removed = %v, want %v", removed, tc.wantRemoved)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("there were unfulfilled expectations: %s", err)
			}
		})
	}
}

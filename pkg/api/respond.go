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

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/imgdock/imgdock/pkg/dlog"
)

type errorBody struct {
	OK int    `json:"ok"`
	E  string `json:"e"`
}

type okBody struct {
	OK int `json:"ok"`
}

// WriteJSON serializes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		dlog.Errorf("Failed to write response: %v", err)
	}
}

// WriteError maps err onto the {ok:0, e} envelope. Anything that is not
// an *Error is treated as an internal failure with a generic body.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = &Error{Status: http.StatusInternalServerError, Message: "internal error"}
	}
	if apiErr.Status == http.StatusInternalServerError {
		dlog.Errorf("Request failed: %v", err)
	}
	WriteJSON(w, apiErr.Status, errorBody{OK: 0, E: apiErr.Message})
}

// Health answers the liveness probe.
func Health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, okBody{OK: 1})
}

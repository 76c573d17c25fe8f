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

// Package api carries the HTTP error taxonomy and the JSON response
// envelope shared by every handler.
package api

import (
	"fmt"
	"net/http"
)

// Error is a client-visible failure with a fixed HTTP status.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// BadRequest reports invalid client input.
func BadRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

// NotFound reports a missing pending or final record.
func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Message: msg}
}

// PayloadTooLarge reports a declared size over the configured ceiling.
func PayloadTooLarge(msg string) *Error {
	return &Error{Status: http.StatusRequestEntityTooLarge, Message: msg}
}

// Internal wraps a collaborator failure. The collaborator name prefixes
// the message so operators can tell storage, store, cache and cipher
// failures apart without the client learning internal structure.
func Internal(collaborator string, err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Message: fmt.Sprintf("%s: %v", collaborator, err),
	}
}

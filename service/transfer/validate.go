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
	"fmt"
	"strings"

	"github.com/imgdock/imgdock/pkg/api"
)

// validate enforces the admission policy on a transfer request. It is
// pure and runs before any collaborator call: empty names and
// disallowed content types are rejected with 400, sizes over the
// ceiling with 413. A "*" entry in the allow-list admits any type.
func validate(req *createRequest, allowedTypes []string, maxSize uint64, maxSizeMB uint64) *api.Error {
	if req.Name == "" {
		return api.BadRequest("name cannot be empty")
	}

	contentType := strings.ToLower(req.Type)
	allowed := false
	for _, t := range allowedTypes {
		if t == contentType || t == "*" {
			allowed = true
			break
		}
	}
	if !allowed {
		return api.BadRequest(fmt.Sprintf(
			"unsupported file format, allowed: %s", strings.Join(allowedTypes, ", ")))
	}

	if req.Size > maxSize {
		return api.PayloadTooLarge(fmt.Sprintf("max %dMB", maxSizeMB))
	}

	return nil
}

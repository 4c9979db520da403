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

package mcpserver

import (
	"errors"
	"fmt"
)

var ErrSearcherRequired = errors.New("searcher is required")

// JSON-RPC error codes returned by tool handlers.
const (
	ErrorCodeInvalidParams = -32602
	ErrorCodeInternalError = -32603
	ErrorCodeEmptyQuery    = -32004
	ErrorCodeNotFound      = -32005
)

// ToolError is returned by a tool handler when a call cannot be served.
type ToolError struct {
	Code    int
	Message string
	Data    any
}

func newToolError(code int, message string, data any) error {
	return &ToolError{Code: code, Message: message, Data: data}
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error %d: %s", e.Code, e.Message)
}

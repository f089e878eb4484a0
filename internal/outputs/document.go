// Copyright 2025 Tom Barlow
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

// Package outputs assembles the output document of a run from the set and
// append envelopes a task emits.
package outputs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tombee/taskshim/internal/protocol"
)

const (
	setExpr    = `setpath($p; $v)`
	appendExpr = `setpath($p; (getpath($p) // []) + [$v])`
)

// Document is the accumulated output of a run.
type Document struct {
	mu    sync.Mutex
	value any
	exec  *Executor
}

// NewDocument returns an empty document. A nil executor uses the defaults.
func NewDocument(exec *Executor) *Document {
	if exec == nil {
		exec = NewExecutor(DefaultTimeout, DefaultMaxInputSize)
	}
	return &Document{exec: exec}
}

// Apply folds an envelope into the document. Non-output envelopes are ignored.
func (d *Document) Apply(ctx context.Context, env protocol.Envelope) error {
	switch env.Kind {
	case protocol.KindOutputSet:
		return d.Set(ctx, env.Path, env.Payload)
	case protocol.KindOutputAppend:
		return d.Append(ctx, env.Path, env.Payload)
	case protocol.KindError:
		return d.Append(ctx, protocol.ErrorPath, env.Payload)
	}
	return nil
}

// Set replaces the value at path with the JSON value raw.
func (d *Document) Set(ctx context.Context, path string, raw []byte) error {
	return d.update(ctx, setExpr, path, raw)
}

// Append appends the JSON value raw to the array at path, creating it if
// absent.
func (d *Document) Append(ctx context.Context, path string, raw []byte) error {
	return d.update(ctx, appendExpr, path, raw)
}

func (d *Document) update(ctx context.Context, expr, path string, raw []byte) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decoding output at %q: %w", path, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := d.exec.Execute(ctx, expr, d.value, map[string]any{"$p": p, "$v": v})
	if err != nil {
		return fmt.Errorf("applying output at %q: %w", path, err)
	}
	d.value = next
	return nil
}

// Value returns the current document.
func (d *Document) Value() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// JSON returns the document encoded with protocol.MarshalValue.
func (d *Document) JSON() ([]byte, error) {
	return protocol.MarshalValue(d.Value())
}

// Query evaluates a jq expression against the document.
func (d *Document) Query(ctx context.Context, expr string) (any, error) {
	return d.exec.Execute(ctx, expr, d.Value(), nil)
}

// Errors returns the messages appended to the error output.
func (d *Document) Errors() []string {
	obj, ok := d.Value().(map[string]any)
	if !ok {
		return nil
	}
	entries, ok := obj[protocol.ErrorPath].([]any)
	if !ok {
		return nil
	}
	var msgs []string
	for _, e := range entries {
		if m, ok := e.(map[string]any); ok {
			if s, ok := m["error"].(string); ok {
				msgs = append(msgs, s)
			}
		}
	}
	return msgs
}

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

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tombee/taskshim/internal/log"
	shimerrors "github.com/tombee/taskshim/pkg/errors"
)

// Encoder writes protocol envelopes to a stream. It is safe for concurrent
// use; each envelope, including all of its chunk lines, is written atomically.
type Encoder struct {
	mu        sync.Mutex
	w         io.Writer
	chunkSize int
	newID     func() string
	observe   func(Kind)
	logger    *slog.Logger
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithChunkSize sets the line length above which envelopes are chunked.
func WithChunkSize(n int) Option {
	return func(e *Encoder) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithIDGenerator sets the chunk id source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Encoder) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithObserver registers a callback invoked once per envelope written.
func WithObserver(fn func(Kind)) Option {
	return func(e *Encoder) {
		e.observe = fn
	}
}

// WithLogger sets the logger used for encoding fallbacks.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Encoder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	e := &Encoder{
		w:         w,
		chunkSize: DefaultChunkSize,
		newID:     uuid.NewString,
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status writes airplane_status:<status>.
func (e *Encoder) Status(s Status) error {
	return e.Encode(Envelope{Kind: KindStatus, Status: s})
}

// SetOutput writes airplane_output_set[:path] <json>. It implements task.Outputs.
func (e *Encoder) SetOutput(path string, value any) error {
	return e.Encode(Envelope{Kind: KindOutputSet, Path: path, Payload: e.marshal(value)})
}

// AppendOutput writes airplane_output_append[:path] <json>. It implements task.Outputs.
func (e *Encoder) AppendOutput(path string, value any) error {
	return e.Encode(Envelope{Kind: KindOutputAppend, Path: path, Payload: e.marshal(value)})
}

// Error writes airplane_output_append:error {"error":"<msg>"}.
func (e *Encoder) Error(msg string) error {
	return e.Encode(Envelope{Kind: KindError, Payload: ErrorPayload(msg)})
}

// Encode renders env and writes it, chunking the line if it is too long.
func (e *Encoder) Encode(env Envelope) error {
	line := env.Render()

	var lines []string
	if NeedsChunking(line, e.chunkSize) {
		id := e.newID()
		e.logger.Debug("chunking protocol line", slog.String(log.ChunkIDKey, id), slog.Int("bytes", len(line)))
		lines = Frame(line, e.chunkSize, id)
	} else {
		lines = []string{line}
	}

	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing %s envelope: %w", env.Kind, err)
	}
	if e.observe != nil {
		e.observe(env.Kind)
	}
	return nil
}

func (e *Encoder) marshal(value any) []byte {
	data, err := EncodeValue(value)
	if err != nil {
		e.logger.Warn("output is not JSON-serializable, sending its string form", log.Error(err))
	}
	return data
}

// EncodeValue encodes v for an output envelope. When v cannot be encoded it
// returns the JSON string of fmt.Sprint(v) together with an
// *errors.EncodingError; the data is always usable.
func EncodeValue(v any) ([]byte, error) {
	data, err := MarshalValue(v)
	if err == nil {
		return data, nil
	}
	fallback, _ := MarshalValue(fmt.Sprint(v))
	return fallback, &shimerrors.EncodingError{Type: fmt.Sprintf("%T", v), Cause: err}
}

// MarshalValue encodes v as compact JSON without HTML escaping. nil encodes
// as null.
func MarshalValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ErrorPayload returns the JSON body of an error envelope.
func ErrorPayload(msg string) []byte {
	data, _ := MarshalValue(map[string]string{"error": msg})
	return data
}

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
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// SinkTagPrefix starts the tag workflow sink lines carry.
const SinkTagPrefix = "[ap:workflow::"

// ErrUnknownChunk is returned when a chunk end names an id with no slices.
var ErrUnknownChunk = errors.New("protocol: chunk end for unknown chunk id")

// ErrUnterminatedChunk is returned when a stream ends with buffered slices.
var ErrUnterminatedChunk = errors.New("protocol: stream ended inside a chunked line")

// Decoder reassembles a protocol stream into envelopes.
type Decoder struct {
	pending map[string]*strings.Builder
}

// NewDecoder creates a decoder with no buffered chunks.
func NewDecoder() *Decoder {
	return &Decoder{pending: make(map[string]*strings.Builder)}
}

// Decode consumes one line. It returns ok=false while a chunked line is still
// being buffered. Lines without a protocol marker are returned as KindLog.
func (d *Decoder) Decode(line string) (env Envelope, ok bool, err error) {
	line = StripSinkTag(strings.TrimRight(line, "\r\n"))

	env, _ = Parse(line)
	switch env.Kind {
	case KindChunk:
		b, exists := d.pending[env.ChunkID]
		if !exists {
			b = &strings.Builder{}
			d.pending[env.ChunkID] = b
		}
		b.Write(env.Payload)
		return Envelope{}, false, nil

	case KindChunkEnd:
		b, exists := d.pending[env.ChunkID]
		if !exists {
			return Envelope{}, false, fmt.Errorf("%w: %s", ErrUnknownChunk, env.ChunkID)
		}
		delete(d.pending, env.ChunkID)
		full, _ := Parse(b.String())
		return full, true, nil
	}

	return env, true, nil
}

// Pending returns the ids of chunked lines not yet terminated, sorted.
func (d *Decoder) Pending() []string {
	ids := make([]string, 0, len(d.pending))
	for id := range d.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Scan decodes every line of r and calls fn for each complete envelope.
// Scanning stops at the first error returned by fn.
func (d *Decoder) Scan(r io.Reader, fn func(Envelope) error) error {
	br := bufio.NewReader(r)
	for {
		line, readErr := br.ReadString('\n')
		if line != "" {
			env, ok, err := d.Decode(line)
			if err != nil {
				return err
			}
			if ok {
				if err := fn(env); err != nil {
					return err
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("reading protocol stream: %w", readErr)
		}
	}

	if pending := d.Pending(); len(pending) > 0 {
		return fmt.Errorf("%w: %s", ErrUnterminatedChunk, strings.Join(pending, ", "))
	}
	return nil
}

// StripSinkTag removes a leading "[ap:workflow::<wf>:<run>] " tag. Workflow
// ids are free-form, so the tag ends at the first "] " preceded by a run id,
// preferring one shaped like a Temporal run id (a UUID).
func StripSinkTag(line string) string {
	if !strings.HasPrefix(line, SinkTagPrefix) {
		return line
	}
	rest := line[len(SinkTagPrefix):]
	fallback := -1
	for off := 0; ; {
		i := strings.Index(rest[off:], "] ")
		if i < 0 {
			break
		}
		end := off + i
		off = end + 2
		c := strings.LastIndexByte(rest[:end], ':')
		if c < 0 || !isRunID(rest[c+1:end]) {
			continue
		}
		if _, err := uuid.Parse(rest[c+1 : end]); err == nil {
			return rest[end+2:]
		}
		if fallback < 0 {
			fallback = end
		}
	}
	if fallback >= 0 {
		return rest[fallback+2:]
	}
	return line
}

func isRunID(s string) bool {
	return s != "" && !strings.ContainsAny(s, " ]")
}

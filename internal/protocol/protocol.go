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

// Package protocol implements the line protocol a task process uses to report
// status and outputs on stdout.
//
// Every protocol message is a single line starting with an airplane_ marker:
//
//	airplane_status:started
//	airplane_output_set:rows[0] {"id":1}
//	airplane_output_append:error {"error":"boom"}
//	airplane_chunk:<id> <slice>
//	airplane_chunk_end:<id>
//
// Lines longer than the chunk size are split into chunk lines that the
// consumer concatenates before parsing.
package protocol

import (
	"strings"
)

// Marker tokens.
const (
	MarkerStatus       = "airplane_status"
	MarkerOutputSet    = "airplane_output_set"
	MarkerOutputAppend = "airplane_output_append"
	MarkerChunk        = "airplane_chunk"
	MarkerChunkEnd     = "airplane_chunk_end"
)

// ErrorPath is the output path error envelopes are appended to.
const ErrorPath = "error"

// DefaultChunkSize is the longest line written without chunking.
const DefaultChunkSize = 8192

// Status is a run lifecycle state.
type Status string

const (
	StatusStarted   Status = "started"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Kind identifies the type of an Envelope.
type Kind int

const (
	// KindLog is a line that carries no protocol marker.
	KindLog Kind = iota
	KindStatus
	KindOutputSet
	KindOutputAppend
	KindChunk
	KindChunkEnd
	// KindError is an append to the "error" output.
	KindError
)

var kindNames = map[Kind]string{
	KindLog:          "log",
	KindStatus:       "status",
	KindOutputSet:    "output_set",
	KindOutputAppend: "output_append",
	KindChunk:        "chunk",
	KindChunkEnd:     "chunk_end",
	KindError:        "error",
}

// String returns the kind name used in logs and metric labels.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Envelope is one protocol message.
type Envelope struct {
	Kind   Kind
	Status Status

	// Path is the output path for set and append envelopes. Empty is the root.
	Path string

	// Payload is the JSON value for output and error envelopes, and raw text
	// for chunk and log envelopes.
	Payload []byte

	// ChunkID groups chunk slices.
	ChunkID string
}

// Render returns the envelope as a single protocol line without the trailing newline.
func (e Envelope) Render() string {
	switch e.Kind {
	case KindStatus:
		return MarkerStatus + ":" + string(e.Status)
	case KindOutputSet:
		return withPath(MarkerOutputSet, e.Path) + " " + string(e.Payload)
	case KindOutputAppend:
		return withPath(MarkerOutputAppend, e.Path) + " " + string(e.Payload)
	case KindError:
		return withPath(MarkerOutputAppend, ErrorPath) + " " + string(e.Payload)
	case KindChunk:
		return MarkerChunk + ":" + e.ChunkID + " " + string(e.Payload)
	case KindChunkEnd:
		return MarkerChunkEnd + ":" + e.ChunkID
	default:
		return string(e.Payload)
	}
}

func withPath(marker, path string) string {
	if path == "" {
		return marker
	}
	return marker + ":" + path
}

// Parse reads a single unchunked protocol line. Lines without a known marker
// are returned as KindLog envelopes with ok set to false.
func Parse(line string) (env Envelope, ok bool) {
	line = strings.TrimRight(line, "\r\n")

	switch {
	case strings.HasPrefix(line, MarkerStatus+":"):
		return Envelope{Kind: KindStatus, Status: Status(strings.TrimPrefix(line, MarkerStatus+":"))}, true

	case strings.HasPrefix(line, MarkerChunkEnd+":"):
		return Envelope{Kind: KindChunkEnd, ChunkID: strings.TrimPrefix(line, MarkerChunkEnd+":")}, true

	case strings.HasPrefix(line, MarkerChunk+":"):
		rest := strings.TrimPrefix(line, MarkerChunk+":")
		id, slice, found := strings.Cut(rest, " ")
		if !found {
			break
		}
		return Envelope{Kind: KindChunk, ChunkID: id, Payload: []byte(slice)}, true

	case strings.HasPrefix(line, MarkerOutputSet):
		if path, payload, ok := parseOutput(strings.TrimPrefix(line, MarkerOutputSet)); ok {
			return Envelope{Kind: KindOutputSet, Path: path, Payload: []byte(payload)}, true
		}

	case strings.HasPrefix(line, MarkerOutputAppend):
		if path, payload, ok := parseOutput(strings.TrimPrefix(line, MarkerOutputAppend)); ok {
			kind := KindOutputAppend
			if path == ErrorPath {
				kind = KindError
			}
			return Envelope{Kind: kind, Path: path, Payload: []byte(payload)}, true
		}
	}

	return Envelope{Kind: KindLog, Payload: []byte(line)}, false
}

// parseOutput splits "[:path] <json>" following an output marker.
func parseOutput(rest string) (path, payload string, ok bool) {
	if strings.HasPrefix(rest, " ") {
		return "", rest[1:], true
	}
	if !strings.HasPrefix(rest, ":") {
		return "", "", false
	}
	path, payload, ok = strings.Cut(rest[1:], " ")
	if !ok || path == "" {
		return "", "", false
	}
	return path, payload, true
}

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
	"unicode/utf8"
)

// Split cuts line into consecutive slices of at most size bytes without
// splitting a UTF-8 sequence. Concatenating the slices yields line.
func Split(line string, size int) []string {
	if size <= 0 || len(line) <= size {
		return []string{line}
	}

	var slices []string
	for len(line) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if cut == 0 {
			// A single rune wider than size; emit it whole.
			_, cut = utf8.DecodeRuneInString(line)
		}
		slices = append(slices, line[:cut])
		line = line[cut:]
	}
	if line != "" {
		slices = append(slices, line)
	}
	return slices
}

// Frame returns the lines needed to emit line. Lines within size are returned
// as-is; longer lines become chunk lines tagged with id followed by a single
// chunk end line.
func Frame(line string, size int, id string) []string {
	if size <= 0 || len(line) <= size {
		return []string{line}
	}

	slices := Split(line, size)
	lines := make([]string, 0, len(slices)+1)
	for _, s := range slices {
		lines = append(lines, Envelope{Kind: KindChunk, ChunkID: id, Payload: []byte(s)}.Render())
	}
	return append(lines, Envelope{Kind: KindChunkEnd, ChunkID: id}.Render())
}

// NeedsChunking reports whether line exceeds size.
func NeedsChunking(line string, size int) bool {
	return size > 0 && len(line) > size
}

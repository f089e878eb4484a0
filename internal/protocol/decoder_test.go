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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_ReassemblesChunks(t *testing.T) {
	line := `airplane_output_set {"msg":"` + strings.Repeat("x", 50) + `"}`
	framed := Frame(line, 16, "c1")

	d := NewDecoder()
	for i, l := range framed {
		env, ok, err := d.Decode(l)
		require.NoError(t, err)
		if i < len(framed)-1 {
			assert.False(t, ok)
			continue
		}
		require.True(t, ok)
		assert.Equal(t, KindOutputSet, env.Kind)
		assert.JSONEq(t, `{"msg":"`+strings.Repeat("x", 50)+`"}`, string(env.Payload))
	}
	assert.Empty(t, d.Pending())
}

func TestDecoder_StripsSinkTags(t *testing.T) {
	d := NewDecoder()

	env, ok, err := d.Decode("[ap:workflow::wf-1:run-1] airplane_status:started\n")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindStatus, env.Kind)
	assert.Equal(t, StatusStarted, env.Status)

	env, ok, err = d.Decode("[ap:activity:greet:wf-1:run-1] Starting activity with input: []")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindLog, env.Kind)
}

func TestDecoder_UnknownChunkEnd(t *testing.T) {
	_, _, err := NewDecoder().Decode("airplane_chunk_end:missing")
	assert.True(t, errors.Is(err, ErrUnknownChunk))
}

func TestDecoder_Scan(t *testing.T) {
	stream := strings.Join([]string{
		"booting",
		"airplane_status:started",
		"airplane_chunk:a airplane_output_se",
		"airplane_chunk:a t 42",
		"airplane_chunk_end:a",
		`airplane_output_append:error {"error":"bad"}`,
	}, "\n")

	var kinds []Kind
	err := NewDecoder().Scan(strings.NewReader(stream), func(env Envelope) error {
		kinds = append(kinds, env.Kind)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindLog, KindStatus, KindOutputSet, KindError}, kinds)
}

func TestDecoder_ScanUnterminated(t *testing.T) {
	err := NewDecoder().Scan(strings.NewReader("airplane_chunk:z abc\n"), func(Envelope) error { return nil })
	assert.True(t, errors.Is(err, ErrUnterminatedChunk))
}

func TestStripSinkTag(t *testing.T) {
	const runID = "6f1c2b9e-4a7d-4f2e-9c1a-0b3d5e7f9a11"
	tests := []struct {
		name string
		line string
		want string
	}{
		{"simple", "[ap:workflow::w:r] hello", "hello"},
		{"untagged", "plain", "plain"},
		{"empty workflow id", "[ap:workflow:::r] hello", "hello"},
		{"workflow id with colon", "[ap:workflow::order:42:" + runID + "] hello", "hello"},
		{"workflow id with bracket", "[ap:workflow::a] b:" + runID + "] hello", "hello"},
		{"workflow id with bracket and short run id", "[ap:workflow::a] b:run-1] hello", "hello"},
		{"message with bracket", "[ap:workflow::w:r] x:y] z", "x:y] z"},
		{"unterminated tag", "[ap:workflow::w:r hello", "[ap:workflow::w:r hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripSinkTag(tt.line))
		})
	}
}

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

package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg: Config{
				Slug:       "greet",
				Parameters: []Parameter{{Slug: "id"}, {Slug: "count"}},
			},
		},
		{
			name:    "missing slug",
			cfg:     Config{},
			wantErr: "validation failed on slug: task slug is required",
		},
		{
			name: "duplicate parameter",
			cfg: Config{
				Slug:       "greet",
				Parameters: []Parameter{{Slug: "id"}, {Slug: "id"}},
			},
			wantErr: `validation failed on parameters[1].slug: duplicate parameter slug "id"`,
		},
		{
			name: "empty parameter slug",
			cfg: Config{
				Slug:       "greet",
				Parameters: []Parameter{{Name: "ID"}},
			},
			wantErr: "validation failed on parameters[0].slug: parameter slug is required",
		},
		{
			name:    "unknown runtime",
			cfg:     Config{Slug: "greet", Runtime: "lambda"},
			wantErr: `validation failed on runtime: unknown runtime "lambda"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestDefinitionEntrypoint(t *testing.T) {
	fn := func(id string, count int) (string, error) { return id, nil }
	def := Define(Config{
		Slug:       "greet",
		Parameters: []Parameter{{Slug: "id"}, {Slug: "count"}},
	}, fn)
	require.NoError(t, def.Validate())

	positional, ok := def.Entrypoint(true).(Structured)
	require.True(t, ok)
	assert.True(t, positional.Positional)
	assert.Equal(t, []string{"id", "count"}, positional.ParamSlugs)

	object, ok := def.Entrypoint(false).(Structured)
	require.True(t, ok)
	assert.False(t, object.Positional)
	assert.Nil(t, object.ParamSlugs)
}

func TestDefinitionValidateRejectsNonFunc(t *testing.T) {
	def := Define(Config{Slug: "greet"}, "not a func")
	assert.EqualError(t, def.Validate(), "validation failed on func: task greet: base function must be a func, got string")
}

type recordingOutputs struct {
	set    map[string]any
	append map[string][]any
}

func (r *recordingOutputs) SetOutput(path string, value any) error {
	r.set[path] = value
	return nil
}

func (r *recordingOutputs) AppendOutput(path string, value any) error {
	r.append[path] = append(r.append[path], value)
	return nil
}

func TestOutputsFromContext(t *testing.T) {
	assert.ErrorIs(t, SetOutput(context.Background(), 1), ErrNoOutputs)
	assert.ErrorIs(t, AppendOutput(context.Background(), 1), ErrNoOutputs)

	rec := &recordingOutputs{set: map[string]any{}, append: map[string][]any{}}
	ctx := WithOutputs(context.Background(), rec)

	require.NoError(t, SetOutput(ctx, "root"))
	require.NoError(t, SetOutput(ctx, 3, "stats.count"))
	require.NoError(t, AppendOutput(ctx, "a", "rows"))
	require.NoError(t, AppendOutput(ctx, "b", "rows"))

	assert.Equal(t, map[string]any{"": "root", "stats.count": 3}, rec.set)
	assert.Equal(t, []any{"a", "b"}, rec.append["rows"])
}

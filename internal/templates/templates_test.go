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

package templates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tombee/taskshim/internal/invoke"
	"github.com/tombee/taskshim/internal/loader"
	"github.com/tombee/taskshim/pkg/task"
)

func TestList(t *testing.T) {
	templates, err := List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	var names []string
	for _, tmpl := range templates {
		names = append(names, tmpl.Name)
		if tmpl.Description == "" || tmpl.Description == "Task template" {
			t.Errorf("template %q has no description", tmpl.Name)
		}
	}
	want := []string{"direct", "stream", "task"}
	if len(names) != len(want) {
		t.Fatalf("List() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"task", false},
		{"nonexistent", true},
		{"../templates", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := Get(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Error("Get() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("Get() unexpected error: %v", err)
			}
			if len(content) == 0 {
				t.Error("Get() returned empty content")
			}
		})
	}

	if !Exists(DefaultTemplate) {
		t.Errorf("default template %q missing", DefaultTemplate)
	}
}

func TestDataFor(t *testing.T) {
	tests := []struct {
		slug string
		want Data
	}{
		{"send_report", Data{Slug: "send_report", Name: "Send report", Func: "SendReport"}},
		{"hello", Data{Slug: "hello", Name: "Hello", Func: "Hello"}},
		{"2fa-reset", Data{Slug: "2fa-reset", Name: "2fa reset", Func: "Task2faReset"}},
	}
	for _, tt := range tests {
		if got := DataFor(tt.slug); got != tt.want {
			t.Errorf("DataFor(%q) = %+v, want %+v", tt.slug, got, tt.want)
		}
	}
}

func renderTo(t *testing.T, name, slug string) string {
	t.Helper()
	src, err := Render(name, slug)
	if err != nil {
		t.Fatalf("Render(%q) error = %v", name, err)
	}
	path := filepath.Join(t.TempDir(), slug+".go")
	if err := os.WriteFile(path, src, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRenderedTaskLoads(t *testing.T) {
	path := renderTo(t, "task", "send_report")

	mod, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	descs := mod.Descriptors()
	if len(descs) != 1 || descs[0].Slug != "send_report" || descs[0].EntrypointFunc != "SendReport" {
		t.Fatalf("unexpected descriptors: %+v", descs)
	}

	ep, err := mod.Resolve("SendReport", false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	got, err := invoke.Call(context.Background(), ep, task.Values{"name": "Ada"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "Hello, Ada!" {
		t.Errorf("Call() = %v, want Hello, Ada!", got)
	}
}

func TestRenderedDirectLoads(t *testing.T) {
	mod, err := loader.Load(renderTo(t, "direct", "hello"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := mod.Resolve(loader.DefaultEntrypointFunc, false); err != nil {
		t.Errorf("Resolve(Main) error = %v", err)
	}
}

type recordingOutputs struct {
	appended []any
}

func (r *recordingOutputs) SetOutput(string, any) error { return nil }

func (r *recordingOutputs) AppendOutput(_ string, v any) error {
	r.appended = append(r.appended, v)
	return nil
}

func TestRenderedStreamAppends(t *testing.T) {
	mod, err := loader.Load(renderTo(t, "stream", "rows"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	ep, err := mod.Resolve("Rows", false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	out := &recordingOutputs{}
	ctx := task.WithOutputs(context.Background(), out)
	if _, err := invoke.Call(ctx, ep, task.Values{"count": float64(3)}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(out.appended) != 3 {
		t.Errorf("appended %d rows, want 3", len(out.appended))
	}
}

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

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/tombee/taskshim/internal/commands/shared"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "taskshim" {
		t.Errorf("expected use 'taskshim', got %q", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("expected short description to be set")
	}

	if cmd.Long == "" {
		t.Error("expected long description to be set")
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"verbose", "json", "config"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("%s flag not registered", name)
		}
	}
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2025-12-22")
	defer SetVersion("dev", "unknown", "unknown")

	v, c, b := GetVersion()
	if v != "1.2.3" {
		t.Errorf("expected version '1.2.3', got %q", v)
	}
	if c != "abc123" {
		t.Errorf("expected commit 'abc123', got %q", c)
	}
	if b != "2025-12-22" {
		t.Errorf("expected build date '2025-12-22', got %q", b)
	}
}

func TestHelpJSON(t *testing.T) {
	root := NewRootCommand()
	sub := &cobra.Command{Use: "run", Short: "Invoke a task", RunE: func(*cobra.Command, []string) error { return nil }}
	sub.Flags().String("entrypoint", "", "Task source")
	_ = sub.MarkFlagRequired("entrypoint")
	root.AddCommand(sub)
	root.SetHelpCommand(NewHelpCommand(root))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"help", "run", "--json"})
	if err := root.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}

	var resp HelpResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out.String())
	}
	if resp.Command == nil || resp.Command.Name != "run" {
		t.Fatalf("expected run metadata, got %+v", resp.Command)
	}
	var found bool
	for _, f := range resp.Command.Flags {
		if f.Name == "entrypoint" {
			found = true
			if !f.Required {
				t.Error("expected entrypoint flag to be required")
			}
		}
	}
	if !found {
		t.Errorf("entrypoint flag missing from %+v", resp.Command.Flags)
	}
	if len(resp.GlobalFlags) < 3 {
		t.Errorf("expected global flags, got %+v", resp.GlobalFlags)
	}
}

func TestHelpUnknownCommand(t *testing.T) {
	root := NewRootCommand()
	root.SetHelpCommand(NewHelpCommand(root))
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"help", "nope", "--json"})
	if err := root.Execute(); err == nil {
		t.Error("expected error for unknown command")
	}
}

func newContractRoot() *cobra.Command {
	root := NewRootCommand()
	run := &cobra.Command{Use: "run", Short: "Invoke a task", RunE: func(*cobra.Command, []string) error { return nil }}
	shared.SetContract(run, shared.Contract{
		ExitCodes: []int{shared.ExitTaskFailed, shared.ExitSuccess},
		Env:       []string{"AP_ENTRYPOINT"},
		Protocol:  true,
	})
	root.AddCommand(run)
	root.SetHelpCommand(NewHelpCommand(root))
	return root
}

func TestHelpJSON_Contract(t *testing.T) {
	root := newContractRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"help", "run", "--json"})
	if err := root.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}

	var resp HelpResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	got := resp.Command
	if got == nil || got.Path != "taskshim run" {
		t.Fatalf("expected run metadata, got %+v", got)
	}
	if len(got.ExitCodes) != 2 || got.ExitCodes[0].Code != 0 || got.ExitCodes[1].Code != 1 {
		t.Errorf("expected exit codes 0 and 1, got %+v", got.ExitCodes)
	}
	if got.ExitCodes[1].Meaning == "" {
		t.Error("expected exit code meaning")
	}
	if len(got.Env) != 1 || got.Env[0].Name != "AP_ENTRYPOINT" || got.Env[0].Description == "" {
		t.Errorf("unexpected env %+v", got.Env)
	}
	if !got.Protocol {
		t.Error("expected run to carry protocol lines")
	}
	var hasConfig bool
	for _, e := range resp.Environment {
		hasConfig = hasConfig || e.Name == "AP_CONFIG"
	}
	if !hasConfig {
		t.Errorf("expected AP_CONFIG in global environment, got %+v", resp.Environment)
	}
}

func TestHelpText_Contract(t *testing.T) {
	root := newContractRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"help", "run"})
	if err := root.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}

	text := out.String()
	for _, want := range []string{"Exit Codes:", "  0", "  1", "airplane_* protocol lines", "Environment:", "AP_ENTRYPOINT"} {
		if !strings.Contains(text, want) {
			t.Errorf("help text missing %q:\n%s", want, text)
		}
	}
}

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

// Package templates holds the task source scaffolds written by
// `taskshim init`.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"unicode"
)

//go:embed *.go.tmpl
var embeddedFS embed.FS

const suffix = ".go.tmpl"

// DefaultTemplate is used when no template is named.
const DefaultTemplate = "task"

// Template represents metadata about an embedded task scaffold
type Template struct {
	Name        string
	Description string
	FilePath    string
}

// Data is substituted into a template.
type Data struct {
	Slug string
	Name string
	Func string
}

// List returns all available embedded templates sorted by name
func List() ([]Template, error) {
	entries, err := embeddedFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}

	var templates []Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), suffix)
		templates = append(templates, Template{
			Name:        name,
			Description: getDescription(name),
			FilePath:    entry.Name(),
		})
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

// Get returns the raw content of a specific template by name
func Get(name string) ([]byte, error) {
	if !validName(name) {
		return nil, fmt.Errorf("invalid template name: %q", name)
	}
	content, err := embeddedFS.ReadFile(name + suffix)
	if err != nil {
		return nil, fmt.Errorf("template %q not found: %w", name, err)
	}
	return content, nil
}

// Exists checks if a template with the given name exists
func Exists(name string) bool {
	_, err := Get(name)
	return err == nil
}

// Render renders a template for the task slug.
func Render(templateName, slug string) ([]byte, error) {
	templateContent, err := Get(templateName)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(templateName).Parse(string(templateContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %q: %w", templateName, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, DataFor(slug)); err != nil {
		return nil, fmt.Errorf("failed to render template %q: %w", templateName, err)
	}
	return buf.Bytes(), nil
}

// DataFor derives the display name and exported function name from a slug:
// "send_report" becomes "Send report" and "SendReport".
func DataFor(slug string) Data {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var fn strings.Builder
	for _, w := range words {
		fn.WriteString(capitalize(w))
	}
	name := capitalize(strings.Join(words, " "))

	d := Data{Slug: slug, Name: name, Func: fn.String()}
	if d.Func == "" || unicode.IsDigit(rune(d.Func[0])) {
		d.Func = "Task" + d.Func
	}
	return d
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func validName(name string) bool {
	return name != "" && !strings.Contains(name, "..") && !strings.ContainsAny(name, `/\`)
}

// getDescription returns a human-readable description for each template
func getDescription(name string) string {
	descriptions := map[string]string{
		"direct": "Plain Main function called with the request",
		"task":   "Task declared through a Tasks descriptor",
		"stream": "Descriptor task that appends outputs while it runs",
	}

	if desc, ok := descriptions[name]; ok {
		return desc
	}
	return "Task template"
}

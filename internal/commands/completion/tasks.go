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

package completion

import (
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/tombee/taskshim/internal/loader"
)

const (
	maxTaskFiles   = 100
	maxSearchDepth = 2
)

// taskFile represents a discovered task source file.
type taskFile struct {
	path    string
	modTime int64
}

// CompleteTaskFiles provides completion for the entrypoint argument.
// Lists .go files up to 2 directories deep, newest first, skipping test
// files and hidden directories. Symlinked directories are not followed.
func CompleteTaskFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		files, err := discoverTaskFiles(os.DirFS("."), maxSearchDepth)
		if err != nil || len(files) == 0 {
			return nil, cobra.ShellCompDirectiveDefault
		}

		sort.Slice(files, func(i, j int) bool {
			return files[i].modTime > files[j].modTime
		})
		if len(files) > maxTaskFiles {
			files = files[:maxTaskFiles]
		}

		paths := make([]string, 0, len(files))
		for _, f := range files {
			paths = append(paths, f.path)
		}
		return paths, cobra.ShellCompDirectiveDefault
	})
}

// discoverTaskFiles lists task source files in fsys up to maxDepth
// directories below its root.
func discoverTaskFiles(fsys fs.FS, maxDepth int) ([]taskFile, error) {
	matches, err := doublestar.Glob(fsys, loader.DefaultPattern, doublestar.WithFilesOnly(), doublestar.WithNoFollow())
	if err != nil {
		return nil, err
	}

	var files []taskFile
	for _, path := range matches {
		if strings.Count(path, "/") > maxDepth || strings.HasSuffix(path, "_test.go") || hidden(path) {
			continue
		}
		info, err := fs.Stat(fsys, path)
		if err != nil {
			continue
		}
		files = append(files, taskFile{path: path, modTime: info.ModTime().Unix()})
	}
	return files, nil
}

func hidden(path string) bool {
	for _, part := range strings.Split(path, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// CompleteTaskFuncs provides completion for --func from the descriptors
// declared by the entrypoint already on the command line.
func CompleteTaskFuncs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		entrypoint := ""
		if len(args) > 0 {
			entrypoint = args[0]
		} else if f := cmd.Flags().Lookup("entrypoint"); f != nil {
			entrypoint = f.Value.String()
		}
		if entrypoint == "" {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		mod, err := loader.Load(entrypoint)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var completions []string
		for _, d := range mod.Descriptors() {
			completions = append(completions, d.EntrypointFunc+"\t"+d.Slug)
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})
}

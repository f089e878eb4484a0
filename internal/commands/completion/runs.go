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
	"context"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/taskshim/internal/commands/shared"
	"github.com/tombee/taskshim/internal/config"
	"github.com/tombee/taskshim/internal/runstore"
)

const (
	runCacheTTL  = 2 * time.Second
	storeTimeout = 500 * time.Millisecond
	maxRuns      = 50
)

// runCacheEntry holds cached run completions with expiry.
type runCacheEntry struct {
	path      string
	runs      []runInfo
	expiresAt time.Time
}

// runInfo represents a run ID with its description.
type runInfo struct {
	id          string
	status      string
	description string
}

var (
	runCache   *runCacheEntry
	runCacheMu sync.RWMutex
)

// CompleteRunIDs provides dynamic completion for recorded run IDs.
// Reads the most recent runs from the history database and caches results
// for 2 seconds. Returns run IDs with "task (status)" descriptions.
func CompleteRunIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		runs, err := getRunCompletions()
		if err != nil || len(runs) == 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		completions := make([]string, 0, len(runs))
		for _, r := range runs {
			completions = append(completions, r.id+"\t"+r.description)
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})
}

// getRunCompletions fetches run completions from the store with caching.
func getRunCompletions() ([]runInfo, error) {
	path, err := storePath()
	if err != nil {
		return nil, err
	}

	runCacheMu.RLock()
	if runCache != nil && runCache.path == path && time.Now().Before(runCache.expiresAt) {
		cached := runCache.runs
		runCacheMu.RUnlock()
		return cached, nil
	}
	runCacheMu.RUnlock()

	runs, err := fetchRuns(path)
	if err != nil {
		return nil, err
	}

	runCacheMu.Lock()
	runCache = &runCacheEntry{path: path, runs: runs, expiresAt: time.Now().Add(runCacheTTL)}
	runCacheMu.Unlock()
	return runs, nil
}

func storePath() (string, error) {
	cfg, err := config.Load(config.ResolvePath(shared.GetConfigPath()))
	if err != nil {
		return "", err
	}
	return cfg.StorePath()
}

// fetchRuns reads the newest runs with a timeout.
func fetchRuns(path string) ([]runInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	store, err := runstore.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	runs, err := store.List(ctx, runstore.Filter{Limit: maxRuns})
	if err != nil {
		return nil, err
	}

	completions := make([]runInfo, 0, len(runs))
	for _, r := range runs {
		completions = append(completions, runInfo{
			id:          r.ID,
			status:      r.Status,
			description: r.Task + " (" + r.Status + ")",
		})
	}
	return completions, nil
}

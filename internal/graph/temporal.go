package graph

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultCoChangeThreshold is the minimum co-change ratio (shared commits /
// commits touching the more active of the two files) an observed file pair
// must clear before a CoChanges edge is materialized, matching config's
// cochange_threshold default.
const DefaultCoChangeThreshold = 0.3

// DefaultCoChangeHistoryLimit bounds how many commits BuildTemporalEdges
// walks back through, matching config's cochange_history_limit default.
const DefaultCoChangeHistoryLimit = 500

// BuildTemporalEdges derives CoChanges edges from VCS history: files that
// are frequently committed together are treated as temporally coupled even
// absent any static Import/Calls/Extends/Implements relationship. Per
// spec.md §4.7, this is the one place the engine shells out to the real
// `git` binary rather than using a library, since no example in the
// retrieval pack wraps git-log parsing in Go.
//
// pathToSymbolIDs maps a repo-relative file path to the symbol ids owned by
// that file (typically every top-level symbol store.Symbol.FileID == that
// file); a CoChanges edge is emitted between every pair of symbols owned by
// two files that co-occur often enough in commit history. threshold <= 0
// uses DefaultCoChangeThreshold; limitCommits <= 0 uses
// DefaultCoChangeHistoryLimit.
func BuildTemporalEdges(ctx context.Context, repoRoot string, limitCommits int, pathToSymbolIDs map[string][]int64, threshold float64) ([]Edge, error) {
	if limitCommits <= 0 {
		limitCommits = DefaultCoChangeHistoryLimit
	}
	if threshold <= 0 {
		threshold = DefaultCoChangeThreshold
	}

	commits, err := commitFileLists(ctx, repoRoot, limitCommits)
	if err != nil {
		return nil, err
	}

	touchCounts := make(map[string]int)
	pairCounts := make(map[[2]string]int)

	for _, files := range commits {
		tracked := make([]string, 0, len(files))
		for _, f := range files {
			if _, ok := pathToSymbolIDs[f]; ok {
				tracked = append(tracked, f)
			}
		}
		for _, f := range tracked {
			touchCounts[f]++
		}
		for i := 0; i < len(tracked); i++ {
			for j := i + 1; j < len(tracked); j++ {
				pairCounts[pairKey(tracked[i], tracked[j])]++
			}
		}
	}

	var edges []Edge
	for pair, shared := range pairCounts {
		a, b := pair[0], pair[1]
		maxTouch := touchCounts[a]
		if touchCounts[b] > maxTouch {
			maxTouch = touchCounts[b]
		}
		if maxTouch == 0 {
			continue
		}
		ratio := float64(shared) / float64(maxTouch)
		if ratio < threshold {
			continue
		}

		for _, src := range pathToSymbolIDs[a] {
			for _, dst := range pathToSymbolIDs[b] {
				edges = append(edges,
					Edge{Source: src, Target: dst, Kind: EdgeCoChanges, Weight: ratio},
					Edge{Source: dst, Target: src, Kind: EdgeCoChanges, Weight: ratio},
				)
			}
		}
	}

	return edges, nil
}

func pairKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

// commitFileLists runs `git log --name-only` and groups changed file paths
// by commit, bounded to the most recent limitCommits commits.
func commitFileLists(ctx context.Context, repoRoot string, limitCommits int) ([][]string, error) {
	cmd := exec.CommandContext(ctx, "git", "log",
		fmt.Sprintf("-n%d", limitCommits),
		"--name-only",
		"--pretty=format:--commit--",
	)
	cmd.Dir = repoRoot

	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("build temporal edges: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("build temporal edges: git log: %w", err)
	}

	var commits [][]string
	var current []string
	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "--commit--":
			if len(current) > 0 {
				commits = append(commits, current)
			}
			current = nil
		case line == "":
			continue
		default:
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		commits = append(commits, current)
	}

	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return nil, fmt.Errorf("build temporal edges: reading git log: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("build temporal edges: git log: %w", err)
	}
	return commits, nil
}

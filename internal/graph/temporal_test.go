package graph

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")

	writeAndCommit := func(files map[string]string, msg string) {
		for name, content := range files {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
		}
		run("add", ".")
		run("commit", "-q", "-m", msg)
	}

	// a.go and b.go change together three times; c.go changes alone.
	writeAndCommit(map[string]string{"a.go": "v1", "b.go": "v1", "c.go": "v1"}, "initial")
	writeAndCommit(map[string]string{"a.go": "v2", "b.go": "v2"}, "couple 1")
	writeAndCommit(map[string]string{"a.go": "v3", "b.go": "v3"}, "couple 2")
	writeAndCommit(map[string]string{"c.go": "v2"}, "c alone")

	return dir
}

func TestBuildTemporalEdges_CoupledFilesProduceEdges(t *testing.T) {
	repo := initTestRepo(t)

	pathToIDs := map[string][]int64{
		"a.go": {1},
		"b.go": {2},
		"c.go": {3},
	}

	edges, err := BuildTemporalEdges(context.Background(), repo, 0, pathToIDs, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, edges)

	var sawAB, sawBA, sawC bool
	for _, e := range edges {
		assert.Equal(t, EdgeCoChanges, e.Kind)
		if e.Source == 1 && e.Target == 2 {
			sawAB = true
		}
		if e.Source == 2 && e.Target == 1 {
			sawBA = true
		}
		if e.Source == 3 || e.Target == 3 {
			sawC = true
		}
	}
	assert.True(t, sawAB, "expected a co-change edge a -> b")
	assert.True(t, sawBA, "co-change edges are symmetric")
	assert.False(t, sawC, "c.go never co-changed with a.go or b.go above threshold")
}

func TestBuildTemporalEdges_ThresholdExcludesWeakPairs(t *testing.T) {
	repo := initTestRepo(t)
	pathToIDs := map[string][]int64{
		"a.go": {1},
		"c.go": {3},
	}

	// a.go and c.go only co-occur in the first commit out of a.go's three
	// total touches, a 1/3 ratio - excluded at a 0.5 threshold.
	edges, err := BuildTemporalEdges(context.Background(), repo, 0, pathToIDs, 0.5)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

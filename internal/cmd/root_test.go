package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxkit/resumer/pkg/snapshot"
)

func TestSetVersionInfo(t *testing.T) {
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
	}{
		{
			name:      "set all values",
			version:   "1.0.0",
			commit:    "abc123",
			buildDate: "2026-01-15",
		},
		{
			name:      "set dev version",
			version:   "dev",
			commit:    "HEAD",
			buildDate: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersionInfo(tt.version, tt.commit, tt.buildDate)

			assert.Equal(t, tt.version, versionInfo.Version)
			assert.Equal(t, tt.commit, versionInfo.Commit)
			assert.Equal(t, tt.buildDate, versionInfo.BuildDate)
		})
	}
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = oldStdout }()

	runErr := fn()

	require.NoError(t, w.Close())
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String(), runErr
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd.SetContext(context.Background())
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	return captureStdout(t, rootCmd.Execute)
}

func TestResolveCommand_NoCheckpointsPrintsNull(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "job-prev"), 0755))

	out, err := execute(t, "resolve", "--base", base, "--previous-job", "job-prev")
	require.NoError(t, err)

	var result struct {
		Resume *json.RawMessage `json:"resume"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Nil(t, result.Resume)
}

func TestResolveCommand_FindsLatestComplete(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "job-prev")
	_, err := snapshot.NewFS(snapshot.ModeFull).Snapshot(context.Background(), root, 3, snapshot.State{Emitted: []int64{1}})
	require.NoError(t, err)

	out, err := execute(t, "resolve", "--base", base, "--previous-job", "job-prev")
	require.NoError(t, err)

	var result struct {
		Resume *struct {
			Location string `json:"location"`
		} `json:"resume"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotNil(t, result.Resume)
	assert.Equal(t, filepath.Join(root, "chk-3"), result.Resume.Location)
}

func TestLatestCommand_FlatLayout(t *testing.T) {
	base := t.TempDir()
	_, err := snapshot.NewFS(snapshot.ModeFull).Snapshot(context.Background(), base, 8, snapshot.State{Emitted: []int64{2}})
	require.NoError(t, err)

	out, err := execute(t, "latest", "--base", base, "--layout", "flat")
	require.NoError(t, err)

	var result struct {
		Root       string `json:"root"`
		Checkpoint *struct {
			Sequence int64 `json:"sequence"`
		} `json:"checkpoint"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, base, result.Root)
	require.NotNil(t, result.Checkpoint)
	assert.Equal(t, int64(8), result.Checkpoint.Sequence)
}

func TestBuildView(t *testing.T) {
	ctx := context.Background()

	v, base, err := buildView(ctx, "/data/checkpoints")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "/data/checkpoints", base)

	v, base, err = buildView(ctx, "file:///data/checkpoints")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "/data/checkpoints", base)

	_, _, err = buildView(ctx, "s3://")
	assert.Error(t, err)
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/to-wer/media-renamer/internal/library"
)

type testWorkspace struct {
	config string
	watch  string
	out    string
}

func newWorkspace(t *testing.T) testWorkspace {
	t.Helper()
	base := t.TempDir()
	ws := testWorkspace{
		config: filepath.Join(base, "config.toml"),
		watch:  filepath.Join(base, "watch"),
		out:    filepath.Join(base, "library"),
	}
	require.NoError(t, os.MkdirAll(ws.watch, 0o755))

	content := fmt.Sprintf(`
[database]
driver = "sqlite"
path = %q

[media]
watch_path = %q
output_path = %q
scan_interval = 30
extensions = [".mkv", ".mp4"]
movie_template = "{Title} ({Year})/{Title} ({Year}) [{Resolution}] [{Codec}]"
episode_template = "{SeriesName} ({Year})/Season {Season:D2}/{SeriesName} S{Season:D2}E{Episode:D2} {EpisodeName}"
duplicate_handling = "skip"

[tmdb]
api_key = ""

[logging]
level = "error"
format = "text"
`, filepath.Join(base, "data", "test.db"), ws.watch, ws.out)
	require.NoError(t, os.WriteFile(ws.config, []byte(content), 0o644))
	t.Setenv("MEDIARENAMER_TMDB_API_KEY", "")
	t.Setenv("MEDIARENAMER_WATCH_PATH", "")
	return ws
}

func (ws testWorkspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", ws.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestParseCommandJSON(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "parse", "--json", "The.Matrix.1999.1080p.BluRay.x264.mkv", "Breaking.Bad.S01E02.720p.mkv")
	require.NoError(t, err)

	var results []parseResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)

	assert.Equal(t, library.MediaTypeMovie, results[0].Type)
	require.NotNil(t, results[0].Year)
	assert.Equal(t, 1999, *results[0].Year)
	assert.Equal(t, "1080p", results[0].Quality.Resolution)
	assert.Nil(t, results[0].Episode)

	assert.Equal(t, library.MediaTypeEpisode, results[1].Type)
	require.NotNil(t, results[1].Episode)
	assert.Equal(t, 2, *results[1].Episode.Episode)
}

func TestParseCommandTable(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "parse", "Inception.2010.720p.mkv")
	require.NoError(t, err)
	assert.Contains(t, out, "inception")
	assert.Contains(t, out, "2010")
	assert.Contains(t, out, "Confidence")
}

func TestScanListApprove(t *testing.T) {
	ws := newWorkspace(t)
	src := filepath.Join(ws.watch, "The.Matrix.1999.1080p.BluRay.x264.mkv")
	require.NoError(t, os.WriteFile(src, []byte("video"), 0o644))

	out, err := ws.run(t, "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "Created")

	out, err = ws.run(t, "proposals", "list", "--json", "--status", "pending")
	require.NoError(t, err)
	var proposals []library.Proposal
	require.NoError(t, json.Unmarshal([]byte(out), &proposals))
	require.Len(t, proposals, 1)
	assert.Equal(t, "The Matrix (1999)/The Matrix (1999) [1080p] [x264]", proposals[0].ProposedName)

	out, err = ws.run(t, "proposals", "approve", proposals[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, string(library.StatusProcessed))
	assert.FileExists(t, filepath.Join(ws.out, "The Matrix (1999)", "The Matrix (1999) [1080p] [x264].mkv"))
	assert.NoFileExists(t, src)

	out, err = ws.run(t, "proposals", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "processed")

	out, err = ws.run(t, "proposals", "delete", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 proposal(s)")
}

func TestRenderCommand(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "render", "/downloads/Inception.2010.720p.x264.mkv")
	require.NoError(t, err)
	assert.Contains(t, out, "Inception (2010) [720p] [x264].mkv")

	out, err = ws.run(t, "render", "--template", "{Title}", "/downloads/Inception.2010.720p.x264.mkv")
	require.NoError(t, err)
	assert.Contains(t, out, "Inception.mkv")
}

func TestProposalsListRejectsUnknownStatus(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, "proposals", "list", "--status", "bogus")
	require.Error(t, err)
	assert.ErrorIs(t, err, library.ErrInvalidStatus)
}

func TestDeleteRequiresIDs(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, "proposals", "delete")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "--all"))
}

func TestLibraryMounts(t *testing.T) {
	a := &app{}
	a.roots.Default = "/lib"
	a.roots.Movie = "/lib"
	a.roots.Episode = "/shows"

	mounts := libraryMounts(a)
	require.Len(t, mounts, 2)
	assert.Equal(t, "library", mounts[0].Name)
	assert.Equal(t, "episodes", mounts[1].Name)
}

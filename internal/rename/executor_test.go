package rename

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/to-wer/media-renamer/internal/fsx"
	"github.com/to-wer/media-renamer/internal/library"
)

type fixture struct {
	watch string
	out   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base := t.TempDir()
	f := fixture{watch: filepath.Join(base, "watch"), out: filepath.Join(base, "out")}
	require.NoError(t, os.MkdirAll(f.watch, 0o755))
	require.NoError(t, os.MkdirAll(f.out, 0o755))
	return f
}

func (f fixture) source(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.watch, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func proposal(src, name string) *library.Proposal {
	return &library.Proposal{
		ID:           "p1",
		ProposedName: name,
		Status:       library.StatusProcessing,
		Source:       library.MediaFile{OriginalPath: src, FileName: filepath.Base(src), Type: library.MediaTypeMovie},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestExecuteMovesFile(t *testing.T) {
	f := newFixture(t)
	src := f.source(t, "inception.2010.mkv", "movie")
	exec := NewExecutor(fsx.New(), Roots{Default: f.out}, PolicySkip)

	res, err := exec.Execute(context.Background(), proposal(src, "Inception (2010)/Inception (2010)"))
	require.NoError(t, err)

	want := filepath.Join(f.out, "Inception (2010)", "Inception (2010).mkv")
	assert.Equal(t, OutcomeMoved, res.Outcome)
	assert.Equal(t, want, res.TargetPath)
	assert.Equal(t, "movie", readFile(t, want))
	assert.NoFileExists(t, src)
}

func TestExecuteDuplicatePolicies(t *testing.T) {
	tests := []struct {
		name        string
		policy      DuplicatePolicy
		wantOutcome Outcome
		wantTarget  string
		existing    string
		sourceGone  bool
	}{
		{name: "skip", policy: PolicySkip, wantOutcome: OutcomeSkipped, wantTarget: "Movie.mkv", existing: "old", sourceGone: false},
		{name: "overwrite", policy: PolicyOverwrite, wantOutcome: OutcomeMoved, wantTarget: "Movie.mkv", existing: "new", sourceGone: true},
		{name: "rename with suffix", policy: PolicyRenameWithSuffix, wantOutcome: OutcomeMoved, wantTarget: "Movie_1.mkv", existing: "old", sourceGone: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			src := f.source(t, "movie.mkv", "new")
			existing := filepath.Join(f.out, "Movie.mkv")
			require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

			exec := NewExecutor(fsx.New(), Roots{Default: f.out}, tt.policy)
			res, err := exec.Execute(context.Background(), proposal(src, "Movie"))
			require.NoError(t, err)

			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, filepath.Join(f.out, tt.wantTarget), res.TargetPath)
			assert.Equal(t, tt.existing, readFile(t, existing))
			if tt.sourceGone {
				assert.NoFileExists(t, src)
				assert.Equal(t, "new", readFile(t, res.TargetPath))
			} else {
				assert.Equal(t, "new", readFile(t, src))
			}
		})
	}
}

func TestExecuteFileAlreadyInPlace(t *testing.T) {
	for _, policy := range []DuplicatePolicy{PolicySkip, PolicyOverwrite, PolicyRenameWithSuffix} {
		t.Run(string(policy), func(t *testing.T) {
			f := newFixture(t)
			src := filepath.Join(f.out, "Movie (2020)", "Movie (2020).mkv")
			require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
			require.NoError(t, os.WriteFile(src, []byte("keep"), 0o644))

			exec := NewExecutor(fsx.New(), Roots{Default: f.out}, policy)
			res, err := exec.Execute(context.Background(), proposal(src, "Movie (2020)/Movie (2020)"))
			require.NoError(t, err)

			assert.Equal(t, OutcomeMoved, res.Outcome)
			assert.Equal(t, src, res.TargetPath)
			assert.Equal(t, "keep", readFile(t, src))
			assert.NoFileExists(t, filepath.Join(f.out, "Movie (2020)", "Movie (2020)_1.mkv"))
		})
	}
}

// gatedFS holds each Exists call until a second caller arrives or the wait
// times out, widening the window between the check and the move.
type gatedFS struct {
	fsx.OS
	mu      sync.Mutex
	arrived int
	both    chan struct{}
}

func (g *gatedFS) Exists(path string) (bool, error) {
	g.mu.Lock()
	g.arrived++
	if g.arrived == 2 {
		close(g.both)
	}
	g.mu.Unlock()

	select {
	case <-g.both:
	case <-time.After(200 * time.Millisecond):
	}
	return g.OS.Exists(path)
}

func TestExecuteConcurrentSameTargetKeepsBothFiles(t *testing.T) {
	f := newFixture(t)
	a := f.source(t, "a.mkv", "AAA")
	b := f.source(t, "b.mkv", "BBB")
	exec := NewExecutor(&gatedFS{both: make(chan struct{})}, Roots{Default: f.out}, PolicySkip)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	errs := make([]error, 2)
	for i, src := range []string{a, b} {
		wg.Add(1)
		go func(i int, src string) {
			defer wg.Done()
			p := proposal(src, "Movie")
			results[i], errs[i] = exec.Execute(context.Background(), p)
		}(i, src)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	target := filepath.Join(f.out, "Movie.mkv")
	outcomes := []Outcome{results[0].Outcome, results[1].Outcome}
	assert.ElementsMatch(t, []Outcome{OutcomeMoved, OutcomeSkipped}, outcomes)

	moved, kept := a, b
	want := "AAA"
	if results[1].Outcome == OutcomeMoved {
		moved, kept, want = b, a, "BBB"
	}
	assert.NoFileExists(t, moved)
	assert.FileExists(t, kept)
	assert.Equal(t, want, readFile(t, target))
}

func TestExecuteSuffixSkipsTakenNames(t *testing.T) {
	f := newFixture(t)
	src := f.source(t, "movie.mkv", "third")
	require.NoError(t, os.WriteFile(filepath.Join(f.out, "Movie.mkv"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.out, "Movie_1.mkv"), []byte("b"), 0o644))

	exec := NewExecutor(fsx.New(), Roots{Default: f.out}, PolicyRenameWithSuffix)
	res, err := exec.Execute(context.Background(), proposal(src, "Movie"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.out, "Movie_2.mkv"), res.TargetPath)
}

func TestTargetRoots(t *testing.T) {
	roots := Roots{Default: "/lib", Movie: "/movies"}
	exec := NewExecutor(fsx.New(), roots, PolicySkip)

	movie := proposal("/w/a.mkv", "A (2000)/A (2000)")
	target, err := exec.Target(movie)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/movies", "A (2000)", "A (2000).mkv"), target)

	ep := proposal("/w/b.mp4", "Show/Season 01/Show S01E01")
	ep.Source.Type = library.MediaTypeEpisode
	target, err = exec.Target(ep)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/lib", "Show", "Season 01", "Show S01E01.mp4"), target)
}

func TestTargetErrors(t *testing.T) {
	_, err := NewExecutor(fsx.New(), Roots{}, PolicySkip).Target(proposal("/w/a.mkv", "A"))
	assert.ErrorIs(t, err, ErrNoOutputRoot)

	exec := NewExecutor(fsx.New(), Roots{Default: "/lib"}, PolicySkip)
	_, err = exec.Target(proposal("/w/a.mkv", "../../etc/passwd"))
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = exec.Target(proposal("/w/a.mkv", ""))
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestExecuteCancelledBeforeChanges(t *testing.T) {
	f := newFixture(t)
	src := f.source(t, "movie.mkv", "x")
	exec := NewExecutor(fsx.New(), Roots{Default: f.out}, PolicySkip)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Execute(ctx, proposal(src, "Sub/Movie"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, filepath.Join(f.out, "Sub"))
	assert.FileExists(t, src)
}

func TestExecuteMissingSourceIsMoveError(t *testing.T) {
	f := newFixture(t)
	exec := NewExecutor(fsx.New(), Roots{Default: f.out}, PolicySkip)

	_, err := exec.Execute(context.Background(), proposal(filepath.Join(f.watch, "gone.mkv"), "Gone"))
	var me *MoveError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, filepath.Join(f.out, "Gone.mkv"), me.Target)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]DuplicatePolicy{
		"":                   PolicySkip,
		"skip":               PolicySkip,
		"Overwrite":          PolicyOverwrite,
		"rename_with_suffix": PolicyRenameWithSuffix,
	} {
		got, err := ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePolicy("merge")
	assert.Error(t, err)
}

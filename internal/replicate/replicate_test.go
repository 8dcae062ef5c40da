package replicate

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycolab/phylopipe/internal/config"
	"github.com/mycolab/phylopipe/internal/fasta"
	"github.com/mycolab/phylopipe/internal/ledger"
	"github.com/mycolab/phylopipe/internal/toolexec"
)

// treeRunner fakes FastTree: it writes a trivial Newick tree to the
// redirected stdout path, failing for the indices in failOn.
type treeRunner struct {
	mu     sync.Mutex
	failOn map[string]bool // replicate fasta path -> fail
	runs   []string
}

func (r *treeRunner) Run(_ context.Context, spec toolexec.Spec) error {
	r.mu.Lock()
	r.runs = append(r.runs, spec.Program)
	r.mu.Unlock()

	in := spec.Args[len(spec.Args)-1]
	if r.failOn[in] {
		return &toolexec.ToolError{Program: spec.Program, Args: spec.Args, ExitCode: 1}
	}
	return os.WriteFile(spec.Stdout, []byte("(A:0.1,B:0.2);\n"), 0o644)
}

func writeAlignment(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aligned.fasta")
	require.NoError(t, fasta.WriteFile(path,
		fasta.Record{ID: "A", Description: "A", Seq: []byte("ACGTACGTAC")},
		fasta.Record{ID: "B", Description: "B", Seq: []byte("TGCATGCATG")},
	))
	return path
}

func newDriver(t *testing.T, runner toolexec.Runner, n int, seed int64, workers int) *Driver {
	t.Helper()
	return &Driver{
		Runner:     runner,
		Tools:      config.ToolsConfig{FastTree: "FastTree"},
		Ledger:     ledger.Nop{},
		Alignment:  writeAlignment(t),
		Dir:        t.TempDir(),
		Replicates: n,
		Seed:       seed,
		Workers:    workers,
	}
}

func TestRunProducesAllArtifacts(t *testing.T) {
	t.Parallel()

	runner := &treeRunner{failOn: map[string]bool{}}
	d := newDriver(t, runner, 5, 42, 1)
	require.NoError(t, d.Run(context.Background()))

	for i := 1; i <= 5; i++ {
		_, err := os.Stat(d.ReplicateFasta(i))
		require.NoError(t, err, "replicate %d fasta missing", i)
		_, err = os.Stat(d.ReplicateTree(i))
		require.NoError(t, err, "replicate %d tree missing", i)
	}
	assert.Len(t, runner.runs, 5)
}

func TestRunReplicatesKeepAlignmentShape(t *testing.T) {
	t.Parallel()

	runner := &treeRunner{failOn: map[string]bool{}}
	d := newDriver(t, runner, 3, 7, 1)
	require.NoError(t, d.Run(context.Background()))

	for i := 1; i <= 3; i++ {
		a, err := fasta.ReadAlignment(d.ReplicateFasta(i))
		require.NoError(t, err)
		assert.Equal(t, 2, a.Rows())
		assert.Equal(t, 10, a.Columns())
		assert.Equal(t, "A", a.Records[0].ID)
		assert.Equal(t, "B", a.Records[1].ID)
	}
}

func TestRunIsolatesTreeFailures(t *testing.T) {
	t.Parallel()

	runner := &treeRunner{failOn: map[string]bool{}}
	d := newDriver(t, runner, 3, 11, 1)
	runner.failOn[d.ReplicateFasta(2)] = true

	require.NoError(t, d.Run(context.Background()), "one failed replicate must not fail the batch")

	_, err := os.Stat(d.ReplicateTree(1))
	require.NoError(t, err)
	_, err = os.Stat(d.ReplicateTree(2))
	assert.True(t, os.IsNotExist(err), "failed replicate has no tree")
	_, err = os.Stat(d.ReplicateTree(3))
	require.NoError(t, err, "replicate 3 still ran after replicate 2 failed")
}

func TestRunSeedMakesArtifactsWorkerCountInvariant(t *testing.T) {
	t.Parallel()

	seq := newDriver(t, &treeRunner{failOn: map[string]bool{}}, 4, 123, 1)
	require.NoError(t, seq.Run(context.Background()))

	par := newDriver(t, &treeRunner{failOn: map[string]bool{}}, 4, 123, 4)
	// Same source alignment content for both drivers.
	require.NoError(t, par.Run(context.Background()))

	for i := 1; i <= 4; i++ {
		a, err := os.ReadFile(seq.ReplicateFasta(i))
		require.NoError(t, err)
		b, err := os.ReadFile(par.ReplicateFasta(i))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), "replicate %d differs across worker counts", i)
	}
}

func TestRunFatalOnMissingAlignment(t *testing.T) {
	t.Parallel()

	d := &Driver{
		Runner:     &treeRunner{failOn: map[string]bool{}},
		Tools:      config.ToolsConfig{FastTree: "FastTree"},
		Ledger:     ledger.Nop{},
		Alignment:  filepath.Join(t.TempDir(), "missing.fasta"),
		Dir:        t.TempDir(),
		Replicates: 3,
		Workers:    1,
	}
	require.Error(t, d.Run(context.Background()), "unreadable source alignment is fatal")
}

func TestRunFatalOnZeroReplicates(t *testing.T) {
	t.Parallel()

	d := newDriver(t, &treeRunner{failOn: map[string]bool{}}, 0, 1, 1)
	d.Replicates = 0
	require.Error(t, d.Run(context.Background()))
}

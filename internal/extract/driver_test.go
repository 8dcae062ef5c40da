package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycolab/phylopipe/internal/config"
	"github.com/mycolab/phylopipe/internal/ledger"
	"github.com/mycolab/phylopipe/internal/toolexec"
)

// fakeRunner simulates the external tools on the filesystem. The barrnap
// stand-in writes the redirected stdout/stderr files; the bedtools
// stand-in writes the canned rRNA FASTA to its -fo argument.
type fakeRunner struct {
	rrnaFasta map[string]string // sample input path -> extracted FASTA body
	failOn    map[string]bool   // sample input path -> force tool failure
	calls     []string
}

func (f *fakeRunner) Run(_ context.Context, spec toolexec.Spec) error {
	f.calls = append(f.calls, spec.Program)
	switch spec.Program {
	case "barrnap":
		in := spec.Args[len(spec.Args)-1]
		if f.failOn[in] {
			return &toolexec.ToolError{Program: spec.Program, Args: spec.Args, ExitCode: 1}
		}
		if err := os.WriteFile(spec.Stdout, []byte("##gff-version 3\n"), 0o644); err != nil {
			return err
		}
		return os.WriteFile(spec.Stderr, []byte("barrnap log\n"), 0o644)
	case "bedtools":
		var in, fo string
		for i, a := range spec.Args {
			switch a {
			case "-fi":
				in = spec.Args[i+1]
			case "-fo":
				fo = spec.Args[i+1]
			}
		}
		return os.WriteFile(fo, []byte(f.rrnaFasta[in]), 0o644)
	default:
		return fmt.Errorf("unexpected program %q", spec.Program)
	}
}

func testPipeline(t *testing.T, runner toolexec.Runner) *Pipeline {
	t.Helper()
	inDir := t.TempDir()
	outDir := t.TempDir()
	return &Pipeline{
		Runner:    runner,
		Paths:     Paths{InputDir: inDir, OutputDir: outDir},
		Tools:     config.ToolsConfig{Barrnap: "barrnap", Kingdom: "euk", Bedtools: "bedtools"},
		RegionTag: "18S",
	}
}

func writeScaffolds(t *testing.T, p Paths, id string) string {
	t.Helper()
	path := p.Scaffolds(id)
	require.NoError(t, os.WriteFile(path, []byte(">scaffold1\nACGTACGT\n"), 0o644))
	return path
}

func readSummary(t *testing.T, p Paths) []string {
	t.Helper()
	b, err := os.ReadFile(p.Summary())
	require.NoError(t, err)
	lines := []string{}
	for _, l := range splitLines(string(b)) {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func TestDriverHappyPath(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{rrnaFasta: map[string]string{}, failOn: map[string]bool{}}
	p := testPipeline(t, runner)

	in := writeScaffolds(t, p.Paths, "S1")
	runner.rrnaFasta[in] = ">r1 18S_rRNA::scaffold1:0-6\nACGTAC\n>r2 5S_rRNA::scaffold1:10-30\nACGTACGTACGTACGTACGT\n"

	d := &Driver{Pipeline: p, Ledger: ledger.Nop{}}
	require.NoError(t, d.Run(context.Background(), []string{"S1"}))

	lines := readSummary(t, p.Paths)
	require.Len(t, lines, 2)
	assert.Equal(t, "SampleID,Longest18S_Length", lines[0])
	assert.Equal(t, "S1,6", lines[1])

	// The winning record is persisted under the deterministic name.
	recs, err := os.ReadFile(p.Paths.Region("S1", "18S"))
	require.NoError(t, err)
	assert.Contains(t, string(recs), "18S_rRNA")
}

func TestDriverIsolatesFailures(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{rrnaFasta: map[string]string{}, failOn: map[string]bool{}}
	p := testPipeline(t, runner)

	in1 := writeScaffolds(t, p.Paths, "S1")
	in2 := writeScaffolds(t, p.Paths, "S2")
	in3 := writeScaffolds(t, p.Paths, "S3")
	runner.rrnaFasta[in1] = ">r1 18S_rRNA\nACGT\n"
	runner.rrnaFasta[in3] = ">r1 18S_rRNA\nACGTACGT\n"
	runner.failOn[in2] = true

	d := &Driver{Pipeline: p, Ledger: ledger.Nop{}}
	require.NoError(t, d.Run(context.Background(), []string{"S1", "S2", "S3"}))

	lines := readSummary(t, p.Paths)
	require.Len(t, lines, 4, "every sample gets a row, failed or not")
	assert.Equal(t, "S1,4", lines[1])
	assert.Equal(t, "S2,0", lines[2], "failed sample records the sentinel")
	assert.Equal(t, "S3,8", lines[3], "failure of S2 must not suppress S3")
}

func TestDriverSkipsMissingInput(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{rrnaFasta: map[string]string{}, failOn: map[string]bool{}}
	p := testPipeline(t, runner)

	d := &Driver{Pipeline: p, Ledger: ledger.Nop{}}
	require.NoError(t, d.Run(context.Background(), []string{"missing"}))

	lines := readSummary(t, p.Paths)
	require.Len(t, lines, 2)
	assert.Equal(t, "missing,0", lines[1])
	assert.Empty(t, runner.calls, "no tool runs for a skipped sample")
}

func TestDriverNoTaggedRecordIsZeroNotError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{rrnaFasta: map[string]string{}, failOn: map[string]bool{}}
	p := testPipeline(t, runner)

	in := writeScaffolds(t, p.Paths, "S1")
	runner.rrnaFasta[in] = ">r1 5S_rRNA\nACGT\n>r2 23S_rRNA\nTGCA\n"

	d := &Driver{Pipeline: p, Ledger: ledger.Nop{}}
	require.NoError(t, d.Run(context.Background(), []string{"S1"}))

	lines := readSummary(t, p.Paths)
	assert.Equal(t, "S1,0", lines[1])
	_, err := os.Stat(p.Paths.Region("S1", "18S"))
	assert.True(t, os.IsNotExist(err), "no region file when nothing matched")
}

func TestDriverRerunIsIdempotent(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{rrnaFasta: map[string]string{}, failOn: map[string]bool{}}
	p := testPipeline(t, runner)

	in := writeScaffolds(t, p.Paths, "S1")
	runner.rrnaFasta[in] = ">r1 18S_rRNA\nACGTAC\n"

	d := &Driver{Pipeline: p, Ledger: ledger.Nop{}}
	require.NoError(t, d.Run(context.Background(), []string{"S1"}))
	first, err := os.ReadFile(p.Paths.Summary())
	require.NoError(t, err)

	require.NoError(t, d.Run(context.Background(), []string{"S1"}))
	second, err := os.ReadFile(p.Paths.Summary())
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestDriverRecordsOutcomesInLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, err := ledger.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	runner := &fakeRunner{rrnaFasta: map[string]string{}, failOn: map[string]bool{}}
	p := testPipeline(t, runner)
	in := writeScaffolds(t, p.Paths, "S1")
	runner.rrnaFasta[in] = ">r1 18S_rRNA\nACGTAC\n"

	d := &Driver{Pipeline: p, Ledger: l}
	require.NoError(t, d.Run(ctx, []string{"S1", "absent"}))
}

func TestDriverEmptyWorkList(t *testing.T) {
	t.Parallel()

	p := testPipeline(t, &fakeRunner{})
	d := &Driver{Pipeline: p, Ledger: ledger.Nop{}}
	require.Error(t, d.Run(context.Background(), nil))
}

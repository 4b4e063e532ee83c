package commands_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/poolscope/cmd/poolscope/commands"
	"github.com/Sumatoshi-tech/poolscope/pkg/report"
	"github.com/Sumatoshi-tech/poolscope/pkg/summary"
)

const cleanLog = `create 0xA 0x0 0
alloc 0xA 0xA 100
create 0xB 0xA 0
alloc 0xB 0xB 50
destroy 0xB 0x0 0
destroy 0xA 0x0 0
`

// killedLog destroys 0xB after its parent already took it down.
const killedLog = `create 0xA 0x0 0
alloc 0xA 0xA 100
create 0xB 0xA 0
alloc 0xB 0xB 50
destroy 0xA 0x0 0
alloc 0xB 0xB 10
destroy 0xB 0x0 0
`

func writeLog(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := commands.NewRootCommand()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--quiet"}, args...))

	err := cmd.Execute()

	return out.String(), err
}

func TestRoot_TextSummary(t *testing.T) {
	t.Parallel()

	out, err := execute(t, writeLog(t, "a.log", cleanLog))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "Call counts:\n  create: 2\n  alloc: 2\n  clear: 0\n  destroy: 2\n"))
	assert.Contains(t, out, "Maximum depth: 2\n")
	assert.Contains(t, out, "Distribution of pool depth:\n")
}

func TestRoot_ProgramTargets(t *testing.T) {
	t.Parallel()

	path := writeLog(t, "a.log", cleanLog)

	out, err := execute(t, "--program", path)
	require.NoError(t, err)
	assert.Contains(t, out, "apr_pool_create(&p0xA, 0);")
	assert.Contains(t, out, "apr_pool_destroy(p0xB);")

	out, err = execute(t, "--pocore", path)
	require.NoError(t, err)
	assert.Contains(t, out, "p0xA = pc_pool_root(ctx);")
	assert.Contains(t, out, "p0xB = pc_pool_create(p0xA);")
}

func TestRoot_ProgramAndPoCoreExclusive(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "--program", "--pocore", writeLog(t, "a.log", cleanLog))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pocore")
}

func TestRoot_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := execute(t, filepath.Join(t.TempDir(), "absent.log"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSummary_StrictFailsOnKilledPool(t *testing.T) {
	t.Parallel()

	path := writeLog(t, "a.log", killedLog)

	_, err := execute(t, "summary", path)
	require.ErrorIs(t, err, summary.ErrUnknownPool)
	assert.Contains(t, err.Error(), "line 7")

	out, err := execute(t, "summary", "--tolerant", path)
	require.NoError(t, err)
	assert.Contains(t, out, "  alloc: 3\n")
}

func TestSummary_JSONMatchesSchema(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "summary", "-f", "json", "--history", writeLog(t, "a.log", cleanLog))
	require.NoError(t, err)

	require.NoError(t, report.ValidateJSON([]byte(out)))

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "history")
}

func TestSummary_TableAndUnknownFormat(t *testing.T) {
	t.Parallel()

	path := writeLog(t, "a.log", cleanLog)

	out, err := execute(t, "--no-color", "summary", "-f", "table", "--title", "nightly", path)
	require.NoError(t, err)
	assert.Contains(t, out, "nightly")
	assert.Contains(t, out, "Total")

	_, err = execute(t, "summary", "-f", "csv", path)
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestReplay_OutputFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	output := filepath.Join(dir, "replay.c")

	out, err := execute(t, "replay", "-t", "pocore", "-n", "3", "-o", output, writeLog(t, "a.log", killedLog))
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(output)
	require.NoError(t, err)

	program := string(data)
	assert.Contains(t, program, "int i = 3;")
	assert.Contains(t, program, "// BOGUS: pc_alloc(p0xB, 10);")
}

func TestReplay_BadInput(t *testing.T) {
	t.Parallel()

	path := writeLog(t, "a.log", cleanLog)

	_, err := execute(t, "replay", "-n", "0", path)
	require.ErrorIs(t, err, commands.ErrInvalidIterations)

	_, err = execute(t, "replay", "-t", "jemalloc", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jemalloc")
}

func TestCompare(t *testing.T) {
	t.Parallel()

	left := writeLog(t, "a.log", cleanLog)
	right := writeLog(t, "b.log", cleanLog+"create 0xC 0x0 0\nalloc 0xC 0xC 5000\n")

	out, err := execute(t, "--no-color", "compare", left, right)
	require.NoError(t, err)
	assert.Contains(t, out, "- Maximum single allocation: 100\n")
	assert.Contains(t, out, "+ Maximum single allocation: 5000\n")
	assert.Contains(t, out, "  Maximum depth: 2\n")

	_, err = execute(t, "--no-color", "compare", "--fail-on-diff", left, right)
	require.ErrorIs(t, err, commands.ErrReportsDiffer)

	_, err = execute(t, "--no-color", "compare", "--fail-on-diff", left, left)
	require.NoError(t, err)
}

func TestTargets(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "targets")
	require.NoError(t, err)
	assert.Contains(t, out, "apr_pool_t")
	assert.Contains(t, out, "pc_pool_t")
}

func TestSchema(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "schema")
	require.NoError(t, err)
	assert.JSONEq(t, string(report.Schema()), out)

	valid, err := execute(t, "summary", "-f", "json", writeLog(t, "a.log", cleanLog))
	require.NoError(t, err)

	out, err = execute(t, "schema", "--validate", writeLog(t, "summary.json", valid))
	require.NoError(t, err)
	assert.Contains(t, out, "is a valid summary")

	_, err = execute(t, "schema", "--validate", writeLog(t, "bad.json", `{"actions": {}}`))
	require.ErrorIs(t, err, report.ErrInvalidReport)
}

func TestVersion(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "poolscope "))
	assert.Contains(t, out, "commit:")
}

func TestMetricsTextfile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "poolscope.prom")

	_, err := execute(t, "--metrics-textfile", path, "summary", writeLog(t, "a.log", cleanLog))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "poolscope_events")
	assert.Contains(t, string(data), "poolscope_pools_max_live")
}

func TestVerboseAndQuietExclusive(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "--verbose", "version")
	require.Error(t, err)
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/adapters/sqlite"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports/tests"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const planText = `Plan: ask the site. #E1 = Human[Which city is the site in?]
Plan: look up. #E2 = DataBase[snow load zone of #E1]
Plan: compute. #E3 = WolframAlpha[0.8 * #E2]`

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "arbor version 0.1.0")
}

func TestPlanValidate(t *testing.T) {
	out, err := execute(t, "plan", "validate", writeFile(t, "plan.txt", planText))
	require.NoError(t, err)
	assert.Contains(t, out, "Plan is valid: 3 steps")
	assert.Contains(t, out, "#E3 calculation [0.8 * #E2] (depends on: #E2)")

	cycle := "Plan: a. #E1 = LLM[use #E2]\nPlan: b. #E2 = LLM[use #E1]"
	_, err = execute(t, "plan", "validate", writeFile(t, "cycle.txt", cycle))
	assert.ErrorIs(t, err, domain.ErrDependencyCycle)
}

func TestPlanGraph(t *testing.T) {
	out, err := execute(t, "plan", "graph", "--session", "", writeFile(t, "plan.txt", planText))
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "E1 --> E2")
}

func TestSessionCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARBOR_STORE_KIND", "file")
	t.Setenv("ARBOR_STORE_PATH", dir)

	store := file.New(dir)
	require.NoError(t, store.Save(context.Background(), "s1", tests.SampleState("s1")))

	out, err := execute(t, "session", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "- s1 [")

	out, err = execute(t, "session", "inspect", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, `"session_id": "s1"`)

	out, err = execute(t, "plan", "graph", "--session", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")

	out, err = execute(t, "session", "rm", "--all=false", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed session 's1'")

	out, err = execute(t, "session", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found.")
}

func TestIndexImport(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "index.db")
	t.Setenv("ARBOR_INDEX_PATH", indexPath)

	sections := `
- num: "5.2"
  title: Snow load on the ground
  category: DIN 1993-1-3
  chunks:
    - data_type: Definition
      content: The characteristic snow load on the ground depends on the zone.
`
	out, err := execute(t, "index", "import", writeFile(t, "sections.yaml", sections))
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 sections")

	db, err := sqlite.Open(indexPath)
	require.NoError(t, err)
	defer db.Close()
	got, err := sqlite.NewIndex(db).Retrieve(context.Background(), domain.RetrievalRequest{Query: "snow load zone"})
	require.NoError(t, err)
	assert.Contains(t, got.Text, "5.2 Snow load on the ground")
}

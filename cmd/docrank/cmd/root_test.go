package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docrank/docrank/internal/retrieval"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeChunksFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "chunks.json")
	content := `[
		{"document_id": "pool-manual", "chunk_index": 0, "page_start": 3, "page_end": 3,
		 "content": "Chlorine dosing requires careful measurement of water volume.",
		 "citation": "Pool Manual, p.3"},
		{"document_id": "pool-manual", "chunk_index": 1, "page_start": 4, "page_end": 4,
		 "content": "After chlorine dosing, retest the water within one hour.",
		 "citation": "Pool Manual, p.4"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCLI_IndexAskRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DOCRANK_STORE_PATH", filepath.Join(dir, "chunks.db"))

	chunksPath := writeChunksFile(t, dir)

	out, err := runCLI(t, "index", chunksPath, "--name", "manuals")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 chunks")

	out, err = runCLI(t, "indices")
	require.NoError(t, err)
	assert.Contains(t, out, "manuals")

	out, err = runCLI(t, "ask", "chlorine dosing", "--json")
	require.NoError(t, err)

	var resp retrieval.ContextualResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Chunks)
	assert.Contains(t, resp.Citations, "Pool Manual, p.3")
}

func TestCLI_AskWithoutIndicesFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DOCRANK_STORE_PATH", filepath.Join(dir, "chunks.db"))

	_, err := runCLI(t, "ask", "anything")
	assert.Error(t, err)
}

func TestCLI_IndexRejectsInvalidRecords(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DOCRANK_STORE_PATH", filepath.Join(dir, "chunks.db"))

	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"chunk_index": 0, "content": "no id"}]`), 0o644))

	_, err := runCLI(t, "index", path, "--name", "manuals")
	assert.ErrorContains(t, err, "document_id")
}

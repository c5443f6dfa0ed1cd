package itsdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testRelations = `item:
  i-id :integer :key        # item id
  i-input :string           # input string
  i-wf :integer             # grammaticality
  i-date :date

parse:
  parse-id :integer :key
  run-id :integer :key
  i-id :integer :key
  readings :integer

result:
  parse-id :integer :key
  result-id :integer
  mrs :string

run:
  run-id :integer :key
  items :integer
  start :date
  end :date
`

func testRels(t testing.TB) *Relations {
	t.Helper()
	rels, err := ParseRelations(testRelations)
	require.NoError(t, err)
	return rels
}

// writeProfile creates a profile directory with the test relations and the
// given table files (name → content).
func writeProfile(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, RelationsFile), testRelations)
	for name, content := range files {
		writeFile(t, filepath.Join(dir, name), content)
	}
	return dir
}

func writeFile(t testing.TB, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t testing.TB, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func fileSize(t testing.TB, path string) int64 {
	t.Helper()
	st, err := os.Stat(path)
	require.NoError(t, err)
	return st.Size()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// rawRows returns every row of t as raw cells.
func rawRows(t testing.TB, tbl *Table) [][]string {
	t.Helper()
	var rows [][]string
	err := tbl.Rows(func(_ int, cells []string) error {
		rows = append(rows, append([]string(nil), cells...))
		return nil
	})
	require.NoError(t, err)
	return rows
}

const testItems = "1@the dog barks@1@2024-03-01\n2@cats sleep@1@\n3@@0@\n"

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"reevdb/db/migrations"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func realGraph(t *testing.T) *migrations.Graph {
	t.Helper()
	graph, err := migrations.NewGraph(migrations.All)
	require.NoError(t, err)
	return graph
}

func TestWriteHistory(t *testing.T) {
	graph := realGraph(t)

	var buf bytes.Buffer
	require.NoError(t, writeHistory(&buf, graph, "850ccab0221d", false))
	assert.Equal(t, strings.Join([]string{
		"850ccab0221d -> 21dd979edd2b (head), init comments",
		"315675882512 -> 850ccab0221d (current), init users",
		"<base> -> 315675882512, empty message",
		"",
	}, "\n"), buf.String())
}

func TestWriteHistoryJson(t *testing.T) {
	graph := realGraph(t)

	var buf bytes.Buffer
	require.NoError(t, writeHistory(&buf, graph, "315675882512", true))
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "315675882512", entries[0]["revision"])
	assert.Nil(t, entries[0]["down_revision"])
	assert.Equal(t, true, entries[0]["is_current"])
	assert.Equal(t, true, entries[0]["is_applied"])
	assert.Equal(t, false, entries[1]["is_applied"])
	assert.Equal(t, true, entries[2]["is_head"])
}

func TestWriteCurrent(t *testing.T) {
	graph := realGraph(t)

	type Test struct {
		revision string
		asJson   bool
		expected string
	}
	tests := []Test{
		{"", false, "<base>\n"},
		{"315675882512", false, "315675882512\n"},
		{"21dd979edd2b", false, "21dd979edd2b (head)\n"},
		{"", true, `{"revision":null,"is_head":false}` + "\n"},
		{"21dd979edd2b", true, `{"revision":"21dd979edd2b","is_head":true}` + "\n"},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		require.NoError(t, writeCurrent(&buf, graph, tc.revision, tc.asJson))
		assert.Equal(t, tc.expected, buf.String())
	}
}

func TestWriteRevisionInsert(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRevisionInsert(&buf, "21dd979edd2b"))
	assert.Equal(t, "\nINSERT INTO alembic_version (version_num) VALUES ('21dd979edd2b');\n", buf.String())

	buf.Reset()
	require.NoError(t, writeRevisionInsert(&buf, ""))
	assert.Empty(t, buf.String())
}

func TestNewRevisionId(t *testing.T) {
	revision := newRevisionId()
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{12}$`), revision)
	assert.NotEqual(t, revision, newRevisionId())
}

func TestMigrationMessage(t *testing.T) {
	assert.Equal(t, "init comments", migrationMessage("InitComments"))
	assert.Equal(t, "add index", migrationMessage("AddIndex"))
	assert.Equal(t, "users", migrationMessage("Users"))
}

func TestRenderMigrationRejectsBadNames(t *testing.T) {
	for _, name := range []string{"initComments", "Init-Comments", "1Init"} {
		_, err := renderMigration(migrationParams{
			StructName:   name,
			Revision:     "aaaaaaaaaaaa",
			DownRevision: "21dd979edd2b",
			Message:      "x",
		})
		assert.Error(t, err, name)
	}
}

func TestGenerateMigration(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	require.NoError(t, generateMigration(&out, dir, "AddCommentVotes"))

	files, err := filepath.Glob(filepath.Join(dir, "*_AddCommentVotes.go"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, out.String(), files[0])

	source, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(source), "type AddCommentVotes struct{}")
	assert.Contains(t, string(source), `return "21dd979edd2b"`)
	assert.Contains(t, string(source), `return "add comment votes"`)

	revision := strings.TrimSuffix(filepath.Base(files[0]), "_AddCommentVotes.go")
	assert.Contains(t, string(source), `return "`+revision+`"`)
}

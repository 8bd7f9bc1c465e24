package postgres

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var tableRefPattern = regexp.MustCompile(`(?:FROM|INSERT INTO|UPDATE|DELETE FROM)\s+([a-z_]+)`)

// Every table referenced by a repository query must be created by the
// migration, so a renamed table cannot drift out of sync with the schema.
func TestRepositoryQueriesMatchMigrationSchema(t *testing.T) {
	migration, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "001_init.up.sql"))
	require.NoError(t, err)

	sources, err := filepath.Glob("*.go")
	require.NoError(t, err)

	referenced := map[string][]string{}
	for _, path := range sources {
		if strings.HasSuffix(path, "_test.go") {
			continue
		}
		src, err := os.ReadFile(path)
		require.NoError(t, err)
		for _, match := range tableRefPattern.FindAllStringSubmatch(string(src), -1) {
			table := match[1]
			referenced[table] = append(referenced[table], path)
		}
	}
	require.NotEmpty(t, referenced, "expected repository sources to contain SQL")

	for table, files := range referenced {
		created := strings.Contains(string(migration), "CREATE TABLE IF NOT EXISTS "+table)
		require.True(t, created, "table %q referenced by %v is not created by the migration", table, files)
	}
}

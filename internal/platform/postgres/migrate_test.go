package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicpulse/internal/platform/postgres/migrations"
)

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;\n"
	up := ExtractUpMigration(content)
	assert.Contains(t, up, "CREATE TABLE a")
	assert.NotContains(t, up, "DROP TABLE")

	assert.Equal(t, "SELECT 1;", ExtractUpMigration("SELECT 1;"))
}

func TestEmbeddedMigrationsHaveUpSections(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	require.NoError(t, err)

	var sqlFiles int
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		sqlFiles++
		content, err := fs.ReadFile(migrations.FS, entry.Name())
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(ExtractUpMigration(string(content))), entry.Name())
	}
	assert.Equal(t, 3, sqlFiles)
}

func TestRatingsTableEnforcesOneRowPerUser(t *testing.T) {
	content, err := fs.ReadFile(migrations.FS, "0002_ratings.sql")
	require.NoError(t, err)
	up := ExtractUpMigration(string(content))
	assert.Contains(t, up, "user_id    TEXT PRIMARY KEY")
	assert.Contains(t, up, "CHECK (score BETWEEN 1 AND 5)")
}

package integration

import (
	"testing"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/infrastructure/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func tableExists(t *testing.T, tdb *TestDB, table string) bool {
	t.Helper()
	var exists bool
	err := tdb.DB.Raw(`
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = ?
		)
	`, table).Scan(&exists).Error
	require.NoError(t, err)
	return exists
}

func TestMigrations_UpDownUp(t *testing.T) {
	tdb := NewTestDB(t)

	m, err := migration.New(tdb.SqlDB, "", zap.NewNop())
	require.NoError(t, err)

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(20260301090100), version)
	assert.False(t, dirty)
	assert.True(t, tableExists(t, tdb, "users"))
	assert.True(t, tableExists(t, tdb, "grievances"))

	require.NoError(t, m.Up(), "an up-to-date schema is not an error")

	require.NoError(t, m.Steps(-1))
	assert.False(t, tableExists(t, tdb, "grievances"))
	assert.True(t, tableExists(t, tdb, "users"))

	require.NoError(t, m.Down())
	assert.False(t, tableExists(t, tdb, "users"))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, m.Up())
	assert.True(t, tableExists(t, tdb, "grievances"))
}

func TestMigrations_GrievanceConstraints(t *testing.T) {
	tdb := NewSharedTestDB(t)

	var columns []string
	err := tdb.DB.Raw(`
		SELECT column_name FROM information_schema.columns
		WHERE table_name = 'grievances' AND column_name IN ('latitude', 'longitude', 'attachments')
		ORDER BY column_name
	`).Scan(&columns).Error
	require.NoError(t, err)
	assert.Equal(t, []string{"attachments", "latitude", "longitude"}, columns)

	owner := uuid.New()
	tdb.CreateTestUser(owner)
	insert := `
		INSERT INTO grievances (id, user_id, problem, city, mail_body, status, latitude, longitude)
		VALUES (?, ?, 'p', 'c', 'b', ?, ?, ?)
	`
	assert.NoError(t, tdb.DB.Exec(insert, uuid.New(), owner, "Resolved", 16.5, 80.6).Error)
	assert.Error(t, tdb.DB.Exec(insert, uuid.New(), owner, "Escalated", 16.5, 80.6).Error,
		"unknown statuses are rejected")
	assert.Error(t, tdb.DB.Exec(insert, uuid.New(), owner, "Pending", 16.5, nil).Error,
		"coordinates come in pairs")
}

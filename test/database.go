package test

import (
	"path/filepath"
	"testing"

	"github.com/ImShyMike/hcb/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TmpFile returns the path to a unique file to be used in tests
func TmpFile(t *testing.T) string {
	dir := t.TempDir()
	return filepath.Join(dir, uuid.New().String())
}

// Connect connects models.DB to a fresh database and closes it when the test ends.
func Connect(t *testing.T) *gorm.DB {
	require.Nil(t, models.Connect(TmpFile(t)), "Database connection failed")

	db := models.DB
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

package database

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Version() (uint, bool, error) {
	args := m.Called()
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func (m *MockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func engineFor(m Migrator) MigrationEngine {
	return func(string) (Migrator, error) {
		return m, nil
	}
}

func TestRunMigrations_Success(t *testing.T) {
	m := new(MockMigrator)
	m.On("Up").Return(nil)
	m.On("Version").Return(uint(1), false, nil)
	m.On("Close").Return(nil, nil)

	err := RunMigrations("postgres://localhost/test", engineFor(m))

	assert.NoError(t, err)
	m.AssertExpectations(t)
}

func TestRunMigrations_NoChange(t *testing.T) {
	m := new(MockMigrator)
	m.On("Up").Return(migrate.ErrNoChange)
	m.On("Version").Return(uint(1), false, nil)
	m.On("Close").Return(nil, nil)

	assert.NoError(t, RunMigrations("postgres://localhost/test", engineFor(m)))
}

func TestRunMigrations_UpError(t *testing.T) {
	m := new(MockMigrator)
	m.On("Up").Return(errors.New("syntax error at or near"))
	m.On("Close").Return(nil, nil)

	err := RunMigrations("postgres://localhost/test", engineFor(m))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply migrations")
	m.AssertNotCalled(t, "Version")
}

func TestRunMigrations_DirtyVersion(t *testing.T) {
	m := new(MockMigrator)
	m.On("Up").Return(migrate.ErrNoChange)
	m.On("Version").Return(uint(1), true, nil)
	m.On("Close").Return(nil, nil)

	err := RunMigrations("postgres://localhost/test", engineFor(m))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dirty")
}

func TestRunMigrations_EngineError(t *testing.T) {
	engine := func(string) (Migrator, error) {
		return nil, errors.New("connection refused")
	}

	err := RunMigrations("postgres://localhost/test", engine)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRunMigrations_CloseErrorsAreReported(t *testing.T) {
	m := new(MockMigrator)
	m.On("Up").Return(nil)
	m.On("Version").Return(uint(1), false, nil)
	m.On("Close").Return(errors.New("source closed"), errors.New("db closed"))

	err := RunMigrations("postgres://localhost/test", engineFor(m))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "source closed")
	assert.Contains(t, err.Error(), "db closed")
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.NotZero(t, ups)
	assert.Equal(t, ups, downs)
}

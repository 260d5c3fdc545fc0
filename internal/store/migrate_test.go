// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/pkg/errutil"
)

type fakeMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	stepsCalled    bool
	versionVal     uint
	versionErr     error
	dirty          bool
	forceErr       error
	closeSourceErr error
	closeDBErr     error
}

func (m *fakeMigrate) Up() error   { return m.upErr }
func (m *fakeMigrate) Down() error { return m.downErr }
func (m *fakeMigrate) Steps(_ int) error {
	m.stepsCalled = true
	return m.stepsErr
}
func (m *fakeMigrate) Version() (uint, bool, error) { return m.versionVal, m.dirty, m.versionErr }
func (m *fakeMigrate) Force(_ int) error            { return m.forceErr }
func (m *fakeMigrate) Close() (error, error)        { return m.closeSourceErr, m.closeDBErr }

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/testdb")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/gatehouse":   "pgx5://u:p@db:5432/gatehouse",
		"postgresql://u:p@db:5432/gatehouse": "pgx5://u:p@db:5432/gatehouse",
		"pgx5://u:p@db:5432/gatehouse":       "pgx5://u:p@db:5432/gatehouse",
	}
	for in, want := range tests {
		assert.Equal(t, want, MigrateURL(in), in)
	}
}

func TestMigrator_UpDownTreatNoChangeAsSuccess(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange, downErr: migrate.ErrNoChange}}
	require.NoError(t, m.Up())
	require.NoError(t, m.Down())
}

func TestMigrator_Errors(t *testing.T) {
	boom := errors.New("database locked")
	tests := []struct {
		name string
		fake *fakeMigrate
		call func(*Migrator) error
		code string
	}{
		{"up", &fakeMigrate{upErr: boom}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down", &fakeMigrate{downErr: boom}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"steps", &fakeMigrate{stepsErr: boom}, func(m *Migrator) error { return m.Steps(2) }, "MIGRATION_STEPS_FAILED"},
		{"force", &fakeMigrate{forceErr: boom}, func(m *Migrator) error { return m.Force(1) }, "MIGRATION_FORCE_FAILED"},
		{"force negative", &fakeMigrate{}, func(m *Migrator) error { return m.Force(-1) }, "INVALID_VERSION"},
		{"version", &fakeMigrate{versionErr: boom}, func(m *Migrator) error {
			_, _, err := m.Version()
			return err
		}, "MIGRATION_VERSION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(&Migrator{m: tt.fake})
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestMigrator_StepsZeroIsNoOp(t *testing.T) {
	fake := &fakeMigrate{}
	require.NoError(t, (&Migrator{m: fake}).Steps(0))
	assert.False(t, fake.stepsCalled)
}

func TestMigrator_Version(t *testing.T) {
	v, dirty, err := (&Migrator{m: &fakeMigrate{versionVal: 2, dirty: true}}).Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.True(t, dirty)

	v, dirty, err = (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)
}

func TestMigrator_Close(t *testing.T) {
	require.NoError(t, (&Migrator{m: &fakeMigrate{}}).Close())

	err := (&Migrator{m: &fakeMigrate{closeSourceErr: errors.New("src")}}).Close()
	errutil.AssertErrorContext(t, err, "component", "source")

	err = (&Migrator{m: &fakeMigrate{closeDBErr: errors.New("db")}}).Close()
	errutil.AssertErrorContext(t, err, "component", "database")

	err = (&Migrator{m: &fakeMigrate{closeSourceErr: errors.New("src"), closeDBErr: errors.New("db")}}).Close()
	errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
	errutil.AssertErrorContext(t, err, "component", "both")
}

func TestMigrator_PendingAndApplied(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{versionVal: 1}}

	pending, err := m.PendingMigrations()
	require.NoError(t, err)
	assert.Equal(t, []uint{2, 3}, pending)

	applied, err := m.AppliedMigrations()
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, applied)

	fresh := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
	pending, err = fresh.PendingMigrations()
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3}, pending)
	applied, err = fresh.AppliedMigrations()
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestMigrator_PendingVersionError(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{versionErr: errors.New("connection lost")}}
	_, err := m.PendingMigrations()
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "operation", "get pending migrations")
}

func TestMigrationName(t *testing.T) {
	tests := map[uint]string{
		1:   "000001_users",
		2:   "000002_web_sessions",
		3:   "000003_rooms",
		999: "",
	}
	for version, want := range tests {
		name, err := MigrationName(version)
		require.NoError(t, err)
		assert.Equal(t, want, name)
	}
}

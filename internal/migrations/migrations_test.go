package migrations

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(*sqlx.Tx) error { return nil }

func registry(versions ...string) *Migrator {
	r := newRegistry()
	for _, v := range versions {
		r.addMigration(&migration{version: v, up: noop, down: noop})
	}
	return r
}

func versionsOf(batch []*migration) []string {
	out := make([]string, 0, len(batch))
	for _, mg := range batch {
		out = append(out, mg.version)
	}
	return out
}

func TestRegisteredMigrationsAreOrdered(t *testing.T) {
	assert.Equal(t, []string{
		"20261001090000",
		"20261001090500",
		"20261001091000",
		"20261001091500",
	}, m.versions)
}

func TestAddMigration_KeepsVersionOrder(t *testing.T) {
	r := registry("20261003000000", "20261001000000", "20261002000000")

	assert.Equal(t, []string{"20261001000000", "20261002000000", "20261003000000"}, r.versions)

	assert.Panics(t, func() {
		r.addMigration(&migration{version: "20261002000000", up: noop, down: noop})
	})
}

func TestPendingAndApplied(t *testing.T) {
	r := registry("1", "2", "3", "4")
	r.markApplied([]string{"1", "2", "unknown"})

	assert.Equal(t, []string{"3", "4"}, versionsOf(r.pending(0)))
	assert.Equal(t, []string{"3"}, versionsOf(r.pending(1)))
	assert.Equal(t, []string{"2", "1"}, versionsOf(r.applied(0)))
	assert.Equal(t, []string{"2"}, versionsOf(r.applied(1)))

	status := r.Status()
	require.Len(t, status, 4)
	assert.Equal(t, Status{Version: "2", Applied: true}, status[1])
	assert.Equal(t, Status{Version: "3", Applied: false}, status[2])
}

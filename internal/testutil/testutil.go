// Package testutil provides shared test helpers for setting up vault managers and vaults.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/ansuz/internal/vault"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestManager creates a vault manager over a temporary storage root that is
// closed automatically.
func TestManager(t testing.TB) *vault.Manager {
	t.Helper()
	m := vault.NewManager(vault.StorageRoot(t.TempDir()), vault.WithLogger(Logger()))
	t.Cleanup(func() { m.Close() })
	return m
}

// TestVault creates a vault called name in a fresh temporary manager.
func TestVault(t testing.TB, name string) *vault.Vault {
	t.Helper()
	v, err := TestManager(t).Create(context.Background(), name)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

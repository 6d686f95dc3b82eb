package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/schoolstock/stockroom/internal/config"
	"github.com/schoolstock/stockroom/internal/db"
	"github.com/schoolstock/stockroom/internal/store"
)

func TestLevelRouter(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := slog.New(newLevelRouter(slog.LevelInfo, &out, &errOut))

	logger.Debug("hidden")
	logger.Info("to stdout")
	logger.Warn("also stdout")
	logger.Error("to stderr")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "to stdout")
	assert.Contains(t, out.String(), "also stdout")
	assert.NotContains(t, out.String(), "to stderr")
	assert.Contains(t, errOut.String(), "to stderr")
}

func TestParseFlagsOverridesOnlyGivenValues(t *testing.T) {
	f, err := parseFlags([]string{"-d", "other.sqlite3", "-addr", ":9999"})
	require.NoError(t, err)

	cfg := &config.Config{
		Server:   config.ServerConfig{Addr: ":8080"},
		Database: config.DatabaseConfig{Path: "stockroom.sqlite3"},
		Admin:    config.AdminConfig{Username: "Admin"},
		Log:      config.LogConfig{Path: "from-config.log"},
	}
	f.apply(cfg)

	assert.Equal(t, "other.sqlite3", cfg.Database.Path)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "Admin", cfg.Admin.Username)
	assert.Equal(t, "from-config.log", cfg.Log.Path)
}

func TestParseFlagsRejectsArguments(t *testing.T) {
	_, err := parseFlags([]string{"serve"})
	assert.Error(t, err)
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	database := db.NewTestDB(t)

	password, err := ensureAdmin(ctx, database, "Admin")
	require.NoError(t, err)
	assert.Len(t, password, 16)

	u, err := store.GetUserByUsername(ctx, database, "Admin")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "admin", u.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)))

	password, err = ensureAdmin(ctx, database, "Admin")
	require.NoError(t, err)
	assert.Empty(t, password)
}

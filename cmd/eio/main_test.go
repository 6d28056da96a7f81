package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/eiostore"
	"github.com/sagarc03/eiostore/clientcli"
	"github.com/sagarc03/eiostore/config"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "plain", err: errors.New("x"), want: 1},
		{name: "exit error", err: &exitError{code: 5}, want: 5},
		{name: "client", err: fmt.Errorf("get: %w", &eiostore.Error{Kind: eiostore.KindClient, StatusCode: 404}), want: 2},
		{name: "server", err: &eiostore.Error{Kind: eiostore.KindServer}, want: 3},
		{name: "credentials", err: &eiostore.Error{Kind: eiostore.KindCredentials}, want: 4},
		{name: "internal", err: &eiostore.Error{Kind: eiostore.KindInternal}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" warning "))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestConnection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	file := &clientcli.ConfigFile{}
	file.PutProfile(clientcli.Profile{Name: "dev", Endpoint: "http://dev:8080", Secret: "dev-secret", Default: true})
	file.PutProfile(clientcli.Profile{Name: "prod", Endpoint: "https://prod", Token: "prod-token"})
	require.NoError(t, file.Save(path))

	setGlobals := func(t *testing.T, path, profile string) {
		t.Helper()
		oldPath, oldProfile := profilesPath, profileName
		profilesPath, profileName = path, profile
		t.Cleanup(func() { profilesPath, profileName = oldPath, oldProfile })
	}

	t.Run("default profile", func(t *testing.T) {
		setGlobals(t, path, "")
		conn, err := connection(&config.Config{})
		require.NoError(t, err)
		assert.Equal(t, &clientcli.Config{Endpoint: "http://dev:8080", Secret: "dev-secret"}, conn)
	})

	t.Run("named profile with uri override", func(t *testing.T) {
		setGlobals(t, path, "prod")
		conn, err := connection(&config.Config{URI: "https://override"})
		require.NoError(t, err)
		assert.Equal(t, &clientcli.Config{Endpoint: "https://override", Token: "prod-token"}, conn)
	})

	t.Run("unknown profile", func(t *testing.T) {
		setGlobals(t, path, "staging")
		_, err := connection(&config.Config{})
		assert.ErrorIs(t, err, clientcli.ErrProfileNotFound)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		setGlobals(t, filepath.Join(dir, "missing.yaml"), "")
		_, err := connection(&config.Config{})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("missing default file is ignored", func(t *testing.T) {
		setGlobals(t, "", "")
		t.Setenv("EIO_CONFIG", "")
		t.Setenv("EIO_PROFILE", "")
		t.Setenv("HOME", t.TempDir())
		conn, err := connection(&config.Config{URI: "http://env", Secret: "s"})
		require.NoError(t, err)
		assert.Equal(t, &clientcli.Config{Endpoint: "http://env", Secret: "s"}, conn)
	})
}

func TestValidateEndpoint(t *testing.T) {
	require.NoError(t, validateEndpoint("https://storage.example.com"))
	assert.Error(t, validateEndpoint(""))
	assert.Error(t, validateEndpoint("ftp://storage"))
}

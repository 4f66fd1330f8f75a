package prover

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/flock"
)

func TestKeyManager_Load(t *testing.T) {
	t.Run("generates new key if none exists", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "prover.key")
		km := NewKeyManager(path)
		assert.False(t, km.Exists())

		require.NoError(t, km.Load(context.Background()))
		assert.True(t, km.Exists())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		decoded, err := hex.DecodeString(string(data))
		require.NoError(t, err)
		assert.Len(t, decoded, ed25519.PrivateKeySize)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("loads existing key from disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prover.key")

		km := NewKeyManager(path)
		require.NoError(t, km.Load(context.Background()))
		first, err := km.PrivateKey()
		require.NoError(t, err)

		km2 := NewKeyManager(path)
		require.NoError(t, km2.Load(context.Background()))
		second, err := km2.PrivateKey()
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("tolerates trailing newline", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prover.key")
		_, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, []byte(hex.EncodeToString(priv)+"\n"), 0o600))

		km := NewKeyManager(path)
		require.NoError(t, km.Load(context.Background()))
		got, err := km.PrivateKey()
		require.NoError(t, err)
		assert.Equal(t, priv, got)
	})

	t.Run("returns error for invalid key size", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prover.key")
		require.NoError(t, os.WriteFile(path, []byte(hex.EncodeToString([]byte("too-short"))), 0o600))

		err := NewKeyManager(path).Load(context.Background())
		require.ErrorIs(t, err, zkerrors.ErrProverKey)
		assert.Contains(t, err.Error(), "expected 64 bytes")
	})

	t.Run("returns error for invalid hex encoding", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prover.key")
		require.NoError(t, os.WriteFile(path, []byte("not-valid-hex!!!"), 0o600))

		err := NewKeyManager(path).Load(context.Background())
		require.ErrorIs(t, err, zkerrors.ErrProverKey)
		assert.Contains(t, err.Error(), "decoding key hex")
	})
}

func TestKeyManager_ConcurrentFirstLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prover.key")

	const n = 4
	keys := make([]ed25519.PrivateKey, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km := NewKeyManager(path)
			if err := km.Load(context.Background()); err != nil {
				t.Errorf("load %d: %v", i, err)
				return
			}
			keys[i], _ = km.PrivateKey()
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, keys[0], keys[i], "every manager must see the same persisted key")
	}
	assert.FileExists(t, path+".lock")
}

func TestKeyManager_LoadWaitsForWriterOfEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prover.key")
	release, err := flock.Acquire(context.Background(), path+".lock", time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	type loaded struct {
		key ed25519.PrivateKey
		err error
	}
	done := make(chan loaded, 1)
	go func() {
		km := NewKeyManager(path)
		if err := km.Load(context.Background()); err != nil {
			done <- loaded{err: err}
			return
		}
		key, err := km.PrivateKey()
		done <- loaded{key: key, err: err}
	}()

	select {
	case got := <-done:
		t.Fatalf("load returned while the writer held the lock: %v", got.err)
	case <-time.After(50 * time.Millisecond):
	}

	_, want, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(hex.EncodeToString(want)), 0o600))
	require.NoError(t, release())

	select {
	case got := <-done:
		require.NoError(t, got.err)
		assert.Equal(t, want, got.key)
	case <-time.After(5 * time.Second):
		t.Fatal("load never returned after the lock was released")
	}
}

func TestKeyManager_ReplacesEmptyKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prover.key")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))

	km := NewKeyManager(path)
	require.NoError(t, km.Load(context.Background()))
	priv, err := km.PrivateKey()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(priv), string(data))
	assert.NoFileExists(t, path+".tmp")
}

func TestKeyManager_LoadCanceledWhileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prover.key")
	release, err := flock.Acquire(context.Background(), path+".lock", time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = release() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = NewKeyManager(path).Load(ctx)
	require.ErrorIs(t, err, zkerrors.ErrProverKey)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeyManager_PrivateKeyBeforeLoad(t *testing.T) {
	km := NewKeyManager(filepath.Join(t.TempDir(), "prover.key"))
	_, err := km.PrivateKey()
	require.ErrorIs(t, err, zkerrors.ErrProverKey)
}

func TestEphemeralKey(t *testing.T) {
	a, err := EphemeralKey()
	require.NoError(t, err)
	b, err := EphemeralKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

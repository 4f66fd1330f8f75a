package prover

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/flock"
)

// KeyManager loads the prover's Ed25519 sealing key from a hex file,
// generating and persisting one on first use.
type KeyManager struct {
	keyPath string
	mu      sync.RWMutex
	privKey ed25519.PrivateKey
}

// NewKeyManager creates a KeyManager backed by the file at keyPath.
func NewKeyManager(keyPath string) *KeyManager {
	return &KeyManager{keyPath: keyPath}
}

// Path returns the key file location.
func (km *KeyManager) Path() string {
	return km.keyPath
}

// Load reads the key from disk, generating one if the file does not exist.
func (km *KeyManager) Load(ctx context.Context) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if km.privKey != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(km.keyPath), 0o700); err != nil {
		return fmt.Errorf("%w: creating key directory: %w", zkerrors.ErrProverKey, err)
	}

	priv, err := km.read()
	if errors.Is(err, errKeyAbsent) {
		priv, err = km.generate(ctx)
	}
	if err != nil {
		return err
	}

	km.privKey = priv
	return nil
}

// generate creates the key under an exclusive file lock. Another process
// may have written the key while this one waited, so the file is read again
// once the lock is held. The key is written to a temporary file and renamed
// into place, so readers see either no key or a complete one.
func (km *KeyManager) generate(ctx context.Context) (ed25519.PrivateKey, error) {
	release, err := flock.Acquire(ctx, km.keyPath+".lock", flock.DefaultRetry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", zkerrors.ErrProverKey, err)
	}
	defer func() { _ = release() }()

	priv, err := km.read()
	if !errors.Is(err, errKeyAbsent) {
		return priv, err
	}

	_, priv, err = ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generating ed25519 key: %w", zkerrors.ErrProverKey, err)
	}

	tmp := km.keyPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(hex.EncodeToString(priv)), 0o600); err != nil {
		return nil, fmt.Errorf("%w: saving key: %w", zkerrors.ErrProverKey, err)
	}
	if err := os.Rename(tmp, km.keyPath); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("%w: saving key: %w", zkerrors.ErrProverKey, err)
	}
	return priv, nil
}

// errKeyAbsent marks a missing or empty key file. An empty file is left by
// a writer that stopped before writing any bytes.
var errKeyAbsent = errors.New("prover key absent")

func (km *KeyManager) read() (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(km.keyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errKeyAbsent
	} else if err != nil {
		return nil, fmt.Errorf("%w: reading key: %w", zkerrors.ErrProverKey, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, errKeyAbsent
	}

	decoded, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding key hex: %w", zkerrors.ErrProverKey, err)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", zkerrors.ErrProverKey, ed25519.PrivateKeySize, len(decoded))
	}
	return ed25519.PrivateKey(decoded), nil
}

// Exists reports whether the key file is present.
func (km *KeyManager) Exists() bool {
	_, err := os.Stat(km.keyPath)
	return err == nil
}

// PrivateKey returns the loaded key.
func (km *KeyManager) PrivateKey() (ed25519.PrivateKey, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()

	if km.privKey == nil {
		return nil, fmt.Errorf("%w: key not loaded", zkerrors.ErrProverKey)
	}
	return km.privKey, nil
}

// EphemeralKey generates a key that lives only for this process.
func EphemeralKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generating ed25519 key: %w", zkerrors.ErrProverKey, err)
	}
	return priv, nil
}

package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next ports.StateStore
	keys keyring
}

// NewEncryptionMiddleware creates a middleware that seals every checkpoint with AES-GCM.
// The inner store only sees an envelope: session id, phase and revision stay readable for
// monitoring, the plan, results and transcript travel in ExecutionState.Sealed.
// The session id is bound as additional data, so a sealed checkpoint copied under another
// session id does not open. It panics unless every key is 32 bytes.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	keys, err := newKeyring(config.ActiveKey, config.FallbackKeys)
	if err != nil {
		panic(err.Error())
	}
	return func(next ports.StateStore) ports.StateStore {
		return &encryptionMiddleware{next: next, keys: keys}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, sessionID string, state *domain.ExecutionState) error {
	plainText, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	sealed, err := m.keys.seal(plainText, []byte(sessionID))
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	return m.next.Save(ctx, sessionID, &domain.ExecutionState{
		SessionID: state.SessionID,
		Phase:     state.Phase,
		Revision:  state.Revision,
		Sealed:    base64.StdEncoding.EncodeToString(sealed),
	})
}

func (m *encryptionMiddleware) Load(ctx context.Context, sessionID string) (*domain.ExecutionState, error) {
	envelope, err := m.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Fail secure: a plaintext checkpoint under an encrypting store is not trusted.
	if envelope.Sealed == "" {
		return nil, fmt.Errorf("%w: state is missing encrypted data envelope", domain.ErrCheckpointCorrupt)
	}

	sealed, err := base64.StdEncoding.DecodeString(envelope.Sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode ciphertext base64: %v", domain.ErrCheckpointCorrupt, err)
	}

	plainText, err := m.keys.open(sealed, []byte(sessionID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCheckpointCorrupt, err)
	}

	var state domain.ExecutionState
	if err := json.Unmarshal(plainText, &state); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal decrypted state: %v", domain.ErrCheckpointCorrupt, err)
	}
	return &state, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// keyring holds the active AEAD first, then the fallbacks in rotation order.
type keyring []cipher.AEAD

func newKeyring(active []byte, fallbacks [][]byte) (keyring, error) {
	keys := make(keyring, 0, 1+len(fallbacks))
	for i, key := range append([][]byte{active}, fallbacks...) {
		if len(key) != 32 {
			if i == 0 {
				return nil, errors.New("active key must be 32 bytes (AES-256)")
			}
			return nil, fmt.Errorf("fallback key %d must be 32 bytes (AES-256)", i-1)
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		keys = append(keys, aead)
	}
	return keys, nil
}

// seal returns nonce||ciphertext under the active key.
func (k keyring) seal(plainText, additional []byte) ([]byte, error) {
	active := k[0]
	nonce := make([]byte, active.NonceSize(), active.NonceSize()+len(plainText)+active.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return active.Seal(nonce, nonce, plainText, additional), nil
}

func (k keyring) open(sealed, additional []byte) ([]byte, error) {
	for _, aead := range k {
		if len(sealed) < aead.NonceSize() {
			return nil, errors.New("ciphertext too short")
		}
		nonce, body := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
		if plain, err := aead.Open(nil, nonce, body, additional); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

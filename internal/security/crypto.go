// Package security holds the operator's Ed25519 identity.
// The platform signs every audit record it commits so the trail can be
// checked offline against the operator's public key.
package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/taskbay/taskbay/internal/domain"
)

const (
	keyDirName  = "keys"
	pubKeyFile  = "operator.pub"
	privKeyFile = "operator.key"
)

// Keypair holds the operator's signing identity.
type Keypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeypair creates a new Ed25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 keypair: %w", err)
	}
	return &Keypair{Public: pub, Private: priv}, nil
}

// LoadOrCreateKeypair loads the operator keypair from dir/keys, generating
// and saving one on first run.
func LoadOrCreateKeypair(dir string) (*Keypair, error) {
	keyDir := filepath.Join(dir, keyDirName)
	pubPath := filepath.Join(keyDir, pubKeyFile)
	privPath := filepath.Join(keyDir, privKeyFile)

	pubBytes, pubErr := os.ReadFile(pubPath)
	privBytes, privErr := os.ReadFile(privPath)
	if pubErr == nil && privErr == nil {
		pub, err := decodeKey(pubBytes, ed25519.PublicKeySize)
		if err != nil {
			return nil, fmt.Errorf("decode public key: %w", err)
		}
		priv, err := decodeKey(privBytes, ed25519.PrivateKeySize)
		if err != nil {
			return nil, fmt.Errorf("decode private key: %w", err)
		}
		return &Keypair{Public: pub, Private: priv}, nil
	}

	kp, err := GenerateKeypair()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(pubPath, []byte(kp.PublicKeyHex()), 0644); err != nil {
		return nil, fmt.Errorf("write public key: %w", err)
	}
	if err := os.WriteFile(privPath, []byte(hex.EncodeToString(kp.Private)), 0600); err != nil {
		return nil, fmt.Errorf("write private key: %w", err)
	}
	return kp, nil
}

// LoadPublicKey reads the operator public key saved under dir/keys.
func LoadPublicKey(dir string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(filepath.Join(dir, keyDirName, pubKeyFile))
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pub, err := decodeKey(data, ed25519.PublicKeySize)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	return pub, nil
}

func decodeKey(data []byte, size int) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, err
	}
	if len(key) != size {
		return nil, fmt.Errorf("key length %d, want %d", len(key), size)
	}
	return key, nil
}

// PublicKeyHex returns the public key as a hex string.
func (kp *Keypair) PublicKeyHex() string {
	return hex.EncodeToString(kp.Public)
}

// Sign signs a message with the operator's private key.
func (kp *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.Private, message)
}

// Verify checks a signature against a public key.
func Verify(message, signature []byte, publicKey ed25519.PublicKey) bool {
	return ed25519.Verify(publicKey, message, signature)
}

// ─── Audit Receipts ─────────────────────────────────────────────────────────

// SignAudit returns the hex signature of an audit record's payload.
func (kp *Keypair) SignAudit(rec domain.AuditRecord) string {
	return hex.EncodeToString(kp.Sign(rec.Payload()))
}

// VerifyAudit reports whether rec carries a valid operator signature.
// Unsigned records fail.
func VerifyAudit(rec domain.AuditRecord, publicKey ed25519.PublicKey) bool {
	sig, err := hex.DecodeString(rec.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return Verify(rec.Payload(), sig, publicKey)
}

// Package securestore seals wallet snapshots with a passphrase-derived key
// (argon2id + XChaCha20-Poly1305).
package securestore

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 2
	saltSize        = 16
	kdfName         = "argon2id"
)

var filePrefix = []byte("OTMEWLT2\n")

var (
	ErrAuthFailed = errors.New("securestore: authentication failed")
	ErrInvalid    = errors.New("securestore: envelope is invalid")
	ErrPlaintext  = errors.New("securestore: data is not sealed")
	ErrNoSecret   = errors.New("securestore: empty passphrase")
)

// KDFParams are recorded in each envelope so that opening never depends on
// the defaults of the build that sealed it.
type KDFParams struct {
	Time     uint32 `json:"time"`
	MemoryKB uint32 `json:"memory_kb"`
	Threads  uint8  `json:"threads"`
}

func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 2, MemoryKB: 64 * 1024, Threads: 1}
}

func (p KDFParams) valid() bool {
	return p.Time > 0 && p.MemoryKB >= 8 && p.Threads > 0
}

type Envelope struct {
	Version    uint32    `json:"version"`
	KDF        string    `json:"kdf"`
	Params     KDFParams `json:"params"`
	Label      string    `json:"label"`
	Salt       []byte    `json:"salt"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
}

// Sealer encrypts with fixed KDF parameters. The label is bound as
// associated data, so a sealed wallet cannot be opened as something else.
type Sealer struct {
	params KDFParams
}

func NewSealer(params KDFParams) *Sealer {
	if !params.valid() {
		params = DefaultKDFParams()
	}
	return &Sealer{params: params}
}

func (s *Sealer) Seal(passphrase, label string, plaintext []byte) ([]byte, error) {
	env, err := s.SealEnvelope(passphrase, label, plaintext)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), filePrefix...), raw...), nil
}

func (s *Sealer) SealEnvelope(passphrase, label string, plaintext []byte) (*Envelope, error) {
	if passphrase == "" {
		return nil, ErrNoSecret
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, salt, s.params)
	defer clear(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return &Envelope{
		Version:    envelopeVersion,
		KDF:        kdfName,
		Params:     s.params,
		Label:      label,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, []byte(label)),
	}, nil
}

// Open reverses Seal. Data without the sealed prefix yields ErrPlaintext.
func Open(passphrase, label string, data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, filePrefix) {
		return nil, ErrPlaintext
	}
	var env Envelope
	if err := json.Unmarshal(data[len(filePrefix):], &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return OpenEnvelope(passphrase, label, &env)
}

func OpenEnvelope(passphrase, label string, env *Envelope) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrNoSecret
	}
	if env == nil || env.Version != envelopeVersion || env.KDF != kdfName || !env.Params.valid() {
		return nil, ErrInvalid
	}
	if env.Label != label || len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrInvalid
	}
	key := deriveKey(passphrase, env.Salt, env.Params)
	defer clear(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, []byte(label))
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func deriveKey(passphrase string, salt []byte, p KDFParams) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.MemoryKB, p.Threads, chacha20poly1305.KeySize)
}

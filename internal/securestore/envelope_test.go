package securestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// Small parameters keep argon2 fast in tests.
var testParams = KDFParams{Time: 1, MemoryKB: 64, Threads: 1}

func TestSealOpenRoundtrip(t *testing.T) {
	s := NewSealer(testParams)
	data, err := s.Seal("pass", "wallet", []byte("secret"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	plain, err := Open("pass", "wallet", data)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if string(plain) != "secret" {
		t.Fatalf("unexpected plaintext: %q", string(plain))
	}
}

func TestOpenRejectsWrongPassphraseAndLabel(t *testing.T) {
	s := NewSealer(testParams)
	data, err := s.Seal("pass", "wallet", []byte("secret"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if _, err := Open("other", "wallet", data); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if _, err := Open("pass", "config", data); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for label mismatch, got %v", err)
	}
	if _, err := Open("", "wallet", data); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}

func TestOpenTamperedFails(t *testing.T) {
	s := NewSealer(testParams)
	env, err := s.SealEnvelope("pass", "wallet", []byte("secret"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	env.Ciphertext[0] ^= 0xFF
	if _, err := OpenEnvelope("pass", "wallet", env); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestOpenPlaintext(t *testing.T) {
	if _, err := Open("pass", "wallet", []byte(`{"servers":{}}`)); !errors.Is(err, ErrPlaintext) {
		t.Fatalf("expected ErrPlaintext, got %v", err)
	}
}

func TestNewSealerFallsBackToDefaults(t *testing.T) {
	if got := NewSealer(KDFParams{}).params; got != DefaultKDFParams() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestWriteReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wallet.sealed")
	s := NewSealer(testParams)

	var missing map[string]string
	found, err := ReadJSON(path, "pass", "wallet", &missing)
	if err != nil || found {
		t.Fatalf("missing file: found=%v err=%v", found, err)
	}

	in := map[string]string{"notary-1": "/ip4/127.0.0.1/tcp/7085"}
	if err := s.WriteJSON(path, "pass", "wallet", in); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected mode %v", info.Mode().Perm())
	}

	var out map[string]string
	found, err = ReadJSON(path, "pass", "wallet", &out)
	if err != nil || !found {
		t.Fatalf("read: found=%v err=%v", found, err)
	}
	if out["notary-1"] != in["notary-1"] {
		t.Fatalf("roundtrip mismatch: %v", out)
	}
}

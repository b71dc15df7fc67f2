package securestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ReadJSON opens the sealed file at path into v. A missing file reports
// found=false and no error.
func ReadJSON(path, passphrase, label string, v any) (found bool, err error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	plain, err := Open(passphrase, label, raw)
	if err != nil {
		return true, err
	}
	defer clear(plain)
	if err := json.Unmarshal(plain, v); err != nil {
		return true, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return true, nil
}

// WriteJSON seals v and replaces path through a temp file and rename.
func (s *Sealer) WriteJSON(path, passphrase, label string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	defer clear(payload)
	sealed, err := s.Seal(passphrase, label, payload)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".wallet-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(sealed); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

package vault

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/jordandevai/LiteFetch-API-Client/internal/crypto"
)

// record is the vault.key wire format: {"v":1,"data":base64(blob)} where
// blob = salt(16) || iv(12) || AES-256-GCM(master key).
type record struct {
	V    int    `json:"v"`
	Data string `json:"data"`
}

func writeRecord(path string, master []byte, passphrase string) error {
	blob, err := crypto.WrapMasterKey(master, passphrase)
	if err != nil {
		return err
	}
	b, err := json.Marshal(record{V: 1, Data: base64.StdEncoding.EncodeToString(blob)})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	// Atomic replace so a crash mid-write never corrupts the record.
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readRecord(path, passphrase string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	blob, err := base64.StdEncoding.DecodeString(rec.Data)
	if err != nil {
		return nil, err
	}
	master, err := crypto.UnwrapMasterKey(blob, passphrase)
	if errors.Is(err, crypto.ErrAuthenticationFailed) {
		return nil, ErrIncorrectPassphrase
	}
	return master, err
}

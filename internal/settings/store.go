package settings

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sealedPrefix marks a field value that has been encrypted with the local
// key file. Plaintext values (hand-edited documents) load unchanged.
const sealedPrefix = "sealed:"

// Store reads and writes the settings document at a fixed location under
// the data directory, sealing secret fields with a key file that lives next
// to it.
type Store struct {
	path    string
	keyPath string
}

// NewStore returns a store for dataDir/settings.json with its key file at
// dataDir/settings.key.
func NewStore(dataDir string) *Store {
	return &Store{
		path:    filepath.Join(dataDir, "settings.json"),
		keyPath: filepath.Join(dataDir, "settings.key"),
	}
}

// Path returns the location of the settings document.
func (st *Store) Path() string { return st.path }

// Load reads the settings document, unsealing secret fields. On first run
// (no file yet) it writes and returns the defaults rooted at the store's
// directory.
func (st *Store) Load() (*Settings, error) {
	raw, err := os.ReadFile(st.path)
	if os.IsNotExist(err) {
		s := Default(filepath.Dir(st.path))
		if err := st.Save(s); err != nil {
			return nil, fmt.Errorf("writing default settings: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", st.path, err)
	}
	if err := st.unsealSecrets(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes the settings document atomically (temp file + rename), with
// secret fields sealed.
func (st *Store) Save(s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return err
	}

	// Seal a copy so the caller's document keeps its plaintext secrets.
	out := *s
	if err := st.sealSecrets(&out); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return err
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, st.path)
}

func (st *Store) sealSecrets(s *Settings) error {
	for _, field := range []*string{&s.WebCeph.Password, &s.OCR.APIKey, &s.Airtable.APIKey} {
		if *field == "" {
			continue
		}
		sealed, err := st.seal(*field)
		if err != nil {
			return err
		}
		*field = sealed
	}
	return nil
}

func (st *Store) unsealSecrets(s *Settings) error {
	for _, field := range []*string{&s.WebCeph.Password, &s.OCR.APIKey, &s.Airtable.APIKey} {
		if !strings.HasPrefix(*field, sealedPrefix) {
			continue
		}
		plain, err := st.unseal(*field)
		if err != nil {
			return err
		}
		*field = plain
	}
	return nil
}

func (st *Store) seal(plain string) (string, error) {
	gcm, err := st.cipher()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (st *Store) unseal(value string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("malformed sealed value: %w", err)
	}
	gcm, err := st.cipher()
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("malformed sealed value: too short")
	}
	plain, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("unsealing secret: %w", err)
	}
	return string(plain), nil
}

// cipher loads the AES-GCM cipher for the key file, generating a fresh
// 256-bit key on first use.
func (st *Store) cipher() (cipher.AEAD, error) {
	key, err := os.ReadFile(st.keyPath)
	if os.IsNotExist(err) {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(st.keyPath), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(st.keyPath, key, 0o600); err != nil {
			return nil, fmt.Errorf("writing key file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Package storage implements password-protected single-file archives. An
// archive bundles a fragment set's parameters and all of its fragments
// into one AES-GCM encrypted file, for moving a set offsite without
// exposing it.
package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"

	"github.com/Davincible/erasure/pkg/secure"
)

const (
	SaltSize   = 32
	NonceSize  = 12
	KeySize    = 32
	Iterations = 100000
)

type SecureStorage struct {
	filepath string
}

type EncryptedData struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

func NewSecureStorage(filepath string) *SecureStorage {
	return &SecureStorage{
		filepath: filepath,
	}
}

func (s *SecureStorage) Save(data []byte, password []byte) error {
	if len(password) == 0 {
		return fmt.Errorf("password cannot be empty")
	}

	salt, err := secure.SecureRandom(SaltSize)
	if err != nil {
		return err
	}

	key := pbkdf2.Key(password, salt, Iterations, KeySize, sha256.New)
	defer secure.Zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, data, nil)

	encrypted := EncryptedData{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}

	jsonData, err := json.Marshal(encrypted)
	if err != nil {
		return fmt.Errorf("failed to marshal encrypted data: %w", err)
	}

	dir := filepath.Dir(s.filepath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(s.filepath, jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func (s *SecureStorage) Load(password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, fmt.Errorf("password cannot be empty")
	}

	jsonData, err := os.ReadFile(s.filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var encrypted EncryptedData
	if err := json.Unmarshal(jsonData, &encrypted); err != nil {
		return nil, fmt.Errorf("failed to unmarshal encrypted data: %w", err)
	}

	key := pbkdf2.Key(password, encrypted.Salt, Iterations, KeySize, sha256.New)
	defer secure.Zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, encrypted.Nonce, encrypted.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

func (s *SecureStorage) Exists() bool {
	_, err := os.Stat(s.filepath)
	return err == nil
}

func (s *SecureStorage) Delete() error {
	if !s.Exists() {
		return nil
	}

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return fmt.Errorf("failed to read file for secure deletion: %w", err)
	}

	if err := secure.RandomOverwrite(data); err != nil {
		return err
	}

	if err := os.WriteFile(s.filepath, data, 0600); err != nil {
		return fmt.Errorf("failed to overwrite file: %w", err)
	}

	return os.Remove(s.filepath)
}

// FragmentArchive is a password-protected bundle of one fragment set
type FragmentArchive struct {
	storage *SecureStorage
}

// ArchivedSet is the payload of a fragment archive
type ArchivedSet struct {
	Name            string            `json:"name"`
	DataFragments   int               `json:"data_fragments"`
	ParityFragments int               `json:"parity_fragments"`
	WordSize        uint              `json:"word_size"`
	Method          string            `json:"method"`
	Technique       string            `json:"technique"`
	OriginalSize    int64             `json:"original_size"`
	Fragments       [][]byte          `json:"fragments"`
	Metadata        map[string]string `json:"metadata"`
}

func NewFragmentArchive(filepath string) *FragmentArchive {
	return &FragmentArchive{
		storage: NewSecureStorage(filepath),
	}
}

func (a *FragmentArchive) Save(set *ArchivedSet, password []byte) error {
	if len(set.Fragments) != set.DataFragments+set.ParityFragments {
		return fmt.Errorf("archive needs %d fragments, got %d",
			set.DataFragments+set.ParityFragments, len(set.Fragments))
	}

	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal fragment set: %w", err)
	}

	return a.storage.Save(data, password)
}

func (a *FragmentArchive) Load(password []byte) (*ArchivedSet, error) {
	data, err := a.storage.Load(password)
	if err != nil {
		return nil, err
	}

	var set ArchivedSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fragment set: %w", err)
	}

	return &set, nil
}

func (a *FragmentArchive) Exists() bool {
	return a.storage.Exists()
}

func (a *FragmentArchive) Delete() error {
	return a.storage.Delete()
}

// Package fragmentstore provides storage and management of erasure-coded
// fragment sets. Each set is a manifest plus one file per fragment; the
// manifest records the coding parameters and per-fragment digests, so a
// later load can turn missing or corrupted files into erasure indices for
// the decoder.
package fragmentstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/Davincible/erasure/pkg/secure"
)

// FragmentSet is the manifest for one erasure-coded object
type FragmentSet struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Created         time.Time         `json:"created"`
	Modified        time.Time         `json:"modified"`
	DataFragments   int               `json:"data_fragments"`
	ParityFragments int               `json:"parity_fragments"`
	WordSize        uint              `json:"word_size"`
	Method          string            `json:"method"`
	Technique       string            `json:"technique"`
	OriginalSize    int64             `json:"original_size"`
	FragmentLength  int               `json:"fragment_length"`
	Tags            []string          `json:"tags"`
	Metadata        map[string]string `json:"metadata"`
	Fragments       []FragmentInfo    `json:"fragments"`
	ChecksumSHA256  []byte            `json:"checksum_sha256"`
}

// FragmentInfo contains metadata for a single fragment file
type FragmentInfo struct {
	Index        int            `json:"index"`
	Filename     string         `json:"filename"`
	Size         int64          `json:"size"`
	Status       FragmentStatus `json:"status"`
	Checksum     []byte         `json:"checksum"`
	Created      time.Time      `json:"created"`
	LastVerified *time.Time     `json:"last_verified,omitempty"`
	Notes        string         `json:"notes"`
}

// FragmentStatus represents the status of a fragment
type FragmentStatus string

const (
	FragmentStatusAvailable  FragmentStatus = "available"
	FragmentStatusMissing    FragmentStatus = "missing"
	FragmentStatusCorrupted  FragmentStatus = "corrupted"
	FragmentStatusUnverified FragmentStatus = "unverified"
)

// Store manages collections of fragment sets on disk
type Store struct {
	storePath  string
	sets       map[string]*FragmentSet
	encryption *EncryptionConfig
}

// EncryptionConfig contains encryption settings for the manifest files
type EncryptionConfig struct {
	Enabled             bool
	Passphrase          string
	Salt                []byte
	KeyDerivationParams KeyDerivationParams
}

// KeyDerivationParams contains parameters for key derivation
type KeyDerivationParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// NewStore creates a new fragment store rooted at storePath
func NewStore(storePath string) (*Store, error) {
	store := &Store{
		storePath: storePath,
		sets:      make(map[string]*FragmentSet),
	}

	if err := os.MkdirAll(storePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	if err := store.loadManifests(); err != nil {
		return nil, fmt.Errorf("failed to load fragment sets: %w", err)
	}

	return store, nil
}

// EnableEncryption enables manifest encryption for the store
func (s *Store) EnableEncryption(passphrase string) error {
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	s.encryption = &EncryptionConfig{
		Enabled:    true,
		Passphrase: passphrase,
		Salt:       salt,
		KeyDerivationParams: KeyDerivationParams{
			Time:    3,
			Memory:  64 * 1024, // 64MB
			Threads: 4,
		},
	}

	return nil
}

// SaveFragmentSet persists a fragment set: one file per fragment plus the
// manifest. The set's per-fragment checksums are computed here.
func (s *Store) SaveFragmentSet(set *FragmentSet, fragments [][]byte) error {
	total := set.DataFragments + set.ParityFragments
	if len(fragments) != total {
		return fmt.Errorf("fragment set needs %d fragments, got %d", total, len(fragments))
	}

	if set.ID == "" {
		set.ID = uuid.NewString()
	}
	if set.Created.IsZero() {
		set.Created = time.Now()
	}
	set.Modified = time.Now()

	set.Fragments = make([]FragmentInfo, total)
	for i, frag := range fragments {
		hash := sha256.Sum256(frag)
		info := FragmentInfo{
			Index:    i,
			Filename: fmt.Sprintf("%s_%03d.frag", set.ID, i),
			Size:     int64(len(frag)),
			Status:   FragmentStatusAvailable,
			Checksum: hash[:],
			Created:  time.Now(),
		}
		if err := os.WriteFile(filepath.Join(s.storePath, info.Filename), frag, 0600); err != nil {
			return fmt.Errorf("failed to write fragment %d: %w", i, err)
		}
		set.Fragments[i] = info
	}
	if total > 0 {
		set.FragmentLength = len(fragments[0])
	}

	if err := s.calculateChecksum(set); err != nil {
		return fmt.Errorf("failed to calculate checksum: %w", err)
	}

	s.sets[set.ID] = set
	return s.saveManifest(set)
}

// LoadFragments reads the fragment files of a set. Missing or corrupted
// fragments come back as nil slots together with their indices, ready to
// hand to the decoder as the erasure list.
func (s *Store) LoadFragments(id string) ([][]byte, []int, error) {
	set, err := s.GetFragmentSet(id)
	if err != nil {
		return nil, nil, err
	}

	fragments := make([][]byte, len(set.Fragments))
	var erasures []int
	for i := range set.Fragments {
		info := &set.Fragments[i]
		data, err := os.ReadFile(filepath.Join(s.storePath, info.Filename))
		if err != nil {
			info.Status = FragmentStatusMissing
			erasures = append(erasures, info.Index)
			continue
		}
		hash := sha256.Sum256(data)
		if !secure.ConstantTimeCompare(hash[:], info.Checksum) {
			info.Status = FragmentStatusCorrupted
			erasures = append(erasures, info.Index)
			continue
		}
		info.Status = FragmentStatusAvailable
		fragments[info.Index] = data
	}
	sort.Ints(erasures)
	return fragments, erasures, nil
}

// GetFragmentSet retrieves a fragment set by ID
func (s *Store) GetFragmentSet(id string) (*FragmentSet, error) {
	set, exists := s.sets[id]
	if !exists {
		return nil, fmt.Errorf("fragment set '%s' not found", id)
	}

	if err := s.verifyChecksum(set); err != nil {
		return nil, fmt.Errorf("manifest checksum verification failed: %w", err)
	}

	return set, nil
}

// ListFragmentSets returns all fragment sets, optionally filtered by tags
func (s *Store) ListFragmentSets(tags []string) []*FragmentSet {
	var result []*FragmentSet

	for _, set := range s.sets {
		if len(tags) == 0 || s.hasAllTags(set, tags) {
			result = append(result, set)
		}
	}

	// Sort by creation time (newest first)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Created.After(result[j].Created)
	})

	return result
}

// VerificationReport contains the results of fragment verification
type VerificationReport struct {
	FragmentSetID string                       `json:"fragment_set_id"`
	Timestamp     time.Time                    `json:"timestamp"`
	TotalCount    int                          `json:"total_count"`
	ValidCount    int                          `json:"valid_count"`
	IsRecoverable bool                         `json:"is_recoverable"`
	Results       []FragmentVerificationResult `json:"results"`
}

// FragmentVerificationResult contains verification results for one fragment
type FragmentVerificationResult struct {
	Index   int            `json:"index"`
	Status  FragmentStatus `json:"status"`
	IsValid bool           `json:"is_valid"`
	Error   string         `json:"error,omitempty"`
}

// VerifyFragments checks every fragment file of a set against its digest
func (s *Store) VerifyFragments(id string) (*VerificationReport, error) {
	set, err := s.GetFragmentSet(id)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		FragmentSetID: id,
		Timestamp:     time.Now(),
		TotalCount:    len(set.Fragments),
		Results:       make([]FragmentVerificationResult, 0, len(set.Fragments)),
	}

	for i := range set.Fragments {
		info := &set.Fragments[i]
		result := FragmentVerificationResult{Index: info.Index}

		data, err := os.ReadFile(filepath.Join(s.storePath, info.Filename))
		switch {
		case err != nil:
			result.Status = FragmentStatusMissing
			result.Error = err.Error()
		default:
			hash := sha256.Sum256(data)
			if secure.ConstantTimeCompare(hash[:], info.Checksum) {
				result.Status = FragmentStatusAvailable
				result.IsValid = true
			} else {
				result.Status = FragmentStatusCorrupted
				result.Error = "fragment digest mismatch"
			}
		}

		now := time.Now()
		info.LastVerified = &now
		info.Status = result.Status
		report.Results = append(report.Results, result)

		if result.IsValid {
			report.ValidCount++
		}
	}

	// Recoverable while no more than m fragments are lost.
	report.IsRecoverable = report.TotalCount-report.ValidCount <= set.ParityFragments

	set.Modified = time.Now()
	if err := s.calculateChecksum(set); err != nil {
		return nil, err
	}
	if err := s.saveManifest(set); err != nil {
		return nil, err
	}

	return report, nil
}

// DeleteFragmentSet removes a fragment set and its fragment files
func (s *Store) DeleteFragmentSet(id string) error {
	set, exists := s.sets[id]
	if !exists {
		return fmt.Errorf("fragment set '%s' not found", id)
	}

	delete(s.sets, id)

	for _, info := range set.Fragments {
		if err := os.Remove(filepath.Join(s.storePath, info.Filename)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete fragment %d: %w", info.Index, err)
		}
	}

	filename := s.manifestFilename(set)
	if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete manifest: %w", err)
	}

	return nil
}

// SearchFragmentSets searches fragment sets by name, description, or tags
func (s *Store) SearchFragmentSets(query string) []*FragmentSet {
	query = strings.ToLower(query)
	var results []*FragmentSet

	for _, set := range s.sets {
		if s.matchesQuery(set, query) {
			results = append(results, set)
		}
	}

	// Exact name matches first, then creation time
	sort.Slice(results, func(i, j int) bool {
		iExact := strings.ToLower(results[i].Name) == query
		jExact := strings.ToLower(results[j].Name) == query

		if iExact && !jExact {
			return true
		}
		if !iExact && jExact {
			return false
		}

		return results[i].Created.After(results[j].Created)
	})

	return results
}

// Helper methods

func (s *Store) loadManifests() error {
	entries, err := os.ReadDir(s.storePath)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			if err := s.loadManifestFromFile(filepath.Join(s.storePath, entry.Name())); err != nil {
				// Skip unreadable manifests but keep loading the rest
				continue
			}
		}
	}

	return nil
}

func (s *Store) loadManifestFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	if s.encryption != nil && s.encryption.Enabled {
		data, err = s.decrypt(data)
		if err != nil {
			return err
		}
	}

	var set FragmentSet
	if err := json.Unmarshal(data, &set); err != nil {
		return err
	}

	if err := s.verifyChecksum(&set); err != nil {
		return err
	}

	s.sets[set.ID] = &set
	return nil
}

func (s *Store) saveManifest(set *FragmentSet) error {
	filename := s.manifestFilename(set)

	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}

	if s.encryption != nil && s.encryption.Enabled {
		data, err = s.encrypt(data)
		if err != nil {
			return err
		}
	}

	return os.WriteFile(filename, data, 0600)
}

func (s *Store) manifestFilename(set *FragmentSet) string {
	safeName := strings.ReplaceAll(set.Name, " ", "_")
	safeName = strings.ReplaceAll(safeName, "/", "_")
	if len(safeName) > 50 {
		safeName = safeName[:50]
	}
	return filepath.Join(s.storePath, fmt.Sprintf("%s_%s.json", safeName, set.ID[:8]))
}

func (s *Store) calculateChecksum(set *FragmentSet) error {
	// Copy without the checksum field for calculation
	temp := *set
	temp.ChecksumSHA256 = nil

	data, err := json.Marshal(temp)
	if err != nil {
		return err
	}

	hash := sha256.Sum256(data)
	set.ChecksumSHA256 = hash[:]

	return nil
}

func (s *Store) verifyChecksum(set *FragmentSet) error {
	if len(set.ChecksumSHA256) == 0 {
		// Legacy manifest without checksum
		return nil
	}

	originalChecksum := make([]byte, len(set.ChecksumSHA256))
	copy(originalChecksum, set.ChecksumSHA256)

	if err := s.calculateChecksum(set); err != nil {
		return err
	}

	if !secure.ConstantTimeCompare(originalChecksum, set.ChecksumSHA256) {
		return fmt.Errorf("checksum mismatch - manifest may be corrupted")
	}

	return nil
}

func (s *Store) hasAllTags(set *FragmentSet, tags []string) bool {
	setTags := make(map[string]bool)
	for _, tag := range set.Tags {
		setTags[strings.ToLower(tag)] = true
	}

	for _, tag := range tags {
		if !setTags[strings.ToLower(tag)] {
			return false
		}
	}

	return true
}

func (s *Store) matchesQuery(set *FragmentSet, query string) bool {
	if strings.Contains(strings.ToLower(set.Name), query) {
		return true
	}

	if strings.Contains(strings.ToLower(set.Description), query) {
		return true
	}

	for _, tag := range set.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}

	for key, value := range set.Metadata {
		if strings.Contains(strings.ToLower(key), query) ||
			strings.Contains(strings.ToLower(value), query) {
			return true
		}
	}

	return false
}

func (s *Store) encrypt(data []byte) ([]byte, error) {
	if s.encryption == nil || !s.encryption.Enabled {
		return data, nil
	}

	key := argon2.IDKey(
		[]byte(s.encryption.Passphrase),
		s.encryption.Salt,
		s.encryption.KeyDerivationParams.Time,
		s.encryption.KeyDerivationParams.Memory,
		s.encryption.KeyDerivationParams.Threads,
		32,
	)

	cipher, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, cipher.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	encrypted := cipher.Seal(nil, nonce, data, nil)

	// Prepend salt and nonce
	result := make([]byte, 0, len(s.encryption.Salt)+len(nonce)+len(encrypted))
	result = append(result, s.encryption.Salt...)
	result = append(result, nonce...)
	result = append(result, encrypted...)

	return result, nil
}

func (s *Store) decrypt(data []byte) ([]byte, error) {
	if s.encryption == nil || !s.encryption.Enabled {
		return data, nil
	}

	if len(data) < 32+12 { // salt + nonce minimum
		return nil, fmt.Errorf("encrypted manifest too short")
	}

	salt := data[:32]
	nonce := data[32 : 32+12]
	encrypted := data[32+12:]

	key := argon2.IDKey(
		[]byte(s.encryption.Passphrase),
		salt,
		s.encryption.KeyDerivationParams.Time,
		s.encryption.KeyDerivationParams.Memory,
		s.encryption.KeyDerivationParams.Threads,
		32,
	)

	cipher, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	decrypted, err := cipher.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return decrypted, nil
}

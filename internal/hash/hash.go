// Package hash computes content digests of produced artifacts.
//
// Digests are BLAKE3, hex encoded. They let callers tell whether a rebuild
// produced byte-identical output. A fake implementation is provided for
// tests that do not touch the filesystem.
package hash

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/zeebo/blake3"
)

// Hasher provides an abstraction for file hashing operations.
type Hasher interface {
	// HashFile computes the digest of the file at the given path.
	HashFile(path string) (string, error)
}

// Blake3Hasher implements Hasher using BLAKE3.
type Blake3Hasher struct{}

// NewBlake3Hasher creates a new Blake3Hasher.
func NewBlake3Hasher() *Blake3Hasher {
	return &Blake3Hasher{}
}

// HashFile computes the BLAKE3 digest of the file at the given path.
func (h *Blake3Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Bytes returns the hex BLAKE3 digest of data.
func Bytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FakeHasher implements Hasher with deterministic hashes for testing.
type FakeHasher struct {
	mu     sync.Mutex
	hashes map[string]string
	calls  []string
}

// NewFakeHasher creates a new FakeHasher.
func NewFakeHasher() *FakeHasher {
	return &FakeHasher{
		hashes: make(map[string]string),
	}
}

// SetHash sets the hash for a specific path.
func (h *FakeHasher) SetHash(path, hash string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hashes[path] = hash
}

// HashFile returns the predetermined hash for the given path.
func (h *FakeHasher) HashFile(path string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, path)
	if hash, ok := h.hashes[path]; ok {
		return hash, nil
	}
	return "fakehash", nil
}

// Calls returns the paths hashed so far, in order.
func (h *FakeHasher) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

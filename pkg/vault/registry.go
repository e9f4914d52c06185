package vault

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// HashRegistry deduplicates ingested files. Each ingested file is
// fingerprinted by its path plus leading content; fingerprints are
// kept as hex lines in the vault's .task_hashes file.
type HashRegistry struct {
	path string
	mu   sync.Mutex
	seen map[string]bool
}

// NewHashRegistry loads the registry from the vault root, starting
// empty when the file does not exist yet.
func NewHashRegistry(vaultRoot string) (*HashRegistry, error) {
	r := &HashRegistry{
		path: filepath.Join(vaultRoot, hashFile),
		seen: make(map[string]bool),
	}

	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to open hash registry: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 32 {
			r.seen[line] = true
		}
	}
	return r, nil
}

// Fingerprint hashes a source file's identity: its path and the first
// KiB of content. MD5 is a dedup fingerprint here, not a security
// boundary.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	head = head[:n]

	h := md5.New()
	h.Write([]byte(path))
	h.Write(head)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Seen reports whether a fingerprint is already registered.
func (r *HashRegistry) Seen(fingerprint string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[fingerprint]
}

// Add registers a fingerprint, persisting it immediately so a restart
// does not re-ingest files.
func (r *HashRegistry) Add(fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen[fingerprint] {
		return nil
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open hash registry: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(fingerprint + "\n"); err != nil {
		return fmt.Errorf("failed to record fingerprint: %w", err)
	}

	r.seen[fingerprint] = true
	return nil
}

// Len returns the number of registered fingerprints.
func (r *HashRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

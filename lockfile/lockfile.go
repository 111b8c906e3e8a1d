// Package lockfile implements packlate.lock, a lock file that tracks
// MD5 checksums of source strings per file. This enables incremental
// translation: only new or changed strings are sent to the AI provider,
// saving tokens and time.
//
// The lock file is stored alongside packlate.yaml as packlate.lock.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LockFileName is the default lock file name.
const LockFileName = "packlate.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile represents the packlate.lock file structure.
type LockFile struct {
	Version   int                          `yaml:"version"`
	Checksums map[string]map[string]string `yaml:"checksums"` // file -> site -> md5

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path

	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}

	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// FileKey builds the per-file key under which site checksums are stored.
// Jar entries keep their "mods/<jar>!<entry>" form.
func FileKey(relPath string) string {
	return filepath.ToSlash(relPath)
}

// SiteContent builds the source content string for hashing. The site is
// included so a string moving to a different key triggers re-translation.
func SiteContent(site, source string) string {
	return site + "\x00" + source
}

// IsChanged checks if a source string has changed since last translation.
// Returns true if the string is new or its content has changed.
func (lf *LockFile) IsChanged(file, site, sourceContent string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	sites, ok := lf.Checksums[file]
	if !ok {
		return true
	}
	oldHash, ok := sites[site]
	if !ok {
		return true
	}
	return oldHash != Hash(sourceContent)
}

// Update records the checksum of a source string after successful translation.
func (lf *LockFile) Update(file, site, sourceContent string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Checksums[file] == nil {
		lf.Checksums[file] = make(map[string]string)
	}
	lf.Checksums[file][site] = Hash(sourceContent)
}

// UpdateBatch records checksums for multiple sites at once.
func (lf *LockFile) UpdateBatch(file string, entries map[string]string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Checksums[file] == nil {
		lf.Checksums[file] = make(map[string]string)
	}
	for site, sourceContent := range entries {
		lf.Checksums[file][site] = Hash(sourceContent)
	}
}

// FilterChanged returns only the sites whose source content has changed
// since the last translation. The input is a map of site -> sourceContent.
// Returns a map of site -> sourceContent for changed entries only.
func (lf *LockFile) FilterChanged(file string, entries map[string]string) map[string]string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[file]
	changed := make(map[string]string)

	for site, content := range entries {
		hash := Hash(content)
		if existing == nil || existing[site] != hash {
			changed[site] = content
		}
	}

	return changed
}

// Clean removes entries from the lock file that are no longer present in
// the current set of sites. This prevents stale entries from accumulating.
func (lf *LockFile) Clean(file string, currentSites []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[file]
	if existing == nil {
		return
	}

	valid := make(map[string]bool, len(currentSites))
	for _, s := range currentSites {
		valid[s] = true
	}

	for s := range existing {
		if !valid[s] {
			delete(existing, s)
		}
	}
}

// RemoveFile removes all checksums for a file.
func (lf *LockFile) RemoveFile(file string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	delete(lf.Checksums, file)
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of files and total sites in the lock file.
func (lf *LockFile) Stats() (files, sites int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	files = len(lf.Checksums)
	for _, m := range lf.Checksums {
		sites += len(m)
	}
	return
}

// Files returns the sorted list of tracked files.
func (lf *LockFile) Files() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	files := make([]string, 0, len(lf.Checksums))
	for f := range lf.Checksums {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// ---------------------------------------------------------------------------
// Human-readable summary
// ---------------------------------------------------------------------------

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	files, sites := lf.Stats()
	if files == 0 {
		return "empty"
	}

	var parts []string
	for _, f := range lf.Files() {
		n := len(lf.Checksums[f])
		parts = append(parts, fmt.Sprintf("%s: %d sites", f, n))
	}
	return fmt.Sprintf("%d files, %d sites (%s)", files, sites, strings.Join(parts, ", "))
}

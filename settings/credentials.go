// Package settings provides storage for packlate user settings, currently
// the per-provider API keys.
//
// All settings are stored in the XDG data directory:
//
//	$XDG_DATA_HOME/packlate/  (default: ~/.local/share/packlate/)
//
// Files stored:
//   - auth.json: API keys per provider
//
// The file is a JSON object keyed by provider ID; file permissions are
// 0600 (owner read/write only).
//
// Lookup order for API keys:
//  1. --api-key flag (highest priority)
//  2. Provider environment variable (GOOGLE_API_KEY, OPENAI_API_KEY)
//  3. PACKLATE_API_KEY environment variable
//  4. This credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	dataDirName = "packlate"
	fileName    = "auth.json"
)

// ---------------------------------------------------------------------------
// Auth entry
// ---------------------------------------------------------------------------

// Info is the entry stored per provider in auth.json.
type Info struct {
	// Type discriminator, always "api" for now. Kept so the file format
	// can grow OAuth entries without breaking old files.
	Type string `json:"type"`

	// Key is the API key (type == "api").
	Key string `json:"key,omitempty"`

	// BaseURL is a custom endpoint URL, optional.
	BaseURL string `json:"baseUrl,omitempty"`
}

// IsAPI returns true if this is an API key entry.
func (i *Info) IsAPI() bool {
	return i.Type == "api"
}

// Store holds all provider credentials, keyed by provider ID.
type Store map[string]*Info

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// dataDir returns the XDG data directory for packlate.
// Respects $XDG_DATA_HOME (falls back to ~/.local/share).
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

// filePath returns the path to the auth file.
// Default: ~/.local/share/packlate/auth.json (or $XDG_DATA_HOME/packlate/auth.json).
func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json file path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// DataDir returns the packlate data directory path.
// Default: ~/.local/share/packlate (or $XDG_DATA_HOME/packlate).
func DataDir() (string, error) {
	return dataDir()
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		return make(Store)
	}

	if store == nil {
		return make(Store)
	}

	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Get / Set / Delete
// ---------------------------------------------------------------------------

// Get returns the auth entry for a provider, or nil if not found.
func Get(providerID string) *Info {
	store := Load()
	return store[providerID]
}

// Set stores an auth entry for a provider (upsert).
func Set(providerID string, info *Info) error {
	store := Load()
	store[providerID] = info
	return Save(store)
}

// Remove deletes credentials for a provider.
func Remove(providerID string) error {
	store := Load()
	if _, ok := store[providerID]; !ok {
		return nil // Nothing to delete
	}
	delete(store, providerID)
	return Save(store)
}

// ---------------------------------------------------------------------------
// API key helpers
// ---------------------------------------------------------------------------

// SetAPIKey stores an API key for a provider.
func SetAPIKey(providerID, key string) error {
	return Set(providerID, &Info{
		Type: "api",
		Key:  key,
	})
}

// SetAPIKeyWithBaseURL stores an API key and base URL for a provider.
func SetAPIKeyWithBaseURL(providerID, key, baseURL string) error {
	return Set(providerID, &Info{
		Type:    "api",
		Key:     key,
		BaseURL: baseURL,
	})
}

// GetAPIKey retrieves the stored API key for a provider.
// Returns empty string if not found or not an API key entry.
func GetAPIKey(providerID string) string {
	info := Get(providerID)
	if info == nil || !info.IsAPI() {
		return ""
	}
	return info.Key
}

// GetBaseURL retrieves the stored base URL for a provider.
// Returns empty string if not found.
func GetBaseURL(providerID string) string {
	info := Get(providerID)
	if info == nil {
		return ""
	}
	return info.BaseURL
}

// ResolveAPIKey applies the documented lookup order: the explicit flag
// value, the provider's own environment variable, PACKLATE_API_KEY, then
// the credential store.
func ResolveAPIKey(providerID, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	envName := strings.ToUpper(strings.ReplaceAll(providerID, "-", "_")) + "_API_KEY"
	if key := os.Getenv(envName); key != "" {
		return key
	}
	if key := os.Getenv("PACKLATE_API_KEY"); key != "" {
		return key
	}
	return GetAPIKey(providerID)
}

// ---------------------------------------------------------------------------
// Display helpers
// ---------------------------------------------------------------------------

// MaskKey returns a masked version of a key/token for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// RemoveAll removes all stored credentials.
func RemoveAll() error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

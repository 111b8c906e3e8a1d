package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDataDirAndFilePathUseXDGDataHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	dir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir() error: %v", err)
	}
	wantDir := filepath.Join(tmp, "packlate")
	if dir != wantDir {
		t.Fatalf("DataDir() = %q, want %q", dir, wantDir)
	}

	wantPath := filepath.Join(tmp, "packlate", "auth.json")
	if got := FilePath(); got != wantPath {
		t.Fatalf("FilePath() = %q, want %q", got, wantPath)
	}
}

func TestSaveLoadRemoveLifecycle(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	store := Store{
		"google": {Type: "api", Key: "apikey123456"},
		"openai": {Type: "api", Key: "sk-test", BaseURL: "https://proxy.example.com/v1"},
	}

	if err := Save(store); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	path := filepath.Join(tmp, "packlate", "auth.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat auth.json: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("auth.json mode = %o, want 600", info.Mode().Perm())
	}

	loaded := Load()
	if loaded["google"] == nil || loaded["google"].Key != "apikey123456" {
		t.Fatalf("Load() missing google key: %#v", loaded["google"])
	}
	if loaded["openai"] == nil || loaded["openai"].BaseURL != "https://proxy.example.com/v1" {
		t.Fatalf("Load() missing openai base URL: %#v", loaded["openai"])
	}

	if err := Remove("google"); err != nil {
		t.Fatalf("Remove(google) error: %v", err)
	}
	if got := GetAPIKey("google"); got != "" {
		t.Fatalf("GetAPIKey after remove = %q, want empty", got)
	}
	if GetAPIKey("openai") == "" {
		t.Fatal("openai key should remain after removing google")
	}

	if err := Remove("missing-provider"); err != nil {
		t.Fatalf("Remove(missing) should be no-op, got: %v", err)
	}

	if err := RemoveAll(); err != nil {
		t.Fatalf("RemoveAll() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("auth.json should be removed, stat err=%v", err)
	}
	if got := Load(); len(got) != 0 {
		t.Fatalf("Load() after RemoveAll should be empty, got=%#v", got)
	}
}

func TestLoadToleratesBrokenFile(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	dir := filepath.Join(tmp, "packlate")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "auth.json"), []byte("{broken"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if got := Load(); len(got) != 0 {
		t.Fatalf("Load() on broken file should be empty, got %#v", got)
	}
}

func TestSetAPIKeyWithBaseURL(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	if err := SetAPIKeyWithBaseURL("openai", "sk-abc", "https://alt.example.com"); err != nil {
		t.Fatalf("SetAPIKeyWithBaseURL() error: %v", err)
	}
	if got := GetAPIKey("openai"); got != "sk-abc" {
		t.Fatalf("GetAPIKey = %q", got)
	}
	if got := GetBaseURL("openai"); got != "https://alt.example.com" {
		t.Fatalf("GetBaseURL = %q", got)
	}
	if got := GetBaseURL("google"); got != "" {
		t.Fatalf("GetBaseURL for unset provider = %q, want empty", got)
	}
}

func TestResolveAPIKeyPriority(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	if err := SetAPIKey("google", "stored-key"); err != nil {
		t.Fatalf("SetAPIKey() error: %v", err)
	}

	t.Setenv("GOOGLE_API_KEY", "env-key")
	t.Setenv("PACKLATE_API_KEY", "generic-key")

	if got := ResolveAPIKey("google", "flag-key"); got != "flag-key" {
		t.Fatalf("flag should win, got %q", got)
	}
	if got := ResolveAPIKey("google", ""); got != "env-key" {
		t.Fatalf("provider env should win over generic env, got %q", got)
	}

	t.Setenv("GOOGLE_API_KEY", "")
	if got := ResolveAPIKey("google", ""); got != "generic-key" {
		t.Fatalf("generic env should win over store, got %q", got)
	}

	t.Setenv("PACKLATE_API_KEY", "")
	if got := ResolveAPIKey("google", ""); got != "stored-key" {
		t.Fatalf("stored key expected, got %q", got)
	}
}

func TestMaskKey(t *testing.T) {
	if got := MaskKey("short"); got != "****" {
		t.Fatalf("MaskKey(short) = %q, want ****", got)
	}
	if got := MaskKey("12345678"); got != "****" {
		t.Fatalf("MaskKey(8 chars) = %q, want ****", got)
	}
	if got := MaskKey("123456789"); got != "1234...6789" {
		t.Fatalf("MaskKey(9 chars) = %q, want 1234...6789", got)
	}
}

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if f == nil {
		t.Fatal("Load returned nil for missing file")
	}
	if f.Provider != "" || f.TargetLanguage != "" {
		t.Fatalf("expected empty config, got %#v", f)
	}
}

func TestLoadParsesFields(t *testing.T) {
	dir := t.TempDir()
	yaml := "target_language: ko_kr\n" +
		"source_locale: en_us\n" +
		"provider: google\n" +
		"model: gemini-2.5-flash\n" +
		"batch_size: 25\n" +
		"max_concurrent: 2\n" +
		"backup: false\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(yaml), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if f.TargetLanguage != "ko_kr" {
		t.Errorf("TargetLanguage = %q", f.TargetLanguage)
	}
	if f.Provider != "google" || f.Model != "gemini-2.5-flash" {
		t.Errorf("provider/model = %q/%q", f.Provider, f.Model)
	}
	if f.BatchSize != 25 || f.MaxConcurrent != 2 {
		t.Errorf("batch/concurrent = %d/%d", f.BatchSize, f.MaxConcurrent)
	}
	if f.BackupEnabled() {
		t.Error("backup: false should disable backups")
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("provider: [unclosed"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadModpackPath(t *testing.T) {
	t.Run("defaults to config dir", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, FileName), []byte("provider: google\n"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		f, err := Load(dir)
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if f.ModpackPath != dir {
			t.Errorf("ModpackPath = %q, want %q", f.ModpackPath, dir)
		}
	})

	t.Run("relative path joined to config dir", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, FileName), []byte("modpack_path: pack\n"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		f, err := Load(dir)
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if f.ModpackPath != filepath.Join(dir, "pack") {
			t.Errorf("ModpackPath = %q", f.ModpackPath)
		}
	})

	t.Run("absolute path kept", func(t *testing.T) {
		dir := t.TempDir()
		abs := filepath.Join(dir, "elsewhere")
		if err := os.WriteFile(filepath.Join(dir, FileName), []byte("modpack_path: "+abs+"\n"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		f, err := Load(dir)
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if f.ModpackPath != abs {
			t.Errorf("ModpackPath = %q, want %q", f.ModpackPath, abs)
		}
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	no := false
	in := &File{
		TargetLanguage: "ru_ru",
		Provider:       "openai",
		Model:          "gpt-4o-mini",
		Temperature:    0.5,
		BatchSize:      10,
		Package:        &no,
		GlossaryPath:   "glossary.json",
	}
	if err := in.Save(dir); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	out, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	// Load fills ModpackPath; compare the rest.
	out.ModpackPath = ""
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n in: %#v\nout: %#v", in, out)
	}
}

func TestBoolDefaults(t *testing.T) {
	f := &File{}
	if !f.BackupEnabled() || !f.PackageEnabled() || !f.ScanJarsEnabled() || !f.IncrementalEnabled() {
		t.Error("unset booleans should default to true")
	}

	no := false
	f = &File{Backup: &no, Package: &no, ScanJars: &no, Incremental: &no}
	if f.BackupEnabled() || f.PackageEnabled() || f.ScanJarsEnabled() || f.IncrementalEnabled() {
		t.Error("explicit false should disable")
	}
}

func TestDetectModpack(t *testing.T) {
	dir := t.TempDir()
	ok, _ := DetectModpack(dir)
	if ok {
		t.Error("empty dir should not look like a modpack")
	}

	for _, d := range []string{"mods", "kubejs"} {
		if err := os.Mkdir(filepath.Join(dir, d), 0755); err != nil {
			t.Fatalf("Mkdir: %v", err)
		}
	}
	// A marker-named file must not count.
	if err := os.WriteFile(filepath.Join(dir, "config"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ok, found := DetectModpack(dir)
	if !ok {
		t.Fatal("dir with mods/ and kubejs/ should be detected")
	}
	if !reflect.DeepEqual(found, []string{"mods", "kubejs"}) {
		t.Errorf("found = %v", found)
	}
}

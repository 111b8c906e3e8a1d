package lockfile

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	h1 := Hash("hello world")
	h2 := Hash("hello world")
	if h1 != h2 {
		t.Errorf("Hash not deterministic: %s != %s", h1, h2)
	}
	h3 := Hash("different")
	if h1 == h3 {
		t.Errorf("Hash collision: %s == %s", h1, h3)
	}
}

func TestLoadNonExistent(t *testing.T) {
	lf, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error for non-existent file: %v", err)
	}
	if lf.Version != Version {
		t.Errorf("Version = %d, want %d", lf.Version, Version)
	}
	if len(lf.Checksums) != 0 {
		t.Errorf("Checksums not empty: %v", lf.Checksums)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	lf, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	lf.Update("kubejs/startup/items.js", "3:14", SiteContent("3:14", "Ruby Sword"))
	lf.Update("kubejs/startup/items.js", "7:20", SiteContent("7:20", "Shiny!"))
	lf.Update("config/quests.cfg", "12", SiteContent("12", "Chapter One"))

	if err := lf.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(dir, LockFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Lock file not created at %s", path)
	}

	lf2, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}
	files, sites := lf2.Stats()
	if files != 2 || sites != 3 {
		t.Errorf("Stats = (%d, %d), want (2, 3)", files, sites)
	}
	if lf2.IsChanged("kubejs/startup/items.js", "3:14", SiteContent("3:14", "Ruby Sword")) {
		t.Error("unchanged site reported as changed after reload")
	}
}

func TestIsChanged(t *testing.T) {
	lf, _ := Load(t.TempDir())

	// Unknown site counts as changed
	if !lf.IsChanged("f.json", "item.ruby", SiteContent("item.ruby", "Ruby")) {
		t.Error("unknown site should be changed")
	}

	lf.Update("f.json", "item.ruby", SiteContent("item.ruby", "Ruby"))
	if lf.IsChanged("f.json", "item.ruby", SiteContent("item.ruby", "Ruby")) {
		t.Error("recorded site should be unchanged")
	}

	// Source text edit
	if !lf.IsChanged("f.json", "item.ruby", SiteContent("item.ruby", "Ruby Gem")) {
		t.Error("edited source should be changed")
	}
}

func TestFilterChanged(t *testing.T) {
	lf, _ := Load(t.TempDir())

	lf.Update("f.json", "a", SiteContent("a", "Apple"))
	lf.Update("f.json", "b", SiteContent("b", "Banana"))

	pending := map[string]string{
		"a": SiteContent("a", "Apple"),     // unchanged
		"b": SiteContent("b", "Blueberry"), // edited
		"c": SiteContent("c", "Cherry"),    // new
	}
	changed := lf.FilterChanged("f.json", pending)
	if len(changed) != 2 {
		t.Fatalf("FilterChanged returned %d entries, want 2: %v", len(changed), changed)
	}
	if _, ok := changed["a"]; ok {
		t.Error("unchanged site 'a' should be filtered out")
	}
}

func TestUpdateBatch(t *testing.T) {
	lf, _ := Load(t.TempDir())

	lf.UpdateBatch("f.json", map[string]string{
		"a": SiteContent("a", "Apple"),
		"b": SiteContent("b", "Banana"),
	})
	_, sites := lf.Stats()
	if sites != 2 {
		t.Errorf("sites = %d, want 2", sites)
	}
}

func TestClean(t *testing.T) {
	lf, _ := Load(t.TempDir())

	lf.Update("f.json", "a", "x")
	lf.Update("f.json", "b", "y")
	lf.Update("f.json", "gone", "z")

	lf.Clean("f.json", []string{"a", "b"})

	if lf.IsChanged("f.json", "a", "x") || lf.IsChanged("f.json", "b", "y") {
		t.Error("kept sites should survive Clean")
	}
	if !lf.IsChanged("f.json", "gone", "z") {
		t.Error("removed site should be forgotten")
	}
}

func TestRemoveFile(t *testing.T) {
	lf, _ := Load(t.TempDir())

	lf.Update("f.json", "a", "x")
	lf.RemoveFile("f.json")

	files, _ := lf.Stats()
	if files != 0 {
		t.Errorf("files = %d after RemoveFile, want 0", files)
	}
}

func TestFileKey(t *testing.T) {
	if got := FileKey(filepath.Join("kubejs", "startup", "items.js")); got != "kubejs/startup/items.js" {
		t.Errorf("FileKey = %q", got)
	}
	// Jar-internal paths keep the ! separator
	if got := FileKey("mods/create.jar!assets/create/lang/en_us.json"); got != "mods/create.jar!assets/create/lang/en_us.json" {
		t.Errorf("FileKey jar form = %q", got)
	}
}

func TestFilesSorted(t *testing.T) {
	lf, _ := Load(t.TempDir())
	lf.Update("b.json", "x", "1")
	lf.Update("a.json", "x", "1")

	files := lf.Files()
	if len(files) != 2 || files[0] != "a.json" || files[1] != "b.json" {
		t.Errorf("Files = %v, want sorted [a.json b.json]", files)
	}
}

func TestSummary(t *testing.T) {
	lf, _ := Load(t.TempDir())
	if s := lf.Summary(); s == "" {
		t.Error("Summary empty for empty lock file")
	}
	lf.Update("f.json", "a", "x")
	if s := lf.Summary(); s == "" {
		t.Error("Summary empty")
	}
}

func TestConcurrentAccess(t *testing.T) {
	lf, _ := Load(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				site := string(rune('a' + n))
				lf.Update("f.json", site, "content")
				lf.IsChanged("f.json", site, "content")
			}
		}(i)
	}
	wg.Wait()

	_, sites := lf.Stats()
	if sites != 8 {
		t.Errorf("sites = %d, want 8", sites)
	}
}

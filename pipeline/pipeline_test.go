package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/modpack-tools/packlate/collector"
	"github.com/modpack-tools/packlate/extract"
)

// writeTree lays out files under root, creating parent directories.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

// prefixBackend translates every string to "KO:" + source and counts the
// strings it was asked to translate.
type prefixBackend struct {
	count int64
	fail  bool
}

func (b *prefixBackend) Translate(ctx context.Context, batch []string, systemPrompt string) ([]string, error) {
	atomic.AddInt64(&b.count, int64(len(batch)))
	if b.fail {
		return nil, errors.New("backend down")
	}
	out := make([]string, len(batch))
	for i, s := range batch {
		out[i] = "KO:" + s
	}
	return out, nil
}

const sourceLang = `{
  "item.mymod.ruby": "Ruby",
  "item.mymod.ruby.tooltip": "A precious gem"
}`

const targetLang = `{
  "item.mymod.ruby": "루비"
}`

func modpack(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"kubejs/assets/mymod/lang/en_us.json": sourceLang,
		"kubejs/assets/mymod/lang/ko_kr.json": targetLang,
		"kubejs/client_scripts/tooltips.js":   "tooltip.add('mymod:ruby', 'Shiny rock')\n",
	})
	return root
}

func baseOptions(root string) Options {
	return Options{
		Root:           root,
		TargetLocale:   "ko_kr",
		TargetLanguage: "Korean",
		Backend:        &prefixBackend{},
	}
}

func TestRunDryRun(t *testing.T) {
	root := modpack(t)
	opts := baseOptions(root)
	opts.DryRun = true
	opts.Backend = nil // dry run must not touch a backend

	tr := New(opts)
	report, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.Stage() != StageDone {
		t.Errorf("stage = %v", tr.Stage())
	}
	if report.Files != 2 {
		t.Errorf("files = %d, want 2", report.Files)
	}
	if report.UnitsTotal != 3 {
		t.Errorf("units = %d, want 3", report.UnitsTotal)
	}
	if report.UnitsReused != 1 {
		t.Errorf("reused = %d, want 1 from the existing ko_kr file", report.UnitsReused)
	}
	if report.AlignedPairs != 1 {
		t.Errorf("aligned = %d, want 1", report.AlignedPairs)
	}
	if len(report.Untranslated) != 2 {
		t.Errorf("untranslated = %v", report.Untranslated)
	}
	if report.Untranslated[0] != "kubejs/assets/mymod/lang/en_us.json|item.mymod.ruby.tooltip" {
		t.Errorf("untranslated[0] = %q", report.Untranslated[0])
	}
}

func TestRunTranslatesAndApplies(t *testing.T) {
	root := modpack(t)
	backend := &prefixBackend{}
	opts := baseOptions(root)
	opts.Backend = backend
	opts.Apply = true
	opts.Backup = true
	opts.Package = true
	opts.PackPath = filepath.Join(root, "out", "pack.zip")

	var stages []Stage
	opts.OnStage = func(s Stage, done, total int) { stages = append(stages, s) }

	tr := New(opts)
	report, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.UnitsDispatched != 2 || report.UnitsTranslated != 2 {
		t.Errorf("dispatched/translated = %d/%d, want 2/2", report.UnitsDispatched, report.UnitsTranslated)
	}
	if got := atomic.LoadInt64(&backend.count); got != 2 {
		t.Errorf("backend saw %d strings, want 2", got)
	}

	// The merged lang file carries the reused translation and the new one.
	merged, err := os.ReadFile(filepath.Join(root, "kubejs/assets/mymod/lang/ko_kr.json"))
	if err != nil {
		t.Fatalf("reading merged lang file: %v", err)
	}
	doc := string(merged)
	for _, want := range []string{"루비", "KO:A precious gem"} {
		if !strings.Contains(doc, want) {
			t.Errorf("merged lang file missing %q:\n%s", want, doc)
		}
	}

	// The script was rewritten in place.
	script, err := os.ReadFile(filepath.Join(root, "kubejs/client_scripts/tooltips.js"))
	if err != nil {
		t.Fatalf("reading merged script: %v", err)
	}
	if !strings.Contains(string(script), "KO:Shiny rock") {
		t.Errorf("script not merged:\n%s", script)
	}

	// The pre-existing target file was backed up before the in-place write.
	backup, err := os.ReadFile(filepath.Join(root, "kubejs/assets/mymod/lang/ko_kr.json.backup"))
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if string(backup) != targetLang {
		t.Errorf("backup content changed:\n%s", backup)
	}

	if report.PackPath != opts.PackPath {
		t.Errorf("pack path = %q", report.PackPath)
	}
	if _, err := os.Stat(opts.PackPath); err != nil {
		t.Errorf("pack zip missing: %v", err)
	}

	// Stage order: dispatch happens before merging, applying before packaging.
	if !stageBefore(stages, StageDispatching, StageMerging) ||
		!stageBefore(stages, StageApplying, StagePackaging) {
		t.Errorf("stage order = %v", stages)
	}
	if tr.Stage() != StageDone {
		t.Errorf("final stage = %v", tr.Stage())
	}
}

func TestRunOutputDirLeavesRootUntouched(t *testing.T) {
	root := modpack(t)
	outDir := t.TempDir()
	opts := baseOptions(root)
	opts.Apply = true
	opts.Backup = true
	opts.OutputDir = outDir

	if _, err := New(opts).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(filepath.Join(outDir, "kubejs/assets/mymod/lang/ko_kr.json")); err != nil {
		t.Errorf("output dir missing merged file: %v", err)
	}
	// No backups for out-of-place writes, and the root script is untouched.
	if _, err := os.Stat(filepath.Join(root, "kubejs/assets/mymod/lang/ko_kr.json.backup")); !os.IsNotExist(err) {
		t.Errorf("unexpected backup in root: %v", err)
	}
	script, _ := os.ReadFile(filepath.Join(root, "kubejs/client_scripts/tooltips.js"))
	if strings.Contains(string(script), "KO:") {
		t.Error("root script modified despite output dir")
	}
}

func TestRunReusesExistingTranslations(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"kubejs/assets/mymod/lang/en_us.json": `{"item.a": "Apple"}`,
		"kubejs/assets/mymod/lang/ko_kr.json": `{"item.a": "사과"}`,
	})
	backend := &prefixBackend{fail: true}
	opts := baseOptions(root)
	opts.Backend = backend

	report, err := New(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.UnitsReused != 1 || report.UnitsDispatched != 0 {
		t.Errorf("reused/dispatched = %d/%d", report.UnitsReused, report.UnitsDispatched)
	}
	if atomic.LoadInt64(&backend.count) != 0 {
		t.Error("backend contacted for fully translated modpack")
	}
}

func TestRunRetranslate(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"kubejs/assets/mymod/lang/en_us.json": `{"item.a": "Apple"}`,
		"kubejs/assets/mymod/lang/ko_kr.json": `{"item.a": "사과"}`,
	})
	opts := baseOptions(root)
	opts.Retranslate = true

	report, err := New(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.UnitsDispatched != 1 || report.UnitsReused != 0 {
		t.Errorf("dispatched/reused = %d/%d, want 1/0", report.UnitsDispatched, report.UnitsReused)
	}
}

func TestRunIncrementalSkipsUnchanged(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"config/mymod.cfg": "greeting = Hello there\n",
	})

	first := baseOptions(root)
	first.Incremental = true
	first.Apply = true
	report, err := New(first).Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if report.UnitsDispatched != 1 {
		t.Fatalf("first run dispatched = %d, want 1", report.UnitsDispatched)
	}

	// The config was merged in place, so the lock must accept the
	// translated value as the current state instead of re-dispatching it.
	cfg, err := os.ReadFile(filepath.Join(root, "config/mymod.cfg"))
	if err != nil {
		t.Fatalf("reading merged config: %v", err)
	}
	if !strings.Contains(string(cfg), "KO:Hello there") {
		t.Fatalf("config not merged:\n%s", cfg)
	}

	backend := &prefixBackend{fail: true}
	second := baseOptions(root)
	second.Incremental = true
	second.Backend = backend
	report, err = New(second).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.UnitsDispatched != 0 || report.UnitsReused != 1 {
		t.Errorf("second run dispatched/reused = %d/%d, want 0/1", report.UnitsDispatched, report.UnitsReused)
	}
	if atomic.LoadInt64(&backend.count) != 0 {
		t.Error("backend contacted on unchanged rerun")
	}
}

func TestRunIncrementalWithoutApplyKeepsDispatching(t *testing.T) {
	// Without an in-place apply the modpack root is unchanged, so a rerun
	// must translate the same strings again and reproduce the aggregate
	// instead of lock-skipping translations that never reached a file.
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"config/mymod.cfg": "greeting = Hello there\n",
	})

	run := func() *Report {
		opts := baseOptions(root)
		opts.Incremental = true
		opts.OutputPath = filepath.Join(root, "out", "translations.json")
		report, err := New(opts).Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return report
	}

	for i, report := range []*Report{run(), run()} {
		if report.UnitsDispatched != 1 || report.UnitsReused != 0 {
			t.Errorf("run %d dispatched/reused = %d/%d, want 1/0",
				i+1, report.UnitsDispatched, report.UnitsReused)
		}
		data, err := os.ReadFile(filepath.Join(root, "out", "translations.json"))
		if err != nil {
			t.Fatalf("run %d aggregate: %v", i+1, err)
		}
		if !strings.Contains(string(data), "KO:Hello there") {
			t.Errorf("run %d aggregate lost the translation:\n%s", i+1, data)
		}
	}
}

func TestRunOutputDirDoesNotAdvanceLock(t *testing.T) {
	// Writes into an output dir leave the root untouched; a later in-place
	// run must still see the strings as pending.
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"config/mymod.cfg": "greeting = Hello there\n",
	})

	first := baseOptions(root)
	first.Incremental = true
	first.Apply = true
	first.OutputDir = t.TempDir()
	if _, err := New(first).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := baseOptions(root)
	second.Incremental = true
	report, err := New(second).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.UnitsDispatched != 1 {
		t.Errorf("second run dispatched = %d, want 1", report.UnitsDispatched)
	}
}

func TestRunWritesAggregateOutput(t *testing.T) {
	root := modpack(t)
	opts := baseOptions(root)
	opts.OutputPath = filepath.Join(root, "out", "translations.json")

	if _, err := New(opts).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, name := range []string{"translations.json", "translations_mapping.json", "translations_stats.json"} {
		if _, err := os.Stat(filepath.Join(root, "out", name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
	data, err := os.ReadFile(opts.OutputPath)
	if err != nil {
		t.Fatalf("reading aggregate: %v", err)
	}
	if !strings.Contains(string(data), "kubejs/assets/mymod/lang/en_us.json|item.mymod.ruby.tooltip") {
		t.Errorf("aggregate missing global site:\n%s", data)
	}
}

func TestRunBackendFailureIsContained(t *testing.T) {
	root := modpack(t)
	opts := baseOptions(root)
	opts.Backend = &prefixBackend{fail: true}

	report, err := New(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run should absorb batch failures: %v", err)
	}
	if len(report.BackendErrors) == 0 {
		t.Error("backend errors not recorded")
	}
	if len(report.Untranslated) != 2 {
		t.Errorf("untranslated = %v", report.Untranslated)
	}
	if report.UnitsTranslated != 0 {
		t.Errorf("translated = %d, want 0", report.UnitsTranslated)
	}
}

func TestRunSkipsBrokenFile(t *testing.T) {
	root := modpack(t)
	writeTree(t, root, map[string]string{
		"kubejs/assets/other/lang/en_us.json": `{"broken": `,
	})

	tr := New(baseOptions(root))
	report, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Files != 2 {
		t.Errorf("files = %d, want 2 (broken one skipped)", report.Files)
	}
	found := false
	for _, sk := range report.Skipped {
		if sk.Path == "kubejs/assets/other/lang/en_us.json" {
			found = true
		}
	}
	if !found {
		t.Errorf("broken file not in skipped list: %v", report.Skipped)
	}
}

func TestRunBadRoot(t *testing.T) {
	opts := baseOptions(filepath.Join(t.TempDir(), "nope"))
	tr := New(opts)
	_, err := tr.Run(context.Background())
	var cerr *collector.Error
	if !errors.As(err, &cerr) {
		t.Errorf("err = %v, want collector error", err)
	}
	if tr.Stage() != StageFailed {
		t.Errorf("stage = %v, want failed", tr.Stage())
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := New(baseOptions(modpack(t)))
	_, err := tr.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if tr.Stage() != StageFailed {
		t.Errorf("stage = %v", tr.Stage())
	}
}

func TestGlobalSiteRoundTrip(t *testing.T) {
	g := globalSite("kubejs/scripts/a.js", extract.Site("3:15"))
	rel, local := splitSite(g)
	if rel != "kubejs/scripts/a.js" || local != "3:15" {
		t.Errorf("round trip = %q, %q", rel, local)
	}

	rel, local = splitSite(extract.Site("bare"))
	if rel != "" || local != "bare" {
		t.Errorf("bare site = %q, %q", rel, local)
	}
}

func TestStageString(t *testing.T) {
	if StageDispatching.String() != "dispatching" {
		t.Errorf("got %q", StageDispatching.String())
	}
	if Stage(99).String() != "unknown" {
		t.Errorf("got %q", Stage(99).String())
	}
}

func stageBefore(stages []Stage, a, b Stage) bool {
	ai, bi := -1, -1
	for i, s := range stages {
		if s == a && ai < 0 {
			ai = i
		}
		if s == b && bi < 0 {
			bi = i
		}
	}
	return ai >= 0 && bi >= 0 && ai < bi
}

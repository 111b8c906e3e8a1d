// Package pipeline orchestrates a full modpack translation run: collect
// files, align existing translations, build the glossary, extract new
// strings, dispatch them to the AI backend, merge translations back, and
// optionally apply to disk and package a resource pack.
//
// Each run is an explicit Translator value; nothing is shared between
// runs. Parsing and merging are single-threaded; the only concurrency is
// inside the dispatch stage, bounded by the configured request cap.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modpack-tools/packlate/collector"
	"github.com/modpack-tools/packlate/configfile"
	"github.com/modpack-tools/packlate/extract"
	"github.com/modpack-tools/packlate/glossary"
	"github.com/modpack-tools/packlate/langfile"
	"github.com/modpack-tools/packlate/lockfile"
	"github.com/modpack-tools/packlate/pack"
	"github.com/modpack-tools/packlate/scriptfile"
	"github.com/modpack-tools/packlate/translate"
)

// ---------------------------------------------------------------------------
// Stages
// ---------------------------------------------------------------------------

// Stage identifies where a run currently is.
type Stage int

const (
	StageIdle Stage = iota
	StageCollecting
	StageExtractingExisting
	StageBuildingGlossary
	StageExtractingNew
	StageDispatching
	StageMerging
	StageBackingUp
	StageApplying
	StagePackaging
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageIdle:               "idle",
	StageCollecting:         "collecting",
	StageExtractingExisting: "extracting-existing",
	StageBuildingGlossary:   "building-glossary",
	StageExtractingNew:      "extracting-new",
	StageDispatching:        "dispatching",
	StageMerging:            "merging",
	StageBackingUp:          "backing-up",
	StageApplying:           "applying",
	StagePackaging:          "packaging",
	StageDone:               "done",
	StageFailed:             "failed",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return "unknown"
}

// ---------------------------------------------------------------------------
// Options and report
// ---------------------------------------------------------------------------

// Options configures a translation run.
type Options struct {
	// Root is the modpack root directory.
	Root string
	// SourceLocale is the locale code of source lang files (en_us).
	SourceLocale string
	// TargetLocale is the locale code translations are written under.
	TargetLocale string
	// TargetLanguage is the human-readable target language name for the
	// translation prompt.
	TargetLanguage string

	// Translate carries the backend and dispatch configuration. Its
	// TargetLanguage and Glossary fields are filled in by the run.
	Translate translate.Options
	// Backend overrides the backend built from Translate.Provider.
	// Used by tests.
	Backend translate.Backend

	// Filter decides string translatability. Zero value uses defaults.
	Filter extract.Filter

	// DryRun stops before dispatch: collection, extraction, and the
	// glossary run, but no backend is contacted and nothing is written.
	DryRun bool
	// Retranslate re-translates strings that already have a target
	// value instead of keeping them.
	Retranslate bool
	// Incremental consults packlate.lock and skips unchanged sites that
	// were translated in an earlier run.
	Incremental bool
	// ScanJars reads lang files out of mods/*.jar.
	ScanJars bool

	// OutputPath receives the aggregate translation JSON. Empty skips it.
	OutputPath string
	// Apply writes merged translations into files.
	Apply bool
	// OutputDir receives merged copies. Empty with Apply set means
	// in-place writes into the modpack root.
	OutputDir string
	// Backup copies originals aside (.backup) before in-place writes.
	Backup bool
	// Package builds a resource pack from translated lang entries.
	Package bool
	// PackPath is the resource pack output path. Empty gets a default
	// under the modpack root.
	PackPath string
	// GlossaryPath persists the glossary between runs. Empty keeps the
	// glossary in memory only.
	GlossaryPath string

	// OnStage is called on stage transitions and batch completions.
	OnStage func(stage Stage, done, total int)
	// OnLog emits log messages.
	OnLog func(format string, args ...any)
	// OnError emits error messages.
	OnError func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

// SkippedFile is a file dropped from the run with its reason.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Report is the outcome of a run. Nothing is dropped silently: every
// skipped file and untranslated site is listed.
type Report struct {
	Files           int           `json:"files"`
	UnitsTotal      int           `json:"units_total"`
	UnitsReused     int           `json:"units_reused"`
	UnitsDispatched int           `json:"units_dispatched"`
	UnitsTranslated int           `json:"units_translated"`
	AlignedPairs    int           `json:"aligned_pairs"`
	GlossaryTerms   int           `json:"glossary_terms"`
	Skipped         []SkippedFile `json:"skipped,omitempty"`
	Untranslated    []string      `json:"untranslated,omitempty"`
	BackendErrors   []string      `json:"backend_errors,omitempty"`
	MergeErrors     []string      `json:"merge_errors,omitempty"`
	AppliedFiles    []string      `json:"applied_files,omitempty"`
	PackPath        string        `json:"pack_path,omitempty"`
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// fileState is one collected file with its parsed documents and results.
type fileState struct {
	pair      collector.Pair
	doc       extract.Document
	targetDoc extract.Document // nil when no existing translation
	units     []extract.Unit   // filtered translatable units
	// resolved maps local site to final text: reused existing
	// translations plus fresh ones.
	resolved map[extract.Site]string
	// applied is set once the merged file has been written to disk.
	applied bool
}

// Snapshot owns everything a run has read: the collected pairs, their
// parsed documents, and per-file results. It never mutates the modpack on
// disk; applying is a separate explicit step.
type Snapshot struct {
	files  []*fileState
	pairs  []extract.AlignedPair
	gloss  *glossary.Glossary
	report *Report
}

// Report returns the run report accumulated so far.
func (s *Snapshot) Report() *Report { return s.report }

// Glossary returns the glossary built from existing translations.
func (s *Snapshot) Glossary() *glossary.Glossary { return s.gloss }

// ---------------------------------------------------------------------------
// Translator
// ---------------------------------------------------------------------------

// Translator runs the pipeline. One value per run.
type Translator struct {
	opts  Options
	stage Stage
	snap  *Snapshot
	lock  *lockfile.LockFile
}

// New prepares a run with the given options.
func New(opts Options) *Translator {
	if opts.SourceLocale == "" {
		opts.SourceLocale = "en_us"
	}
	return &Translator{opts: opts, stage: StageIdle}
}

// Stage returns the current stage.
func (t *Translator) Stage() Stage { return t.stage }

// Snapshot returns the run snapshot, valid after Run.
func (t *Translator) Snapshot() *Snapshot { return t.snap }

func (t *Translator) setStage(ctx context.Context, s Stage) error {
	// Cancellation is checked at every stage boundary; in-flight work
	// inside a stage finishes first.
	if err := ctx.Err(); err != nil {
		t.stage = StageFailed
		return err
	}
	t.stage = s
	if t.opts.OnStage != nil {
		t.opts.OnStage(s, 0, 0)
	}
	return nil
}

// Run executes the pipeline and returns the report. A fatal error (bad
// root, cancellation) ends the run in StageFailed; per-file and per-batch
// failures are absorbed into the report instead.
func (t *Translator) Run(ctx context.Context) (*Report, error) {
	snap := &Snapshot{report: &Report{}}
	t.snap = snap
	opts := &t.opts

	// --- Collect -----------------------------------------------------

	if err := t.setStage(ctx, StageCollecting); err != nil {
		return snap.report, err
	}
	collected, err := collector.Collect(opts.Root, collector.Options{
		SourceLocale: opts.SourceLocale,
		TargetLocale: opts.TargetLocale,
		ScanJars:     opts.ScanJars,
		OnLog:        func(msg string) { opts.log("%s", msg) },
	})
	if err != nil {
		t.stage = StageFailed
		return snap.report, err
	}
	for _, sk := range collected.Skipped {
		snap.report.Skipped = append(snap.report.Skipped, SkippedFile{Path: sk.Path, Reason: sk.Reason})
	}

	if opts.Incremental {
		lock, err := lockfile.Load(opts.Root)
		if err != nil {
			opts.logError("lock file unreadable, translating from scratch: %v", err)
		} else {
			t.lock = lock
		}
	}

	// --- Parse and align existing translations ------------------------

	if err := t.setStage(ctx, StageExtractingExisting); err != nil {
		return snap.report, err
	}
	for _, pair := range collected.Pairs {
		doc, err := parseDocument(pair.Kind, pair.Source)
		if err != nil {
			perr := &extract.ParseError{Path: pair.RelPath, Err: err}
			opts.logError("%v", perr)
			snap.report.Skipped = append(snap.report.Skipped, SkippedFile{Path: pair.RelPath, Reason: perr.Error()})
			continue
		}
		st := &fileState{pair: pair, doc: doc, resolved: make(map[extract.Site]string)}

		if pair.Target != nil {
			tdoc, err := parseDocument(pair.Kind, pair.Target)
			if err != nil {
				// A broken target file costs the alignment, not the run.
				opts.logError("parsing existing translation for %s: %v", pair.RelPath, err)
			} else {
				st.targetDoc = tdoc
				snap.pairs = append(snap.pairs, extract.Align(doc, tdoc)...)
			}
		}
		snap.files = append(snap.files, st)
	}
	snap.report.Files = len(snap.files)
	snap.report.AlignedPairs = len(snap.pairs)

	// --- Glossary ------------------------------------------------------

	if err := t.setStage(ctx, StageBuildingGlossary); err != nil {
		return snap.report, err
	}
	snap.gloss = glossary.Build(snap.pairs)
	if opts.GlossaryPath != "" {
		stored, err := glossary.Load(opts.GlossaryPath)
		if err != nil {
			opts.logError("%v", err)
		} else {
			stored.Merge(snap.gloss)
			snap.gloss = stored
		}
	}
	snap.report.GlossaryTerms = len(snap.gloss.Entries)
	opts.log("glossary: %d terms from %d aligned pairs", snap.report.GlossaryTerms, len(snap.pairs))

	// --- Extract new strings -------------------------------------------

	if err := t.setStage(ctx, StageExtractingNew); err != nil {
		return snap.report, err
	}
	var toDispatch []extract.Unit // sites globalized as "relpath|site"
	for _, st := range snap.files {
		units := opts.Filter.FilterUnits(st.doc.Units())
		units = extract.Annotate(units, st.targetDoc)
		st.units = units
		snap.report.UnitsTotal += len(units)

		fileKey := lockfile.FileKey(st.pair.RelPath)
		for _, u := range units {
			if u.Existing != "" && !opts.Retranslate {
				st.resolved[u.Site] = u.Existing
				snap.report.UnitsReused++
				continue
			}
			if t.lock != nil && u.Existing == "" &&
				!t.lock.IsChanged(fileKey, string(u.Site), lockfile.SiteContent(string(u.Site), u.Source)) {
				// Translated in an earlier run and unchanged since.
				snap.report.UnitsReused++
				continue
			}
			g := u
			g.Site = globalSite(st.pair.RelPath, u.Site)
			toDispatch = append(toDispatch, g)
		}
	}
	snap.report.UnitsDispatched = len(toDispatch)
	opts.log("extracted %d units, %d to translate", snap.report.UnitsTotal, len(toDispatch))

	if opts.DryRun {
		for _, u := range toDispatch {
			snap.report.Untranslated = append(snap.report.Untranslated, string(u.Site))
		}
		sort.Strings(snap.report.Untranslated)
		if err := t.setStage(ctx, StageDone); err != nil {
			return snap.report, err
		}
		return snap.report, nil
	}

	// --- Dispatch -------------------------------------------------------

	if err := t.setStage(ctx, StageDispatching); err != nil {
		return snap.report, err
	}
	topts := opts.Translate
	topts.TargetLanguage = opts.TargetLanguage
	topts.Glossary = snap.gloss
	if topts.OnLog == nil {
		topts.OnLog = opts.OnLog
	}
	if topts.OnError == nil {
		topts.OnError = opts.OnError
	}
	if topts.OnProgress == nil && opts.OnStage != nil {
		topts.OnProgress = func(done, total int) { opts.OnStage(StageDispatching, done, total) }
	}

	backend := opts.Backend
	if backend == nil && len(toDispatch) > 0 {
		backend, err = translate.NewBackend(topts)
		if err != nil {
			t.stage = StageFailed
			return snap.report, err
		}
	}

	var result *translate.Result
	if len(toDispatch) > 0 {
		result, err = translate.Dispatch(ctx, backend, toDispatch, topts)
		if err != nil {
			t.stage = StageFailed
			return snap.report, err
		}
	} else {
		result = &translate.Result{Translations: map[extract.Site]string{}}
	}

	byFile := make(map[string]*fileState, len(snap.files))
	for _, st := range snap.files {
		byFile[st.pair.RelPath] = st
	}
	for site, text := range result.Translations {
		rel, local := splitSite(site)
		if st, ok := byFile[rel]; ok {
			st.resolved[local] = text
			snap.report.UnitsTranslated++
		}
	}
	for _, site := range result.Untranslated {
		snap.report.Untranslated = append(snap.report.Untranslated, string(site))
	}
	sort.Strings(snap.report.Untranslated)
	for _, e := range result.Errors {
		snap.report.BackendErrors = append(snap.report.BackendErrors, e.Error())
	}

	// --- Aggregate output -----------------------------------------------

	if err := t.setStage(ctx, StageMerging); err != nil {
		return snap.report, err
	}
	if opts.OutputPath != "" {
		if err := t.writeAggregate(result); err != nil {
			t.stage = StageFailed
			return snap.report, err
		}
		opts.log("wrote %s", opts.OutputPath)
	}

	// --- Apply ------------------------------------------------------------

	if opts.Apply {
		if err := t.apply(ctx); err != nil {
			t.stage = StageFailed
			return snap.report, err
		}
	}

	// --- Package ------------------------------------------------------------

	if opts.Package {
		if err := t.setStage(ctx, StagePackaging); err != nil {
			return snap.report, err
		}
		if err := t.buildPack(); err != nil {
			// Surfaced but already-applied files stay in place.
			t.stage = StageFailed
			return snap.report, err
		}
	}

	// --- Finish ------------------------------------------------------------

	if opts.GlossaryPath != "" {
		if err := snap.gloss.Save(opts.GlossaryPath); err != nil {
			opts.logError("%v", err)
		}
	}
	// The lock mirrors what is on disk under the modpack root, so it only
	// advances when translations were written there.
	if t.lock != nil && opts.Apply && opts.OutputDir == "" {
		t.updateLock()
		if err := t.lock.Save(); err != nil {
			opts.logError("%v", err)
		}
	}

	if err := t.setStage(ctx, StageDone); err != nil {
		return snap.report, err
	}
	return snap.report, nil
}

// ---------------------------------------------------------------------------
// Stage helpers
// ---------------------------------------------------------------------------

// parseDocument parses raw content per format kind.
func parseDocument(kind extract.Kind, data []byte) (extract.Document, error) {
	switch kind {
	case extract.KindJSON:
		return langfile.Parse(data)
	case extract.KindScript:
		return scriptfile.Parse(data)
	case extract.KindConfig:
		return configfile.Parse(data)
	default:
		return nil, fmt.Errorf("unsupported format kind %v", kind)
	}
}

// globalSite prefixes a per-file site with its file path so sites are
// unique across the whole run.
func globalSite(relPath string, site extract.Site) extract.Site {
	return extract.Site(relPath + "|" + string(site))
}

// splitSite undoes globalSite.
func splitSite(site extract.Site) (string, extract.Site) {
	s := string(site)
	if i := strings.LastIndex(s, "|"); i >= 0 {
		return s[:i], extract.Site(s[i+1:])
	}
	return "", site
}

// aggregateEntry is one row of the mapping file written next to the
// aggregate translation JSON.
type aggregateEntry struct {
	File   string `json:"file"`
	Site   string `json:"site"`
	Source string `json:"source"`
}

// writeAggregate writes the aggregate translation JSON (global site →
// translated text), a mapping file locating each site, and the run stats.
func (t *Translator) writeAggregate(result *translate.Result) error {
	snap := t.snap

	translations := make(map[string]string)
	mapping := make(map[string]aggregateEntry)
	for _, st := range snap.files {
		for _, u := range st.units {
			if text, ok := st.resolved[u.Site]; ok {
				g := string(globalSite(st.pair.RelPath, u.Site))
				translations[g] = text
				mapping[g] = aggregateEntry{File: st.pair.RelPath, Site: string(u.Site), Source: u.Source}
			}
		}
	}

	if err := writeJSON(t.opts.OutputPath, translations); err != nil {
		return err
	}
	base := strings.TrimSuffix(t.opts.OutputPath, filepath.Ext(t.opts.OutputPath))
	if err := writeJSON(base+"_mapping.json", mapping); err != nil {
		return err
	}
	return writeJSON(base+"_stats.json", snap.report)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// apply merges translations into each file and writes the result, backing
// originals up first for in-place writes. A merge failure keeps the
// original file and is recorded; it never aborts the rest.
func (t *Translator) apply(ctx context.Context) error {
	opts := &t.opts
	snap := t.snap
	inPlace := opts.OutputDir == ""

	if inPlace && opts.Backup {
		if err := t.setStage(ctx, StageBackingUp); err != nil {
			return err
		}
		for _, st := range snap.files {
			if st.pair.FromJar || len(st.resolved) == 0 {
				continue
			}
			dst := filepath.Join(opts.Root, filepath.FromSlash(st.pair.TargetRel))
			if _, err := os.Stat(dst); err != nil {
				continue // nothing to back up
			}
			if err := copyFile(dst, dst+".backup"); err != nil {
				return fmt.Errorf("backing up %s: %w", st.pair.TargetRel, err)
			}
		}
	}

	if err := t.setStage(ctx, StageApplying); err != nil {
		return err
	}
	for _, st := range snap.files {
		if st.pair.FromJar || len(st.resolved) == 0 {
			continue
		}
		// Lang files merge into the source document, producing a full
		// target-locale file; scripts and configs merge in place.
		merged, err := st.doc.Merge(st.resolved)
		if err != nil {
			msg := fmt.Sprintf("merging %s: %v", st.pair.RelPath, err)
			opts.logError("%s", msg)
			snap.report.MergeErrors = append(snap.report.MergeErrors, msg)
			continue
		}

		outRoot := opts.Root
		if !inPlace {
			outRoot = opts.OutputDir
		}
		dst := filepath.Join(outRoot, filepath.FromSlash(st.pair.TargetRel))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, merged, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", dst, err)
		}
		st.applied = true
		snap.report.AppliedFiles = append(snap.report.AppliedFiles, st.pair.TargetRel)
	}
	sort.Strings(snap.report.AppliedFiles)
	opts.log("applied %d files", len(snap.report.AppliedFiles))
	return nil
}

// buildPack assembles the resource pack from translated lang entries.
func (t *Translator) buildPack() error {
	opts := &t.opts
	snap := t.snap

	entries := make(map[string]map[string]string)
	for _, st := range snap.files {
		if st.pair.Kind != extract.KindJSON || st.pair.ModID == "" {
			continue
		}
		for _, u := range st.units {
			text, ok := st.resolved[u.Site]
			if !ok {
				continue
			}
			if entries[st.pair.ModID] == nil {
				entries[st.pair.ModID] = make(map[string]string)
			}
			entries[st.pair.ModID][string(u.Site)] = text
		}
	}
	if len(entries) == 0 {
		opts.log("no translated lang entries, skipping resource pack")
		return nil
	}

	packPath := opts.PackPath
	if packPath == "" {
		packPath = filepath.Join(opts.Root, fmt.Sprintf("packlate-%s.zip", opts.TargetLocale))
	}
	if err := pack.Build(packPath, entries, pack.Options{Locale: opts.TargetLocale}); err != nil {
		return err
	}
	snap.report.PackPath = packPath
	opts.log("wrote resource pack %s", packPath)
	return nil
}

// updateLock records checksums for every site whose translation reached a
// file on disk. Formats merged in place overwrite their own source, so the
// recorded content is the translated text, which is what the next
// collection will read back.
func (t *Translator) updateLock() {
	for _, st := range t.snap.files {
		if !st.applied {
			continue
		}
		inPlace := st.pair.TargetRel == st.pair.RelPath
		fileKey := lockfile.FileKey(st.pair.RelPath)
		batch := make(map[string]string)
		var current []string
		for _, u := range st.units {
			current = append(current, string(u.Site))
			text, ok := st.resolved[u.Site]
			if !ok {
				continue
			}
			source := u.Source
			if inPlace {
				source = text
			}
			batch[string(u.Site)] = lockfile.SiteContent(string(u.Site), source)
		}
		if len(batch) > 0 {
			t.lock.UpdateBatch(fileKey, batch)
		}
		t.lock.Clean(fileKey, current)
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

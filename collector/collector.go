// Package collector walks a modpack installation and gathers every file
// that can carry translatable text: lang JSON files, KubeJS scripts, mod
// config files, and lang files packed inside mod JARs. Results come back
// in deterministic lexicographic path order so that downstream stages
// (glossary tie-breaking, report output) are reproducible run to run.
package collector

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/modpack-tools/packlate/extract"
)

// scanDirs are the modpack subtrees that can hold translatable files.
var scanDirs = []string{"config", "datapacks", "kubejs", "resourcepacks"}

// localePattern matches Minecraft locale codes used as lang file names.
var localePattern = regexp.MustCompile(`^[a-z]{2,3}_[a-z]{2,4}$`)

// Pair is one collected source file with its existing translation, when
// one exists. Jar entries use "mods/<jar>!<entry>" as their path and are
// never written back; their translations go to the resource pack only.
type Pair struct {
	// RelPath is the source path relative to the modpack root.
	RelPath string
	// Kind is the detected format family.
	Kind extract.Kind
	// Source is the raw source file content.
	Source []byte
	// Target is the raw existing-translation content, nil when absent.
	Target []byte
	// TargetRel is where merged output belongs, relative to the root.
	// Empty for jar entries. Script and config files translate in
	// place, so it equals RelPath for those.
	TargetRel string
	// FromJar marks virtual pairs read out of mods/*.jar.
	FromJar bool
	// ModID is the asset namespace for lang files, used to lay out the
	// resource pack. Empty for scripts and configs.
	ModID string
}

// Skipped records a file that was found but could not be read.
type Skipped struct {
	Path   string
	Reason string
}

// Result is the outcome of a collection pass.
type Result struct {
	Pairs   []Pair
	Skipped []Skipped
}

// Error reports a modpack root that cannot be scanned at all. It is fatal:
// nothing useful can run without a readable root.
type Error struct {
	Root string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("collecting from %s: %v", e.Root, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options controls a collection pass.
type Options struct {
	// SourceLocale is the locale code of source lang files (en_us).
	SourceLocale string
	// TargetLocale is the locale code translations are written under.
	TargetLocale string
	// ScanJars enables reading lang files out of mods/*.jar.
	ScanJars bool
	// OnLog receives informational messages.
	OnLog func(msg string)
}

func (o *Options) effectiveSourceLocale() string {
	if o.SourceLocale == "" {
		return "en_us"
	}
	return o.SourceLocale
}

func (o *Options) logf(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(fmt.Sprintf(format, args...))
	}
}

// ---------------------------------------------------------------------------
// Collection
// ---------------------------------------------------------------------------

// Collect scans the modpack root and returns every translatable file pair
// it finds. The root must exist and be a directory; anything else is a
// collection error. Individual unreadable files are skipped and recorded.
func Collect(root string, opts Options) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &Error{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &Error{Root: root, Err: fmt.Errorf("not a directory")}
	}

	res := &Result{}
	src := opts.effectiveSourceLocale()

	for _, dir := range scanDirs {
		sub := filepath.Join(root, dir)
		if _, err := os.Stat(sub); err != nil {
			continue
		}
		if err := collectDir(root, sub, src, opts, res); err != nil {
			return nil, &Error{Root: root, Err: err}
		}
	}

	if opts.ScanJars {
		if err := collectJars(root, src, opts, res); err != nil {
			return nil, err
		}
	}

	sort.Slice(res.Pairs, func(i, j int) bool { return res.Pairs[i].RelPath < res.Pairs[j].RelPath })
	opts.logf("collected %d files (%d skipped)", len(res.Pairs), len(res.Skipped))
	return res, nil
}

func collectDir(root, dir, srcLocale string, opts Options, res *Result) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: p, Reason: err.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		kind := extract.Detect(rel)
		if kind == extract.KindUnknown {
			return nil
		}

		// Lang files: only the source locale seeds a pair; other
		// locales are picked up as that pair's target.
		var targetRel string
		if locale, ok := langLocale(rel); ok {
			if locale != srcLocale {
				return nil
			}
			targetRel = swapLocale(rel, srcLocale, opts.TargetLocale)
		} else {
			targetRel = rel // scripts and configs translate in place
		}

		data, err := os.ReadFile(p)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: rel, Reason: err.Error()})
			return nil
		}

		pair := Pair{
			RelPath:   rel,
			Kind:      kind,
			Source:    data,
			TargetRel: targetRel,
			ModID:     modIDFromLangPath(rel),
		}
		if targetRel != rel {
			if tdata, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(targetRel))); err == nil {
				pair.Target = tdata
			}
		}
		res.Pairs = append(res.Pairs, pair)
		return nil
	})
}

// collectJars reads assets/<mod>/lang/<locale>.json entries out of every
// mods/*.jar. A jar that cannot be opened is skipped, not fatal.
func collectJars(root, srcLocale string, opts Options, res *Result) error {
	modsDir := filepath.Join(root, "mods")
	entries, err := os.ReadDir(modsDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return &Error{Root: root, Err: err}
	}

	var jars []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".jar") {
			jars = append(jars, e.Name())
		}
	}
	sort.Strings(jars)

	for _, name := range jars {
		jarPath := filepath.Join(modsDir, name)
		if err := collectJar(jarPath, "mods/"+name, srcLocale, opts, res); err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: "mods/" + name, Reason: err.Error()})
		}
	}
	return nil
}

func collectJar(jarPath, relJar, srcLocale string, opts Options, res *Result) error {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return fmt.Errorf("opening jar: %w", err)
	}
	defer r.Close()

	// Index lang entries by name for target lookup.
	files := make(map[string]*zip.File)
	var names []string
	for _, zf := range r.File {
		if isJarLangEntry(zf.Name) {
			files[zf.Name] = zf
			names = append(names, zf.Name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		locale, ok := langLocale(name)
		if !ok || locale != srcLocale {
			continue
		}
		data, err := readZipFile(files[name])
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Path: relJar + "!" + name, Reason: err.Error()})
			continue
		}
		pair := Pair{
			RelPath: relJar + "!" + name,
			Kind:    extract.KindJSON,
			Source:  data,
			FromJar: true,
			ModID:   modIDFromLangPath(name),
		}
		if opts.TargetLocale != "" {
			tname := swapLocale(name, srcLocale, opts.TargetLocale)
			if tzf, ok := files[tname]; ok {
				if tdata, err := readZipFile(tzf); err == nil {
					pair.Target = tdata
				}
			}
		}
		res.Pairs = append(res.Pairs, pair)
	}
	return nil
}

func readZipFile(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func isJarLangEntry(name string) bool {
	return strings.HasPrefix(name, "assets/") &&
		strings.Contains(name, "/lang/") &&
		strings.HasSuffix(name, ".json")
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// langLocale extracts the locale code from a lang file path
// ("assets/mod/lang/en_us.json" → "en_us").
func langLocale(p string) (string, bool) {
	clean := path.Clean(filepath.ToSlash(p))
	if path.Base(path.Dir(clean)) != "lang" {
		return "", false
	}
	file := path.Base(clean)
	ext := path.Ext(file)
	if ext != ".json" && ext != ".lang" {
		return "", false
	}
	base := strings.ToLower(strings.TrimSuffix(file, ext))
	if !localePattern.MatchString(base) {
		return "", false
	}
	return base, true
}

// swapLocale rewrites the lang file name from one locale to another.
func swapLocale(p, from, to string) string {
	if to == "" {
		return p
	}
	dir, file := path.Split(p)
	ext := path.Ext(file)
	base := strings.TrimSuffix(file, ext)
	if strings.EqualFold(base, from) {
		return dir + to + ext
	}
	return p
}

// modIDFromLangPath pulls the asset namespace out of a lang file path:
// "assets/<mod>/lang/en_us.json" → "<mod>". Paths without the assets
// layout fall back to the directory above lang/, or empty.
func modIDFromLangPath(p string) string {
	parts := strings.Split(filepath.ToSlash(p), "/")
	for i, part := range parts {
		if part == "lang" && i > 0 {
			if i >= 2 && parts[i-2] == "assets" {
				return parts[i-1]
			}
			return parts[i-1]
		}
	}
	return ""
}

// Package extract defines the shared vocabulary of the extraction layer:
// translation units, format kinds, parsed documents, the translatability
// filter, and alignment of source files against existing translations.
//
// Format-specific parsing lives in the langfile, scriptfile and configfile
// packages, each of which produces a Document.
package extract

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Kinds and units
// ---------------------------------------------------------------------------

// Kind identifies the format family a file belongs to.
type Kind int

const (
	KindUnknown Kind = iota
	KindJSON         // lang JSON files (assets/*/lang/en_us.json)
	KindScript       // KubeJS scripts
	KindConfig       // plain key=value / key: value config and .lang files
)

// String returns the kind name used in reports and logs.
func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindScript:
		return "script"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Site locates one translatable string inside a file. The value is opaque
// to everything outside the producing format package; it is only required
// to be unique within the file and stable across re-parses of identical
// content.
type Site string

// Unit is a single translatable string pulled out of a file.
type Unit struct {
	// Site locates the string within its file.
	Site Site
	// Source is the decoded source-language text.
	Source string
	// Kind is the format family of the containing file.
	Kind Kind
	// Existing is the current target-language text, empty when the
	// target file is absent or has no value at this site.
	Existing string
}

// AlignedPair is a source string matched with its existing translation.
type AlignedPair struct {
	Site   Site
	Source string
	Target string
}

// Document is a parsed file that can enumerate its translatable strings
// and splice translated text back in without disturbing any other byte.
type Document interface {
	// Units returns the translatable strings in document order.
	Units() []Unit
	// Lookup returns the decoded text at site, if present.
	Lookup(site Site) (string, bool)
	// Merge returns the file content with the given translations
	// spliced in. Sites absent from the map keep their original text.
	// A translation equal to the original decoded value leaves the
	// original bytes untouched, so merging an empty map reproduces the
	// input byte for byte.
	Merge(translations map[Site]string) ([]byte, error)
}

// ---------------------------------------------------------------------------
// Kind detection
// ---------------------------------------------------------------------------

// Detect classifies a path by extension and location. Paths that match no
// known format return KindUnknown.
func Detect(path string) Kind {
	norm := filepath.ToSlash(path)
	switch strings.ToLower(filepath.Ext(norm)) {
	case ".json":
		// Only lang files, not arbitrary JSON (recipes, models, ...).
		if strings.Contains(norm, "/lang/") {
			return KindJSON
		}
		return KindUnknown
	case ".js":
		if strings.Contains(norm, "kubejs/") || strings.HasPrefix(norm, "kubejs") {
			return KindScript
		}
		return KindUnknown
	case ".lang":
		return KindConfig
	case ".cfg", ".properties", ".toml", ".txt":
		if strings.Contains(norm, "config/") || strings.HasPrefix(norm, "config") {
			return KindConfig
		}
		return KindUnknown
	default:
		return KindUnknown
	}
}

// ---------------------------------------------------------------------------
// Translatability filter
// ---------------------------------------------------------------------------

// Default filter patterns. Strings matching any pattern in full are
// considered machine identifiers rather than player-facing text.
var (
	// resourceLocationPattern matches namespaced identifiers such as
	// "minecraft:diamond" or "kubejs:custom/item_x".
	resourceLocationPattern = regexp.MustCompile(`^[a-z0-9_.\-]+:[a-z0-9_./\-]+$`)

	// identifierPattern matches bare snake_case / dotted identifiers with
	// no spaces, e.g. "item.mymod.widget" or "some_tag".
	identifierPattern = regexp.MustCompile(`^[a-z0-9_.\-/]+$`)

	// formatCodeOnlyPattern matches strings consisting solely of §/& format
	// codes and whitespace.
	formatCodeOnlyPattern = regexp.MustCompile(`^(?:[§&][0-9a-fk-or]|\s)+$`)
)

// FormatCodePattern matches a single Minecraft §/& formatting code. Exposed
// so prompt builders can instruct models to preserve the codes.
var FormatCodePattern = regexp.MustCompile(`[§&][0-9a-fk-or]`)

// Filter decides whether an extracted string is worth translating.
// The zero value uses the default exclusion patterns; additional patterns
// may be appended for pack-specific conventions.
type Filter struct {
	// Exclude holds extra patterns; a string matching any of them in
	// full is rejected.
	Exclude []*regexp.Regexp
}

// Translatable reports whether s looks like player-facing text of the
// given kind. Lang JSON values are player text by definition, so only the
// resource-location and format-code exclusions apply there; script and
// config strings are additionally rejected when they look like bare
// identifiers.
func (f *Filter) Translatable(kind Kind, s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	if resourceLocationPattern.MatchString(trimmed) {
		return false
	}
	if formatCodeOnlyPattern.MatchString(trimmed) {
		return false
	}
	if kind != KindJSON && identifierPattern.MatchString(trimmed) {
		return false
	}
	for _, re := range f.Exclude {
		if re.MatchString(trimmed) {
			return false
		}
	}
	return true
}

// FilterUnits returns the subset of units that pass the filter.
func (f *Filter) FilterUnits(units []Unit) []Unit {
	out := make([]Unit, 0, len(units))
	for _, u := range units {
		if f.Translatable(u.Kind, u.Source) {
			out = append(out, u)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Alignment
// ---------------------------------------------------------------------------

// Align matches the units of a source document against an existing target
// document by site. Sites present in both files with non-empty text on both
// sides become aligned pairs; everything else is ignored. A target equal to
// its source is treated as an untranslated copy and skipped as well. The
// pairs come back in source document order.
func Align(src, tgt Document) []AlignedPair {
	if src == nil || tgt == nil {
		return nil
	}
	var pairs []AlignedPair
	for _, u := range src.Units() {
		target, ok := tgt.Lookup(u.Site)
		if !ok {
			continue
		}
		if u.Source == "" || target == "" || u.Source == target {
			continue
		}
		pairs = append(pairs, AlignedPair{Site: u.Site, Source: u.Source, Target: target})
	}
	return pairs
}

// Annotate fills each source unit's Existing field from the target
// document, leaving it empty where the target has no value.
func Annotate(units []Unit, tgt Document) []Unit {
	if tgt == nil {
		return units
	}
	out := make([]Unit, len(units))
	for i, u := range units {
		if target, ok := tgt.Lookup(u.Site); ok {
			u.Existing = target
		}
		out[i] = u
	}
	return out
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// ParseError reports a file whose content could not be parsed. The file is
// skipped and the run continues.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Package scriptfile extracts translatable string literals from KubeJS
// scripts by lexical pattern matching. Scripts are never evaluated; only
// string literals at known display call sites are touched, and merging
// replaces just the literal bytes so the rest of the script survives
// byte for byte.
//
// Recognized call sites:
//
//	item.displayName('Shiny Ingot')
//	event.formattedDisplayName(Text.gold('Shiny Ingot'))
//	Text.red('Warning!')  /  Component.aqua('...')
//	tooltip.add('minecraft:diamond', 'A precious gem')
//	event.addTooltip('minecraft:diamond', 'A precious gem')
//
// For the two-argument forms only the second argument is translatable; the
// first is an item identifier.
package scriptfile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/modpack-tools/packlate/extract"
)

// colorNames are the Text./Component. builder methods that take display
// text, plus the generic "of" constructor.
const colorNames = `black|dark_blue|dark_green|dark_aqua|dark_red|dark_purple|gold|gray|dark_gray|blue|green|aqua|red|light_purple|yellow|white|of`

// literal matches one quoted string. RE2 has no backreferences, so each
// quote style gets its own capture group; exactly one of the three groups
// is non-nil in a match. Group order: single, double, backtick.
const literal = `(?:'((?:\\.|[^'\\])*)'|"((?:\\.|[^"\\])*)"` + "|`((?:\\\\.|[^`\\\\])*)`)"

// Each pattern's last three groups are the literal alternation above.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`\.(?:displayName|formattedDisplayName)\(\s*` + literal),
	regexp.MustCompile(`(?:Text|Component)\.(?:` + colorNames + `)\(\s*` + literal),
	// The first argument may be a quoted item id, a bare identifier, or a
	// simple call like Item.of('mod:widget').
	regexp.MustCompile(`(?:tooltip\.add|\.addTooltip)\(\s*(?:['"` + "`" + `][^'"` + "`" + `]*['"` + "`" + `]|[A-Za-z_$][\w$.]*(?:\([^()]*\))?)\s*,\s*` + literal),
}

// entry is one matched string literal.
type entry struct {
	site  extract.Site
	value string // decoded text
	quote byte
	start int // byte offset of the content (past the opening quote)
	end   int // byte offset of the closing quote
}

// File is a scanned KubeJS script.
type File struct {
	data    []byte
	entries []entry
	index   map[extract.Site]int
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and scans a script from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse scans script content for translatable literals.
func Parse(data []byte) (*File, error) {
	f := &File{data: data, index: make(map[extract.Site]int)}

	seen := make(map[int]bool) // content start offsets already claimed
	for _, re := range patterns {
		for _, m := range re.FindAllSubmatchIndex(data, -1) {
			n := len(m)
			// The literal alternation contributes the last three groups;
			// exactly one of them matched.
			cStart, cEnd := -1, -1
			for g := n - 6; g < n; g += 2 {
				if m[g] >= 0 {
					cStart, cEnd = m[g], m[g+1]
					break
				}
			}
			if cStart < 0 || seen[cStart] {
				continue
			}
			seen[cStart] = true
			f.entries = append(f.entries, entry{
				value: decode(string(data[cStart:cEnd])),
				quote: data[cStart-1],
				start: cStart,
				end:   cEnd,
			})
		}
	}

	sort.Slice(f.entries, func(i, j int) bool { return f.entries[i].start < f.entries[j].start })
	for i := range f.entries {
		line, col := position(data, f.entries[i].start)
		f.entries[i].site = extract.Site(fmt.Sprintf("%d:%d", line, col))
		f.index[f.entries[i].site] = i
	}
	return f, nil
}

// position returns the 1-based line and column of a byte offset.
func position(data []byte, off int) (line, col int) {
	line, col = 1, 1
	for i := 0; i < off && i < len(data); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// decode resolves backslash escapes inside a JS string literal.
func decode(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// encode escapes s for embedding between the given quote characters.
func encode(s string, quote byte) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case quote:
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Document interface
// ---------------------------------------------------------------------------

// Units returns the matched literals in document order.
func (f *File) Units() []extract.Unit {
	units := make([]extract.Unit, len(f.entries))
	for i, e := range f.entries {
		units[i] = extract.Unit{Site: e.site, Source: e.value, Kind: extract.KindScript}
	}
	return units
}

// Lookup returns the decoded text at site.
func (f *File) Lookup(site extract.Site) (string, bool) {
	if i, ok := f.index[site]; ok {
		return f.entries[i].value, true
	}
	return "", false
}

// Merge splices translations into their literal spans. Untranslated or
// unchanged sites keep their original bytes.
func (f *File) Merge(translations map[extract.Site]string) ([]byte, error) {
	var out []byte
	last := 0
	for _, e := range f.entries {
		text, ok := translations[e.site]
		if !ok || text == e.value {
			continue
		}
		out = append(out, f.data[last:e.start]...)
		out = append(out, encode(text, e.quote)...)
		last = e.end
	}
	out = append(out, f.data[last:]...)
	return out, nil
}

// WriteFile merges translations and writes the result to path.
func (f *File) WriteFile(path string, translations map[extract.Site]string) error {
	data, err := f.Merge(translations)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

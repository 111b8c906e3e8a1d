// Package configfile implements reading and writing of plain key=value
// translation sources: mod config files (.cfg, .properties, .txt) and
// legacy Minecraft .lang files.
//
// Format: key=value or key: value pairs, one per line. Comment and blank
// lines are preserved verbatim, as are line endings (LF or CRLF per line)
// and the presence or absence of a trailing newline. Each entry line
// records the byte span of its value inside the raw line, so merging
// replaces only the value text and the file otherwise round-trips byte
// for byte.
package configfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/modpack-tools/packlate/extract"
)

// lineKind classifies each line in the file.
type lineKind int

const (
	lineBlank   lineKind = iota // blank / whitespace-only line
	lineComment                 // comment line or anything unparseable
	lineEntry                   // key=value pair
)

// line is a single line in the file. raw excludes the terminator; term is
// "\n", "\r\n", or "" for a final line without a newline.
type line struct {
	kind lineKind
	raw  string
	term string
	key  string
	// value span within raw, valid for lineEntry only
	vstart, vend int
}

// File represents a parsed config file.
type File struct {
	lines []line
	index map[extract.Site]int // site → index in lines
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses a config file from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses config content from a byte slice.
func Parse(data []byte) (*File, error) {
	f := &File{index: make(map[extract.Site]int)}

	text := string(data)
	lineNo := 0
	for len(text) > 0 || lineNo == 0 && len(data) > 0 {
		lineNo++
		raw, term, rest := splitLine(text)
		text = rest

		ln := classify(raw)
		ln.term = term
		if ln.kind == lineEntry {
			f.index[extract.Site(strconv.Itoa(lineNo))] = len(f.lines)
		}
		f.lines = append(f.lines, ln)

		if term == "" {
			break
		}
	}

	return f, nil
}

// splitLine cuts the first line off text, returning the line content, its
// terminator and the remainder.
func splitLine(text string) (raw, term, rest string) {
	i := strings.IndexByte(text, '\n')
	if i < 0 {
		return text, "", ""
	}
	raw = text[:i]
	term = "\n"
	if strings.HasSuffix(raw, "\r") {
		raw = raw[:len(raw)-1]
		term = "\r\n"
	}
	return raw, term, text[i+1:]
}

// classify parses one raw line into its kind, key and value span.
func classify(raw string) line {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return line{kind: lineBlank, raw: raw}
	case strings.HasPrefix(trimmed, "#"), strings.HasPrefix(trimmed, "!"),
		strings.HasPrefix(trimmed, "//"), strings.HasPrefix(trimmed, ";"),
		strings.HasPrefix(trimmed, "["): // section headers
		return line{kind: lineComment, raw: raw}
	}

	sep := strings.IndexAny(raw, "=:")
	if sep < 0 {
		// No separator, keep the line untouched.
		return line{kind: lineComment, raw: raw}
	}
	key := strings.TrimSpace(raw[:sep])
	if key == "" {
		return line{kind: lineComment, raw: raw}
	}

	// Value span: first non-space after the separator through the last
	// non-space of the line. Surrounding whitespace stays outside the
	// span so it survives merging.
	vstart := sep + 1
	for vstart < len(raw) && (raw[vstart] == ' ' || raw[vstart] == '\t') {
		vstart++
	}
	vend := len(raw)
	for vend > vstart && (raw[vend-1] == ' ' || raw[vend-1] == '\t') {
		vend--
	}
	return line{kind: lineEntry, raw: raw, key: key, vstart: vstart, vend: vend}
}

// ---------------------------------------------------------------------------
// Document interface
// ---------------------------------------------------------------------------

// Units returns the non-empty entry values in document order. The site is
// the 1-based line number.
func (f *File) Units() []extract.Unit {
	var units []extract.Unit
	for i, ln := range f.lines {
		if ln.kind != lineEntry || ln.vstart == ln.vend {
			continue
		}
		units = append(units, extract.Unit{
			Site:   extract.Site(strconv.Itoa(i + 1)),
			Source: ln.raw[ln.vstart:ln.vend],
			Kind:   extract.KindConfig,
		})
	}
	return units
}

// Lookup returns the value at site.
func (f *File) Lookup(site extract.Site) (string, bool) {
	if i, ok := f.index[site]; ok {
		ln := f.lines[i]
		return ln.raw[ln.vstart:ln.vend], true
	}
	return "", false
}

// Merge splices translations into their value spans. Untranslated or
// unchanged sites keep their original bytes.
func (f *File) Merge(translations map[extract.Site]string) ([]byte, error) {
	var b strings.Builder
	for i, ln := range f.lines {
		if ln.kind == lineEntry {
			site := extract.Site(strconv.Itoa(i + 1))
			if text, ok := translations[site]; ok && text != ln.raw[ln.vstart:ln.vend] {
				b.WriteString(ln.raw[:ln.vstart])
				b.WriteString(sanitize(text))
				b.WriteString(ln.raw[ln.vend:])
				b.WriteString(ln.term)
				continue
			}
		}
		b.WriteString(ln.raw)
		b.WriteString(ln.term)
	}
	return []byte(b.String()), nil
}

// sanitize keeps a translated value on one line; raw newlines would break
// the line-oriented format.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// Key returns the key of the entry at site.
func (f *File) Key(site extract.Site) (string, bool) {
	if i, ok := f.index[site]; ok {
		return f.lines[i].key, true
	}
	return "", false
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

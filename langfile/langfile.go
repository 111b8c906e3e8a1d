// Package langfile implements reading and writing of Minecraft lang JSON
// files (assets/<mod>/lang/<locale>.json).
//
// The parser is a small JSON scanner that records the exact byte span of
// every leaf string value alongside its decoded text and key path. Merging
// splices translated text into those spans only, leaving every other byte
// of the file untouched, so a merge with no changed values reproduces the
// input byte for byte (whitespace, key order, escape style and all).
package langfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/modpack-tools/packlate/extract"
)

// entry is one leaf string value inside the file.
type entry struct {
	site  extract.Site
	value string // decoded text
	start int    // byte offset of the opening quote
	end   int    // byte offset just past the closing quote
}

// File is a parsed lang JSON file.
type File struct {
	data    []byte
	entries []entry
	index   map[extract.Site]int
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses a lang JSON file from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses lang JSON content from a byte slice.
func Parse(data []byte) (*File, error) {
	f := &File{data: data, index: make(map[extract.Site]int)}
	s := &scanner{data: data}
	s.skipSpace()
	if err := s.value(f, nil, false); err != nil {
		return nil, err
	}
	s.skipSpace()
	if s.pos != len(data) {
		return nil, fmt.Errorf("trailing content at offset %d", s.pos)
	}
	return f, nil
}

// scanner walks JSON byte by byte, tracking the key path of the current
// value. Only object/array structure, strings, and scalar skipping are
// implemented; anything else is a parse error.
type scanner struct {
	data []byte
	pos  int
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.data) {
		switch s.data[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) errf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", s.pos, fmt.Sprintf(format, args...))
}

// value consumes one JSON value. path holds the key path so far; leaf
// marks whether a string here is a value (recorded) or a key (not).
func (s *scanner) value(f *File, path []string, leaf bool) error {
	s.skipSpace()
	if s.pos >= len(s.data) {
		return s.errf("unexpected end of input")
	}
	switch c := s.data[s.pos]; {
	case c == '{':
		return s.object(f, path)
	case c == '[':
		return s.array(f, path)
	case c == '"':
		start := s.pos
		text, err := s.string()
		if err != nil {
			return err
		}
		if leaf {
			site := extract.Site(strings.Join(path, "/"))
			f.index[site] = len(f.entries)
			f.entries = append(f.entries, entry{site: site, value: text, start: start, end: s.pos})
		}
		return nil
	case c == 't':
		return s.literal("true")
	case c == 'f':
		return s.literal("false")
	case c == 'n':
		return s.literal("null")
	case c == '-' || (c >= '0' && c <= '9'):
		return s.number()
	default:
		return s.errf("unexpected character %q", c)
	}
}

func (s *scanner) object(f *File, path []string) error {
	s.pos++ // consume '{'
	s.skipSpace()
	if s.pos < len(s.data) && s.data[s.pos] == '}' {
		s.pos++
		return nil
	}
	for {
		s.skipSpace()
		if s.pos >= len(s.data) || s.data[s.pos] != '"' {
			return s.errf("expected object key")
		}
		key, err := s.string()
		if err != nil {
			return err
		}
		s.skipSpace()
		if s.pos >= len(s.data) || s.data[s.pos] != ':' {
			return s.errf("expected ':' after key %q", key)
		}
		s.pos++
		if err := s.value(f, append(path, escapeKey(key)), true); err != nil {
			return err
		}
		s.skipSpace()
		if s.pos >= len(s.data) {
			return s.errf("unterminated object")
		}
		switch s.data[s.pos] {
		case ',':
			s.pos++
		case '}':
			s.pos++
			return nil
		default:
			return s.errf("expected ',' or '}'")
		}
	}
}

func (s *scanner) array(f *File, path []string) error {
	s.pos++ // consume '['
	s.skipSpace()
	if s.pos < len(s.data) && s.data[s.pos] == ']' {
		s.pos++
		return nil
	}
	for i := 0; ; i++ {
		if err := s.value(f, append(path, strconv.Itoa(i)), true); err != nil {
			return err
		}
		s.skipSpace()
		if s.pos >= len(s.data) {
			return s.errf("unterminated array")
		}
		switch s.data[s.pos] {
		case ',':
			s.pos++
		case ']':
			s.pos++
			return nil
		default:
			return s.errf("expected ',' or ']'")
		}
	}
}

func (s *scanner) literal(want string) error {
	if s.pos+len(want) > len(s.data) || string(s.data[s.pos:s.pos+len(want)]) != want {
		return s.errf("invalid literal")
	}
	s.pos += len(want)
	return nil
}

func (s *scanner) number() error {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E' {
			s.pos++
			continue
		}
		break
	}
	return nil
}

// string consumes a JSON string token (opening quote included) and returns
// its decoded value. The scanner position ends just past the closing quote.
func (s *scanner) string() (string, error) {
	if s.data[s.pos] != '"' {
		return "", s.errf("expected string")
	}
	s.pos++
	var b strings.Builder
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case c == '"':
			s.pos++
			return b.String(), nil
		case c == '\\':
			s.pos++
			if s.pos >= len(s.data) {
				return "", s.errf("unterminated escape")
			}
			switch e := s.data[s.pos]; e {
			case '"', '\\', '/':
				b.WriteByte(e)
				s.pos++
			case 'b':
				b.WriteByte('\b')
				s.pos++
			case 'f':
				b.WriteByte('\f')
				s.pos++
			case 'n':
				b.WriteByte('\n')
				s.pos++
			case 'r':
				b.WriteByte('\r')
				s.pos++
			case 't':
				b.WriteByte('\t')
				s.pos++
			case 'u':
				r, err := s.unicodeEscape()
				if err != nil {
					return "", err
				}
				b.WriteRune(r)
			default:
				return "", s.errf("invalid escape \\%c", e)
			}
		default:
			b.WriteByte(c)
			s.pos++
		}
	}
	return "", s.errf("unterminated string")
}

// unicodeEscape decodes \uXXXX (the scanner sits on the 'u'), combining
// surrogate pairs when a low surrogate follows.
func (s *scanner) unicodeEscape() (rune, error) {
	if s.pos+5 > len(s.data) {
		return 0, s.errf("truncated \\u escape")
	}
	v, err := strconv.ParseUint(string(s.data[s.pos+1:s.pos+5]), 16, 32)
	if err != nil {
		return 0, s.errf("invalid \\u escape: %v", err)
	}
	s.pos += 5
	r := rune(v)
	if utf16.IsSurrogate(r) && s.pos+6 <= len(s.data) &&
		s.data[s.pos] == '\\' && s.data[s.pos+1] == 'u' {
		v2, err := strconv.ParseUint(string(s.data[s.pos+2:s.pos+6]), 16, 32)
		if err == nil {
			if combined := utf16.DecodeRune(r, rune(v2)); combined != utf8.RuneError {
				s.pos += 6
				return combined, nil
			}
		}
	}
	if utf16.IsSurrogate(r) {
		return utf8.RuneError, nil
	}
	return r, nil
}

// escapeKey makes object keys safe to join into a site path. Lang file
// keys are full of dots, so the separator is "/", escaped here along with
// backslashes; a flat key and a nested path can never produce the same
// site.
func escapeKey(key string) string {
	if strings.ContainsAny(key, `\/`) {
		key = strings.ReplaceAll(key, `\`, `\\`)
		key = strings.ReplaceAll(key, `/`, `\/`)
	}
	return key
}

// ---------------------------------------------------------------------------
// Document interface
// ---------------------------------------------------------------------------

// Units returns the leaf string values in document order.
func (f *File) Units() []extract.Unit {
	units := make([]extract.Unit, len(f.entries))
	for i, e := range f.entries {
		units[i] = extract.Unit{Site: e.site, Source: e.value, Kind: extract.KindJSON}
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

// Merge splices translations into their recorded spans. Untranslated or
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
		out = append(out, encodeString(text)...)
		last = e.end
	}
	out = append(out, f.data[last:]...)
	return out, nil
}

// encodeString encodes s as a JSON string literal, keeping non-ASCII text
// readable (UTF-8 written literally, only quotes, backslashes and control
// characters escaped).
func encodeString(s string) []byte {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return []byte(b.String())
}

// ---------------------------------------------------------------------------
// Serialization helpers
// ---------------------------------------------------------------------------

// WriteFile merges translations and writes the result to path, creating
// parent directories with 0755 permissions.
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

// Marshal builds a fresh lang JSON document from a flat key → value map,
// keys sorted, two-space indent. Used when writing lang files that have no
// source document to splice into (resource pack output).
func Marshal(values map[string]string) []byte {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{\n")
	for i, k := range keys {
		b.WriteString("  ")
		b.Write(encodeString(k))
		b.WriteString(": ")
		b.Write(encodeString(values[k]))
		if i < len(keys)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("}\n")
	return []byte(b.String())
}

// Values returns site → decoded text for every entry, in a fresh map.
func (f *File) Values() map[string]string {
	m := make(map[string]string, len(f.entries))
	for _, e := range f.entries {
		m[string(e.site)] = e.value
	}
	return m
}

// Package glossary builds and persists a term glossary from existing
// translations. The glossary is advisory: it is handed to the translation
// backend as context so recurring modpack terms ("Thermal", "Flux", mob
// and item names) get consistent renderings, but nothing enforces that the
// model follows it.
package glossary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modpack-tools/packlate/extract"
)

// Entry is one glossary term with its preferred translation.
type Entry struct {
	Term        string `json:"term"`
	Translation string `json:"translation"`
	Count       int    `json:"count"`
}

// Glossary is an ordered set of entries, most frequent first.
type Glossary struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

const currentVersion = 1

// New returns an empty glossary.
func New() *Glossary {
	return &Glossary{Version: currentVersion}
}

// ---------------------------------------------------------------------------
// Building
// ---------------------------------------------------------------------------

// Build derives a glossary from aligned source/target pairs. Pairs must be
// supplied in the collector's deterministic order: when a term has several
// candidate translations, the one with the highest occurrence count wins,
// and ties keep the candidate that appeared first.
func Build(pairs []extract.AlignedPair) *Glossary {
	type candidate struct {
		translation string
		count       int
		order       int // first-seen position, for tie-breaking
	}
	byTerm := make(map[string][]candidate)
	var terms []string

	for i, p := range pairs {
		term := strings.TrimSpace(p.Source)
		target := strings.TrimSpace(p.Target)
		if term == "" || target == "" {
			continue
		}
		cands := byTerm[term]
		if cands == nil {
			terms = append(terms, term)
		}
		found := false
		for j := range cands {
			if cands[j].translation == target {
				cands[j].count++
				found = true
				break
			}
		}
		if !found {
			cands = append(cands, candidate{translation: target, count: 1, order: i})
		}
		byTerm[term] = cands
	}

	g := New()
	for _, term := range terms {
		cands := byTerm[term]
		best := cands[0]
		for _, c := range cands[1:] {
			if c.count > best.count {
				best = c
			}
		}
		g.Entries = append(g.Entries, Entry{Term: term, Translation: best.translation, Count: best.count})
	}
	g.sortEntries()
	return g
}

// Merge folds other into g. Matching term+translation pairs have their
// counts summed; a term whose incoming translation differs keeps whichever
// translation ends up with the higher count (existing wins ties).
func (g *Glossary) Merge(other *Glossary) {
	idx := make(map[string]int, len(g.Entries))
	for i, e := range g.Entries {
		idx[e.Term] = i
	}
	for _, in := range other.Entries {
		i, ok := idx[in.Term]
		if !ok {
			idx[in.Term] = len(g.Entries)
			g.Entries = append(g.Entries, in)
			continue
		}
		if g.Entries[i].Translation == in.Translation {
			g.Entries[i].Count += in.Count
		} else if in.Count > g.Entries[i].Count {
			g.Entries[i] = in
		}
	}
	g.sortEntries()
}

// sortEntries orders by count descending, then term ascending. The order
// is stable across runs, so glossary files diff cleanly.
func (g *Glossary) sortEntries() {
	sort.SliceStable(g.Entries, func(i, j int) bool {
		if g.Entries[i].Count != g.Entries[j].Count {
			return g.Entries[i].Count > g.Entries[j].Count
		}
		return g.Entries[i].Term < g.Entries[j].Term
	})
}

// Lookup returns the preferred translation for term.
func (g *Glossary) Lookup(term string) (string, bool) {
	for _, e := range g.Entries {
		if e.Term == term {
			return e.Translation, true
		}
	}
	return "", false
}

// Context selects up to max entries whose term occurs as a substring of
// any of the given source texts. Used to keep per-batch prompts small.
func (g *Glossary) Context(sources []string, max int) []Entry {
	var out []Entry
	for _, e := range g.Entries {
		for _, s := range sources {
			if strings.Contains(s, e.Term) {
				out = append(out, e)
				break
			}
		}
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

// Load reads a glossary JSON file. A missing file yields an empty glossary.
func Load(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading glossary %s: %w", path, err)
	}
	var g Glossary
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing glossary %s: %w", path, err)
	}
	if g.Version == 0 {
		g.Version = currentVersion
	}
	return &g, nil
}

// Save writes the glossary to path atomically (temp file + rename).
func (g *Glossary) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding glossary: %w", err)
	}
	data = append(data, '\n')
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".glossary-*.json")
	if err != nil {
		return fmt.Errorf("creating temp glossary: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing glossary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing glossary: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("saving glossary %s: %w", path, err)
	}
	return nil
}

// Package pack builds a Minecraft resource pack zip out of translated lang
// entries. The pack carries one lang file per mod namespace
// (assets/<mod>/lang/<locale>.json) plus a pack.mcmeta, which is all the
// game needs to overlay translations on top of the installed mods.
package pack

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/modpack-tools/packlate/langfile"
)

// packFormat is the resource pack format for current game versions.
const packFormat = 15

// Error reports a packaging failure. Translated files already written are
// left in place; only the pack itself is affected.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("packaging %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options controls resource pack assembly.
type Options struct {
	// Locale is the target locale code the lang files are written under.
	Locale string
	// Description goes into pack.mcmeta. Empty gets a default.
	Description string
	// Format overrides the pack_format. 0 means the current default.
	Format int
}

func (o *Options) effectiveFormat() int {
	if o.Format > 0 {
		return o.Format
	}
	return packFormat
}

func (o *Options) effectiveDescription() string {
	if o.Description != "" {
		return o.Description
	}
	return fmt.Sprintf("Modpack translations (%s)", o.Locale)
}

// mcmeta is the pack.mcmeta document.
type mcmeta struct {
	Pack struct {
		PackFormat  int    `json:"pack_format"`
		Description string `json:"description"`
	} `json:"pack"`
}

// Build writes a resource pack zip to outPath. entries maps a mod
// namespace to its lang key → translated text map. Mods with no entries
// are skipped; an empty entries map is an error since the pack would be
// useless.
func Build(outPath string, entries map[string]map[string]string, opts Options) error {
	if opts.Locale == "" {
		return &Error{Path: outPath, Err: fmt.Errorf("no target locale")}
	}

	mods := make([]string, 0, len(entries))
	for mod, values := range entries {
		if mod != "" && len(values) > 0 {
			mods = append(mods, mod)
		}
	}
	if len(mods) == 0 {
		return &Error{Path: outPath, Err: fmt.Errorf("no translated lang entries to package")}
	}
	sort.Strings(mods)

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return &Error{Path: outPath, Err: err}
	}
	f, err := os.Create(outPath)
	if err != nil {
		return &Error{Path: outPath, Err: err}
	}
	defer f.Close()

	w := zip.NewWriter(f)

	var meta mcmeta
	meta.Pack.PackFormat = opts.effectiveFormat()
	meta.Pack.Description = opts.effectiveDescription()
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return &Error{Path: outPath, Err: err}
	}
	if err := writeZipEntry(w, "pack.mcmeta", append(metaData, '\n')); err != nil {
		return &Error{Path: outPath, Err: err}
	}

	for _, mod := range mods {
		name := fmt.Sprintf("assets/%s/lang/%s.json", mod, opts.Locale)
		if err := writeZipEntry(w, name, langfile.Marshal(entries[mod])); err != nil {
			return &Error{Path: outPath, Err: err}
		}
	}

	if err := w.Close(); err != nil {
		return &Error{Path: outPath, Err: err}
	}
	if err := f.Close(); err != nil {
		return &Error{Path: outPath, Err: err}
	}
	return nil
}

func writeZipEntry(w *zip.Writer, name string, data []byte) error {
	zw, err := w.Create(name)
	if err != nil {
		return err
	}
	_, err = zw.Write(data)
	return err
}

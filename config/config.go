// Package config implements packlate.yaml, the per-modpack run
// configuration file, and auto-detection of modpack layout from the
// working directory.
//
// When a packlate.yaml exists in the modpack root it is the source of
// truth for the run; CLI flags override individual values on top of it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = "packlate.yaml"

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level packlate.yaml structure.
type File struct {
	// ModpackPath is the modpack root. Defaults to the directory the
	// config file lives in.
	ModpackPath string `yaml:"modpack_path,omitempty"`
	// SourceLocale is the locale code of source lang files.
	SourceLocale string `yaml:"source_locale,omitempty"`
	// TargetLanguage is the target language, as a locale code or name.
	TargetLanguage string `yaml:"target_language,omitempty"`

	// Provider selects the AI backend: "google" or "openai".
	Provider string `yaml:"provider,omitempty"`
	// Model is the model name for the provider.
	Model string `yaml:"model,omitempty"`
	// Temperature for the model.
	Temperature float64 `yaml:"temperature,omitempty"`
	// MaxConcurrent caps in-flight translation requests.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`
	// RequestDelayMS is the pause between launching batches.
	RequestDelayMS int `yaml:"request_delay_ms,omitempty"`
	// BatchSize is the number of strings per request.
	BatchSize int `yaml:"batch_size,omitempty"`

	// OutputPath is where the aggregate translation JSON is written.
	OutputPath string `yaml:"output_path,omitempty"`
	// Apply writes merged translations back into files.
	Apply bool `yaml:"apply,omitempty"`
	// OutputDir receives merged copies instead of in-place writes.
	// Required when Apply is set.
	OutputDir string `yaml:"output_dir,omitempty"`
	// Backup copies originals aside before in-place writes.
	// Defaults to true.
	Backup *bool `yaml:"backup,omitempty"`
	// Package builds a resource pack zip from translated lang entries.
	// Defaults to true.
	Package *bool `yaml:"package,omitempty"`
	// PackPath is the resource pack output path.
	PackPath string `yaml:"pack_path,omitempty"`

	// ScanJars reads lang files out of mods/*.jar. Defaults to true.
	ScanJars *bool `yaml:"scan_jars,omitempty"`
	// GlossaryPath persists the glossary between runs.
	GlossaryPath string `yaml:"glossary_path,omitempty"`
	// Incremental skips sites unchanged since the last run
	// (packlate.lock). Defaults to true.
	Incremental *bool `yaml:"incremental,omitempty"`
	// Prompt overrides the system prompt.
	Prompt string `yaml:"prompt,omitempty"`
}

// BackupEnabled resolves the Backup default (true).
func (f *File) BackupEnabled() bool {
	return f.Backup == nil || *f.Backup
}

// PackageEnabled resolves the Package default (true).
func (f *File) PackageEnabled() bool {
	return f.Package == nil || *f.Package
}

// ScanJarsEnabled resolves the ScanJars default (true).
func (f *File) ScanJarsEnabled() bool {
	return f.ScanJars == nil || *f.ScanJars
}

// IncrementalEnabled resolves the Incremental default (true).
func (f *File) IncrementalEnabled() bool {
	return f.Incremental == nil || *f.Incremental
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads packlate.yaml from the given directory. Returns an empty
// config (not nil) if no file exists, so flags alone can drive a run.
func Load(rootDir string) (*File, error) {
	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if f.ModpackPath == "" {
		f.ModpackPath = rootDir
	} else if !filepath.IsAbs(f.ModpackPath) {
		f.ModpackPath = filepath.Join(rootDir, f.ModpackPath)
	}

	return &f, nil
}

// Save writes the config to dir/packlate.yaml.
func (f *File) Save(dir string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Modpack detection
// ---------------------------------------------------------------------------

// modpackMarkers are directories whose presence marks a modpack root.
var modpackMarkers = []string{"mods", "kubejs", "config", "resourcepacks"}

// DetectModpack reports whether dir looks like a modpack installation and
// which marker directories it has.
func DetectModpack(dir string) (bool, []string) {
	var found []string
	for _, marker := range modpackMarkers {
		if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && info.IsDir() {
			found = append(found, marker)
		}
	}
	return len(found) > 0, found
}

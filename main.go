// packlate — Minecraft modpack translator: collects lang files, KubeJS
// scripts, and configs, and translates them with AI while preserving
// file formatting.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/modpack-tools/packlate/config"
	"github.com/modpack-tools/packlate/glossary"
	"github.com/modpack-tools/packlate/i18n"
	"github.com/modpack-tools/packlate/langmeta"
	"github.com/modpack-tools/packlate/pipeline"
	"github.com/modpack-tools/packlate/settings"
	"github.com/modpack-tools/packlate/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "packlate",
		Short: "Minecraft modpack translator with AI backends",
		Long: `packlate — Minecraft modpack translator.

Collects translatable text from a modpack (lang JSON files, KubeJS scripts,
config files, optionally lang files inside mod JARs), translates it with an
AI backend while preserving formatting codes and file layout byte-for-byte,
and can package the result as a resource pack.

Commands:
  scan        Show what the modpack contains and what needs translation
  translate   Translate the modpack (dry-run, aggregate output, or apply)
  glossary    Build a glossary from existing translations
  auth        Manage provider API keys

AI Providers:
  google   Google AI (Gemini) — API key
  openai   OpenAI or any OpenAI-compatible endpoint — API key`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Modpack root directory")

	root.AddCommand(
		newScanCmd(),
		newTranslateCmd(),
		newGlossaryCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("packlate version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// scan (read-only: modpack contents + translation coverage)
// ---------------------------------------------------------------------------

func newScanCmd() *cobra.Command {
	var (
		sourceLocale string
		lang         string
		noJars       bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Show modpack contents and translation coverage",
		Long: `Scan the modpack and show collected files, translatable string counts,
and existing translation coverage. Does not modify any files and does not
contact any AI provider.`,
		Run: func(cmd *cobra.Command, args []string) {
			runScan(sourceLocale, lang, !noJars)
		},
	}

	cmd.Flags().StringVar(&sourceLocale, "source-locale", "", "Source locale code (default en_us)")
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Target language or locale code for coverage stats")
	cmd.Flags().BoolVar(&noJars, "no-jars", false, "Skip lang files inside mods/*.jar")

	return cmd
}

func runScan(sourceLocale, lang string, scanJars bool) {
	if ok, _ := config.DetectModpack(rootDir); !ok {
		logWarning("%s does not look like a modpack root (no mods/, kubejs/, config/, or resourcepacks/ directory)", rootDir)
	}

	meta := langmeta.Resolve(lang)

	logInfo("%s", i18n.T("Scanning modpack..."))
	opts := pipeline.Options{
		Root:         rootDir,
		SourceLocale: sourceLocale,
		TargetLocale: meta.Code,
		ScanJars:     scanJars,
		DryRun:       true,
		OnError:      logError,
	}
	report, err := pipeline.New(opts).Run(context.Background())
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	logInfo(i18n.N("Found %d file", "Found %d files", report.Files), report.Files)
	fmt.Fprintf(os.Stderr, "  %-22s %d\n", "translatable strings:", report.UnitsTotal)
	if lang != "" {
		fmt.Fprintf(os.Stderr, "  %-22s %d\n", "already translated:", report.UnitsReused)
		fmt.Fprintf(os.Stderr, "  %-22s %d\n", "needing translation:", report.UnitsDispatched)
		fmt.Fprintf(os.Stderr, "  %-22s %d terms\n", "glossary:", report.GlossaryTerms)
	}
	for _, sk := range report.Skipped {
		logWarning("skipped %s: %s", sk.Path, sk.Reason)
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		// Target selection
		lang         string
		sourceLocale string

		// Provider selection
		provider string
		apiKey   string
		model    string
		baseURL  string

		// Translation behavior
		batchSize   int
		retranslate bool
		prompt      string
		verbose     bool
		dryRun      bool

		// Output
		output    string
		apply     bool
		outputDir string
		noBackup  bool
		noPack    bool
		packPath  string
		glossPath string

		// Collection
		noJars        bool
		noIncremental bool

		// Parallelization
		maxConcurrent int
		requestDelay  time.Duration

		// Network
		timeout     time.Duration
		proxy       string
		maxRetries  int
		temperature float64
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate the modpack using AI",
		Long: `Translate collected modpack text using an AI backend.

Reads packlate.yaml from the modpack root if present; flags override file
values. Without --apply only the aggregate translation JSON is written.
With --apply, originals are backed up and merged translations are written
back (in place, or into --output-dir).

Examples:
  # Dry run (show what would be translated)
  packlate translate --lang korean --dry-run

  # Translate to Korean using Google AI
  packlate translate --lang ko_kr --provider google --model gemini-2.5-flash

  # Apply translations into a copy of the modpack
  packlate translate --lang japanese --apply --output-dir ./translated

  # OpenAI-compatible endpoint
  packlate translate --lang ru_ru --provider openai --model gpt-4o --base-url https://api.example.com/v1`,
		Run: func(cmd *cobra.Command, args []string) {
			runTranslate(translateArgs{
				lang: lang, sourceLocale: sourceLocale,
				provider: provider, apiKey: apiKey, model: model, baseURL: baseURL,
				batchSize: batchSize, retranslate: retranslate, prompt: prompt,
				verbose: verbose, dryRun: dryRun,
				output: output, apply: apply, outputDir: outputDir,
				noBackup: noBackup, noPack: noPack, packPath: packPath,
				glossPath: glossPath, noJars: noJars, noIncremental: noIncremental,
				maxConcurrent: maxConcurrent, requestDelay: requestDelay,
				timeout: timeout, proxy: proxy, maxRetries: maxRetries,
				temperature: temperature,
			})
		},
	}

	// Target selection
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Target language (name or Minecraft locale code, e.g. korean, ko_kr)")
	cmd.Flags().StringVar(&sourceLocale, "source-locale", "", "Source locale code (default en_us)")

	// Provider selection
	cmd.Flags().StringVar(&provider, "provider", "", "AI provider: google, openai (default google)")
	cmd.Flags().StringVar(&model, "model", "", "Model name")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (or GOOGLE_API_KEY/OPENAI_API_KEY/PACKLATE_API_KEY env var)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Custom API base URL")

	// Translation behavior
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Strings per API request (0 = default 40)")
	cmd.Flags().BoolVar(&retranslate, "retranslate", false, "Re-translate strings that already have a translation")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Custom system prompt (use {{targetLang}} placeholder)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable detailed logging")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be translated without calling AI")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Model temperature (0 = default 0.3)")

	// Output
	cmd.Flags().StringVarP(&output, "output", "o", "", "Aggregate translation JSON path")
	cmd.Flags().BoolVar(&apply, "apply", false, "Write merged translations into files")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Write merged files here instead of in place (with --apply)")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Skip .backup copies before in-place writes")
	cmd.Flags().BoolVar(&noPack, "no-package", false, "Skip building the resource pack")
	cmd.Flags().StringVar(&packPath, "pack-path", "", "Resource pack output path")
	cmd.Flags().StringVar(&glossPath, "glossary", "", "Glossary JSON path (persisted between runs)")

	// Collection
	cmd.Flags().BoolVar(&noJars, "no-jars", false, "Skip lang files inside mods/*.jar")
	cmd.Flags().BoolVar(&noIncremental, "no-incremental", false, "Ignore packlate.lock and re-check every string")

	// Parallelization
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Maximum concurrent requests (0 = default 3)")
	cmd.Flags().DurationVar(&requestDelay, "request-delay", 0, "Delay between launching batches")

	// Network
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout (0 = default 120s)")
	cmd.Flags().StringVar(&proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Maximum retries on rate limit (0 = default 3)")

	// Provider completion
	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"google\tGoogle AI (Gemini) — API key required",
			"openai\tOpenAI or compatible endpoint — API key required",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	// Model completion (provider-aware)
	_ = cmd.RegisterFlagCompletionFunc("model", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		p, _ := cmd.Flags().GetString("provider")
		switch p {
		case "openai":
			return []string{"gpt-4o", "gpt-4o-mini", "gpt-5", "gpt-5-mini"}, cobra.ShellCompDirectiveNoFileComp
		default:
			return []string{"gemini-2.5-flash", "gemini-2.5-pro", "gemini-2.0-flash"}, cobra.ShellCompDirectiveNoFileComp
		}
	})

	return cmd
}

type translateArgs struct {
	lang, sourceLocale               string
	provider, apiKey, model, baseURL string
	batchSize                        int
	retranslate                      bool
	prompt                           string
	verbose, dryRun                  bool
	output                           string
	apply                            bool
	outputDir                        string
	noBackup, noPack                 bool
	packPath, glossPath              string
	noJars, noIncremental            bool
	maxConcurrent                    int
	requestDelay, timeout            time.Duration
	proxy                            string
	maxRetries                       int
	temperature                      float64
}

// defaultModels per provider, used when neither flag nor config names one.
var defaultModels = map[string]string{
	translate.ProviderGoogle: "gemini-2.5-flash",
	translate.ProviderOpenAI: "gpt-4o-mini",
}

func runTranslate(a translateArgs) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	// Flags override config file values; an explicit --root beats the
	// config file's modpack_path.
	root := rootDir
	if cfg.ModpackPath != "" && rootDir == "." {
		root = cfg.ModpackPath
	}
	if a.lang == "" {
		a.lang = cfg.TargetLanguage
	}
	if a.sourceLocale == "" {
		a.sourceLocale = cfg.SourceLocale
	}
	if a.provider == "" {
		a.provider = cfg.Provider
	}
	if a.provider == "" {
		a.provider = translate.ProviderGoogle
	}
	if a.model == "" {
		a.model = cfg.Model
	}
	if a.model == "" {
		a.model = defaultModels[a.provider]
	}
	if a.batchSize == 0 {
		a.batchSize = cfg.BatchSize
	}
	if a.maxConcurrent == 0 {
		a.maxConcurrent = cfg.MaxConcurrent
	}
	if a.requestDelay == 0 && cfg.RequestDelayMS > 0 {
		a.requestDelay = time.Duration(cfg.RequestDelayMS) * time.Millisecond
	}
	if a.temperature == 0 {
		a.temperature = cfg.Temperature
	}
	if a.output == "" {
		a.output = cfg.OutputPath
	}
	if !a.apply {
		a.apply = cfg.Apply
	}
	if a.outputDir == "" {
		a.outputDir = cfg.OutputDir
	}
	if a.packPath == "" {
		a.packPath = cfg.PackPath
	}
	if a.glossPath == "" {
		a.glossPath = cfg.GlossaryPath
	}
	if a.prompt == "" {
		a.prompt = cfg.Prompt
	}
	backup := !a.noBackup && cfg.BackupEnabled()
	doPack := !a.noPack && cfg.PackageEnabled()
	scanJars := !a.noJars && cfg.ScanJarsEnabled()
	incremental := !a.noIncremental && cfg.IncrementalEnabled()

	if a.lang == "" {
		logError("No target language specified. Use --lang, e.g.:\n" +
			"  packlate translate --lang korean\n" +
			"  packlate translate --lang ko_kr\n\n" +
			"or set target_language in " + config.FileName)
		os.Exit(1)
	}
	meta := langmeta.Resolve(a.lang)

	if a.provider != translate.ProviderGoogle && a.provider != translate.ProviderOpenAI {
		logError("Unknown provider '%s'. Available: google, openai", a.provider)
		os.Exit(1)
	}

	if ok, _ := config.DetectModpack(root); !ok {
		logWarning("%s does not look like a modpack root (no mods/, kubejs/, config/, or resourcepacks/ directory)", root)
	}

	// Resolve API key from flag, environment, or credentials store
	key := settings.ResolveAPIKey(a.provider, a.apiKey)
	if key == "" && !a.dryRun {
		logError("%s", i18n.T("No API key configured. Set one with 'packlate auth set' or an environment variable."))
		fmt.Fprintf(os.Stderr, "  packlate auth set --provider %s\n", a.provider)
		os.Exit(1)
	}
	if a.baseURL == "" {
		a.baseURL = settings.GetBaseURL(a.provider)
	}

	if a.output == "" {
		a.output = filepath.Join(root, fmt.Sprintf("packlate-%s.json", meta.Code))
	}

	logInfo("Provider: %s, Model: %s", a.provider, a.model)
	logInfo("Target language: %s (%s)", meta.Name, meta.Code)
	if a.maxConcurrent > 0 {
		logInfo("Max concurrent requests: %d", a.maxConcurrent)
	}

	// Setup signal handling for graceful cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logWarning("Interrupted, finishing in-flight requests...")
		cancel()
	}()

	opts := pipeline.Options{
		Root:           root,
		SourceLocale:   a.sourceLocale,
		TargetLocale:   meta.Code,
		TargetLanguage: meta.Name,
		Translate: translate.Options{
			Provider: translate.Provider{
				ID:      a.provider,
				BaseURL: a.baseURL,
				Model:   a.model,
				APIKey:  key,
				Proxy:   a.proxy,
				Timeout: a.timeout,
			},
			BatchSize:     a.batchSize,
			MaxConcurrent: a.maxConcurrent,
			RequestDelay:  a.requestDelay,
			MaxRetries:    a.maxRetries,
			Temperature:   a.temperature,
			Timeout:       a.timeout,
			SystemPrompt:  a.prompt,
			Verbose:       a.verbose,
		},
		DryRun:       a.dryRun,
		Retranslate:  a.retranslate,
		Incremental:  incremental,
		ScanJars:     scanJars,
		OutputPath:   a.output,
		Apply:        a.apply,
		OutputDir:    a.outputDir,
		Backup:       backup,
		Package:      doPack && !a.dryRun,
		PackPath:     a.packPath,
		GlossaryPath: a.glossPath,
		OnStage: func(stage pipeline.Stage, done, total int) {
			if total > 0 {
				logInfo("  %s: %d/%d", stage, done, total)
			} else if a.verbose {
				logInfo("stage: %s", stage)
			}
		},
		OnLog:   logInfo,
		OnError: logError,
	}
	if a.dryRun {
		opts.OutputPath = ""
		opts.Apply = false
	}

	report, err := pipeline.New(opts).Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logWarning("Translation interrupted")
			os.Exit(0)
		}
		logError("Translation failed: %v", err)
		os.Exit(1)
	}

	if a.dryRun {
		logInfo(i18n.N("Found %d file", "Found %d files", report.Files), report.Files)
		logInfo("%d strings would be translated (%d reused)", report.UnitsDispatched, report.UnitsReused)
		if a.verbose {
			for _, site := range report.Untranslated {
				fmt.Fprintf(os.Stderr, "  %s\n", site)
			}
		}
		return
	}

	logInfo(i18n.N("Translated %d string", "Translated %d strings", report.UnitsTranslated), report.UnitsTranslated)
	if n := len(report.Untranslated); n > 0 {
		logWarning("%d strings left untranslated", n)
	}
	for _, msg := range report.BackendErrors {
		logWarning("backend: %s", msg)
	}
	for _, msg := range report.MergeErrors {
		logWarning("merge: %s", msg)
	}
	if len(report.AppliedFiles) > 0 {
		logInfo("Applied %d files", len(report.AppliedFiles))
	}
	if report.PackPath != "" {
		logInfo("Resource pack: %s", report.PackPath)
	}
	logSuccess("%s", i18n.T("Modpack translation complete"))
}

// ---------------------------------------------------------------------------
// glossary
// ---------------------------------------------------------------------------

func newGlossaryCmd() *cobra.Command {
	var (
		lang     string
		savePath string
		limit    int
		noJars   bool
	)

	cmd := &cobra.Command{
		Use:   "glossary",
		Short: "Build a glossary from existing translations",
		Long: `Align source strings with existing translations across the modpack and
build a glossary of recurring terms. The glossary is printed to stdout and
optionally saved as JSON for later runs (--save, or glossary_path in
packlate.yaml).`,
		Run: func(cmd *cobra.Command, args []string) {
			runGlossary(lang, savePath, limit, !noJars)
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Target language or locale code (required)")
	cmd.Flags().StringVar(&savePath, "save", "", "Write the glossary JSON here")
	cmd.Flags().IntVar(&limit, "limit", 30, "Number of entries to print (0 = all)")
	cmd.Flags().BoolVar(&noJars, "no-jars", false, "Skip lang files inside mods/*.jar")
	_ = cmd.MarkFlagRequired("lang")

	return cmd
}

func runGlossary(lang, savePath string, limit int, scanJars bool) {
	meta := langmeta.Resolve(lang)

	tr := pipeline.New(pipeline.Options{
		Root:         rootDir,
		TargetLocale: meta.Code,
		ScanJars:     scanJars,
		DryRun:       true,
		OnError:      logError,
	})
	if _, err := tr.Run(context.Background()); err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	gloss := tr.Snapshot().Glossary()
	if savePath != "" {
		if err := gloss.Save(savePath); err != nil {
			logError("%v", err)
			os.Exit(1)
		}
		logSuccess("Saved %d terms to %s", len(gloss.Entries), savePath)
	}

	if len(gloss.Entries) == 0 {
		logWarning("No existing %s translations found to build a glossary from", meta.Code)
		return
	}
	printGlossary(gloss, limit)
}

func printGlossary(gloss *glossary.Glossary, limit int) {
	entries := gloss.Entries
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	width := 0
	for _, e := range entries {
		if len(e.Term) > width {
			width = len(e.Term)
		}
	}
	for _, e := range entries {
		fmt.Printf("  %-*s  %s (%d)\n", width, e.Term, e.Translation, e.Count)
	}
	if limit > 0 && len(gloss.Entries) > limit {
		fmt.Printf("  ... and %d more\n", len(gloss.Entries)-limit)
	}
}

// ---------------------------------------------------------------------------
// auth (API key management)
// ---------------------------------------------------------------------------

// authProviders is the ordered list of providers for auth commands.
var authProviders = []struct {
	id      string
	name    string
	helpURL string
	example string
}{
	{
		id:      translate.ProviderGoogle,
		name:    "Google AI Studio",
		helpURL: "https://aistudio.google.com/apikey",
		example: "packlate translate --lang korean --provider google",
	},
	{
		id:      translate.ProviderOpenAI,
		name:    "OpenAI",
		helpURL: "https://platform.openai.com/api-keys",
		example: "packlate translate --lang korean --provider openai --model gpt-4o-mini",
	},
}

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: `Manage API keys for AI providers.

Keys are stored in ` + settings.FilePath() + ` (0600).
Environment variables override stored keys:
  GOOGLE_API_KEY     Google AI
  OPENAI_API_KEY     OpenAI
  PACKLATE_API_KEY   Any provider

Examples:
  packlate auth set --provider google     Store a Google AI API key
  packlate auth set --provider openai     Store an OpenAI key (and endpoint)
  packlate auth remove --provider google  Remove the Google key
  packlate auth remove                    Remove all credentials
  packlate auth list                      Show stored credentials`,
	}

	cmd.AddCommand(
		newAuthSetCmd(),
		newAuthRemoveCmd(),
		newAuthListCmd(),
	)

	return cmd
}

func newAuthSetCmd() *cobra.Command {
	var (
		provider string
		baseURL  string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store an API key for a provider",
		Run: func(cmd *cobra.Command, args []string) {
			if provider == "" {
				logError("No provider specified. Use --provider google or --provider openai.")
				os.Exit(1)
			}
			authSetAPIKey(provider, baseURL)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider ID: google, openai")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Custom API base URL (OpenAI-compatible endpoints)")

	return cmd
}

func authSetAPIKey(providerID, baseURL string) {
	var name, helpURL, example string
	for _, p := range authProviders {
		if p.id == providerID {
			name, helpURL, example = p.name, p.helpURL, p.example
		}
	}
	if name == "" {
		logError("Unknown provider '%s'. Available: google, openai", providerID)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "\n%s%s — API Key Setup%s\n", colorBlue, name, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintln(os.Stderr)
	if helpURL != "" {
		fmt.Fprintf(os.Stderr, "  Get your API key from: %s%s%s\n\n", colorGreen, helpURL, colorReset)
	}

	// Check if already configured
	existing := settings.GetAPIKey(providerID)
	if existing != "" {
		fmt.Fprintf(os.Stderr, "  Current key: %s%s%s\n", colorYellow, settings.MaskKey(existing), colorReset)
		fmt.Fprintf(os.Stderr, "  Enter new key to replace, or press Enter to keep: ")
	} else {
		fmt.Fprintf(os.Stderr, "  Enter API key: ")
	}

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		logError("No input received")
		os.Exit(1)
	}
	key := strings.TrimSpace(scanner.Text())

	if key == "" {
		if existing != "" {
			logInfo("Keeping existing key")
			return
		}
		logError("No API key provided")
		os.Exit(1)
	}

	var err error
	if baseURL != "" {
		err = settings.SetAPIKeyWithBaseURL(providerID, key, baseURL)
	} else {
		err = settings.SetAPIKey(providerID, key)
	}
	if err != nil {
		logError("Failed to save API key: %v", err)
		os.Exit(1)
	}

	logSuccess("%s API key saved!", name)
	fmt.Fprintf(os.Stderr, "\n  You can now use: %s\n\n", example)
}

func newAuthRemoveCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:     "remove",
		Aliases: []string{"rm"},
		Short:   "Remove stored credentials",
		Run: func(cmd *cobra.Command, args []string) {
			if provider == "" {
				if err := settings.RemoveAll(); err != nil {
					logError("%v", err)
					os.Exit(1)
				}
				logSuccess("All credentials removed")
				return
			}
			if err := settings.Remove(provider); err != nil {
				logError("%v", err)
				os.Exit(1)
			}
			logSuccess("Credentials for %s removed", provider)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider ID (omit to remove all)")

	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials and status",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(os.Stderr, "\n%sStored Credentials%s\n", colorBlue, colorReset)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

			fmt.Fprintf(os.Stderr, "\n  %sAPI Key Providers%s\n", colorYellow, colorReset)
			for _, p := range authProviders {
				entry := settings.Get(p.id)
				if entry != nil && entry.Key != "" {
					status := fmt.Sprintf("%sconfigured%s (key: %s)", colorGreen, colorReset, settings.MaskKey(entry.Key))
					if entry.BaseURL != "" {
						status += fmt.Sprintf("\n  %14s endpoint: %s", "", entry.BaseURL)
					}
					fmt.Fprintf(os.Stderr, "  %-14s %s\n", p.id, status)
				} else {
					fmt.Fprintf(os.Stderr, "  %-14s %snot configured%s\n", p.id, colorRed, colorReset)
				}
			}

			// Environment variables
			fmt.Fprintf(os.Stderr, "\n  %sEnvironment Variables%s\n", colorYellow, colorReset)
			for _, env := range []string{"GOOGLE_API_KEY", "OPENAI_API_KEY", "PACKLATE_API_KEY"} {
				if val := os.Getenv(env); val != "" {
					fmt.Fprintf(os.Stderr, "  %s: %s%s%s (overrides stored keys)\n", env, colorGreen, settings.MaskKey(val), colorReset)
				} else {
					fmt.Fprintf(os.Stderr, "  %s: %snot set%s\n", env, colorRed, colorReset)
				}
			}
			fmt.Fprintln(os.Stderr)
		},
	}
}

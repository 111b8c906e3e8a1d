// Package translate implements AI-powered translation of extracted modpack
// strings using HTTP API-based providers: Google AI (Gemini) via its native
// generateContent endpoint, and OpenAI via the official SDK with structured
// output. Batches run in parallel under a concurrency cap with a shared
// rate-limit pause, and a batch whose retries are exhausted is marked
// untranslated instead of failing the run.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modpack-tools/packlate/extract"
	"github.com/modpack-tools/packlate/glossary"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderGoogle = "google"
	ProviderOpenAI = "openai"
)

// Provider describes one AI backend endpoint.
type Provider struct {
	ID      string
	Name    string
	BaseURL string
	Model   string
	APIKey  string
	Proxy   string
	Timeout time.Duration
}

// ---------------------------------------------------------------------------
// System prompt
// ---------------------------------------------------------------------------

// DefaultSystemPrompt instructs the model for Minecraft modpack text.
const DefaultSystemPrompt = `You are a professional translator specializing in game localization. You are translating Minecraft modpack text: item and block names, tooltips, quest text, and config descriptions.

CONTEXT AWARENESS:
- The audience is Minecraft players
- Tone: matches the game's register, concise for item names, descriptive for tooltips
- Use established Minecraft terminology in {{targetLang}} (the official game translation is the reference)

IMPORTANT TRANSLATION PRINCIPLES:
- Translate for NATURALNESS and FLUENCY in {{targetLang}}, not word-for-word
- Keep item and block names short, in the style of the official game translation
- Follow the provided glossary for recurring modpack terms

TECHNICAL REQUIREMENTS:
- Return ONLY a JSON array of translated strings, one for each input entry, in the same order.
- Preserve all formatting codes exactly as-is (§a, §l, &6, %s, %d, {0}).
- Preserve leading/trailing whitespace and punctuation patterns.
- Keep mod names, brand names and proper nouns unchanged.
- Never translate resource identifiers (words like minecraft:diamond).
- Return ONLY the JSON array, no explanations or markdown code blocks.`

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls a translation run.
type Options struct {
	// Provider is the backend endpoint to use.
	Provider Provider
	// TargetLanguage is the human-readable target language name,
	// substituted for {{targetLang}} in the system prompt.
	TargetLanguage string
	// Glossary supplies preferred translations for recurring terms.
	Glossary *glossary.Glossary
	// BatchSize is the number of strings per request. 0 means 40.
	BatchSize int
	// MaxConcurrent caps in-flight requests. 0 means 3.
	MaxConcurrent int
	// RequestDelay is the pause between launching batches.
	RequestDelay time.Duration
	// MaxRetries per batch. 0 means 3.
	MaxRetries int
	// Temperature for the model. 0 means 0.3.
	Temperature float64
	// Timeout per request. 0 means 120s.
	Timeout time.Duration
	// SystemPrompt overrides the default system prompt.
	SystemPrompt string
	// OnProgress is called after each batch completes.
	OnProgress func(done, total int)
	// OnLog emits log messages during translation.
	OnLog func(format string, args ...any)
	// OnError emits error messages during translation.
	OnError func(format string, args ...any)
	// Verbose enables detailed logging.
	Verbose bool
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

func (o *Options) effectiveBatchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return 40
}

func (o *Options) effectiveMaxConcurrent() int {
	if o.MaxConcurrent > 0 {
		return o.MaxConcurrent
	}
	return 3
}

func (o *Options) effectiveMaxRetries() int {
	if o.MaxRetries > 0 {
		return o.MaxRetries
	}
	return 3
}

func (o *Options) effectiveTemperature() float64 {
	if o.Temperature > 0 {
		return o.Temperature
	}
	return 0.3
}

func (o *Options) effectiveTimeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	if o.Provider.Timeout > 0 {
		return o.Provider.Timeout
	}
	return 120 * time.Second
}

// resolvedPrompt returns the system prompt with {{targetLang}} replaced and
// the glossary context appended.
func (o *Options) resolvedPrompt(sources []string) string {
	prompt := o.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	prompt = strings.ReplaceAll(prompt, "{{targetLang}}", o.TargetLanguage)

	if o.Glossary != nil {
		entries := o.Glossary.Context(sources, 50)
		if len(entries) > 0 {
			var b strings.Builder
			b.WriteString(prompt)
			b.WriteString("\n\nGLOSSARY (use these translations for these terms):\n")
			for _, e := range entries {
				fmt.Fprintf(&b, "- %s => %s\n", e.Term, e.Translation)
			}
			prompt = b.String()
		}
	}
	return prompt
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// Backend error kinds, for the report and for retry decisions.
const (
	ErrRateLimited = "rate-limited"
	ErrAuth        = "auth"
	ErrTimeout     = "timeout"
	ErrMalformed   = "malformed"
	ErrServer      = "server"
)

// BackendError is a failure reported by a translation backend.
type BackendError struct {
	Kind string
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error (%s): %v", e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Backend interface
// ---------------------------------------------------------------------------

// Backend translates one batch of strings. Implementations may return
// fewer translations than inputs; the dispatcher matches by position and
// marks the rest untranslated.
type Backend interface {
	Translate(ctx context.Context, batch []string, systemPrompt string) ([]string, error)
}

// NewBackend constructs the backend for the configured provider.
func NewBackend(opts Options) (Backend, error) {
	switch opts.Provider.ID {
	case ProviderGoogle, "":
		return newGoogleBackend(opts), nil
	case ProviderOpenAI:
		return newOpenAIBackend(opts), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", opts.Provider.ID)
	}
}

// ---------------------------------------------------------------------------
// Rate limit state (global pause for parallel workers)
// ---------------------------------------------------------------------------

type rateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *rateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

func (r *rateLimitState) pause(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauseEnd = time.Now().Add(duration)
	atomic.StoreInt32(&r.paused, 1)
}

func (r *rateLimitState) unpause() {
	atomic.StoreInt32(&r.paused, 0)
}

// waitIfPaused blocks until the rate limit pause is over.
func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			r.unpause()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(remaining, 100*time.Millisecond)):
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// HTTP client with proxy support
// ---------------------------------------------------------------------------

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// ---------------------------------------------------------------------------
// Google backend (Gemini generateContent over raw HTTP)
// ---------------------------------------------------------------------------

type googleBackend struct {
	opts   Options
	rl     *rateLimitState
	client *http.Client
}

func newGoogleBackend(opts Options) *googleBackend {
	return &googleBackend{
		opts:   opts,
		rl:     &rateLimitState{},
		client: makeHTTPClient(opts.Provider.Proxy, opts.effectiveTimeout()),
	}
}

const defaultGoogleBaseURL = "https://generativelanguage.googleapis.com"

func (g *googleBackend) Translate(ctx context.Context, batch []string, systemPrompt string) ([]string, error) {
	userPrompt, err := buildUserPrompt(batch)
	if err != nil {
		return nil, &BackendError{Kind: ErrMalformed, Err: err}
	}

	body, err := buildGeminiRequest(systemPrompt, userPrompt, g.opts.effectiveTemperature())
	if err != nil {
		return nil, &BackendError{Kind: ErrMalformed, Err: err}
	}

	baseURL := g.opts.Provider.BaseURL
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(baseURL, "/"), g.opts.Provider.Model)

	text, err := g.callWithRetry(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	translations, err := parseTranslations(text, len(batch))
	if err != nil {
		return nil, &BackendError{Kind: ErrMalformed, Err: err}
	}
	return translations, nil
}

func (g *googleBackend) callWithRetry(ctx context.Context, endpoint string, body []byte) (string, error) {
	maxRetries := g.opts.effectiveMaxRetries()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Wait if globally paused (rate limit from another worker)
		if err := g.rl.waitIfPaused(ctx); err != nil {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
		if err != nil {
			return "", &BackendError{Kind: ErrMalformed, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		if g.opts.Provider.APIKey != "" {
			req.Header.Set("x-goog-api-key", g.opts.Provider.APIKey)
		}

		if g.opts.Verbose {
			g.opts.log("  attempt %d: POST %s", attempt+1, endpoint)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if attempt < maxRetries {
				wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(wait):
				}
				continue
			}
			return "", &BackendError{Kind: ErrTimeout, Err: err}
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			retryDelay := parseRetryDelay(respBody)
			g.opts.log("  rate limited, waiting %v (attempt %d/%d)", retryDelay, attempt+1, maxRetries)
			// Globally pause all workers
			g.rl.pause(retryDelay)
			if attempt < maxRetries {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(retryDelay):
				}
				g.rl.unpause()
				continue
			}
			return "", &BackendError{Kind: ErrRateLimited, Err: fmt.Errorf("rate limited after %d retries", maxRetries)}

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return "", &BackendError{Kind: ErrAuth, Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 300))}

		case resp.StatusCode >= 500:
			if attempt < maxRetries {
				wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(wait):
				}
				continue
			}
			return "", &BackendError{Kind: ErrServer, Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 300))}

		case resp.StatusCode != http.StatusOK:
			return "", &BackendError{Kind: ErrMalformed, Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 300))}
		}

		text, err := extractResponseText(respBody)
		if err != nil {
			return "", &BackendError{Kind: ErrMalformed, Err: err}
		}
		return text, nil
	}

	return "", &BackendError{Kind: ErrServer, Err: fmt.Errorf("exhausted all %d retries", maxRetries)}
}

// buildGeminiRequest builds a generateContent request body.
func buildGeminiRequest(systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	req := map[string]any{
		"system_instruction": content{Parts: []part{{Text: systemPrompt}}},
		"contents":           []content{{Role: "user", Parts: []part{{Text: userPrompt}}}},
		"generationConfig": map[string]any{
			"temperature": temperature,
		},
	}
	return json.Marshal(req)
}

// extractResponseText pulls the text out of a generateContent response:
// candidates[0].content.parts[0].text.
func extractResponseText(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if errObj, ok := raw["error"]; ok {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", fmt.Errorf("API error: %s", msg)
			}
		}
		return "", fmt.Errorf("API error: %v", errObj)
	}

	if candidates, ok := raw["candidates"].([]any); ok && len(candidates) > 0 {
		if candidate, ok := candidates[0].(map[string]any); ok {
			if content, ok := candidate["content"].(map[string]any); ok {
				if parts, ok := content["parts"].([]any); ok && len(parts) > 0 {
					if part, ok := parts[0].(map[string]any); ok {
						if text, ok := part["text"].(string); ok {
							return text, nil
						}
					}
				}
			}
		}
	}

	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

// parseRetryDelay extracts the retry delay from a 429 response body.
// Looks for Google's RetryInfo detail with retryDelay field.
// Returns the delay to wait, defaulting to 60s + 5s buffer.
func parseRetryDelay(body []byte) time.Duration {
	const defaultDelay = 65 * time.Second // 60s + 5s buffer

	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return defaultDelay
	}

	for _, detail := range errResp.Error.Details {
		if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
			// Parse duration like "30s", "45.123s"
			d := strings.TrimSuffix(detail.RetryDelay, "s")
			if secs, err := strconv.ParseFloat(d, 64); err == nil {
				return time.Duration(secs*1000)*time.Millisecond + 5*time.Second
			}
		}
	}

	return defaultDelay
}

// ---------------------------------------------------------------------------
// Prompt and response helpers
// ---------------------------------------------------------------------------

// buildUserPrompt serialises the batch as a numbered JSON array the model
// translates element by element.
func buildUserPrompt(batch []string) (string, error) {
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Translate each of these %d strings. Return a JSON array with exactly %d translated strings in the same order:\n\n%s",
		len(batch), len(batch), string(data)), nil
}

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// parseTranslations extracts a JSON array of strings from the AI response text.
func parseTranslations(content string, expected int) ([]string, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code blocks if present
	if m := markdownCodeBlock.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	// Try to find a JSON array in the response
	startIdx := strings.Index(content, "[")
	endIdx := strings.LastIndex(content, "]")
	if startIdx >= 0 && endIdx > startIdx {
		content = content[startIdx : endIdx+1]
	}

	var translations []string
	if err := json.Unmarshal([]byte(content), &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation response as JSON array: %w\nResponse: %s", err, truncate(content, 300))
	}

	if len(translations) == 0 {
		return nil, fmt.Errorf("got 0 translations, expected %d", expected)
	}

	return translations, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// Result is the outcome of a translation run: text per site, plus the sites
// and errors of whatever could not be translated.
type Result struct {
	// Translations maps site to translated text.
	Translations map[extract.Site]string
	// Untranslated lists sites whose batch failed or came back short.
	Untranslated []extract.Site
	// Errors holds the backend errors hit during the run.
	Errors []error
}

// batch is one dispatch unit.
type batch struct {
	units []extract.Unit
}

// splitUnits splits units into batches of at most size entries.
func splitUnits(units []extract.Unit, size int) []batch {
	if size <= 0 {
		size = len(units)
	}
	var out []batch
	for start := 0; start < len(units); start += size {
		end := start + size
		if end > len(units) {
			end = len(units)
		}
		out = append(out, batch{units: units[start:end]})
	}
	return out
}

// Dispatch translates units through the backend. Batches run in parallel
// under the concurrency cap with a launch delay between them; a batch whose
// retries are exhausted marks its units untranslated and the run continues.
// The result is keyed by site, so completion order never affects output.
func Dispatch(ctx context.Context, backend Backend, units []extract.Unit, opts Options) (*Result, error) {
	res := &Result{Translations: make(map[extract.Site]string, len(units))}
	if len(units) == 0 {
		return res, nil
	}

	batches := splitUnits(units, opts.effectiveBatchSize())
	total := len(units)
	var done int64
	var mu sync.Mutex

	err := runParallelGeneric(ctx, batches, opts.effectiveMaxConcurrent(), opts.RequestDelay, func(ctx context.Context, b batch) error {
		sources := make([]string, len(b.units))
		for i, u := range b.units {
			sources[i] = u.Source
		}

		translations, err := backend.Translate(ctx, sources, opts.resolvedPrompt(sources))

		mu.Lock()
		defer mu.Unlock()

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			opts.logError("batch of %d failed: %v", len(b.units), err)
			res.Errors = append(res.Errors, err)
			for _, u := range b.units {
				res.Untranslated = append(res.Untranslated, u.Site)
			}
		} else {
			// Positional matching; a short response leaves the tail
			// untranslated.
			for i, u := range b.units {
				if i < len(translations) && strings.TrimSpace(translations[i]) != "" {
					res.Translations[u.Site] = translations[i]
				} else {
					res.Untranslated = append(res.Untranslated, u.Site)
				}
			}
		}

		newDone := atomic.AddInt64(&done, int64(len(b.units)))
		if opts.OnProgress != nil {
			opts.OnProgress(int(newDone), total)
		}
		return nil
	})

	if err != nil {
		return res, err
	}
	return res, nil
}

// ---------------------------------------------------------------------------
// Generic parallel runner
// ---------------------------------------------------------------------------

// runParallelGeneric runs any typed tasks in parallel with concurrency limit and delay.
func runParallelGeneric[T any](ctx context.Context, tasks []T, maxConcurrent int, delay time.Duration, fn func(context.Context, T) error) error {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for i, task := range tasks {
		if ctx.Err() != nil {
			break
		}

		// Delay between launching tasks (skip first)
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
			if ctx.Err() != nil {
				break
			}
		}

		sem <- struct{}{}
		wg.Add(1)

		go func(t T) {
			defer func() {
				<-sem
				wg.Done()
			}()

			if err := fn(ctx, t); err != nil {
				errOnce.Do(func() {
					firstErr = err
				})
			}
		}(task)
	}

	wg.Wait()
	if firstErr == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return firstErr
}

package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// openAIBackend translates through the official OpenAI SDK using a
// structured-output schema, so the response is a JSON object rather than
// free text that has to be fished out of markdown.
type openAIBackend struct {
	client openai.Client
	opts   Options
}

func newOpenAIBackend(opts Options) *openAIBackend {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.Provider.APIKey)}
	if opts.Provider.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.Provider.BaseURL))
	}
	return &openAIBackend{
		client: openai.NewClient(reqOpts...),
		opts:   opts,
	}
}

// translationList is the structured-output shape the model fills in.
type translationList struct {
	Translations []string `json:"translations" jsonschema:"required" jsonschema_description:"Translated strings, one per input, same order"`
}

var translationSchema = generateSchema[translationList]()

func (b *openAIBackend) Translate(ctx context.Context, batch []string, systemPrompt string) ([]string, error) {
	userPrompt, err := buildUserPrompt(batch)
	if err != nil {
		return nil, &BackendError{Kind: ErrMalformed, Err: err}
	}

	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        "TranslationList",
			Schema:      translationSchema,
			Strict:      openai.Bool(true),
			Description: openai.String("Translated strings JSON"),
			Type:        "json_schema",
		},
	}

	params := responses.ResponseNewParams{
		Model:        b.opts.Provider.Model,
		Instructions: openai.String(systemPrompt),
		Temperature:  openai.Float(b.opts.effectiveTemperature()),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(userPrompt, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}

	resp, err := callWithRetry(ctx, b.opts.effectiveMaxRetries(), func(ctx context.Context) (*responses.Response, error) {
		return b.client.Responses.New(ctx, params)
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	var out translationList
	if err := json.Unmarshal([]byte(resp.OutputText()), &out); err != nil {
		return nil, &BackendError{Kind: ErrMalformed, Err: fmt.Errorf("decoding structured output: %w", err)}
	}
	if len(out.Translations) == 0 {
		return nil, &BackendError{Kind: ErrMalformed, Err: fmt.Errorf("got 0 translations, expected %d", len(batch))}
	}
	return out.Translations, nil
}

var (
	rateLimitWaitTimes   = []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second}
	serverErrorWaitTimes = []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second}
)

func waitTime(times []time.Duration, attempt int) time.Duration {
	if attempt >= len(times) {
		return times[len(times)-1]
	}
	return times[attempt]
}

func callWithRetry(ctx context.Context, maxRetries int, call func(context.Context) (*responses.Response, error)) (*responses.Response, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := call(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if isRateLimitError(err) {
				if attempt < maxRetries-1 {
					if err := sleepCtx(ctx, waitTime(rateLimitWaitTimes, attempt)); err != nil {
						return nil, err
					}
					continue
				}
			} else if isServerError(err) {
				if attempt < maxRetries-1 {
					if err := sleepCtx(ctx, waitTime(serverErrorWaitTimes, attempt)); err != nil {
						return nil, err
					}
					continue
				}
			}
			return nil, err
		}
		return resp, nil
	}
	return nil, fmt.Errorf("failed after %d attempts due to OpenAI API issues", maxRetries)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "invalid api key") ||
		strings.Contains(errStr, "unauthorized")
}

func classifyOpenAIError(err error) error {
	switch {
	case isRateLimitError(err):
		return &BackendError{Kind: ErrRateLimited, Err: err}
	case isAuthError(err):
		return &BackendError{Kind: ErrAuth, Err: err}
	case isServerError(err):
		return &BackendError{Kind: ErrServer, Err: err}
	default:
		return &BackendError{Kind: ErrTimeout, Err: err}
	}
}

// ---------------------------------------------------------------------------
// Structured output schema helper
// ---------------------------------------------------------------------------

func generateSchema[T any]() map[string]interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	schemaObj, err := schemaToMap(schema)
	if err != nil {
		panic(err)
	}
	ensureOpenAICompliance(schemaObj)
	return schemaObj
}

func schemaToMap(schema *jsonschema.Schema) (map[string]interface{}, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

// ensureOpenAICompliance tightens a reflected schema to the subset the
// structured-output API accepts: objects must close additionalProperties
// and list every property as required.
func ensureOpenAICompliance(schema map[string]interface{}) {
	if schemaType, ok := schema[typeKey].(string); ok && schemaType == "object" {
		schema[additionalPropertiesKey] = false

		if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
			var requiredFields []string
			for propName := range properties {
				requiredFields = append(requiredFields, propName)
			}
			if len(requiredFields) > 0 {
				schema[requiredKey] = requiredFields
			}
		}
	}

	if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]interface{}); ok {
				ensureOpenAICompliance(propMap)
			}
		}
	}

	if items, ok := schema[itemsKey].(map[string]interface{}); ok {
		ensureOpenAICompliance(items)
	}

	if additionalProps, ok := schema[additionalPropertiesKey].(map[string]interface{}); ok {
		ensureOpenAICompliance(additionalProps)
	}
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider implements IntentExtractor and Narrator using Google's Gemini models.
type GeminiProvider struct {
	client         *genai.Client
	intentModel    *genai.GenerativeModel
	narrationModel *genai.GenerativeModel
}

// NewGeminiProvider initializes a new Gemini client.
// apiKey should be provided from configuration; modelName may be empty.
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	// Low temperature: the parse must be as repeatable as the model allows.
	intentModel := client.GenerativeModel(modelName)
	intentModel.ResponseMIMEType = "application/json"
	intentModel.ResponseSchema = intentSchema
	intentModel.SetTemperature(0.1)
	intentModel.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(intentInstruction)}}

	narrationModel := client.GenerativeModel(modelName)
	narrationModel.ResponseMIMEType = "application/json"
	narrationModel.SetTemperature(0.4)
	narrationModel.SetMaxOutputTokens(256)

	return &GeminiProvider{
		client:         client,
		intentModel:    intentModel,
		narrationModel: narrationModel,
	}, nil
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() {
	p.client.Close()
}

// ExtractIntent analyzes a venue-search query and returns its structured intent.
func (p *GeminiProvider) ExtractIntent(ctx context.Context, query string, currentContext map[string]string) (*IntentResult, error) {
	prompt := fmt.Sprintf("%s\n\nUser Query: %s", buildContextBlock(currentContext), query)

	text, err := generate(ctx, p.intentModel, prompt)
	if err != nil {
		return nil, err
	}

	var result IntentResult
	if err := json.Unmarshal([]byte(cleanJSONString(text)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse intent JSON: %w", err)
	}
	return &result, nil
}

// Complete produces the assistant message for a finished search.
func (p *GeminiProvider) Complete(ctx context.Context, prompt NarrationPrompt, outputSchema map[string]any) (*AssistantOutput, error) {
	// The model is shared across requests, so the schema goes on a copy.
	model := *p.narrationModel
	if s := schemaFromMap(outputSchema); s != nil {
		model.ResponseSchema = s
	}

	payload, err := json.Marshal(prompt)
	if err != nil {
		return nil, fmt.Errorf("marshal narration prompt: %w", err)
	}
	text, err := generate(ctx, &model, buildNarrationPrompt(prompt.Language, string(payload)))
	if err != nil {
		return nil, err
	}

	var out AssistantOutput
	if err := json.Unmarshal([]byte(cleanJSONString(text)), &out); err != nil {
		return nil, fmt.Errorf("failed to parse narration JSON: %w", err)
	}
	return &out, nil
}

func generate(ctx context.Context, model *genai.GenerativeModel, prompt string) (string, error) {
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		if isQuotaError(err) {
			return "", fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("gemini generation error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(responseText.String()) == "" {
		return "", ErrEmptyResponse
	}
	return responseText.String(), nil
}

func isQuotaError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "Error 429")
}

func buildContextBlock(ctxMap map[string]string) string {
	uiLanguage := ctxMap["ui_language"]
	lastLocation := ctxMap["last_location"]
	currentTime := ctxMap["current_time"]

	if uiLanguage == "" {
		uiLanguage = "UNKNOWN"
	}
	if lastLocation == "" {
		lastLocation = "UNKNOWN_LOCATION"
	}
	if currentTime == "" {
		currentTime = "UNKNOWN_TIME"
	}

	return fmt.Sprintf(`Context:
- Current System Time: %s
- Session UI Language: %s
- Last Searched Location: %s`, currentTime, uiLanguage, lastLocation)
}

func buildNarrationPrompt(lang, payload string) string {
	return fmt.Sprintf(`You write the one- or two-sentence helper message shown above venue search results.

RULES:
1. Write ONLY in the language with BCP 47 code "%s". Do not mix languages.
2. Be concrete and short. No markdown, no emoji, no internal codes such as NORMAL, RECOVERY, CLARIFY or NO_RESULTS.
3. mode NORMAL: summarise what was found.
   mode RECOVERY: say briefly why nothing useful came back and suggest one next step.
   mode CLARIFY: set "question" to a single follow-up question about the location.
4. Output JSON: {"message": string, "question": string (optional)}

Search context (JSON):
%s`, lang, payload)
}

const intentInstruction = `Role: You parse free-text venue-search queries (restaurants, cafes, bars, shops) in any language.

RULES:
1. TERMS: extract the food or venue category terms in English, lower case (e.g. "拉麵" -> "ramen", "פיצה" -> "pizza").
2. LOCATION: copy the place name exactly as written. If the user says "near me", "nearby", "附近" set "near_me": true and leave "location" null.
3. OPEN NOW (tri-state, CRITICAL):
   - "open now", "營業中", "abierto" -> "open_now": true
   - "closed now", "currently closed", "打烊的" -> "open_now": false
   - NOT MENTIONED -> "open_now": null. NEVER default to false.
4. GRANULARITY of the location: "city" (a city or town), "street" (a road or address), "landmark" (a named building, station, park), "area" (a district or neighbourhood).
5. AMBIGUITY: if a token can be read both as a constraint and as a place (e.g. "Chinatown" as cuisine or district, "Fukuoka ramen" as style or city), list it in "ambiguous_terms" and give up to 3 "location_candidates".
6. LANGUAGE: BCP 47 code of the query text itself.
7. CONFIDENCE: 0.0-1.0 for the whole parse. Below 0.6 when the category is unclear.`

var intentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"terms":               {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"category":            {Type: genai.TypeString},
		"location":            {Type: genai.TypeString, Nullable: true},
		"near_me":             {Type: genai.TypeBoolean},
		"open_now":            {Type: genai.TypeBoolean, Nullable: true},
		"price_max":           {Type: genai.TypeInteger, Nullable: true},
		"min_rating":          {Type: genai.TypeNumber, Nullable: true},
		"delivery":            {Type: genai.TypeBoolean, Nullable: true},
		"language":            {Type: genai.TypeString},
		"confidence":          {Type: genai.TypeNumber},
		"granularity":         {Type: genai.TypeString, Enum: []string{"city", "street", "landmark", "area", ""}},
		"ambiguous_terms":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"location_candidates": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"terms", "language", "confidence", "open_now"},
}

// schemaFromMap converts the subset of JSON schema used for narration
// (object/string/number/integer/boolean/array, properties, required) into a
// genai.Schema. Unknown shapes yield nil and the model falls back to plain JSON mode.
func schemaFromMap(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	typ, _ := m["type"].(string)
	s := &genai.Schema{}
	switch typ {
	case "object":
		s.Type = genai.TypeObject
		props, _ := m["properties"].(map[string]any)
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			child, ok := raw.(map[string]any)
			if !ok {
				return nil
			}
			cs := schemaFromMap(child)
			if cs == nil {
				return nil
			}
			s.Properties[name] = cs
		}
		switch req := m["required"].(type) {
		case []string:
			s.Required = append(s.Required, req...)
		case []any:
			for _, r := range req {
				if name, ok := r.(string); ok {
					s.Required = append(s.Required, name)
				}
			}
		}
	case "string":
		s.Type = genai.TypeString
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
		items, _ := m["items"].(map[string]any)
		if s.Items = schemaFromMap(items); s.Items == nil {
			return nil
		}
	default:
		return nil
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	return s
}

// cleanJSONString removes markdown code blocks if present (e.g. ```json ... ```)
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}

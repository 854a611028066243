// Package gemini provides a model wrapper for Google Gemini models using the
// official google.golang.org/genai SDK. Function declarations are derived
// from the normalized JSON-schema parameter maps tools declare.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/model"
)

// Options configures the Gemini model adapter.
type Options struct {
	// Model is the model name (e.g. "gemini-2.0-flash", "gemini-1.5-pro").
	Model string
	// APIKey is the Google AI API key. Empty falls back to the GEMINI_API_KEY
	// environment variable handled by the SDK.
	APIKey string
	// Temperature controls randomness (0-2).
	Temperature float64
	// MaxOutputTokens limits the response length.
	MaxOutputTokens int32
}

// Model wraps the Gemini API behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a new Gemini model. Constructors should not require a
// context, so client initialization uses context.Background().
func NewModel(optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:           "gemini-2.0-flash",
		Temperature:     0.7,
		MaxOutputTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: opts.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// Generate implements unified streaming / non-streaming generation against
// the Gemini API.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents := m.buildContents(req.Contents)
		config := m.buildConfig(req)

		if req.Stream {
			m.handleStreaming(ctx, contents, config, out, errCh)
			return
		}

		genResp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		resp, err := parseResponse(genResp)
		if err != nil {
			errCh <- err
			return
		}
		out <- resp
	}()

	return out, errCh
}

func (m *Model) handleStreaming(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	out chan<- model.Response,
	errCh chan<- error,
) {
	var textBuilder strings.Builder
	var calls []core.FunctionCall
	seenCalls := map[string]bool{}
	finishReason := "stop"
	var usage *model.TokenUsage

	for genResp, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, config) {
		if err != nil {
			errCh <- fmt.Errorf("gemini streaming error: %w", err)
			return
		}
		if len(genResp.Candidates) == 0 {
			continue
		}

		candidate := genResp.Candidates[0]
		if candidate.FinishReason != "" {
			finishReason = mapFinishReason(candidate.FinishReason)
		}
		if genResp.UsageMetadata != nil {
			usage = &model.TokenUsage{
				PromptTokens:     int(genResp.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:      int(genResp.UsageMetadata.TotalTokenCount),
			}
		}
		if candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				textBuilder.WriteString(part.Text)
				out <- model.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: part.Text}},
					},
				}
			}
			if part.FunctionCall != nil {
				fc := functionCallToPart(part.FunctionCall)
				// Gemini may repeat a call across chunks; keep first sighting.
				if seenCalls[fc.ID+fc.Name+fc.Arguments] {
					continue
				}
				seenCalls[fc.ID+fc.Name+fc.Arguments] = true
				calls = append(calls, fc)
			}
		}
	}

	finalParts := make([]core.Part, 0, len(calls)+1)
	if textBuilder.Len() > 0 {
		finalParts = append(finalParts, core.TextPart{Text: textBuilder.String()})
	}
	for _, fc := range calls {
		finalParts = append(finalParts, core.FunctionCallPart{FunctionCall: fc})
	}

	out <- model.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: finalParts},
		FinishReason: finishReason,
		Usage:        usage,
	}
}

// buildContents converts normalized contents to genai contents. Gemini uses
// the "model" role for assistant turns; tool responses become
// FunctionResponse parts in a user-role content.
func (m *Model) buildContents(contents []core.Content) []*genai.Content {
	var out []*genai.Content

	for _, c := range contents {
		if c.Role == "system" {
			continue // carried via SystemInstruction
		}

		var parts []*genai.Part
		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					parts = append(parts, &genai.Part{Text: part.Text})
				}
			case core.FunctionCallPart:
				args := map[string]any{}
				if part.FunctionCall.Arguments != "" {
					_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   part.FunctionCall.ID,
						Name: part.FunctionCall.Name,
						Args: args,
					},
				})
			case core.FunctionResponsePart:
				fr := part.FunctionResponse
				response := map[string]any{}
				switch r := fr.Response.(type) {
				case string:
					response["result"] = r
				case map[string]any:
					response = r
				default:
					response["result"] = fmt.Sprintf("%v", r)
				}
				if fr.Error != "" {
					response["error"] = fr.Error
				}
				parts = append(parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       fr.ID,
						Name:     fr.Name,
						Response: response,
					},
				})
			}
		}

		if len(parts) == 0 {
			continue
		}

		role := "user"
		if c.Role == "assistant" {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}

	return out
}

// buildConfig creates the Gemini generation config from adapter options and
// the request's instructions / tools.
func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	systemText := req.Instructions
	for _, c := range req.Contents {
		if c.Role != "system" {
			continue
		}
		for _, p := range c.Parts {
			if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
				if systemText != "" {
					systemText += "\n"
				}
				systemText += tp.Text
			}
		}
	}
	if systemText != "" {
		config.SystemInstruction = &genai.Content{
			Role:  "user",
			Parts: []*genai.Part{{Text: systemText}},
		}
	}

	if m.opts.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(m.opts.Temperature))
	}
	if m.opts.MaxOutputTokens > 0 {
		config.MaxOutputTokens = m.opts.MaxOutputTokens
	}

	if len(req.Tools) > 0 {
		config.Tools = buildTools(req.Tools)
	}

	return config
}

// buildTools converts normalized tool definitions to Gemini tools.
func buildTools(tools []model.ToolDefinition) []*genai.Tool {
	var genaiTools []*genai.Tool

	for _, t := range tools {
		genaiTools = append(genaiTools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name:        t.Function.Name,
					Description: t.Function.Description,
					Parameters:  toGenaiSchema(t.Function.Parameters),
				},
			},
		})
	}

	return genaiTools
}

// toGenaiSchema recursively converts a JSON schema map to a genai.Schema.
func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}

	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	switch required := schema["required"].(type) {
	case []string:
		s.Required = append(s.Required, required...)
	case []any:
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}

	return s
}

func functionCallToPart(fc *genai.FunctionCall) core.FunctionCall {
	args := ""
	if fc.Args != nil {
		if b, err := json.Marshal(fc.Args); err == nil {
			args = string(b)
		}
	}
	return core.FunctionCall{ID: fc.ID, Name: fc.Name, Arguments: args}
}

// parseResponse converts a non-streaming Gemini response.
func parseResponse(genResp *genai.GenerateContentResponse) (model.Response, error) {
	if len(genResp.Candidates) == 0 {
		return model.Response{}, fmt.Errorf("empty response from gemini")
	}

	candidate := genResp.Candidates[0]

	var parts []core.Part
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				parts = append(parts, core.TextPart{Text: part.Text})
			}
			if part.FunctionCall != nil {
				parts = append(parts, core.FunctionCallPart{FunctionCall: functionCallToPart(part.FunctionCall)})
			}
		}
	}

	resp := model.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: mapFinishReason(candidate.FinishReason),
	}

	if genResp.UsageMetadata != nil {
		resp.Usage = &model.TokenUsage{
			PromptTokens:     int(genResp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(genResp.UsageMetadata.TotalTokenCount),
		}
	}

	return resp, nil
}

// mapFinishReason normalizes Gemini finish reasons to the vendor-neutral
// vocabulary used across providers.
func mapFinishReason(fr genai.FinishReason) string {
	switch fr {
	case genai.FinishReasonStop, "":
		return "stop"
	case genai.FinishReasonMaxTokens:
		return "length"
	default:
		return strings.ToLower(string(fr))
	}
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}

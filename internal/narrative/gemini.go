package narrative

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Gemini generates through the Google GenAI API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator. An empty apiKey is an error; callers
// that run without a key pass a nil Generator to NewService instead.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, prompt, system string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    analysisSchema(),
		},
	)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("GenAI returned no text")
	}
	return text, nil
}

func number() *genai.Schema { return &genai.Schema{Type: genai.TypeNumber} }
func str() *genai.Schema    { return &genai.Schema{Type: genai.TypeString} }

func object(props map[string]*genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: props}
}

func array(items *genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: items}
}

// analysisSchema mirrors domain.Analysis.
func analysisSchema() *genai.Schema {
	return object(map[string]*genai.Schema{
		"marketScore":        number(),
		"riskScore":          number(),
		"liquidityScore":     number(),
		"volatilityForecast": number(),
		"dominantTheme":      str(),
		"matrix": object(map[string]*genai.Schema{
			"accumulation":         number(),
			"distribution":         number(),
			"riskAversion":         number(),
			"yieldSeeking":         number(),
			"speculativeIntensity": number(),
		}),
		"assetAnalyses": array(object(map[string]*genai.Schema{
			"name":            str(),
			"sentimentScore":  number(),
			"convictionLevel": number(),
			"signal":          str(),
			"keyInsight":      str(),
		})),
		"strategicDeepDive": object(map[string]*genai.Schema{
			"title": str(),
			"sections": array(object(map[string]*genai.Schema{
				"heading": str(),
				"body":    str(),
			})),
		}),
		"macroRiskFactors": array(object(map[string]*genai.Schema{
			"factor": str(),
			"impact": number(),
		})),
	})
}

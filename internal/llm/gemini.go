package llm

import (
	"context"
	"strings"

	"github.com/pdfdeck/pdfdeck/internal/domain"
	"github.com/pdfdeck/pdfdeck/internal/imaging"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/"

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	Temperature      float64 `json:"temperature"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// callGemini sends the request in the Gemini generateContent shape: inline
// base64 image blocks and strict JSON output via responseMimeType.
func (g *Gateway) callGemini(ctx context.Context, req Request) (string, error) {
	baseURL := req.BaseURL
	if baseURL == "" || strings.Contains(baseURL, "generativelanguage.googleapis.com") {
		baseURL = geminiBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	url := baseURL + req.Model + ":generateContent?key=" + req.APIKey

	parts := []geminiPart{{Text: req.Prompt}}
	for _, img := range req.Images {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MimeType: "image/jpeg",
				Data:     imaging.CleanBase64(img),
			},
		})
	}

	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			Temperature:      req.Temperature,
		},
	}

	var resp geminiResponse
	if err := g.postJSON(ctx, url, nil, payload, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", domain.APIError("gemini response contained no candidates", nil)
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// GeminiResponseEnvelope wraps raw assistant text in the Gemini batch
// response body shape expected by batch consumers.
func GeminiResponseEnvelope(text string) map[string]any {
	return map[string]any{
		"body": map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"parts": []any{
							map[string]any{"text": text},
						},
					},
				},
			},
		},
	}
}

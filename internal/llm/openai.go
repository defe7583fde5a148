package llm

import (
	"context"
	"strings"

	"github.com/pdfdeck/pdfdeck/internal/domain"
)

const openaiBaseURL = "https://api.openai.com/v1/chat/completions"

type openaiContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL string `json:"url"`
}

type openaiMessage struct {
	Role    string              `json:"role"`
	Content []openaiContentPart `json:"content"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiRequest struct {
	Model          string               `json:"model"`
	Messages       []openaiMessage      `json:"messages"`
	ResponseFormat openaiResponseFormat `json:"response_format"`
	Temperature    float64              `json:"temperature"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// callOpenAI sends the request in the OpenAI chat completions shape: data
// URI image_url content blocks and response_format json_object. BaseURL
// selects OpenAI-compatible endpoints such as OpenRouter.
func (g *Gateway) callOpenAI(ctx context.Context, req Request) (string, error) {
	url := req.BaseURL
	if url == "" {
		url = openaiBaseURL
	}

	headers := map[string]string{
		"Authorization": "Bearer " + req.APIKey,
	}
	if strings.Contains(url, "openrouter") {
		headers["HTTP-Referer"] = "http://localhost:8000"
		headers["X-Title"] = "pdfdeck"
	}

	content := []openaiContentPart{{Type: "text", Text: req.Prompt + "\nJSON Output Only."}}
	for _, img := range req.Images {
		content = append(content, openaiContentPart{
			Type:     "image_url",
			ImageURL: &openaiImageURL{URL: img},
		})
	}

	payload := openaiRequest{
		Model:          req.Model,
		Messages:       []openaiMessage{{Role: "user", Content: content}},
		ResponseFormat: openaiResponseFormat{Type: "json_object"},
		Temperature:    req.Temperature,
	}

	var resp openaiResponse
	if err := g.postJSON(ctx, url, headers, payload, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", domain.APIError("openai response contained no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

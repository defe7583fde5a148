package llm

import (
	"context"

	"github.com/pdfdeck/pdfdeck/internal/domain"
	"github.com/pdfdeck/pdfdeck/internal/imaging"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicContentBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// callAnthropic sends the request in the Anthropic messages shape: base64
// source image blocks followed by the text prompt, with the version header
// the API requires.
func (g *Gateway) callAnthropic(ctx context.Context, req Request) (string, error) {
	url := g.anthropicBaseURL + "/v1/messages"

	headers := map[string]string{
		"x-api-key":         req.APIKey,
		"anthropic-version": anthropicVersion,
	}

	var content []anthropicContentBlock
	for _, img := range req.Images {
		content = append(content, anthropicContentBlock{
			Type: "image",
			Source: &anthropicImageSource{
				Type:      "base64",
				MediaType: "image/jpeg",
				Data:      imaging.CleanBase64(img),
			},
		})
	}
	content = append(content, anthropicContentBlock{
		Type: "text",
		Text: req.Prompt + "\nOutput strictly standard JSON.",
	})

	payload := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   g.maxTokens,
		Messages:    []anthropicMessage{{Role: "user", Content: content}},
		Temperature: req.Temperature,
	}

	var resp anthropicResponse
	if err := g.postJSON(ctx, url, headers, payload, &resp); err != nil {
		return "", err
	}

	if len(resp.Content) == 0 {
		return "", domain.APIError("anthropic response contained no content", nil)
	}
	return resp.Content[0].Text, nil
}

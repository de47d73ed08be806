package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/cardfolio/cardscan/internal/models"
	"github.com/cardfolio/cardscan/internal/providers"
)

const defaultModel = goopenai.GPT4oMini

const ocrPrompt = "Transcribe all text visible in this image exactly as written, " +
	"one line per printed line. Output only the transcribed text with no commentary."

// OpenAI recognizes text using an OpenAI vision model.
type OpenAI struct {
	Model  string
	client *goopenai.Client
}

// New returns an OpenAI engine. An empty model selects the default.
func New(apiKey, model string) *OpenAI {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if model == "" {
		model = defaultModel
	}
	return &OpenAI{Model: model, client: goopenai.NewClient(apiKey)}
}

// Name implements providers.Engine.
func (o *OpenAI) Name() string { return "openai" }

// Recognize implements providers.Engine.
func (o *OpenAI) Recognize(ctx context.Context, in providers.Input) (providers.Result, error) {
	prompt := ocrPrompt
	if len(in.LanguageHints) > 0 {
		prompt = fmt.Sprintf("%s The text may be in: %s.", prompt, strings.Join(in.LanguageHints, ", "))
	}

	resp, err := o.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: o.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{
						Type: goopenai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{
							URL:    dataURI(in),
							Detail: goopenai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	})
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return providers.Result{}, &models.ProviderError{Provider: o.Name(), Status: apiErr.HTTPStatusCode, Err: err}
		}
		return providers.Result{}, &models.ProviderError{Provider: o.Name(), Err: err}
	}

	if len(resp.Choices) == 0 {
		return providers.Result{}, &models.ProviderError{Provider: o.Name(), Err: fmt.Errorf("no choices returned from OpenAI")}
	}

	return providers.Result{Text: strings.TrimSpace(resp.Choices[0].Message.Content)}, nil
}

func dataURI(in providers.Input) string {
	mediaType := in.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(in.Image))
}

package classify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rcliao/change-correlator/internal/model"
)

// Prompts for the two classification passes. Answers must be exactly one
// of the allowed labels; anything else fails the run.
const (
	changeNoisePrompt = "Classify the following CHANGE log title as MEANINGFUL or NOISE " +
		"if the change can cause any incident:\n\n%s\n\nReply with exactly MEANINGFUL or NOISE."

	incidentNoisePrompt = "Classify the following INCIDENT log title as MEANINGFUL or NOISE " +
		"based on meaning:\n\n%s\n\nReply with exactly MEANINGFUL or NOISE."

	causalityPrompt = "We have a system change: '%s' and an incident: '%s'.\n" +
		"Reply with CAUSAL if the change likely caused the incident, otherwise NOT_CAUSAL."
)

// OpenAI classifies titles and pairs via chat completions.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a classifier using OPENAI_API_KEY from the environment.
// The model name is passed through from configuration.
func NewOpenAI(modelName string) (*OpenAI, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	slog.Info("initializing OpenAI classifier", "model", modelName)
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  modelName,
	}, nil
}

// ClassifyTitle implements Classifier.
func (o *OpenAI) ClassifyTitle(ctx context.Context, kind TitleKind, title string) (model.Label, error) {
	var prompt string
	switch kind {
	case KindChange:
		prompt = fmt.Sprintf(changeNoisePrompt, title)
	case KindIncident:
		prompt = fmt.Sprintf(incidentNoisePrompt, title)
	default:
		return "", fmt.Errorf("unknown title kind %q", kind)
	}

	raw, err := o.complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("classify %s title %q: %w", kind, title, err)
	}
	return parseLabel(raw, model.LabelMeaningful, model.LabelNoise)
}

// ClassifyPair implements Classifier.
func (o *OpenAI) ClassifyPair(ctx context.Context, incidentTitle, changeTitle string) (model.Label, error) {
	prompt := fmt.Sprintf(causalityPrompt, changeTitle, incidentTitle)
	raw, err := o.complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("classify pair %q: %w",
			model.Pair{IncidentTitle: incidentTitle, ChangeTitle: changeTitle}.Key(), err)
	}
	return parseLabel(raw, model.LabelCausal, model.LabelNotCausal)
}

// complete performs a single temperature-0 chat completion.
func (o *OpenAI) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("openai call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Classifier = (*OpenAI)(nil)

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	openai "github.com/sashabaranov/go-openai"
)

// Classifier returns the emotions expressed in a text, primary first.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]string, error)
}

// EmotionService wraps a Classifier with a timeout and the default-emotion fallback.
type EmotionService struct {
	classifier Classifier
	timeout    time.Duration
}

// NewEmotionService accepts a nil classifier; every message then gets the default emotion.
func NewEmotionService(classifier Classifier, timeout time.Duration) *EmotionService {
	return &EmotionService{classifier: classifier, timeout: timeout}
}

// DetectEmotions never fails: on error or an empty result it returns [peace].
func (s *EmotionService) DetectEmotions(ctx context.Context, text string) []string {
	if s.classifier == nil {
		return []string{models.DefaultEmotion}
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tags, err := s.classifier.Classify(ctx, text)
	if err != nil {
		logger.Log.WithError(err).Warn("Emotion classification failed, using default emotion")
		return []string{models.DefaultEmotion}
	}
	if len(tags) == 0 {
		return []string{models.DefaultEmotion}
	}
	return tags
}

const classifierSystemPrompt = "You are an emotion detection AI. Analyze text and return only the primary emotion(s) as comma-separated values."

// OpenAIClassifier asks a chat completion model for the emotions of a text.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

func NewOpenAIClassifier(apiKey, model string) *OpenAIClassifier {
	return &OpenAIClassifier{client: openai.NewClient(apiKey), model: model}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, text string) ([]string, error) {
	prompt := fmt.Sprintf("Analyze the following text and determine the primary emotion(s) expressed.\n"+
		"Choose from: %s.\n"+
		"Return only the emotion name(s) as a comma-separated list, nothing else.\n\n"+
		"Text: %q", strings.Join(models.Emotions, ", "), text)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   50,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: classify: %v", ErrExternalService, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: classify: empty response", ErrExternalService)
	}
	return ParseEmotions(resp.Choices[0].Message.Content), nil
}

// ParseEmotions turns "Joy, nostalgia." into [joy nostalgia], keeping known
// emotions only, in order, without duplicates.
func ParseEmotions(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(strings.ToLower(raw), ",") {
		e := strings.Trim(strings.TrimSpace(part), ".\"'")
		if e == "" || seen[e] || !models.IsKnownEmotion(e) {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

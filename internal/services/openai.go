package services

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/padhai-labs/guru/internal/apperrors"
	"github.com/padhai-labs/guru/internal/imagedata"
	"github.com/padhai-labs/guru/internal/limiter"
	"github.com/padhai-labs/guru/internal/models"
)

// OpenAIService is the alternative explanation provider, selected with
// EXPLAIN_PROVIDER=openai. It uses JSON-mode chat completions with the
// result shape spelled out in the system prompt, then runs the same
// parse-and-validate step as the Gemini path.
type OpenAIService struct {
	client  *openai.Client
	model   string
	limiter *limiter.Limiter
	logger  *zap.Logger
}

var _ ExplanationProvider = (*OpenAIService)(nil)

func NewOpenAIService(apiKey, model string, lim *limiter.Limiter, logger *zap.Logger) *OpenAIService {
	return &OpenAIService{
		client:  openai.NewClient(apiKey),
		model:   model,
		limiter: lim,
		logger:  logger,
	}
}

func (s *OpenAIService) GenerateExplanation(ctx context.Context, req *models.ExplanationRequest) (*models.ExplanationResult, error) {
	if s.limiter != nil {
		release, err := s.limiter.Acquire(ctx)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindRemoteService, "request cancelled while rate limited")
		}
		defer release()
	}

	userParts := []openai.ChatMessagePart{}
	if text := strings.TrimSpace(req.QuestionText); text != "" {
		userParts = append(userParts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: text,
		})
	}
	if req.ImageData != "" {
		img, err := imagedata.Decode(req.ImageData)
		if err != nil {
			return nil, err
		}
		userParts = append(userParts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: imagedata.DataURL(img.Data, img.MimeType),
			},
		})
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: buildTutorInstruction(req.Language, req.Subject) + "\n\n" + openAISchemaHint,
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: userParts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindRemoteService, "openai request failed")
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.KindMalformedResponse, "no response from openai")
	}

	rawContent := resp.Choices[0].Message.Content
	result, err := parseExplanation(rawContent)
	if err != nil {
		s.logger.Warn("openai explanation parse failed",
			zap.Error(err), zap.String("raw", truncate(rawContent, 500)))
		return nil, err
	}

	s.logger.Info("explanation generated via openai",
		zap.String("subject", string(req.Subject)),
		zap.String("topic", result.WrittenStyle.TopicName))
	return result, nil
}

// openAISchemaHint spells out the JSON shape that the Gemini path gets
// from its responseSchema constraint.
var openAISchemaHint = fmt.Sprintf(`Respond with ONLY a JSON object of exactly this shape:
{
  "spoken_style": "string",
  "written_style": {
    "topic_name": "string",
    "simple_meaning": "string",
    "step_by_step": ["string", "..."],
    "easy_example": "string",
    "short_summary": "string"
  }
}
Every field is required and must be non-empty. %s`, "No markdown, no code fences.")

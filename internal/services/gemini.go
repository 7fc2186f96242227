package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/padhai-labs/guru/internal/apperrors"
	"github.com/padhai-labs/guru/internal/imagedata"
	"github.com/padhai-labs/guru/internal/limiter"
	"github.com/padhai-labs/guru/internal/models"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com"

	// The TTS models return raw PCM16LE mono at this rate unless the
	// part's MIME type says otherwise.
	defaultSpeechSampleRate = 24000

	diagramAspectRatio = "4:3"
)

// GeminiService is the default provider for explanations, speech, and
// diagrams, speaking the generateContent REST API directly.
type GeminiService struct {
	apiKey     string
	baseURL    string
	textModel  string
	ttsModel   string
	ttsVoice   string
	imageModel string
	client     *http.Client
	limiter    *limiter.Limiter
	logger     *zap.Logger
}

type GeminiConfig struct {
	APIKey     string
	TextModel  string
	TTSModel   string
	TTSVoice   string
	ImageModel string
	// BaseURL overrides the production endpoint; tests point it at a
	// local server.
	BaseURL string
}

func NewGeminiService(cfg GeminiConfig, lim *limiter.Limiter, logger *zap.Logger) *GeminiService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &GeminiService{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		textModel:  cfg.TextModel,
		ttsModel:   cfg.TTSModel,
		ttsVoice:   cfg.TTSVoice,
		imageModel: cfg.ImageModel,
		client:     &http.Client{Timeout: 120 * time.Second},
		limiter:    lim,
		logger:     logger,
	}
}

var (
	_ ExplanationProvider = (*GeminiService)(nil)
	_ SpeechProvider      = (*GeminiService)(nil)
	_ DiagramProvider     = (*GeminiService)(nil)
)

// Gemini API request/response structures

type geminiGenerateContentRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType   string             `json:"responseMimeType,omitempty"`
	ResponseSchema     json.RawMessage    `json:"responseSchema,omitempty"`
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	SpeechConfig       *geminiSpeechConfig `json:"speechConfig,omitempty"`
	ImageConfig        *geminiImageConfig  `json:"imageConfig,omitempty"`
}

type geminiSpeechConfig struct {
	VoiceConfig geminiVoiceConfig `json:"voiceConfig"`
}

type geminiVoiceConfig struct {
	PrebuiltVoiceConfig geminiPrebuiltVoice `json:"prebuiltVoiceConfig"`
}

type geminiPrebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// explanationSchema constrains the model to the ExplanationResult shape.
// The parser still validates — schema-constrained output is a strong hint,
// not a contract.
var explanationSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"spoken_style": {"type": "string"},
		"written_style": {
			"type": "object",
			"properties": {
				"topic_name": {"type": "string"},
				"simple_meaning": {"type": "string"},
				"step_by_step": {"type": "array", "items": {"type": "string"}},
				"easy_example": {"type": "string"},
				"short_summary": {"type": "string"}
			},
			"required": ["topic_name", "simple_meaning", "step_by_step", "easy_example", "short_summary"]
		}
	},
	"required": ["spoken_style", "written_style"]
}`)

// GenerateExplanation asks for a schema-constrained JSON lesson and
// validates the shape of whatever comes back.
func (s *GeminiService) GenerateExplanation(ctx context.Context, req *models.ExplanationRequest) (*models.ExplanationResult, error) {
	parts := []geminiPart{}
	if text := strings.TrimSpace(req.QuestionText); text != "" {
		parts = append(parts, geminiPart{Text: text})
	}
	if req.ImageData != "" {
		img, err := imagedata.Decode(req.ImageData)
		if err != nil {
			return nil, err
		}
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MimeType: img.MimeType,
				Data:     base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}

	reqBody := geminiGenerateContentRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: buildTutorInstruction(req.Language, req.Subject)}},
		},
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   explanationSchema,
		},
	}

	resp, err := s.doGenerateContent(ctx, s.textModel, reqBody)
	if err != nil {
		return nil, err
	}

	raw := firstText(resp)
	if raw == "" {
		return nil, apperrors.New(apperrors.KindMalformedResponse, "backend returned no text")
	}

	result, err := parseExplanation(raw)
	if err != nil {
		s.logger.Warn("explanation parse failed",
			zap.Error(err), zap.String("raw", truncate(raw, 500)))
		return nil, err
	}

	s.logger.Info("explanation generated",
		zap.String("subject", string(req.Subject)),
		zap.String("topic", result.WrittenStyle.TopicName))
	return result, nil
}

// GenerateSpeech synthesizes text with the prebuilt voice and returns the
// raw PCM exactly as the backend encoded it.
func (s *GeminiService) GenerateSpeech(ctx context.Context, text string) (*SpeechResult, error) {
	reqBody := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: text}}}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &geminiSpeechConfig{
				VoiceConfig: geminiVoiceConfig{
					PrebuiltVoiceConfig: geminiPrebuiltVoice{VoiceName: s.ttsVoice},
				},
			},
		},
	}

	resp, err := s.doGenerateContent(ctx, s.ttsModel, reqBody)
	if err != nil {
		return nil, err
	}

	part := firstInlineData(resp, "audio/")
	if part == nil {
		return nil, apperrors.New(apperrors.KindNoAudioData, "no audio payload in response")
	}

	pcm, err := base64.StdEncoding.DecodeString(part.Data)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindNoAudioData, "audio payload is not valid base64")
	}

	rate := sampleRateFromMime(part.MimeType, defaultSpeechSampleRate)
	s.logger.Info("speech synthesized",
		zap.Int("bytes", len(pcm)), zap.Int("sample_rate", rate), zap.Int("text_len", len(text)))

	return &SpeechResult{PCM: pcm, SampleRate: rate, ChannelCount: 1}, nil
}

// GenerateDiagram draws a labelled study diagram for a topic. Callers
// treat failure as decorative loss, not an error of the lesson.
func (s *GeminiService) GenerateDiagram(ctx context.Context, topic string) (*imagedata.Image, error) {
	prompt := fmt.Sprintf(
		"Draw a simple, clean, labelled educational diagram for a 10-year-old student "+
			"explaining: %s. Blackboard style, large friendly labels, no paragraphs of text.", topic)

	reqBody := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig:        &geminiImageConfig{AspectRatio: diagramAspectRatio},
		},
	}

	resp, err := s.doGenerateContent(ctx, s.imageModel, reqBody)
	if err != nil {
		return nil, err
	}

	part := firstInlineData(resp, "image/")
	if part == nil {
		if text := firstText(resp); text != "" {
			return nil, apperrors.Newf(apperrors.KindNoImageData,
				"backend returned text instead of an image: %s", truncate(text, 200))
		}
		return nil, apperrors.New(apperrors.KindNoImageData, "no image payload in response")
	}

	data, err := base64.StdEncoding.DecodeString(part.Data)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindNoImageData, "image payload is not valid base64")
	}

	mime := part.MimeType
	if mime == "" {
		mime = imagedata.SniffMime(data)
	}
	return &imagedata.Image{Data: data, MimeType: mime}, nil
}

func (s *GeminiService) doGenerateContent(ctx context.Context, model string, reqBody geminiGenerateContentRequest) (*geminiGenerateContentResponse, error) {
	if s.apiKey == "" {
		return nil, apperrors.New(apperrors.KindConfig, "GEMINI_API_KEY is not configured")
	}

	if s.limiter != nil {
		release, err := s.limiter.Acquire(ctx)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindRemoteService, "request cancelled while rate limited")
		}
		defer release()
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", s.baseURL, model, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindRemoteService, "backend request failed")
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindRemoteService, "failed to read backend response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Newf(apperrors.KindRemoteService,
			"backend returned status %d: %s", resp.StatusCode, truncate(string(bodyBytes), 300))
	}

	var geminiResp geminiGenerateContentResponse
	if err := json.Unmarshal(bodyBytes, &geminiResp); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindMalformedResponse, "failed to decode backend response")
	}
	if len(geminiResp.Candidates) == 0 {
		return nil, apperrors.New(apperrors.KindMalformedResponse, "no candidates in response")
	}

	return &geminiResp, nil
}

// parseExplanation strips code fences, parses the JSON, and verifies all
// five written-style fields are present.
func parseExplanation(raw string) (*models.ExplanationResult, error) {
	cleaned := stripCodeFences(raw)

	var result models.ExplanationResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindMalformedResponse, "explanation is not valid JSON")
	}

	if strings.TrimSpace(result.SpokenStyle) == "" {
		return nil, apperrors.New(apperrors.KindMalformedResponse, "explanation missing required field: spoken_style")
	}
	if missing := result.WrittenStyle.MissingFields(); len(missing) > 0 {
		return nil, apperrors.Newf(apperrors.KindMalformedResponse,
			"explanation missing required fields: %s", strings.Join(missing, ", "))
	}

	return &result, nil
}

// stripCodeFences removes a ```json ... ``` wrapper some models add even
// under a JSON response MIME type.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// sampleRateFromMime parses "audio/L16;codec=pcm;rate=24000".
func sampleRateFromMime(mimeType string, fallback int) int {
	for _, param := range strings.Split(mimeType, ";") {
		param = strings.TrimSpace(param)
		if value, ok := strings.CutPrefix(param, "rate="); ok {
			if rate, err := strconv.Atoi(value); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return fallback
}

func firstText(resp *geminiGenerateContentResponse) string {
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			return part.Text
		}
	}
	return ""
}

func firstInlineData(resp *geminiGenerateContentResponse, mimePrefix string) *geminiInlineData {
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}
		if mimePrefix == "" || strings.HasPrefix(part.InlineData.MimeType, mimePrefix) {
			return part.InlineData
		}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// buildTutorInstruction is the system prompt for the Class 5 tutor. The
// response shape is enforced by the schema constraint; this sets register
// and language.
func buildTutorInstruction(language models.Language, subject models.Subject) string {
	langName := "English"
	if language == models.LanguageHindi {
		langName = "Hindi (Devanagari script)"
	}

	return fmt.Sprintf(`You are "Guru", a warm and patient teacher for Class 5 students (around 10 years old) in India, answering a %s question.

Write every field in %s, in words a 10-year-old understands. Short sentences. No jargon.

Produce:
- spoken_style: a friendly spoken mini-lesson, the way a favourite teacher talks, 3-5 sentences.
- written_style.topic_name: the topic in a few words.
- written_style.simple_meaning: what it means, in one or two plain sentences.
- written_style.step_by_step: 3-6 small steps to understand or solve it, one idea per step.
- written_style.easy_example: one everyday example a child in India would recognise.
- written_style.short_summary: one sentence to remember.

If the question includes a photo, read the question from the photo. Never mention that you are an AI.`,
		subject.Display(), langName)
}

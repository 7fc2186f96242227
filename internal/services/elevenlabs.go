package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/padhai-labs/guru/internal/apperrors"
	"github.com/padhai-labs/guru/internal/limiter"
)

// ---------------------------------------------------------------------------
// ElevenLabs speech provider, selected with SPEECH_PROVIDER=elevenlabs.
// Requests pcm_24000 so the output matches the Gemini TTS wire format and
// the playback path needs no per-provider handling.
// ---------------------------------------------------------------------------

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultModel = "eleven_flash_v2_5"
	elevenLabsDefaultVoice = "pNInz6obpgDQGcFmaJgB"
	elevenLabsOutputFormat = "pcm_24000" // raw 16-bit LE mono at 24kHz
)

type ElevenLabsService struct {
	apiKey  string
	voiceID string
	modelID string
	baseURL string
	speed   float64
	client  *http.Client
	limiter *limiter.Limiter
	logger  *zap.Logger
}

var _ SpeechProvider = (*ElevenLabsService)(nil)

func NewElevenLabsService(apiKey, voiceID string, speed float64, lim *limiter.Limiter, logger *zap.Logger) *ElevenLabsService {
	if voiceID == "" {
		voiceID = elevenLabsDefaultVoice
	}
	if speed <= 0 {
		speed = 1.0
	}
	return &ElevenLabsService{
		apiKey:  apiKey,
		voiceID: voiceID,
		modelID: elevenLabsDefaultModel,
		baseURL: elevenLabsBaseURL,
		speed:   speed,
		client:  &http.Client{Timeout: 90 * time.Second},
		limiter: lim,
		logger:  logger,
	}
}

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
	Speed         *float64                 `json:"speed,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// GenerateSpeech converts narration text to raw PCM. The response body IS
// the audio — no envelope, no header.
func (s *ElevenLabsService) GenerateSpeech(ctx context.Context, text string) (*SpeechResult, error) {
	if s.apiKey == "" {
		return nil, apperrors.New(apperrors.KindConfig, "ELEVENLABS_API_KEY is not configured")
	}

	if s.limiter != nil {
		release, err := s.limiter.Acquire(ctx)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindRemoteService, "request cancelled while rate limited")
		}
		defer release()
	}

	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: s.modelID,
		Speed:   &s.speed,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.60,
			SimilarityBoost: 0.80,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ElevenLabs request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		s.baseURL, s.voiceID, elevenLabsOutputFormat)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create ElevenLabs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindRemoteService, "ElevenLabs request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.Newf(apperrors.KindRemoteService,
			"ElevenLabs returned status %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindRemoteService, "failed to read ElevenLabs audio response")
	}
	if len(pcm) == 0 {
		return nil, apperrors.New(apperrors.KindNoAudioData, "ElevenLabs returned empty audio")
	}

	s.logger.Info("speech synthesized via elevenlabs",
		zap.Int("bytes", len(pcm)), zap.Int("text_len", len(text)))

	return &SpeechResult{PCM: pcm, SampleRate: defaultSpeechSampleRate, ChannelCount: 1}, nil
}

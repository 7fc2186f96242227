package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/padhai-labs/guru/internal/apperrors"
	"github.com/padhai-labs/guru/internal/models"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) (*GeminiService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewGeminiService(GeminiConfig{
		APIKey:     "test-key",
		TextModel:  "text-model",
		TTSModel:   "tts-model",
		TTSVoice:   "Kore",
		ImageModel: "image-model",
		BaseURL:    server.URL,
	}, nil, zap.NewNop())
	return svc, server
}

func textResponse(t *testing.T, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{
				"parts": []map[string]interface{}{{"text": text}},
			}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

const validExplanationJSON = `{
	"spoken_style": "Hello! Let us learn about nouns together.",
	"written_style": {
		"topic_name": "Nouns",
		"simple_meaning": "A noun is a naming word.",
		"step_by_step": ["Read the sentence.", "Find the naming word."],
		"easy_example": "Delhi is a noun.",
		"short_summary": "Nouns name people, places and things."
	}
}`

func TestGenerateExplanation(t *testing.T) {
	var gotRequest geminiGenerateContentRequest
	svc, _ := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write(textResponse(t, validExplanationJSON))
	})

	result, err := svc.GenerateExplanation(context.Background(), &models.ExplanationRequest{
		Language:     models.LanguageEnglish,
		Subject:      models.SubjectEnglish,
		QuestionText: "what is a noun",
	})
	if err != nil {
		t.Fatalf("GenerateExplanation() error: %v", err)
	}
	if result.WrittenStyle.TopicName != "Nouns" {
		t.Errorf("TopicName = %q", result.WrittenStyle.TopicName)
	}
	if len(result.WrittenStyle.StepByStep) != 2 {
		t.Errorf("StepByStep = %v", result.WrittenStyle.StepByStep)
	}

	// The request must carry the schema constraint and JSON MIME type.
	if gotRequest.GenerationConfig == nil {
		t.Fatal("request missing generationConfig")
	}
	if gotRequest.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("responseMimeType = %q", gotRequest.GenerationConfig.ResponseMimeType)
	}
	if len(gotRequest.GenerationConfig.ResponseSchema) == 0 {
		t.Error("request missing responseSchema")
	}
	if gotRequest.SystemInstruction == nil {
		t.Error("request missing systemInstruction")
	}
}

func TestGenerateExplanationCodeFenced(t *testing.T) {
	svc, _ := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(textResponse(t, "```json\n"+validExplanationJSON+"\n```"))
	})

	result, err := svc.GenerateExplanation(context.Background(), &models.ExplanationRequest{
		Language: models.LanguageHindi, Subject: models.SubjectScience, QuestionText: "q",
	})
	if err != nil {
		t.Fatalf("GenerateExplanation() with fences error: %v", err)
	}
	if result.WrittenStyle.TopicName != "Nouns" {
		t.Errorf("TopicName = %q", result.WrittenStyle.TopicName)
	}
}

func TestGenerateExplanationMissingField(t *testing.T) {
	missingSummary := `{
		"spoken_style": "Hi!",
		"written_style": {
			"topic_name": "Nouns",
			"simple_meaning": "A naming word.",
			"step_by_step": ["One step."],
			"easy_example": "Delhi.",
			"short_summary": ""
		}
	}`
	svc, _ := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(textResponse(t, missingSummary))
	})

	_, err := svc.GenerateExplanation(context.Background(), &models.ExplanationRequest{
		Language: models.LanguageEnglish, Subject: models.SubjectEnglish, QuestionText: "q",
	})
	if !apperrors.Is(err, apperrors.KindMalformedResponse) {
		t.Fatalf("error = %v, want malformed_response", err)
	}
}

func TestGenerateExplanationInvalidJSON(t *testing.T) {
	svc, _ := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(textResponse(t, "Sorry, I cannot help with that."))
	})

	_, err := svc.GenerateExplanation(context.Background(), &models.ExplanationRequest{
		Language: models.LanguageEnglish, Subject: models.SubjectEnglish, QuestionText: "q",
	})
	if !apperrors.Is(err, apperrors.KindMalformedResponse) {
		t.Fatalf("error = %v, want malformed_response", err)
	}
}

func TestGenerateExplanationBackendError(t *testing.T) {
	svc, _ := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "quota exceeded"}`, http.StatusTooManyRequests)
	})

	_, err := svc.GenerateExplanation(context.Background(), &models.ExplanationRequest{
		Language: models.LanguageEnglish, Subject: models.SubjectEnglish, QuestionText: "q",
	})
	if !apperrors.Is(err, apperrors.KindRemoteService) {
		t.Fatalf("error = %v, want remote_service", err)
	}
}

func TestMissingAPIKeyIsConfigError(t *testing.T) {
	svc := NewGeminiService(GeminiConfig{
		TextModel: "m", TTSModel: "m", ImageModel: "m", BaseURL: "http://127.0.0.1:0",
	}, nil, zap.NewNop())

	_, err := svc.GenerateExplanation(context.Background(), &models.ExplanationRequest{
		Language: models.LanguageEnglish, Subject: models.SubjectEnglish, QuestionText: "q",
	})
	if !apperrors.Is(err, apperrors.KindConfig) {
		t.Fatalf("error = %v, want config", err)
	}
}

func TestGenerateSpeech(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0x02, 0x00}
	svc, _ := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]interface{}{
						{"inlineData": map[string]string{
							"mimeType": "audio/L16;codec=pcm;rate=24000",
							"data":     base64.StdEncoding.EncodeToString(pcm),
						}},
					},
				}},
			},
		})
		w.Write(body)
	})

	result, err := svc.GenerateSpeech(context.Background(), "hello")
	if err != nil {
		t.Fatalf("GenerateSpeech() error: %v", err)
	}
	if result.SampleRate != 24000 || result.ChannelCount != 1 {
		t.Errorf("format = %d Hz / %d ch", result.SampleRate, result.ChannelCount)
	}
	if string(result.PCM) != string(pcm) {
		t.Errorf("PCM = %v, want %v", result.PCM, pcm)
	}
}

func TestGenerateSpeechNoAudio(t *testing.T) {
	svc, _ := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(textResponse(t, "I can only produce text."))
	})

	_, err := svc.GenerateSpeech(context.Background(), "hello")
	if !apperrors.Is(err, apperrors.KindNoAudioData) {
		t.Fatalf("error = %v, want no_audio_data", err)
	}
}

func TestGenerateDiagramNoImage(t *testing.T) {
	svc, _ := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(textResponse(t, "Here is a description instead of a diagram."))
	})

	_, err := svc.GenerateDiagram(context.Background(), "water cycle")
	if !apperrors.Is(err, apperrors.KindNoImageData) {
		t.Fatalf("error = %v, want no_image_data", err)
	}
}

func TestGenerateDiagram(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x01}
	svc, _ := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]interface{}{
						{"text": "Here you go"},
						{"inlineData": map[string]string{
							"mimeType": "image/png",
							"data":     base64.StdEncoding.EncodeToString(png),
						}},
					},
				}},
			},
		})
		w.Write(body)
	})

	img, err := svc.GenerateDiagram(context.Background(), "water cycle")
	if err != nil {
		t.Fatalf("GenerateDiagram() error: %v", err)
	}
	if img.MimeType != "image/png" {
		t.Errorf("MimeType = %q", img.MimeType)
	}
	if string(img.Data) != string(png) {
		t.Error("image bytes do not match")
	}
}

func TestSampleRateFromMime(t *testing.T) {
	cases := []struct {
		mime string
		want int
	}{
		{"audio/L16;codec=pcm;rate=24000", 24000},
		{"audio/L16;rate=16000;codec=pcm", 16000},
		{"audio/L16", 24000},
		{"", 24000},
		{"audio/L16;rate=bogus", 24000},
	}
	for _, tc := range cases {
		if got := sampleRateFromMime(tc.mime, 24000); got != tc.want {
			t.Errorf("sampleRateFromMime(%q) = %d, want %d", tc.mime, got, tc.want)
		}
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                      `{"a":1}`,
		"```json\n{\"a\":1}\n```":        `{"a":1}`,
		"```\n{\"a\":1}\n```":            `{"a":1}`,
		"  ```json\n{\"a\":1}\n```\n  ":  `{"a":1}`,
	}
	for in, want := range cases {
		if got := stripCodeFences(in); got != want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", in, got, want)
		}
	}
}

package services

import (
	"context"

	"github.com/padhai-labs/guru/internal/imagedata"
	"github.com/padhai-labs/guru/internal/models"
)

// ---------------------------------------------------------------------------
// Provider interfaces — each generative concern has two implementations
// selected by config, so handlers never know which backend answered.
// ---------------------------------------------------------------------------

// SpeechResult is the common output of any speech provider: raw PCM16LE
// plus the format needed to decode it.
type SpeechResult struct {
	PCM          []byte
	SampleRate   int
	ChannelCount int
}

// ExplanationProvider turns a tutor request into a structured lesson.
type ExplanationProvider interface {
	GenerateExplanation(ctx context.Context, req *models.ExplanationRequest) (*models.ExplanationResult, error)
}

// SpeechProvider synthesizes one narration string into raw PCM audio.
type SpeechProvider interface {
	GenerateSpeech(ctx context.Context, text string) (*SpeechResult, error)
}

// DiagramProvider draws a best-effort blackboard diagram for a topic.
type DiagramProvider interface {
	GenerateDiagram(ctx context.Context, topic string) (*imagedata.Image, error)
}

// ArtRequest is the resolved art transformation input: photos already
// decoded, enums validated, aspect ratio derived from the output format.
type ArtRequest struct {
	Images          []imagedata.Image
	BackgroundStyle models.BackgroundStyle
	SeasonalTheme   models.SeasonalTheme
	AspectRatio     string
	Ornaments       []models.Ornament
}

// ArtProvider transforms source photos into one stylized painting.
type ArtProvider interface {
	TransformArt(ctx context.Context, req *ArtRequest) (*imagedata.Image, error)
}

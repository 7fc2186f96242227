package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/padhai-labs/guru/internal/apperrors"
	"github.com/padhai-labs/guru/internal/imagedata"
	"github.com/padhai-labs/guru/internal/limiter"
	"github.com/padhai-labs/guru/internal/models"
)

// ---------------------------------------------------------------------------
// Digital Painter — photo-to-artwork transformation via the Gen AI SDK.
// Source photos go in as inline parts; the prompt carries the background,
// seasonal theme, and ornament choices; the aspect ratio comes from the
// requested output format.
// ---------------------------------------------------------------------------

type ArtistService struct {
	apiKey  string
	model   string
	limiter *limiter.Limiter
	logger  *zap.Logger

	mu     sync.Mutex
	client *genai.Client
}

var _ ArtProvider = (*ArtistService)(nil)

func NewArtistService(apiKey, model string, lim *limiter.Limiter, logger *zap.Logger) *ArtistService {
	return &ArtistService{
		apiKey:  apiKey,
		model:   model,
		limiter: lim,
		logger:  logger,
	}
}

// getClient creates the SDK client on first use so a missing key surfaces
// as a configuration error at the first remote call, not at startup.
func (s *ArtistService) getClient(ctx context.Context) (*genai.Client, error) {
	if s.apiKey == "" {
		return nil, apperrors.New(apperrors.KindConfig, "GEMINI_API_KEY is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindRemoteService, "failed to create genai client")
	}
	s.client = client
	return client, nil
}

func (s *ArtistService) TransformArt(ctx context.Context, req *ArtRequest) (*imagedata.Image, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}

	if s.limiter != nil {
		release, err := s.limiter.Acquire(ctx)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindRemoteService, "request cancelled while rate limited")
		}
		defer release()
	}

	parts := []*genai.Part{genai.NewPartFromText(buildArtPrompt(req))}
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MimeType))
	}

	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		ImageConfig:        &genai.ImageConfig{AspectRatio: req.AspectRatio},
	}

	s.logger.Info("art transformation started",
		zap.Int("photos", len(req.Images)),
		zap.String("background", string(req.BackgroundStyle)),
		zap.String("theme", string(req.SeasonalTheme)),
		zap.String("aspect_ratio", req.AspectRatio))

	resp, err := client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindRemoteService, "art generation request failed")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, apperrors.New(apperrors.KindNoImageData, "no candidates in response")
	}

	var textParts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = imagedata.SniffMime(part.InlineData.Data)
			}
			return &imagedata.Image{Data: part.InlineData.Data, MimeType: mime}, nil
		}
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}

	if len(textParts) > 0 {
		return nil, apperrors.Newf(apperrors.KindNoImageData,
			"backend returned text instead of an image: %s", truncate(textParts[0], 200))
	}
	return nil, apperrors.New(apperrors.KindNoImageData, "no image payload in response")
}

var backgroundDescriptions = map[models.BackgroundStyle]string{
	models.BackgroundPlainStudio:  "a clean, softly lit photo studio backdrop",
	models.BackgroundFlowerGarden: "a lush flower garden in full bloom",
	models.BackgroundRoyalPalace:  "the grand hall of an Indian royal palace",
	models.BackgroundSunsetBeach:  "a beach at golden sunset",
	models.BackgroundFestiveStage: "a decorated festive celebration stage",
}

var themeDescriptions = map[models.SeasonalTheme]string{
	models.ThemeSpring:  "fresh spring colors, blossoms, soft morning light",
	models.ThemeSummer:  "bright summer light, vivid warm colors",
	models.ThemeMonsoon: "monsoon mood, rain-washed greens, dramatic clouds",
	models.ThemeAutumn:  "autumn palette, golden and amber tones",
	models.ThemeWinter:  "crisp winter light, cool tones, gentle mist",
	models.ThemeFestive: "festival-of-lights atmosphere, rich warm glow",
}

var ornamentDescriptions = map[models.Ornament]string{
	models.OrnamentGarlands:   "marigold garlands",
	models.OrnamentFairyLight: "strings of fairy lights",
	models.OrnamentDiyas:      "glowing diyas (oil lamps)",
	models.OrnamentRangoli:    "a colorful rangoli pattern",
	models.OrnamentBalloons:   "festive balloons",
	models.OrnamentRibbons:    "silk ribbons",
}

func buildArtPrompt(req *ArtRequest) string {
	var b strings.Builder

	b.WriteString("Transform the attached photo")
	if len(req.Images) > 1 {
		b.WriteString("s")
	}
	b.WriteString(" into one beautiful, painterly portrait illustration. ")
	b.WriteString("Keep every person's face, likeness, and expression faithful to the source — ")
	b.WriteString("stylize the rendering, never the identity.\n\n")

	fmt.Fprintf(&b, "Setting: %s.\n", backgroundDescriptions[req.BackgroundStyle])
	fmt.Fprintf(&b, "Mood and palette: %s.\n", themeDescriptions[req.SeasonalTheme])

	if len(req.Ornaments) > 0 {
		var items []string
		for _, o := range req.Ornaments {
			items = append(items, ornamentDescriptions[o])
		}
		fmt.Fprintf(&b, "Decorate the scene with: %s.\n", strings.Join(items, ", "))
	}

	fmt.Fprintf(&b, "\nOutput: a single polished artwork, %s aspect ratio, rich detail, warm and joyful.", req.AspectRatio)
	return b.String()
}

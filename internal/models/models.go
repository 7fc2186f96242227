package models

import (
	"strings"
	"time"

	"github.com/padhai-labs/guru/internal/apperrors"
)

// Enums

type Language string

const (
	LanguageEnglish Language = "english"
	LanguageHindi   Language = "hindi"
)

var Languages = []Language{LanguageEnglish, LanguageHindi}

func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageHindi
}

type Subject string

const (
	SubjectMathematics     Subject = "mathematics"
	SubjectScience         Subject = "science"
	SubjectEnglish         Subject = "english"
	SubjectHindi           Subject = "hindi"
	SubjectSocialStudies   Subject = "social_studies"
	SubjectEVS             Subject = "environmental_studies"
	SubjectComputerScience Subject = "computer_science"
	SubjectGK              Subject = "general_knowledge"
)

var Subjects = []Subject{
	SubjectMathematics, SubjectScience, SubjectEnglish, SubjectHindi,
	SubjectSocialStudies, SubjectEVS, SubjectComputerScience, SubjectGK,
}

func (s Subject) Valid() bool {
	for _, known := range Subjects {
		if s == known {
			return true
		}
	}
	return false
}

// Display returns the human-readable subject name used in prompts.
func (s Subject) Display() string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

type BackgroundStyle string

const (
	BackgroundPlainStudio  BackgroundStyle = "plain_studio"
	BackgroundFlowerGarden BackgroundStyle = "flower_garden"
	BackgroundRoyalPalace  BackgroundStyle = "royal_palace"
	BackgroundSunsetBeach  BackgroundStyle = "sunset_beach"
	BackgroundFestiveStage BackgroundStyle = "festive_stage"
)

var BackgroundStyles = []BackgroundStyle{
	BackgroundPlainStudio, BackgroundFlowerGarden, BackgroundRoyalPalace,
	BackgroundSunsetBeach, BackgroundFestiveStage,
}

func (b BackgroundStyle) Valid() bool {
	for _, known := range BackgroundStyles {
		if b == known {
			return true
		}
	}
	return false
}

type SeasonalTheme string

const (
	ThemeSpring  SeasonalTheme = "spring"
	ThemeSummer  SeasonalTheme = "summer"
	ThemeMonsoon SeasonalTheme = "monsoon"
	ThemeAutumn  SeasonalTheme = "autumn"
	ThemeWinter  SeasonalTheme = "winter"
	ThemeFestive SeasonalTheme = "festive"
)

var SeasonalThemes = []SeasonalTheme{
	ThemeSpring, ThemeSummer, ThemeMonsoon, ThemeAutumn, ThemeWinter, ThemeFestive,
}

func (s SeasonalTheme) Valid() bool {
	for _, known := range SeasonalThemes {
		if s == known {
			return true
		}
	}
	return false
}

// OutputFormat selects the artwork shape; each format maps to the aspect
// ratio passed to the image model.
type OutputFormat string

const (
	FormatSquare    OutputFormat = "square"
	FormatPortrait  OutputFormat = "portrait"
	FormatLandscape OutputFormat = "landscape"
	FormatStory     OutputFormat = "story"
)

var OutputFormats = []OutputFormat{FormatSquare, FormatPortrait, FormatLandscape, FormatStory}

func (f OutputFormat) Valid() bool {
	for _, known := range OutputFormats {
		if f == known {
			return true
		}
	}
	return false
}

func (f OutputFormat) AspectRatio() string {
	switch f {
	case FormatPortrait:
		return "4:5"
	case FormatLandscape:
		return "16:9"
	case FormatStory:
		return "9:16"
	default:
		return "1:1"
	}
}

type Ornament string

const (
	OrnamentGarlands   Ornament = "garlands"
	OrnamentFairyLight Ornament = "fairy_lights"
	OrnamentDiyas      Ornament = "diyas"
	OrnamentRangoli    Ornament = "rangoli"
	OrnamentBalloons   Ornament = "balloons"
	OrnamentRibbons    Ornament = "ribbons"
)

var Ornaments = []Ornament{
	OrnamentGarlands, OrnamentFairyLight, OrnamentDiyas,
	OrnamentRangoli, OrnamentBalloons, OrnamentRibbons,
}

func (o Ornament) Valid() bool {
	for _, known := range Ornaments {
		if o == known {
			return true
		}
	}
	return false
}

// Requests

// ExplanationRequest is what the tutor UI submits. ImageData is a data URL
// or bare base64 image of a textbook page or handwritten question.
type ExplanationRequest struct {
	Language     Language `json:"language"`
	Subject      Subject  `json:"subject"`
	QuestionText string   `json:"question_text,omitempty"`
	ImageData    string   `json:"image_data,omitempty"`
}

func (r *ExplanationRequest) Validate() error {
	if !r.Language.Valid() {
		return apperrors.Newf(apperrors.KindValidation, "unknown language %q", r.Language)
	}
	if !r.Subject.Valid() {
		return apperrors.Newf(apperrors.KindValidation, "unknown subject %q", r.Subject)
	}
	if strings.TrimSpace(r.QuestionText) == "" && r.ImageData == "" {
		return apperrors.New(apperrors.KindValidation, "type a question or attach a photo of it")
	}
	return nil
}

// ArtTransformationRequest is what the painter UI submits. Images may be
// inline data URLs; when empty the session photo tray is used instead.
type ArtTransformationRequest struct {
	Images          []string        `json:"images,omitempty"`
	BackgroundStyle BackgroundStyle `json:"background_style"`
	SeasonalTheme   SeasonalTheme   `json:"seasonal_theme"`
	OutputFormat    OutputFormat    `json:"output_format"`
	Ornaments       []Ornament      `json:"ornaments,omitempty"`
}

// Validate checks the option enums. Image presence is checked by the
// handler after merging inline images with the session tray.
func (r *ArtTransformationRequest) Validate() error {
	if !r.BackgroundStyle.Valid() {
		return apperrors.Newf(apperrors.KindValidation, "unknown background style %q", r.BackgroundStyle)
	}
	if !r.SeasonalTheme.Valid() {
		return apperrors.Newf(apperrors.KindValidation, "unknown seasonal theme %q", r.SeasonalTheme)
	}
	if !r.OutputFormat.Valid() {
		return apperrors.Newf(apperrors.KindValidation, "unknown output format %q", r.OutputFormat)
	}
	for _, o := range r.Ornaments {
		if !o.Valid() {
			return apperrors.Newf(apperrors.KindValidation, "unknown ornament %q", o)
		}
	}
	return nil
}

type NarrationRequest struct {
	// Text overrides the narration derived from the session's last
	// explanation. Optional.
	Text string `json:"text,omitempty"`
}

// Results

// WrittenStyle is the structured half of an explanation. All five fields
// are required; the backend is schema-constrained to produce them but the
// parser verifies anyway.
type WrittenStyle struct {
	TopicName     string   `json:"topic_name"`
	SimpleMeaning string   `json:"simple_meaning"`
	StepByStep    []string `json:"step_by_step"`
	EasyExample   string   `json:"easy_example"`
	ShortSummary  string   `json:"short_summary"`
}

// MissingFields lists the required field names that are empty.
func (w *WrittenStyle) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(w.TopicName) == "" {
		missing = append(missing, "topic_name")
	}
	if strings.TrimSpace(w.SimpleMeaning) == "" {
		missing = append(missing, "simple_meaning")
	}
	if len(w.StepByStep) == 0 {
		missing = append(missing, "step_by_step")
	}
	if strings.TrimSpace(w.EasyExample) == "" {
		missing = append(missing, "easy_example")
	}
	if strings.TrimSpace(w.ShortSummary) == "" {
		missing = append(missing, "short_summary")
	}
	return missing
}

type ExplanationResult struct {
	SpokenStyle  string       `json:"spoken_style"`
	WrittenStyle WrittenStyle `json:"written_style"`
}

// Narration flattens the result into the single string sent for speech
/// synthesis: the spoken-style lead-in followed by the written breakdown.
func (r *ExplanationResult) Narration() string {
	parts := []string{
		r.SpokenStyle,
		r.WrittenStyle.TopicName + ".",
		r.WrittenStyle.SimpleMeaning,
	}
	parts = append(parts, r.WrittenStyle.StepByStep...)
	parts = append(parts, r.WrittenStyle.EasyExample, r.WrittenStyle.ShortSummary)

	var nonEmpty []string
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// API response DTOs

type ExplanationResponse struct {
	Explanation *ExplanationResult `json:"explanation"`
	// DiagramDataURL is best-effort enrichment; absent when diagram
	// generation failed or was skipped.
	DiagramDataURL string `json:"diagram_data_url,omitempty"`
}

type ArtTransformationResponse struct {
	ImageDataURL string `json:"image_data_url"`
	FileName     string `json:"file_name"`
	Balance      int64  `json:"balance"`
}

type WalletResponse struct {
	Balance   int64 `json:"balance"`
	UnitPrice int64 `json:"unit_price"`
}

type NarrationStatus struct {
	State      string `json:"state"` // "playing" or "idle"
	DurationMs int    `json:"duration_ms,omitempty"`
}

type SessionResponse struct {
	SessionID      string    `json:"session_id"`
	PhotoCount     int       `json:"photo_count"`
	HasExplanation bool      `json:"has_explanation"`
	HasArtwork     bool      `json:"has_artwork"`
	Balance        int64     `json:"balance"`
	CreatedAt      time.Time `json:"created_at"`
}

// OptionsResponse is the enum catalog both UIs render their pickers from.
type OptionsResponse struct {
	Languages        []Language        `json:"languages"`
	Subjects         []Subject         `json:"subjects"`
	BackgroundStyles []BackgroundStyle `json:"background_styles"`
	SeasonalThemes   []SeasonalTheme   `json:"seasonal_themes"`
	OutputFormats    []OutputFormat    `json:"output_formats"`
	Ornaments        []Ornament        `json:"ornaments"`
}

func Options() OptionsResponse {
	return OptionsResponse{
		Languages:        Languages,
		Subjects:         Subjects,
		BackgroundStyles: BackgroundStyles,
		SeasonalThemes:   SeasonalThemes,
		OutputFormats:    OutputFormats,
		Ornaments:        Ornaments,
	}
}

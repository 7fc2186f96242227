package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/padhai-labs/guru/internal/apperrors"
	"github.com/padhai-labs/guru/internal/audio"
	"github.com/padhai-labs/guru/internal/events"
	"github.com/padhai-labs/guru/internal/imagedata"
	"github.com/padhai-labs/guru/internal/inflight"
	"github.com/padhai-labs/guru/internal/models"
	"github.com/padhai-labs/guru/internal/services"
	"github.com/padhai-labs/guru/internal/session"
	"github.com/padhai-labs/guru/internal/wallet"
)

// Narrator is what the handlers need from the playback driver.
type Narrator interface {
	Play(buf *audio.Buffer) error
	Stop()
	State() audio.PlaybackState
}

type Handler struct {
	logger   *zap.Logger
	sessions *session.Manager
	wallet   *wallet.Service
	guard    inflight.Guard
	hub      *events.Hub
	player   Narrator

	explain services.ExplanationProvider
	speech  services.SpeechProvider
	diagram services.DiagramProvider
	artist  services.ArtProvider
}

func NewHandler(
	logger *zap.Logger,
	sessions *session.Manager,
	walletSvc *wallet.Service,
	guard inflight.Guard,
	hub *events.Hub,
	player Narrator,
	explain services.ExplanationProvider,
	speech services.SpeechProvider,
	diagram services.DiagramProvider,
	artist services.ArtProvider,
) *Handler {
	return &Handler{
		logger:   logger,
		sessions: sessions,
		wallet:   walletSvc,
		guard:    guard,
		hub:      hub,
		player:   player,
		explain:  explain,
		speech:   speech,
		diagram:  diagram,
		artist:   artist,
	}
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Options handles GET /v1/options — the enum catalog for both UIs.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.Options())
}

// CreateSession handles POST /v1/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	if err := h.wallet.Open(r.Context(), s.ID); err != nil {
		h.sessions.Delete(s.ID)
		h.respondError(w, err)
		return
	}

	h.logger.Info("session created", zap.String("session_id", s.ID))
	respondJSON(w, http.StatusCreated, h.sessionSnapshot(r, s))
}

// GetSession handles GET /v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.sessionSnapshot(r, s))
}

// DeleteSession handles DELETE /v1/sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	h.sessions.Delete(s.ID)
	if err := h.wallet.Close(r.Context(), s.ID); err != nil {
		h.logger.Warn("closing wallet", zap.String("session_id", s.ID), zap.Error(err))
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AddPhoto handles POST /v1/sessions/{id}/photos
func (h *Handler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, apperrors.New(apperrors.KindValidation, "invalid request body"))
		return
	}

	img, err := imagedata.Decode(req.Image)
	if err != nil {
		h.respondError(w, err)
		return
	}

	count, err := s.AddPhoto(img)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int{"photo_count": count})
}

// ClearPhotos handles DELETE /v1/sessions/{id}/photos
func (h *Handler) ClearPhotos(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearPhotos()
	respondJSON(w, http.StatusOK, map[string]int{"photo_count": 0})
}

// RemovePhoto handles DELETE /v1/sessions/{id}/photos/{index}
func (h *Handler) RemovePhoto(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.respondError(w, apperrors.New(apperrors.KindValidation, "invalid photo index"))
		return
	}
	if err := s.RemovePhoto(index); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"photo_count": s.PhotoCount()})
}

// CreateExplanation handles POST /v1/sessions/{id}/explanations
func (h *Handler) CreateExplanation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.ExplanationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, apperrors.New(apperrors.KindValidation, "invalid request body"))
		return
	}
	// Validation rejects before any remote call.
	if err := req.Validate(); err != nil {
		h.respondError(w, err)
		return
	}

	release, ok := h.acquire(w, r, "explanation", s.ID)
	if !ok {
		return
	}
	defer release()
	h.hub.EmitLoading(s.ID, "explanation", true)
	defer h.hub.EmitLoading(s.ID, "explanation", false)

	s.BeginExplanation()
	result, err := h.explain.GenerateExplanation(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	s.SetExplanation(result)

	// Diagram generation is decorative: failure is logged, never shown.
	response := models.ExplanationResponse{Explanation: result}
	if h.diagram != nil {
		if img, err := h.diagram.GenerateDiagram(r.Context(), result.WrittenStyle.TopicName); err != nil {
			h.logger.Warn("diagram generation failed",
				zap.String("topic", result.WrittenStyle.TopicName), zap.Error(err))
		} else {
			response.DiagramDataURL = imagedata.DataURL(img.Data, img.MimeType)
		}
	}

	respondJSON(w, http.StatusOK, response)
}

// CreateNarration handles POST /v1/sessions/{id}/narrations — synthesize
// and play through the device speaker.
func (h *Handler) CreateNarration(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.NarrationRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, apperrors.New(apperrors.KindValidation, "invalid request body"))
			return
		}
	}

	text := req.Text
	if text == "" {
		result := s.Explanation()
		if result == nil {
			h.respondError(w, apperrors.New(apperrors.KindValidation, "nothing to narrate: ask a question first"))
			return
		}
		text = result.Narration()
	}

	release, ok := h.acquire(w, r, "narration", s.ID)
	if !ok {
		return
	}
	defer release()
	h.hub.EmitLoading(s.ID, "narration", true)
	defer h.hub.EmitLoading(s.ID, "narration", false)

	speech, err := h.speech.GenerateSpeech(r.Context(), text)
	if err != nil {
		h.respondError(w, err)
		return
	}

	buf, err := audio.Decode(speech.PCM, speech.SampleRate, speech.ChannelCount)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.player.Play(buf); err != nil {
		h.respondError(w, fmt.Errorf("playback failed: %w", err))
		return
	}

	respondJSON(w, http.StatusOK, models.NarrationStatus{
		State:      string(audio.StatePlaying),
		DurationMs: buf.DurationMs(),
	})
}

// StopNarration handles POST /v1/sessions/{id}/narrations/stop. Stopping
// when nothing is playing is fine.
func (h *Handler) StopNarration(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	h.player.Stop()
	respondJSON(w, http.StatusOK, models.NarrationStatus{State: string(audio.StateIdle)})
}

// GetNarration handles GET /v1/sessions/{id}/narrations
func (h *Handler) GetNarration(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	respondJSON(w, http.StatusOK, models.NarrationStatus{State: string(h.player.State())})
}

// CreateArt handles POST /v1/sessions/{id}/art
func (h *Handler) CreateArt(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.ArtTransformationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, apperrors.New(apperrors.KindValidation, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, err)
		return
	}

	// Inline photos win; otherwise the session tray is the source.
	var images []imagedata.Image
	if len(req.Images) > 0 {
		decoded, err := imagedata.DecodeAll(r.Context(), req.Images)
		if err != nil {
			h.respondError(w, err)
			return
		}
		images = decoded
	} else {
		images = s.Photos()
	}
	if len(images) == 0 {
		h.respondError(w, apperrors.New(apperrors.KindValidation, "add at least one photo"))
		return
	}

	release, ok := h.acquire(w, r, "art", s.ID)
	if !ok {
		return
	}
	defer release()
	h.hub.EmitLoading(s.ID, "art", true)
	defer h.hub.EmitLoading(s.ID, "art", false)

	// Funds are checked before the request is issued, debited only after
	// a successful result.
	if err := h.wallet.CheckFunds(r.Context(), s.ID); err != nil {
		h.respondError(w, err)
		return
	}

	artReq := &services.ArtRequest{
		Images:          images,
		BackgroundStyle: req.BackgroundStyle,
		SeasonalTheme:   req.SeasonalTheme,
		AspectRatio:     req.OutputFormat.AspectRatio(),
		Ornaments:       req.Ornaments,
	}
	img, err := h.artist.TransformArt(r.Context(), artReq)
	if err != nil {
		h.respondError(w, err)
		return
	}

	now := time.Now()
	art := &session.Artwork{
		Data:      img.Data,
		MimeType:  img.MimeType,
		FileName:  fmt.Sprintf("digital-painting-%s.png", now.Format("20060102-150405")),
		CreatedAt: now,
	}
	s.SetArtwork(art)

	balance, err := h.wallet.DebitArt(r.Context(), s.ID)
	if err != nil {
		// The artwork was generated; surface the wallet problem but keep
		// the result available for download.
		h.logger.Error("debit after successful art generation failed",
			zap.String("session_id", s.ID), zap.Error(err))
		h.respondError(w, err)
		return
	}
	h.hub.EmitWallet(s.ID, balance)

	respondJSON(w, http.StatusOK, models.ArtTransformationResponse{
		ImageDataURL: imagedata.DataURL(img.Data, img.MimeType),
		FileName:     art.FileName,
		Balance:      balance,
	})
}

// DownloadArt handles GET /v1/sessions/{id}/art/download
func (h *Handler) DownloadArt(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	art := s.Artwork()
	if art == nil {
		h.respondError(w, apperrors.New(apperrors.KindNotFound, "no artwork generated yet"))
		return
	}

	w.Header().Set("Content-Type", art.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.Write(art.Data)
}

// GetWallet handles GET /v1/sessions/{id}/wallet
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	balance, err := h.wallet.Balance(r.Context(), s.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models.WalletResponse{
		Balance:   balance,
		UnitPrice: h.wallet.UnitPrice(),
	})
}

// TopUpWallet handles POST /v1/sessions/{id}/wallet/credits
func (h *Handler) TopUpWallet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, apperrors.New(apperrors.KindValidation, "invalid request body"))
		return
	}

	balance, err := h.wallet.TopUp(r.Context(), s.ID, req.Amount)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.hub.EmitWallet(s.ID, balance)

	respondJSON(w, http.StatusOK, models.WalletResponse{
		Balance:   balance,
		UnitPrice: h.wallet.UnitPrice(),
	})
}

// Events handles GET /v1/events (websocket)
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeHTTP(w, r)
}

// Helpers

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return nil, false
	}
	return s, true
}

// acquire claims the per-session busy guard for one action kind. A held
// guard means a request of that kind is still running: respond 409
// instead of queueing.
func (h *Handler) acquire(w http.ResponseWriter, r *http.Request, kind, sessionID string) (func(), bool) {
	release, ok, err := h.guard.TryAcquire(r.Context(), kind+":"+sessionID)
	if err != nil {
		h.respondError(w, err)
		return nil, false
	}
	if !ok {
		h.respondError(w, apperrors.Newf(apperrors.KindConflict,
			"another %s request is already in progress", kind))
		return nil, false
	}
	return release, true
}

func (h *Handler) sessionSnapshot(r *http.Request, s *session.Session) models.SessionResponse {
	balance, err := h.wallet.Balance(r.Context(), s.ID)
	if err != nil {
		h.logger.Warn("reading wallet balance", zap.String("session_id", s.ID), zap.Error(err))
	}
	return models.SessionResponse{
		SessionID:      s.ID,
		PhotoCount:     s.PhotoCount(),
		HasExplanation: s.HasExplanation(),
		HasArtwork:     s.HasArtwork(),
		Balance:        balance,
		CreatedAt:      s.CreatedAt,
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}

	code := "internal"
	if kind, ok := apperrors.KindOf(err); ok {
		code = string(kind)
	}
	respondJSON(w, status, map[string]string{
		"error": apperrors.Message(err),
		"code":  code,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

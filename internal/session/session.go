// Package session holds the transient per-user state both front-ends work
// against: the photo tray, the last explanation, and the last artwork.
// Nothing here survives a restart; sessions expire after a quiet period.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/padhai-labs/guru/internal/apperrors"
	"github.com/padhai-labs/guru/internal/imagedata"
	"github.com/padhai-labs/guru/internal/models"
)

const maxTrayPhotos = 6

// Artwork is the last generated painting, kept only so the download
// endpoint can serve it.
type Artwork struct {
	Data      []byte
	MimeType  string
	FileName  string
	CreatedAt time.Time
}

type Session struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	lastSeen    time.Time
	tray        []imagedata.Image
	explanation *models.ExplanationResult
	artwork     *Artwork
}

func (s *Session) touch() {
	s.lastSeen = time.Now()
}

// AddPhoto appends to the tray, newest last.
func (s *Session) AddPhoto(img imagedata.Image) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if len(s.tray) >= maxTrayPhotos {
		return len(s.tray), apperrors.Newf(apperrors.KindValidation,
			"photo tray is full (%d photos)", maxTrayPhotos)
	}
	s.tray = append(s.tray, img)
	return len(s.tray), nil
}

func (s *Session) RemovePhoto(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if index < 0 || index >= len(s.tray) {
		return apperrors.Newf(apperrors.KindNotFound, "no photo at index %d", index)
	}
	s.tray = append(s.tray[:index], s.tray[index+1:]...)
	return nil
}

func (s *Session) ClearPhotos() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.tray = nil
}

// Photos returns a snapshot of the tray in insertion order.
func (s *Session) Photos() []imagedata.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	out := make([]imagedata.Image, len(s.tray))
	copy(out, s.tray)
	return out
}

func (s *Session) PhotoCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tray)
}

// BeginExplanation discards the previous result before the new request
// goes out, so a failed call leaves no stale explanation behind.
func (s *Session) BeginExplanation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.explanation = nil
}

func (s *Session) SetExplanation(result *models.ExplanationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.explanation = result
}

func (s *Session) Explanation() *models.ExplanationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.explanation
}

func (s *Session) SetArtwork(art *Artwork) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.artwork = art
}

func (s *Session) Artwork() *Artwork {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.artwork
}

func (s *Session) HasExplanation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.explanation != nil
}

func (s *Session) HasArtwork() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artwork != nil
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Manager owns all live sessions and expires the quiet ones.
type Manager struct {
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	// onExpire lets the caller release per-session state owned
	// elsewhere (the wallet).
	onExpire func(sessionID string)
}

func NewManager(ttl time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) SetExpireHook(fn func(sessionID string)) {
	m.onExpire = fn
}

func (m *Manager) Create() *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		lastSeen:  now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()

	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, "session not found")
	}
	return s, nil
}

func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Start runs the expiry sweep until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	interval := m.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	var expired []string
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.logger.Info("session expired", zap.String("session_id", id))
		if m.onExpire != nil {
			m.onExpire(id)
		}
	}
}

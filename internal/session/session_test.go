package session

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/padhai-labs/guru/internal/apperrors"
	"github.com/padhai-labs/guru/internal/imagedata"
	"github.com/padhai-labs/guru/internal/models"
)

func photo(b byte) imagedata.Image {
	return imagedata.Image{Data: []byte{b}, MimeType: "image/jpeg"}
}

func TestTrayOrderAndRemoval(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())
	s := m.Create()

	for _, b := range []byte{1, 2, 3} {
		if _, err := s.AddPhoto(photo(b)); err != nil {
			t.Fatalf("AddPhoto() error: %v", err)
		}
	}

	if err := s.RemovePhoto(1); err != nil {
		t.Fatalf("RemovePhoto(1) error: %v", err)
	}
	photos := s.Photos()
	if len(photos) != 2 || photos[0].Data[0] != 1 || photos[1].Data[0] != 3 {
		t.Errorf("tray after removal = %v", photos)
	}

	if err := s.RemovePhoto(5); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Errorf("RemovePhoto(out of range) = %v, want not_found", err)
	}

	s.ClearPhotos()
	if s.PhotoCount() != 0 {
		t.Errorf("PhotoCount() after clear = %d", s.PhotoCount())
	}
}

func TestTrayCap(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())
	s := m.Create()

	for i := 0; i < maxTrayPhotos; i++ {
		if _, err := s.AddPhoto(photo(byte(i))); err != nil {
			t.Fatalf("AddPhoto(%d) error: %v", i, err)
		}
	}
	if _, err := s.AddPhoto(photo(99)); !apperrors.Is(err, apperrors.KindValidation) {
		t.Errorf("AddPhoto beyond cap = %v, want validation error", err)
	}
}

func TestBeginExplanationDiscardsPrevious(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())
	s := m.Create()

	s.SetExplanation(&models.ExplanationResult{SpokenStyle: "old"})
	if !s.HasExplanation() {
		t.Fatal("HasExplanation() = false after Set")
	}

	s.BeginExplanation()
	if s.Explanation() != nil {
		t.Error("previous result not discarded when a new request starts")
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(time.Minute, zap.NewNop())
	s := m.Create()

	got, err := m.Get(s.ID)
	if err != nil || got.ID != s.ID {
		t.Fatalf("Get() = %v, %v", got, err)
	}

	m.Delete(s.ID)
	if _, err := m.Get(s.ID); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Errorf("Get(deleted) = %v, want not_found", err)
	}
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	m := NewManager(10*time.Millisecond, zap.NewNop())

	var expired []string
	m.SetExpireHook(func(id string) { expired = append(expired, id) })

	idle := m.Create()
	fresh := m.Create()

	time.Sleep(20 * time.Millisecond)
	fresh.Photos() // touches fresh

	m.sweep()

	if _, err := m.Get(idle.ID); err == nil {
		t.Error("idle session survived the sweep")
	}
	if _, err := m.Get(fresh.ID); err != nil {
		t.Error("recently touched session was expired")
	}
	if len(expired) != 1 || expired[0] != idle.ID {
		t.Errorf("expire hook fired for %v, want [%s]", expired, idle.ID)
	}
}

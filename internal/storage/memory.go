package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/xaenox/daily-brief/internal/metrics"
	"github.com/xaenox/daily-brief/internal/models"
	"go.uber.org/zap"
)

// Directory is the in-memory phone -> profile snapshot. Each Refresh replaces it wholesale.
type Directory struct {
	source ProfileSource
	logger *zap.Logger

	mu       sync.RWMutex
	profiles map[string]models.UserProfile
}

func NewDirectory(source ProfileSource, logger *zap.Logger) *Directory {
	return &Directory{
		source:   source,
		logger:   logger,
		profiles: make(map[string]models.UserProfile),
	}
}

// Refresh reloads every row from the source. On a fetch error the previous snapshot is kept.
func (d *Directory) Refresh(ctx context.Context) error {
	records, err := d.source.Records(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch profiles: %w", err)
	}

	profiles := make(map[string]models.UserProfile, len(records))
	for i, rec := range records {
		p, err := models.ProfileFromRecord(rec)
		if errors.Is(err, models.ErrIncompleteRecord) {
			continue
		}
		if err != nil {
			// Header is row 1.
			d.logger.Error("Failed to parse directory row",
				zap.Error(err),
				zap.Int("row", i+2))
			continue
		}
		profiles[p.Phone] = p
	}

	d.mu.Lock()
	d.profiles = profiles
	d.mu.Unlock()
	metrics.RecordDirectory(len(profiles))

	d.logger.Info("Loaded users", zap.Int("count", len(profiles)))
	return nil
}

func (d *Directory) Lookup(phone string) (models.UserProfile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.profiles[phone]
	return p, ok
}

// Profiles returns a copy of the current snapshot ordered by phone.
func (d *Directory) Profiles() []models.UserProfile {
	d.mu.RLock()
	out := make([]models.UserProfile, 0, len(d.profiles))
	for _, p := range d.profiles {
		out = append(out, p)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.profiles)
}

// PendingRequests holds at most one special request per phone until the next briefing takes it.
type PendingRequests struct {
	mu       sync.Mutex
	requests map[string]string
}

func NewPendingRequests() *PendingRequests {
	return &PendingRequests{requests: make(map[string]string)}
}

// Record overwrites any earlier request from the same phone.
func (s *PendingRequests) Record(phone, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[phone] = text
}

// Take returns the pending request for phone and removes it.
func (s *PendingRequests) Take(phone string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text, ok := s.requests[phone]
	if ok {
		delete(s.requests, phone)
	}
	return text, ok
}

func (s *PendingRequests) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

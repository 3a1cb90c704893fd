package store

import (
	"context"
	"sync"

	"github.com/ashaai/fieldsync/internal/models"
)

// StorageKey names the single persisted record.
const StorageKey = "asha-ai-storage"

// PersistVersion is the current layout of Persisted.
const PersistVersion = 1

// Persisted is the durable subset of State.
type Persisted struct {
	Version       int                         `json:"version"`
	Beneficiaries []models.BeneficiaryProfile `json:"beneficiaries"`
	Children      []models.Child              `json:"children"`
	HealthLogs    []models.HealthLog          `json:"healthLogs"`
	DailyLogs     []models.DailyLog           `json:"dailyLogs"`
	Alerts        []models.Alert              `json:"alerts"`
	Schemes       []models.Scheme             `json:"schemes"`
	Enrollments   []models.Enrollment         `json:"enrollments"`
	SyncQueue     []models.SyncQueueItem      `json:"syncQueue"`
	Language      string                      `json:"language"`
	Theme         string                      `json:"theme"`
}

// Saver writes the durable record.
type Saver interface {
	Save(ctx context.Context, p Persisted) error
}

// Loader reads the durable record. A missing record is (nil, nil).
type Loader interface {
	Load(ctx context.Context) (*Persisted, error)
}

func toPersisted(s State) Persisted {
	return Persisted{
		Version:       PersistVersion,
		Beneficiaries: s.Beneficiaries,
		Children:      s.Children,
		HealthLogs:    s.HealthLogs,
		DailyLogs:     s.DailyLogs,
		Alerts:        s.Alerts,
		Schemes:       s.Schemes,
		Enrollments:   s.Enrollments,
		SyncQueue:     s.SyncQueue,
		Language:      s.Language,
		Theme:         s.Theme,
	}
}

func fromPersisted(p Persisted) State {
	s := State{
		Beneficiaries: p.Beneficiaries,
		Children:      p.Children,
		HealthLogs:    p.HealthLogs,
		DailyLogs:     p.DailyLogs,
		Alerts:        p.Alerts,
		Schemes:       p.Schemes,
		Enrollments:   p.Enrollments,
		SyncQueue:     p.SyncQueue,
		Language:      p.Language,
		Theme:         p.Theme,
	}
	if s.Language == "" {
		s.Language = DefaultLanguage
	}
	if s.Theme == "" {
		s.Theme = ThemeLight
	}
	return s
}

// MemorySaver keeps the last saved record in memory.
type MemorySaver struct {
	mu    sync.Mutex
	last  *Persisted
	saves int
}

// Save implements Saver.
func (m *MemorySaver) Save(_ context.Context, p Persisted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = &p
	m.saves++
	return nil
}

// Load implements Loader.
func (m *MemorySaver) Load(_ context.Context) (*Persisted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil, nil
	}
	p := *m.last
	return &p, nil
}

// Saves returns how many times Save ran.
func (m *MemorySaver) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

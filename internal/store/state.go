// Package store holds the client-side state: entity collections, the sync
// queue, preferences and connectivity flags.
package store

import "github.com/ashaai/fieldsync/internal/models"

// Preference values.
const (
	DefaultLanguage = "en"
	ThemeLight      = "light"
	ThemeDark       = "dark"
)

// State is an immutable snapshot. Readers must not modify the slices.
type State struct {
	Beneficiaries []models.BeneficiaryProfile
	Children      []models.Child
	HealthLogs    []models.HealthLog
	DailyLogs     []models.DailyLog
	Alerts        []models.Alert
	Schemes       []models.Scheme
	Enrollments   []models.Enrollment
	SyncQueue     []models.SyncQueueItem

	Language string
	Theme    string

	// Not persisted. IsOnline is owned by the connectivity monitor and
	// IsSyncing by the queue processor.
	IsOnline  bool
	IsSyncing bool
}

// clone copies every slice header so an updater can append, filter or
// replace elements without touching the previous snapshot.
func (s State) clone() State {
	c := s
	c.Beneficiaries = cloneSlice(s.Beneficiaries)
	c.Children = cloneSlice(s.Children)
	c.HealthLogs = cloneSlice(s.HealthLogs)
	c.DailyLogs = cloneSlice(s.DailyLogs)
	c.Alerts = cloneSlice(s.Alerts)
	c.Schemes = cloneSlice(s.Schemes)
	c.Enrollments = cloneSlice(s.Enrollments)
	c.SyncQueue = cloneSlice(s.SyncQueue)
	return c
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

// Pending is the number of queued writes.
func (s State) Pending() int {
	return len(s.SyncQueue)
}

// Status is the connectivity indicator shown to the user.
type Status struct {
	IsOnline  bool `json:"isOnline"`
	IsSyncing bool `json:"isSyncing"`
	Pending   int  `json:"pending"`
}

// Status returns the indicator for this snapshot.
func (s State) Status() Status {
	return Status{IsOnline: s.IsOnline, IsSyncing: s.IsSyncing, Pending: s.Pending()}
}

package models

// HealthLog is a vitals reading taken by a health worker.
type HealthLog struct {
	ID            string   `json:"id"`
	BeneficiaryID string   `json:"beneficiaryId"`
	Date          string   `json:"date"`
	BPSystolic    int      `json:"bpSystolic"`
	BPDiastolic   int      `json:"bpDiastolic"`
	Symptoms      []string `json:"symptoms"`
	Mood          string   `json:"mood,omitempty"`
	IsEmergency   bool     `json:"isEmergency"`
}

// TableName returns the backend table for HealthLog.
func (HealthLog) TableName() string {
	return "health_logs"
}

// DailyLog is a self-reported entry. There is at most one per (UserID, Date).
type DailyLog struct {
	ID       string   `json:"id"`
	UserID   string   `json:"userId"`
	Date     string   `json:"date"` // YYYY-MM-DD
	Symptoms []string `json:"symptoms"`
	Mood     string   `json:"mood"`
	Notes    string   `json:"notes"`
	Flow     string   `json:"flow,omitempty"`
}

// TableName returns the backend table for DailyLog.
func (DailyLog) TableName() string {
	return "daily_logs"
}

// SameDay reports whether l and o share the natural key.
func (l DailyLog) SameDay(o DailyLog) bool {
	return l.UserID == o.UserID && l.Date == o.Date
}

// Alert severities, statuses and types.
const (
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"

	AlertOpen     = "open"
	AlertResolved = "resolved"

	AlertSOS        = "sos"
	AlertHealthRisk = "health_risk"
)

// Alert is an emergency or risk signal for a beneficiary.
type Alert struct {
	ID              string `json:"id"`
	BeneficiaryID   string `json:"beneficiaryId"`
	Severity        string `json:"severity"`
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp"` // RFC 3339
	Type            string `json:"type"`
	Reason          string `json:"reason,omitempty"`
	ResolvedAt      string `json:"resolvedAt,omitempty"`
	ResolvedBy      string `json:"resolvedBy,omitempty"`
	TriggeredBy     string `json:"triggeredBy,omitempty"`
	ResolutionNotes string `json:"resolutionNotes,omitempty"`
}

// TableName returns the backend table for Alert.
func (Alert) TableName() string {
	return "alerts"
}

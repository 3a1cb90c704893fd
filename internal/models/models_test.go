// Package models tests for domain entities and sparse updates.
package models

import (
	"encoding/json"
	"testing"
	"time"
)

func strp(s string) *string { return &s }

// =====================================================
// Table names
// =====================================================

// TestTableNames verifies each entity maps to its backend table.
func TestTableNames(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"BeneficiaryProfile", BeneficiaryProfile{}.TableName(), "beneficiary_profiles"},
		{"HealthLog", HealthLog{}.TableName(), "health_logs"},
		{"DailyLog", DailyLog{}.TableName(), "daily_logs"},
		{"Alert", Alert{}.TableName(), "alerts"},
		{"Scheme", Scheme{}.TableName(), "schemes"},
		{"Enrollment", Enrollment{}.TableName(), "scheme_beneficiaries"},
		{"Child", Child{}.TableName(), "children"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s.TableName() = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

// =====================================================
// Sparse updates
// =====================================================

// TestProfileUpdate_ApplyTo verifies only set fields change.
func TestProfileUpdate_ApplyTo(t *testing.T) {
	age := 24
	p := BeneficiaryProfile{ID: "b1", Name: "Sita", RiskLevel: "low", BloodGroup: "O+"}

	ProfileUpdate{RiskLevel: strp("high"), Age: &age}.ApplyTo(&p)

	if p.RiskLevel != "high" {
		t.Errorf("RiskLevel = %q, want high", p.RiskLevel)
	}
	if p.Age == nil || *p.Age != 24 {
		t.Errorf("Age = %v, want 24", p.Age)
	}
	if p.Name != "Sita" || p.BloodGroup != "O+" {
		t.Errorf("untouched fields changed: %+v", p)
	}

	age = 30
	if *p.Age != 24 {
		t.Error("ApplyTo() should copy pointer values")
	}
}

// TestProfileUpdate_emptyIsNoop verifies an empty update leaves the profile as is.
func TestProfileUpdate_emptyIsNoop(t *testing.T) {
	p := BeneficiaryProfile{ID: "b1", Name: "Sita", GPSCoords: &GeoPoint{Lat: 1, Lng: 2}}
	before, _ := json.Marshal(p)

	ProfileUpdate{}.ApplyTo(&p)

	after, _ := json.Marshal(p)
	if string(before) != string(after) {
		t.Errorf("ApplyTo(empty) changed profile: %s -> %s", before, after)
	}
}

// TestSchemeUpdate_ApplyTo verifies scheme merges, including audience replacement.
func TestSchemeUpdate_ApplyTo(t *testing.T) {
	budget := 5000.0
	s := Scheme{
		ID: "s1", Title: "Poshan", Status: "draft", EnrolledCount: 7,
		TargetAudience: TargetAudience{UserTypes: []string{"girl"}},
	}

	SchemeUpdate{
		Status:         strp("active"),
		Budget:         &budget,
		TargetAudience: &TargetAudience{UserTypes: []string{"pregnant", "mother"}},
	}.ApplyTo(&s)

	if s.Status != "active" || s.Budget != 5000 {
		t.Errorf("Status/Budget = %q/%v", s.Status, s.Budget)
	}
	if len(s.TargetAudience.UserTypes) != 2 {
		t.Errorf("UserTypes = %v, want 2 entries", s.TargetAudience.UserTypes)
	}
	if s.Title != "Poshan" || s.EnrolledCount != 7 {
		t.Errorf("untouched fields changed: %+v", s)
	}
}

// TestChildUpdate_ApplyTo verifies child merges.
func TestChildUpdate_ApplyTo(t *testing.T) {
	c := Child{ID: "c1", Name: "Asha", Vaccinations: []string{"BCG"}}
	ChildUpdate{Vaccinations: []string{"BCG", "OPV"}}.ApplyTo(&c)

	if len(c.Vaccinations) != 2 || c.Name != "Asha" {
		t.Errorf("child = %+v", c)
	}
}

// =====================================================
// Queue items
// =====================================================

// TestSyncQueueItem_json verifies the persisted field names.
func TestSyncQueueItem_json(t *testing.T) {
	item := SyncQueueItem{
		ID:         "q1",
		Type:       OpAddHealthLog,
		Payload:    json.RawMessage(`{"id":"h1"}`),
		CreatedAt:  1700000000000,
		RetryCount: 2,
	}
	data, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"id":"q1","type":"ADD_HEALTH_LOG","payload":{"id":"h1"},"createdAt":1700000000000,"retryCount":2}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
	if !item.CreatedAtTime().Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("CreatedAtTime() = %v", item.CreatedAtTime())
	}
}

// TestOperationKinds_unique verifies no kind is listed twice.
func TestOperationKinds_unique(t *testing.T) {
	seen := map[OperationKind]bool{}
	for _, k := range OperationKinds {
		if seen[k] {
			t.Errorf("duplicate kind %q", k)
		}
		seen[k] = true
	}
	if len(seen) != 7 {
		t.Errorf("kinds = %d, want 7", len(seen))
	}
}

// TestDailyLog_SameDay verifies the natural key comparison.
func TestDailyLog_SameDay(t *testing.T) {
	a := DailyLog{UserID: "u1", Date: "2024-01-01"}
	if !a.SameDay(DailyLog{UserID: "u1", Date: "2024-01-01", ID: "other"}) {
		t.Error("same user and date should match")
	}
	if a.SameDay(DailyLog{UserID: "u2", Date: "2024-01-01"}) {
		t.Error("different user should not match")
	}
}

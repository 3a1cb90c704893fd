package codec

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/models"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }
func strp(v string) *string     { return &v }

// fixtures returns a fully populated entity per table.
func fixtures() map[string]any {
	return map[string]any{
		Profiles.Name: models.BeneficiaryProfile{
			ID: "b1", UserID: "u1", Name: "Sita", UserType: "pregnant",
			Age: intp(24), Height: floatp(152.5), Weight: floatp(51),
			BloodGroup: "B+", PregnancyStage: "trimester_2", PregnancyWeek: intp(18),
			LastPeriodDate: "2024-01-02", EDD: "2024-10-09", AnemiaStatus: "mild",
			RiskLevel: "medium", EconomicStatus: "bpl", Address: "Ward 4",
			GPSCoords: &models.GeoPoint{Lat: 25.3, Lng: 83.0}, LinkedAshaID: "a1",
			NextCheckup: "2024-06-01", MedicalHistory: "none",
			CurrentMedications: "iron", Complications: "none",
		},
		HealthLogs.Name: models.HealthLog{
			ID: "h1", BeneficiaryID: "b1", Date: "2024-05-01",
			BPSystolic: 120, BPDiastolic: 80, Symptoms: []string{"headache"},
			Mood: "Tired", IsEmergency: true,
		},
		DailyLogs.Name: models.DailyLog{
			ID: "d1", UserID: "u1", Date: "2024-05-01", Symptoms: []string{"cramps"},
			Mood: "Pain", Notes: "rest", Flow: "Light",
		},
		Alerts.Name: models.Alert{
			ID: "al1", BeneficiaryID: "b1", Severity: "critical", Status: "resolved",
			Timestamp: "2024-05-01T10:00:00Z", Type: "sos", Reason: "bleeding",
			ResolvedAt: "2024-05-01T11:00:00Z", ResolvedBy: "a1", TriggeredBy: "u1",
			ResolutionNotes: "referred",
		},
		Schemes.Name: models.Scheme{
			ID: "s1", Title: "Poshan", Provider: "Govt", Description: "nutrition",
			HeroImage: "hero.png", Benefits: []string{"ration"},
			EligibilityCriteria: []string{"bpl"},
			TargetAudience: models.TargetAudience{
				PregnancyStage: []string{"trimester_1"}, EconomicStatus: []string{"bpl"},
				RiskLevel: []string{"high"}, UserTypes: []string{"pregnant"},
			},
			Status: "active", Budget: 10000, EnrolledCount: 3,
			StartDate: "2024-01-01", EndDate: "2024-12-31", Category: "nutrition",
			MicrositeConfig: json.RawMessage(`{"themeColor":"#fff","tasks":[]}`),
		},
		Enrollments.Name: models.Enrollment{
			ID: "e1", SchemeID: "s1", BeneficiaryID: "b1", Status: "active",
			EnrolledBy: "a1", Date: "2024-05-01T10:00:00Z",
		},
		Children.Name: models.Child{
			ID: "c1", BeneficiaryID: "b1", Name: "Asha", DOB: "2023-01-01",
			Gender: "female", BloodGroup: "O+", Vaccinations: []string{"BCG"},
		},
	}
}

func newOf(table string) any {
	switch table {
	case Profiles.Name:
		return &models.BeneficiaryProfile{}
	case HealthLogs.Name:
		return &models.HealthLog{}
	case DailyLogs.Name:
		return &models.DailyLog{}
	case Alerts.Name:
		return &models.Alert{}
	case Schemes.Name:
		return &models.Scheme{}
	case Enrollments.Name:
		return &models.Enrollment{}
	case Children.Name:
		return &models.Child{}
	}
	return nil
}

// leaves flattens a JSON object into dotted paths. Objects at an opaque path
// are treated as leaves.
func leaves(prefix string, r gjson.Result, opaque map[string]bool, out *[]string) {
	if r.IsObject() && !opaque[prefix] {
		r.ForEach(func(k, v gjson.Result) bool {
			p := k.String()
			if prefix != "" {
				p = prefix + "." + p
			}
			leaves(p, v, opaque, out)
			return true
		})
		return
	}
	*out = append(*out, prefix)
}

// =====================================================
// Completeness
// =====================================================

// TestTables_complete checks every domain leaf has exactly one wire counterpart.
func TestTables_complete(t *testing.T) {
	snake := regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)

	for name, entity := range fixtures() {
		t.Run(name, func(t *testing.T) {
			table, ok := ForName(name)
			require.True(t, ok)

			domainPaths := map[string]int{}
			wirePaths := map[string]int{}
			opaque := map[string]bool{}
			for _, f := range table.Fields {
				domainPaths[f.Domain]++
				wirePaths[f.Wire]++
				opaque[f.Domain] = true
				assert.Regexp(t, snake, f.Wire)
			}
			for p, n := range domainPaths {
				assert.Equal(t, 1, n, "domain path %s listed %d times", p, n)
			}
			for p, n := range wirePaths {
				assert.Equal(t, 1, n, "wire path %s listed %d times", p, n)
			}

			src, err := json.Marshal(entity)
			require.NoError(t, err)
			var got []string
			leaves("", gjson.ParseBytes(src), opaque, &got)
			sort.Strings(got)

			for _, leaf := range got {
				assert.Contains(t, domainPaths, leaf, "domain field %s has no wire mapping", leaf)
			}
			assert.Len(t, got, len(table.Fields), "fixture must populate every mapped field")
		})
	}
}

// TestTables_contract pins the documented field names.
func TestTables_contract(t *testing.T) {
	tests := []struct {
		table  Table
		domain string
		wire   string
	}{
		{Profiles, "userType", "user_type"},
		{Profiles, "bloodGroup", "blood_group"},
		{Profiles, "pregnancyStage", "pregnancy_stage"},
		{Profiles, "lastPeriodDate", "last_period_date"},
		{Profiles, "anemiaStatus", "anemia_status"},
		{Profiles, "riskLevel", "risk_level"},
		{Profiles, "linkedAshaId", "linked_asha_id"},
		{Profiles, "nextCheckup", "next_checkup"},
		{HealthLogs, "beneficiaryId", "beneficiary_id"},
		{HealthLogs, "isEmergency", "is_emergency"},
		{HealthLogs, "bpSystolic", "vitals.bp_systolic"},
		{HealthLogs, "bpDiastolic", "vitals.bp_diastolic"},
		{Schemes, "enrolledCount", "enrolled_count"},
		{Schemes, "heroImage", "hero_image"},
		{Schemes, "title", "scheme_name"},
		{Schemes, "targetAudience.userTypes", "target_audience.user_types"},
		{Children, "bloodGroup", "blood_group"},
		{Alerts, "timestamp", "created_at"},
		{Enrollments, "date", "enrollment_date"},
	}
	for _, tt := range tests {
		assert.Contains(t, tt.table.Fields, Field{Domain: tt.domain, Wire: tt.wire}, "%s", tt.table.Name)
	}
}

// =====================================================
// Round trip
// =====================================================

// TestEncodeDecode_identity checks Decode(Encode(x)) == x on full fixtures.
func TestEncodeDecode_identity(t *testing.T) {
	for name, entity := range fixtures() {
		t.Run(name, func(t *testing.T) {
			table, _ := ForName(name)
			row, err := Encode(table, entity)
			require.NoError(t, err)

			dst := newOf(name)
			require.NoError(t, Decode(table, row, dst))

			want, _ := json.Marshal(entity)
			got, _ := json.Marshal(dst)
			assert.JSONEq(t, string(want), string(got))
		})
	}
}

// TestEncode_healthLogVitals checks the nested wire structure.
func TestEncode_healthLogVitals(t *testing.T) {
	row, err := Encode(HealthLogs, models.HealthLog{ID: "h1", BeneficiaryID: "b1", BPSystolic: 130, BPDiastolic: 85})
	require.NoError(t, err)

	assert.Equal(t, int64(130), gjson.GetBytes(row, "vitals.bp_systolic").Int())
	assert.Equal(t, int64(85), gjson.GetBytes(row, "vitals.bp_diastolic").Int())
	assert.False(t, gjson.GetBytes(row, "bpSystolic").Exists())
	assert.Equal(t, "b1", gjson.GetBytes(row, "beneficiary_id").String())
}

// TestEncode_absentStaysAbsent checks unset optional fields are not invented.
func TestEncode_absentStaysAbsent(t *testing.T) {
	row, err := Encode(Profiles, models.BeneficiaryProfile{ID: "b1", Name: "Sita"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":"b1","name":"Sita"}`, string(row))
}

// TestDecode_ignoresUnknownWireFields checks server-only columns are dropped.
func TestDecode_ignoresUnknownWireFields(t *testing.T) {
	var a models.Alert
	err := Decode(Alerts, []byte(`{"id":"al1","beneficiary_id":"b1","created_at":"t","updated_at":"x","status":"open"}`), &a)
	require.NoError(t, err)

	assert.Equal(t, models.Alert{ID: "al1", BeneficiaryID: "b1", Timestamp: "t", Status: "open"}, a)
}

// TestDecode_invalid checks malformed rows are rejected.
func TestDecode_invalid(t *testing.T) {
	var c models.Child
	assert.Error(t, Decode(Children, []byte(`{"id":`), &c))
}

// TestDecodeAll decodes a listing in order.
func TestDecodeAll(t *testing.T) {
	rows := []json.RawMessage{
		json.RawMessage(`{"id":"s1","scheme_name":"A","enrolled_count":2}`),
		json.RawMessage(`{"id":"s2","scheme_name":"B","target_audience":{"user_types":["girl"]}}`),
	}
	got, err := DecodeAll[models.Scheme](Schemes, rows)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "A", got[0].Title)
	assert.Equal(t, 2, got[0].EnrolledCount)
	assert.Equal(t, []string{"girl"}, got[1].TargetAudience.UserTypes)
}

// =====================================================
// Sparse diffs
// =====================================================

// TestProfileDiff emits only set fields.
func TestProfileDiff(t *testing.T) {
	tests := []struct {
		name   string
		update models.ProfileUpdate
		want   string
	}{
		{"empty", models.ProfileUpdate{}, `{}`},
		{"risk only", models.ProfileUpdate{RiskLevel: strp("high")}, `{"risk_level":"high"}`},
		{
			"several",
			models.ProfileUpdate{NextCheckup: strp("2024-07-01"), Age: intp(25), GPSCoords: &models.GeoPoint{Lat: 1, Lng: 2}},
			`{"age":25,"gps_coords":{"lat":1,"lng":2},"next_checkup":"2024-07-01"}`,
		},
		{"explicit empty string", models.ProfileUpdate{Address: strp("")}, `{"address":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProfileDiff(tt.update)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

// TestProfileDiff_coversEveryField checks the getter table against the wire table.
func TestProfileDiff_coversEveryField(t *testing.T) {
	wire := map[string]bool{}
	for _, f := range Profiles.Fields {
		wire[f.Wire] = true
	}
	seen := map[string]bool{}
	for _, g := range profileDiff {
		assert.True(t, wire[g.wire], "diff field %s not in profile table", g.wire)
		assert.False(t, seen[g.wire], "diff field %s listed twice", g.wire)
		seen[g.wire] = true
	}
	// id and user_id are identity, not updatable.
	assert.Len(t, profileDiff, len(Profiles.Fields)-2)
}

// TestSchemeDiff translates the nested audience.
func TestSchemeDiff(t *testing.T) {
	got, err := SchemeDiff(models.SchemeUpdate{
		Title:          strp("Poshan 2"),
		TargetAudience: &models.TargetAudience{UserTypes: []string{"mother"}},
		MicrositeConfig: json.RawMessage(`{"themeColor":"red"}`),
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"scheme_name":"Poshan 2","target_audience":{"user_types":["mother"]},"microsite_config":{"themeColor":"red"}}`, string(got))
}

// TestChildDiff emits only set fields.
func TestChildDiff(t *testing.T) {
	got, err := ChildDiff(models.ChildUpdate{BloodGroup: strp("A-")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"blood_group":"A-"}`, string(got))
}

// TestDiff_getterErrorPropagates fails the whole diff instead of dropping the field.
func TestDiff_getterErrorPropagates(t *testing.T) {
	fields := []getter[models.SchemeUpdate]{
		{"scheme_name", func(u models.SchemeUpdate) (any, bool, error) { return opt(u.Title) }},
		{"target_audience", func(models.SchemeUpdate) (any, bool, error) {
			return nil, false, errors.New("audience encode failed")
		}},
	}

	got, err := diff(fields, models.SchemeUpdate{Title: strp("Poshan 2")})
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, apperrors.ErrInvalid, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "target_audience")
}

package codec

import "github.com/ashaai/fieldsync/internal/models"

var Profiles = Table{
	Name: models.BeneficiaryProfile{}.TableName(),
	Fields: []Field{
		{"id", "id"},
		{"userId", "user_id"},
		{"name", "name"},
		{"userType", "user_type"},
		{"age", "age"},
		{"height", "height"},
		{"weight", "weight"},
		{"bloodGroup", "blood_group"},
		{"pregnancyStage", "pregnancy_stage"},
		{"pregnancyWeek", "pregnancy_week"},
		{"lastPeriodDate", "last_period_date"},
		{"edd", "edd"},
		{"anemiaStatus", "anemia_status"},
		{"riskLevel", "risk_level"},
		{"economicStatus", "economic_status"},
		{"address", "address"},
		{"gpsCoords", "gps_coords"},
		{"linkedAshaId", "linked_asha_id"},
		{"nextCheckup", "next_checkup"},
		{"medicalHistory", "medical_history"},
		{"currentMedications", "current_medications"},
		{"complications", "complications"},
	},
}

// HealthLogs nests the blood pressure reading under vitals on the wire.
var HealthLogs = Table{
	Name: models.HealthLog{}.TableName(),
	Fields: []Field{
		{"id", "id"},
		{"beneficiaryId", "beneficiary_id"},
		{"date", "date"},
		{"bpSystolic", "vitals.bp_systolic"},
		{"bpDiastolic", "vitals.bp_diastolic"},
		{"symptoms", "symptoms"},
		{"mood", "mood"},
		{"isEmergency", "is_emergency"},
	},
}

var DailyLogs = Table{
	Name: models.DailyLog{}.TableName(),
	Fields: []Field{
		{"id", "id"},
		{"userId", "user_id"},
		{"date", "date"},
		{"symptoms", "symptoms"},
		{"mood", "mood"},
		{"notes", "notes"},
		{"flow", "flow"},
	},
}

var Alerts = Table{
	Name: models.Alert{}.TableName(),
	Fields: []Field{
		{"id", "id"},
		{"beneficiaryId", "beneficiary_id"},
		{"severity", "severity"},
		{"status", "status"},
		{"timestamp", "created_at"},
		{"type", "type"},
		{"reason", "reason"},
		{"resolvedAt", "resolved_at"},
		{"resolvedBy", "resolved_by"},
		{"triggeredBy", "triggered_by"},
		{"resolutionNotes", "resolution_notes"},
	},
}

var audience = []Field{
	{"pregnancyStage", "pregnancy_stage"},
	{"economicStatus", "economic_status"},
	{"riskLevel", "risk_level"},
	{"userTypes", "user_types"},
}

// Audience maps a bare TargetAudience object.
var Audience = Table{Name: "target_audience", Fields: audience}

// Schemes keeps micrositeConfig opaque; its inner keys are not translated.
var Schemes = Table{
	Name: models.Scheme{}.TableName(),
	Fields: append([]Field{
		{"id", "id"},
		{"title", "scheme_name"},
		{"provider", "provider"},
		{"description", "description"},
		{"heroImage", "hero_image"},
		{"benefits", "benefits"},
		{"eligibilityCriteria", "eligibility_criteria"},
		{"status", "status"},
		{"budget", "budget"},
		{"enrolledCount", "enrolled_count"},
		{"startDate", "start_date"},
		{"endDate", "end_date"},
		{"category", "category"},
		{"micrositeConfig", "microsite_config"},
	}, nest("targetAudience", "target_audience", audience)...),
}

var Enrollments = Table{
	Name: models.Enrollment{}.TableName(),
	Fields: []Field{
		{"id", "id"},
		{"schemeId", "scheme_id"},
		{"beneficiaryId", "beneficiary_id"},
		{"status", "status"},
		{"enrolledBy", "enrolled_by"},
		{"date", "enrollment_date"},
	},
}

var Children = Table{
	Name: models.Child{}.TableName(),
	Fields: []Field{
		{"id", "id"},
		{"beneficiaryId", "beneficiary_id"},
		{"name", "name"},
		{"dob", "dob"},
		{"gender", "gender"},
		{"bloodGroup", "blood_group"},
		{"vaccinations", "vaccinations"},
	},
}

// Tables lists every entity table in reconciliation order.
var Tables = []Table{Profiles, Children, HealthLogs, DailyLogs, Alerts, Schemes, Enrollments}

// ForName returns the table for a backend table name.
func ForName(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

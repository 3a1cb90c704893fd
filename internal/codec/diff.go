package codec

import (
	"encoding/json"

	"github.com/tidwall/sjson"

	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/models"
)

// getter reads one optional field of a sparse update.
type getter[U any] struct {
	wire string
	get  func(U) (any, bool, error)
}

func opt[T any](p *T) (any, bool, error) {
	if p == nil {
		return nil, false, nil
	}
	return *p, true, nil
}

func list(s []string) (any, bool, error) {
	return s, s != nil, nil
}

func raw(m json.RawMessage) (any, bool, error) {
	return m, len(m) > 0, nil
}

var profileDiff = []getter[models.ProfileUpdate]{
	{"name", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.Name) }},
	{"user_type", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.UserType) }},
	{"age", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.Age) }},
	{"height", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.Height) }},
	{"weight", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.Weight) }},
	{"blood_group", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.BloodGroup) }},
	{"pregnancy_stage", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.PregnancyStage) }},
	{"pregnancy_week", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.PregnancyWeek) }},
	{"last_period_date", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.LastPeriodDate) }},
	{"edd", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.EDD) }},
	{"anemia_status", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.AnemiaStatus) }},
	{"risk_level", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.RiskLevel) }},
	{"economic_status", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.EconomicStatus) }},
	{"address", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.Address) }},
	{"gps_coords", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.GPSCoords) }},
	{"linked_asha_id", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.LinkedAshaID) }},
	{"next_checkup", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.NextCheckup) }},
	{"medical_history", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.MedicalHistory) }},
	{"current_medications", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.CurrentMedications) }},
	{"complications", func(u models.ProfileUpdate) (any, bool, error) { return opt(u.Complications) }},
}

var childDiff = []getter[models.ChildUpdate]{
	{"name", func(u models.ChildUpdate) (any, bool, error) { return opt(u.Name) }},
	{"dob", func(u models.ChildUpdate) (any, bool, error) { return opt(u.DOB) }},
	{"gender", func(u models.ChildUpdate) (any, bool, error) { return opt(u.Gender) }},
	{"blood_group", func(u models.ChildUpdate) (any, bool, error) { return opt(u.BloodGroup) }},
	{"vaccinations", func(u models.ChildUpdate) (any, bool, error) { return list(u.Vaccinations) }},
}

var schemeDiff = []getter[models.SchemeUpdate]{
	{"scheme_name", func(u models.SchemeUpdate) (any, bool, error) { return opt(u.Title) }},
	{"provider", func(u models.SchemeUpdate) (any, bool, error) { return opt(u.Provider) }},
	{"description", func(u models.SchemeUpdate) (any, bool, error) { return opt(u.Description) }},
	{"hero_image", func(u models.SchemeUpdate) (any, bool, error) { return opt(u.HeroImage) }},
	{"benefits", func(u models.SchemeUpdate) (any, bool, error) { return list(u.Benefits) }},
	{"eligibility_criteria", func(u models.SchemeUpdate) (any, bool, error) { return list(u.EligibilityCriteria) }},
	{"target_audience", func(u models.SchemeUpdate) (any, bool, error) {
		if u.TargetAudience == nil {
			return nil, false, nil
		}
		row, err := Encode(Audience, u.TargetAudience)
		if err != nil {
			return nil, false, err
		}
		return row, true, nil
	}},
	{"status", func(u models.SchemeUpdate) (any, bool, error) { return opt(u.Status) }},
	{"budget", func(u models.SchemeUpdate) (any, bool, error) { return opt(u.Budget) }},
	{"start_date", func(u models.SchemeUpdate) (any, bool, error) { return opt(u.StartDate) }},
	{"end_date", func(u models.SchemeUpdate) (any, bool, error) { return opt(u.EndDate) }},
	{"category", func(u models.SchemeUpdate) (any, bool, error) { return opt(u.Category) }},
	{"microsite_config", func(u models.SchemeUpdate) (any, bool, error) { return raw(u.MicrositeConfig) }},
}

// ProfileDiff returns the wire fields set in u, and nothing else.
func ProfileDiff(u models.ProfileUpdate) (json.RawMessage, error) {
	return diff(profileDiff, u)
}

// ChildDiff returns the wire fields set in u.
func ChildDiff(u models.ChildUpdate) (json.RawMessage, error) {
	return diff(childDiff, u)
}

// SchemeDiff returns the wire fields set in u.
func SchemeDiff(u models.SchemeUpdate) (json.RawMessage, error) {
	return diff(schemeDiff, u)
}

func diff[U any](fields []getter[U], u U) (json.RawMessage, error) {
	out := []byte("{}")
	for _, f := range fields {
		v, ok, err := f.get(u)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalid, "encode "+f.wire, err)
		}
		if !ok {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalid, "marshal "+f.wire, err)
		}
		out, err = sjson.SetRawBytes(out, f.wire, b)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, "set "+f.wire, err)
		}
	}
	return out, nil
}

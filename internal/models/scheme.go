package models

import "encoding/json"

// TargetAudience narrows who a scheme is offered to.
type TargetAudience struct {
	PregnancyStage []string `json:"pregnancyStage,omitempty"`
	EconomicStatus []string `json:"economicStatus,omitempty"`
	RiskLevel      []string `json:"riskLevel,omitempty"`
	UserTypes      []string `json:"userTypes,omitempty"`
}

// Scheme is a government or NGO programme beneficiaries can enroll in.
type Scheme struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	Provider            string          `json:"provider"` // Govt, NGO
	Description         string          `json:"description"`
	HeroImage           string          `json:"heroImage,omitempty"`
	Benefits            []string        `json:"benefits,omitempty"`
	EligibilityCriteria []string        `json:"eligibilityCriteria,omitempty"`
	TargetAudience      TargetAudience  `json:"targetAudience"`
	Status              string          `json:"status"` // active, draft, closed
	Budget              float64         `json:"budget"`
	EnrolledCount       int             `json:"enrolledCount"`
	StartDate           string          `json:"startDate,omitempty"`
	EndDate             string          `json:"endDate,omitempty"`
	Category            string          `json:"category,omitempty"`
	MicrositeConfig     json.RawMessage `json:"micrositeConfig,omitempty"`
}

// TableName returns the backend table for Scheme.
func (Scheme) TableName() string {
	return "schemes"
}

// SchemeUpdate is a sparse update to a Scheme. EnrolledCount is owned by the
// backend counter and cannot be updated here.
type SchemeUpdate struct {
	Title               *string         `json:"title,omitempty"`
	Provider            *string         `json:"provider,omitempty"`
	Description         *string         `json:"description,omitempty"`
	HeroImage           *string         `json:"heroImage,omitempty"`
	Benefits            []string        `json:"benefits,omitempty"`
	EligibilityCriteria []string        `json:"eligibilityCriteria,omitempty"`
	TargetAudience      *TargetAudience `json:"targetAudience,omitempty"`
	Status              *string         `json:"status,omitempty"`
	Budget              *float64        `json:"budget,omitempty"`
	StartDate           *string         `json:"startDate,omitempty"`
	EndDate             *string         `json:"endDate,omitempty"`
	Category            *string         `json:"category,omitempty"`
	MicrositeConfig     json.RawMessage `json:"micrositeConfig,omitempty"`
}

// ApplyTo merges the set fields of u into s.
func (u SchemeUpdate) ApplyTo(s *Scheme) {
	setString(&s.Title, u.Title)
	setString(&s.Provider, u.Provider)
	setString(&s.Description, u.Description)
	setString(&s.HeroImage, u.HeroImage)
	if u.Benefits != nil {
		s.Benefits = append([]string(nil), u.Benefits...)
	}
	if u.EligibilityCriteria != nil {
		s.EligibilityCriteria = append([]string(nil), u.EligibilityCriteria...)
	}
	if u.TargetAudience != nil {
		s.TargetAudience = *u.TargetAudience
	}
	setString(&s.Status, u.Status)
	if u.Budget != nil {
		s.Budget = *u.Budget
	}
	setString(&s.StartDate, u.StartDate)
	setString(&s.EndDate, u.EndDate)
	setString(&s.Category, u.Category)
	if u.MicrositeConfig != nil {
		s.MicrositeConfig = append(json.RawMessage(nil), u.MicrositeConfig...)
	}
}

// Enrollment links a beneficiary to a scheme. There is at most one per
// (SchemeID, BeneficiaryID).
type Enrollment struct {
	ID            string `json:"id"`
	SchemeID      string `json:"schemeId"`
	BeneficiaryID string `json:"beneficiaryId"`
	Status        string `json:"status"` // active, completed, rejected
	EnrolledBy    string `json:"enrolledBy"`
	Date          string `json:"date"`
}

// TableName returns the backend table for Enrollment.
func (Enrollment) TableName() string {
	return "scheme_beneficiaries"
}

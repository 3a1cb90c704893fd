// Package models provides the domain entities held by the local store and
// exchanged with the backend.
package models

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BeneficiaryProfile is a person tracked by a health worker.
type BeneficiaryProfile struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId,omitempty"`
	Name               string    `json:"name"`
	UserType           string    `json:"userType,omitempty"` // girl, pregnant, mother
	Age                *int      `json:"age,omitempty"`
	Height             *float64  `json:"height,omitempty"` // cm
	Weight             *float64  `json:"weight,omitempty"` // kg
	BloodGroup         string    `json:"bloodGroup,omitempty"`
	PregnancyStage     string    `json:"pregnancyStage,omitempty"`
	PregnancyWeek      *int      `json:"pregnancyWeek,omitempty"`
	LastPeriodDate     string    `json:"lastPeriodDate,omitempty"`
	EDD                string    `json:"edd,omitempty"`
	AnemiaStatus       string    `json:"anemiaStatus,omitempty"`
	RiskLevel          string    `json:"riskLevel,omitempty"`
	EconomicStatus     string    `json:"economicStatus,omitempty"`
	Address            string    `json:"address,omitempty"`
	GPSCoords          *GeoPoint `json:"gpsCoords,omitempty"`
	LinkedAshaID       string    `json:"linkedAshaId,omitempty"`
	NextCheckup        string    `json:"nextCheckup,omitempty"`
	MedicalHistory     string    `json:"medicalHistory,omitempty"`
	CurrentMedications string    `json:"currentMedications,omitempty"`
	Complications      string    `json:"complications,omitempty"`
}

// TableName returns the backend table for BeneficiaryProfile.
func (BeneficiaryProfile) TableName() string {
	return "beneficiary_profiles"
}

// ProfileUpdate is a sparse update to a BeneficiaryProfile. Nil fields are untouched.
type ProfileUpdate struct {
	Name               *string   `json:"name,omitempty"`
	UserType           *string   `json:"userType,omitempty"`
	Age                *int      `json:"age,omitempty"`
	Height             *float64  `json:"height,omitempty"`
	Weight             *float64  `json:"weight,omitempty"`
	BloodGroup         *string   `json:"bloodGroup,omitempty"`
	PregnancyStage     *string   `json:"pregnancyStage,omitempty"`
	PregnancyWeek      *int      `json:"pregnancyWeek,omitempty"`
	LastPeriodDate     *string   `json:"lastPeriodDate,omitempty"`
	EDD                *string   `json:"edd,omitempty"`
	AnemiaStatus       *string   `json:"anemiaStatus,omitempty"`
	RiskLevel          *string   `json:"riskLevel,omitempty"`
	EconomicStatus     *string   `json:"economicStatus,omitempty"`
	Address            *string   `json:"address,omitempty"`
	GPSCoords          *GeoPoint `json:"gpsCoords,omitempty"`
	LinkedAshaID       *string   `json:"linkedAshaId,omitempty"`
	NextCheckup        *string   `json:"nextCheckup,omitempty"`
	MedicalHistory     *string   `json:"medicalHistory,omitempty"`
	CurrentMedications *string   `json:"currentMedications,omitempty"`
	Complications      *string   `json:"complications,omitempty"`
}

// ApplyTo merges the set fields of u into p.
func (u ProfileUpdate) ApplyTo(p *BeneficiaryProfile) {
	setString(&p.Name, u.Name)
	setString(&p.UserType, u.UserType)
	if u.Age != nil {
		p.Age = ptr(*u.Age)
	}
	if u.Height != nil {
		p.Height = ptr(*u.Height)
	}
	if u.Weight != nil {
		p.Weight = ptr(*u.Weight)
	}
	setString(&p.BloodGroup, u.BloodGroup)
	setString(&p.PregnancyStage, u.PregnancyStage)
	if u.PregnancyWeek != nil {
		p.PregnancyWeek = ptr(*u.PregnancyWeek)
	}
	setString(&p.LastPeriodDate, u.LastPeriodDate)
	setString(&p.EDD, u.EDD)
	setString(&p.AnemiaStatus, u.AnemiaStatus)
	setString(&p.RiskLevel, u.RiskLevel)
	setString(&p.EconomicStatus, u.EconomicStatus)
	setString(&p.Address, u.Address)
	if u.GPSCoords != nil {
		p.GPSCoords = ptr(*u.GPSCoords)
	}
	setString(&p.LinkedAshaID, u.LinkedAshaID)
	setString(&p.NextCheckup, u.NextCheckup)
	setString(&p.MedicalHistory, u.MedicalHistory)
	setString(&p.CurrentMedications, u.CurrentMedications)
	setString(&p.Complications, u.Complications)
}

// Child is a child registered under a beneficiary.
type Child struct {
	ID            string   `json:"id"`
	BeneficiaryID string   `json:"beneficiaryId"`
	Name          string   `json:"name"`
	DOB           string   `json:"dob"` // YYYY-MM-DD
	Gender        string   `json:"gender"`
	BloodGroup    string   `json:"bloodGroup,omitempty"`
	Vaccinations  []string `json:"vaccinations,omitempty"`
}

// TableName returns the backend table for Child.
func (Child) TableName() string {
	return "children"
}

// ChildUpdate is a sparse update to a Child.
type ChildUpdate struct {
	Name         *string  `json:"name,omitempty"`
	DOB          *string  `json:"dob,omitempty"`
	Gender       *string  `json:"gender,omitempty"`
	BloodGroup   *string  `json:"bloodGroup,omitempty"`
	Vaccinations []string `json:"vaccinations,omitempty"`
}

// ApplyTo merges the set fields of u into c.
func (u ChildUpdate) ApplyTo(c *Child) {
	setString(&c.Name, u.Name)
	setString(&c.DOB, u.DOB)
	setString(&c.Gender, u.Gender)
	setString(&c.BloodGroup, u.BloodGroup)
	if u.Vaccinations != nil {
		c.Vaccinations = append([]string(nil), u.Vaccinations...)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func ptr[T any](v T) *T {
	return &v
}

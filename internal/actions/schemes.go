package actions

import (
	"context"

	"github.com/ashaai/fieldsync/internal/models"
	"github.com/ashaai/fieldsync/internal/store"
	"github.com/ashaai/fieldsync/internal/uuid"
)

// EnrollmentActive is the status of a new enrollment.
const EnrollmentActive = "active"

// AddScheme creates a scheme with no enrollments. Not queued.
func (s *Service) AddScheme(ctx context.Context, scheme models.Scheme) (models.Scheme, error) {
	if err := required("title", scheme.Title); err != nil {
		return scheme, err
	}
	scheme.ID = uuid.Ensure(scheme.ID)
	scheme.EnrolledCount = 0
	s.store.Update(func(st *store.State) {
		st.Schemes = append(st.Schemes, scheme)
	})
	return scheme, s.gw.AddScheme(ctx, scheme)
}

// UpdateScheme merges a sparse update into a scheme.
func (s *Service) UpdateScheme(ctx context.Context, id string, u models.SchemeUpdate) error {
	if err := required("id", id); err != nil {
		return err
	}
	s.store.Update(func(st *store.State) {
		for i := range st.Schemes {
			if st.Schemes[i].ID == id {
				u.ApplyTo(&st.Schemes[i])
			}
		}
	})
	return s.write(ctx, models.OpUpdateScheme, models.SchemeUpdatePayload{SchemeID: id, Updates: u})
}

// DeleteScheme removes a scheme. Not queued.
func (s *Service) DeleteScheme(ctx context.Context, id string) error {
	s.store.Update(func(st *store.State) {
		st.Schemes = filter(st.Schemes, func(sc models.Scheme) bool { return sc.ID != id })
	})
	return s.gw.DeleteScheme(ctx, id)
}

// EnrollBeneficiary enrolls a beneficiary in a scheme at most once. It
// reports false, with the existing enrollment, when the pair is already
// enrolled locally.
func (s *Service) EnrollBeneficiary(ctx context.Context, schemeID, beneficiaryID, enrolledBy string) (models.Enrollment, bool, error) {
	if err := required("schemeId", schemeID); err != nil {
		return models.Enrollment{}, false, err
	}
	if err := required("beneficiaryId", beneficiaryID); err != nil {
		return models.Enrollment{}, false, err
	}

	e := models.Enrollment{
		ID:            uuid.New(),
		SchemeID:      schemeID,
		BeneficiaryID: beneficiaryID,
		Status:        EnrollmentActive,
		EnrolledBy:    enrolledBy,
		Date:          s.timestamp(),
	}

	// The guard and the insert share one transition.
	var existing *models.Enrollment
	s.store.Update(func(st *store.State) {
		for i := range st.Enrollments {
			if st.Enrollments[i].SchemeID == schemeID && st.Enrollments[i].BeneficiaryID == beneficiaryID {
				found := st.Enrollments[i]
				existing = &found
				return
			}
		}
		for i := range st.Schemes {
			if st.Schemes[i].ID == schemeID {
				st.Schemes[i].EnrolledCount++
			}
		}
		st.Enrollments = append(st.Enrollments, e)
	})
	if existing != nil {
		return *existing, false, nil
	}
	return e, true, s.write(ctx, models.OpEnrollScheme, e)
}

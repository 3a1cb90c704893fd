package actions

import (
	"context"

	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/models"
	"github.com/ashaai/fieldsync/internal/store"
	"github.com/ashaai/fieldsync/internal/uuid"
)

// Defaults for a profile created by EnsureBeneficiaryProfile.
const (
	defaultRiskLevel = "low"
	defaultUserType  = "girl"
)

// EnsureBeneficiaryProfile makes sure the user has a profile. A local profile
// with the same userID is returned as is. Otherwise a new profile is inserted
// remotely and added locally once the backend has it; when the backend
// already holds a profile for the user, that one is adopted instead. The
// call is not queued: on any other failure local state is left unchanged and
// the error is returned.
func (s *Service) EnsureBeneficiaryProfile(ctx context.Context, userID, name string) (models.BeneficiaryProfile, error) {
	if err := required("userId", userID); err != nil {
		return models.BeneficiaryProfile{}, err
	}
	if p, ok := s.profileFor(userID); ok {
		return p, nil
	}

	p := models.BeneficiaryProfile{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		RiskLevel: defaultRiskLevel,
		UserType:  defaultUserType,
	}
	err := s.gw.AddProfile(ctx, p)
	if apperrors.KindOf(err) == apperrors.KindConflict {
		existing, found, ferr := s.gw.FindProfile(ctx, userID)
		if ferr != nil {
			return models.BeneficiaryProfile{}, ferr
		}
		if !found {
			return models.BeneficiaryProfile{}, apperrors.Wrap(apperrors.ErrConflict, "profile for user "+userID+" rejected but not listed", err)
		}
		s.log.Info("Adopted existing beneficiary profile", map[string]interface{}{
			"user_id":        userID,
			"beneficiary_id": existing.ID,
		})
		p, err = existing, nil
	}
	if err != nil {
		return models.BeneficiaryProfile{}, err
	}
	return s.addProfile(p), nil
}

func (s *Service) profileFor(userID string) (models.BeneficiaryProfile, bool) {
	for _, b := range s.store.Snapshot().Beneficiaries {
		if b.UserID == userID {
			return b, true
		}
	}
	return models.BeneficiaryProfile{}, false
}

// addProfile appends p unless a profile for the same user landed meanwhile,
// and returns the profile that ends up stored.
func (s *Service) addProfile(p models.BeneficiaryProfile) models.BeneficiaryProfile {
	stored := p
	s.store.Update(func(st *store.State) {
		for _, b := range st.Beneficiaries {
			if b.UserID == p.UserID {
				stored = b
				return
			}
		}
		st.Beneficiaries = append(st.Beneficiaries, p)
	})
	return stored
}

// UpdateBeneficiaryProfile merges a sparse update into a profile. Only the
// fields set in u are sent.
func (s *Service) UpdateBeneficiaryProfile(ctx context.Context, id string, u models.ProfileUpdate) error {
	if err := required("id", id); err != nil {
		return err
	}
	s.store.Update(func(st *store.State) {
		for i := range st.Beneficiaries {
			if st.Beneficiaries[i].ID == id {
				u.ApplyTo(&st.Beneficiaries[i])
			}
		}
	})
	return s.write(ctx, models.OpUpdateProfile, models.ProfileUpdatePayload{ID: id, Updates: u})
}

// DeleteBeneficiary removes a profile together with its children, health
// logs, alerts and enrollments. A failed remote delete is logged, not queued.
func (s *Service) DeleteBeneficiary(ctx context.Context, id string) error {
	if err := required("id", id); err != nil {
		return err
	}
	s.store.Update(func(st *store.State) {
		st.Beneficiaries = filter(st.Beneficiaries, func(b models.BeneficiaryProfile) bool { return b.ID != id })
		st.Children = filter(st.Children, func(c models.Child) bool { return c.BeneficiaryID != id })
		st.HealthLogs = filter(st.HealthLogs, func(l models.HealthLog) bool { return l.BeneficiaryID != id })
		st.Alerts = filter(st.Alerts, func(a models.Alert) bool { return a.BeneficiaryID != id })
		st.Enrollments = filter(st.Enrollments, func(e models.Enrollment) bool { return e.BeneficiaryID != id })
	})
	if err := s.gw.DeleteBeneficiary(ctx, id); err != nil {
		s.log.Error("Failed to delete beneficiary", err, map[string]interface{}{"beneficiary_id": id})
	}
	return nil
}

// AddChild registers a child under a beneficiary.
func (s *Service) AddChild(ctx context.Context, c models.Child) (models.Child, error) {
	if err := required("beneficiaryId", c.BeneficiaryID); err != nil {
		return c, err
	}
	c.ID = uuid.Ensure(c.ID)
	s.store.Update(func(st *store.State) {
		st.Children = append(st.Children, c)
	})
	return c, s.write(ctx, models.OpAddChild, c)
}

// UpdateChild merges a sparse update into a child. Not queued.
func (s *Service) UpdateChild(ctx context.Context, id string, u models.ChildUpdate) error {
	found := false
	s.store.Update(func(st *store.State) {
		for i := range st.Children {
			if st.Children[i].ID == id {
				u.ApplyTo(&st.Children[i])
				found = true
			}
		}
	})
	if !found {
		return apperrors.New(apperrors.ErrNotFound, "child "+id+" not found")
	}
	return s.gw.UpdateChild(ctx, id, u)
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

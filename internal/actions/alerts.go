package actions

import (
	"context"

	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/models"
	"github.com/ashaai/fieldsync/internal/store"
	"github.com/ashaai/fieldsync/internal/uuid"
)

// TriggerSOS raises a critical alert for a beneficiary. The alert is shown
// first in the local list.
func (s *Service) TriggerSOS(ctx context.Context, beneficiaryID, triggeredBy string) (models.Alert, error) {
	if err := required("beneficiaryId", beneficiaryID); err != nil {
		return models.Alert{}, err
	}
	alert := models.Alert{
		ID:            uuid.New(),
		BeneficiaryID: beneficiaryID,
		Severity:      models.SeverityCritical,
		Status:        models.AlertOpen,
		Timestamp:     s.timestamp(),
		Type:          models.AlertSOS,
		TriggeredBy:   triggeredBy,
	}

	s.store.Update(func(st *store.State) {
		st.Alerts = append([]models.Alert{alert}, st.Alerts...)
	})
	return alert, s.write(ctx, models.OpTriggerSOS, alert)
}

// ResolveAlert marks an alert resolved. The remote update is not queued; its
// error is returned to the caller.
func (s *Service) ResolveAlert(ctx context.Context, alertID, resolvedBy, notes string) error {
	var resolved models.Alert
	found := false
	s.store.Update(func(st *store.State) {
		for i := range st.Alerts {
			if st.Alerts[i].ID != alertID {
				continue
			}
			st.Alerts[i].Status = models.AlertResolved
			st.Alerts[i].ResolvedAt = s.timestamp()
			st.Alerts[i].ResolvedBy = resolvedBy
			st.Alerts[i].ResolutionNotes = notes
			resolved = st.Alerts[i]
			found = true
		}
	})
	if !found {
		return apperrors.New(apperrors.ErrNotFound, "alert "+alertID+" not found")
	}
	return s.gw.ResolveAlert(ctx, resolved)
}

// AddIncomingAlert inserts an alert pushed by another device. It reports
// false when the alert is already known.
func (s *Service) AddIncomingAlert(alert models.Alert) bool {
	added := false
	s.store.Update(func(st *store.State) {
		for _, a := range st.Alerts {
			if a.ID == alert.ID {
				return
			}
		}
		st.Alerts = append([]models.Alert{alert}, st.Alerts...)
		added = true
	})
	return added
}

package actions

import (
	"context"

	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/models"
	"github.com/ashaai/fieldsync/internal/store"
	"github.com/ashaai/fieldsync/internal/uuid"
)

// AddHealthLog records a vitals reading.
func (s *Service) AddHealthLog(ctx context.Context, log models.HealthLog) (models.HealthLog, error) {
	if err := required("beneficiaryId", log.BeneficiaryID); err != nil {
		return log, err
	}
	log.ID = uuid.Ensure(log.ID)
	if log.Date == "" {
		log.Date = s.timestamp()
	}
	if log.Symptoms == nil {
		log.Symptoms = []string{}
	}

	s.store.Update(func(st *store.State) {
		st.HealthLogs = append(st.HealthLogs, log)
	})
	return log, s.write(ctx, models.OpAddHealthLog, log)
}

// AddDailyLog records a self-reported entry. An existing entry for the same
// user and day is replaced locally and upserted remotely, so repeating the
// call leaves one entry.
func (s *Service) AddDailyLog(ctx context.Context, log models.DailyLog) (models.DailyLog, error) {
	if err := required("userId", log.UserID); err != nil {
		return log, err
	}
	if err := required("date", log.Date); err != nil {
		return log, err
	}
	log.ID = uuid.Ensure(log.ID)
	if log.Symptoms == nil {
		log.Symptoms = []string{}
	}

	s.store.Update(func(st *store.State) {
		kept := make([]models.DailyLog, 0, len(st.DailyLogs)+1)
		for _, l := range st.DailyLogs {
			if !l.SameDay(log) {
				kept = append(kept, l)
			}
		}
		st.DailyLogs = append(kept, log)
	})
	return log, s.write(ctx, models.OpAddDailyLog, log)
}

// UpdateDailyLog replaces a daily log by id. Local only.
func (s *Service) UpdateDailyLog(log models.DailyLog) error {
	found := false
	s.store.Update(func(st *store.State) {
		for i := range st.DailyLogs {
			if st.DailyLogs[i].ID == log.ID {
				st.DailyLogs[i] = log
				found = true
			}
		}
	})
	if !found {
		return apperrors.New(apperrors.ErrNotFound, "daily log "+log.ID+" not found")
	}
	return nil
}

// Package backend defines the authoritative store the sync engine writes to.
//
// Every error returned across this boundary is an *errors.AppError whose code
// decides how the queue processor treats it: ErrNetwork is retried without
// bound, ErrConflict means the write already landed, anything else is bounded.
package backend

//go:generate mockgen -source=backend.go -destination=mocks/mocks.go -package=mocks Backend

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/ashaai/fieldsync/internal/errors"
)

// Row is one record in wire schema.
type Row = json.RawMessage

// Backend is the per-table CRUD surface plus the enrollment counter RPC.
type Backend interface {
	Insert(ctx context.Context, table string, row Row) error
	Update(ctx context.Context, table, id string, fields Row) error
	Upsert(ctx context.Context, table string, row Row, conflictKeys []string) error
	Delete(ctx context.Context, table, id string) error
	List(ctx context.Context, table string) ([]Row, error)
	IncrementEnrollmentCount(ctx context.Context, schemeID string) error
}

// Backend tables.
const (
	TableProfiles    = "beneficiary_profiles"
	TableHealthLogs  = "health_logs"
	TableDailyLogs   = "daily_logs"
	TableAlerts      = "alerts"
	TableSchemes     = "schemes"
	TableEnrollments = "scheme_beneficiaries"
	TableChildren    = "children"
)

// Tables lists every backend table.
var Tables = []string{
	TableProfiles, TableHealthLogs, TableDailyLogs, TableAlerts,
	TableSchemes, TableEnrollments, TableChildren,
}

// NaturalKeys lists the unique column sets beyond the primary key.
var NaturalKeys = map[string][]string{
	TableProfiles:    {"user_id"},
	TableDailyLogs:   {"user_id", "date"},
	TableEnrollments: {"scheme_id", "beneficiary_id"},
}

// RPCIncrementEnrollmentCount is the name of the counter RPC.
const RPCIncrementEnrollmentCount = "increment_enrollment_count"

// NetworkError reports a transport failure for op.
func NetworkError(op string, err error) error {
	return apperrors.Wrap(apperrors.ErrNetwork, op, err)
}

// ConflictError reports a unique or primary-key violation.
func ConflictError(table, detail string) error {
	return apperrors.New(apperrors.ErrConflict, fmt.Sprintf("%s: %s", table, detail))
}

// StatusError reports a non-2xx response other than a conflict.
func StatusError(op string, status int, body string) error {
	return apperrors.New(apperrors.ErrBackend, fmt.Sprintf("%s: status %d: %s", op, status, body))
}

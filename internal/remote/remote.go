// Package remote turns domain operations into backend calls.
//
// Queued operations are written through Write with the same payload bytes at
// handler time and at replay time, so a retried write is identical to the
// original attempt.
package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ashaai/fieldsync/internal/backend"
	"github.com/ashaai/fieldsync/internal/codec"
	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/models"
)

// Writer performs one queued operation from its payload.
type Writer func(ctx context.Context, payload json.RawMessage) error

// Gateway owns the per-kind writers and the non-queued remote calls.
type Gateway struct {
	b       backend.Backend
	writers map[models.OperationKind]Writer
}

// New creates a gateway over b.
func New(b backend.Backend) *Gateway {
	g := &Gateway{b: b}
	g.writers = map[models.OperationKind]Writer{
		models.OpAddHealthLog:  g.addHealthLog,
		models.OpAddDailyLog:   g.addDailyLog,
		models.OpTriggerSOS:    g.triggerSOS,
		models.OpEnrollScheme:  g.enrollScheme,
		models.OpUpdateProfile: g.updateProfile,
		models.OpAddChild:      g.addChild,
		models.OpUpdateScheme:  g.updateScheme,
	}
	return g
}

// Backend returns the underlying backend.
func (g *Gateway) Backend() backend.Backend {
	return g.b
}

// Writer returns the writer registered for kind.
func (g *Gateway) Writer(kind models.OperationKind) (Writer, bool) {
	w, ok := g.writers[kind]
	return w, ok
}

// Write performs a queueable operation.
func (g *Gateway) Write(ctx context.Context, kind models.OperationKind, payload json.RawMessage) error {
	w, ok := g.writers[kind]
	if !ok {
		return apperrors.New(apperrors.ErrUnknownOperation, fmt.Sprintf("no writer for %q", kind))
	}
	return w(ctx, payload)
}

// Replay re-sends a queued item.
func (g *Gateway) Replay(ctx context.Context, item models.SyncQueueItem) error {
	return g.Write(ctx, item.Type, item.Payload)
}

func decode[T any](kind models.OperationKind, payload json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("decode %s payload", kind), err)
	}
	return v, nil
}

func (g *Gateway) insert(ctx context.Context, t codec.Table, entity any) error {
	row, err := codec.Encode(t, entity)
	if err != nil {
		return err
	}
	return g.b.Insert(ctx, t.Name, row)
}

func (g *Gateway) addHealthLog(ctx context.Context, payload json.RawMessage) error {
	log, err := decode[models.HealthLog](models.OpAddHealthLog, payload)
	if err != nil {
		return err
	}
	return g.insert(ctx, codec.HealthLogs, log)
}

func (g *Gateway) addDailyLog(ctx context.Context, payload json.RawMessage) error {
	log, err := decode[models.DailyLog](models.OpAddDailyLog, payload)
	if err != nil {
		return err
	}
	row, err := codec.Encode(codec.DailyLogs, log)
	if err != nil {
		return err
	}
	return g.b.Upsert(ctx, codec.DailyLogs.Name, row, backend.NaturalKeys[backend.TableDailyLogs])
}

func (g *Gateway) triggerSOS(ctx context.Context, payload json.RawMessage) error {
	alert, err := decode[models.Alert](models.OpTriggerSOS, payload)
	if err != nil {
		return err
	}
	return g.insert(ctx, codec.Alerts, alert)
}

// enrollScheme inserts the enrollment and then bumps the scheme counter. The
// two calls are not atomic: if the insert lands and the RPC fails, the error is
// returned and a replay hits a conflict on the insert, so the counter step is
// not retried.
func (g *Gateway) enrollScheme(ctx context.Context, payload json.RawMessage) error {
	e, err := decode[models.Enrollment](models.OpEnrollScheme, payload)
	if err != nil {
		return err
	}
	if err := g.insert(ctx, codec.Enrollments, e); err != nil {
		return err
	}
	return g.b.IncrementEnrollmentCount(ctx, e.SchemeID)
}

func (g *Gateway) updateProfile(ctx context.Context, payload json.RawMessage) error {
	p, err := decode[models.ProfileUpdatePayload](models.OpUpdateProfile, payload)
	if err != nil {
		return err
	}
	fields, err := codec.ProfileDiff(p.Updates)
	if err != nil {
		return err
	}
	return g.b.Update(ctx, codec.Profiles.Name, p.ID, fields)
}

func (g *Gateway) addChild(ctx context.Context, payload json.RawMessage) error {
	c, err := decode[models.Child](models.OpAddChild, payload)
	if err != nil {
		return err
	}
	return g.insert(ctx, codec.Children, c)
}

func (g *Gateway) updateScheme(ctx context.Context, payload json.RawMessage) error {
	p, err := decode[models.SchemeUpdatePayload](models.OpUpdateScheme, payload)
	if err != nil {
		return err
	}
	fields, err := codec.SchemeDiff(p.Updates)
	if err != nil {
		return err
	}
	return g.b.Update(ctx, codec.Schemes.Name, p.SchemeID, fields)
}

// ResolveAlert marks an alert resolved.
func (g *Gateway) ResolveAlert(ctx context.Context, alert models.Alert) error {
	fields, err := codec.Encode(codec.Alerts, struct {
		Status          string `json:"status"`
		ResolvedAt      string `json:"resolvedAt,omitempty"`
		ResolvedBy      string `json:"resolvedBy,omitempty"`
		ResolutionNotes string `json:"resolutionNotes,omitempty"`
	}{alert.Status, alert.ResolvedAt, alert.ResolvedBy, alert.ResolutionNotes})
	if err != nil {
		return err
	}
	return g.b.Update(ctx, codec.Alerts.Name, alert.ID, fields)
}

// UpdateChild sends a sparse child update.
func (g *Gateway) UpdateChild(ctx context.Context, id string, u models.ChildUpdate) error {
	fields, err := codec.ChildDiff(u)
	if err != nil {
		return err
	}
	return g.b.Update(ctx, codec.Children.Name, id, fields)
}

// AddScheme inserts a scheme.
func (g *Gateway) AddScheme(ctx context.Context, s models.Scheme) error {
	return g.insert(ctx, codec.Schemes, s)
}

// AddProfile inserts a beneficiary profile.
func (g *Gateway) AddProfile(ctx context.Context, p models.BeneficiaryProfile) error {
	return g.insert(ctx, codec.Profiles, p)
}

// FindProfile returns the backend's profile for userID.
func (g *Gateway) FindProfile(ctx context.Context, userID string) (models.BeneficiaryProfile, bool, error) {
	rows, err := g.b.List(ctx, codec.Profiles.Name)
	if err != nil {
		return models.BeneficiaryProfile{}, false, err
	}
	profiles, err := codec.DecodeAll[models.BeneficiaryProfile](codec.Profiles, rows)
	if err != nil {
		return models.BeneficiaryProfile{}, false, err
	}
	for _, p := range profiles {
		if p.UserID == userID {
			return p, true, nil
		}
	}
	return models.BeneficiaryProfile{}, false, nil
}

// DeleteScheme deletes a scheme.
func (g *Gateway) DeleteScheme(ctx context.Context, id string) error {
	return g.b.Delete(ctx, codec.Schemes.Name, id)
}

// DeleteBeneficiary deletes a profile. Dependent rows are the backend's concern.
func (g *Gateway) DeleteBeneficiary(ctx context.Context, id string) error {
	return g.b.Delete(ctx, codec.Profiles.Name, id)
}

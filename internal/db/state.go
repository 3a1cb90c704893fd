package db

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/ashaai/fieldsync/internal/crypto"
	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/store"
)

// StateRepository stores the client state as one versioned JSON record.
type StateRepository struct {
	db     *DB
	key    string
	sealer *crypto.Sealer
}

// sealedPrefix marks a record written through a Sealer.
var sealedPrefix = []byte("fse1:")

// StateOption configures a StateRepository.
type StateOption func(*StateRepository)

// WithSealer encrypts the record at rest. Plain records are still read, and
// the next save seals them.
func WithSealer(s *crypto.Sealer) StateOption {
	return func(r *StateRepository) { r.sealer = s }
}

var (
	_ store.Saver  = (*StateRepository)(nil)
	_ store.Loader = (*StateRepository)(nil)
)

// NewStateRepository creates a repository for the record under store.StorageKey.
func NewStateRepository(db *DB, opts ...StateOption) *StateRepository {
	r := &StateRepository{db: db, key: store.StorageKey}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads the record. A missing record returns (nil, nil).
func (r *StateRepository) Load(ctx context.Context) (*store.Persisted, error) {
	var (
		version int
		data    []byte
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT version, data FROM app_state WHERE key = ?", r.key,
	).Scan(&version, &data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "load state", err)
	}
	if version > store.PersistVersion {
		return nil, apperrors.New(apperrors.ErrMigration,
			fmt.Sprintf("state version %d is newer than supported %d", version, store.PersistVersion))
	}

	if bytes.HasPrefix(data, sealedPrefix) {
		if r.sealer == nil {
			return nil, apperrors.New(apperrors.ErrDatabase, "state is encrypted and no key is configured")
		}
		if data, err = r.sealer.Open(data[len(sealedPrefix):]); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "decrypt state", err)
		}
	}

	var p store.Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "decode state", err)
	}
	p.Version = version
	return &p, nil
}

// Save replaces the record.
func (r *StateRepository) Save(ctx context.Context, p store.Persisted) error {
	if p.Version == 0 {
		p.Version = store.PersistVersion
	}
	data, err := json.Marshal(p)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "encode state", err)
	}
	if r.sealer != nil {
		sealed, err := r.sealer.Seal(data)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, "encrypt state", err)
		}
		data = append(append([]byte(nil), sealedPrefix...), sealed...)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO app_state (key, version, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET version = excluded.version, data = excluded.data, updated_at = excluded.updated_at`,
		r.key, p.Version, data, time.Now().UnixMilli(),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "save state", err)
	}
	return nil
}

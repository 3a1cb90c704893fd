// Package memory is an in-process Backend with the same uniqueness rules as
// the real one. It backs tests and the development server.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/ashaai/fieldsync/internal/backend"
	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/uuid"
)

// Method names used by call counters.
const (
	MethodInsert    = "Insert"
	MethodUpdate    = "Update"
	MethodUpsert    = "Upsert"
	MethodDelete    = "Delete"
	MethodList      = "List"
	MethodIncrement = "IncrementEnrollmentCount"
)

type table struct {
	rows  []backend.Row
	index map[string]int // id -> position in rows
}

// Backend is a concurrency-safe in-memory backend.
type Backend struct {
	mu      sync.Mutex
	tables  map[string]*table
	offline bool
	failN   int
	failErr error
	calls   map[string]int
	hold    chan struct{}
}

var _ backend.Backend = (*Backend)(nil)

// New creates an empty backend with every known table.
func New() *Backend {
	b := &Backend{
		tables: make(map[string]*table),
		calls:  make(map[string]int),
	}
	for _, name := range backend.Tables {
		b.tables[name] = &table{index: make(map[string]int)}
	}
	return b
}

// SetOffline makes every call fail with a network error while true.
func (b *Backend) SetOffline(offline bool) {
	b.mu.Lock()
	b.offline = offline
	b.mu.Unlock()
}

// FailNext makes the next n write calls fail with err.
func (b *Backend) FailNext(n int, err error) {
	b.mu.Lock()
	b.failN = n
	b.failErr = err
	b.mu.Unlock()
}

// Hold blocks every call until the returned release func runs. Used to keep
// a drain in flight while a test fires a second trigger.
func (b *Backend) Hold() (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.hold = ch
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.hold == ch {
				b.hold = nil
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns how many times method was invoked, failed calls included.
func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// Rows returns a copy of a table's rows in insertion order.
func (b *Backend) Rows(name string) []backend.Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tables[name]
	if !ok {
		return nil
	}
	return copyRows(t.rows)
}

// Get returns one row by id.
func (b *Backend) Get(name, id string) (backend.Row, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tables[name]
	if !ok {
		return nil, false
	}
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return append(backend.Row(nil), t.rows[i]...), true
}

// Seed inserts rows without fault injection or counters.
func (b *Backend) Seed(name string, rows ...backend.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range rows {
		if err := b.insertLocked(name, r); err != nil {
			return err
		}
	}
	return nil
}

// enter records the call and applies fault injection. It returns with b.mu held
// on success.
func (b *Backend) enter(ctx context.Context, method, name string, write bool) error {
	b.mu.Lock()
	b.calls[method]++
	hold := b.hold
	b.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return backend.NetworkError(method+" "+name, ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return backend.NetworkError(method+" "+name, err)
	}

	b.mu.Lock()
	if b.offline {
		b.mu.Unlock()
		return backend.NetworkError(method+" "+name, fmt.Errorf("backend unreachable"))
	}
	if write && b.failN > 0 {
		b.failN--
		err := b.failErr
		b.mu.Unlock()
		return err
	}
	if _, ok := b.tables[name]; !ok && name != "" {
		b.mu.Unlock()
		return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("unknown table %q", name))
	}
	return nil
}

// Insert implements backend.Backend.
func (b *Backend) Insert(ctx context.Context, name string, row backend.Row) error {
	if err := b.enter(ctx, MethodInsert, name, true); err != nil {
		return err
	}
	defer b.mu.Unlock()
	return b.insertLocked(name, row)
}

func (b *Backend) insertLocked(name string, row backend.Row) error {
	t, ok := b.tables[name]
	if !ok {
		return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("unknown table %q", name))
	}
	if !gjson.ValidBytes(row) || !gjson.ParseBytes(row).IsObject() {
		return apperrors.New(apperrors.ErrInvalid, name+": row is not a JSON object")
	}
	id := gjson.GetBytes(row, "id").String()
	if id == "" {
		id = uuid.New()
		var err error
		if row, err = sjson.SetBytes(append(backend.Row(nil), row...), "id", id); err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, "assign id", err)
		}
	}
	if _, exists := t.index[id]; exists {
		return backend.ConflictError(name, fmt.Sprintf("duplicate key id=%s", id))
	}
	if keys, ok := backend.NaturalKeys[name]; ok {
		if i := t.find(keys, row); i >= 0 {
			return backend.ConflictError(name, fmt.Sprintf("duplicate key (%s)", strings.Join(keys, ",")))
		}
	}
	t.index[id] = len(t.rows)
	t.rows = append(t.rows, append(backend.Row(nil), row...))
	return nil
}

// Update implements backend.Backend. Fields are merged shallowly into the row.
func (b *Backend) Update(ctx context.Context, name, id string, fields backend.Row) error {
	if err := b.enter(ctx, MethodUpdate, name, true); err != nil {
		return err
	}
	defer b.mu.Unlock()

	t := b.tables[name]
	i, ok := t.index[id]
	if !ok {
		return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("%s: no row with id %s", name, id))
	}
	merged, err := merge(t.rows[i], fields, "id")
	if err != nil {
		return err
	}
	t.rows[i] = merged
	return nil
}

// Upsert implements backend.Backend. On a conflict target match the existing
// row keeps its id and takes every other incoming field.
func (b *Backend) Upsert(ctx context.Context, name string, row backend.Row, conflictKeys []string) error {
	if err := b.enter(ctx, MethodUpsert, name, true); err != nil {
		return err
	}
	defer b.mu.Unlock()

	t := b.tables[name]
	if len(conflictKeys) == 0 {
		conflictKeys = []string{"id"}
	}
	if i := t.find(conflictKeys, row); i >= 0 {
		merged, err := merge(t.rows[i], row, "id")
		if err != nil {
			return err
		}
		t.rows[i] = merged
		return nil
	}
	return b.insertLocked(name, row)
}

// Delete implements backend.Backend. Deleting a missing row is not an error.
func (b *Backend) Delete(ctx context.Context, name, id string) error {
	if err := b.enter(ctx, MethodDelete, name, true); err != nil {
		return err
	}
	defer b.mu.Unlock()

	t := b.tables[name]
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	t.reindex()
	return nil
}

// List implements backend.Backend.
func (b *Backend) List(ctx context.Context, name string) ([]backend.Row, error) {
	if err := b.enter(ctx, MethodList, name, false); err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	return copyRows(b.tables[name].rows), nil
}

// IncrementEnrollmentCount implements backend.Backend.
func (b *Backend) IncrementEnrollmentCount(ctx context.Context, schemeID string) error {
	if err := b.enter(ctx, MethodIncrement, backend.TableSchemes, true); err != nil {
		return err
	}
	defer b.mu.Unlock()

	t := b.tables[backend.TableSchemes]
	i, ok := t.index[schemeID]
	if !ok {
		return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("scheme %s not found", schemeID))
	}
	n := gjson.GetBytes(t.rows[i], "enrolled_count").Int()
	row, err := sjson.SetBytes(t.rows[i], "enrolled_count", n+1)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "increment enrolled_count", err)
	}
	t.rows[i] = row
	return nil
}

// find returns the position of the first row whose keys equal those of row, or -1.
func (t *table) find(keys []string, row backend.Row) int {
	want := make([]string, len(keys))
	for i, k := range keys {
		v := gjson.GetBytes(row, k)
		if !v.Exists() {
			return -1
		}
		want[i] = v.Raw
	}
	for i, r := range t.rows {
		match := true
		for j, k := range keys {
			if gjson.GetBytes(r, k).Raw != want[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func (t *table) reindex() {
	t.index = make(map[string]int, len(t.rows))
	for i, r := range t.rows {
		t.index[gjson.GetBytes(r, "id").String()] = i
	}
}

// merge copies every top-level key of src into dst except the skipped ones.
func merge(dst, src backend.Row, skip ...string) (backend.Row, error) {
	if !gjson.ValidBytes(src) {
		return nil, apperrors.New(apperrors.ErrInvalid, "fields are not valid JSON")
	}
	out := append(backend.Row(nil), dst...)
	var err error
	gjson.ParseBytes(src).ForEach(func(k, v gjson.Result) bool {
		for _, s := range skip {
			if k.String() == s {
				return true
			}
		}
		out, err = sjson.SetRawBytes(out, k.String(), []byte(v.Raw))
		return err == nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "merge row", err)
	}
	return out, nil
}

func copyRows(rows []backend.Row) []backend.Row {
	out := make([]backend.Row, len(rows))
	for i, r := range rows {
		out[i] = append(json.RawMessage(nil), r...)
	}
	return out
}

package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"

	"github.com/ashaai/fieldsync/internal/backend"
	"github.com/ashaai/fieldsync/internal/backend/memory"
	apperrors "github.com/ashaai/fieldsync/internal/errors"
	"github.com/ashaai/fieldsync/internal/logging"
)

// =====================================================
// Round trip against the in-memory backend
// =====================================================

type RoundTripSuite struct {
	suite.Suite
	mem    *memory.Backend
	server *httptest.Server
	client *Client
	ctx    context.Context
}

func TestRoundTripSuite(t *testing.T) {
	suite.Run(t, new(RoundTripSuite))
}

func (s *RoundTripSuite) SetupTest() {
	s.mem = memory.New()
	s.server = httptest.NewServer(NewHandler(s.mem, logging.New(io.Discard, logging.LevelError)))
	s.client = New(s.server.URL, WithTimeout(2*time.Second))
	s.ctx = context.Background()
}

func (s *RoundTripSuite) TearDownTest() {
	s.server.Close()
}

func (s *RoundTripSuite) TestInsertAndList() {
	s.Require().NoError(s.client.Insert(s.ctx, backend.TableHealthLogs, json.RawMessage(`{"id":"h1","vitals":{"bp_systolic":120}}`)))

	rows, err := s.client.List(s.ctx, backend.TableHealthLogs)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(int64(120), gjson.GetBytes(rows[0], "vitals.bp_systolic").Int())
}

func (s *RoundTripSuite) TestListEmpty() {
	rows, err := s.client.List(s.ctx, backend.TableAlerts)
	s.Require().NoError(err)
	s.Empty(rows)
}

func (s *RoundTripSuite) TestInsertConflict() {
	row := json.RawMessage(`{"id":"a1"}`)
	s.Require().NoError(s.client.Insert(s.ctx, backend.TableAlerts, row))

	err := s.client.Insert(s.ctx, backend.TableAlerts, row)
	s.Equal(apperrors.KindConflict, apperrors.KindOf(err))
}

func (s *RoundTripSuite) TestUpsert() {
	keys := backend.NaturalKeys[backend.TableDailyLogs]
	s.Require().NoError(s.client.Upsert(s.ctx, backend.TableDailyLogs, json.RawMessage(`{"id":"d1","user_id":"u1","date":"2024-05-01","notes":"a"}`), keys))
	s.Require().NoError(s.client.Upsert(s.ctx, backend.TableDailyLogs, json.RawMessage(`{"id":"d2","user_id":"u1","date":"2024-05-01","notes":"b"}`), keys))

	rows := s.mem.Rows(backend.TableDailyLogs)
	s.Require().Len(rows, 1)
	s.Equal("b", gjson.GetBytes(rows[0], "notes").String())
}

func (s *RoundTripSuite) TestUpdateAndDelete() {
	s.Require().NoError(s.mem.Seed(backend.TableChildren, json.RawMessage(`{"id":"c1","name":"A"}`)))

	s.Require().NoError(s.client.Update(s.ctx, backend.TableChildren, "c1", json.RawMessage(`{"name":"B"}`)))
	got, _ := s.mem.Get(backend.TableChildren, "c1")
	s.Equal("B", gjson.GetBytes(got, "name").String())

	s.Require().NoError(s.client.Delete(s.ctx, backend.TableChildren, "c1"))
	s.Empty(s.mem.Rows(backend.TableChildren))
}

func (s *RoundTripSuite) TestUpdateMissingIsBounded() {
	err := s.client.Update(s.ctx, backend.TableChildren, "nope", json.RawMessage(`{}`))
	s.Equal(apperrors.KindBounded, apperrors.KindOf(err))
	s.True(apperrors.Is(err, apperrors.ErrBackend))
	s.Contains(err.Error(), "404")
}

func (s *RoundTripSuite) TestIncrementEnrollmentCount() {
	s.Require().NoError(s.mem.Seed(backend.TableSchemes, json.RawMessage(`{"id":"s1","enrolled_count":4}`)))

	s.Require().NoError(s.client.IncrementEnrollmentCount(s.ctx, "s1"))

	got, _ := s.mem.Get(backend.TableSchemes, "s1")
	s.Equal(int64(5), gjson.GetBytes(got, "enrolled_count").Int())
}

func (s *RoundTripSuite) TestHealth() {
	s.NoError(s.client.Health(s.ctx))
}

func (s *RoundTripSuite) TestInvalidBody() {
	resp, err := http.Post(s.server.URL+"/rest/alerts", "application/json", nil)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

// =====================================================
// Status mapping
// =====================================================

func TestClient_statusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind apperrors.Kind
		wantCode apperrors.ErrorCode
	}{
		{"conflict", http.StatusConflict, apperrors.KindConflict, apperrors.ErrConflict},
		{"server error", http.StatusInternalServerError, apperrors.KindBounded, apperrors.ErrBackend},
		{"bad request", http.StatusBadRequest, apperrors.KindBounded, apperrors.ErrBackend},
		{"unavailable", http.StatusServiceUnavailable, apperrors.KindBounded, apperrors.ErrBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"code":"X","message":"nope"}`))
			}))
			defer srv.Close()

			err := New(srv.URL).Insert(context.Background(), backend.TableAlerts, json.RawMessage(`{}`))
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestClient_transportErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(url, WithTimeout(time.Second)).Insert(context.Background(), backend.TableAlerts, json.RawMessage(`{}`))
	assert.Equal(t, apperrors.KindNetwork, apperrors.KindOf(err))
}

func TestClient_upsertQuery(t *testing.T) {
	var gotQuery, gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("on_conflict")
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := New(srv.URL+"/").Upsert(context.Background(), backend.TableDailyLogs, json.RawMessage(`{}`), []string{"user_id", "date"})
	require.NoError(t, err)
	assert.Equal(t, "user_id,date", gotQuery)
	assert.Equal(t, "/rest/daily_logs", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestClient_doesNotModifyCallerHTTPClient(t *testing.T) {
	hc := &http.Client{Timeout: time.Minute}
	c := New("http://backend.invalid", WithHTTPClient(hc), WithTimeout(time.Second))

	assert.Equal(t, time.Minute, hc.Timeout)
	assert.Equal(t, time.Second, c.http.Timeout)
	assert.NotSame(t, hc, c.http)
}

func TestClient_responseBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a1"},{"id":"a2"}]`))
	}))
	defer srv.Close()

	rows, err := New(srv.URL, WithMaxResponseBytes(64)).List(context.Background(), backend.TableAlerts)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = New(srv.URL, WithMaxResponseBytes(8)).List(context.Background(), backend.TableAlerts)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindBounded, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "exceeds 8 bytes")
}

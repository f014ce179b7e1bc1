package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bms/internal/core"
	"bms/internal/remote"
)

// rewrite sends every request to the test server regardless of host.
type rewrite struct {
	target *url.URL
	next   http.RoundTripper
}

func (rw rewrite) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = rw.target.Scheme
	r.URL.Host = rw.target.Host
	return rw.next.RoundTrip(r)
}

func newTestStore(t *testing.T, schema Schema, h http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return New("secret", "db-1", schema, &http.Client{Transport: rewrite{target: u, next: http.DefaultTransport}})
}

const pageJSON = `{
  "object": "page",
  "id": "page-1",
  "properties": {
    "항목명": {"id": "title", "type": "title", "title": [{"type": "text", "text": {"content": "연구원 인건비"}, "plain_text": "연구원 인건비"}]},
    "비목": {"id": "a", "type": "select", "select": {"name": "인건비(110)"}},
    "세목": {"id": "b", "type": "rich_text", "rich_text": []},
    "총예산": {"id": "c", "type": "number", "number": 1000000},
    "사용금액(합계)": {"id": "d", "type": "number", "number": 220000},
    "잔액": {"id": "e", "type": "number", "number": 780000},
    "집행률": {"id": "f", "type": "number", "number": 0.22},
    "상태": {"id": "g", "type": "select", "select": {"name": "주의"}},
    "2024년예산": {"id": "h", "type": "number", "number": 400000},
    "2025년집행": {"id": "i", "type": "number", "number": 120000},
    "동기화키": {"id": "j", "type": "rich_text", "rich_text": [{"type": "text", "text": {"content": "abc123"}, "plain_text": "abc123"}]}
  }
}`

func TestQueryPageDecodesProperties(t *testing.T) {
	schema := DefaultSchema()
	schema.SyncKey = "동기화키"

	var body map[string]any
	s := newTestStore(t, schema, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/databases/db-1/query", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","results":[`+pageJSON+`],"has_more":true,"next_cursor":"cur-2"}`)
	})

	page, err := s.QueryPage(context.Background(), 100, "cur-1")
	require.NoError(t, err)
	assert.Equal(t, float64(100), body["page_size"])
	assert.Equal(t, "cur-1", body["start_cursor"])

	assert.True(t, page.HasMore)
	assert.Equal(t, "cur-2", page.NextCursor)
	require.Len(t, page.Entries, 1)

	e := page.Entries[0]
	assert.Equal(t, "page-1", e.ID)
	assert.Equal(t, "연구원 인건비", e.ItemName)
	assert.Equal(t, "인건비(110)", e.Category)
	assert.Equal(t, "", e.Subcategory)
	assert.Equal(t, core.StatusCaution, e.Status)
	assert.Equal(t, "abc123", e.SyncKey)
	assert.True(t, e.TotalBudget.Equal(decimal.NewFromInt(1000000)))
	assert.True(t, e.ExecutionRate.Equal(decimal.RequireFromString("0.22")))
	assert.True(t, e.YearlyBudget[2024].Equal(decimal.NewFromInt(400000)))
	assert.True(t, e.YearlyExecuted[2025].Equal(decimal.NewFromInt(120000)))
}

func TestCreateSendsProperties(t *testing.T) {
	var body struct {
		Parent     map[string]any            `json:"parent"`
		Properties map[string]map[string]any `json:"properties"`
	}
	s := newTestStore(t, DefaultSchema(), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/pages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"page","id":"new-page","properties":{}}`)
	})

	rec := core.Record{
		ItemName:       "회의비",
		TotalBudget:    decimal.NewFromInt(100000),
		Remaining:      decimal.NewFromInt(-5000),
		Status:         core.StatusOverrun,
		YearlyBudget:   map[int]decimal.Decimal{2025: decimal.NewFromInt(100000)},
		YearlyExecuted: map[int]decimal.Decimal{2025: decimal.NewFromInt(105000)},
		LastSyncDate:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	id, err := s.Create(context.Background(), remote.PropertiesFor(rec))
	require.NoError(t, err)
	assert.Equal(t, "new-page", id)

	assert.Equal(t, "db-1", body.Parent["database_id"])
	assert.Contains(t, body.Properties, "항목명")
	assert.Contains(t, body.Properties, "2025년예산")
	assert.Contains(t, body.Properties, "2025년집행")
	assert.Contains(t, body.Properties, "최종동기화")
	assert.NotContains(t, body.Properties, "비목", "empty category is omitted")
	assert.NotContains(t, body.Properties, "동기화키", "sync key is only sent when configured")
	assert.Equal(t, float64(-5000), body.Properties["잔액"]["number"])
	assert.Equal(t, "초과", body.Properties["상태"]["select"].(map[string]any)["name"])
	assert.Equal(t, map[string]any{"start": "2025-03-01", "end": nil}, body.Properties["최종동기화"]["date"])
}

func TestLastSyncDateIsSentAsDay(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	props := DefaultSchema().encode(remote.PropertiesFor(core.Record{
		ItemName:     "회의비",
		LastSyncDate: time.Date(2025, 3, 5, 0, 0, 0, 0, seoul),
	}))

	b, err := json.Marshal(props["최종동기화"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"date","date":{"start":"2025-03-05","end":null}}`, string(b))
}

func TestRateLimitedIsNotApplied(t *testing.T) {
	s := newTestStore(t, DefaultSchema(), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"object":"error","status":429,"code":"rate_limited","message":"slow down"}`)
	})

	_, err := s.Create(context.Background(), remote.PropertiesFor(core.Record{ItemName: "x"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrNotApplied)
	assert.NotErrorIs(t, err, remote.ErrRejected)
}

func TestUpdateRejectedIsPermanent(t *testing.T) {
	s := newTestStore(t, DefaultSchema(), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/v1/pages/page-9"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"object":"error","status":400,"code":"validation_error","message":"상태 is not a property"}`)
	})

	err := s.Update(context.Background(), "page-9", remote.PropertiesFor(core.Record{ItemName: "x"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrRejected)
}

func TestServerErrorIsTransient(t *testing.T) {
	s := newTestStore(t, DefaultSchema(), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"object":"error","status":502,"code":"internal_server_error","message":"bad gateway"}`)
	})

	_, err := s.QueryPage(context.Background(), 100, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, remote.ErrRejected)
	assert.NotErrorIs(t, err, remote.ErrNotApplied, "a 502 may have been applied")
}

func TestSchemaRoundTrip(t *testing.T) {
	sc := DefaultSchema()
	sc.SyncKey = "동기화키"
	in := remote.Properties{
		Record: core.Record{
			ItemName:       "네트워크 구축",
			Category:       "유형자산(430)",
			Subcategory:    "장비",
			TotalBudget:    decimal.NewFromInt(400000),
			UsedTotal:      decimal.NewFromInt(456000),
			Remaining:      decimal.NewFromInt(-56000),
			ExecutionRate:  decimal.RequireFromString("1.14"),
			Status:         core.StatusOverrun,
			YearlyBudget:   map[int]decimal.Decimal{2024: decimal.NewFromInt(1)},
			YearlyExecuted: map[int]decimal.Decimal{},
		},
		SyncKey: "k",
	}
	out := sc.decode(sc.encode(in))
	assert.Equal(t, in.ItemName, out.ItemName)
	assert.Equal(t, in.Category, out.Category)
	assert.Equal(t, in.Subcategory, out.Subcategory)
	assert.Equal(t, in.Status, out.Status)
	assert.Equal(t, "k", out.SyncKey)
	assert.True(t, out.Remaining.Equal(in.Remaining))
	assert.True(t, out.ExecutionRate.Equal(in.ExecutionRate))
	assert.True(t, out.YearlyBudget[2024].Equal(decimal.NewFromInt(1)))
}

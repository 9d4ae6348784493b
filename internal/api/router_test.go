package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/timmy/layoffwatch/internal/api/middleware"
	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/logger"
	"gorm.io/gorm"
)

type fakeOrchestrator struct {
	regs    []domain.AdapterRegistration
	results map[string]domain.RunResult
	ran     []string
}

func (f *fakeOrchestrator) Registrations() []domain.AdapterRegistration { return f.regs }

func (f *fakeOrchestrator) RunAdapter(_ context.Context, name string) domain.RunResult {
	f.ran = append(f.ran, name)
	if r, ok := f.results[name]; ok {
		return r
	}
	return domain.RunResult{SourceID: name, Phase: domain.RunPhaseFailed, Errors: []string{"adapter not found: " + name}}
}

func (f *fakeOrchestrator) RunAll(ctx context.Context) *domain.RunSummary {
	s := domain.NewRunSummary()
	for _, r := range f.regs {
		s.Add(r.Name, f.RunAdapter(ctx, r.Name))
	}
	return s
}

func (f *fakeOrchestrator) LastResults() map[string]domain.RunResult { return f.results }

func newTestRouter(f *fakeOrchestrator, metrics http.Handler) http.Handler {
	l := logger.New(logger.Options{Output: io.Discard})
	return SetupRouter(f, nil, metrics, l, "test")
}

type fakeRecords struct {
	recs      []domain.NormalizedRecord
	gotSource string
	gotLimit  int
	fail      error
}

func (f *fakeRecords) GetByIdentityKey(_ context.Context, key string) (*domain.NormalizedRecord, error) {
	for i := range f.recs {
		if f.recs[i].IdentityKey == key {
			return &f.recs[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRecords) CountBySource(context.Context) (map[string]int64, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	counts := map[string]int64{}
	for _, r := range f.recs {
		counts[r.SourceID]++
	}
	return counts, nil
}

func (f *fakeRecords) ListRecent(_ context.Context, sourceID string, limit int) ([]domain.NormalizedRecord, error) {
	f.gotSource, f.gotLimit = sourceID, limit
	var out []domain.NormalizedRecord
	for _, r := range f.recs {
		if sourceID == "" || r.SourceID == sourceID {
			out = append(out, r)
		}
	}
	return out, nil
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func healthyOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{
		regs: []domain.AdapterRegistration{
			{Name: "layoffs_fyi", Enabled: true, Interval: 6 * time.Hour},
			{Name: "staging", Enabled: true},
		},
		results: map[string]domain.RunResult{
			"layoffs_fyi": {SourceID: "layoffs_fyi", Success: true, RecordsFound: 10, RecordsAdded: 4},
			"staging":     {SourceID: "staging", Success: true},
		},
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(healthyOrchestrator(), nil), http.MethodGet, "/health")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestListSources(t *testing.T) {
	rec := do(t, newTestRouter(healthyOrchestrator(), nil), http.MethodGet, "/api/v1/sources")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Sources []struct {
			Name     string `json:"name"`
			Enabled  bool   `json:"enabled"`
			Interval string `json:"interval"`
		} `json:"sources"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sources) != 2 || body.Sources[0].Name != "layoffs_fyi" || body.Sources[0].Interval != "6h0m0s" {
		t.Errorf("sources = %+v", body.Sources)
	}
	if body.Sources[1].Interval != "" {
		t.Errorf("staging interval = %q", body.Sources[1].Interval)
	}
}

func TestRunEndpoints(t *testing.T) {
	failing := healthyOrchestrator()
	failing.results["staging"] = domain.RunResult{SourceID: "staging", Errors: []string{"fetch: rows file not found"}}

	tests := []struct {
		name   string
		orch   *fakeOrchestrator
		method string
		path   string
		want   int
	}{
		{"run all ok", healthyOrchestrator(), http.MethodPost, "/api/v1/runs", http.StatusOK},
		{"run all with a failure", failing, http.MethodPost, "/api/v1/runs", http.StatusBadGateway},
		{"run one ok", healthyOrchestrator(), http.MethodPost, "/api/v1/runs/layoffs_fyi", http.StatusOK},
		{"run one failing", failing, http.MethodPost, "/api/v1/runs/staging", http.StatusBadGateway},
		{"run unknown", healthyOrchestrator(), http.MethodPost, "/api/v1/runs/nope", http.StatusNotFound},
		{"last runs", healthyOrchestrator(), http.MethodGet, "/api/v1/runs/last", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestRouter(tt.orch, nil), tt.method, tt.path)
			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d: %s", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRunUnknownReturnsResult(t *testing.T) {
	rec := do(t, newTestRouter(healthyOrchestrator(), nil), http.MethodPost, "/api/v1/runs/nope")
	var res domain.RunResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.SourceID != "nope" || res.Success || len(res.Errors) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("layoffwatch_up 1\n"))
	})
	rec := do(t, newTestRouter(healthyOrchestrator(), metrics), http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "layoffwatch_up") {
		t.Errorf("metrics = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, newTestRouter(healthyOrchestrator(), nil), http.MethodGet, "/metrics")
	if rec.Code != http.StatusNotFound {
		t.Errorf("metrics without handler = %d", rec.Code)
	}
}

func TestRecordRoutes(t *testing.T) {
	records := &fakeRecords{recs: []domain.NormalizedRecord{
		{EntityName: "Acme", SourceID: "staging", IdentityKey: "k1"},
		{EntityName: "Globex", SourceID: "peerlist", IdentityKey: "k2"},
		{EntityName: "Initech", SourceID: "staging", IdentityKey: "k3"},
	}}
	l := logger.New(logger.Options{Output: io.Discard})
	h := SetupRouter(healthyOrchestrator(), records, nil, l, "test")

	tests := []struct {
		name string
		path string
		want int
		body string
	}{
		{"list filtered", "/api/v1/records?source=staging&limit=10", http.StatusOK, `"count":2`},
		{"list bad limit", "/api/v1/records?limit=abc", http.StatusBadRequest, "limit"},
		{"get by key", "/api/v1/records/k2", http.StatusOK, `"entity_name":"Globex"`},
		{"get missing", "/api/v1/records/nope", http.StatusNotFound, "not found"},
		{"counts", "/api/v1/records/counts", http.StatusOK, `"total":3`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path)
			if rec.Code != tt.want || !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("GET %s = %d %s", tt.path, rec.Code, rec.Body.String())
			}
		})
	}

	do(t, h, http.MethodGet, "/api/v1/records?limit=9999")
	if records.gotLimit != 500 || records.gotSource != "" {
		t.Errorf("ListRecent called with source=%q limit=%d", records.gotSource, records.gotLimit)
	}
}

func TestRecordRoutesStoreError(t *testing.T) {
	l := logger.New(logger.Options{Output: io.Discard})
	h := SetupRouter(healthyOrchestrator(), &fakeRecords{fail: errors.New("db locked")}, nil, l, "test")
	if rec := do(t, h, http.MethodGet, "/api/v1/records/counts"); rec.Code != http.StatusInternalServerError {
		t.Errorf("counts with failing store = %d", rec.Code)
	}
	if rec := do(t, newTestRouter(healthyOrchestrator(), nil), http.MethodGet, "/api/v1/records"); rec.Code != http.StatusNotFound {
		t.Errorf("records without a reader = %d", rec.Code)
	}
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/spigell/cloutcash-matcher/internal/interactions"
	"github.com/spigell/cloutcash-matcher/internal/matching"
	"github.com/spigell/cloutcash-matcher/internal/profiles"
	"github.com/spigell/cloutcash-matcher/internal/ranking"
	"github.com/spigell/cloutcash-matcher/internal/validation"
)

type stubMatcher struct {
	resp *matching.Response
	err  error
	got  matching.Request
}

func (s *stubMatcher) Match(_ context.Context, req matching.Request) (*matching.Response, error) {
	s.got = req
	return s.resp, s.err
}

type stubRecorder struct {
	matched bool
	err     error
	got     interactions.Interaction
}

func (s *stubRecorder) Record(_ context.Context, item interactions.Interaction) (bool, error) {
	s.got = item
	return s.matched, s.err
}

type stubResetter struct {
	err   error
	users []string
}

func (s *stubResetter) Reset(_ context.Context, userID string) error {
	s.users = append(s.users, userID)
	return s.err
}

type fixture struct {
	matcher  *stubMatcher
	recorder *stubRecorder
	resetter *stubResetter
	handler  http.Handler
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		matcher: &stubMatcher{resp: &matching.Response{
			RequestID: "req-1",
			Candidates: []ranking.ScoredCandidate{{
				Candidate: &profiles.Creator{ID: "inf-1", Handle: "@priya"},
				Score:     0.82,
				Rationale: []string{"Niche match: Beauty"},
			}},
			NextCursor: 1,
		}},
		recorder: &stubRecorder{},
		resetter: &stubResetter{},
	}

	srv, err := New(cfg, Deps{Matcher: f.matcher, Recorder: f.recorder, Resetter: f.resetter})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	f.handler = srv.Handler()
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMatchServesPage(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(http.MethodPost, "/v1/matches",
		`{"requesterId":"camp-1","role":"brand","cursor":0,"limit":5,"filters":{"niches":["Beauty"],"maxPrice":10000}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	got := f.matcher.got
	if got.RequesterID != "camp-1" || got.Role != profiles.RoleBrand || got.Limit != 5 {
		t.Fatalf("request not passed through: %+v", got)
	}
	if got.Filters.MaxPrice == nil || *got.Filters.MaxPrice != 10000 || len(got.Filters.Niches) != 1 {
		t.Fatalf("filters not passed through: %+v", got.Filters)
	}

	var body struct {
		RequestID  string `json:"requestId"`
		NextCursor int    `json:"nextCursor"`
		Candidates []struct {
			Candidate struct {
				ID string `json:"id"`
			} `json:"candidate"`
			Score     float64  `json:"score"`
			Rationale []string `json:"rationale"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RequestID != "req-1" || body.NextCursor != 1 || len(body.Candidates) != 1 {
		t.Fatalf("unexpected response: %+v", body)
	}
	if body.Candidates[0].Candidate.ID != "inf-1" || body.Candidates[0].Score != 0.82 {
		t.Fatalf("unexpected candidate: %+v", body.Candidates[0])
	}
}

func TestMatchErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{
			name:   "validation",
			body:   `{"requesterId":"camp-1","role":"brand","cursor":-1}`,
			err:    &validation.RequestValidationError{Fields: []validation.FieldError{{Field: "Cursor", Tag: "gte", Param: "0"}}},
			status: http.StatusBadRequest,
			code:   codeValidation,
		},
		{
			name:   "unknown requester",
			body:   `{"requesterId":"ghost","role":"brand"}`,
			err:    fmt.Errorf("lookup: %w", profiles.ErrNotFound),
			status: http.StatusNotFound,
			code:   codeNotFound,
		},
		{
			name:   "internal",
			body:   `{"requesterId":"camp-1","role":"brand"}`,
			err:    errors.New("badger exploded"),
			status: http.StatusInternalServerError,
			code:   codeInternal,
		},
		{
			name:   "malformed json",
			body:   `{"requesterId":`,
			status: http.StatusBadRequest,
			code:   codeBadRequest,
		},
		{
			name:   "unknown field",
			body:   `{"requesterId":"camp-1","role":"brand","page":2}`,
			status: http.StatusBadRequest,
			code:   codeBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.matcher.err = tc.err

			rec := f.do(http.MethodPost, "/v1/matches", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			apiErr := decodeError(t, rec)
			if apiErr.Code != tc.code {
				t.Fatalf("expected code %s, got %+v", tc.code, apiErr)
			}
			if tc.code == codeValidation && (len(apiErr.Fields) != 1 || apiErr.Fields[0].Field != "Cursor") {
				t.Fatalf("expected field details, got %+v", apiErr.Fields)
			}
			if tc.code == codeInternal && strings.Contains(apiErr.Message, "badger") {
				t.Fatalf("internal error leaked to client: %q", apiErr.Message)
			}
		})
	}
}

func TestRecordInteraction(t *testing.T) {
	f := newFixture(t, Config{})
	f.recorder.matched = true

	rec := f.do(http.MethodPost, "/v1/interactions",
		`{"userId":"camp-1","targetId":"inf-1","type":"like","timestamp":"2025-03-01T10:00:00+05:30"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"matched":true`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	got := f.recorder.got
	if got.UserID != "camp-1" || got.TargetID != "inf-1" || got.Type != interactions.Like {
		t.Fatalf("interaction not passed through: %+v", got)
	}
	want := time.Date(2025, 3, 1, 4, 30, 0, 0, time.UTC)
	if !got.Timestamp.Equal(want) || got.Timestamp.Location() != time.UTC {
		t.Fatalf("expected timestamp %v in UTC, got %v", want, got.Timestamp)
	}
}

func TestRecordInteractionWithoutTimestamp(t *testing.T) {
	f := newFixture(t, Config{})
	rec := f.do(http.MethodPost, "/v1/interactions", `{"userId":"camp-1","targetId":"inf-1","type":"pass"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !f.recorder.got.Timestamp.IsZero() {
		t.Fatalf("recorder must default the timestamp, got %v", f.recorder.got.Timestamp)
	}
}

func TestRecordInteractionRejectsInvalid(t *testing.T) {
	f := newFixture(t, Config{})
	f.recorder.err = fmt.Errorf("%w: cannot interact with yourself", interactions.ErrInvalid)

	rec := f.do(http.MethodPost, "/v1/interactions", `{"userId":"inf-1","targetId":"inf-1","type":"like"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := decodeError(t, rec).Code; code != codeValidation {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestResetExclusions(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(http.MethodDelete, "/v1/exclusions/camp-1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(f.resetter.users) != 1 || f.resetter.users[0] != "camp-1" {
		t.Fatalf("unexpected resets: %v", f.resetter.users)
	}

	f.resetter.err = errors.New("disk full")
	if rec := f.do(http.MethodDelete, "/v1/exclusions/camp-1", ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRateLimitPerIP(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 1})

	if rec := f.do(http.MethodDelete, "/v1/exclusions/camp-1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	if rec := f.do(http.MethodDelete, "/v1/exclusions/camp-1", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("health checks must not be rate limited, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, Config{CORSOrigins: []string{"https://app.cloutcash.in"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/matches", nil)
	req.Header.Set("Origin", "https://app.cloutcash.in")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.cloutcash.in" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Config{}, Deps{}); err == nil {
		t.Fatal("expected error for missing deps")
	}
	if _, err := New(Config{RateLimit: -1}, Deps{Matcher: &stubMatcher{}, Recorder: &stubRecorder{}, Resetter: &stubResetter{}}); err == nil {
		t.Fatal("expected error for negative rate limit")
	}
}

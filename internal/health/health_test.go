package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthzAlwaysReturns200(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestReadyzAllCheckersPass(t *testing.T) {
	h := New(
		Checker{Name: "pipeline", Check: func(context.Context) error { return nil }},
		Checker{Name: "transcript-db", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Checks["pipeline"] != "ok" || body.Checks["transcript-db"] != "ok" {
		t.Errorf("checks = %v", body.Checks)
	}
}

func TestReadyzCheckerFails(t *testing.T) {
	h := New(
		Checker{Name: "transcript-db", Check: func(context.Context) error {
			return errors.New("connection refused")
		}},
		Checker{Name: "pipeline", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want fail", body.Status)
	}
	if body.Checks["transcript-db"] != "fail: connection refused" {
		t.Errorf("transcript-db check = %q", body.Checks["transcript-db"])
	}
}

func TestReadyzNoCheckers(t *testing.T) {
	h := New()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestFlagChecker(t *testing.T) {
	f := NewFlag("pipeline")
	check := f.Checker()

	if err := check.Check(context.Background()); err == nil {
		t.Error("cleared flag reported ready")
	}
	f.Set(true)
	if err := check.Check(context.Background()); err != nil {
		t.Errorf("set flag reported %v", err)
	}
	f.Set(false)
	if err := check.Check(context.Background()); err == nil {
		t.Error("re-cleared flag reported ready")
	}
}

func TestRegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	New().Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

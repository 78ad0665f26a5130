// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GermanBionicSystems/smartbedstation/internal/logging"
	"github.com/GermanBionicSystems/smartbedstation/internal/session"
)

type fakePressure struct{}

func (fakePressure) LatestFrame() session.PressureFrame { return session.PressureFrame{} }

type fakeInertial struct{}

func (fakeInertial) LatestSample() session.InertialSample {
	return session.InertialSample{Ax: 1}
}

func newTestServer() *Server {
	return New("secret", logging.New(false), fakePressure{}, fakeInertial{}, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthRejectsWrongCode(t *testing.T) {
	s := newTestServer()
	rec := doJSON(t, s.Handler(), http.MethodPost, "/auth", authRequest{Code: "wrong"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Result {
		t.Fatalf("expected result = false on failure, got %+v", resp)
	}
}

func TestAuthIssuesTokenAndGatesEndpoints(t *testing.T) {
	s := newTestServer()
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/auth", authRequest{Code: "secret"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Result {
		t.Fatalf("expected result = true, got %+v", resp)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data shape: %#v", resp.Data)
	}
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("expected a non-empty token")
	}

	if rec := doJSON(t, h, http.MethodGet, "/verify", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated /verify status = %d, want 401", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/verify", nil, token); rec.Code != http.StatusOK {
		t.Fatalf("authenticated /verify status = %d, want 200", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/verify", nil, "not-the-token"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong-token /verify status = %d, want 401", rec.Code)
	}
}

func TestAccelAndPressureReturnLatestValues(t *testing.T) {
	s := newTestServer()
	h := s.Handler()
	rec := doJSON(t, h, http.MethodPost, "/auth", authRequest{Code: "secret"}, "")
	var resp envelope
	json.Unmarshal(rec.Body.Bytes(), &resp)
	token := resp.Data.(map[string]interface{})["token"].(string)

	rec = doJSON(t, h, http.MethodGet, "/accel", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/pressure", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCORSPreflightIsAllowed(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodOptions, "/verify", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

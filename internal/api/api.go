// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package api exposes the station's administrative HTTP surface: a
// bearer-token auth handshake plus a handful of authenticated
// read-only endpoints, grounded on the google-periph webapi.go
// "s.api(handler)" JSON wrapper pattern but adapted to the
// {result, timestamp, data, message} envelope and CORS-any policy
// spec.md §7 calls for instead of periph-web's XSRF cookie scheme.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/GermanBionicSystems/smartbedstation/internal/logging"
	"github.com/GermanBionicSystems/smartbedstation/internal/session"
	"github.com/GermanBionicSystems/smartbedstation/internal/storage"
)

// envelope is the fixed JSON response shape every endpoint returns.
// Result is a boolean per spec.md §6/§7, not a status string, so a
// client checking "result === false" detects every failure path.
type envelope struct {
	Result    bool        `json:"result"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// PressureSource supplies the latest pressure frame for GET /pressure.
type PressureSource interface {
	LatestFrame() session.PressureFrame
}

// InertialSource supplies the latest inertial tuple for GET /accel.
type InertialSource interface {
	LatestSample() session.InertialSample
}

// Server holds the administrative HTTP surface's dependencies and the
// single live bearer token issued by the last successful /auth call.
type Server struct {
	code     string
	log      *logging.Logger
	pressure PressureSource
	inertial InertialSource
	store    *storage.Store

	mu    sync.Mutex
	token string
}

// New creates a Server. code is the shared secret required by POST
// /auth (spec.md §6's api_code); store may be nil if persistence is
// disabled.
func New(code string, log *logging.Logger, pressure PressureSource, inertial InertialSource, store *storage.Store) *Server {
	return &Server{code: code, log: log, pressure: pressure, inertial: inertial, store: store}
}

// Handler returns the fully wired mux for the administrative surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", s.withCORS(s.handleAuth))
	mux.HandleFunc("/verify", s.withCORS(s.authenticated(s.handleVerify)))
	mux.HandleFunc("/connectivity", s.withCORS(s.authenticated(s.handleConnectivity)))
	mux.HandleFunc("/storage", s.withCORS(s.authenticated(s.handleStorage)))
	mux.HandleFunc("/pressure", s.withCORS(s.authenticated(s.handlePressure)))
	mux.HandleFunc("/accel", s.withCORS(s.authenticated(s.handleAccel)))
	return mux
}

// withCORS allows any origin, per spec.md §7, and short-circuits
// preflight OPTIONS requests.
func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// authenticated requires a valid "Authorization: Bearer <token>" header
// matching the token minted by the last successful /auth call.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		h := r.Header.Get("Authorization")
		if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
			writeEnvelope(w, http.StatusUnauthorized, envelope{Result: false, Message: "missing bearer token"})
			return
		}
		s.mu.Lock()
		valid := s.token != "" && h[len(prefix):] == s.token
		s.mu.Unlock()
		if !valid {
			writeEnvelope(w, http.StatusUnauthorized, envelope{Result: false, Message: "invalid or expired token"})
			return
		}
		next(w, r)
	}
}

type authRequest struct {
	Code string `json:"code"`
}

// handleAuth mints a fresh bearer token when the request's code matches
// the configured api_code.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeEnvelope(w, http.StatusMethodNotAllowed, envelope{Result: false, Message: "POST required"})
		return
	}
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Result: false, Message: "malformed request body"})
		return
	}
	if s.code == "" || req.Code != s.code {
		writeEnvelope(w, http.StatusUnauthorized, envelope{Result: false, Message: "invalid code"})
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	writeEnvelope(w, http.StatusOK, envelope{Result: true, Data: map[string]string{"token": token}})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, envelope{Result: true})
}

// handleConnectivity reports OS-derived network reachability. gopsutil
// exposes host stats but not a direct "online" check; a dial to a
// well-known resolver stands in for that probe, matching the original's
// "just try a socket" approach rather than parsing platform-specific
// Wi-Fi state.
func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	online := probeConnectivity()
	writeEnvelope(w, http.StatusOK, envelope{Result: true, Data: map[string]bool{"online": online}})
}

// handleStorage reports disk usage for the station's storage path via
// gopsutil.
func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	path := "/"
	if s.store != nil {
		path = s.store.Dir()
	}
	usage, err := disk.Usage(path)
	if err != nil {
		s.log.Debugf("api: disk.Usage(%s): %v", path, err)
		writeEnvelope(w, http.StatusInternalServerError, envelope{Result: false, Message: "storage stat unavailable"})
		return
	}
	writeEnvelope(w, http.StatusOK, envelope{Result: true, Data: map[string]interface{}{
		"path":         path,
		"total_bytes":  usage.Total,
		"used_bytes":   usage.Used,
		"free_bytes":   usage.Free,
		"used_percent": usage.UsedPercent,
	}})
}

func (s *Server) handlePressure(w http.ResponseWriter, r *http.Request) {
	frame := s.pressure.LatestFrame()
	writeEnvelope(w, http.StatusOK, envelope{Result: true, Data: frame})
}

func (s *Server) handleAccel(w http.ResponseWriter, r *http.Request) {
	sample := s.inertial.LatestSample()
	writeEnvelope(w, http.StatusOK, envelope{Result: true, Data: sample})
}

// envelopeTimeFormat is the HTTP surface's timestamp format, per
// spec.md §6 — distinct from session.TimeFormat, which omits the date
// since a session's own timestamps are always relative to its own
// finalisation day.
const envelopeTimeFormat = "2006/01/02 15:04:05.000"

func writeEnvelope(w http.ResponseWriter, code int, e envelope) {
	e.Timestamp = time.Now().Format(envelopeTimeFormat)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(e)
}

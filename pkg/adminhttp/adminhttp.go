/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package adminhttp is the non-chat rendering of the §6 admin surface:
// the same list/cancel/deploy-toggle operations chat.Surface exposes as
// Slack commands, here as a small chi-routed JSON API for operators
// without a chat backend configured.
package adminhttp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sdmcore/engine/pkg/cancel"
	"github.com/sdmcore/engine/pkg/store"
)

const deployPreferenceName = "deployEnabled"

// Server wires the admin HTTP surface's routes.
type Server struct {
	Cancel       *cancel.Service
	Preferences  store.Cache
	Registration string
}

// Router builds the chi router: CORS open by default (this surface sits
// behind the operator's own network boundary, same posture as the
// teacher's local dashboard endpoints), request logging, and the five
// admin routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/goal-sets", s.handleList)
	r.Delete("/goal-sets", s.handleCancelAll)
	r.Delete("/goal-sets/{goalSetID}", s.handleCancelOne)
	r.Get("/repos/{repoKey}/deploy", s.handleDeployStatus)
	r.Put("/repos/{repoKey}/deploy", s.handleDeploySet)
	return r
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sets, err := s.Cancel.List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.Cancel.CancelAll(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"canceled": n})
}

func (s *Server) handleCancelOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "goalSetID")
	found, err := s.Cancel.CancelOne(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeployStatus(w http.ResponseWriter, r *http.Request) {
	repoKey := chi.URLParam(r, "repoKey")
	value, ok, err := s.Preferences.GetPreference(r.Context(), repoKey, deployPreferenceName)
	if err != nil {
		writeErr(w, err)
		return
	}
	enabled := !ok || value == "true"
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

type deployRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleDeploySet(w http.ResponseWriter, r *http.Request) {
	repoKey := chi.URLParam(r, "repoKey")
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	value := "false"
	if req.Enabled {
		value = "true"
	}
	if err := s.Preferences.SetPreference(r.Context(), repoKey, deployPreferenceName, value); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// Package creds holds the live workspace credential for one server process.
//
// The store owns at most one credential at a time. The authorization flow is
// its only writer; the API client takes read-only snapshots. Reads are
// lock-free so a snapshot is never held across a network call.
package creds

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrNotAuthenticated is returned by Get when no credential is present.
var ErrNotAuthenticated = errors.New("not authenticated: no Slack credential is present")

// Credential is an issued workspace access token with its grant metadata.
type Credential struct {
	AccessToken string    `json:"access_token"`
	ObtainedAt  time.Time `json:"obtained_at"`
	Scopes      []string  `json:"scopes,omitempty"`
	TeamID      string    `json:"team_id,omitempty"`
	TeamName    string    `json:"team_name,omitempty"`
}

// Store holds the current credential for one workspace session.
// The zero value is empty and ready to use.
type Store struct {
	cur atomic.Pointer[Credential]
}

// NewStore returns an empty credential store.
func NewStore() *Store {
	return &Store{}
}

// Set replaces the current credential unconditionally.
func (s *Store) Set(c Credential) {
	s.cur.Store(&c)
}

// Get returns a snapshot of the current credential, or ErrNotAuthenticated
// if none has been set.
func (s *Store) Get() (Credential, error) {
	c := s.cur.Load()
	if c == nil {
		return Credential{}, ErrNotAuthenticated
	}
	return *c, nil
}

// Clear removes the current credential.
func (s *Store) Clear() {
	s.cur.Store(nil)
}

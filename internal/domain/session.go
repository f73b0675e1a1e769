package domain

import "strings"

// Session identifies who is performing a write against link storage.
// One is built per inbound request (HTTP admin call, Discord message, CLI run)
// and passed explicitly to repository write methods.
type Session struct {
	Actor         string
	Source        string
	Authenticated bool
}

// Session sources
const (
	SessionSourceAPI     = "api"
	SessionSourceDiscord = "discord"
	SessionSourceCLI     = "cli"
)

// NewSession creates an authenticated session for the given actor
func NewSession(source, actor string) Session {
	return Session{
		Actor:         strings.TrimSpace(actor),
		Source:        source,
		Authenticated: true,
	}
}

// Anonymous returns an unauthenticated session
func Anonymous() Session {
	return Session{Source: SessionSourceAPI}
}

// Authorize reports ErrUnauthorized for sessions that may not write
func (s Session) Authorize() error {
	if !s.Authenticated {
		return ErrUnauthorized
	}
	return nil
}

// ActorLabel is the value stored in portfolio_links.created_by
func (s Session) ActorLabel() string {
	if s.Actor == "" {
		return s.Source
	}
	return s.Source + ":" + s.Actor
}

// Package profile holds the in-memory agent and user profile store: the
// markdown/text fields tool calls read and write through managed:// paths,
// plus the participant context the agent orchestrator folds into prompts.
package profile

import (
	"sync"

	"github.com/fathom-run/fathom/internal/clock"
)

// AgentProfile is the agent-side identity and behavior document set.
type AgentProfile struct {
	AgentID         string
	DisplayName     string
	SoulMd          string
	IdentityMd      string
	AgentsMd        string
	GuidelinesMd    string
	CodeOfConductMd string
	LongTermMemMd   string
	SpecVersion     uint64
	UpdatedAtMs     int64
}

// UserProfile is the user-side identity and preference document set.
// Unlike AgentProfile it carries no SpecVersion: spec.md's UserProfile
// lifecycle is explicitly "same as AgentProfile minus spec_version", and
// the original's upsert_user_profile never touches a version field.
type UserProfile struct {
	UserID        string
	Name          string
	Nickname      string
	UserMd        string
	PreferencesJS string
	LongTermMemMd string
	UpdatedAtMs   int64
}

// Store is the runtime's lazily-populated profile table. One RWMutex guards
// both maps; reads (prompt assembly, tool reads) take RLock, writes
// (upserts, lazy-create) take Lock.
type Store struct {
	clock clock.Clock

	mu    sync.RWMutex
	agent map[string]AgentProfile
	user  map[string]UserProfile
}

func NewStore(c clock.Clock) *Store {
	if c == nil {
		c = clock.System{}
	}
	return &Store{
		clock: c,
		agent: make(map[string]AgentProfile),
		user:  make(map[string]UserProfile),
	}
}

// DefaultAgentProfile is the seed content a freshly created agent
// profile carries, matching what the original runtime stamps a new
// agent with on first reference.
func DefaultAgentProfile(agentID string, nowMs int64) AgentProfile {
	return AgentProfile{
		AgentID:         agentID,
		DisplayName:     "Fathom",
		SoulMd:          "# SOUL.md\n\nPragmatic, clear, direct.\n",
		IdentityMd:      "# IDENTITY.md\n\nid: " + agentID + "\n",
		AgentsMd:        "# AGENTS.md\n\nFollow repository and runtime rules.\n",
		GuidelinesMd:    "# Guidelines\n\nBe deterministic.\n",
		CodeOfConductMd: "# Code Of Conduct\n\nNo harmful actions.\n",
		LongTermMemMd:   "# Long-Term Agent Memory\n",
		SpecVersion:     1,
		UpdatedAtMs:     nowMs,
	}
}

// DefaultUserProfile is the seed content a freshly created user profile
// carries.
func DefaultUserProfile(userID string, nowMs int64) UserProfile {
	return UserProfile{
		UserID:        userID,
		Name:          userID,
		Nickname:      userID,
		PreferencesJS: "{}",
		UserMd:        "# USER.md\n\nid: " + userID + "\n",
		LongTermMemMd: "# Long-Term User Memory\n",
		UpdatedAtMs:   nowMs,
	}
}

// GetOrCreateAgent returns the agent profile for id, seeding it with
// DefaultAgentProfile on first access.
func (s *Store) GetOrCreateAgent(id string) AgentProfile {
	s.mu.RLock()
	if p, ok := s.agent[id]; ok {
		s.mu.RUnlock()
		return p
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.agent[id]; ok {
		return p
	}
	p := DefaultAgentProfile(id, s.clock.NowMs())
	s.agent[id] = p
	return p
}

// GetOrCreateUser returns the user profile for id, seeding it with
// DefaultUserProfile on first access.
func (s *Store) GetOrCreateUser(id string) UserProfile {
	s.mu.RLock()
	if p, ok := s.user[id]; ok {
		s.mu.RUnlock()
		return p
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.user[id]; ok {
		return p
	}
	p := DefaultUserProfile(id, s.clock.NowMs())
	s.user[id] = p
	return p
}

// FetchAgent returns the agent profile for id without creating one.
func (s *Store) FetchAgent(id string) (AgentProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.agent[id]
	return p, ok
}

// FetchUser returns the user profile for id without creating one.
func (s *Store) FetchUser(id string) (UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.user[id]
	return p, ok
}

// UpsertAgent stores profile, bumping SpecVersion to max(current, 1)+1 when
// the caller passes 0 (the "force re-stamp" convention used by managed
// field writes), and filling UpdatedAtMs from the clock when the caller
// passes 0.
func (s *Store) UpsertAgent(profile AgentProfile) AgentProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.agent[profile.AgentID]
	if profile.SpecVersion == 0 {
		base := current.SpecVersion
		if base < 1 {
			base = 1
		}
		profile.SpecVersion = base + 1
	}
	if profile.UpdatedAtMs == 0 {
		profile.UpdatedAtMs = s.clock.NowMs()
	}
	s.agent[profile.AgentID] = profile
	return profile
}

// UpsertUser stores profile, filling UpdatedAtMs from the clock when the
// caller passes 0. UserProfile has no spec version to bump.
func (s *Store) UpsertUser(profile UserProfile) UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profile.UpdatedAtMs == 0 {
		profile.UpdatedAtMs = s.clock.NowMs()
	}
	s.user[profile.UserID] = profile
	return profile
}

package session

import (
	"github.com/fathom-run/fathom/internal/profile"
)

// state is the mutable record a single actor goroutine owns exclusively;
// nothing outside actor.run ever touches it, so it needs no locking.
type state struct {
	sessionID            string
	createdAtMs          int64
	agentID              string
	participantUserIDs   []string
	agentProfileCopy     profile.AgentProfile
	participantProfiles  map[string]profile.UserProfile

	triggerQueue []Trigger

	history []string

	tasks          map[string]*Task
	pendingTaskIDs []string
	runningTaskIDs map[string]struct{}

	turnSeq        uint64
	turnInProgress bool
}

func newState(sessionID, agentID string, participantUserIDs []string, agentProfile profile.AgentProfile, participantProfiles map[string]profile.UserProfile, nowMs int64) *state {
	return &state{
		sessionID:           sessionID,
		createdAtMs:         nowMs,
		agentID:             agentID,
		participantUserIDs:  participantUserIDs,
		agentProfileCopy:    agentProfile,
		participantProfiles: participantProfiles,
		tasks:               make(map[string]*Task),
		runningTaskIDs:      make(map[string]struct{}),
	}
}

func (s *state) toSummary() Summary {
	profiles := make([]profile.UserProfile, 0, len(s.participantUserIDs))
	for _, id := range s.participantUserIDs {
		if p, ok := s.participantProfiles[id]; ok {
			profiles = append(profiles, p)
		}
	}

	var pending, running uint64
	for _, t := range s.tasks {
		switch t.Status {
		case StatusPending:
			pending++
		case StatusRunning:
			running++
		}
	}

	return Summary{
		SessionID:                   s.sessionID,
		CreatedAtMs:                 s.createdAtMs,
		AgentID:                     s.agentID,
		ParticipantUserIDs:          append([]string{}, s.participantUserIDs...),
		AgentProfileCopy:            s.agentProfileCopy,
		ParticipantUserProfilesCopy: profiles,
		QueuedTriggerCount:          uint64(len(s.triggerQueue)),
		HistoryEntryCount:           uint64(len(s.history)),
		PendingTaskCount:            pending,
		RunningTaskCount:            running,
	}
}

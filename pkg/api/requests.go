package api

import "github.com/wardenhq/warden/pkg/models"

// LinkAgentRequest binds an agent to a child.
type LinkAgentRequest struct {
	ChildID string `json:"childId"`
}

// SetEnabledRequest toggles monitoring for an agent.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// UserMappingRequest maps an OS username to a child. An empty childId
// clears the mapping.
type UserMappingRequest struct {
	Username string `json:"username"`
	ChildID  string `json:"childId"`
}

// ParentAccountsRequest replaces the agent's parent account list.
type ParentAccountsRequest struct {
	Usernames []string `json:"usernames"`
}

// ForceLogoutRequest carries the reason shown to the child.
type ForceLogoutRequest struct {
	Reason string `json:"reason"`
}

// ApplyFocusRequest activates focus mode on an agent. ChildID defaults to
// the agent's binding; the profile comes from the child's configuration
// unless an override is supplied.
type ApplyFocusRequest struct {
	ChildID string               `json:"childId,omitempty"`
	Profile *models.FocusProfile `json:"profile,omitempty"`
}

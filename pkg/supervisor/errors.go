package supervisor

import "errors"

var (
	// ErrAgentNotFound — the agent id is not in the registry.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrChildNotFound — the child id is not configured.
	ErrChildNotFound = errors.New("child not found")

	// ErrMissingBinding — the operation needs an agent bound to a child.
	ErrMissingBinding = errors.New("agent is not bound to a child")

	// ErrGatewayNotConfigured — constructed without a gateway; monitoring
	// cannot start.
	ErrGatewayNotConfigured = errors.New("gateway not configured")

	// ErrStopped — the supervisor is shutting down.
	ErrStopped = errors.New("supervisor stopped")
)

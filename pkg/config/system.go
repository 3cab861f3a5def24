package config

import "time"

// System groups infrastructure settings loaded from warden.yaml. These are
// process-level knobs, distinct from the runtime Settings that live in the
// persisted state blob.
type System struct {
	// HTTPPort is the control API listen port.
	HTTPPort string `yaml:"http_port"`

	// AllowedWSOrigins restricts WebSocket upgrade origins for the UI hub.
	// Empty means same-origin checks are skipped (development only).
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`

	// StatePath is where the opaque configuration blob is persisted.
	StatePath string `yaml:"state_path"`

	Oracle *OracleYAMLConfig `yaml:"oracle"`
	Slack  *SlackYAMLConfig  `yaml:"slack"`
}

// OracleYAMLConfig holds the quota/permission oracle endpoints.
type OracleYAMLConfig struct {
	// BaseURL is the HTTP endpoint for verdict checks.
	BaseURL string `yaml:"base_url"`

	// FeedURL is the WebSocket endpoint for stateChange push events.
	// Empty disables the push subscription; verdicts then refresh only
	// through the cache TTL.
	FeedURL string `yaml:"feed_url,omitempty"`

	// VerdictTTL is how long a cached verdict stays current. Parsed from a
	// duration string, default 60s.
	VerdictTTL string `yaml:"verdict_ttl,omitempty"`
}

// SlackYAMLConfig holds parent-notification settings.
type SlackYAMLConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	TokenEnv string `yaml:"token_env,omitempty"` // defaults to "SLACK_TOKEN"
	Channel  string `yaml:"channel,omitempty"`
}

// VerdictTTL parses the configured verdict TTL, falling back to 60 seconds.
func (o *OracleYAMLConfig) VerdictTTLOrDefault() time.Duration {
	if o == nil || o.VerdictTTL == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(o.VerdictTTL)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

package gateway

import (
	"embed"
	"fmt"

	"github.com/wardenhq/warden/pkg/models"
)

// MonitorIDs are the exactly-two monitors every agent runs.
var MonitorIDs = []string{"session", "process"}

// ActionIDs are the four actions deployable to every agent.
var ActionIDs = []string{"warn", "kill", "lock", "logout"}

//go:embed assets
var scriptAssets embed.FS

// scriptExt maps a platform to the script dialect shipped to it.
func scriptExt(platform models.Platform) string {
	if platform == models.PlatformWindows {
		return "ps1"
	}
	return "sh"
}

func isMonitorID(id string) bool {
	return id == "session" || id == "process"
}

func isActionID(id string) bool {
	for _, a := range ActionIDs {
		if id == a {
			return true
		}
	}
	return false
}

// script loads an embedded script blob. The blobs are opaque to the core:
// they are deployed verbatim and executed agent-side.
func script(platform models.Platform, name string) (string, error) {
	if !platform.Valid() {
		return "", fmt.Errorf("unsupported platform: %q", platform)
	}
	path := fmt.Sprintf("assets/%s/%s.%s", platform, name, scriptExt(platform))
	data, err := scriptAssets.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load script %s: %w", path, err)
	}
	return string(data), nil
}

// MonitorScript returns the embedded monitor script for a platform.
func MonitorScript(platform models.Platform, monitorID string) (string, error) {
	if !isMonitorID(monitorID) {
		return "", fmt.Errorf("unknown monitor: %q", monitorID)
	}
	return script(platform, monitorID)
}

// ActionScript returns the embedded action script for a platform.
func ActionScript(platform models.Platform, actionID string) (string, error) {
	if !isActionID(actionID) {
		return "", fmt.Errorf("unknown action: %q", actionID)
	}
	return script(platform, actionID)
}

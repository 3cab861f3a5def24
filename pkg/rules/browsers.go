// Package rules evaluates process snapshots against a child's enforcement
// configuration: blocked-process patterns, time-of-day schedules, bedtime
// windows, and the active focus profile.
package rules

import (
	"strings"

	"github.com/wardenhq/warden/pkg/models"
)

// browserPatterns maps process-name substrings to canonical browser names.
// Matching is case-insensitive. Order matters: more specific names first so
// "msedge" wins over generic fallbacks.
var browserPatterns = []struct {
	pattern string
	name    string
}{
	{"msedge", "Microsoft Edge"},
	{"microsoft edge", "Microsoft Edge"},
	{"chromium", "Chromium"},
	{"chrome", "Google Chrome"},
	{"firefox", "Firefox"},
	{"safari", "Safari"},
	{"opera", "Opera"},
	{"brave", "Brave"},
	{"vivaldi", "Vivaldi"},
}

// BrowserName returns the canonical browser name for a process name, or ""
// when the process is not a known browser.
func BrowserName(processName string) string {
	lower := strings.ToLower(processName)
	for _, bp := range browserPatterns {
		if strings.Contains(lower, bp.pattern) {
			return bp.name
		}
	}
	return ""
}

// DetectBrowsers derives browser matches for a snapshot whose agent script
// did not classify them. Snapshots that already carry browser info are
// trusted as-is.
func DetectBrowsers(processes []models.ProcessInfo) []models.BrowserInfo {
	var out []models.BrowserInfo
	for _, p := range processes {
		if name := BrowserName(p.Name); name != "" {
			out = append(out, models.BrowserInfo{PID: p.PID, Name: p.Name, BrowserName: name})
		}
	}
	return out
}

// Classify fills in derived snapshot fields the agent script left empty:
// browser matches and the per-category summary.
func Classify(s *models.ProcessSnapshot) {
	if len(s.Browsers) == 0 {
		s.Browsers = DetectBrowsers(s.Processes)
	}
	s.BrowserActive = len(s.Browsers) > 0

	if s.Summary == (models.CategorySummary{}) {
		for _, p := range s.Processes {
			switch p.Category {
			case models.CategoryGames:
				s.Summary.Games++
			case models.CategoryEducation:
				s.Summary.Education++
			case models.CategoryProductivity:
				s.Summary.Productivity++
			case models.CategoryInternet:
				s.Summary.Internet++
			default:
				s.Summary.Other++
			}
		}
	}
	if s.ProcessCount == 0 {
		s.ProcessCount = len(s.Processes)
	}
}

// matchPattern reports whether the process name contains the pattern,
// case-insensitively. First match wins in callers.
func matchPattern(processName, pattern string) bool {
	if pattern == "" {
		return false
	}
	return strings.Contains(strings.ToLower(processName), strings.ToLower(pattern))
}

// matchAny returns the first matching pattern, or "" when none match.
func matchAny(processName string, patterns []string) string {
	for _, p := range patterns {
		if matchPattern(processName, p) {
			return p
		}
	}
	return ""
}

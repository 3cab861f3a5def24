package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/wardenhq/warden/pkg/models"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// Service delivers parent notifications for journaled violations.
// Nil-safe: all methods are no-ops when the service is nil.
type Service struct {
	client       *Client
	dashboardURL string
	enabled      func() bool
	logger       *slog.Logger

	// threads caches per-hostname thread roots so repeated violations from
	// one computer land in a single thread.
	mu      sync.Mutex
	threads map[string]string
}

// NewService creates a notification service. Returns nil when Token or
// Channel is empty. enabled is consulted per notification so the
// notifyParent setting applies without restart.
func NewService(cfg ServiceConfig, enabled func() bool) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return NewServiceWithClient(NewClient(cfg.Token, cfg.Channel), cfg.DashboardURL, enabled)
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string, enabled func() bool) *Service {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		enabled:      enabled,
		logger:       slog.Default().With("component", "notify-service"),
		threads:      make(map[string]string),
	}
}

var violationLabel = map[models.ViolationKind]string{
	models.ViolationBlockedProcess: ":no_entry: Blocked application detected",
	models.ViolationProcessKilled:  ":octagonal_sign: Blocked application closed",
	models.ViolationQuotaExhausted: ":hourglass: Screen time used up",
	models.ViolationBedtime:        ":crescent_moon: Bedtime enforced",
	models.ViolationAccessBlocked:  ":lock: Access blocked",
	models.ViolationActionFailed:   ":warning: Enforcement action failed",
}

// topLevel marks the kinds parents should see without expanding a thread.
func topLevel(kind models.ViolationKind) bool {
	return kind == models.ViolationQuotaExhausted || kind == models.ViolationBedtime
}

// NotifyViolation posts one violation to the parents' channel. Process
// noise threads under the computer's root message; quota and bedtime events
// post top-level. Fail-open: errors are logged, never returned.
func (s *Service) NotifyViolation(ctx context.Context, v models.Violation) {
	if s == nil || !s.enabled() {
		return
	}

	threadTS := ""
	if !topLevel(v.Kind) && v.Hostname != "" {
		threadTS = s.hostThread(ctx, v.Hostname)
	}

	ts, err := s.client.PostMessage(ctx, buildViolationMessage(v, s.dashboardURL), threadTS, 5*time.Second)
	if err != nil {
		s.logger.Error("Failed to send violation notification",
			"kind", v.Kind, "hostname", v.Hostname, "error", err)
		return
	}
	// A top-level post for a hostname becomes its thread root.
	if threadTS == "" && v.Hostname != "" {
		s.mu.Lock()
		s.threads[v.Hostname] = ts
		s.mu.Unlock()
	}
}

// hostThread resolves the thread root for a hostname: the cached ts, a
// fingerprint search over recent history, or "" to start a new thread.
func (s *Service) hostThread(ctx context.Context, hostname string) string {
	s.mu.Lock()
	ts, ok := s.threads[hostname]
	s.mu.Unlock()
	if ok {
		return ts
	}

	ts, err := s.client.FindMessageByFingerprint(ctx, hostFingerprint(hostname))
	if err != nil {
		s.logger.Warn("Failed to find Slack thread for host",
			"hostname", hostname, "error", err)
		return ""
	}
	if ts != "" {
		s.mu.Lock()
		s.threads[hostname] = ts
		s.mu.Unlock()
	}
	return ts
}

func hostFingerprint(hostname string) string {
	return fmt.Sprintf("[%s]", hostname)
}

// buildViolationMessage creates Block Kit blocks for one violation.
func buildViolationMessage(v models.Violation, dashboardURL string) []goslack.Block {
	label := violationLabel[v.Kind]
	if label == "" {
		label = ":bell: " + string(v.Kind)
	}

	text := fmt.Sprintf("%s *%s*", label, hostFingerprint(v.Hostname))
	if v.ProcessName != "" {
		text += fmt.Sprintf("\n*App:* `%s`", v.ProcessName)
	}
	if v.Reason != "" {
		text += fmt.Sprintf("\n%s", v.Reason)
	}

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
	if dashboardURL != "" && topLevel(v.Kind) {
		btn := goslack.NewButtonBlockElement("", "",
			goslack.NewTextBlockObject(goslack.PlainTextType, "Open Dashboard", false, false))
		btn.URL = dashboardURL
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}
	return blocks
}

// Package supervisor is the stateful coordinator: it fuses agent telemetry,
// oracle verdicts, and wall-clock schedules into per-child enforcement
// decisions, owns the agent registry, and serializes all processing per
// agent.
package supervisor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/dispatch"
	"github.com/wardenhq/warden/pkg/gateway"
	"github.com/wardenhq/warden/pkg/journal"
	"github.com/wardenhq/warden/pkg/models"
	"github.com/wardenhq/warden/pkg/notify"
	"github.com/wardenhq/warden/pkg/planner"
	"github.com/wardenhq/warden/pkg/rules"
	"github.com/wardenhq/warden/pkg/store"
	"github.com/wardenhq/warden/pkg/tracker"
	"github.com/wardenhq/warden/pkg/usage"
)

// UI broadcast channels.
const (
	ChannelViolation      = "osViolation"
	ChannelSessionUpdate  = "osSessionUpdate"
	ChannelQuotaWarning   = "osQuotaWarning"
	ChannelQuotaExhausted = "osQuotaExhausted"
	ChannelBedtimeWarning = "osBedtimeWarning"
	ChannelBlockedProcess = "osBlockedProcessDetected"
)

// Gateway is the agent transport surface the supervisor drives. Implemented
// by the gateway package; faked in tests.
type Gateway interface {
	Start(ctx context.Context)
	Stop()
	DeployMonitor(ctx context.Context, agentID, monitorID string, interval time.Duration) error
	UpdateMonitor(ctx context.Context, agentID, monitorID string, interval time.Duration) error
	RemoveMonitor(ctx context.Context, agentID, monitorID string) error
	DeployAction(ctx context.Context, agentID, actionID string) error
	TriggerAction(ctx context.Context, agentID, actionID string, params map[string]any) (string, error)
	Connected(agentID string) bool
}

// Invalidator drops cached oracle verdicts for a child. Implemented by the
// oracle client.
type Invalidator interface {
	Invalidate(childID string)
}

// Broadcaster fans an event out to UI subscribers of a channel. Implemented
// by the API hub. Nil is allowed.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Supervisor wires the registry, tracker, accountant, rule evaluator,
// planner, and dispatcher together behind per-agent event loops.
type Supervisor struct {
	logger *slog.Logger

	mu       sync.RWMutex
	agents   map[string]*models.Agent
	children map[string]*models.ChildConfig
	settings config.Settings
	focus    map[string]*models.FocusProfile
	lastSnap map[string]*models.ProcessSnapshot
	bedtimes map[string]*rules.BedtimeState
	lastSync time.Time

	tracker     *tracker.Tracker
	accountant  *usage.Accountant
	journal     *journal.Journal
	timers      *dispatch.TimerTable
	dispatcher  *dispatch.Dispatcher
	planner     *planner.Planner
	invalidator Invalidator
	store       *store.Store
	notifier    *notify.Service
	broadcaster Broadcaster

	gw Gateway

	loopMu  sync.Mutex
	loops   map[string]*agentLoop
	runCtx  context.Context
	cancel  context.CancelFunc
	started bool
}

// New builds a supervisor and restores persisted state. The gateway is
// attached separately because its event handler is the supervisor itself;
// Start fails until one is attached.
func New(st *store.Store, verdicts planner.VerdictSource, invalidator Invalidator, notifier *notify.Service, broadcaster Broadcaster) (*Supervisor, error) {
	s := &Supervisor{
		logger:      slog.Default().With("component", "supervisor"),
		agents:      make(map[string]*models.Agent),
		children:    make(map[string]*models.ChildConfig),
		settings:    config.DefaultSettings(),
		focus:       make(map[string]*models.FocusProfile),
		lastSnap:    make(map[string]*models.ProcessSnapshot),
		bedtimes:    make(map[string]*rules.BedtimeState),
		tracker:     tracker.New(),
		journal:     journal.New(),
		timers:      dispatch.NewTimerTable(),
		invalidator: invalidator,
		store:       st,
		notifier:    notifier,
		broadcaster: broadcaster,
		loops:       make(map[string]*agentLoop),
	}
	s.runCtx, s.cancel = context.WithCancel(context.Background())
	s.accountant = usage.New(s.SettingsFn())
	s.dispatcher = dispatch.NewDispatcher(s, s.journal)
	s.planner = planner.New(verdicts, s.dispatcher, s.timers, s.journal, s.SettingsFn(), s.routeIntent)

	s.journal.OnViolation(func(v models.Violation) {
		s.broadcast(ChannelViolation, v)
		s.mu.RLock()
		n := s.notifier
		s.mu.RUnlock()
		if n != nil {
			go n.NotifyViolation(context.Background(), v)
		}
	})

	if st != nil {
		state, err := st.Load()
		if err != nil {
			return nil, err
		}
		s.restore(state)
	}
	return s, nil
}

// restore loads a persisted blob into runtime state. Timers are not
// restored; they are recomputed from the next telemetry.
func (s *Supervisor) restore(state *store.State) {
	s.mu.Lock()
	for id, a := range state.Agents {
		cp := a.Clone()
		cp.Online = false
		s.agents[id] = cp
	}
	for id, c := range state.Children {
		s.children[id] = c.Clone()
	}
	s.settings = state.Settings
	s.lastSync = state.LastSync
	s.mu.Unlock()

	s.tracker.Restore(state.UserMappings, state.ParentAccounts)

	// Persisted rings are oldest-first.
	violations := append([]models.Violation(nil), state.Violations...)
	activity := append([]models.ActivityEvent(nil), state.ActivityLog...)
	s.journal.Restore(violations, activity)
}

// SettingsFn returns a live settings reader for components that must see
// runtime updates.
func (s *Supervisor) SettingsFn() func() config.Settings {
	return func() config.Settings {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.settings
	}
}

// AttachGateway connects the transport. Must be called before Start.
func (s *Supervisor) AttachGateway(gw Gateway) {
	s.gw = gw
}

// SetNotifier installs the parent notification service. Nil disables.
// Called during startup once the notifier's settings source exists.
func (s *Supervisor) SetNotifier(n *notify.Service) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

// SetBroadcaster installs the dashboard event sink. Nil disables.
func (s *Supervisor) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	s.broadcaster = b
	s.mu.Unlock()
}

// Journal exposes the violation/activity rings for the API layer.
func (s *Supervisor) Journal() *journal.Journal {
	return s.journal
}

// Start begins monitoring. Fatal without a gateway.
func (s *Supervisor) Start(ctx context.Context) error {
	if s.gw == nil {
		return ErrGatewayNotConfigured
	}
	s.started = true
	s.gw.Start(ctx)
	s.logger.Info("Supervisor started")
	return nil
}

// Stop cancels all timers and loops, best-effort removes deployed monitor
// scripts, and persists the final state.
func (s *Supervisor) Stop() {
	s.logger.Info("Supervisor stopping")

	s.loopMu.Lock()
	loops := make([]*agentLoop, 0, len(s.loops))
	for _, l := range s.loops {
		loops = append(loops, l)
	}
	s.loopMu.Unlock()
	for _, l := range loops {
		l.stop()
		<-l.done
	}
	s.cancel()

	s.mu.RLock()
	agentIDs := make([]string, 0, len(s.agents))
	for id := range s.agents {
		agentIDs = append(agentIDs, id)
	}
	s.mu.RUnlock()

	for _, id := range agentIDs {
		s.planner.Release(id)
		if s.gw != nil && s.gw.Connected(id) {
			for _, m := range gateway.MonitorIDs {
				if err := s.gw.RemoveMonitor(context.Background(), id, m); err != nil {
					s.logger.Warn("Failed to remove monitor on shutdown",
						"agent_id", id, "monitor_id", m, "error", err)
				}
			}
		}
	}
	if s.gw != nil {
		s.gw.Stop()
	}
	s.persist()
}

// TriggerAction implements the dispatcher's commander by delegating to the
// attached gateway.
func (s *Supervisor) TriggerAction(ctx context.Context, agentID, actionID string, params map[string]any) (string, error) {
	if s.gw == nil {
		return "", ErrGatewayNotConfigured
	}
	return s.gw.TriggerAction(ctx, agentID, actionID, params)
}

func (s *Supervisor) broadcast(channel string, payload any) {
	s.mu.RLock()
	b := s.broadcaster
	s.mu.RUnlock()
	if b == nil {
		return
	}
	b.Broadcast(channel, payload)
}

// loopFor returns the agent's event loop, starting one on first use.
func (s *Supervisor) loopFor(agentID string) *agentLoop {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	l, ok := s.loops[agentID]
	if !ok {
		l = newAgentLoop(agentID)
		s.loops[agentID] = l
		go l.run(s.runCtx)
	}
	return l
}

// enqueue schedules work on the agent's loop.
func (s *Supervisor) enqueue(agentID string, class eventClass, fn func()) {
	s.loopFor(agentID).enqueue(loopEvent{class: class, run: fn})
}

// call runs fn on the agent's loop and waits for its result. Used by
// command handlers so commands interleave with telemetry in arrival order.
func (s *Supervisor) call(agentID string, fn func() error) error {
	errCh := make(chan error, 1)
	ok := s.loopFor(agentID).enqueue(loopEvent{class: classOther, run: func() {
		errCh <- fn()
	}})
	if !ok {
		return ErrStopped
	}
	return <-errCh
}

// HandleGatewayEvent is the gateway's event handler. It classifies the
// event and hands it to the owning agent's loop; it never blocks.
func (s *Supervisor) HandleGatewayEvent(e gateway.Event) {
	switch e.Type {
	case gateway.EventDiscovered:
		s.enqueue(e.AgentID, classOther, func() { s.onDiscovered(e) })

	case gateway.EventTelemetry:
		switch e.MonitorID {
		case "session":
			s.enqueue(e.AgentID, classSessionTelemetry, func() { s.onSessionTelemetry(e) })
		case "process":
			s.enqueue(e.AgentID, classProcessTelemetry, func() { s.onProcessTelemetry(e) })
		default:
			s.logger.Warn("Telemetry from unknown monitor",
				"agent_id", e.AgentID, "monitor_id", e.MonitorID)
		}

	case gateway.EventActionResult:
		s.enqueue(e.AgentID, classOther, func() { s.onActionResult(e) })

	case gateway.EventOnline:
		s.enqueue(e.AgentID, classOther, func() { s.onOnline(e) })

	case gateway.EventOffline:
		s.enqueue(e.AgentID, classOther, func() { s.onOffline(e) })
	}
}

// onDiscovered registers or refreshes an agent and runs deployment.
func (s *Supervisor) onDiscovered(e gateway.Event) {
	s.mu.Lock()
	agent, ok := s.agents[e.AgentID]
	if !ok {
		agent = &models.Agent{ID: e.AgentID, Enabled: true}
		s.agents[e.AgentID] = agent
	}
	agent.Hostname = e.Hostname
	agent.Platform = e.Platform
	agent.Online = true
	agent.LastSeen = e.At
	interval := s.settings.MonitorInterval()
	s.mu.Unlock()

	if !ok {
		s.logger.Info("Agent discovered",
			"agent_id", e.AgentID, "hostname", e.Hostname, "platform", e.Platform)
	}

	s.deployAll(e.AgentID, interval)

	s.journal.AddActivity(models.ActivityEvent{
		Kind:      "agent_connected",
		AgentID:   e.AgentID,
		Message:   "agent connected: " + e.Hostname,
		Timestamp: e.At,
	})
	s.persist()
	s.broadcastAgent(e.AgentID)
}

// deployAll ships both monitors and all four actions. Re-deploying an
// installed monitor is an interval update on the agent.
func (s *Supervisor) deployAll(agentID string, interval time.Duration) {
	if s.gw == nil {
		return
	}
	for _, m := range gateway.MonitorIDs {
		if err := s.gw.DeployMonitor(s.runCtx, agentID, m, interval); err != nil {
			s.logger.Error("Monitor deployment failed",
				"agent_id", agentID, "monitor_id", m, "error", err)
			continue
		}
		s.mu.Lock()
		if agent, ok := s.agents[agentID]; ok {
			if agent.DeployedMonitors == nil {
				agent.DeployedMonitors = make(map[string]models.DeployedMonitor)
			}
			agent.DeployedMonitors[m] = models.DeployedMonitor{
				MonitorID: m, Interval: interval, DeployedAt: time.Now(),
			}
		}
		s.mu.Unlock()
	}
	for _, a := range gateway.ActionIDs {
		if err := s.gw.DeployAction(s.runCtx, agentID, a); err != nil {
			s.logger.Error("Action deployment failed",
				"agent_id", agentID, "action_id", a, "error", err)
		}
	}
}

// onSessionTelemetry folds a session payload into the agent and evaluates
// enforcement for the bound child.
func (s *Supervisor) onSessionTelemetry(e gateway.Event) {
	var payload models.SessionPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		s.logger.Warn("Malformed session payload", "agent_id", e.AgentID, "error", err)
		return
	}

	s.mu.Lock()
	agent, ok := s.agents[e.AgentID]
	if !ok {
		s.mu.Unlock()
		return
	}
	agent.LastSeen = e.At
	agent.Online = true
	enabled := agent.Enabled
	snap := s.lastSnap[e.AgentID]
	upd := s.tracker.Apply(agent, payload, e.At)
	s.mu.Unlock()

	if upd.Ended != nil {
		s.accountant.Flush(e.AgentID, upd.EndedChildID, e.At, upd.Ended, snap)
		s.planner.Release(e.AgentID)
	}
	s.broadcastAgent(e.AgentID)

	if !enabled || upd.Session.Parental || upd.ChildID == "" {
		// Parental sessions and unbound agents are tracked, never enforced.
		return
	}

	computer, _ := s.accountant.Advance(e.AgentID, upd.ChildID, e.At, upd.Session, snap)
	s.evaluate(e.AgentID, upd.ChildID, computer, snap, e.At)
}

// onProcessTelemetry ingests a process snapshot, classifies it, and
// evaluates rules and quotas against it.
func (s *Supervisor) onProcessTelemetry(e gateway.Event) {
	var snap models.ProcessSnapshot
	if err := json.Unmarshal(e.Payload, &snap); err != nil {
		s.logger.Warn("Malformed process payload", "agent_id", e.AgentID, "error", err)
		return
	}
	rules.Classify(&snap)

	s.mu.Lock()
	agent, ok := s.agents[e.AgentID]
	if !ok {
		s.mu.Unlock()
		return
	}
	agent.LastSeen = e.At
	agent.Online = true
	enabled := agent.Enabled
	s.lastSnap[e.AgentID] = &snap

	var childID string
	var sess *models.Session
	if agent.CurrentSession != nil {
		sess = agent.CurrentSession
		if !sess.Parental {
			childID = s.tracker.Resolve(agent, sess.Username)
		}
	} else {
		childID = agent.ChildID
	}
	s.mu.Unlock()

	if !enabled || childID == "" {
		return
	}

	computer, _ := s.accountant.Advance(e.AgentID, childID, e.At, sess, &snap)
	s.evaluate(e.AgentID, childID, computer, &snap, e.At)
}

// evaluate runs the rule passes and quota planning for one telemetry
// arrival and commits the combined intent batch.
func (s *Supervisor) evaluate(agentID, childID string, computerCell *models.UsageCell, snap *models.ProcessSnapshot, now time.Time) {
	s.mu.RLock()
	child := s.children[childID]
	focusProfile := s.focus[agentID]
	settings := s.settings
	agent := s.agents[agentID]
	hostname := ""
	if agent != nil {
		hostname = agent.Hostname
	}
	bt, ok := s.bedtimes[agentID]
	s.mu.RUnlock()
	if !ok {
		bt = &rules.BedtimeState{}
		s.mu.Lock()
		s.bedtimes[agentID] = bt
		s.mu.Unlock()
	}

	var intents []models.EnforcementIntent
	if child != nil {
		intents = rules.Evaluate(rules.Input{
			AgentID:      agentID,
			Child:        child,
			Snapshot:     snap,
			Focus:        focusProfile,
			Bedtime:      bt,
			GraceSeconds: settings.GracePeriodSeconds,
			Now:          now,
		})
		if !settings.KillOnViolation {
			intents = dropKills(intents)
		}
	}

	var browsers []models.BrowserInfo
	if snap != nil {
		browsers = snap.Browsers
	}
	intents = append(intents, s.planner.PlanQuota(s.runCtx, planner.QuotaInput{
		AgentID:      agentID,
		Hostname:     hostname,
		ChildID:      childID,
		ComputerCell: computerCell,
		Browsers:     browsers,
		Now:          now,
	})...)

	if len(intents) == 0 {
		return
	}
	s.commit(agentID, hostname, browsers, intents, now)
}

func dropKills(intents []models.EnforcementIntent) []models.EnforcementIntent {
	out := intents[:0]
	for _, in := range intents {
		if in.Kind == models.IntentBlockProcess {
			continue
		}
		out = append(out, in)
	}
	return out
}

// commit hands intents to the planner and mirrors them onto the UI
// channels.
func (s *Supervisor) commit(agentID, hostname string, browsers []models.BrowserInfo, intents []models.EnforcementIntent, now time.Time) {
	s.planner.Commit(s.runCtx, planner.CommitInput{
		AgentID:  agentID,
		Hostname: hostname,
		Browsers: browsers,
		Intents:  intents,
		Now:      now,
	})

	for _, intent := range intents {
		switch intent.Kind {
		case models.IntentWarning:
			switch intent.Scope {
			case models.WarnBedtime:
				s.broadcast(ChannelBedtimeWarning, intent)
			case models.WarnComputer, models.WarnInternet:
				s.broadcast(ChannelQuotaWarning, intent)
			}
		case models.IntentBlockProcess:
			s.broadcast(ChannelBlockedProcess, intent)
		case models.IntentLogout:
			if strings.Contains(intent.Reason, "bedtime") {
				s.broadcast(ChannelBedtimeWarning, intent)
			} else {
				s.broadcast(ChannelQuotaExhausted, intent)
			}
		case models.IntentBlockBrowsers:
			s.broadcast(ChannelQuotaExhausted, intent)
		}
	}
}

// routeIntent re-enters a timer-fired intent through the agent's loop.
// Timer-fired warnings are deduped against the day's fired set here.
func (s *Supervisor) routeIntent(intent models.EnforcementIntent) {
	agentID := intent.AgentID
	s.enqueue(agentID, classOther, func() {
		s.mu.RLock()
		agent := s.agents[agentID]
		hostname := ""
		var childID string
		if agent != nil {
			hostname = agent.Hostname
			if agent.CurrentSession != nil && !agent.CurrentSession.Parental {
				childID = s.tracker.Resolve(agent, agent.CurrentSession.Username)
			} else if agent.CurrentSession == nil {
				childID = agent.ChildID
			}
		}
		snap := s.lastSnap[agentID]
		s.mu.RUnlock()

		if agent == nil || childID == "" {
			return
		}

		if intent.Kind == models.IntentWarning && intent.MinutesRemaining > 0 {
			cell := s.accountant.Cell(agentID, childID, models.ActivityComputer, time.Now())
			if !cell.FireWarning(intent.MinutesRemaining) {
				return
			}
		}

		var browsers []models.BrowserInfo
		if snap != nil {
			browsers = snap.Browsers
		}
		s.commit(agentID, hostname, browsers, []models.EnforcementIntent{intent}, time.Now())
	})
}

// onActionResult settles planner and dispatcher state and journals
// failures. Kill confirmations become process_killed violations here, once
// the agent reports the kill actually succeeded.
func (s *Supervisor) onActionResult(e gateway.Event) {
	s.planner.OnActionResult(e.AgentID, e.ActionID, e.Success)
	s.dispatcher.OnActionResult(e.AgentID, e.ActionID, e.RequestID, e.Success, e.At)
	if !e.Success {
		s.logger.Warn("Agent action failed",
			"agent_id", e.AgentID, "action_id", e.ActionID, "error", e.Error)
		s.journal.AddViolation(models.Violation{
			Kind:      models.ViolationActionFailed,
			AgentID:   e.AgentID,
			Hostname:  s.hostnameOf(e.AgentID),
			Reason:    e.ActionID + ": " + e.Error,
			Timestamp: e.At,
		})
	}
}

func (s *Supervisor) onOnline(e gateway.Event) {
	s.mu.Lock()
	agent, ok := s.agents[e.AgentID]
	var childID string
	if ok {
		agent.Online = true
		agent.LastSeen = e.At
		childID = agent.ChildID
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	// Returning agents re-evaluate from a fresh verdict.
	if childID != "" && s.invalidator != nil {
		s.invalidator.Invalidate(childID)
	}
	s.journal.AddActivity(models.ActivityEvent{
		Kind: "agent_online", AgentID: e.AgentID,
		Message: "agent back online", Timestamp: e.At,
	})
	s.broadcastAgent(e.AgentID)
}

// onOffline flags the agent and cancels every pending timer for it.
func (s *Supervisor) onOffline(e gateway.Event) {
	s.mu.Lock()
	agent, ok := s.agents[e.AgentID]
	if ok {
		agent.Online = false
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.planner.Release(e.AgentID)
	s.journal.AddActivity(models.ActivityEvent{
		Kind: "agent_offline", AgentID: e.AgentID,
		Message: "agent went offline", Timestamp: e.At,
	})
	s.broadcastAgent(e.AgentID)
}

// OnOracleStateChange reacts to an oracle push for one child: cached
// verdicts are already invalidated by the feed; pending enforcement for
// every agent bound to the child is cancelled and its warning slate
// cleared, so the next telemetry re-evaluates from scratch.
func (s *Supervisor) OnOracleStateChange(childID string) {
	s.mu.RLock()
	var affected []string
	for id, agent := range s.agents {
		bound := agent.ChildID == childID
		if !bound && agent.CurrentSession != nil {
			bound = s.tracker.Resolve(agent, agent.CurrentSession.Username) == childID
		}
		if bound {
			affected = append(affected, id)
		}
	}
	s.mu.RUnlock()

	for _, agentID := range affected {
		id := agentID
		s.enqueue(id, classOther, func() {
			s.planner.OnStateChange(id)
			// A new grant re-arms the ladder from scratch.
			for _, activity := range []models.ActivityKind{models.ActivityComputer, models.ActivityInternet} {
				cell := s.accountant.Cell(id, childID, activity, time.Now())
				cell.WarningsFired = nil
			}
			s.logger.Info("Oracle state change applied",
				"agent_id", id, "child_id", childID)
		})
	}
}

func (s *Supervisor) hostnameOf(agentID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.agents[agentID]; ok {
		return a.Hostname
	}
	return ""
}

func (s *Supervisor) broadcastAgent(agentID string) {
	s.mu.RLock()
	agent, ok := s.agents[agentID]
	var clone *models.Agent
	if ok {
		clone = agent.Clone()
	}
	s.mu.RUnlock()
	if ok {
		s.broadcast(ChannelSessionUpdate, clone)
	}
}

// persist writes the state blob. Failures are logged; the supervisor keeps
// running on its in-memory state.
func (s *Supervisor) persist() {
	if s.store == nil {
		return
	}

	state := store.Empty()
	s.mu.RLock()
	for id, a := range s.agents {
		state.Agents[id] = a.Clone()
	}
	for id, c := range s.children {
		state.Children[id] = c.Clone()
	}
	state.Settings = s.settings
	s.mu.RUnlock()

	state.UserMappings = s.tracker.Mappings()
	state.ParentAccounts = s.tracker.ParentAccounts()

	violations, activity := s.journal.Snapshot()
	state.Violations = violations
	state.ActivityLog = activity

	if err := s.store.Save(state); err != nil {
		s.logger.Error("Failed to persist state", "error", err)
		return
	}
	// Save stamps the blob's write time.
	s.mu.Lock()
	s.lastSync = state.LastSync
	s.mu.Unlock()
}

// Agents returns point-in-time clones of all agents, ordered by hostname.
func (s *Supervisor) Agents() []*models.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hostname != out[j].Hostname {
			return out[i].Hostname < out[j].Hostname
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Agent returns a clone of one agent.
func (s *Supervisor) Agent(agentID string) (*models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[agentID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return a.Clone(), nil
}

// Children returns clones of all child configurations.
func (s *Supervisor) Children() []*models.ChildConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ChildConfig, 0, len(s.children))
	for _, c := range s.children {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Child returns a clone of one child configuration.
func (s *Supervisor) Child(childID string) (*models.ChildConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.children[childID]
	if !ok {
		return nil, ErrChildNotFound
	}
	return c.Clone(), nil
}

// Settings returns the current runtime settings.
func (s *Supervisor) Settings() config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Usage returns today's accumulated seconds for an agent/child activity.
func (s *Supervisor) Usage(agentID, childID string, activity models.ActivityKind) int64 {
	return s.accountant.Accumulated(agentID, childID, activity)
}

// recentViolationLimit caps the violation list embedded in a status report.
const recentViolationLimit = 10

// Status summarizes the supervisor for the dashboard's status surface.
type Status struct {
	Running          bool               `json:"running"`
	AgentCount       int                `json:"agent_count"`
	OnlineAgents     int                `json:"online_agents"`
	ChildCount       int                `json:"child_count"`
	RecentViolations []models.Violation `json:"recent_violations"`
	Settings         config.Settings    `json:"settings"`
	LastSync         time.Time          `json:"last_sync"`
}

// Status reports a point-in-time summary: counts, the newest violations,
// the current settings, and when state was last persisted.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	st := Status{
		Running:    s.started,
		AgentCount: len(s.agents),
		ChildCount: len(s.children),
		Settings:   s.settings,
		LastSync:   s.lastSync,
	}
	for _, a := range s.agents {
		if a.Online {
			st.OnlineAgents++
		}
	}
	s.mu.RUnlock()

	st.RecentViolations = s.journal.Violations(recentViolationLimit)
	return st
}

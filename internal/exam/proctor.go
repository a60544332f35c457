package exam

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stemsi/exstem-quiz/internal/model"
)

// SignalKind is a raw page event forwarded by the exam client.
type SignalKind string

const (
	SignalVisibilityHidden  SignalKind = "visibility_hidden"
	SignalVisibilityVisible SignalKind = "visibility_visible"
	SignalCopy              SignalKind = "copy"
	SignalCut               SignalKind = "cut"
	SignalPaste             SignalKind = "paste"
	SignalContextMenu       SignalKind = "context_menu"
	SignalKeyDown           SignalKind = "key_down"
	SignalKeyUp             SignalKind = "key_up"
)

// Signal is one page event. Key and the modifier flags are only set for
// keyboard events.
type Signal struct {
	Kind  SignalKind `json:"kind" binding:"required,oneof=visibility_hidden visibility_visible copy cut paste context_menu key_down key_up"`
	Key   string     `json:"key,omitempty" binding:"omitempty,max=32"`
	Ctrl  bool       `json:"ctrl,omitempty"`
	Alt   bool       `json:"alt,omitempty"`
	Meta  bool       `json:"meta,omitempty"`
	Shift bool       `json:"shift,omitempty"`
}

// Decision tells the client how to treat the event that produced a signal.
type Decision struct {
	Suppress       bool                `json:"suppress"`
	ClearClipboard bool                `json:"clear_clipboard,omitempty"`
	Violation      model.ViolationKind `json:"violation,omitempty"`
}

// EscalationLevel is the severity of an escalation.
type EscalationLevel string

const (
	LevelWarn       EscalationLevel = "warn"
	LevelDisqualify EscalationLevel = "disqualify"
)

// Escalation is emitted on the monitor's stream for each counted violation.
type Escalation struct {
	Level     EscalationLevel
	Kind      model.ViolationKind
	Count     int
	Threshold int
	Message   string
	At        time.Time
}

// Monitor classifies page signals and escalates violations according to a
// security profile. It is inert until armed.
type Monitor struct {
	clock Clock

	mu      sync.Mutex
	armed   bool
	tripped bool
	profile model.SecurityProfile
	blocked map[string]struct{}
	strikes int
	events  chan Escalation
}

// NewMonitor returns a disarmed monitor.
func NewMonitor(clock Clock) *Monitor {
	if clock == nil {
		clock = SystemClock
	}
	return &Monitor{clock: clock}
}

// Arm starts monitoring with profile and returns the escalation stream. The
// stream is closed by Disarm. After a disqualify escalation nothing else is
// emitted.
func (m *Monitor) Arm(profile model.SecurityProfile) (<-chan Escalation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.armed {
		return nil, ErrMonitorArmed
	}
	if profile.StrikeThreshold <= 0 {
		profile.StrikeThreshold = model.DefaultStrikeThreshold
	}

	m.profile = profile
	m.blocked = make(map[string]struct{}, len(profile.BlockedKeys))
	for _, k := range profile.BlockedKeys {
		m.blocked[strings.ToLower(k)] = struct{}{}
	}
	m.strikes = 0
	m.tripped = false
	// At most StrikeThreshold escalations are ever emitted.
	m.events = make(chan Escalation, profile.StrikeThreshold)
	m.armed = true

	return m.events, nil
}

// Disarm stops monitoring and closes the stream. Safe to call repeatedly.
func (m *Monitor) Disarm() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.armed {
		return
	}
	m.armed = false
	close(m.events)
}

// Armed reports whether the monitor is active.
func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

// Strikes returns the violations counted since the monitor was armed.
func (m *Monitor) Strikes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.strikes
}

// Observe classifies sig. While armed, a violation is counted and escalated
// on the stream; the returned decision says what the client must suppress.
func (m *Monitor) Observe(sig Signal) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.armed {
		return Decision{}
	}

	d := m.classify(sig)
	if d.Violation != "" && !m.tripped {
		m.escalate(d.Violation)
	}
	return d
}

func (m *Monitor) classify(sig Signal) Decision {
	p := m.profile

	switch sig.Kind {
	case SignalVisibilityHidden:
		return Decision{Violation: model.ViolationTabSwitch}

	case SignalCopy, SignalCut, SignalPaste:
		d := Decision{Suppress: p.BlockClipboard}
		if p.ReportClipboard {
			d.Violation = model.ViolationClipboard
		}
		return d

	case SignalContextMenu:
		return Decision{Suppress: p.BlockContextMenu}

	case SignalKeyUp:
		if isPrintScreen(sig.Key) {
			return Decision{Suppress: true, ClearClipboard: true, Violation: model.ViolationPrintScreen}
		}

	case SignalKeyDown:
		// PrintScreen is counted on key-up only.
		if isPrintScreen(sig.Key) {
			return Decision{Suppress: true}
		}
		if m.isBlocked(sig) {
			return Decision{Suppress: true, Violation: model.ViolationBlockedKey}
		}
	}

	return Decision{}
}

func (m *Monitor) isBlocked(sig Signal) bool {
	if _, ok := m.blocked[strings.ToLower(sig.Key)]; ok {
		return true
	}
	if m.profile.BlockModifierCombos && (sig.Ctrl || sig.Alt || sig.Meta) {
		return !isModifierKey(sig.Key)
	}
	return false
}

func (m *Monitor) escalate(kind model.ViolationKind) {
	m.strikes++
	threshold := m.profile.StrikeThreshold

	esc := Escalation{
		Kind:      kind,
		Count:     m.strikes,
		Threshold: threshold,
		At:        m.clock.Now(),
	}

	switch {
	case m.profile.IsImmediate(kind):
		esc.Level = LevelDisqualify
		esc.Message = fmt.Sprintf("Disqualified for %s during the exam", kind.Label())
	case m.strikes >= threshold:
		esc.Level = LevelDisqualify
		esc.Message = fmt.Sprintf("Disqualified after %d violations (last: %s)", m.strikes, kind.Label())
	default:
		esc.Level = LevelWarn
		esc.Message = fmt.Sprintf("Warning %d/%d: %s is not allowed", m.strikes, threshold, kind.Label())
	}

	if esc.Level == LevelDisqualify {
		m.tripped = true
	}

	select {
	case m.events <- esc:
	default:
	}
}

func isPrintScreen(key string) bool {
	return strings.EqualFold(key, "PrintScreen") || strings.EqualFold(key, "PrtSc")
}

func isModifierKey(key string) bool {
	switch strings.ToLower(key) {
	case "control", "alt", "altgraph", "meta", "os", "shift":
		return true
	}
	return false
}

package model

import "strings"

// EscalationMode selects how violations turn into disqualification.
type EscalationMode string

const (
	// EscalationStrikes warns on each violation and disqualifies once the
	// count reaches the threshold.
	EscalationStrikes EscalationMode = "strikes"
	// EscalationImmediate disqualifies on the first violation of a hard kind.
	// Other kinds still count as strikes.
	EscalationImmediate EscalationMode = "immediate"
)

// DefaultStrikeThreshold is the number of violations that disqualifies a
// candidate under the strikes policy.
const DefaultStrikeThreshold = 3

// ViolationKind classifies a proctoring violation.
type ViolationKind string

const (
	ViolationTabSwitch   ViolationKind = "tab_switch"
	ViolationBlockedKey  ViolationKind = "blocked_key"
	ViolationPrintScreen ViolationKind = "print_screen"
	ViolationClipboard   ViolationKind = "clipboard"
)

// Label is a human readable name used in warnings and reasons.
func (k ViolationKind) Label() string {
	switch k {
	case ViolationTabSwitch:
		return "switching tabs or windows"
	case ViolationBlockedKey:
		return "using a blocked key"
	case ViolationPrintScreen:
		return "taking a screenshot"
	case ViolationClipboard:
		return "using the clipboard"
	default:
		return strings.ReplaceAll(string(k), "_", " ")
	}
}

// SecurityProfile configures proctoring for a quiz.
type SecurityProfile struct {
	Mode                EscalationMode  `json:"mode" yaml:"mode" binding:"omitempty,oneof=strikes immediate"`
	StrikeThreshold     int             `json:"strike_threshold" yaml:"strike_threshold" binding:"omitempty,min=1,max=20"`
	ImmediateKinds      []ViolationKind `json:"immediate_kinds,omitempty" yaml:"immediate_kinds"`
	BlockedKeys         []string        `json:"blocked_keys" yaml:"blocked_keys"`
	BlockModifierCombos bool            `json:"block_modifier_combos" yaml:"block_modifier_combos"`
	BlockClipboard      bool            `json:"block_clipboard" yaml:"block_clipboard"`
	BlockContextMenu    bool            `json:"block_context_menu" yaml:"block_context_menu"`
	ReportClipboard     bool            `json:"report_clipboard" yaml:"report_clipboard"`
}

// DefaultBlockedKeys are the function and navigation keys suppressed during
// an exam.
var DefaultBlockedKeys = []string{
	"F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10", "F11", "F12",
	"Escape", "Home", "End", "PageUp", "PageDown",
	"BrowserBack", "BrowserForward", "BrowserRefresh",
}

// DefaultSecurityProfile returns the profile used by a track when a quiz
// does not carry its own. Official quizzes disqualify on the first tab switch.
func DefaultSecurityProfile(track Track) SecurityProfile {
	p := SecurityProfile{
		Mode:                EscalationStrikes,
		StrikeThreshold:     DefaultStrikeThreshold,
		BlockedKeys:         append([]string(nil), DefaultBlockedKeys...),
		BlockModifierCombos: true,
		BlockClipboard:      true,
		BlockContextMenu:    true,
	}
	if track == TrackOfficial {
		p.Mode = EscalationImmediate
		p.ImmediateKinds = []ViolationKind{ViolationTabSwitch}
	}
	return p
}

// Normalize fills unset fields from the track default.
func (p SecurityProfile) Normalize(track Track) SecurityProfile {
	def := DefaultSecurityProfile(track)
	if p.Mode == "" {
		p.Mode = def.Mode
	}
	if p.StrikeThreshold <= 0 {
		p.StrikeThreshold = def.StrikeThreshold
	}
	if p.Mode == EscalationImmediate && len(p.ImmediateKinds) == 0 {
		p.ImmediateKinds = []ViolationKind{ViolationTabSwitch}
	}
	if p.BlockedKeys == nil {
		p.BlockedKeys = def.BlockedKeys
	}
	return p
}

// IsImmediate reports whether kind disqualifies at once under this profile.
func (p SecurityProfile) IsImmediate(kind ViolationKind) bool {
	if p.Mode != EscalationImmediate {
		return false
	}
	for _, k := range p.ImmediateKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ResolveSecurityProfile returns the quiz's own profile or the track default.
func (q *Quiz) ResolveSecurityProfile() SecurityProfile {
	if q.SecurityProfile != nil {
		return q.SecurityProfile.Normalize(q.Track)
	}
	return DefaultSecurityProfile(q.Track)
}

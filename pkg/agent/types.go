package agent

import "strings"

// Type identifies an agent role. The set is closed; selectors that arrive as
// free-form strings (dynamically named developer/lead variants) are mapped
// into it with Resolve.
type Type string

const (
	PM       Type = "PM"
	Arch     Type = "ARCH"
	Research Type = "RESEARCH"
	GD       Type = "GD"
	UIUX     Type = "UIUX"
	CQR      Type = "CQR"
	SR       Type = "SR"
	QE       Type = "QE"
	E2E      Type = "E2E"
	TQR      Type = "TQR"
	DOE      Type = "DOE"
	// Dynamic variants created at runtime
	TLPython      Type = "TL_PYTHON"
	TLJavaScript  Type = "TL_JAVASCRIPT"
	DevPython     Type = "DEV_PYTHON"
	DevJavaScript Type = "DEV_JAVASCRIPT"
)

// ModelTier selects a model pricing/capability class.
type ModelTier string

const (
	TierHaiku  ModelTier = "haiku"
	TierSonnet ModelTier = "sonnet"
	TierOpus   ModelTier = "opus"
)

var knownTypes = map[Type]bool{
	PM: true, Arch: true, Research: true, GD: true, UIUX: true,
	CQR: true, SR: true, QE: true, E2E: true, TQR: true, DOE: true,
	TLPython: true, TLJavaScript: true, DevPython: true, DevJavaScript: true,
}

// Resolve maps an executor-type selector to a known agent type. Unknown
// selectors fall back by prefix: DEV_* resolves to DevPython, TL_* to
// TLPython, everything else to PM. The fallback is deliberately lenient;
// tasks created by agents may carry language-specific variants that are not
// registered.
func Resolve(selector string) Type {
	t := Type(selector)
	if knownTypes[t] {
		return t
	}
	switch {
	case strings.HasPrefix(selector, "DEV_"):
		return DevPython
	case strings.HasPrefix(selector, "TL_"):
		return TLPython
	default:
		return PM
	}
}

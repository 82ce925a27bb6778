package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a
// user-supplied search fragment.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Fragment    string // The fragment that was checked
}

// CheckFragmentForInjection uses libinjection to detect SQL injection
// patterns in a text fragment before it is interpolated into LIKE probes.
// Value-search fragments come from user questions via the LLM, so they are
// screened even though the probes themselves are parameterized.
//
// Returns nil if no injection is detected.
func CheckFragmentForInjection(fragment string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(fragment)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Fragment:    fragment,
	}
}

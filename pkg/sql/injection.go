package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on an
// identifier destined for statement interpolation.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Identifier  string // The identifier that failed the check
}

// CheckIdentifierForInjection uses libinjection to detect SQL injection
// patterns in an identifier. Identifiers come from operator configuration
// rather than end users, but they end up verbatim inside statement text, so
// they get the same screening as any interpolated value.
//
// Returns nil if no injection is detected.
//
// Example:
//
//	// Safe identifier - no injection
//	result := CheckIdentifierForInjection("order_items")
//	// result == nil
//
//	// Injection attempt detected
//	result := CheckIdentifierForInjection("'; DROP TABLE users--")
//	// result.IsSQLi == true
//	// result.Fingerprint == "s&1c" (or similar)
func CheckIdentifierForInjection(identifier string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(identifier)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			Identifier:  identifier,
		}
	}

	return nil
}

// Package capability models the operator permissions injected into the
// capture and registration flows. Visibility of registration actions is
// computed once from this set, never re-derived from role strings at
// render sites.
package capability

// Capability is a single permission bit.
type Capability uint8

const (
	// CapRegister permits registering unknown identifiers.
	CapRegister Capability = 1 << iota
	// CapAnyCompany permits choosing any company as the registration scope.
	// Without it the operator is pre-scoped to their own company.
	CapAnyCompany
)

// Set is a bitmask of capabilities.
type Set uint8

// Has reports whether the set contains the capability.
func (s Set) Has(c Capability) bool {
	return s&Set(c) != 0
}

// With returns a copy of the set with the capability added.
func (s Set) With(c Capability) Set {
	return s | Set(c)
}

// FromRole maps an operator role name from config to a capability set.
// Unknown roles get no capabilities (verification only).
func FromRole(role string) Set {
	switch role {
	case "admin":
		return Set(CapRegister | CapAnyCompany)
	case "agent":
		return Set(CapRegister)
	default:
		return 0
	}
}

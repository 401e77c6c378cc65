/*
resource.go - Account registration and lookup

PURPOSE:
  Provides a registry for domain packages to register their ledger accounts.
  This enables deserialization from storage/JSON back to concrete types
  while maintaining proper encapsulation.

HOW IT WORKS:
  1. Domain packages define their Account implementations
  2. Domain packages register them on init()
  3. Storage uses the registry to reconstruct types

USAGE:
  // In fees/types.go
  func init() {
      generic.RegisterAccount(AccountFees)
  }

  // In storage
  account := generic.LookupAccount("fees")  // returns fees.AccountFees

SEE ALSO:
  - types.go: Account interface definition
  - fees/types.go: Fee account
  - payroll/types.go: Salary account
*/
package generic

import "sync"

// =============================================================================
// ACCOUNT REGISTRY
// =============================================================================

var (
	accountRegistry = make(map[string]Account)
	registryMu      sync.RWMutex
)

// RegisterAccount adds an account to the global registry.
// Call this from domain package init() functions.
func RegisterAccount(a Account) {
	registryMu.Lock()
	defer registryMu.Unlock()
	accountRegistry[a.AccountID()] = a
}

// LookupAccount finds a registered account by ID.
// Returns nil if not found.
func LookupAccount(id string) Account {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return accountRegistry[id]
}

// =============================================================================
// STRING ACCOUNT - For testing and fallback
// =============================================================================

// StringAccount is a simple string-based account.
// Use only for testing or as a fallback when domain types aren't loaded.
type StringAccount struct {
	ID     string
	Domain string
}

func (a StringAccount) AccountID() string     { return a.ID }
func (a StringAccount) AccountDomain() string { return a.Domain }

// GetOrCreateAccount looks up an account, or creates a StringAccount fallback.
func GetOrCreateAccount(id string) Account {
	if a := LookupAccount(id); a != nil {
		return a
	}
	return StringAccount{ID: id, Domain: "unknown"}
}

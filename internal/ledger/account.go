package ledger

import (
	"InsMarket/internal/event"
	"fmt"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeInsurer AccountScope = iota
	AccountScopeInsured
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// Insurer sub-types
	SubTypeCapital AccountSubType = iota

	// Insured sub-types
	SubTypePremiumPaid
	SubTypeRecoveries
	SubTypeUnrecovered

	// External sub-types
	SubTypeExternalCapital
	SubTypeExternalUnfundedClaims
)

var subTypeNames = map[AccountSubType]string{
	SubTypeCapital:                "capital",
	SubTypePremiumPaid:            "premium_paid",
	SubTypeRecoveries:             "recoveries",
	SubTypeUnrecovered:            "unrecovered",
	SubTypeExternalCapital:        "capital_contributions",
	SubTypeExternalUnfundedClaims: "unfunded_claims",
}

// AccountKey is the in-memory key for balance tracking. EntityID is the
// insurer or insured ID and zero for external accounts.
type AccountKey struct {
	Scope    AccountScope
	EntityID uint64
	SubType  AccountSubType
}

func NewInsurerAccountKey(id event.InsurerID, subType AccountSubType) AccountKey {
	return AccountKey{Scope: AccountScopeInsurer, EntityID: uint64(id), SubType: subType}
}

func NewInsuredAccountKey(id event.InsuredID, subType AccountSubType) AccountKey {
	return AccountKey{Scope: AccountScopeInsured, EntityID: uint64(id), SubType: subType}
}

// NewExternalAccountKey creates a key for a boundary account outside the
// market.
func NewExternalAccountKey(subType AccountSubType) AccountKey {
	return AccountKey{Scope: AccountScopeExternal, SubType: subType}
}

// AccountPath returns the string representation for reports and logging
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case AccountScopeInsurer:
		return fmt.Sprintf("insurer:%d:%s", k.EntityID, k.subTypeName())
	case AccountScopeInsured:
		return fmt.Sprintf("insured:%d:%s", k.EntityID, k.subTypeName())
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s", k.subTypeName())
	}
	return "unknown"
}

func (k AccountKey) subTypeName() string {
	if name, ok := subTypeNames[k.SubType]; ok {
		return name
	}
	return "unknown"
}

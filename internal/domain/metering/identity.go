package metering

import (
	"net/netip"
	"strings"

	"github.com/google/uuid"

	"github.com/toolforge/backend/internal/domain/shared"
)

// IdentityKind discriminates how a caller is metered
type IdentityKind string

const (
	IdentityAccount   IdentityKind = "account"
	IdentityAnonymous IdentityKind = "anonymous"
)

// Identity is the metering subject of a request: either an authenticated
// account or a normalized client address. The two kinds never share keys.
type Identity struct {
	kind      IdentityKind
	accountID uuid.UUID
	address   string
}

// AccountIdentity creates an identity for an authenticated account
func AccountIdentity(accountID uuid.UUID) (Identity, error) {
	if accountID == uuid.Nil {
		return Identity{}, shared.ErrIdentityUnavailable
	}
	return Identity{kind: IdentityAccount, accountID: accountID}, nil
}

// AnonymousIdentity creates an identity keyed by a normalized client address
func AnonymousIdentity(rawAddress string) (Identity, error) {
	addr, err := NormalizeAddress(rawAddress)
	if err != nil {
		return Identity{}, err
	}
	return Identity{kind: IdentityAnonymous, address: addr}, nil
}

// ResolveIdentity determines the metering subject for a request.
// An authenticated account always wins; otherwise the client address is
// taken from the proxy headers (first hop of X-Forwarded-For, then
// X-Real-IP). No address and no account means the caller cannot be metered.
func ResolveIdentity(accountID *uuid.UUID, forwardedFor, realIP string) (Identity, error) {
	if accountID != nil {
		return AccountIdentity(*accountID)
	}
	raw := clientAddress(forwardedFor, realIP)
	if raw == "" {
		return Identity{}, shared.ErrIdentityUnavailable
	}
	return AnonymousIdentity(raw)
}

// clientAddress extracts the first-hop client address from proxy headers
func clientAddress(forwardedFor, realIP string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return strings.TrimSpace(realIP)
}

// NormalizeAddress canonicalizes a client address so the same caller always
// maps to the same ledger key: the IPv6 loopback collapses to 127.0.0.1 and
// IPv4-mapped IPv6 addresses are unwrapped to plain IPv4.
func NormalizeAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", shared.ErrIdentityUnavailable
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return "", shared.ErrIdentityUnavailable
	}
	addr = addr.Unmap()
	if addr.IsLoopback() {
		return "127.0.0.1", nil
	}
	return addr.String(), nil
}

// Kind returns the identity kind
func (i Identity) Kind() IdentityKind {
	return i.kind
}

// IsAccount reports whether the identity is an authenticated account
func (i Identity) IsAccount() bool {
	return i.kind == IdentityAccount
}

// AccountID returns the account id for account identities
func (i Identity) AccountID() (uuid.UUID, bool) {
	if i.kind != IdentityAccount {
		return uuid.Nil, false
	}
	return i.accountID, true
}

// Address returns the normalized address for anonymous identities
func (i Identity) Address() (string, bool) {
	if i.kind != IdentityAnonymous {
		return "", false
	}
	return i.address, true
}

// Key returns the ledger key for this identity. Account keys are prefixed
// acct: and address keys ip: so the two spaces never collide.
func (i Identity) Key() string {
	switch i.kind {
	case IdentityAccount:
		return AccountKey(i.accountID)
	case IdentityAnonymous:
		return AnonymousKeyPrefix + i.address
	default:
		return ""
	}
}

// AccountKey returns the ledger key for an account id
func AccountKey(accountID uuid.UUID) string {
	return AccountKeyPrefix + accountID.String()
}

// Ledger key prefixes. Account and address keys never share a prefix.
const (
	AccountKeyPrefix   = "acct:"
	AnonymousKeyPrefix = "ip:"
)

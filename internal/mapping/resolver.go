package mapping

import "context"

// Backend abstracts the mapping lookup for a resolver.
type Backend interface {
	Lookup(ctx context.Context, companyID, clientAccount string, t MovementType) (string, error)
}

// cacheKey memoizes lookups per (type, raw account); the company is
// fixed per resolver instance.
type cacheKey struct {
	Type    MovementType
	Account string
}

// Resolver memoizes mapping lookups for a single processing run. The
// cache is never shared across runs: every reprocessing attempt starts
// cold so it observes mappings created since the previous run.
type Resolver struct {
	companyID string
	backend   Backend
	cache     map[cacheKey]string
}

// NewResolver constructs a Resolver bound to one company and backend.
func NewResolver(companyID string, backend Backend) *Resolver {
	return &Resolver{
		companyID: companyID,
		backend:   backend,
		cache:     make(map[cacheKey]string),
	}
}

// Resolve returns the ledger account code for a raw client account, or
// the empty string when unmapped. The backend is hit at most once per
// (type, account) pair for the lifetime of the resolver.
func (r *Resolver) Resolve(ctx context.Context, rawAccount string, t MovementType) (string, error) {
	key := cacheKey{Type: t, Account: rawAccount}
	if code, ok := r.cache[key]; ok {
		return code, nil
	}
	code, err := r.backend.Lookup(ctx, r.companyID, rawAccount, t)
	if err != nil {
		return "", err
	}
	r.cache[key] = code
	return code, nil
}

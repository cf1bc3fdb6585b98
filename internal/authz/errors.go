package authz

import "errors"

// Failure classes of the authorization core. Handlers map these onto HTTP
// responses. ErrNotFound covers both true absence and cross-tenant access:
// the two must stay indistinguishable to the caller so existence in another
// tenant can never be probed.
var (
	ErrNotFound      = errors.New("not found")
	ErrLimitExceeded = errors.New("plan limit exceeded")
)

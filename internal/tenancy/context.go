package tenancy

import "context"

type ctxKey string

const businessKey ctxKey = "concierge.business_id"

// WithBusinessID stores the business id in context.
func WithBusinessID(ctx context.Context, businessID string) context.Context {
	return context.WithValue(ctx, businessKey, businessID)
}

// BusinessIDFromContext extracts the business id if present.
func BusinessIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(businessKey)
	if val == nil {
		return "", false
	}
	businessID, ok := val.(string)
	return businessID, ok && businessID != ""
}

// Allowed reports whether the context's tenant scope permits access to the
// given business. An unscoped context allows everything.
func Allowed(ctx context.Context, businessID string) bool {
	scope, ok := BusinessIDFromContext(ctx)
	if !ok {
		return true
	}
	return scope == businessID
}

package actorhost

import "context"

type correlationKey struct{}

// WithCorrelation stamps the correlation id of the current request onto
// the context so every turn it touches can log and enforce it.
func WithCorrelation(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, correlationID)
}

// CorrelationFrom returns the correlation id on the context, if any.
func CorrelationFrom(ctx context.Context) string {
	if v, ok := ctx.Value(correlationKey{}).(string); ok {
		return v
	}
	return ""
}

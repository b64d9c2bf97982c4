package h1x

import "context"

type ctxKey int

const (
	ctxKeyExchangeID ctxKey = iota
	ctxKeyCorrelationID
)

// WithExchangeID returns a new context that carries an exchange ID.
// Serve contexts created by the engine always carry one.
func WithExchangeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyExchangeID, id)
}

// ExchangeIDFrom extracts the exchange ID from ctx.
func ExchangeIDFrom(ctx context.Context) (string, bool) {
	v := ctx.Value(ctxKeyExchangeID)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// WithCorrelationID returns a new context that carries a correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}

// CorrelationIDFrom extracts the correlation ID from ctx.
func CorrelationIDFrom(ctx context.Context) (string, bool) {
	v := ctx.Value(ctxKeyCorrelationID)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

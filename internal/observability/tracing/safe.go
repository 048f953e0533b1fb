package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// ExtractContext pulls remote span context and baggage from the carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if carrier == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// Span attributes that may carry credentials or user input are never exported.
var blockedAttributeKeys = map[attribute.Key]struct{}{
	"captcha.token":       {},
	"http.request.body":   {},
	"http.request.header": {},
	"user.email":          {},
	"user.password":       {},
	"authorization":       {},
}

// SafeAttributes drops attributes that could leak secrets or tokens.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

var secretMarkers = []string{"token", "password", "secret", "bearer", "apikey", "api_key"}

// SafeError returns err unless its message looks like it carries a secret,
// in which case a redacted error is returned instead.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	message := strings.ToLower(err.Error())
	for _, marker := range secretMarkers {
		if strings.Contains(message, marker) {
			return errors.New("redacted error")
		}
	}
	return err
}

package collector

import (
	"context"
	"time"
)

// Session is one authenticated connection to the appliance. Request issues a
// single logical query and returns its decoded payload; it fails with a
// connection error when the appliance is unreachable. Alive reports whether
// the connection is still usable.
type Session interface {
	Request(ctx context.Context, req string, params map[string]any) (map[string]any, error)
	Alive() bool
	Close() error
}

// Dialer produces authenticated sessions. The exporter redials through it
// whenever the current session dies.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// timeoutSession decorates a Session so every query carries its own
// deadline, independent of the cycle context.
type timeoutSession struct {
	Session
	timeout time.Duration
}

func (s timeoutSession) Request(ctx context.Context, req string, params map[string]any) (map[string]any, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.Session.Request(ctx, req, params)
}

// payloadData extracts the logical data of a response: the "data" field when
// present, the payload itself otherwise.
func payloadData(payload map[string]any) (any, bool) {
	if payload == nil {
		return nil, false
	}
	if data, ok := payload["data"]; ok {
		return data, true
	}
	return payload, true
}

// listField returns m[key] when it is a list.
func listField(m map[string]any, key string) ([]any, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	return list, ok
}

// mapField returns m[key] when it is a nested map.
func mapField(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	nested, ok := v.(map[string]any)
	return nested, ok
}

// Package logger defines the minimal structured logging interface shared by
// every other internal package, so they depend on an interface rather than
// directly on zap.
package logger

import "dhtresearch/internal/domain"

// Field is a structured key:value pair.
type Field struct {
	Key string
	Val any
}

// Logger is the minimal interface required by the rest of internal/.
type Logger interface {
	Named(name string) Logger
	With(fields ...Field) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// F builds a Field concisely.
func F(key string, val any) Field { return Field{Key: key, Val: val} }

// FNode renders a domain.NodeRef as a structured field.
func FNode(key string, n domain.NodeRef) Field {
	return Field{
		Key: key,
		Val: map[string]any{
			"id":   n.ID.String(),
			"addr": n.Addr,
		},
	}
}

// FRecord renders a domain.Record as a structured field.
func FRecord(key string, r domain.Record) Field {
	return Field{
		Key: key,
		Val: map[string]any{
			"country_key": r.CountryKey.String(),
			"country":     r.Country,
		},
	}
}

// NopLogger is a Logger implementation that discards everything.
type NopLogger struct{}

func (l *NopLogger) Named(name string) Logger          { return l }
func (l *NopLogger) With(fields ...Field) Logger       { return l }
func (l *NopLogger) Debug(msg string, fields ...Field) {}
func (l *NopLogger) Info(msg string, fields ...Field)  {}
func (l *NopLogger) Warn(msg string, fields ...Field)  {}
func (l *NopLogger) Error(msg string, fields ...Field) {}

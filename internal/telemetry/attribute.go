package telemetry

import (
	"dhtresearch/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// IdAttributes renders id as both its hex form and decimal value under
// prefix, for span/resource attributes.
func IdAttributes(prefix string, id domain.ID) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(prefix+".hex", id.String()),
		attribute.Int64(prefix+".dec", int64(id)),
	}
}

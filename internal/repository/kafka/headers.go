package kafka

import (
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

var _ propagation.TextMapCarrier = (*headers)(nil)

// headers exposes kafka message headers to the otel propagator.
// Set replaces an existing key instead of appending a duplicate.
type headers struct{ hs *[]kafka.Header }

func (h headers) Get(key string) string {
	for _, x := range *h.hs {
		if x.Key == key {
			return string(x.Value)
		}
	}
	return ""
}

func (h headers) Set(key, value string) {
	for i := range *h.hs {
		if (*h.hs)[i].Key == key {
			(*h.hs)[i].Value = []byte(value)
			return
		}
	}
	*h.hs = append(*h.hs, kafka.Header{Key: key, Value: []byte(value)})
}

func (h headers) Keys() []string {
	ks := make([]string, 0, len(*h.hs))
	for _, x := range *h.hs {
		ks = append(ks, x.Key)
	}
	return ks
}

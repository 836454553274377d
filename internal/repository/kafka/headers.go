package kafka

import (
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

// headerCarrier lets the OTel propagator read and write kafka message headers
// in place. Set replaces an existing key instead of appending a duplicate.
type headerCarrier struct {
	h *[]kafka.Header
}

var _ propagation.TextMapCarrier = headerCarrier{}

func carrierFor(h *[]kafka.Header) headerCarrier { return headerCarrier{h: h} }

func (c headerCarrier) Get(key string) string {
	for _, x := range *c.h {
		if x.Key == key {
			return string(x.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i := range *c.h {
		if (*c.h)[i].Key == key {
			(*c.h)[i].Value = []byte(value)
			return
		}
	}
	*c.h = append(*c.h, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	ks := make([]string, 0, len(*c.h))
	for _, x := range *c.h {
		ks = append(ks, x.Key)
	}
	return ks
}

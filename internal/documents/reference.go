package documents

import (
	"context"
	"fmt"
	"time"
)

// Reference prefixes per document kind, kept short for picking slips.
const (
	receiptPrefix  = "GRN"
	deliveryPrefix = "DO"
)

// CounterPort counts same-day documents for sequence generation.
type CounterPort interface {
	CountByReferencePrefix(ctx context.Context, prefix string) (int, error)
}

// ReferenceGenerator produces date-scoped sequential document references of
// the form PREFIX-YYYYMMDD-NNNN. The count-based sequence can collide under
// concurrent creation; the unique index on reference_number plus the
// caller's retry loop resolves that.
type ReferenceGenerator struct {
	counter CounterPort
	now     func() time.Time
}

// NewReferenceGenerator builds a generator.
func NewReferenceGenerator(counter CounterPort) *ReferenceGenerator {
	return &ReferenceGenerator{counter: counter, now: time.Now}
}

func kindPrefix(kind Kind) (string, error) {
	switch kind {
	case KindReceipt:
		return receiptPrefix, nil
	case KindDelivery:
		return deliveryPrefix, nil
	default:
		return "", ErrInvalidKind
	}
}

// Next returns the next reference for the kind on the current calendar day.
func (g *ReferenceGenerator) Next(ctx context.Context, kind Kind) (string, error) {
	prefix, err := kindPrefix(kind)
	if err != nil {
		return "", err
	}
	day := g.now().UTC().Format("20060102")
	dayPrefix := fmt.Sprintf("%s-%s-", prefix, day)
	count, err := g.counter.CountByReferencePrefix(ctx, dayPrefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", dayPrefix, count+1), nil
}

package documents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticCounter struct {
	counts map[string]int
}

func (c *staticCounter) CountByReferencePrefix(ctx context.Context, prefix string) (int, error) {
	return c.counts[prefix], nil
}

func TestReferenceFormat(t *testing.T) {
	counter := &staticCounter{counts: map[string]int{}}
	gen := NewReferenceGenerator(counter)
	gen.now = func() time.Time { return time.Date(2024, 7, 2, 8, 30, 0, 0, time.UTC) }

	ref, err := gen.Next(context.Background(), KindReceipt)
	require.NoError(t, err)
	require.Equal(t, "GRN-20240702-0001", ref)

	ref, err = gen.Next(context.Background(), KindDelivery)
	require.NoError(t, err)
	require.Equal(t, "DO-20240702-0001", ref)
}

func TestReferenceSequencePerDayAndKind(t *testing.T) {
	counter := &staticCounter{counts: map[string]int{
		"GRN-20240702-": 41,
		"DO-20240702-":  3,
		"GRN-20240703-": 0,
	}}
	gen := NewReferenceGenerator(counter)
	gen.now = func() time.Time { return time.Date(2024, 7, 2, 23, 59, 0, 0, time.UTC) }

	ref, err := gen.Next(context.Background(), KindReceipt)
	require.NoError(t, err)
	require.Equal(t, "GRN-20240702-0042", ref)

	ref, err = gen.Next(context.Background(), KindDelivery)
	require.NoError(t, err)
	require.Equal(t, "DO-20240702-0004", ref)

	// sequence resets with the calendar day
	gen.now = func() time.Time { return time.Date(2024, 7, 3, 0, 1, 0, 0, time.UTC) }
	ref, err = gen.Next(context.Background(), KindReceipt)
	require.NoError(t, err)
	require.Equal(t, "GRN-20240703-0001", ref)
}

func TestReferenceRejectsUnknownKind(t *testing.T) {
	gen := NewReferenceGenerator(&staticCounter{counts: map[string]int{}})
	_, err := gen.Next(context.Background(), Kind("INVOICE"))
	require.ErrorIs(t, err, ErrInvalidKind)
}

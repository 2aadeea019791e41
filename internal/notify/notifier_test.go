package notify

import (
	"context"
	"testing"

	"chocolata/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifier_OrderPlaced(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	order := &domain.Order{
		ID:       uuid.MustParse("12345678-aaaa-bbbb-cccc-1234567890ab"),
		Status:   domain.OrderStatusProcessing,
		Currency: "SEK",
		Shipping: domain.ShippingDetails{Email: "alva@example.com"},
	}
	require.NoError(t, n.OrderPlaced(context.Background(), order))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "alva@example.com", fields["to"])
	assert.Equal(t, "Order Confirmation #12345678", fields["subject"])

	require.NoError(t, n.OrderStatusChanged(context.Background(), order, domain.OrderStatusPending))
	assert.Equal(t, "Order #12345678 is processing", logs.All()[1].ContextMap()["subject"])
}

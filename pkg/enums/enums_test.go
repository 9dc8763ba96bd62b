package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusConfirmed, OrderStatusProcessing, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusProcessing, false},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusRefunded, false},
		{OrderStatusConfirmed, OrderStatusRefunded, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}

	for _, terminal := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded} {
		assert.True(t, terminal.IsTerminal(), terminal)
	}
	assert.False(t, OrderStatusPending.IsTerminal())
}

func TestParseHelpers(t *testing.T) {
	status, err := ParseOrderStatus("SHIPPED")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, status)
	_, err = ParseOrderStatus("shipped_somewhere")
	assert.Error(t, err)

	role, err := ParseRole("finance")
	require.NoError(t, err)
	assert.Equal(t, RoleFinance, role)
	_, err = ParseRole("root")
	assert.Error(t, err)

	action, err := ParseRefundAction(" approve ")
	require.NoError(t, err)
	assert.Equal(t, RefundStatusApproved, action.ResultingStatus())
	assert.Equal(t, RefundStatusRejected, RefundActionReject.ResultingStatus())
	_, err = ParseRefundAction("maybe")
	assert.Error(t, err)

	refundStatus, err := ParseRefundStatus("requested")
	require.NoError(t, err)
	assert.Equal(t, RefundStatusRequested, refundStatus)
}

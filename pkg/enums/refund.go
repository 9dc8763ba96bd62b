package enums

import (
	"fmt"
	"strings"
)

// RefundStatus tracks a refund request through adjudication.
type RefundStatus string

const (
	RefundStatusRequested RefundStatus = "REQUESTED"
	RefundStatusApproved  RefundStatus = "APPROVED"
	RefundStatusRejected  RefundStatus = "REJECTED"
)

var validRefundStatuses = []RefundStatus{
	RefundStatusRequested,
	RefundStatusApproved,
	RefundStatusRejected,
}

// String implements fmt.Stringer.
func (r RefundStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundStatus.
func (r RefundStatus) IsValid() bool {
	for _, candidate := range validRefundStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRefundStatus converts raw input into a RefundStatus.
func ParseRefundStatus(value string) (RefundStatus, error) {
	for _, candidate := range validRefundStatuses {
		if string(candidate) == strings.ToUpper(strings.TrimSpace(value)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund status %q", value)
}

// RefundAction is the adjudication decision on a refund request.
type RefundAction string

const (
	RefundActionApprove RefundAction = "APPROVE"
	RefundActionReject  RefundAction = "REJECT"
)

// IsValid reports whether the value is a known RefundAction.
func (a RefundAction) IsValid() bool {
	return a == RefundActionApprove || a == RefundActionReject
}

// ResultingStatus maps the decision to the refund's terminal status.
func (a RefundAction) ResultingStatus() RefundStatus {
	if a == RefundActionApprove {
		return RefundStatusApproved
	}
	return RefundStatusRejected
}

// ParseRefundAction converts raw input into a RefundAction.
func ParseRefundAction(value string) (RefundAction, error) {
	action := RefundAction(strings.ToUpper(strings.TrimSpace(value)))
	if !action.IsValid() {
		return "", fmt.Errorf("invalid refund action %q", value)
	}
	return action, nil
}

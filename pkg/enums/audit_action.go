package enums

// AuditAction tags an audit log entry.
type AuditAction string

const (
	AuditOrderCreated       AuditAction = "ORDER_CREATED"
	AuditOrderStatusUpdated AuditAction = "ORDER_STATUS_UPDATED"
	AuditPaymentCaptured    AuditAction = "PAYMENT_CAPTURED"
	AuditPaymentFailed      AuditAction = "PAYMENT_SIGNATURE_FAILED"
	AuditRefundRequested    AuditAction = "REFUND_REQUESTED"
	AuditRefundApproved     AuditAction = "REFUND_APPROVED"
	AuditRefundRejected     AuditAction = "REFUND_REJECTED"
	AuditUserRoleAssigned   AuditAction = "USER_ROLE_ASSIGNED"
	AuditUserRoleRemoved    AuditAction = "USER_ROLE_REMOVED"
)

// AuditEntity names the entity type an audit entry refers to.
type AuditEntity string

const (
	AuditEntityOrder   AuditEntity = "Order"
	AuditEntityPayment AuditEntity = "Payment"
	AuditEntityRefund  AuditEntity = "Refund"
	AuditEntityUser    AuditEntity = "User"
)

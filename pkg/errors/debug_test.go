package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestDumpTypedPostgresError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_refunds_order_id", TableName: "refunds", Message: "duplicate key value"}
	err := Wrap(CodeConflict, fmt.Errorf("insert refund: %w", pgErr), "refund exists").WithReason(ReasonRefundAlreadyRequested)

	d := Dump(err)
	require.Equal(t, CodeConflict, d.Code)
	require.Equal(t, ReasonRefundAlreadyRequested, d.Reason)
	require.Len(t, d.Chain, 3)
	require.NotNil(t, d.Store)
	require.Equal(t, "pgx", d.Store.Driver)
	require.Equal(t, "idx_refunds_order_id", d.Store.Constraint)

	fields := d.Fields()
	require.Equal(t, "23505", fields["store_code"])
	require.Equal(t, ReasonRefundAlreadyRequested, fields["error_reason"])
	require.NotContains(t, fields, "store_column")
}

func TestDumpSQLiteConstraint(t *testing.T) {
	err := fmt.Errorf("create order: %w", errors.New("UNIQUE constraint failed: orders.order_number"))

	d := Dump(err)
	require.NotNil(t, d.Store)
	require.Equal(t, "sqlite", d.Store.Driver)
	require.Equal(t, "UNIQUE", d.Store.Code)
	require.Equal(t, "orders", d.Store.Table)
	require.Equal(t, "order_number", d.Store.Column)

	check := Dump(errors.New("CHECK constraint failed: chk_inventory_quantity"))
	require.Equal(t, "CHECK", check.Store.Code)
	require.Equal(t, "chk_inventory_quantity", check.Store.Constraint)
	require.Empty(t, check.Store.Table)
}

func TestDumpPlainError(t *testing.T) {
	d := Dump(errors.New("boom"))
	require.Nil(t, d.Store)
	require.Empty(t, d.Code)
	fields := d.Fields()
	require.Equal(t, map[string]any{"error": "boom"}, fields)

	require.Equal(t, ErrorDump{}, Dump(nil))
}

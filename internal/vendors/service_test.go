package vendors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/testutil"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestForUser(t *testing.T) {
	conn := testutil.OpenDB(t, "vendors_lookup")
	svc, err := NewService(conn)
	require.NoError(t, err)

	owner, vendor := testutil.CreateVendor(t, conn, "Lamp Co")
	got, err := svc.ForUser(context.Background(), nil, owner.ID)
	require.NoError(t, err)
	require.Equal(t, vendor.ID, got.ID)
	require.Equal(t, "Lamp Co", got.StoreName)

	customer := testutil.CreateUser(t, conn, enums.RoleCustomer)
	_, err = svc.ForUser(context.Background(), nil, customer.ID)
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonVendorNotFound))
}

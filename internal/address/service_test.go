package address

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/testutil"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func sampleInput(name string, isDefault bool) Input {
	return Input{
		FullName:   name,
		Phone:      " +91 98765 43210 ",
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "in",
		IsDefault:  isDefault,
	}
}

func TestAddFirstAddressBecomesDefault(t *testing.T) {
	conn := testutil.OpenDB(t, "address_first")
	svc, err := NewService(conn, testutil.Client(conn))
	require.NoError(t, err)
	user := testutil.CreateUser(t, conn)

	view, err := svc.Add(context.Background(), user.ID, sampleInput("Home", false))
	require.NoError(t, err)
	require.True(t, view.IsDefault)
	require.Equal(t, "IN", view.Country)
	require.Equal(t, "+91 98765 43210", view.Phone)
}

func TestAddDefaultUnsetsPreviousDefault(t *testing.T) {
	conn := testutil.OpenDB(t, "address_default")
	svc, err := NewService(conn, testutil.Client(conn))
	require.NoError(t, err)
	user := testutil.CreateUser(t, conn)
	ctx := context.Background()

	home, err := svc.Add(ctx, user.ID, sampleInput("Home", true))
	require.NoError(t, err)
	office, err := svc.Add(ctx, user.ID, sampleInput("Office", true))
	require.NoError(t, err)
	_, err = svc.Add(ctx, user.ID, sampleInput("Parents", false))
	require.NoError(t, err)

	list, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, office.ID, list[0].ID)
	require.True(t, list[0].IsDefault)
	for _, addr := range list[1:] {
		require.False(t, addr.IsDefault)
		if addr.ID == home.ID {
			require.Equal(t, "Home", addr.FullName)
		}
	}
}

func TestAddRejectsIncompleteAddress(t *testing.T) {
	conn := testutil.OpenDB(t, "address_invalid")
	svc, err := NewService(conn, testutil.Client(conn))
	require.NoError(t, err)
	user := testutil.CreateUser(t, conn)

	input := sampleInput("Home", true)
	input.City = "  "
	_, err = svc.Add(context.Background(), user.ID, input)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

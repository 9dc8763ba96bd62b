package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubOrders struct {
	data map[string]interface{}
	resp map[string]interface{}
	err  error
}

func (s *stubOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	s.data = data
	return s.resp, s.err
}

func TestCreateOrderSendsAuthenticatedRequest(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.True(t, strings.HasSuffix(r.URL.Path, "/orders"))
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "rzp_key", user)
		require.Equal(t, "rzp_secret", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_ABC","amount":28600,"currency":"INR","receipt":"ORD-1","status":"created"}`))
	}))
	defer server.Close()

	client, err := NewClient("rzp_key", "rzp_secret", WithBaseURL(server.URL+"/v1"))
	require.NoError(t, err)

	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		Amount:   28600,
		Currency: "INR",
		Receipt:  "ORD-1",
		Notes:    map[string]string{"orderId": "o-1", "userId": "u-1"},
	})
	require.NoError(t, err)
	require.Equal(t, "order_ABC", order.ID)
	require.EqualValues(t, 28600, order.Amount)
	require.EqualValues(t, 28600, captured["amount"])
	require.Equal(t, "ORD-1", captured["receipt"])
	require.Equal(t, "rzp_key", client.KeyID())
}

func TestCreateOrderMapsFailuresToDependencyErrors(t *testing.T) {
	orders := &stubOrders{err: errors.New("BAD_REQUEST_ERROR: receipt too long")}
	client := &Client{orders: orders, keyID: "k"}

	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 100, Currency: "INR", Receipt: "r"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.EqualValues(t, 100, orders.data["amount"])
	require.NotContains(t, orders.data, "notes")
}

func TestCreateOrderTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := NewClient("k", "s", WithBaseURL(server.URL), WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 100, Currency: "INR", Receipt: "r"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestCreateOrderRejectsMissingID(t *testing.T) {
	client := &Client{orders: &stubOrders{resp: map[string]interface{}{"amount": float64(100)}}, keyID: "k"}

	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 100, Currency: "INR", Receipt: "r"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestCreateOrderValidatesBeforeCalling(t *testing.T) {
	orders := &stubOrders{}
	client := &Client{orders: orders, keyID: "k"}

	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 0, Currency: "INR"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.CreateOrder(ctx, CreateOrderRequest{Amount: 100, Currency: "INR"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.Nil(t, orders.data)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient("", "secret")
	require.Error(t, err)
	_, err = NewClient("key", " ")
	require.Error(t, err)
}

func TestSignerVerify(t *testing.T) {
	signer, err := NewSigner("test_secret")
	require.NoError(t, err)

	sig := signer.Sign("order_1", "pay_1")
	require.Len(t, sig, 64)
	require.True(t, signer.Verify("order_1", "pay_1", sig))
	require.False(t, signer.Verify("order_1", "pay_2", sig))
	last := "0"
	if strings.HasSuffix(sig, "0") {
		last = "1"
	}
	require.False(t, signer.Verify("order_1", "pay_1", sig[:63]+last))
	require.False(t, signer.Verify("order_1", "pay_1", ""))

	var nilSigner *Signer
	require.False(t, nilSigner.Verify("order_1", "pay_1", sig))

	_, err = NewSigner("")
	require.Error(t, err)
}

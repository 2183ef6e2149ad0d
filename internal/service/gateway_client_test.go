package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	c := NewGatewayClient("http://gateway.local", "key_id", "key_secret")

	// HMAC-SHA256("order_ref|pay_ref", "key_secret")
	valid := "56973e3bc6c826b8ca0af1cf29d8fc6fc7293a05289a7584831a8dff7cf5bafb"

	assert.True(t, c.VerifySignature("order_ref", "pay_ref", valid))
	assert.False(t, c.VerifySignature("order_ref", "pay_ref", "tampered"))
	assert.False(t, c.VerifySignature("order_ref", "other_pay", valid))
	assert.False(t, c.VerifySignature("other_order", "pay_ref", valid))
	assert.False(t, c.VerifySignature("order_ref", "pay_ref", ""))
}

func TestRegisterOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_id", user)
		assert.Equal(t, "key_secret", pass)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(3500), req["amount"])
		assert.Equal(t, "INR", req["currency"])
		assert.Equal(t, "receipt-1", req["receipt"])

		json.NewEncoder(w).Encode(map[string]string{"id": "gw_order_42"})
	}))
	defer srv.Close()

	c := NewGatewayClient(srv.URL, "key_id", "key_secret")

	reg, err := c.RegisterOrder(context.Background(), 3500, "INR", "receipt-1")
	require.NoError(t, err)

	assert.Equal(t, "gw_order_42", reg.OrderRef)
	assert.Equal(t, "gw_order_42", reg.Checkout.OrderRef)
	assert.Equal(t, "key_id", reg.Checkout.Key)
	assert.Equal(t, int64(3500), reg.Checkout.Amount)
}

func TestRegisterOrderErrors(t *testing.T) {
	t.Run("gateway rejects", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		c := NewGatewayClient(srv.URL, "key_id", "bad_secret")
		_, err := c.RegisterOrder(context.Background(), 100, "INR", "r1")
		assert.Error(t, err)
	})

	t.Run("missing order id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{})
		}))
		defer srv.Close()

		c := NewGatewayClient(srv.URL, "key_id", "key_secret")
		_, err := c.RegisterOrder(context.Background(), 100, "INR", "r1")
		assert.Error(t, err)
	})
}

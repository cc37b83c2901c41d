package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/imageflow/billing"
	"github.com/BaSui01/imageflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

func postCheckout(h *BillingHandler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.HandleCheckout(w, r)
	return w
}

func checkoutRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/billing/checkout", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestBillingHandler_HandleConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  billing.Config
		want string
	}{
		{"unset", billing.Config{}, `{"mode":"unset","enabled":{"pro":false,"business":false}}`},
		{"api", billing.Config{APIKey: "k"}, `{"mode":"api","enabled":{"pro":false,"business":false}}`},
		{"direct", billing.Config{CheckoutURLPro: "https://pay/p"}, `{"mode":"direct","enabled":{"pro":true,"business":false}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBillingHandler(billing.NewService(tt.cfg), zap.NewNop())
			w := httptest.NewRecorder()
			h.HandleConfig(w, httptest.NewRequest(http.MethodGet, "/api/billing/config", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestBillingHandler_InvalidPlan(t *testing.T) {
	h := NewBillingHandler(billing.NewService(billing.Config{}), nil)

	for _, body := range []string{`{}`, `{"plan":"gold"}`} {
		w := postCheckout(h, checkoutRequest(body))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"message":"invalid_plan"}`, w.Body.String())
	}
}

func TestBillingHandler_NotConfigured(t *testing.T) {
	h := NewBillingHandler(billing.NewService(billing.Config{APIKey: "k"}), nil)

	w := postCheckout(h, checkoutRequest(`{"plan":"pro"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"creem_not_configured"}`, w.Body.String())
}

func TestBillingHandler_DirectURL(t *testing.T) {
	h := NewBillingHandler(billing.NewService(billing.Config{CheckoutURLPro: "https://pay.example/pro"}), nil)

	w := postCheckout(h, checkoutRequest(`{"plan":"pro"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"url":"https://pay.example/pro"}`, w.Body.String())
}

func TestBillingHandler_APICheckoutCarriesIdentityAndOrigin(t *testing.T) {
	var captured string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured = string(body)
		_, _ = io.WriteString(w, `{"url":"https://pay.example/session"}`)
	}))
	defer upstream.Close()

	svc := billing.NewService(billing.Config{APIKey: "k", APIBase: upstream.URL, PriceIDPro: "price_pro"})
	h := NewBillingHandler(svc, zap.NewNop())

	r := checkoutRequest(`{"plan":"pro"}`)
	r.Host = "internal:8080"
	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("X-Forwarded-Host", "app.example")
	r = r.WithContext(types.WithUserEmail(types.WithUserID(r.Context(), "u-9"), "u9@example.com"))

	w := postCheckout(h, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"url":"https://pay.example/session"}`, w.Body.String())
	assert.Equal(t, "https://app.example/pricing?status=success", gjson.Get(captured, "success_url").String())
	assert.Equal(t, "u-9", gjson.Get(captured, "metadata.user_id").String())
	assert.Equal(t, "u9@example.com", gjson.Get(captured, "customer_email").String())
}

func TestBillingHandler_UpstreamRejected(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, "bad key")
	}))
	defer upstream.Close()

	svc := billing.NewService(billing.Config{APIKey: "k", APIBase: upstream.URL, PriceIDBusiness: "price_biz"})
	w := postCheckout(NewBillingHandler(svc, nil), checkoutRequest(`{"plan":"business"}`))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"message":"creem_error_401","detail":"bad key"}`, w.Body.String())
}

func TestBillingHandler_TransportError(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	base := upstream.URL
	upstream.Close()

	svc := billing.NewService(billing.Config{APIKey: "k", APIBase: base, PriceIDPro: "price_pro"})
	w := postCheckout(NewBillingHandler(svc, nil), checkoutRequest(`{"plan":"pro"}`))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, gjson.Get(w.Body.String(), "message").String())
}

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/verdora/storefront/internal/api"
	"github.com/verdora/storefront/internal/cache"
	"github.com/verdora/storefront/internal/domain"
	"github.com/verdora/storefront/internal/service/cart"
	"github.com/verdora/storefront/internal/service/catalog"
	"github.com/verdora/storefront/internal/service/checkout"
	"github.com/verdora/storefront/internal/service/gateway"
	"github.com/verdora/storefront/internal/session"
	"github.com/verdora/storefront/internal/storage/memory"
)

type testEnv struct {
	server   *httptest.Server
	auth     *session.TokenAuth
	gateway  *gateway.MockGateway
	windows  *checkout.CallbackWindows
	payments domain.PaymentRepository
	catalog  *catalog.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	auth := session.NewTokenAuth()
	payments := memory.NewPaymentRepository()
	mockGateway := gateway.NewMockGateway()
	windows := checkout.NewCallbackWindows()

	catalogSvc := catalog.NewService(memory.NewProductRepository(), memory.NewReviewRepository(),
		catalog.WithCache(cache.NewMemory(), time.Minute))

	initiator := checkout.NewInitiator(payments, mockGateway, windows,
		checkout.WithPollInterval(5*time.Millisecond),
		checkout.WithTimeline(memory.NewTimelineRepository()),
	)

	srv := api.NewServer(api.Config{
		Auth:        auth,
		Catalog:     catalogSvc,
		Carts:       cart.NewRegistry(memory.NewCartRepository()),
		Checkout:    initiator,
		Windows:     windows,
		Payments:    payments,
		Timeline:    memory.NewTimelineRepository(),
		Messages:    memory.NewMessageRepository(),
		Idempotency: memory.NewIdempotencyRepository(),
	})

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	return &testEnv{
		server:   ts,
		auth:     auth,
		gateway:  mockGateway,
		windows:  windows,
		payments: payments,
		catalog:  catalogSvc,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (e *testEnv) seedProduct(t *testing.T, name string) domain.Product {
	t.Helper()
	product, err := e.catalog.CreateProduct(context.Background(), domain.Product{Name: name, Category: "plants", PriceMinor: 2500, Stock: 5})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func TestCartEndpointsRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/v1/cart", "", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCartFlow(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "Monstera")
	token := env.auth.Issue("user-1")

	resp := env.do(t, http.MethodPost, "/api/v1/cart/items", token,
		map[string]interface{}{"product_id": product.ID, "quantity": 2}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add item: expected 200, got %d", resp.StatusCode)
	}
	var cartResp struct {
		State string `json:"state"`
		Items []struct {
			ID       string `json:"id"`
			Quantity int32  `json:"quantity"`
		} `json:"items"`
	}
	decodeJSON(t, resp, &cartResp)
	if cartResp.State != "ready" || len(cartResp.Items) != 1 || cartResp.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart: %+v", cartResp)
	}

	// Повторное добавление того же товара увеличивает количество.
	resp = env.do(t, http.MethodPost, "/api/v1/cart/items", token,
		map[string]interface{}{"product_id": product.ID, "quantity": 1}, nil)
	decodeJSON(t, resp, &cartResp)
	if len(cartResp.Items) != 1 || cartResp.Items[0].Quantity != 3 {
		t.Fatalf("expected merged row qty=3, got %+v", cartResp.Items)
	}

	itemID := cartResp.Items[0].ID

	// Нулевое количество игнорируется.
	resp = env.do(t, http.MethodPatch, "/api/v1/cart/items/"+itemID, token,
		map[string]interface{}{"quantity": 0}, nil)
	decodeJSON(t, resp, &cartResp)
	if cartResp.Items[0].Quantity != 3 {
		t.Fatalf("zero-quantity update must be a no-op, got %d", cartResp.Items[0].Quantity)
	}

	resp = env.do(t, http.MethodDelete, "/api/v1/cart/items/"+itemID, token, nil, nil)
	decodeJSON(t, resp, &cartResp)
	if len(cartResp.Items) != 0 {
		t.Fatalf("expected empty cart after removal, got %d items", len(cartResp.Items))
	}
}

func TestCheckoutFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.auth.Issue("user-1")

	resp := env.do(t, http.MethodPost, "/api/v1/checkout", token, map[string]interface{}{
		"amount_minor": 150000,
		"order_id":     "order-1",
		"order_name":   "Order #1",
		"customer":     map[string]string{"name": "Ann", "email": "ann@example.com", "phone": "9800000001"},
	}, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var checkoutResp struct {
		PaymentID     string `json:"payment_id"`
		TransactionID string `json:"transaction_id"`
		RedirectURL   string `json:"redirect_url"`
		WindowBlocked bool   `json:"window_blocked"`
	}
	decodeJSON(t, resp, &checkoutResp)
	if checkoutResp.PaymentID == "" || checkoutResp.RedirectURL == "" || checkoutResp.WindowBlocked {
		t.Fatalf("unexpected checkout response: %+v", checkoutResp)
	}

	// Возврат от шлюза закрывает «окно» и запускает верификацию.
	sessionID := fmt.Sprintf("mock-pidx-%s", checkoutResp.TransactionID)
	resp = env.do(t, http.MethodGet, "/api/v1/payment/callback?pidx="+sessionID, "", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("callback: expected 200, got %d", resp.StatusCode)
	}

	waitForStatus(t, env, checkoutResp.PaymentID, domain.PaymentStatusCompleted)

	// История платежей доступна владельцу.
	resp = env.do(t, http.MethodGet, "/api/v1/payments", token, nil, nil)
	var listResp struct {
		Payments []domain.Payment `json:"payments"`
	}
	decodeJSON(t, resp, &listResp)
	if len(listResp.Payments) != 1 || listResp.Payments[0].Status != domain.PaymentStatusCompleted {
		t.Fatalf("unexpected payment history: %+v", listResp.Payments)
	}

	// Чужой платёж не виден.
	otherToken := env.auth.Issue("user-2")
	resp = env.do(t, http.MethodGet, "/api/v1/payments/"+checkoutResp.PaymentID, otherToken, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign payment, got %d", resp.StatusCode)
	}
}

func TestCheckoutUnauthenticated(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/checkout", "", map[string]interface{}{
		"amount_minor": 150000,
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCheckoutIdempotency(t *testing.T) {
	env := newTestEnv(t)
	token := env.auth.Issue("user-1")

	body := map[string]interface{}{
		"amount_minor": 150000,
		"order_id":     "order-1",
		"order_name":   "Order #1",
	}
	headers := map[string]string{"Idempotency-Key": "key-1"}

	resp := env.do(t, http.MethodPost, "/api/v1/checkout", token, body, headers)
	var first struct {
		PaymentID string `json:"payment_id"`
	}
	decodeJSON(t, resp, &first)

	// Повтор с тем же ключом возвращает сохранённый ответ без нового платежа.
	resp = env.do(t, http.MethodPost, "/api/v1/checkout", token, body, headers)
	var second struct {
		PaymentID string `json:"payment_id"`
	}
	decodeJSON(t, resp, &second)
	if first.PaymentID != second.PaymentID {
		t.Fatalf("idempotent replay created a new payment: %s vs %s", first.PaymentID, second.PaymentID)
	}
	if env.gateway.InitiateCalls != 1 {
		t.Fatalf("expected single gateway initiation, got %d", env.gateway.InitiateCalls)
	}

	// Тот же ключ с другим телом отклоняется.
	other := map[string]interface{}{"amount_minor": 999, "order_id": "order-2", "order_name": "Order #2"}
	resp = env.do(t, http.MethodPost, "/api/v1/checkout", token, other, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on hash mismatch, got %d", resp.StatusCode)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	token := env.auth.Issue("user-1")

	resp := env.do(t, http.MethodPost, "/api/v1/admin/products", token,
		map[string]interface{}{"name": "Fern", "price_minor": 1000}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-admin, got %d", resp.StatusCode)
	}

	env.auth.GrantAdmin("user-1")
	resp = env.do(t, http.MethodPost, "/api/v1/admin/products", token,
		map[string]interface{}{"name": "Fern", "category": "plants", "price_minor": 1000, "stock": 2}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestContactAndAdminMessages(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/contact", "", map[string]string{
		"name": "Bo", "email": "bo@example.com", "body": "Do you ship ferns?",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	admin := env.auth.Issue("admin-1")
	env.auth.GrantAdmin("admin-1")

	resp = env.do(t, http.MethodGet, "/api/v1/admin/messages", admin, nil, nil)
	var listResp struct {
		Messages []domain.Message `json:"messages"`
	}
	decodeJSON(t, resp, &listResp)
	if len(listResp.Messages) != 1 || listResp.Messages[0].Body != "Do you ship ferns?" {
		t.Fatalf("unexpected messages: %+v", listResp.Messages)
	}
}

func TestProductEndpoints(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "Monstera")

	resp := env.do(t, http.MethodGet, "/api/v1/products?category=plants", "", nil, nil)
	var listResp struct {
		Products []domain.Product `json:"products"`
	}
	decodeJSON(t, resp, &listResp)
	if len(listResp.Products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(listResp.Products))
	}

	resp = env.do(t, http.MethodGet, "/api/v1/products/"+product.ID, "", nil, nil)
	var got domain.Product
	decodeJSON(t, resp, &got)
	if got.Name != "Monstera" {
		t.Fatalf("unexpected product: %+v", got)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/products/does-not-exist", "", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestReviewDeletion(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "Fiddle Leaf Fig")

	author := env.auth.Issue("user-1")
	resp := env.do(t, http.MethodPost, "/api/v1/products/"+product.ID+"/reviews", author,
		map[string]interface{}{"rating": 1, "comment": "arrived broken"}, nil)
	var review domain.Review
	decodeJSON(t, resp, &review)

	// Чужой пользователь без прав администратора получает отказ.
	stranger := env.auth.Issue("user-2")
	resp = env.do(t, http.MethodDelete, "/api/v1/reviews/"+review.ID, stranger, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign review, got %d", resp.StatusCode)
	}

	// Администратор удаляет любой отзыв.
	admin := env.auth.Issue("admin-1")
	env.auth.GrantAdmin("admin-1")
	resp = env.do(t, http.MethodDelete, "/api/v1/reviews/"+review.ID, admin, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for admin delete, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/products/"+product.ID+"/reviews", "", nil, nil)
	var listResp struct {
		Reviews []domain.Review `json:"reviews"`
	}
	decodeJSON(t, resp, &listResp)
	if len(listResp.Reviews) != 0 {
		t.Fatalf("expected no reviews after admin delete, got %d", len(listResp.Reviews))
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "Monstera")
	token := env.auth.Issue("user-1")

	resp := env.do(t, http.MethodPost, "/api/v1/cart/items", token,
		map[string]interface{}{"product_id": product.ID, "quantity": 1}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add to cart failed: %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout failed: %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/cart", token, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}

	// Корзина хранится на сервере и переживает выход из аккаунта.
	fresh := env.auth.Issue("user-1")
	resp = env.do(t, http.MethodGet, "/api/v1/cart", fresh, nil, nil)
	var cartResp struct {
		Items []struct {
			ProductID string `json:"product_id"`
		} `json:"items"`
	}
	decodeJSON(t, resp, &cartResp)
	if len(cartResp.Items) != 1 || cartResp.Items[0].ProductID != product.ID {
		t.Fatalf("expected cart to survive logout, got %+v", cartResp.Items)
	}
}

func waitForStatus(t *testing.T, env *testEnv, paymentID string, want domain.PaymentStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		payment, err := env.payments.Get(context.Background(), paymentID)
		if err == nil && payment.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("payment %s did not reach status %s", paymentID, want)
}

package lakehouse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{Host: serverURL, Token: "test-token"}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(ClientConfig{Token: "x"}, zap.NewNop()); err == nil {
		t.Error("expected error for missing host")
	}
	if _, err := NewClient(ClientConfig{Host: "https://example.com"}, zap.NewNop()); err == nil {
		t.Error("expected error for missing credentials")
	}
	if _, err := NewClient(ClientConfig{Host: "https://example.com", ClientID: "id", ClientSecret: "secret"}, zap.NewNop()); err != nil {
		t.Errorf("expected OAuth pair to be accepted, got %v", err)
	}
}

func TestClient_ExecuteStatement(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"statement_id": "stmt-123", "status": {"state": "PENDING"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	handle, err := client.ExecuteStatement(context.Background(), "ANALYZE TABLE sales.orders COMPUTE STATISTICS", "main", "wh-1")
	if err != nil {
		t.Fatalf("ExecuteStatement failed: %v", err)
	}

	if gotPath != "/api/2.0/sql/statements" {
		t.Errorf("path = %q, want %q", gotPath, "/api/2.0/sql/statements")
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotBody["statement"] != "ANALYZE TABLE sales.orders COMPUTE STATISTICS" {
		t.Errorf("statement = %q", gotBody["statement"])
	}
	if gotBody["catalog"] != "main" || gotBody["warehouse_id"] != "wh-1" {
		t.Errorf("catalog/warehouse = %q/%q", gotBody["catalog"], gotBody["warehouse_id"])
	}
	if gotBody["wait_timeout"] != "0s" {
		t.Errorf("wait_timeout = %q, want %q (async submission)", gotBody["wait_timeout"], "0s")
	}

	if handle.ID != "stmt-123" {
		t.Errorf("handle.ID = %q, want %q", handle.ID, "stmt-123")
	}
	if handle.Status.State != StatePending {
		t.Errorf("handle.Status.State = %q, want PENDING", handle.Status.State)
	}
}

func TestClient_ExecuteStatement_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": {"state": "PENDING"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.ExecuteStatement(context.Background(), "SELECT 1", "main", "wh-1")
	if err == nil {
		t.Fatal("expected error for response without statement_id")
	}
	lhErr := AsError(err)
	if lhErr == nil {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if lhErr.Op != "execute-statement" {
		t.Errorf("Op = %q, want %q", lhErr.Op, "execute-statement")
	}
}

func TestClient_GetStatement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/2.0/sql/statements/stmt-9" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"statement_id": "stmt-9",
			"status": {
				"state": "FAILED",
				"error": {"error_code": "DIVIDE_BY_ZERO", "message": "Division by zero"}
			}
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	status, err := client.GetStatement(context.Background(), "stmt-9")
	if err != nil {
		t.Fatalf("GetStatement failed: %v", err)
	}

	if status.State != StateFailed {
		t.Errorf("State = %q, want FAILED", status.State)
	}
	if status.Error == nil {
		t.Fatal("expected error payload")
	}
	if status.Error.Code != "DIVIDE_BY_ZERO" {
		t.Errorf("Code = %q", status.Error.Code)
	}
	if status.Error.Message != "Division by zero" {
		t.Errorf("Message = %q", status.Error.Message)
	}
}

func TestClient_GetTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/2.1/unity-catalog/tables/main.sales.orders" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"name": "orders",
			"catalog_name": "main",
			"schema_name": "sales",
			"columns": [
				{"name": "id", "type_name": "LONG", "position": 0},
				{"name": "amount", "type_name": "DECIMAL", "position": 1}
			],
			"properties": {
				"spark.sql.statistics.numRows": "100",
				"spark.sql.statistics.totalSize": 5000,
				"delta.enableDeletionVectors": true
			}
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	info, err := client.GetTable(context.Background(), "main.sales.orders")
	if err != nil {
		t.Fatalf("GetTable failed: %v", err)
	}

	if info.Name != "orders" || info.CatalogName != "main" || info.SchemaName != "sales" {
		t.Errorf("identity = %s.%s.%s", info.CatalogName, info.SchemaName, info.Name)
	}
	names := info.ColumnNames()
	if len(names) != 2 || names[0] != "id" || names[1] != "amount" {
		t.Errorf("ColumnNames() = %v", names)
	}

	// Property values normalize to strings regardless of JSON type.
	if got := info.Properties["spark.sql.statistics.numRows"]; got != "100" {
		t.Errorf("numRows property = %q", got)
	}
	if got := info.Properties["spark.sql.statistics.totalSize"]; got != "5000" {
		t.Errorf("totalSize property = %q", got)
	}
	if got := info.Properties["delta.enableDeletionVectors"]; got != "true" {
		t.Errorf("boolean property = %q", got)
	}
}

func TestClient_Warehouses(t *testing.T) {
	var startCalled bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/2.0/sql/warehouses/wh-1":
			w.Write([]byte(`{"id": "wh-1", "name": "profiling", "state": "STOPPED"}`))
		case "/api/2.0/sql/warehouses/wh-1/start":
			if r.Method != http.MethodPost {
				t.Errorf("start method = %q", r.Method)
			}
			startCalled = true
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	wh, err := client.GetWarehouse(context.Background(), "wh-1")
	if err != nil {
		t.Fatalf("GetWarehouse failed: %v", err)
	}
	if wh.ID != "wh-1" || wh.State != "STOPPED" {
		t.Errorf("warehouse = %+v", wh)
	}

	if err := client.StartWarehouse(context.Background(), "wh-1"); err != nil {
		t.Fatalf("StartWarehouse failed: %v", err)
	}
	if !startCalled {
		t.Error("start endpoint was not called")
	}
}

func TestClient_RemoteError(t *testing.T) {
	t.Run("structured payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error_code": "TABLE_DOES_NOT_EXIST", "message": "Table 'orders' does not exist."}`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.GetTable(context.Background(), "main.sales.orders")
		if err == nil {
			t.Fatal("expected error")
		}

		lhErr := AsError(err)
		if lhErr == nil {
			t.Fatalf("expected *Error, got %T", err)
		}
		if lhErr.Op != "get-table" {
			t.Errorf("Op = %q", lhErr.Op)
		}
		if lhErr.Code != "TABLE_DOES_NOT_EXIST" {
			t.Errorf("Code = %q", lhErr.Code)
		}
		if lhErr.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d", lhErr.StatusCode)
		}
		if lhErr.Message != "Table 'orders' does not exist." {
			t.Errorf("Message = %q", lhErr.Message)
		}
	})

	t.Run("opaque payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream unavailable"))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.GetWarehouse(context.Background(), "wh-1")
		if err == nil {
			t.Fatal("expected error")
		}

		lhErr := AsError(err)
		if lhErr == nil {
			t.Fatalf("expected *Error, got %T", err)
		}
		if lhErr.StatusCode != http.StatusBadGateway {
			t.Errorf("StatusCode = %d", lhErr.StatusCode)
		}
		if lhErr.Code != "" {
			t.Errorf("Code = %q, want empty for opaque payload", lhErr.Code)
		}
	})
}

func TestOAuthTokenSource_CachesUntilExpiry(t *testing.T) {
	var tokenRequests int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oidc/v1/token" {
			t.Errorf("path = %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			t.Errorf("basic auth = %q/%q ok=%v", user, pass, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		tokenRequests++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "oauth-token", "token_type": "Bearer", "expires_in": 3600}`))
	}))
	defer server.Close()

	source := newOAuthTokenSource(server.URL, "client-id", "client-secret", server.Client())

	for i := 0; i < 3; i++ {
		token, err := source.AccessToken(context.Background())
		if err != nil {
			t.Fatalf("AccessToken failed: %v", err)
		}
		if token != "oauth-token" {
			t.Errorf("token = %q", token)
		}
	}

	if tokenRequests != 1 {
		t.Errorf("token endpoint hit %d times, want 1 (cached)", tokenRequests)
	}
}

func TestTokenExpiry_FallsBackToJWTClaim(t *testing.T) {
	exp := time.Now().Add(42 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}

	got := tokenExpiry(tokenResponse{AccessToken: signed})
	if !got.Equal(exp) {
		t.Errorf("tokenExpiry = %v, want %v (from exp claim)", got, exp)
	}

	// expires_in wins when present.
	before := time.Now().Add(59 * time.Minute)
	got = tokenExpiry(tokenResponse{AccessToken: signed, ExpiresIn: 3600})
	if got.Before(before) {
		t.Errorf("tokenExpiry = %v, want ~1h out", got)
	}

	// Opaque token without expires_in gets the conservative default.
	got = tokenExpiry(tokenResponse{AccessToken: "opaque"})
	if got.Before(time.Now().Add(5*time.Minute)) || got.After(time.Now().Add(15*time.Minute)) {
		t.Errorf("tokenExpiry = %v, want ~10m default", got)
	}
}

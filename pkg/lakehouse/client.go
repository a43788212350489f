package lakehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/lakeprofiler/pkg/jsonutil"
)

// DefaultTimeout is the maximum time to wait for a single API response.
const DefaultTimeout = 30 * time.Second

// asyncWaitTimeout asks the statement API to return immediately after
// accepting the statement instead of blocking on its completion.
const asyncWaitTimeout = "0s"

// ClientConfig configures a lakehouse API client. Token (a personal access
// token) takes precedence over the OAuth client-credentials pair.
type ClientConfig struct {
	Host         string
	Token        string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client talks to the lakehouse SQL-warehouse and catalog APIs. It performs
// no retries: failed calls surface to the caller as they happened.
type Client struct {
	host       string
	httpClient *http.Client
	tokens     tokenSource
	logger     *zap.Logger
}

var (
	_ StatementExecutor = (*Client)(nil)
	_ TableReader       = (*Client)(nil)
	_ WarehouseReader   = (*Client)(nil)
)

// NewClient creates a lakehouse client for the given workspace host.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("lakehouse host is required")
	}
	if _, err := url.Parse(cfg.Host); err != nil {
		return nil, fmt.Errorf("invalid lakehouse host: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	var tokens tokenSource
	switch {
	case cfg.Token != "":
		tokens = &staticTokenSource{token: cfg.Token}
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		tokens = newOAuthTokenSource(cfg.Host, cfg.ClientID, cfg.ClientSecret, httpClient)
	default:
		return nil, fmt.Errorf("lakehouse credentials are required: set a token or an OAuth client id/secret pair")
	}

	return &Client{
		host:       cfg.Host,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger.Named("lakehouse"),
	}, nil
}

type statementResponse struct {
	StatementID string          `json:"statement_id"`
	Status      StatementStatus `json:"status"`
}

// ExecuteStatement submits sql for asynchronous execution. The returned
// handle carries the status reported at accept time, which may already be
// terminal for statements the remote system rejects up front.
func (c *Client) ExecuteStatement(ctx context.Context, sql, catalog, warehouseID string) (*StatementHandle, error) {
	payload := map[string]string{
		"statement":    sql,
		"catalog":      catalog,
		"warehouse_id": warehouseID,
		"wait_timeout": asyncWaitTimeout,
	}

	c.logger.Debug("submitting statement",
		zap.String("catalog", catalog),
		zap.String("warehouse_id", warehouseID))

	var resp statementResponse
	if err := c.doJSON(ctx, "execute-statement", http.MethodPost, payload, &resp, "api", "2.0", "sql", "statements"); err != nil {
		return nil, err
	}
	if resp.StatementID == "" {
		return nil, &Error{Op: "execute-statement", Message: "response missing statement_id"}
	}

	return &StatementHandle{ID: resp.StatementID, Status: resp.Status}, nil
}

// GetStatement fetches the current status of a statement.
func (c *Client) GetStatement(ctx context.Context, statementID string) (StatementStatus, error) {
	var resp statementResponse
	if err := c.doJSON(ctx, "get-statement", http.MethodGet, nil, &resp, "api", "2.0", "sql", "statements", statementID); err != nil {
		return StatementStatus{}, err
	}
	return resp.Status, nil
}

type tableResponse struct {
	Name        string                     `json:"name"`
	CatalogName string                     `json:"catalog_name"`
	SchemaName  string                     `json:"schema_name"`
	Columns     []ColumnInfo               `json:"columns"`
	Properties  map[string]json.RawMessage `json:"properties"`
}

// GetTable fetches the metadata property bag for a fully-qualified table.
func (c *Client) GetTable(ctx context.Context, fullName string) (*TableInfo, error) {
	var resp tableResponse
	if err := c.doJSON(ctx, "get-table", http.MethodGet, nil, &resp, "api", "2.1", "unity-catalog", "tables", fullName); err != nil {
		return nil, err
	}

	return &TableInfo{
		Name:        resp.Name,
		CatalogName: resp.CatalogName,
		SchemaName:  resp.SchemaName,
		Columns:     resp.Columns,
		Properties:  jsonutil.FlexibleStringMap(resp.Properties),
	}, nil
}

// GetWarehouse fetches a SQL warehouse by id.
func (c *Client) GetWarehouse(ctx context.Context, warehouseID string) (*WarehouseInfo, error) {
	var resp WarehouseInfo
	if err := c.doJSON(ctx, "get-warehouse", http.MethodGet, nil, &resp, "api", "2.0", "sql", "warehouses", warehouseID); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartWarehouse issues a start request for a stopped warehouse.
func (c *Client) StartWarehouse(ctx context.Context, warehouseID string) error {
	return c.doJSON(ctx, "start-warehouse", http.MethodPost, struct{}{}, nil, "api", "2.0", "sql", "warehouses", warehouseID, "start")
}

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// doJSON executes one API call: marshal payload, send with auth, decode the
// response into out (when non-nil), and convert non-2xx responses into
// structured errors tagged with op.
func (c *Client) doJSON(ctx context.Context, op, method string, payload, out any, pathSegments ...string) error {
	endpoint, err := buildURL(c.host, pathSegments...)
	if err != nil {
		return fmt.Errorf("%s: build URL: %w", op, err)
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("%s: acquire token: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.remoteError(op, resp.StatusCode, body)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%s: parse response: %w", op, err)
		}
	}
	return nil
}

// remoteError maps a non-2xx API response to a structured *Error, keeping
// the remote error code and message when the payload carries them.
func (c *Client) remoteError(op string, statusCode int, body []byte) error {
	lhErr := &Error{Op: op, StatusCode: statusCode}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		lhErr.Code = errResp.ErrorCode
		lhErr.Message = errResp.Message
	} else {
		lhErr.Message = fmt.Sprintf("remote returned status %d: %s", statusCode, string(body))
	}

	c.logger.Debug("remote call failed",
		zap.String("op", op),
		zap.Int("status", statusCode),
		zap.String("error_code", lhErr.Code))

	return lhErr
}

// buildURL constructs a URL by parsing the base and joining path segments.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)

	return u.String(), nil
}

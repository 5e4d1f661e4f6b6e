package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides typed access to the Wayne resource API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// LoginResponse captures the token payload emitted by the API.
type LoginResponse struct {
	Profile Profile   `json:"profile"`
	Tokens  TokenPair `json:"tokens"`
}

// Profile reflects API profile payloads.
type Profile struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Role       string    `json:"role"`
	Department string    `json:"department"`
	IsDemo     bool      `json:"is_demo"`
	CreatedAt  time.Time `json:"created_at"`
}

// TokenPair includes access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, "", &resp); err != nil {
		return LoginResponse{}, err
	}
	return resp, nil
}

// Logout revokes the session behind token.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, token, nil)
}

// Me returns the caller's profile.
func (c *Client) Me(ctx context.Context, token string) (Profile, error) {
	var resp struct {
		Profile Profile `json:"profile"`
	}
	if err := c.do(ctx, http.MethodGet, "/me", nil, token, &resp); err != nil {
		return Profile{}, err
	}
	return resp.Profile, nil
}

// Resource describes a tracked asset.
type Resource struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	Location     string    `json:"location"`
	SerialNumber string    `json:"serial_number"`
	Description  string    `json:"description"`
	AssignedTo   *string   `json:"assigned_to"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ResourceQuery narrows ListResources.
type ResourceQuery struct {
	Type       string
	Status     string
	AssignedTo string
	Search     string
	Limit      int
}

func (q ResourceQuery) encode() string {
	values := url.Values{}
	set := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			values.Set(key, strings.TrimSpace(value))
		}
	}
	set("type", q.Type)
	set("status", q.Status)
	set("assigned_to", q.AssignedTo)
	set("search", q.Search)
	if q.Limit > 0 {
		values.Set("limit", fmt.Sprint(q.Limit))
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// ListResources returns resources matching q.
func (c *Client) ListResources(ctx context.Context, token string, q ResourceQuery) ([]Resource, error) {
	var resources []Resource
	if err := c.do(ctx, http.MethodGet, "/resources"+q.encode(), nil, token, &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// CreateResourceInput captures the payload for resource creation.
type CreateResourceInput struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Status       string `json:"status,omitempty"`
	Location     string `json:"location,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Description  string `json:"description,omitempty"`
}

// CreateResource registers a new resource.
func (c *Client) CreateResource(ctx context.Context, token string, input CreateResourceInput) (Resource, error) {
	var resource Resource
	if err := c.do(ctx, http.MethodPost, "/resources", input, token, &resource); err != nil {
		return Resource{}, err
	}
	return resource, nil
}

// AssignResource hands the resource to profileID, or unassigns it when profileID is empty.
func (c *Client) AssignResource(ctx context.Context, token, resourceID, profileID string) (Resource, error) {
	body := map[string]*string{"profile_id": nil}
	if strings.TrimSpace(profileID) != "" {
		id := strings.TrimSpace(profileID)
		body["profile_id"] = &id
	}
	path := fmt.Sprintf("/resources/%s/assignee", url.PathEscape(resourceID))
	var resource Resource
	if err := c.do(ctx, http.MethodPut, path, body, token, &resource); err != nil {
		return Resource{}, err
	}
	return resource, nil
}

// DeleteResource removes a resource.
func (c *Client) DeleteResource(ctx context.Context, token, resourceID string) error {
	path := fmt.Sprintf("/resources/%s", url.PathEscape(resourceID))
	return c.do(ctx, http.MethodDelete, path, nil, token, nil)
}

// Alert models an alert payload.
type Alert struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
	Status     string    `json:"status"`
	ResourceID *string   `json:"resource_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListAlerts returns alerts, optionally filtered by status and severity.
func (c *Client) ListAlerts(ctx context.Context, token, status, severity string) ([]Alert, error) {
	values := url.Values{}
	if strings.TrimSpace(status) != "" {
		values.Set("status", strings.TrimSpace(status))
	}
	if strings.TrimSpace(severity) != "" {
		values.Set("severity", strings.TrimSpace(severity))
	}
	path := "/alerts"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}
	var alerts []Alert
	if err := c.do(ctx, http.MethodGet, path, nil, token, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// CreateAlertInput captures the payload for raising an alert.
type CreateAlertInput struct {
	Title      string  `json:"title"`
	Message    string  `json:"message,omitempty"`
	Severity   string  `json:"severity"`
	ResourceID *string `json:"resource_id,omitempty"`
}

// CreateAlert raises a new alert.
func (c *Client) CreateAlert(ctx context.Context, token string, input CreateAlertInput) (Alert, error) {
	var alert Alert
	if err := c.do(ctx, http.MethodPost, "/alerts", input, token, &alert); err != nil {
		return Alert{}, err
	}
	return alert, nil
}

// AcknowledgeAlert marks an open alert as acknowledged.
func (c *Client) AcknowledgeAlert(ctx context.Context, token, alertID string) (Alert, error) {
	return c.alertAction(ctx, token, alertID, "acknowledge")
}

// ResolveAlert closes an alert.
func (c *Client) ResolveAlert(ctx context.Context, token, alertID string) (Alert, error) {
	return c.alertAction(ctx, token, alertID, "resolve")
}

func (c *Client) alertAction(ctx context.Context, token, alertID, action string) (Alert, error) {
	path := fmt.Sprintf("/alerts/%s/%s", url.PathEscape(alertID), action)
	var alert Alert
	if err := c.do(ctx, http.MethodPost, path, nil, token, &alert); err != nil {
		return Alert{}, err
	}
	return alert, nil
}

// DashboardStats mirrors the dashboard summary.
type DashboardStats struct {
	ResourcesByType      map[string]int `json:"resources_by_type"`
	ResourcesByStatus    map[string]int `json:"resources_by_status"`
	OpenAlertsBySeverity map[string]int `json:"open_alerts_by_severity"`
	ProfileCount         int            `json:"profile_count"`
	AccessLogsLast24h    int            `json:"access_logs_last_24h"`
	GeneratedAt          time.Time      `json:"generated_at"`
}

// Stats fetches the dashboard summary.
func (c *Client) Stats(ctx context.Context, token string) (DashboardStats, error) {
	var stats DashboardStats
	if err := c.do(ctx, http.MethodGet, "/dashboard/stats", nil, token, &stats); err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}

// DemoAccount reports the provisioning outcome for one demo account.
type DemoAccount struct {
	Email  string `json:"email"`
	Role   string `json:"role"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// DemoResult summarises a provisioning run.
type DemoResult struct {
	Accounts        []DemoAccount `json:"accounts"`
	SeededResources int           `json:"seeded_resources"`
	SeededAlerts    int           `json:"seeded_alerts"`
}

// ProvisionDemoAccounts creates the demo accounts, optionally with sample data. Admin only.
func (c *Client) ProvisionDemoAccounts(ctx context.Context, token, password string, seed bool) (DemoResult, error) {
	body := map[string]any{
		"password":          password,
		"include_seed_data": seed,
	}
	var result DemoResult
	if err := c.do(ctx, http.MethodPost, "/admin/demo-accounts", body, token, &result); err != nil {
		return DemoResult{}, err
	}
	return result, nil
}

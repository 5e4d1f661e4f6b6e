package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginDecodesTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			return
		}
		assert.Equal(t, "bruce@wayne.test", body["email"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"profile":{"id":"p-1","email":"bruce@wayne.test","role":"admin"},"tokens":{"access_token":"a","refresh_token":"r","expires_in":900,"token_type":"Bearer"}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	resp, err := c.Login(context.Background(), "bruce@wayne.test", "secret")
	require.NoError(t, err)
	assert.Equal(t, "admin", resp.Profile.Role)
	assert.Equal(t, "a", resp.Tokens.AccessToken)
	assert.Equal(t, int64(900), resp.Tokens.ExpiresIn)
}

func TestListResourcesEncodesQueryAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "vehicle", r.URL.Query().Get("type"))
		assert.Equal(t, "bat mobile", r.URL.Query().Get("search"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("status"))
		_, _ = w.Write([]byte(`[{"id":"r-1","name":"Batmobile","type":"vehicle","status":"available"}]`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	resources, err := c.ListResources(context.Background(), "tok", ResourceQuery{Type: "vehicle", Search: " bat mobile ", Limit: 5})
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "Batmobile", resources[0].Name)
}

func TestAssignResourceSendsNullToUnassign(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/resources/r-1/assignee", r.URL.Path)
		var body map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			return
		}
		value, present := body["profile_id"]
		assert.True(t, present)
		assert.Nil(t, value)
		_, _ = w.Write([]byte(`{"id":"r-1","status":"available"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	res, err := c.AssignResource(context.Background(), "tok", "r-1", "")
	require.NoError(t, err)
	assert.Equal(t, "available", res.Status)
}

func TestErrorResponsesBecomeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"you do not have permission to perform this action"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	_, err = c.ProvisionDemoAccounts(context.Background(), "tok", "Batcave#1939", true)
	var apiErr APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Contains(t, apiErr.Message, "permission")
}

func TestNewNormalisesBaseURL(t *testing.T) {
	c, err := New("localhost:4000/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000", c.baseURL)
}

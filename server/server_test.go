package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kash6/SchedulingAgent/gateway"
	"github.com/Kash6/SchedulingAgent/internal/profile"
	"github.com/Kash6/SchedulingAgent/plugin/agent"
	"github.com/Kash6/SchedulingAgent/plugin/lexicon"
	"github.com/Kash6/SchedulingAgent/plugin/memory"
)

var fixedNow = time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *gateway.FakeGateway) {
	t.Helper()
	gw := gateway.NewFakeGateway()
	lex := lexicon.New()
	mem := memory.New(nil, memory.WithNow(func() time.Time { return fixedNow }))
	eng := agent.New(lex, mem, gw,
		agent.WithNow(func() time.Time { return fixedNow }),
		agent.WithUsers([]string{"me@example.com"}))

	prof := &profile.Profile{}
	prof.FromEnv()
	require.NoError(t, prof.Validate())

	return New(eng, prof), gw
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestQuery_CreatesEventAndMintsSession(t *testing.T) {
	s, gw := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/query",
		`{"query": "schedule a meeting with akash at 2pm on friday"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, agent.StatusCompleted, resp.Result.Status)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)
	assert.Equal(t, 1, gw.Calls["Create"])
}

func TestQuery_SessionContinuity(t *testing.T) {
	s, gw := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/query",
		`{"query": "schedule a meeting with akash at 2pm on friday"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, s, http.MethodPost, "/api/v1/query",
		`{"query": "cancel the meeting we just created", "session_id": "`+created.SessionID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var canceled QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &canceled))
	assert.Equal(t, created.SessionID, canceled.SessionID)
	assert.Equal(t, agent.StatusCompleted, canceled.Result.Status)
	assert.Equal(t, 1, gw.Calls["Delete"])
}

func TestQuery_SchedulingFailureIsUnprocessable(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/query",
		`{"query": "schedule a meeting with akash"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, agent.StatusFailed, resp.Result.Status)
	assert.Contains(t, rec.Body.String(), `"status":"failed"`)
	assert.Equal(t, "MISSING_REQUIRED_SLOT", resp.Result.Reason)
	assert.NotEmpty(t, resp.Result.Suggestion)
}

func TestQuery_EmptyQueryRejected(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/query", `{"query": "  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuery_MalformedBodyRejected(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/query", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailot/taylored-orchestrator/pkg/orchestrator"
	"github.com/tailot/taylored-orchestrator/pkg/registry"
	"github.com/tailot/taylored-orchestrator/pkg/runtime"
)

func newTestServer(mode registry.Mode) *Server {
	driver := runtime.NewFakeDriver()
	reg := registry.New(mode)
	svc := orchestrator.New(orchestrator.Config{
		Registry:      reg,
		Driver:        driver,
		Image:         "runner-image",
		ContainerPort: 3000,
	})
	return NewServer(svc, "localhost", true)
}

func TestRootHandlerReportsRunning(t *testing.T) {
	s := newTestServer(registry.PerSession)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Orchestrator service is running!", rec.Body.String())
}

func TestProvisionFreshReturns201(t *testing.T) {
	s := newTestServer(registry.PerSession)
	req := httptest.NewRequest(http.MethodPost, "/api/runner/provision", nil)
	req.Header.Set("X-Session-Id", "session-a")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var body provisionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "session-a", body.SessionID)
	assert.NotEmpty(t, body.Endpoint)
}

func TestProvisionIdempotentHitReturns200(t *testing.T) {
	s := newTestServer(registry.PerSession)

	first := httptest.NewRequest(http.MethodPost, "/api/runner/provision", nil)
	first.Header.Set("X-Session-Id", "session-a")
	s.Handler().ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, "/api/runner/provision", nil)
	second.Header.Set("X-Session-Id", "session-a")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, second)

	require.Equal(t, http.StatusOK, rec.Code)
	var body provisionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Runner already exists for this session.", body.Message)
}

func TestProvisionMissingImageReturns500(t *testing.T) {
	driver := runtime.NewFakeDriver()
	driver.MissingImage = "runner-image"
	reg := registry.New(registry.PerSession)
	svc := orchestrator.New(orchestrator.Config{Registry: reg, Driver: driver, Image: "runner-image", ContainerPort: 3000})
	s := NewServer(svc, "localhost", true)

	req := httptest.NewRequest(http.MethodPost, "/api/runner/provision", nil)
	req.Header.Set("X-Session-Id", "session-a")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "DOCKER_IMAGE_NOT_FOUND", body.Error)
	assert.Empty(t, body.Details, "production mode must not leak details")
}

func TestHeartbeatMissingSessionIDReturns400(t *testing.T) {
	s := newTestServer(registry.PerSession)
	req := httptest.NewRequest(http.MethodPost, "/api/runner/heartbeat", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "SESSION_ID_REQUIRED", body.Error)
}

func TestHeartbeatUnknownSessionReturns404(t *testing.T) {
	s := newTestServer(registry.PerSession)
	req := httptest.NewRequest(http.MethodPost, "/api/runner/heartbeat", nil)
	req.Header.Set("X-Session-Id", "no-such-session")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeprovisionSucceedsThenSecondCallReturns404(t *testing.T) {
	s := newTestServer(registry.PerSession)

	provision := httptest.NewRequest(http.MethodPost, "/api/runner/provision", nil)
	provision.Header.Set("X-Session-Id", "session-a")
	s.Handler().ServeHTTP(httptest.NewRecorder(), provision)

	first := httptest.NewRequest(http.MethodPost, "/api/runner/deprovision", nil)
	first.Header.Set("X-Session-Id", "session-a")
	firstRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(firstRec, first)
	require.Equal(t, http.StatusOK, firstRec.Code)

	second := httptest.NewRequest(http.MethodPost, "/api/runner/deprovision", nil)
	second.Header.Set("X-Session-Id", "session-a")
	secondRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(secondRec, second)
	assert.Equal(t, http.StatusNotFound, secondRec.Code)
}

func TestDeprovisionInReuseModeIsAlwaysOK(t *testing.T) {
	s := newTestServer(registry.Reuse)

	provision := httptest.NewRequest(http.MethodPost, "/api/runner/provision", nil)
	provision.Header.Set("X-Session-Id", "session-a")
	s.Handler().ServeHTTP(httptest.NewRecorder(), provision)

	req := httptest.NewRequest(http.MethodPost, "/api/runner/deprovision", nil)
	req.Header.Set("X-Session-Id", "session-a")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body messageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Deprovisioning is disabled in reuse mode.", body.Message)
}

func TestHealthzReportsOK(t *testing.T) {
	s := newTestServer(registry.PerSession)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

package blocking

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budget-analyzer/service-common/internal/runtime/config"
	errorspkg "github.com/budget-analyzer/service-common/internal/runtime/errors"
	"github.com/budget-analyzer/service-common/internal/runtime/ids"
	"github.com/budget-analyzer/service-common/internal/runtime/jsoncodec"
	"github.com/budget-analyzer/service-common/internal/runtime/logging/logtest"
	"github.com/budget-analyzer/service-common/internal/runtime/observability"
)

type testPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}

func (p testPayload) validate() []errorspkg.FieldError {
	var out []errorspkg.FieldError
	if strings.TrimSpace(p.Name) == "" {
		out = append(out, errorspkg.FieldError{Field: "name", RejectedValue: p.Name, Message: "Name is required"})
	}
	if !strings.Contains(p.Email, "@") {
		out = append(out, errorspkg.FieldError{Field: "email", RejectedValue: p.Email, Message: "Email must be valid"})
	}
	if p.Age < 18 {
		out = append(out, errorspkg.FieldError{Field: "age", RejectedValue: p.Age, Message: "Age must be at least 18"})
	}
	return out
}

func newTestRouter(t *testing.T, opts Options) *Router {
	t.Helper()
	r := NewRouter(opts)
	r.Endpoint(http.MethodGet, "/test/not-found", func(http.ResponseWriter, *http.Request) error {
		return errorspkg.NewResourceNotFound("Test resource not found")
	})
	r.Endpoint(http.MethodGet, "/test/business", func(http.ResponseWriter, *http.Request) error {
		return errorspkg.NewBusiness("Business rule violation", "BUSINESS_RULE_VIOLATION")
	})
	r.Endpoint(http.MethodGet, "/test/invalid", func(http.ResponseWriter, *http.Request) error {
		return errorspkg.NewInvalidRequest("Invalid request")
	})
	r.Endpoint(http.MethodGet, "/test/service-error", func(http.ResponseWriter, *http.Request) error {
		return errorspkg.NewService("Service error", errors.New("db offline"))
	})
	r.Endpoint(http.MethodGet, "/test/unavailable", func(http.ResponseWriter, *http.Request) error {
		return errorspkg.NewServiceUnavailable("Service temporarily unavailable")
	})
	r.Endpoint(http.MethodGet, "/test/runtime", func(http.ResponseWriter, *http.Request) error {
		panic("Runtime error")
	})
	r.Endpoint(http.MethodPost, "/test/validation", func(w http.ResponseWriter, req *http.Request) error {
		var p testPayload
		if err := jsoncodec.Decode(req.Body, &p); err != nil {
			return errorspkg.NewMalformedBody(err)
		}
		if fe := p.validate(); len(fe) > 0 {
			return errorspkg.NewValidation(fe...)
		}
		w.WriteHeader(http.StatusOK)
		_, err := io.WriteString(w, "Success")
		return err
	})
	return r
}

func TestRouterErrorMapping(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, Options{Config: config.Default(), Logger: logtest.NewRecorder()}))
	defer srv.Close()

	tests := []struct {
		method string
		path   string
		body   string
		status int
		want   string
	}{
		{http.MethodGet, "/test/not-found", "", 404, `{"type":"NOT_FOUND","message":"Test resource not found"}`},
		{http.MethodGet, "/test/business", "", 422, `{"type":"APPLICATION_ERROR","message":"Business rule violation","code":"BUSINESS_RULE_VIOLATION"}`},
		{http.MethodGet, "/test/invalid", "", 400, `{"type":"INVALID_REQUEST","message":"Invalid request"}`},
		{http.MethodGet, "/test/service-error", "", 500, `{"type":"INTERNAL_ERROR","message":"An unexpected error occurred"}`},
		{http.MethodGet, "/test/unavailable", "", 503, `{"type":"SERVICE_UNAVAILABLE","message":"Service temporarily unavailable"}`},
		{http.MethodGet, "/test/runtime", "", 500, `{"type":"INTERNAL_ERROR","message":"An unexpected error occurred"}`},
		{http.MethodPost, "/test/validation", `{"name":"","email":"bad","age":10}`, 400,
			`{"type":"VALIDATION_ERROR","message":"Validation failed for 3 field(s)","fieldErrors":[` +
				`{"field":"name","rejectedValue":"","message":"Name is required"},` +
				`{"field":"email","rejectedValue":"bad","message":"Email must be valid"},` +
				`{"field":"age","rejectedValue":10,"message":"Age must be at least 18"}]}`},
		{http.MethodGet, "/nowhere", "", 404, `{"type":"NOT_FOUND","message":"No endpoint GET /nowhere."}`},
		{http.MethodDelete, "/test/invalid", "", 400, `{"type":"INVALID_REQUEST","message":"Request method 'DELETE' is not supported"}`},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req, err := http.NewRequestWithContext(context.Background(), tt.method, srv.URL+tt.path, body)
			require.NoError(t, err)
			resp, err := srv.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			got, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.JSONEq(t, tt.want, string(got))
			assert.True(t, ids.IsCorrelationID(resp.Header.Get("X-Correlation-ID")))
		})
	}
}

func TestRouterValidPayloadSucceeds(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, Options{Config: config.Default()}))
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/test/validation", "application/json",
		strings.NewReader(`{"name":"Ada","email":"ada@example.com","age":36}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	got, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Success", string(got))
}

func TestRouterMalformedBody(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, Options{Config: config.Default()}))
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/test/validation", "application/json", strings.NewReader(`{not json`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var got map[string]any
	require.NoError(t, jsoncodec.Decode(resp.Body, &got))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", got["type"])
	assert.True(t, strings.HasPrefix(got["message"].(string), "Malformed request body"))
}

func TestRouterPropagatesCorrelationIDAndFeedsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg, "svc")
	require.NoError(t, err)

	logger := logtest.NewRecorder()
	cfg := config.Default()
	cfg.HTTPLogging = enabledLogging()
	srv := httptest.NewServer(newTestRouter(t, Options{Config: cfg, Logger: logger, Hooks: metrics.Hooks()}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/test/business", nil)
	require.NoError(t, err)
	req.Header.Set("X-Correlation-ID", "req_client000000001")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "req_client000000001", resp.Header.Get("X-Correlation-ID"))
	scrape := httptest.NewRecorder()
	observability.Handler(reg).ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `svc_http_requests_total{method="GET",stack="blocking",status="422"} 1`)
	assert.Contains(t, scrape.Body.String(), `svc_http_handled_errors_total{status="422",type="APPLICATION_ERROR"} 1`)

	warns := logger.Level("warn")
	require.Len(t, warns, 1)
	assert.Equal(t, "req_client000000001", warns[0].Fields["correlation_id"])
	assert.NotEmpty(t, logger.Containing("HTTP Response"))
}

func TestDefaultMiddlewaresOrder(t *testing.T) {
	names := func(regs []MiddlewareRegistration) []string {
		var out []string
		for _, r := range regs {
			out = append(out, r.Name)
		}
		return out
	}
	h := NewExceptionHandler(nil)

	assert.Equal(t, []string{"correlation_id", "recoverer"}, names(DefaultMiddlewares(Options{Config: config.Default()}, h)))

	cfg := config.Default()
	cfg.HTTPLogging.Enabled = true
	full := Options{
		Config:  cfg,
		Hooks:   observability.Hooks{OnRequestDone: func(observability.RequestInfo) {}},
		Tracing: observability.NewTracing(nil),
	}
	assert.Equal(t, []string{"tracing", "correlation_id", "hooks", "http_logging", "recoverer"}, names(DefaultMiddlewares(full, h)))
}

package streaming

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shiwano/errdef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budget-analyzer/service-common/internal/runtime/api"
	errorspkg "github.com/budget-analyzer/service-common/internal/runtime/errors"
	"github.com/budget-analyzer/service-common/internal/runtime/logging/logtest"
	"github.com/budget-analyzer/service-common/internal/runtime/observability"
)

func TestHTTPResponseStagesHeadersUntilCommit(t *testing.T) {
	rec := httptest.NewRecorder()
	resp := newHTTPResponse(rec)

	resp.Header().Set("X-Staged", "1")
	assert.Empty(t, rec.Header().Get("X-Staged"))

	resp.SetStatus(http.StatusAccepted)
	require.NoError(t, resp.commit())
	assert.Equal(t, "1", rec.Header().Get("X-Staged"))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHTTPResponseDetachedAfterClose(t *testing.T) {
	rec := httptest.NewRecorder()
	resp := newHTTPResponse(rec)
	resp.close()

	resp.Header().Set("Content-Type", api.ContentType)
	assert.Empty(t, rec.Header().Get("Content-Type"))
	assert.ErrorIs(t, resp.commit(), ErrResponseClosed)
	assert.ErrorIs(t, resp.write([]byte("late")), ErrResponseClosed)
	assert.Empty(t, rec.Body.String())
}

func TestClientDisconnectIsNotReportedAsFailure(t *testing.T) {
	logger := logtest.NewRecorder()
	var started, done, alerts atomic.Int32
	hooks := observability.Hooks{
		OnRequestStart: func(observability.RequestInfo) { started.Add(1) },
		OnRequestDone:  func(observability.RequestInfo) { done.Add(1) },
	}.Merge(observability.AlertingHooks(func(observability.RequestInfo, api.Resolution) { alerts.Add(1) }))

	entered := make(chan struct{})
	settled := make(chan struct{})
	slow := HandlerFunc(func(ex *Exchange) *Deferred[struct{}] {
		return Go(ex.Context(), func(ctx context.Context) (struct{}, error) {
			close(entered)
			<-ctx.Done()
			return struct{}{}, ctx.Err()
		})
	})
	onSettle := WebFilterFunc(func(ex *Exchange, next Handler) *Deferred[struct{}] {
		return Finally(next.Handle(ex), func(struct{}, error) { close(settled) })
	})
	chain := Chain(slow,
		onSettle,
		CorrelationIDFilter(logger),
		HooksFilter(hooks),
		NewExceptionHandler(logger, WithHooks(hooks)),
	)

	srv := httptest.NewServer(NewHandler(chain, WithAdapterLogger(logger)))
	defer srv.Close()

	client := &http.Client{Timeout: 50 * time.Millisecond}
	_, err := client.Get(srv.URL + "/slow")
	require.Error(t, err)

	select {
	case <-settled:
	case <-time.After(2 * time.Second):
		t.Fatal("exchange never settled after the client went away")
	}
	select {
	case <-entered:
	default:
		t.Fatal("handler never ran")
	}

	assert.EqualValues(t, 1, started.Load())
	assert.Zero(t, done.Load())
	assert.Zero(t, alerts.Load())
	assert.Empty(t, logger.Level("warn"))
	assert.Empty(t, logger.Level("error"))
	assert.Len(t, logger.Containing("Exchange cancelled, error response dropped"), 1)
}

func TestCorrelationIDBecomesErrdefTraceID(t *testing.T) {
	var traced, plain error
	h := Chain(HandlerFunc(func(ex *Exchange) *Deferred[struct{}] {
		traced = errorspkg.ErrResourceNotFound.With(ex.Context()).New("missing")
		plain = errorspkg.NewResourceNotFound("missing")
		return Completed()
	}), CorrelationIDFilter(nil))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(api.HeaderCorrelationID, "req_feedfacecafebeef")
	serve(h, req)

	id, ok := errdef.TraceIDFrom(traced)
	assert.True(t, ok)
	assert.Equal(t, "req_feedfacecafebeef", id)
	_, ok = errdef.TraceIDFrom(plain)
	assert.False(t, ok)
}

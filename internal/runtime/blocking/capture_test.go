package blocking

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachingRequestReplaysBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"name":"groceries"}`))
	cached := NewCachingRequest(req)

	require.NoError(t, cached.Err())
	assert.Equal(t, `{"name":"groceries"}`, string(cached.Body()))

	first, err := io.ReadAll(cached.Reader())
	require.NoError(t, err)
	second, err := io.ReadAll(cached.Reader())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	downstream, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"groceries"}`, string(downstream))
}

func TestCachingRequestEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	cached := NewCachingRequest(req)
	assert.Empty(t, cached.Body())
	assert.NoError(t, cached.Err())
}

type brokenBody struct {
	data []byte
	err  error
}

func (b *brokenBody) Read(p []byte) (int, error) {
	if len(b.data) == 0 {
		return 0, b.err
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}

func (b *brokenBody) Close() error { return nil }

func TestCachingRequestKeepsReadError(t *testing.T) {
	boom := errors.New("connection reset")
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Body = &brokenBody{data: []byte("partial"), err: boom}

	cached := NewCachingRequest(req)
	assert.ErrorIs(t, cached.Err(), boom)
	assert.Equal(t, "partial", string(cached.Body()))

	got, err := io.ReadAll(req.Body)
	assert.Equal(t, "partial", string(got))
	assert.ErrorIs(t, err, boom)
}

func TestCachingResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := NewCachingResponseWriter(rec, 5)

	assert.Equal(t, 0, cw.Status())
	assert.False(t, cw.Committed())

	_, err := cw.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = cw.Write([]byte("world"))
	require.NoError(t, err)
	cw.WriteHeader(http.StatusTeapot)

	assert.Equal(t, "hello world", rec.Body.String(), "downstream bytes unchanged")
	assert.Equal(t, "hello", string(cw.Body()))
	assert.Equal(t, 11, cw.Total())
	assert.Equal(t, http.StatusOK, cw.Status(), "implicit 200 wins over late WriteHeader")
	assert.True(t, cw.Committed())
	assert.Equal(t, http.ResponseWriter(rec), cw.Unwrap())

	cw.Release()
	assert.Empty(t, cw.Body())
}

func TestCachingResponseWriterZeroLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := NewCachingResponseWriter(rec, 0)
	cw.WriteHeader(http.StatusCreated)
	_, _ = cw.Write([]byte("abc"))
	cw.Flush()

	assert.Empty(t, cw.Body())
	assert.Equal(t, 3, cw.Total())
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, rec.Flushed)
}

func TestCachingResponseWriterHijackUnsupported(t *testing.T) {
	cw := NewCachingResponseWriter(httptest.NewRecorder(), 0)
	_, _, err := cw.Hijack()
	assert.Error(t, err)
}

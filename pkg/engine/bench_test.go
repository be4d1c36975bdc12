package engine

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/httpmock/pkg/expectation"
	"github.com/getmockd/httpmock/pkg/requestlog"
	"github.com/getmockd/httpmock/pkg/wire"
)

// newBenchHandler registers n path expectations, the last one answering /api/test.
func newBenchHandler(tb testing.TB, n int) *Handler {
	tb.Helper()
	stack := expectation.NewStack()
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("/api/item/%d", i)
		if i == n-1 {
			path = "/api/test"
		}
		_, err := stack.Register(&expectation.Definition{
			Matcher:  []expectation.Predicate{{Method: "GET", Path: path}},
			Response: &expectation.Response{Body: "ok"},
		})
		require.NoError(tb, err)
	}
	return NewHandler(stack, requestlog.New(1000))
}

func TestConcurrentDispatch(t *testing.T) {
	env := newTestEnv(t)
	env.mustRegister(t, `[{"method":"GET","path":"/api/test"}]`, `{"body":"ok"}`)

	const (
		numRequests = 1000
		numWorkers  = 50
	)

	var successCount, errorCount int64
	var wg sync.WaitGroup
	client := &http.Client{Timeout: 5 * time.Second}

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numRequests/numWorkers; j++ {
				resp, err := client.Get(env.url("/api/test"))
				if err != nil {
					atomic.AddInt64(&errorCount, 1)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					atomic.AddInt64(&successCount, 1)
				} else {
					atomic.AddInt64(&errorCount, 1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(numRequests), successCount)
	assert.Zero(t, errorCount)
	assert.Equal(t, numRequests, env.requests.Count())
}

func BenchmarkDispatch(b *testing.B) {
	for _, n := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("expectations=%d", n), func(b *testing.B) {
			h := newBenchHandler(b, n)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				if rec.Code != http.StatusOK {
					b.Fatalf("status %d", rec.Code)
				}
			}
		})
	}
}

func BenchmarkDispatchParallel(b *testing.B) {
	h := newBenchHandler(b, 10)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
		}
	})
}

func BenchmarkRegister(b *testing.B) {
	h := NewHandler(expectation.NewStack(), requestlog.New(0))
	form := url.Values{
		wire.KeyMatcher:  {`[{"method":"GET","path":"/a"}]`},
		wire.KeyResponse: {`{"body":"x"}`},
	}.Encode()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, ExpectationPath, strings.NewReader(form))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			b.Fatalf("status %d: %s", rec.Code, rec.Body.String())
		}
	}
}

package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newEchoServer(t *testing.T, inspect func(*http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inspect(r)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"message":"ok","data":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

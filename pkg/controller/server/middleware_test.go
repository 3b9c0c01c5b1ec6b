package server_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gcu/pkg/controller/server"
	"github.com/secmon-lab/gcu/pkg/usecase"
)

func TestMemoryLimit(t *testing.T) {
	mock := &usecase.Mock{}

	var currentMem uint64 = 100
	readMemMock := func(m *runtime.MemStats) {
		m.HeapAlloc = currentMem
	}
	srv := server.New(mock, server.WithMemoryLimit(1000), server.WithReadMemStats(readMemMock))

	t.Run("not reach to memory limit", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/pubsub/push", bytes.NewReader(pubsubBody))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, r)
		gt.Equal(t, w.Code, http.StatusOK)
	})

	t.Run("reached memory limit", func(t *testing.T) {
		currentMem = 1001
		r := httptest.NewRequest("POST", "/pubsub/push", bytes.NewReader(pubsubBody))
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, r)
		gt.Equal(t, w.Code, http.StatusTooManyRequests)
	})

	t.Run("health is not limited", func(t *testing.T) {
		currentMem = 1001
		r := httptest.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, r)
		gt.Equal(t, w.Code, http.StatusOK)
	})
}

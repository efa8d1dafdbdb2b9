package router

import (
	"net/http"
	"testing"

	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/httpclient"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	log := logger.NewNoopLogger()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "service unavailable", err: httpclient.NewError(http.StatusServiceUnavailable, nil), want: true},
		{name: "rate limited", err: httpclient.NewError(http.StatusTooManyRequests, nil), want: true},
		{name: "gateway timeout", err: httpclient.NewError(http.StatusGatewayTimeout, nil), want: true},
		{name: "bad request", err: httpclient.NewError(http.StatusBadRequest, []byte(`{"error":"bad email"}`)), want: false},
		{name: "unauthorized", err: httpclient.NewError(http.StatusUnauthorized, nil), want: false},
		{name: "wrapped http error", err: ierr.WithError(httpclient.NewError(http.StatusBadGateway, nil)).Mark(ierr.ErrHTTPClient), want: true},
		{name: "network timeout", err: timeoutErr{}, want: true},
		{name: "validation", err: ierr.NewError("malformed").Mark(ierr.ErrValidation), want: false},
		{name: "not found", err: ierr.NewError("gone").Mark(ierr.ErrNotFound), want: false},
		{name: "permission denied", err: ierr.NewError("denied").Mark(ierr.ErrPermissionDenied), want: false},
		{name: "database", err: ierr.NewError("connection reset").Mark(ierr.ErrDatabase), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRetry(log, tt.err))
		})
	}
}

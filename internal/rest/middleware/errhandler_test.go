package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware, ErrorHandler(logger.NewNoopLogger()))
	r.GET("/test", handler)
	return r
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
		wantDetails map[string]any
	}{
		{
			name: "not found with details",
			err: ierr.NewError("ranking category rc_1 not found").
				WithHint("Ranking category not found").
				WithReportableDetails(map[string]any{"ranking_category_id": "rc_1"}).
				Mark(ierr.ErrNotFound),
			wantStatus:  http.StatusNotFound,
			wantCode:    ierr.ErrCodeNotFound,
			wantMessage: "Ranking category not found",
			wantDetails: map[string]any{"ranking_category_id": "rc_1"},
		},
		{
			name: "precondition failed",
			err: ierr.NewError("no active residence subscription").
				WithHint("An active residence subscription is required").
				Mark(ierr.ErrPreconditionFailed),
			wantStatus:  http.StatusBadRequest,
			wantCode:    ierr.ErrCodePreconditionFailed,
			wantMessage: "An active residence subscription is required",
		},
		{
			name:        "permission denied",
			err:         ierr.NewError("no user").WithHint("Authentication required").Mark(ierr.ErrPermissionDenied),
			wantStatus:  http.StatusForbidden,
			wantCode:    ierr.ErrCodePermissionDenied,
			wantMessage: "Authentication required",
		},
		{
			name:        "unmarked error",
			err:         assert.AnError,
			wantStatus:  http.StatusInternalServerError,
			wantCode:    ierr.ErrCodeSystemError,
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestEngine(func(c *gin.Context) {
				_ = c.Error(tt.err)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp ierr.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantMessage, resp.Error.Display)
			assert.Equal(t, tt.wantDetails, resp.Error.Details)
		})
	}
}

func TestErrorHandlerPassesSuccess(t *testing.T) {
	r := newTestEngine(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": types.GetRequestID(c.Request.Context())})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(types.HeaderRequestID, "req_123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req_123", w.Header().Get(types.HeaderRequestID))
	assert.JSONEq(t, `{"request_id":"req_123"}`, w.Body.String())
}

package middleware

import (
	"context"
	"docstack-api/internal/services"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	userID   uuid.UUID
	endpoint string
	success  bool
	callErr  string
}

type recordingUsageLog struct {
	calls []recordedCall
}

func (r *recordingUsageLog) LogAPICall(_ context.Context, userID uuid.UUID, endpoint string, success bool, callErr string) {
	r.calls = append(r.calls, recordedCall{userID, endpoint, success, callErr})
}

func (r *recordingUsageLog) LogAPICallAsync(userID uuid.UUID, endpoint string, success bool, callErr string) {
	r.LogAPICall(context.Background(), userID, endpoint, success, callErr)
}

func TestRecordLogsCompletedCall(t *testing.T) {
	userID := uuid.New()
	usageLog := &recordingUsageLog{}
	recorder := NewUsageRecorder(usageLog)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", nil)
	ctx := services.WithAPIIdentityContext(req.Context(), &services.KeyIdentity{UserID: userID})
	rec := httptest.NewRecorder()

	recorder.Record(next).ServeHTTP(rec, req.WithContext(ctx))

	require.Len(t, usageLog.calls, 1)
	assert.Equal(t, userID, usageLog.calls[0].userID)
	assert.Equal(t, "/api/v1/search", usageLog.calls[0].endpoint)
	assert.True(t, usageLog.calls[0].success)
	assert.Empty(t, usageLog.calls[0].callErr)
}

func TestRecordMarksFailedCall(t *testing.T) {
	usageLog := &recordingUsageLog{}
	recorder := NewUsageRecorder(usageLog)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
	ctx := services.WithAPIIdentityContext(req.Context(), &services.KeyIdentity{UserID: uuid.New()})
	rec := httptest.NewRecorder()

	recorder.Record(next).ServeHTTP(rec, req.WithContext(ctx))

	require.Len(t, usageLog.calls, 1)
	assert.False(t, usageLog.calls[0].success)
	assert.Equal(t, "Bad Gateway", usageLog.calls[0].callErr)
}

func TestRecordSkipsUnidentifiedRequest(t *testing.T) {
	usageLog := &recordingUsageLog{}
	recorder := NewUsageRecorder(usageLog)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user-files", nil)
	rec := httptest.NewRecorder()

	recorder.Record(next).ServeHTTP(rec, req)

	assert.Empty(t, usageLog.calls)
}

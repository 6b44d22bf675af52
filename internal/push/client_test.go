package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
		rejected   bool
	}{
		{name: "200 ok", statusCode: http.StatusOK},
		{name: "202 accepted", statusCode: http.StatusAccepted},
		{name: "404 is a rejection", statusCode: http.StatusNotFound, wantErr: true, rejected: true},
		{name: "410 is a rejection", statusCode: http.StatusGone, wantErr: true, rejected: true},
		{name: "500 is transient", statusCode: http.StatusInternalServerError, wantErr: true},
		{name: "503 is transient", statusCode: http.StatusServiceUnavailable, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/send", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				var payload struct {
					EndpointID string  `json:"endpointId"`
					Message    Message `json:"message"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
				assert.Equal(t, "ep-1", payload.EndpointID)
				assert.Equal(t, "Goal!", payload.Message.Title)

				w.WriteHeader(tt.statusCode)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "test-key", nil)
			err := c.Send(context.Background(), "ep-1", Message{Title: "Goal!", Body: "Arsenal 1-0 Spurs"})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.rejected, errors.Is(err, ErrRejected))
		})
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		assert.Equal(t, "ep-1", r.URL.Query().Get("endpointId"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"deliverable": true, "invalid": false}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", nil)
	status, err := c.Status(context.Background(), "ep-1")
	require.NoError(t, err)
	require.NotNil(t, status.Deliverable)
	assert.True(t, *status.Deliverable)
	assert.False(t, status.Invalid)
}

func TestStatus_NullDeliverableStaysNil(t *testing.T) {
	// "Still initializing": the transport has no definitive answer yet.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"deliverable": null, "invalid": false}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	status, err := c.Status(context.Background(), "ep-1")
	require.NoError(t, err)
	assert.Nil(t, status.Deliverable)
}

func TestRegister(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/register", r.URL.Path)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "ep-1", payload["endpointId"])
		w.Write([]byte(`{"deliverable": null, "invalid": false}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	status, err := c.Register(context.Background(), "ep-1")
	require.NoError(t, err)
	assert.False(t, status.Invalid)
}

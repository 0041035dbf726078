package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Enhance(t *testing.T) {
	tests := []struct {
		name           string
		responseBody   interface{}
		responseStatus int
		wantURL        string
		wantErr        error
	}{
		{
			name: "success",
			responseBody: map[string]interface{}{
				"success":    true,
				"result_url": "http://provider.example/results/1.png",
			},
			responseStatus: http.StatusOK,
			wantURL:        "http://provider.example/results/1.png",
		},
		{
			name: "provider reports failure",
			responseBody: map[string]interface{}{
				"success": false,
				"error":   "unsupported image",
			},
			responseStatus: http.StatusOK,
			wantErr:        ErrUpstream,
		},
		{
			name:           "malformed JSON",
			responseBody:   "{not_json}",
			responseStatus: http.StatusOK,
			wantErr:        ErrUpstream,
		},
		{
			name:           "permanent client error",
			responseBody:   map[string]interface{}{"error": "bad key"},
			responseStatus: http.StatusUnauthorized,
			wantErr:        ErrUpstream,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, enhancePath, r.URL.Path)
				assert.Equal(t, "Key test-key", r.Header.Get("Authorization"))

				var req transformRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "http://origin.example/cat.png", req.ImageURL)
				assert.Equal(t, 2, req.Scale)

				w.WriteHeader(tc.responseStatus)
				if s, ok := tc.responseBody.(string); ok {
					w.Write([]byte(s))
					return
				}
				json.NewEncoder(w).Encode(tc.responseBody)
			}))
			defer server.Close()

			client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", Timeout: 5 * time.Second})

			url, err := client.Enhance(context.Background(), "http://origin.example/cat.png", 2)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantURL, url)
		})
	}
}

func TestClient_EnhanceValidatesInput(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})

	_, err := client.Enhance(context.Background(), "", 2)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, int32(0), calls.Load(), "no network call for empty source")
}

func TestClient_RemoveBackgroundValidatesInput(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://provider.invalid", APIKey: "test-key"})

	_, err := client.RemoveBackground(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(transformResponse{Success: true, ResultURL: "http://provider.example/results/2.png"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", Timeout: 5 * time.Second})

	url, err := client.RemoveBackground(context.Background(), "http://origin.example/dog.png")
	require.NoError(t, err)
	assert.Equal(t, "http://provider.example/results/2.png", url)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryPermanentFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})

	_, err := client.RemoveBackground(context.Background(), "http://origin.example/dog.png")
	require.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})

	_, err := client.Enhance(context.Background(), "http://origin.example/cat.png", 2)
	require.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(maxAttempts), calls.Load())
}

func TestClient_DefaultScale(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transformRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.Scale)
		json.NewEncoder(w).Encode(transformResponse{Success: true, ResultURL: "http://provider.example/results/3.png"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})

	_, err := client.Enhance(context.Background(), "http://origin.example/cat.png", 0)
	require.NoError(t, err)
}

package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProviderSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message_id":"pm-abc"}`))
	}))
	defer server.Close()

	provider := NewHTTPSMSProvider(server.URL, "test-key", time.Second)
	id, err := provider.Send(context.Background(), "+15550001111", "+15552223333", "hello")
	require.NoError(t, err)
	assert.Equal(t, "pm-abc", id)
}

func TestHTTPProviderMalformedSuccessBodyIsRetryable(t *testing.T) {
	cases := map[string]string{
		"NotJSON":          "<html>gateway timeout</html>",
		"MissingMessageID": `{"status":"ok"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			provider := NewHTTPSMSProvider(server.URL, "test-key", time.Second)
			_, err := provider.Send(context.Background(), "+15550001111", "+15552223333", "hello")
			require.Error(t, err)

			providerErr, ok := err.(*ProviderError)
			require.True(t, ok)
			// The provider may have accepted the message; a retry is safe,
			// a refund is not
			assert.True(t, providerErr.Retryable())
		})
	}
}

func TestHTTPProviderErrorStatusIsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"invalid recipient"}`))
	}))
	defer server.Close()

	provider := NewHTTPSMSProvider(server.URL, "test-key", time.Second)
	_, err := provider.Send(context.Background(), "+15550001111", "bogus", "hello")
	require.Error(t, err)

	providerErr, ok := err.(*ProviderError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, providerErr.StatusCode)
	assert.False(t, providerErr.Retryable())
}

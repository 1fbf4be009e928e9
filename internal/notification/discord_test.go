package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendSuccessNotification(t *testing.T) {
	var got DiscordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	t.Setenv("DISCORD_SUCCESS_NOTIFICATION_URL", srv.URL)

	require.NoError(t, SendDiscordSuccessNotification(context.Background(), "export ndvi done"))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "export ndvi done", got.Embeds[0].Description)
	assert.Equal(t, colorGreen, got.Embeds[0].Color)
}

func TestSendErrorNotificationStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	t.Setenv("DISCORD_ERROR_NOTIFICATION_URL", srv.URL)

	err := SendDiscordErrorNotification(context.Background(), "boom")
	assert.Error(t, err)
}

func TestUnconfiguredWebhookIsSkipped(t *testing.T) {
	t.Setenv("DISCORD_ERROR_NOTIFICATION_URL", "")
	t.Setenv("DISCORD_SUCCESS_NOTIFICATION_URL", "")
	assert.NoError(t, SendDiscordErrorNotification(context.Background(), "boom"))
	assert.NoError(t, SendDiscordSuccessNotification(context.Background(), "ok"))
}

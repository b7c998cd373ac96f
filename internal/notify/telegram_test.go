package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_SendInviteLink_Posts_To_Bot_API(t *testing.T) {
	req := require.New(t)

	var gotPath string
	var gotBody sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegram("42:TOKEN", 3*time.Hour, srv.Client())
	n.apiBase = srv.URL

	err := n.SendInviteLink(context.Background(), 777, "https://calls.example/call/abc")
	req.NoError(err)
	req.Equal("/bot42:TOKEN/sendMessage", gotPath)
	req.Equal(int64(777), gotBody.ChatID)
	req.Contains(gotBody.Text, "https://calls.example/call/abc")
	req.Contains(gotBody.Text, "3 hours")
	req.True(gotBody.DisableWebPagePreview)
}

func Test_SendInviteLink_Propagates_API_Error(t *testing.T) {
	req := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewTelegram("42:TOKEN", 3*time.Hour, srv.Client())
	n.apiBase = srv.URL

	err := n.SendInviteLink(context.Background(), 777, "https://calls.example/call/abc")
	req.Error(err)
}

func Test_SendInviteLink_Propagates_Transport_Error(t *testing.T) {
	req := require.New(t)

	n := NewTelegram("42:TOKEN", 3*time.Hour, nil)
	n.apiBase = "http://127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := n.SendInviteLink(ctx, 777, "https://calls.example/call/abc")
	req.Error(err)
}

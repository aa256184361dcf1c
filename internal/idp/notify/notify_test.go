package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouteSMS(t *testing.T) {
	require.Equal(t, MethodSMSKakao, RouteSMS("+821012345678"))
	require.Equal(t, MethodSMS, RouteSMS("+15551234567"))
	require.Equal(t, MethodSMS, RouteSMS(""))
}

func TestHTTPNotifierSend(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/send", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, "test-key")
	err := n.Send(context.Background(), Message{
		Method:      MethodSMS,
		Template:    TemplateAuthCode,
		Destination: "+15551234567",
		Variables:   map[string]string{"code": "123456"},
	})
	require.NoError(t, err)
	require.Equal(t, MethodSMS, got.Method)
	require.Equal(t, "123456", got.Variables["code"])
}

func TestHTTPNotifierSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, "k")
	err := n.Send(context.Background(), Message{Method: MethodEmail, Destination: "a@b.c"})
	require.Error(t, err)
}

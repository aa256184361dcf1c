// Package notify delivers out-of-band messages (challenge codes) through an
// external notification API. Delivery is always best-effort: the sign-in flow
// persists the challenge first and fires the notification in a goroutine, so
// a delivery failure never fails the request.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Method selects the delivery channel.
type Method string

const (
	MethodSMS Method = "sms"
	// MethodSMSKakao routes through the Korean messaging network. Selected
	// automatically for +82 destinations.
	MethodSMSKakao Method = "sms_kakao"
	MethodEmail    Method = "email"
	MethodPush     Method = "push"
)

// Message is one outbound notification.
type Message struct {
	Method      Method            `json:"method"`
	Template    string            `json:"template"`
	Locale      string            `json:"locale,omitempty"`
	Destination string            `json:"to"`
	Variables   map[string]string `json:"variables,omitempty"`
}

// Templates known to the delivery backend.
const (
	TemplateAuthCode = "authorization_code"
)

// Notifier sends a message. Implementations must not block longer than their
// own transport timeout and must swallow nothing silently: errors go back to
// the caller, who decides whether they matter.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// RouteSMS picks the SMS channel for a destination number.
func RouteSMS(destination string) Method {
	if strings.HasPrefix(destination, "+82") {
		return MethodSMSKakao
	}
	return MethodSMS
}

// HTTPNotifier posts messages to a notification API.
type HTTPNotifier struct {
	Host   string
	Key    string
	Client *http.Client
}

func NewHTTPNotifier(host, key string) *HTTPNotifier {
	return &HTTPNotifier{
		Host:   strings.TrimSuffix(host, "/"),
		Key:    key,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *HTTPNotifier) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Host+"/v1/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.Key)

	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: send failed with status %d", resp.StatusCode)
	}
	return nil
}

// SlogNotifier logs instead of delivering. Used in development and tests.
type SlogNotifier struct {
	Logger *slog.Logger
}

func (n SlogNotifier) Send(_ context.Context, msg Message) error {
	if n.Logger != nil {
		n.Logger.Info("notification (not delivered)",
			slog.String("method", string(msg.Method)),
			slog.String("template", msg.Template),
			slog.String("to", msg.Destination),
		)
	}
	return nil
}

package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DefaultPushoverURL is the Pushover message endpoint.
const DefaultPushoverURL = "https://api.pushover.net/1/messages.json"

// PushoverOptions configures the push notification tool.
type PushoverOptions struct {
	// APIURL overrides the Pushover endpoint (useful for tests).
	APIURL string
	// Timeout bounds a single notification request.
	Timeout time.Duration
	// HTTPClient overrides the client used for requests.
	HTTPClient *http.Client
}

type pushArgs struct {
	Message string `json:"message" mapstructure:"message" description:"The notification text to send to the user"`
}

// NewPushNotificationTool creates the send_push_notification tool backed by
// the Pushover REST API.
func NewPushNotificationTool(token, user string, optFns ...func(o *PushoverOptions)) Tool {
	opts := PushoverOptions{
		APIURL:  DefaultPushoverURL,
		Timeout: 5 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return NewFunctionToolFromStruct(
		"send_push_notification",
		"Use this tool when you want to send a push notification",
		pushArgs{},
		func(ctx context.Context, args map[string]any) (string, error) {
			var in pushArgs
			if err := mapstructure.Decode(args, &in); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}

			form := url.Values{}
			form.Set("token", token)
			form.Set("user", user)
			form.Set("message", in.Message)

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.APIURL, strings.NewReader(form.Encode()))
			if err != nil {
				return "", err
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			resp, err := client.Do(req)
			if err != nil {
				return "", fmt.Errorf("pushover request: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return "", fmt.Errorf("pushover request failed: status %d: %s", resp.StatusCode, string(body))
			}

			return "success", nil
		},
	)
}

// Package provider sends outbound WhatsApp messages through the Twilio
// REST API. Delivery is best-effort: the caller logs failures and moves
// on, the transcript stays the source of truth.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	commonerrors "screening-engine/internal/common/errors"
	commonhttp "screening-engine/internal/common/http"
)

// SendRequest is one outbound message with the credentials to send it
// under. Credentials travel with the request because they vary per job
// owner.
type SendRequest struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
	Body       string
}

type Client struct {
	baseURL    string
	httpClient *commonhttp.Client
}

func NewClient(baseURL string, httpClient *commonhttp.Client) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Send posts one message. Both From and To get the whatsapp: channel
// prefix when missing.
func (c *Client) Send(ctx context.Context, req SendRequest) error {
	form := url.Values{}
	form.Set("From", withChannelPrefix(req.From))
	form.Set("To", withChannelPrefix(req.To))
	form.Set("Body", req.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, req.AccountSID)

	httpReq, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return commonerrors.NewMessageSendFailedError(err)
	}
	httpReq.SetBasicAuth(req.AccountSID, req.AuthToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.DoWithContext(ctx, httpReq)
	if err != nil {
		return commonerrors.NewMessageSendFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return commonerrors.NewMessageSendFailedError(
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	return nil
}

func withChannelPrefix(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

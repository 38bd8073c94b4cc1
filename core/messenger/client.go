// Package messenger is the Facebook Messenger transport: the webhook that
// feeds the conversation dispatcher and the Send API client for replies.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// APIError is a non-2xx Graph API answer.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       int
	FBTraceID  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("graph api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("graph api: HTTP %d: %s (code %d)", e.StatusCode, e.Message, e.Code)
}

// HTTPStatus exposes the status code to the sender error classifier.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Client calls the Send API of one page.
type Client struct {
	http     *http.Client
	endpoint string
	token    string
}

// NewClient builds a Send API client for baseURL (https://graph.facebook.com)
// and version (v12.0).
func NewClient(httpClient *http.Client, baseURL, version, pageAccessToken string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/" + strings.Trim(version, "/") + "/me/messages"
	return &Client{http: httpClient, endpoint: endpoint, token: pageAccessToken}
}

// SendText delivers a plain text reply to recipientID.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	body, err := json.Marshal(sendRequest{
		MessagingType: "RESPONSE",
		Recipient:     User{ID: recipientID},
		Message:       sendMessage{Text: text},
	})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?access_token="+url.QueryEscape(c.token), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload graphErrorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload); err == nil {
		apiErr.Message = payload.Error.Message
		apiErr.Type = payload.Error.Type
		apiErr.Code = payload.Error.Code
		apiErr.FBTraceID = payload.Error.FBTraceID
	}
	return apiErr
}

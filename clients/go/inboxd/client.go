// Package inboxd provides a client for the inboxd webhook message API.
package inboxd

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
)

// Client is an inboxd API client.
type Client struct {
	BaseURL    string
	Secret     string // shared webhook secret, required for SendMessage
	HTTPClient *http.Client
}

// NewClient creates a new inboxd client.
func NewClient(baseURL, secret string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &Client{
		BaseURL:    baseURL,
		Secret:     secret,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Message is an inbound message payload.
type Message struct {
	MessageID string    `json:"message_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	TS        time.Time `json:"ts"`
	Text      string    `json:"text"`
}

// SendResult is the webhook acknowledgement.
type SendResult struct {
	Status    string `json:"status"` // "created" or "duplicate"
	MessageID string `json:"message_id"`
}

// MessagePage is one page of a message listing.
type MessagePage struct {
	Data   []Message `json:"data"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// SenderCount is one entry of the per-sender ranking.
type SenderCount struct {
	From  string `json:"from"`
	Count int64  `json:"count"`
}

// Stats is the aggregate view of the store.
type Stats struct {
	TotalMessages     int64         `json:"total_messages"`
	SendersCount      int64         `json:"senders_count"`
	MessagesPerSender []SenderCount `json:"messages_per_sender"`
	FirstMessageTS    *time.Time    `json:"first_message_ts"`
	LastMessageTS     *time.Time    `json:"last_message_ts"`
}

// NewMessageID returns a fresh ULID suitable as a message_id.
func NewMessageID() string {
	return ulid.Make().String()
}

// Sign computes the hex HMAC-SHA256 signature of a raw body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SendMessage delivers a message to the webhook. An empty MessageID is
// filled with a fresh ULID; a zero TS is filled with the current time.
func (c *Client) SendMessage(msg Message) (*SendResult, error) {
	if msg.MessageID == "" {
		msg.MessageID = NewMessageID()
	}
	if msg.TS.IsZero() {
		msg.TS = time.Now().UTC()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/webhook", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", Sign(c.Secret, body))

	var result SendResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListOptions are the filter and pagination parameters for ListMessages.
// Zero values are omitted and the server defaults apply.
type ListOptions struct {
	From   string
	Since  time.Time
	Query  string
	Limit  int
	Offset int
}

// ListMessages fetches a filtered, paginated message listing.
func (c *Client) ListMessages(opts ListOptions) (*MessagePage, error) {
	params := url.Values{}
	if opts.From != "" {
		params.Set("from", opts.From)
	}
	if !opts.Since.IsZero() {
		params.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}
	if opts.Query != "" {
		params.Set("q", opts.Query)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	endpoint := c.BaseURL + "/messages"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var page MessagePage
	if err := c.do(req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Stats fetches the aggregate snapshot.
func (c *Client) Stats() (*Stats, error) {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+"/stats", nil)
	if err != nil {
		return nil, err
	}

	var stats Stats
	if err := c.do(req, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// do performs a request and decodes the JSON response into out.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	return json.Unmarshal(body, out)
}

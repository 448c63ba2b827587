package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client calls the Telegram Bot API over HTTPS.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *zap.Logger
}

// NewClient creates a Bot API client. baseURL is usually https://api.telegram.org.
func NewClient(httpClient *http.Client, baseURL, token string, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// Call invokes method with an already encoded JSON payload.
func (c *Client) Call(ctx context.Context, method string, payload json.RawMessage) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &NetworkError{Err: fmt.Errorf("read body: %w", err)}
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return &APIError{Code: resp.StatusCode, Description: fmt.Sprintf("undecodable response: %s", err)}
	}
	if !out.OK {
		apiErr := &APIError{Code: out.ErrorCode, Description: out.Description}
		if out.Parameters != nil {
			apiErr.RetryAfter = time.Duration(out.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	c.logger.Debug("bot api call ok", zap.String("method", method))
	return nil
}

// APIError is an error reported by the Bot API.
type APIError struct {
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %d %s", e.Code, e.Description)
}

// NetworkError wraps a transport failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "telegram: network: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// ErrorKind tells the delivery worker what to do with a failed call.
type ErrorKind int

const (
	// KindNone means the call succeeded.
	KindNone ErrorKind = iota
	// KindIgnorable means the edit was a no-op or its target is gone.
	KindIgnorable
	// KindForbidden means the bot was blocked or removed from the chat.
	KindForbidden
	// KindRetryAfter means the bot is being rate limited.
	KindRetryAfter
	// KindNetwork means the request may not have reached Telegram.
	KindNetwork
	// KindFatal is any other failure.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindIgnorable:
		return "ignorable"
	case KindForbidden:
		return "forbidden"
	case KindRetryAfter:
		return "retry_after"
	case KindNetwork:
		return "network"
	default:
		return "fatal"
	}
}

// Descriptions of 400 errors that only mean an edit had nothing to do.
var ignorableDescriptions = []string{
	"message is not modified",
	"message to edit not found",
	"message_id_invalid",
}

// Classify maps an error returned by Call to its ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return KindFatal
	}
	switch apiErr.Code {
	case http.StatusTooManyRequests:
		return KindRetryAfter
	case http.StatusForbidden, http.StatusUnauthorized:
		return KindForbidden
	case http.StatusBadRequest:
		desc := strings.ToLower(apiErr.Description)
		for _, d := range ignorableDescriptions {
			if strings.Contains(desc, d) {
				return KindIgnorable
			}
		}
	}
	return KindFatal
}

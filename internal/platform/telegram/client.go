package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/common/logger"
	"inphrone-backend/internal/features/yourturn/models"
)

const DefaultAPIURL = "https://api.telegram.org"

// RPSError is returned when the Bot API rate limit is hit
type RPSError struct {
	Msg        string
	RetryAfter time.Duration
}

func (e *RPSError) Error() string {
	return e.Msg
}

// Response is the Bot API envelope
type Response struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters,omitempty"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	appURL     string
}

type Option func(*Client)

// WithBaseURL points the client at another Bot API host, used by tests
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(token, appURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: DefaultAPIURL,
		token:   token,
		appURL:  appURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NotifySlotWinner tells the winner they have the slot and how long they
// have to post their question.
func (c *Client) NotifySlotWinner(ctx context.Context, userID int64, slot *models.Slot) error {
	message := fmt.Sprintf(
		"🎉 You won Your Turn slot #%d for %s!\n\n"+
			"Post your question before the slot is archived: %s",
		slot.SlotNumber,
		slot.Date,
		c.appURL,
	)

	if err := c.SendMessage(ctx, userID, message); err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Str("slot_id", slot.ID).Msg("Failed to notify slot winner")
		return err
	}

	logger.Info().Int64("user_id", userID).Str("slot_id", slot.ID).Msg("Slot winner notified")
	return nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	params := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"text":    {text},
	}

	var response Response
	if err := c.makeRequest(ctx, "sendMessage", params, &response); err != nil {
		return errors.NewExternalAPIError("telegram", err)
	}

	if !response.Ok {
		if response.ErrorCode == http.StatusTooManyRequests {
			rps := &RPSError{Msg: response.Description}
			if response.Parameters != nil {
				rps.RetryAfter = time.Duration(response.Parameters.RetryAfter) * time.Second
			}
			return errors.NewExternalAPIError("telegram", rps)
		}
		return errors.NewExternalAPIError("telegram", fmt.Errorf("telegram API error: %s", response.Description))
	}
	return nil
}

func (c *Client) makeRequest(ctx context.Context, method string, data url.Values, result interface{}) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

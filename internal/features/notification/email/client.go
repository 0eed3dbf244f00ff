package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inphrone-backend/internal/common/config"
	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/common/logger"
	"inphrone-backend/internal/common/metrics"
	"inphrone-backend/internal/features/notification/models"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 1024
)

// Client renders transactional emails and posts them to the provider API
type Client struct {
	httpClient        *http.Client
	apiURL            string
	apiKey            string
	from              string
	appURL            string
	unsubscribeURL    string
	unsubscribeMailto string
	templates         map[models.EmailType]emailTemplate
	metrics           *metrics.Metrics
	now               func() time.Time
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func NewClient(cfg *config.Config, opts ...ClientOption) (*Client, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	c := &Client{
		httpClient:        &http.Client{Timeout: defaultTimeout},
		apiURL:            cfg.Email.APIURL,
		apiKey:            cfg.Email.APIKey,
		from:              cfg.Email.From,
		appURL:            cfg.Email.AppURL,
		unsubscribeURL:    cfg.Email.UnsubscribeURL,
		unsubscribeMailto: cfg.Email.UnsubscribeMailto,
		templates:         templates,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type sendPayload struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html"`
	Headers map[string]string `json:"headers"`
	Tags    []payloadTag      `json:"tags,omitempty"`
}

type payloadTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send renders req and submits it. Every message carries List-Unsubscribe
// headers with one-click support.
func (c *Client) Send(ctx context.Context, req models.EmailRequest) (*models.EmailResult, error) {
	result, err := c.send(ctx, req)
	c.metrics.ObserveEmail(string(req.Type), err)
	return result, err
}

func (c *Client) send(ctx context.Context, req models.EmailRequest) (*models.EmailResult, error) {
	tmpl, ok := c.templates[req.Type]
	if !ok {
		return nil, errors.NewValidationError("type", fmt.Sprintf("unknown email type %q", req.Type))
	}
	if strings.TrimSpace(req.To) == "" {
		return nil, errors.NewValidationError("to", "recipient is required")
	}
	if key, missing := tmpl.missing(req.Data); missing {
		return nil, errors.NewValidationError("data."+key, "is required for "+string(req.Type))
	}
	if c.apiKey == "" {
		return nil, errors.New(errors.ErrCodeExternalAPI, "Email provider is not configured")
	}

	subject, html, err := tmpl.render(templateData{
		Name:           req.Name,
		AppURL:         c.appURL,
		UnsubscribeURL: c.unsubscribeURL,
		Data:           req.Data,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "Failed to render email")
	}

	payload := sendPayload{
		From:    c.from,
		To:      []string{req.To},
		Subject: sanitizeHeader(subject),
		HTML:    html,
		Headers: c.unsubscribeHeaders(),
		Tags:    []payloadTag{{Name: "type", Value: string(req.Type)}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "Failed to encode email")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewExternalAPIError("email", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.NewExternalAPIError("email", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.NewExternalAPIError("email",
			fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.NewExternalAPIError("email", fmt.Errorf("decode response: %w", err))
	}

	logger.Info().
		Str("type", string(req.Type)).
		Str("message_id", out.ID).
		Msg("Email sent")
	return &models.EmailResult{MessageID: out.ID, SentAt: c.now().UTC()}, nil
}

func (c *Client) unsubscribeHeaders() map[string]string {
	var targets []string
	if c.unsubscribeMailto != "" {
		targets = append(targets, "<mailto:"+c.unsubscribeMailto+"?subject=unsubscribe>")
	}
	if c.unsubscribeURL != "" {
		targets = append(targets, "<"+c.unsubscribeURL+">")
	}
	headers := map[string]string{
		"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
	}
	if len(targets) > 0 {
		headers["List-Unsubscribe"] = strings.Join(targets, ", ")
	}
	return headers
}

func sanitizeHeader(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(s))
}

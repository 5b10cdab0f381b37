package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"parkshare/config"

	"github.com/pkg/errors"
)

// SMSSender delivers a text to one phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) error
}

type httpSMSSender struct {
	endpoint   string
	apiKey     string
	sender     string
	httpClient *http.Client
}

type smsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

// NewHTTPSMSSender creates an SMSSender posting JSON to an SMS gateway.
func NewHTTPSMSSender(cfg *config.Config) SMSSender {
	sms := cfg.Notification.SMS

	return &httpSMSSender{
		endpoint:   sms.Endpoint,
		apiKey:     sms.APIKey,
		sender:     sms.Sender,
		httpClient: &http.Client{Timeout: sms.Timeout},
	}
}

// SendSMS posts the message to the gateway. Any non-2xx status is a delivery failure.
func (s *httpSMSSender) SendSMS(ctx context.Context, to, text string) error {
	if s.endpoint == "" {
		return errors.New("sms endpoint is not configured")
	}

	body, err := json.Marshal(smsRequest{From: s.sender, To: to, Text: text})
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "sms gateway unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	return nil
}

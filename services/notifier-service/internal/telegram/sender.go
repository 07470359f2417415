package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
	ProviderID() string
}

// BotSender delivers operator messages through the Telegram Bot API.
type BotSender struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewBotSender(token string) *BotSender {
	return &BotSender{
		baseURL: "https://api.telegram.org",
		token:   strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *BotSender) ProviderID() string {
	return "telegram-bot"
}

func (s *BotSender) Send(ctx context.Context, chatID int64, text string) error {
	if s.token == "" {
		return errors.New("telegram bot token not configured")
	}
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram api returned status %d", resp.StatusCode)
	}
	return nil
}

type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "telegram-noop"
}

func (s *NoopSender) Send(_ context.Context, _ int64, _ string) error {
	return nil
}

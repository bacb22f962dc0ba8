package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultTelegramAPI is the public Bot API endpoint.
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramTransport posts chunks to a chat through the Bot API sendMessage method.
type TelegramTransport struct {
	client    *http.Client
	apiURL    string
	token     string
	chatID    string
	parseMode string
}

// NewTelegramTransport sends HTML-formatted messages when rich is true.
// A nil client means http.DefaultClient; deadlines come from the caller's context.
func NewTelegramTransport(client *http.Client, apiURL, token, chatID string, rich bool) *TelegramTransport {
	if client == nil {
		client = http.DefaultClient
	}
	if apiURL == "" {
		apiURL = DefaultTelegramAPI
	}
	t := &TelegramTransport{
		client: client,
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		chatID: chatID,
	}
	if rich {
		t.parseMode = "HTML"
	}
	return t
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramTransport) Deliver(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  text,
		ParseMode:             t.parseMode,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return err
	}

	endpoint := t.apiURL + "/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return t.redact(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return t.redact(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed botResponse
	_ = json.Unmarshal(raw, &parsed)
	if resp.StatusCode != http.StatusOK || !parsed.OK {
		desc := parsed.Description
		if desc == "" {
			desc = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("telegram sendMessage: status %d: %s", resp.StatusCode, desc)
	}
	return nil
}

// redact keeps the bot token out of logged transport errors.
func (t *TelegramTransport) redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && t.token != "" {
		uerr.URL = strings.ReplaceAll(uerr.URL, t.token, "<redacted>")
	}
	return err
}

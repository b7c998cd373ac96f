// Package notify delivers private-room invite links to users through
// an out-of-band channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Notifier delivers an invite link to a user identity. Room
// provisioning fails when delivery fails.
type Notifier interface {
	SendInviteLink(ctx context.Context, chatID int64, link string) error
}

// Telegram sends invite links as bot messages via the Bot API.
type Telegram struct {
	botToken string
	linkTTL  time.Duration
	client   *http.Client
	apiBase  string
}

// NewTelegram builds a notifier for the given bot. client may be nil,
// in which case http.DefaultClient is used.
func NewTelegram(botToken string, linkTTL time.Duration, client *http.Client) *Telegram {
	if client == nil {
		client = http.DefaultClient
	}
	return &Telegram{
		botToken: botToken,
		linkTTL:  linkTTL,
		client:   client,
		apiBase:  "https://api.telegram.org",
	}
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

func (t *Telegram) SendInviteLink(ctx context.Context, chatID int64, link string) error {
	text := fmt.Sprintf("Join me for a call: %s\n\nThe link is valid for the next %d hours.", link, int(t.linkTTL.Hours()))
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal sendMessage: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver invite link: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Str("module", "notify").Int64("chat_id", chatID).Int("status", resp.StatusCode).Msg("invite link delivery rejected")
		return fmt.Errorf("deliver invite link: bot api status %d", resp.StatusCode)
	}
	log.Info().Str("module", "notify").Int64("chat_id", chatID).Msg("invite link delivered")
	return nil
}

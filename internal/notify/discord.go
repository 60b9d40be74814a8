// Package notify はセッション結果をDiscordのWebhookへ通知する。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const defaultTimeout = 10 * time.Second

// 通知対象の結果と埋め込みの色。
var outcomeColors = map[string]int{
	"gifted":   0x2ecc71,
	"cooldown": 0xf1c40f,
	"kicked":   0xe67e22,
	"refused":  0xe74c3c,
	"failed":   0xe74c3c,
}

// Discord はWebhook経由でセッション結果を通知する。
type Discord struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewDiscord はDiscord通知クライアントを生成する。
// httpClientがnilの場合はタイムアウト付きのデフォルトクライアントを使う。
func NewDiscord(webhookURL string, httpClient *http.Client) (*Discord, error) {
	webhookURL = strings.TrimSpace(webhookURL)
	if !strings.HasPrefix(webhookURL, "https://") && !strings.HasPrefix(webhookURL, "http://") {
		return nil, fmt.Errorf("invalid webhook url %q", webhookURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Discord{url: webhookURL, client: httpClient, now: time.Now}, nil
}

// Notifies は指定した結果が通知対象かどうかを返す。
func Notifies(outcome string) bool {
	_, ok := outcomeColors[outcome]
	return ok
}

// NotifyOutcome はセッション結果を通知する。通知対象外の結果は何もしない。
func (d *Discord) NotifyOutcome(ctx context.Context, username, outcome, detail string) error {
	if !Notifies(outcome) {
		return nil
	}

	body, err := json.Marshal(buildParams(username, outcome, detail, d.now()))
	if err != nil {
		return fmt.Errorf("failed to serialize webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

func buildParams(username, outcome, detail string, at time.Time) *discordgo.WebhookParams {
	embed := &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("%s: %s", username, outcome),
		Color:     outcomeColors[outcome],
		Timestamp: at.UTC().Format(time.RFC3339),
	}
	if detail != "" {
		embed.Description = detail
	}
	return &discordgo.WebhookParams{
		Username: "kitcourier",
		Embeds:   []*discordgo.MessageEmbed{embed},
	}
}

package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ibraheemcisse/service-monitoring-script/internal/config"
	"github.com/ibraheemcisse/service-monitoring-script/internal/logger"
)

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type MultiNotifier struct {
	notifiers []Notifier
}

func (m *MultiNotifier) Notify(ctx context.Context, event Event) error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			lastErr = err
			logger.Warn("ALERT", "Notifier failed: %v", err)
		}
	}
	return lastErr
}

// NewNotifier builds the notifier chain from configured channels. With no
// channel configured the chain is just the log notifier, so dispatch is a
// deliberate no-op beyond a diagnostic line.
func NewNotifier(cfg config.AlertChannels) Notifier {
	var notifiers []Notifier
	notifiers = append(notifiers, &LogNotifier{})

	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		notifiers = append(notifiers, &WebhookNotifier{url: cfg.Webhook.URL})
	}
	if cfg.Slack.Enabled && cfg.Slack.Webhook != "" {
		notifiers = append(notifiers, &SlackNotifier{webhook: cfg.Slack.Webhook})
	}
	if cfg.Discord.Enabled && cfg.Discord.Webhook != "" {
		notifiers = append(notifiers, &DiscordNotifier{webhook: cfg.Discord.Webhook})
	}
	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
		notifiers = append(notifiers, &TelegramNotifier{apiKey: cfg.Telegram.Token, channel: cfg.Telegram.ChatID})
	}

	return &MultiNotifier{notifiers: notifiers}
}

type LogNotifier struct{}

func (l *LogNotifier) Notify(ctx context.Context, event Event) error {
	logger.Warn("ALERT", "%s | %s", event.Status, event.Message)
	return nil
}

// WebhookNotifier posts the raw event as JSON to a generic endpoint.
type WebhookNotifier struct {
	url string
}

type webhookPayload struct {
	Key       string            `json:"key"`
	Service   string            `json:"service"`
	Condition string            `json:"condition"`
	Status    string            `json:"status"`
	Severity  string            `json:"severity"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (w *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if w.url == "" {
		return nil
	}
	var details map[string]string
	if len(event.Details) > 0 {
		details = make(map[string]string, len(event.Details))
		for _, d := range event.Details {
			details[d.Label] = d.Value
		}
	}
	payload := webhookPayload{
		Key:       event.Key.String(),
		Service:   event.Key.Service,
		Condition: string(event.Key.Condition),
		Status:    string(event.Status),
		Severity:  event.Severity,
		Title:     event.Title,
		Message:   event.Message,
		Details:   details,
		Timestamp: event.Timestamp.Format(time.RFC3339),
	}
	return postJSON(ctx, w.url, payload)
}

// Slack Block Kit structures
type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func formatSlackBlocks(event Event) slackPayload {
	emoji := "🚨"
	if event.Status == StatusResolved {
		emoji = "💚"
	}

	header := fmt.Sprintf("%s %s", emoji, event.Title)
	fields := []slackText{
		{Type: "mrkdwn", Text: fmt.Sprintf("*Service:*\n%s", event.Key.Service)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Condition:*\n%s", event.Key.Condition)},
	}
	for _, detail := range event.Details {
		fields = append(fields, slackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%s", detail.Label, detail.Value)})
	}

	return slackPayload{
		Blocks: []slackBlock{
			{
				Type: "header",
				Text: &slackText{Type: "plain_text", Text: header},
			},
			{
				Type:   "section",
				Fields: fields,
			},
			{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: event.Message},
			},
		},
	}
}

type SlackNotifier struct {
	webhook string
}

func (s *SlackNotifier) Notify(ctx context.Context, event Event) error {
	if s.webhook == "" {
		return nil
	}
	payload := formatSlackBlocks(event)
	return postJSON(ctx, s.webhook, payload)
}

// Discord embed structures
type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
	Timestamp   string         `json:"timestamp"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

func formatDiscordEmbed(event Event) discordPayload {
	emoji := "🚨"
	color := 0xFF0000 // red
	if event.Status == StatusResolved {
		emoji = "💚"
		color = 0x00FF00 // green
	}

	title := fmt.Sprintf("%s %s", emoji, event.Title)

	fields := []discordField{
		{Name: "Service", Value: event.Key.Service, Inline: true},
		{Name: "Condition", Value: string(event.Key.Condition), Inline: true},
	}
	for _, detail := range event.Details {
		fields = append(fields, discordField{Name: detail.Label, Value: detail.Value, Inline: false})
	}

	return discordPayload{
		Embeds: []discordEmbed{{
			Title:       title,
			Description: event.Message,
			Color:       color,
			Fields:      fields,
			Timestamp:   event.Timestamp.Format(time.RFC3339),
		}},
	}
}

type DiscordNotifier struct {
	webhook string
}

func (d *DiscordNotifier) Notify(ctx context.Context, event Event) error {
	if d.webhook == "" {
		return nil
	}
	payload := formatDiscordEmbed(event)
	return postJSON(ctx, d.webhook, payload)
}

func formatTelegramHTML(event Event) string {
	emoji := "🚨"
	if event.Status == StatusResolved {
		emoji = "💚"
	}
	message := fmt.Sprintf(
		"<b>%s %s</b>\n\n<b>Service:</b> %s\n<b>Condition:</b> %s",
		emoji, event.Title, event.Key.Service, event.Key.Condition,
	)
	for _, detail := range event.Details {
		message += fmt.Sprintf("\n<b>%s:</b> %s", detail.Label, detail.Value)
	}
	message += fmt.Sprintf("\n\n%s", event.Message)

	return message
}

type TelegramNotifier struct {
	apiKey  string
	channel string
}

func (t *TelegramNotifier) Notify(ctx context.Context, event Event) error {
	if t.apiKey == "" || t.channel == "" {
		return nil
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.apiKey)
	payload := map[string]string{
		"chat_id":    t.channel,
		"text":       formatTelegramHTML(event),
		"parse_mode": "HTML",
	}
	return postJSON(ctx, url, payload)
}

func postJSON(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/domain"
	"github.com/Boukadre/appweb-SOC-IA/internal/core/ports"
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

// maxSlackLines bounds the summary section of a message.
const maxSlackLines = 5

type SlackNotifier struct {
	botToken    string
	channel     string
	mentionTeam string
	apiURL      string
	httpClient  *http.Client
}

func NewSlackNotifier(botToken, channel, mentionTeam string) *SlackNotifier {
	return &SlackNotifier{
		botToken:    botToken,
		channel:     channel,
		mentionTeam: mentionTeam,
		apiURL:      slackPostMessageURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// PublishAlert posts a formatted alert to the configured channel.
func (s *SlackNotifier) PublishAlert(ctx context.Context, alert ports.Alert) error {
	payload := SlackMessage{
		Channel: s.channel,
		Blocks:  s.buildAlertBlocks(alert),
		Text:    fmt.Sprintf("⚠️ %s %s result for %s", strings.ToUpper(string(alert.Tier)), kindTitle(alert.Kind), alert.Target),
	}
	return s.sendMessage(ctx, payload)
}

var tierEmoji = map[domain.ThreatLevel]string{
	domain.LevelCritical: "🔴",
	domain.LevelHigh:     "🟠",
	domain.LevelMedium:   "🟡",
	domain.LevelLow:      "🟢",
}

func kindTitle(k domain.Kind) string {
	switch k {
	case domain.KindNetworkScan:
		return "network scan"
	case domain.KindAuthLog:
		return "auth log audit"
	case domain.KindPhishing:
		return "phishing analysis"
	case domain.KindCVEScan:
		return "vulnerability scan"
	default:
		return string(k)
	}
}

func (s *SlackNotifier) buildAlertBlocks(alert ports.Alert) []SlackBlock {
	emoji := tierEmoji[alert.Tier]
	if emoji == "" {
		emoji = "⚠️"
	}

	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: fmt.Sprintf("%s %s Severity: %s", emoji, strings.ToUpper(string(alert.Tier)), kindTitle(alert.Kind)),
			},
		},
		{
			Type: "section",
			Fields: []SlackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Record*\n`%s`", alert.RecordID)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Target*\n%s", alert.Target)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Confidence*\n%.0f%%", alert.Confidence*100)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Time*\n%s", alert.Timestamp.UTC().Format(time.RFC3339))},
			},
		},
		{Type: "divider"},
	}

	if len(alert.Summary) > 0 {
		var sb strings.Builder
		sb.WriteString("*🔍 Indicators*\n")
		for i, line := range alert.Summary {
			if i >= maxSlackLines {
				sb.WriteString(fmt.Sprintf("_...and %d more_\n", len(alert.Summary)-maxSlackLines))
				break
			}
			sb.WriteString("• " + line + "\n")
		}
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{Type: "mrkdwn", Text: sb.String()},
		})
	}

	if s.mentionTeam != "" {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("🔔 %s", s.mentionTeam),
			},
		})
	}

	return blocks
}

// Send message to Slack
func (s *SlackNotifier) sendMessage(ctx context.Context, msg SlackMessage) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned status %d", resp.StatusCode)
	}

	// Slack reports most failures with 200 and ok=false
	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("slack API error: %s", result.Error)
	}

	return nil
}

// Slack API structures

type SlackMessage struct {
	Channel string       `json:"channel"`
	Blocks  []SlackBlock `json:"blocks"`
	Text    string       `json:"text"` // Fallback text
}

type SlackBlock struct {
	Type     string      `json:"type"`
	Text     *SlackText  `json:"text,omitempty"`
	Fields   []SlackText `json:"fields,omitempty"`
	Elements []SlackText `json:"elements,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

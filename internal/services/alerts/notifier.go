package alerts

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gen2brain/beeep"
	"github.com/slack-go/slack"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

// Message is a rendered notification.
type Message struct {
	Title        string
	Alerts       []models.Alert
	CheckedAt    time.Time
	DashboardURL string
	Test         bool
}

// Notifier delivers a message to one sink.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// SlackNotifier posts Block Kit messages to an incoming webhook.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewSlackNotifier creates a notifier for webhookURL. A nil client gets a
// ten second timeout.
func NewSlackNotifier(webhookURL string, httpClient *http.Client) *SlackNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &SlackNotifier{webhookURL: webhookURL, httpClient: httpClient}
}

// Notify posts msg. Non-2xx responses are returned as errors.
func (n *SlackNotifier) Notify(ctx context.Context, msg Message) error {
	payload := &slack.WebhookMessage{
		Text:   fallbackText(msg),
		Blocks: &slack.Blocks{BlockSet: slackBlocks(msg)},
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.httpClient, payload); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}

func slackBlocks(msg Message) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, msg.Title, true, false)),
	}

	if msg.Test {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType,
				"This is a test notification. Threshold alerts will be delivered to this channel.", false, false),
			nil, nil,
		))
	}

	for _, a := range msg.Alerts {
		fields := []*slack.TextBlockObject{
			slack.NewTextBlockObject(slack.MarkdownType, "*Current*\n"+FormatValue(a.MetricKey, a.Current), false, false),
			slack.NewTextBlockObject(slack.MarkdownType, "*Threshold*\n"+FormatValue(a.MetricKey, a.Threshold), false, false),
		}
		text := fmt.Sprintf("%s *%s* is at *%.1f%%* of its threshold", severityEmoji(a.Percentage), a.Name, a.Percentage)
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, text, false, false),
			fields, nil,
		))
	}

	blocks = append(blocks, slack.NewDividerBlock())
	blocks = append(blocks, slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType, "Checked at "+msg.CheckedAt.UTC().Format("2006-01-02 15:04 UTC"), false, false),
	))

	if msg.DashboardURL != "" {
		button := slack.NewButtonBlockElement("open_dashboard", "open",
			slack.NewTextBlockObject(slack.PlainTextType, "Open dashboard", false, false),
		).WithURL(msg.DashboardURL)
		blocks = append(blocks, slack.NewActionBlock("dashboard", button))
	}

	return blocks
}

func severityEmoji(pct float64) string {
	if pct >= 100 {
		return ":red_circle:"
	}
	return ":large_orange_circle:"
}

// fallbackText is shown by clients that do not render blocks.
func fallbackText(msg Message) string {
	if len(msg.Alerts) == 0 {
		return msg.Title
	}
	names := make([]string, len(msg.Alerts))
	for i, a := range msg.Alerts {
		names[i] = fmt.Sprintf("%s %.1f%%", a.Name, a.Percentage)
	}
	return msg.Title + ": " + strings.Join(names, ", ")
}

// DesktopNotifier raises a local desktop notification.
type DesktopNotifier struct{}

// Notify shows one notification summarizing msg.
func (DesktopNotifier) Notify(_ context.Context, msg Message) error {
	body := "Threshold notifications are working."
	if len(msg.Alerts) > 0 {
		lines := make([]string, len(msg.Alerts))
		for i, a := range msg.Alerts {
			lines[i] = fmt.Sprintf("%s: %.1f%% (%s of %s)", a.Name, a.Percentage,
				FormatValue(a.MetricKey, a.Current), FormatValue(a.MetricKey, a.Threshold))
		}
		body = strings.Join(lines, "\n")
	}
	return beeep.Notify(msg.Title, body, "")
}

// FormatValue renders a metric value in display units.
func FormatValue(metricKey string, v float64) string {
	if metricKey == MetricBandwidth {
		return humanize.IBytes(uint64(v))
	}
	return humanize.Comma(int64(v))
}

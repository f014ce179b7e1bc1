package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/slack-go/slack"
)

// SlackOptions configures the webhook message.
type SlackOptions struct {
	// DatabaseID adds a button linking to the Notion database when set.
	DatabaseID string
	// DashboardURL adds a dashboard button when set.
	DashboardURL string
	// Location formats the run time; defaults to UTC.
	Location   *time.Location
	HTTPClient *http.Client
}

// Slack posts run summaries to an incoming webhook.
type Slack struct {
	webhookURL string
	opts       SlackOptions
}

func NewSlack(webhookURL string, opts SlackOptions) *Slack {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Slack{webhookURL: webhookURL, opts: opts}
}

func (s *Slack) NotifyRun(ctx context.Context, r Report) error {
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.opts.HTTPClient, s.Message(r)); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}

// Message renders the webhook payload for r.
func (s *Slack) Message(r Report) *slack.WebhookMessage {
	header := "💰 예산 데이터 동기화 완료"
	if r.Stats.HasErrors() {
		header = "⚠️ 예산 데이터 동기화 완료 (오류 포함)"
	}
	at := r.FinishedAt.In(s.opts.Location).Format("2006-01-02 15:04")

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*업데이트:* %d건", r.Stats.Updated), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*신규생성:* %d건", r.Stats.Created), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*오류:* %d건", r.Stats.Errors), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*시간:* %s", at), false, false),
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, header, true, false)),
		slack.NewSectionBlock(nil, fields, nil),
	}
	if len(r.Stats.Failed) > 0 {
		text := failedItemsText(r.Stats.Failed)
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil))
	}
	if buttons := s.buttons(); len(buttons) > 0 {
		blocks = append(blocks, slack.NewActionBlock("links", buttons...))
	}

	return &slack.WebhookMessage{
		Text: fmt.Sprintf("%s: 업데이트 %d건, 신규 %d건, 오류 %d건",
			header, r.Stats.Updated, r.Stats.Created, r.Stats.Errors),
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
}

// maxSectionText is the limit Slack puts on a section's text.
const maxSectionText = 3000

// failedItemsText lists failed item names, cut short with a count of the
// rest when the list would not fit in one section.
func failedItemsText(names []string) string {
	const prefix = "*실패 항목:* "
	// room for the "… 외 N건" suffix
	budget := maxSectionText - utf8.RuneCountInString(prefix) - 16

	var b strings.Builder
	b.WriteString(prefix)
	used := 0
	for i, name := range names {
		part := name
		if i > 0 {
			part = ", " + name
		}
		n := utf8.RuneCountInString(part)
		if used+n > budget {
			fmt.Fprintf(&b, " … 외 %d건", len(names)-i)
			break
		}
		b.WriteString(part)
		used += n
	}
	return b.String()
}

func (s *Slack) buttons() []slack.BlockElement {
	var out []slack.BlockElement
	if s.opts.DatabaseID != "" {
		b := slack.NewButtonBlockElement("open_notion", "notion",
			slack.NewTextBlockObject(slack.PlainTextType, "📊 Notion에서 보기", true, false))
		b.URL = NotionURL(s.opts.DatabaseID)
		out = append(out, b)
	}
	if s.opts.DashboardURL != "" {
		b := slack.NewButtonBlockElement("open_dashboard", "dashboard",
			slack.NewTextBlockObject(slack.PlainTextType, "📈 대시보드 보기", true, false))
		b.URL = s.opts.DashboardURL
		out = append(out, b)
	}
	return out
}

// NotionURL is the browser link of a database id.
func NotionURL(databaseID string) string {
	return "https://www.notion.so/" + strings.ReplaceAll(databaseID, "-", "")
}

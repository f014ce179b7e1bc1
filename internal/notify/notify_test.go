package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bms/internal/amqp"
	"bms/internal/core"
)

func sampleReport() Report {
	return Report{
		RunID:      "run-1",
		Trigger:    "cli",
		Stats:      core.SyncStats{Updated: 10, Created: 2, Errors: 1, Failed: []string{"출장비"}},
		StartedAt:  time.Date(2025, 3, 4, 0, 59, 0, 0, time.UTC),
		FinishedAt: time.Date(2025, 3, 4, 1, 0, 0, 0, time.UTC),
	}
}

func TestSlackNotifyRun(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	seoul := time.FixedZone("KST", 9*3600)
	s := NewSlack(srv.URL, SlackOptions{
		DatabaseID:   "1234-abcd-5678",
		DashboardURL: "https://dash.example/budget",
		Location:     seoul,
	})
	require.NoError(t, s.NotifyRun(context.Background(), sampleReport()))

	blocks, ok := body["blocks"].([]any)
	require.True(t, ok, "payload has blocks: %v", body)
	// header, fields, failed items, buttons
	require.Len(t, blocks, 4)

	raw, _ := json.Marshal(body)
	text := string(raw)
	assert.Contains(t, text, "*업데이트:* 10건")
	assert.Contains(t, text, "*신규생성:* 2건")
	assert.Contains(t, text, "*오류:* 1건")
	assert.Contains(t, text, "*시간:* 2025-03-04 10:00")
	assert.Contains(t, text, "https://www.notion.so/1234abcd5678")
	assert.Contains(t, text, "https://dash.example/budget")
	assert.Contains(t, text, "출장비")
}

func TestSlackMessageWithoutLinks(t *testing.T) {
	r := sampleReport()
	r.Stats = core.SyncStats{Updated: 3}
	msg := NewSlack("http://unused", SlackOptions{}).Message(r)
	require.NotNil(t, msg.Blocks)
	assert.Len(t, msg.Blocks.BlockSet, 2)
	assert.Contains(t, msg.Text, "💰 예산 데이터 동기화 완료")
}

func TestSlackFailedItemsFitInOneSection(t *testing.T) {
	r := sampleReport()
	r.Stats.Failed = nil
	for i := 0; i < 400; i++ {
		r.Stats.Failed = append(r.Stats.Failed, fmt.Sprintf("연구장비 유지보수 항목 %03d", i))
	}
	r.Stats.Errors = len(r.Stats.Failed)

	msg := NewSlack("http://unused", SlackOptions{}).Message(r)
	require.Len(t, msg.Blocks.BlockSet, 3)
	section, ok := msg.Blocks.BlockSet[2].(*slack.SectionBlock)
	require.True(t, ok)

	text := section.Text.Text
	assert.LessOrEqual(t, utf8.RuneCountInString(text), maxSectionText)
	assert.Contains(t, text, "연구장비 유지보수 항목 000")
	assert.NotContains(t, text, "항목 399")
	assert.Regexp(t, `… 외 \d+건$`, text)
}

func TestFailedItemsTextShortList(t *testing.T) {
	assert.Equal(t, "*실패 항목:* 출장비, 회의비", failedItemsText([]string{"출장비", "회의비"}))
}

func TestSlackWebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewSlack(srv.URL, SlackOptions{}).NotifyRun(context.Background(), sampleReport())
	assert.Error(t, err)
}

type fakePublisher struct {
	got *amqp.SyncCompletedMessage
	err error
}

func (f *fakePublisher) PublishSyncCompleted(_ context.Context, msg *amqp.SyncCompletedMessage) error {
	f.got = msg
	return f.err
}

func TestAMQPNotifier(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, NewAMQP(pub).NotifyRun(context.Background(), sampleReport()))
	require.NotNil(t, pub.got)
	assert.Equal(t, "run-1", pub.got.RunID)
	assert.Equal(t, "failed", pub.got.Status)
	assert.Equal(t, 2, pub.got.Created)
	assert.Equal(t, []string{"출장비"}, pub.got.Failed)

	pub.err = errors.New("channel closed")
	assert.ErrorContains(t, NewAMQP(pub).NotifyRun(context.Background(), sampleReport()), "channel closed")
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) NotifyRun(context.Context, Report) error {
	c.calls++
	return c.err
}

func TestMulti(t *testing.T) {
	a := &countingNotifier{err: errors.New("a down")}
	b := &countingNotifier{}
	err := Multi{a, Noop{}, b}.NotifyRun(context.Background(), Report{})
	assert.ErrorContains(t, err, "a down")
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls, "a failing notifier must not stop the others")

	assert.NoError(t, Multi{}.NotifyRun(context.Background(), Report{}))
	assert.Equal(t, "succeeded", Report{}.Status())
}

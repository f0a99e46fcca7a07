package email

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTeamInvitation(t *testing.T) {
	svc := NewService(&Config{}, logger.NewNop())

	body, err := svc.Render("team_invitation", TeamInvitationData{
		TeamName:  "Acme <Ltd>",
		InvitedBy: "Alice",
		Role:      "member",
		InviteURL: "https://app.test/sign-up?inviteId=7",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Acme &lt;Ltd&gt;")
	assert.Contains(t, body, "<strong>Alice</strong>")
	assert.Contains(t, body, `href="https://app.test/sign-up?inviteId=7"`)

	_, err = svc.Render("missing", nil)
	assert.Error(t, err)
}

func TestSendWithoutHostIsSkipped(t *testing.T) {
	svc := NewService(&Config{}, logger.NewNop())
	assert.False(t, svc.Enabled())
	assert.NoError(t, svc.SendTeamInvitation("a@b.com", TeamInvitationData{TeamName: "Acme"}))
}

func TestBuildMessage(t *testing.T) {
	svc := NewService(&Config{From: "noreply@test", FromName: "Converter"}, logger.NewNop())

	msg := string(svc.buildMessage(&Email{
		To:       []string{"a@b.com", "c@d.com"},
		CC:       []string{"e@f.com"},
		Subject:  "Hello",
		HTMLBody: "<p>hi</p>",
	}))

	assert.True(t, strings.HasPrefix(msg, "From: Converter <noreply@test>\r\n"))
	assert.Contains(t, msg, "To: a@b.com, c@d.com\r\n")
	assert.Contains(t, msg, "Cc: e@f.com\r\n")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n<p>hi</p>")
}

type flakySender struct {
	mu       sync.Mutex
	failures int
	calls    int
	subjects []string
	sent     chan struct{}
}

func (f *flakySender) SendWithTemplate(to []string, subject, templateName string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("smtp unavailable")
	}
	f.subjects = append(f.subjects, subject)
	f.sent <- struct{}{}
	return nil
}

func TestQueueRetriesFailedSends(t *testing.T) {
	sender := &flakySender{failures: 2, sent: make(chan struct{}, 1)}
	q := NewEmailQueue(sender, 1, logger.NewNop())
	q.backoff = time.Millisecond
	defer q.Stop()

	q.QueueTeamInvitation("a@b.com", TeamInvitationData{TeamName: "Acme"})

	select {
	case <-sender.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("email was never delivered")
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, 3, sender.calls)
	assert.Equal(t, []string{"Invitation to join Acme"}, sender.subjects)
}

func TestQueueStopIsIdempotent(t *testing.T) {
	q := NewEmailQueue(&flakySender{sent: make(chan struct{}, 1)}, 2, logger.NewNop())
	q.Stop()
	assert.NotPanics(t, q.Stop)
}

type countingSender struct {
	mu    sync.Mutex
	delay time.Duration
	fail  bool
	calls int
}

func (c *countingSender) SendWithTemplate(to []string, subject, templateName string, data interface{}) error {
	time.Sleep(c.delay)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.fail {
		return errors.New("smtp unavailable")
	}
	return nil
}

func (c *countingSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestStopDeliversBufferedEmails(t *testing.T) {
	sender := &countingSender{delay: 5 * time.Millisecond}
	q := NewEmailQueue(sender, 1, logger.NewNop())

	for i := 0; i < 20; i++ {
		q.QueueTeamInvitation("a@b.com", TeamInvitationData{TeamName: "Acme"})
	}
	q.Stop()

	assert.Equal(t, 20, sender.count())
}

func TestQueueGivesUpAfterThreeAttempts(t *testing.T) {
	sender := &countingSender{fail: true}
	q := NewEmailQueue(sender, 1, logger.NewNop())
	q.backoff = time.Millisecond

	q.QueueTeamInvitation("a@b.com", TeamInvitationData{TeamName: "Acme"})

	require.Eventually(t, func() bool { return sender.count() == maxSendAttempts }, 2*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	q.Stop()
	assert.Equal(t, 3, sender.count())
}

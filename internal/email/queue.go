package email

import (
	"sync"
	"time"

	"github.com/Marga-Ghale/statement-saas/internal/logger"
)

const (
	queueSize       = 1000
	maxSendAttempts = 3
)

// TemplateSender renders and delivers a templated email.
type TemplateSender interface {
	SendWithTemplate(to []string, subject, templateName string, data interface{}) error
}

// ============================================
// Async Email Queue (simple in-memory)
// ============================================

// EmailQueue handles async email sending
type EmailQueue struct {
	sender  TemplateSender
	queue   chan *queuedEmail
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	backoff time.Duration
	log     *logger.Logger
}

type queuedEmail struct {
	to           []string
	subject      string
	templateName string
	data         interface{}
	attempts     int
}

// NewEmailQueue creates a new email queue
func NewEmailQueue(sender TemplateSender, workers int, log *logger.Logger) *EmailQueue {
	if workers < 1 {
		workers = 1
	}
	q := &EmailQueue{
		sender:  sender,
		queue:   make(chan *queuedEmail, queueSize),
		done:    make(chan struct{}),
		backoff: 2 * time.Second,
		log:     log,
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	return q
}

func (q *EmailQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case email := <-q.queue:
			q.deliver(email)
		case <-q.done:
			q.drain()
			return
		}
	}
}

// drain delivers whatever is still buffered once the queue is stopped.
func (q *EmailQueue) drain() {
	for {
		select {
		case email := <-q.queue:
			q.deliver(email)
		default:
			return
		}
	}
}

func (q *EmailQueue) deliver(email *queuedEmail) {
	err := q.sender.SendWithTemplate(email.to, email.subject, email.templateName, email.data)
	if err == nil {
		return
	}

	email.attempts++
	if email.attempts >= maxSendAttempts {
		q.log.Error("[Email] giving up", "to", email.to, "template", email.templateName, "attempts", email.attempts, "error", err)
		return
	}
	q.log.Warn("[Email] send failed, retrying", "to", email.to, "attempt", email.attempts, "error", err)

	select {
	case <-time.After(q.backoff * time.Duration(email.attempts)):
	case <-q.done:
		// Stopping: retry once more inline instead of requeueing.
		if err := q.sender.SendWithTemplate(email.to, email.subject, email.templateName, email.data); err != nil {
			q.log.Error("[Email] dropped on shutdown", "to", email.to, "template", email.templateName, "error", err)
		}
		return
	}
	q.push(email)
}

// push queues without blocking the caller. A full queue drops the email.
func (q *EmailQueue) push(email *queuedEmail) {
	select {
	case q.queue <- email:
	default:
		q.log.Error("[Email] queue full, dropping email", "to", email.to, "template", email.templateName)
	}
}

// Enqueue adds an email to the queue
func (q *EmailQueue) Enqueue(to []string, subject, templateName string, data interface{}) {
	q.push(&queuedEmail{
		to:           to,
		subject:      subject,
		templateName: templateName,
		data:         data,
	})
}

// QueueTeamInvitation sends a team invitation email in the background.
func (q *EmailQueue) QueueTeamInvitation(to string, data TeamInvitationData) {
	q.Enqueue([]string{to}, teamInvitationSubject(data), "team_invitation", data)
}

// Stop stops the workers once the buffered emails are delivered and waits
// for them to exit.
func (q *EmailQueue) Stop() {
	q.once.Do(func() { close(q.done) })
	q.wg.Wait()
}

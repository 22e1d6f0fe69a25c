package notify

import (
	"context"
	"fmt"
	"time"

	json "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"

	"github.com/xkilldash9x/patrol-cli/api/schemas"
)

// publisher is the part of *nats.Conn the transport uses.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATS publishes visit results as JSON session events on <subject>.<status>.
// Free text, such as the start-up notice, goes to the bare subject. It has no
// attachment support.
type NATS struct {
	pub     publisher
	subject string
	close   func()
}

var (
	_ Transport    = (*NATS)(nil)
	_ ResultSender = (*NATS)(nil)
)

// Message is the payload published for free text.
type Message struct {
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// SessionEvent is the payload published for a finished visit.
type SessionEvent struct {
	ID            string    `json:"id"`
	Label         string    `json:"label"`
	Destination   string    `json:"destination"`
	Query         string    `json:"query,omitempty"`
	Profile       string    `json:"profile,omitempty"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Artifact      string    `json:"artifact,omitempty"`
	FinalURL      string    `json:"final_url,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// NewSessionEvent flattens a result into the published event.
func NewSessionEvent(r schemas.SessionResult) SessionEvent {
	ev := SessionEvent{
		ID:            r.ID,
		Label:         r.Target.Label,
		Destination:   r.Target.Destination,
		Query:         r.Target.Query,
		Profile:       r.Profile,
		Status:        string(r.Status),
		FailureReason: r.FailureReason,
		FinalURL:      r.FinalURL,
		StartedAt:     r.StartedAt.UTC(),
		FinishedAt:    r.FinishedAt.UTC(),
	}
	if r.Artifact != nil {
		ev.Artifact = r.Artifact.FileName
	}
	return ev
}

// DialNATS connects to url and publishes on subject.
func DialNATS(url, subject, name string, timeout time.Duration) (*NATS, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATS{pub: conn, subject: subject, close: conn.Close}, nil
}

func (n *NATS) Name() string { return "nats" }

func (n *NATS) SendText(ctx context.Context, text string) (Response, error) {
	return n.publish(ctx, n.subject, Message{Text: text, SentAt: time.Now().UTC()})
}

// SendResult publishes the session event on <subject>.<status>.
func (n *NATS) SendResult(ctx context.Context, r schemas.SessionResult) (Response, error) {
	return n.publish(ctx, n.subject+"."+string(r.Status), NewSessionEvent(r))
}

func (n *NATS) publish(ctx context.Context, subject string, payload any) (Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("nats: encode message: %w", err)
	}
	if err := n.pub.Publish(subject, data); err != nil {
		return Response{}, fmt.Errorf("nats: publish: %w", err)
	}
	if err := n.pub.FlushWithContext(ctx); err != nil {
		return Response{OK: false, Status: "unflushed", Body: err.Error()}, nil
	}
	return Response{OK: true, Status: "published"}, nil
}

// Close closes the connection.
func (n *NATS) Close() {
	if n.close != nil {
		n.close()
	}
}

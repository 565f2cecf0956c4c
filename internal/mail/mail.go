// Package mail defines the email message model and delivery backends. The
// API server never talks SMTP directly: it serializes messages onto the job
// queue and the worker delivers them.
package mail

import "context"

// JobKind is the queue job kind carrying a batch of messages.
const JobKind = "send_emails"

// Message is a flattened, serializable email message.
type Message struct {
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	From    string   `json:"from"`
	To      []string `json:"to,omitempty"`
	CC      []string `json:"cc,omitempty"`
	BCC     []string `json:"bcc,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// Sender delivers a batch of messages.
type Sender interface {
	Send(ctx context.Context, messages []Message) error
}

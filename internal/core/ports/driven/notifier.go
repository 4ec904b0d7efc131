package driven

import "context"

// Notifier delivers externally-visible notifications (webhooks, chat
// messages). Quiet-hours suppression is applied by the scheduler at
// this boundary only; store writes are never gated by it.
type Notifier interface {
	// Notify sends one notification.
	Notify(ctx context.Context, n Notification) error
}

// Notification is one outbound message.
type Notification struct {
	// Agent is the agent class that produced the notification.
	Agent string

	// Title is a short summary line.
	Title string

	// Body is the message text.
	Body string

	// Severity mirrors observation severity when applicable.
	Severity string
}

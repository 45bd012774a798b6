package sender

import "context"

// Message is one transactional email: a provider template, a recipient and
// the variables the template renders.
type Message struct {
	TemplateID    string
	Email         string
	DataVariables map[string]any
}

// Sender delivers transactional email through a specific provider.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}

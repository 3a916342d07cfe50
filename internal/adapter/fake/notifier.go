package fake

import (
	"sync"

	"clusterlink/internal/notify"
)

// Notifier records shown messages.
type Notifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *Notifier) Show(msg notify.Message) {
	n.mu.Lock()
	n.messages = append(n.messages, msg)
	n.mu.Unlock()
}

func (n *Notifier) Messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.messages...)
}

// Texts returns the text of every shown message.
func (n *Notifier) Texts() []string {
	msgs := n.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

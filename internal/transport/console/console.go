// Package console is a terminal transport used by the chat simulator.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"barbearia-twowell/internal/models"
)

// Transport prints bot output to w and reads user lines from r.
type Transport struct {
	mu   sync.Mutex
	out  io.Writer
	name string
}

// New returns a console transport. name is reported as the contact's display
// name; leave it empty to exercise the fallback.
func New(out io.Writer, name string) *Transport {
	return &Transport{out: out, name: name}
}

func (t *Transport) SendTyping(_ context.Context, _ models.ChatHandle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintln(t.out, "bot está digitando...")
	return err
}

func (t *Transport) SendText(_ context.Context, _ models.ChatHandle, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.out, "bot> %s\n\n", strings.ReplaceAll(text, "\n", "\n     "))
	return err
}

func (t *Transport) DisplayName(_ context.Context, _ models.ChatHandle) (string, bool) {
	return t.name, t.name != ""
}

// ReadMessages turns each line of r into an InboundMessage from senderID and
// passes it to fn until r is exhausted or ctx is done.
func ReadMessages(ctx context.Context, r io.Reader, senderID string, fn func(models.InboundMessage) error) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := models.InboundMessage{
			SenderID: senderID,
			Body:     scanner.Text(),
			Chat:     models.ChatHandle{ChatID: senderID},
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
	return scanner.Err()
}

package mqtt

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/robotalks/firmata.go/pkg/framework"
)

// Stream is an io.ReadWriteCloser tunneled over two topics. Bytes
// published by the board side to SubTopic are read, writes are published
// to PubTopic.
type Stream struct {
	Queue    *Queue
	SubTopic string
	PubTopic string
	// WriteTimeout bounds the wait for a publish to be acknowledged.
	WriteTimeout time.Duration

	sub     *Subscription
	msgCh   chan []byte
	pending []byte
	done    chan struct{}
	once    sync.Once
}

// DefaultWriteTimeout is the default Stream.WriteTimeout.
const DefaultWriteTimeout = 5 * time.Second

// NewStream creates a Stream using the topic convention of a board
// bridge: the bridge publishes to <board>/msg and reads <board>/cmd.
func NewStream(q *Queue, board string) *Stream {
	return &Stream{
		Queue:        q,
		SubTopic:     board + "/msg",
		PubTopic:     board + "/cmd",
		WriteTimeout: DefaultWriteTimeout,
		msgCh:        make(chan []byte, 16),
		done:         make(chan struct{}),
	}
}

// Dial connects to the broker and subscribes the board topic. The board
// name is the board query parameter of the URL, e.g.
// mqtt://localhost:1883/firmata/?board=uno.
func Dial(ctx context.Context, brokerURL string) (*Stream, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, err
	}
	board := u.Query().Get("board")
	if board == "" {
		return nil, fmt.Errorf("missing board in %q", brokerURL)
	}
	q, err := NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if err := WaitToken(ctx, q.Connect()); err != nil {
		q.Close()
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	s := NewStream(q, board)
	if err := WaitToken(ctx, s.Start().Token); err != nil {
		q.Close()
		return nil, fmt.Errorf("mqtt subscribe: %w", err)
	}
	return s, nil
}

// Start subscribes SubTopic.
func (s *Stream) Start() *Subscription {
	s.sub = s.Queue.Sub(s.SubTopic, s.handleMsg)
	return s.sub
}

func (s *Stream) handleMsg(_ string, payload []byte) {
	select {
	case s.msgCh <- append([]byte(nil), payload...):
	case <-s.done:
	}
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		select {
		case s.pending = <-s.msgCh:
		case <-s.done:
			return 0, io.EOF
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Write implements io.Writer. Each write is one MQTT message.
func (s *Stream) Write(p []byte) (int, error) {
	select {
	case <-s.done:
		return 0, io.ErrClosedPipe
	default:
	}
	token := s.Queue.Pub(s.PubTopic, p)
	if !token.WaitTimeout(s.WriteTimeout) {
		return 0, fmt.Errorf("publish %s: timeout", s.PubTopic)
	}
	if err := token.Error(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close unsubscribes and disconnects the queue.
func (s *Stream) Close() error {
	var errs framework.AggregatedError
	s.once.Do(func() {
		close(s.done)
		if s.sub != nil {
			errs.Add(s.sub.Close())
		}
		errs.Add(s.Queue.Close())
	})
	return errs.Aggregate()
}

// WaitToken waits for token until ctx is done.
func WaitToken(ctx context.Context, token paho.Token) error {
	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-done:
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

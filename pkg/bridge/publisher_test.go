package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/robotalks/firmata.go/pkg/firmata"
	"github.com/robotalks/firmata.go/pkg/firmata/firmatatest"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	payload []byte
	retain  bool
}

type fakePubSub struct {
	lock sync.Mutex
	msgs []published
	err  error
	ch   chan published
}

type errToken struct {
	paho.DummyToken
	err error
}

func (t *errToken) Error() error { return t.err }

func (f *fakePubSub) PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token {
	msg := published{topic: topic, payload: payload, retain: retain}
	f.lock.Lock()
	f.msgs = append(f.msgs, msg)
	f.lock.Unlock()
	if f.ch != nil {
		f.ch <- msg
	}
	return &errToken{err: f.err}
}

func decodeState(t *testing.T, payload []byte) firmata.BoardState {
	var state firmata.BoardState
	require.NoError(t, json.Unmarshal(payload, &state))
	return state
}

func TestPublish(t *testing.T) {
	ps := &fakePubSub{}
	p := NewPublisher(ps, nil, "uno")
	state := firmata.BoardState{FirmwareName: "T", FirmwareVersion: "2.5"}
	require.NoError(t, p.Publish(state))
	require.Len(t, ps.msgs, 1)
	require.Equal(t, "uno/state", ps.msgs[0].topic)
	require.True(t, ps.msgs[0].retain)
	require.Equal(t, "T", decodeState(t, ps.msgs[0].payload).FirmwareName)

	ps.err = errors.New("broken")
	require.Error(t, p.Publish(state))
}

func TestPublisherRun(t *testing.T) {
	board := firmatatest.Start(t)
	ps := &fakePubSub{ch: make(chan published, 16)}
	p := NewPublisher(ps, board.Driver.Handle(), "uno")
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(context.Background()) }()

	next := func() firmata.BoardState {
		select {
		case msg := <-ps.ch:
			return decodeState(t, msg.payload)
		case <-time.After(firmatatest.Timeout):
			t.Fatal("nothing published")
			return firmata.BoardState{}
		}
	}
	state := next()
	require.Len(t, state.Pins, 4)
	require.Equal(t, "2.5", state.FirmwareVersion)

	board.Conn.Inject(0xE0, 0x10, 0x01) // A0 = 144
	require.Equal(t, uint16(144), next().Pins[2].Value)

	board.Stop()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(firmatatest.Timeout):
		t.Fatal("publisher didn't stop")
	}
}

func TestPublisherRunCanceled(t *testing.T) {
	board := firmatatest.Start(t)
	ps := &fakePubSub{ch: make(chan published, 16)}
	p := NewPublisher(ps, board.Driver.Handle(), "uno")
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()
	<-ps.ch
	cancel()
	select {
	case err := <-runErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(firmatatest.Timeout):
		t.Fatal("publisher didn't stop")
	}
}

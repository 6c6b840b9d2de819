// Package bridge publishes board snapshots to an MQTT broker.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/robotalks/firmata.go/pkg/firmata"
	"github.com/robotalks/firmata.go/pkg/firmata/driver"
	"github.com/robotalks/firmata.go/pkg/transport/mqtt"
)

// PubSub is the part of mqtt.Queue used for publishing.
type PubSub interface {
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
}

// StateTopic is the topic snapshots of a board are published to,
// relative to the queue prefix.
func StateTopic(board string) string {
	return board + "/state"
}

// Publisher publishes every new snapshot of a driver as retained JSON.
type Publisher struct {
	PubSub  PubSub
	Handle  *driver.Handle
	Topic   string
	QoS     byte
	Timeout time.Duration
}

// DefaultTimeout bounds waiting for a publish.
const DefaultTimeout = 5 * time.Second

// NewPublisher creates a Publisher for board.
func NewPublisher(ps PubSub, h *driver.Handle, board string) *Publisher {
	return &Publisher{
		PubSub:  ps,
		Handle:  h,
		Topic:   StateTopic(board),
		QoS:     1,
		Timeout: DefaultTimeout,
	}
}

// Name implements framework.Named.
func (p *Publisher) Name() string {
	return "mqtt-publisher"
}

// Run implements framework.Runnable. It returns when ctx is done or after
// the final snapshot of a stopped driver is published. The handle is
// closed on return.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.Handle.Close()
	for {
		state, err := p.Handle.Changed(ctx)
		if err != nil && !errors.Is(err, firmata.ErrClosed) {
			return err
		}
		if perr := p.Publish(state); perr != nil {
			glog.Warningf("bridge: %v", perr)
		}
		if err != nil {
			return nil
		}
	}
}

// Publish publishes one snapshot.
func (p *Publisher) Publish(state firmata.BoardState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	glog.V(4).Infof("bridge: PUB %s %d bytes", p.Topic, len(payload))
	token := p.PubSub.PubWith(p.Topic, payload, p.QoS, true)
	if p.Timeout > 0 && !token.WaitTimeout(p.Timeout) {
		return fmt.Errorf("publish %s: timeout", p.Topic)
	}
	return token.Error()
}

// Connect connects a queue from a broker URL and creates a Publisher on it.
// The caller closes the returned queue.
func Connect(ctx context.Context, brokerURL, board string, h *driver.Handle) (*Publisher, *mqtt.Queue, error) {
	q, err := mqtt.NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, nil, err
	}
	if err := mqtt.WaitToken(ctx, q.Connect()); err != nil {
		q.Close()
		return nil, nil, fmt.Errorf("mqtt connect %s: %w", brokerURL, err)
	}
	glog.Infof("bridge: publishing %s%s", q.TopicPrefix, StateTopic(board))
	return NewPublisher(q, h, board), q, nil
}

package telemetry

import (
	"context"
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	fx "github.com/robotalks/stepctl/pkg/framework"
)

// Topic suffixes under the device topic.
const (
	EventsTopic = "events"
	MetaTopic   = "meta"
)

// DefaultRetryInterval is the wait between connect attempts.
const DefaultRetryInterval = 5 * time.Second

// Meta describes the device, published retained on MetaTopic.
type Meta struct {
	ID      string    `json:"id"`
	Version string    `json:"version,omitempty"`
	Backend string    `json:"backend,omitempty"`
	Port    string    `json:"port,omitempty"`
	Started time.Time `json:"started"`
}

// Sink publishes payloads, implemented by Queue.
type Sink interface {
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
}

// Publisher is a loop controller converting loop messages into Events
// published to <device-id>/events.
type Publisher struct {
	Sink Sink
	Meta Meta

	queue         *Queue
	retryInterval time.Duration
}

// NewPublisher creates a Publisher connected through the broker URL.
// An empty retained meta is registered as will message so the device
// disappears from monitors when the connection drops.
func NewPublisher(brokerURL string, meta Meta) (*Publisher, error) {
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.SetClientID("stepctl-" + meta.ID)
	}
	opts.SetBinaryWill(prefix+meta.ID+"/"+MetaTopic, nil, 1, true)
	q := NewQueue(opts, prefix)
	p := &Publisher{Sink: q, Meta: meta, queue: q, retryInterval: DefaultRetryInterval}
	q.OnConnect = func(*Queue) { p.publishMeta() }
	return p, nil
}

// Name implements framework.Named.
func (p *Publisher) Name() string {
	return "telemetry-publisher"
}

// AddToLoop implements LoopAdder.
func (p *Publisher) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvReport, p)
}

// Topic returns the device topic with suffix.
func (p *Publisher) Topic(suffix string) string {
	return p.Meta.ID + "/" + suffix
}

// Control implements Controller.
func (p *Publisher) Control(cc fx.ControlContext) error {
	cc.Messages().Each(func(msg fx.Message) bool {
		if ev := EventFromMessage(msg, cc.Time()); ev != nil {
			p.Publish(ev)
		}
		return false
	})
	return nil
}

// Publish sends an event without waiting for delivery.
func (p *Publisher) Publish(ev *Event) {
	data, err := ev.Encode()
	if err != nil {
		glog.Errorf("encode event %s: %v", ev.Kind, err)
		return
	}
	glog.V(2).Infof("event %s", ev)
	p.Sink.PubWith(p.Topic(EventsTopic), data, 0, false)
}

func (p *Publisher) publishMeta() paho.Token {
	data, err := json.Marshal(&p.Meta)
	if err != nil {
		glog.Errorf("encode meta: %v", err)
		return &paho.DummyToken{}
	}
	return p.Sink.PubWith(p.Topic(MetaTopic), data, 1, true)
}

// Run implements Runnable. It keeps trying to connect until connected,
// and clears the retained meta on shutdown.
func (p *Publisher) Run(ctx context.Context) error {
	if p.queue == nil {
		return nil
	}
	for {
		token := p.queue.Connect()
		if token.Wait() && token.Error() == nil {
			break
		}
		glog.Warningf("mqtt connect failed, will retry: %v", token.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.retryInterval):
		}
	}
	<-ctx.Done()
	p.Sink.PubWith(p.Topic(MetaTopic), nil, 1, true).WaitTimeout(time.Second)
	p.queue.Close()
	return ctx.Err()
}

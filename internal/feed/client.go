package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// initialReconnectWait is the first backoff after a dropped gateway
	// connection; doubles up to maxReconnectWait.
	initialReconnectWait = 5 * time.Second
	maxReconnectWait     = 80 * time.Second

	readTimeout     = 90 * time.Second
	eventBufferSize = 256
)

// Client maintains the websocket connection to the chat gateway and fans
// events out on a single channel, preserving per-channel receipt order.
type Client struct {
	url    string
	events chan Event
	log    logrus.FieldLogger
}

// NewClient returns a client for the gateway event stream at wsURL.
func NewClient(wsURL string, logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		url:    wsURL,
		events: make(chan Event, eventBufferSize),
		log:    logger,
	}
}

// Events returns the read-only event stream. One read loop feeds it, so
// events from the same channel arrive in receipt order.
func (c *Client) Events() <-chan Event { return c.events }

// Run connects and maintains the gateway connection with capped exponential
// backoff. Blocks until ctx is cancelled; the event channel closes on
// return.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)
	backoff := initialReconnectWait

	for {
		err := c.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.log.WithError(err).Warnf("gateway disconnected, reconnecting in %v", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	c.log.Info("connected to chat gateway")

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.WithError(err).Debug("skipping undecodable gateway frame")
			continue
		}
		ev.Message.ChatID = NormalizeChatID(ev.Message.ChatID)

		select {
		case c.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Package retry wraps broker gateway calls with capped, jittered backoff for
// the transient failure class.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hamidju/teletrader/internal/broker"
)

// Config bounds a retried operation.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// DefaultConfig matches the reconnect cadence the rest of the bot uses:
// five-second first backoff, per-operation cap of two minutes.
var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 5 * time.Second,
	MaxBackoff:     30 * time.Second,
	Timeout:        2 * time.Minute,
}

// Client retries broker operations that fail transiently.
type Client struct {
	logger logrus.FieldLogger
	config Config
}

// NewClient returns a retry client. A nil logger falls back to the logrus
// standard logger.
func NewClient(logger logrus.FieldLogger, config ...Config) *Client {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{logger: logger, config: cfg}
}

// Do runs fn, retrying on transient broker errors with growing backoff. Name
// labels the operation in logs. Fatal and logic errors return immediately.
func (c *Client) Do(ctx context.Context, name string, fn func() error) error {
	opCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := opCtx.Err(); err != nil {
			return fmt.Errorf("%s timed out after %v: %w", name, c.config.Timeout, err)
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				c.logger.WithField("op", name).Infof("succeeded on attempt %d", attempt+1)
			}
			return nil
		}
		lastErr = err

		if !broker.IsTransient(err) || attempt == c.config.MaxRetries {
			break
		}

		c.logger.WithField("op", name).Warnf("attempt %d failed transiently, retrying in %v: %v",
			attempt+1, backoff, err)
		select {
		case <-time.After(backoff):
			backoff = c.nextBackoff(backoff)
		case <-opCtx.Done():
			return fmt.Errorf("%s timed out during backoff: %w", name, opCtx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, c.config.MaxRetries+1, lastErr)
}

func (c *Client) nextBackoff(currentBackoff time.Duration) time.Duration {
	backoff := time.Duration(float64(currentBackoff) * 1.5)
	if backoff > c.config.MaxBackoff {
		backoff = c.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			log.Printf("Failed to generate jitter: %v", err)
		} else {
			backoff += time.Duration(jitterVal.Int64())
		}
	}

	return backoff
}

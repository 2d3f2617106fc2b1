package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectConversionCompleted is published once per successful conversion run.
const SubjectConversionCompleted = "tgconv.conversion.completed"

// RunCompleted announces a finished conversion so downstream dataset jobs
// can pick up the new table.
type RunCompleted struct {
	RunID         string `json:"run_id"`
	ChatID        int64  `json:"chat_id"`
	ChatName      string `json:"chat_name"`
	Messages      int    `json:"messages"`
	TextMessages  int    `json:"text_messages"`
	Conversations int    `json:"conversations"`
	Fallbacks     int    `json:"fallbacks"`
	Samples       int    `json:"samples"`
	Output        string `json:"output"`
	SamplesOutput string `json:"samples_output,omitempty"`
	CompletedAt   string `json:"completed_at"`
}

type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("tgconv"),
		nats.Timeout(5 * time.Second),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	// A batch run exits right after publishing; flush so the event is not
	// lost in the client buffer.
	if err := c.conn.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}

func (c *Client) Close() {
	c.conn.Close()
}

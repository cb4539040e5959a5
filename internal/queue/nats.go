// ABOUTME: NATS client wrapper for queue subscriptions
// ABOUTME: Handles connection, queue-group subscriptions for single and batch scans, and shutdown

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/observability"
)

// NATSConfig holds NATS connection configuration.
type NATSConfig struct {
	// NATS server URL.
	URL string

	// Subject to subscribe to for scan requests. Batch requests use Subject + ".batch".
	Subject string

	// Queue group name for load balancing.
	QueueGroup string

	// Connection name for identification.
	Name string

	// Reconnect settings.
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns a configuration with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Subject:       "hikmaai.bytescan.scan",
		QueueGroup:    "bytescan-workers",
		Name:          "hikmaai-bytescan",
		MaxReconnects: -1, // Unlimited.
		ReconnectWait: 2 * time.Second,
	}
}

// BatchSubject returns the subject for batch requests.
func (c NATSConfig) BatchSubject() string {
	return c.Subject + ".batch"
}

// Client wraps the NATS connection and subscriptions.
type Client struct {
	conn    *nats.Conn
	subs    []*nats.Subscription
	handler *Handler
	config  NATSConfig
	logger  *slog.Logger
}

// NewClient creates a new NATS client with the given configuration.
func NewClient(cfg NATSConfig, handler *Handler, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		handler: handler,
		config:  cfg,
		logger:  logger,
	}
}

// Connect establishes the NATS connection.
func (c *Client) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name(c.config.Name),
		nats.MaxReconnects(c.config.MaxReconnects),
		nats.ReconnectWait(c.config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			c.logger.Warn("NATS disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			c.logger.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			c.logger.Error("NATS error",
				slog.Any("error", err),
				slog.String("subject", subject),
			)
		}),
	}

	conn, err := nats.Connect(c.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	c.conn = conn
	c.logger.Info("connected to NATS",
		slog.String("url", observability.RedactURL(conn.ConnectedUrl())),
		slog.String("server_id", conn.ConnectedServerId()),
	)

	return nil
}

// Subscribe starts listening for single and batch scan requests.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("not connected to NATS")
	}

	routes := map[string]func(context.Context, []byte) []byte{
		c.config.Subject:        c.handleScan,
		c.config.BatchSubject(): c.handleBatch,
	}
	for subject, handle := range routes {
		handle := handle
		sub, err := c.conn.QueueSubscribe(subject, c.config.QueueGroup, func(msg *nats.Msg) {
			c.respond(ctx, msg, handle)
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		c.subs = append(c.subs, sub)
		c.logger.Info("subscribed to NATS",
			slog.String("subject", subject),
			slog.String("queue", c.config.QueueGroup),
		)
	}

	return nil
}

func (c *Client) respond(ctx context.Context, msg *nats.Msg, handle func(context.Context, []byte) []byte) {
	ctx, span := observability.StartSpan(ctx, "nats.handle_message",
		trace.WithAttributes(attribute.String("messaging.destination", msg.Subject)),
	)
	defer span.End()

	reply := handle(ctx, msg.Data)
	if msg.Reply == "" || reply == nil {
		return
	}
	if err := msg.Respond(reply); err != nil {
		c.logger.Error("failed to send reply",
			slog.Any("error", err),
			slog.String("subject", msg.Subject),
		)
	}
}

// handleScan decodes a ScanRequest and encodes its reply.
func (c *Client) handleScan(ctx context.Context, data []byte) []byte {
	start := time.Now()

	var req ScanRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.logger.Error("failed to parse scan request", slog.Any("error", err))
		return c.encode(ScanResponse{
			Status:    StatusError,
			Error:     "invalid request format: " + err.Error(),
			ErrorCode: observability.CodeInvalidRequest,
			ScannedAt: time.Now().UTC(),
		})
	}

	ctx, id := observability.EnsureCorrelationID(ctx, req.RequestID)
	if req.RequestID == "" {
		req.RequestID = id.String()
	}

	resp := c.handler.ProcessRequest(ctx, req)

	observability.LogWithContext(ctx, c.logger, slog.LevelInfo, "processed scan request",
		slog.String("request_id", req.RequestID),
		slog.String("file_id", req.FileID),
		slog.String("status", resp.Status),
		slog.Bool("persisted", resp.Persisted),
		slog.Duration("duration", time.Since(start)),
	)

	return c.encode(resp)
}

// handleBatch decodes a BatchScanRequest and encodes its reply.
func (c *Client) handleBatch(ctx context.Context, data []byte) []byte {
	var req BatchScanRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.logger.Error("failed to parse batch request", slog.Any("error", err))
		return c.encode(BatchScanResponse{Results: []ScanResponse{{
			Status:    StatusError,
			Error:     "invalid request format: " + err.Error(),
			ErrorCode: observability.CodeInvalidRequest,
			ScannedAt: time.Now().UTC(),
		}}})
	}

	ctx, id := observability.EnsureCorrelationID(ctx, req.RequestID)
	if req.RequestID == "" {
		req.RequestID = id.String()
	}

	resp := c.handler.ProcessBatch(ctx, req)
	observability.LogWithContext(ctx, c.logger, slog.LevelInfo, "processed batch scan request",
		slog.String("request_id", req.RequestID),
		slog.Int("files", len(req.FileIDs)),
		slog.Float64("total_time_ms", resp.TotalTimeMs),
	)
	return c.encode(resp)
}

func (c *Client) encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to marshal response", slog.Any("error", err))
		return nil
	}
	return data
}

// Close unsubscribes and closes the NATS connection.
func (c *Client) Close() error {
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warn("failed to unsubscribe", slog.Any("error", err))
		}
	}

	if c.conn != nil {
		c.conn.Close()
	}

	return nil
}

// IsConnected returns true if connected to NATS.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

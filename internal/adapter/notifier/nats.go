// Package notifier forwards HIGH and CRITICAL assessments to NATS and Slack.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Boukadre/appweb-SOC-IA/internal/core/ports"
)

// NATSPublisher publishes alerts as JSON on a single subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewNATSPublisher connects to url. The connection reconnects on its own.
func NewNATSPublisher(url, subject string, logger *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("socia-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return NewNATSPublisherFromConn(nc, subject, logger), nil
}

func NewNATSPublisherFromConn(nc *nats.Conn, subject string, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{nc: nc, subject: subject, logger: logger}
}

func (p *NATSPublisher) PublishAlert(ctx context.Context, alert ports.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("Socia-Kind", string(alert.Kind))
	msg.Header.Set("Socia-Threat-Level", string(alert.Tier))

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

// Close drains pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

// MultiPublisher sends every alert to each publisher and joins their errors.
type MultiPublisher []ports.AlertPublisher

func (m MultiPublisher) PublishAlert(ctx context.Context, alert ports.Alert) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishAlert(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopPublisher drops alerts. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishAlert(context.Context, ports.Alert) error { return nil }

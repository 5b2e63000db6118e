// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/Avalanche-io/edl-changelog/internal/compare"
)

// Publisher publishes finished changelogs to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  logrus.FieldLogger
}

// NewPublisher connects to NATS at url.
func NewPublisher(url, subject string, maxReconnect int, reconnectWait time.Duration, logger logrus.FieldLogger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("edl-changelog"),
		nats.MaxReconnects(maxReconnect),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Warn("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Infof("Connected to NATS at %s", url)

	return &Publisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// headerRunID carries the comparison run ID on every published message.
const headerRunID = "Run-Id"

// Publish sends the report as JSON.
func (p *Publisher) Publish(report *compare.Report) error {
	msg, err := newMessage(p.subject, report)
	if err != nil {
		return err
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}

	p.logger.Debugf("Published changelog %s (%d rows)", report.RunID, len(report.Records))
	return nil
}

func newMessage(subject string, report *compare.Report) (*nats.Msg, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(headerRunID, report.RunID.String())
	return msg, nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
	}
}

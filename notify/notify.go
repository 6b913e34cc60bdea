// Copyright 2024 The dscan Authors
// This file is part of the dscan library.
//
// The dscan library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The dscan library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the dscan library. If not, see <http://www.gnu.org/licenses/>.

// Package notify delivers two kinds of scheduler events to the outside
// world: the front-end completion callback spec.md requires, and an
// optional Kafka event stream (ScanCompleted/StatusTick) that gives other
// services a durable feed of the same events without polling the wallet
// node.
package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Shopify/sarama"
	"github.com/groundx/dscan/dlog"
	"github.com/pkg/errors"
)

// Notifier posts the "scan completed" callback to the configured front-end
// endpoint and, when a Kafka producer is configured, mirrors both
// completion and status-tick events onto a topic.
type Notifier struct {
	frontEndURL string
	http        *http.Client
	producer    sarama.SyncProducer
	topic       string
	log         *dlog.Logger
}

// New builds a Notifier posting to frontEndURL. producer may be nil when
// Kafka is not configured (--kafka-brokers unset).
func New(frontEndURL string, producer sarama.SyncProducer, topic string) *Notifier {
	return &Notifier{
		frontEndURL: frontEndURL,
		http:        &http.Client{Timeout: 5 * time.Second},
		producer:    producer,
		topic:       topic,
		log:         dlog.NewModuleLogger("notify"),
	}
}

// NewProducer builds a sarama.SyncProducer over the given broker list; the
// caller is responsible for closing it on shutdown.
func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true
	return sarama.NewSyncProducer(brokers, cfg)
}

type event struct {
	Type      string `json:"type"`
	Address   string `json:"address,omitempty"`
	Workers   int    `json:"workers,omitempty"`
	QueueSize int    `json:"queueSize,omitempty"`
}

// ScanCompleted posts {account: address} to the front-end and, if Kafka is
// configured, publishes a ScanCompleted event.
func (n *Notifier) ScanCompleted(address string) error {
	body, err := json.Marshal(struct {
		Account string `json:"account"`
	}{Account: address})
	if err != nil {
		return err
	}
	resp, err := n.http.Post(n.frontEndURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "notify: completion POST failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("notify: completion POST returned status %d", resp.StatusCode)
	}

	return n.publish(event{Type: "ScanCompleted", Address: address})
}

// StatusTick publishes a periodic worker/queue snapshot event, if Kafka is
// configured; it has no HTTP side effect.
func (n *Notifier) StatusTick(workers, queueDepth int) error {
	return n.publish(event{Type: "StatusTick", Workers: workers, QueueSize: queueDepth})
}

func (n *Notifier) publish(e event) error {
	if n.producer == nil {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, _, err = n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		n.log.Warnw("kafka publish failed", "type", e.Type, "err", err)
	}
	return err
}

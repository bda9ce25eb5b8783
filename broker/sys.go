// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"fmt"
	"time"
)

// BrokerVersion is the version string published under $SYS/broker/version.
const BrokerVersion = "flowmq/1.0"

// sysLoop periodically republishes broker statistics as retained messages
// under $SYS/broker/..., in the style of the Mosquitto/HiveMQ $SYS tree.
// Clients subscribed to $SYS topics observe uptime, client counts and
// subscription and retained-message counts without a separate metrics
// endpoint.
func (b *Broker) sysLoop() {
	defer b.wg.Done()
	interval := b.opts.SysInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	b.publishSysStats()
	for {
		select {
		case <-b.stopCh:
			return
		case <-t.C:
			b.publishSysStats()
		}
	}
}

func (b *Broker) publishSysStats() {
	ctx := context.Background()

	b.sessionsMu.RLock()
	total := len(b.sessions)
	connected := 0
	for _, s := range b.sessions {
		if s.IsConnected() {
			connected++
		}
	}
	b.sessionsMu.RUnlock()

	retainedCount := 0
	if retained, err := b.store.Retained().Match(ctx, "#"); err == nil {
		retainedCount = len(retained)
	}

	stats := map[string]string{
		"$SYS/broker/version":                 BrokerVersion,
		"$SYS/broker/uptime":                  fmt.Sprintf("%d seconds", int(time.Since(b.startedAt).Seconds())),
		"$SYS/broker/clients/total":           fmt.Sprintf("%d", total),
		"$SYS/broker/clients/connected":       fmt.Sprintf("%d", connected),
		"$SYS/broker/clients/disconnected":    fmt.Sprintf("%d", total-connected),
		"$SYS/broker/subscriptions/count":     fmt.Sprintf("%d", b.store.Subscriptions().Count()),
		"$SYS/broker/retained messages/count": fmt.Sprintf("%d", retainedCount),
	}

	for topic, payload := range stats {
		_ = b.publishSys(ctx, topic, payload)
	}
}

func (b *Broker) publishSys(ctx context.Context, topic, payload string) error {
	return b.HandlePublish(ctx, b.sysSession, PublishOptions{
		Topic:   topic,
		Payload: []byte(payload),
		QoS:     0,
		Retain:  true,
	})
}

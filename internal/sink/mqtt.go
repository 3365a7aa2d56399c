// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// MQTTOptions configures an MQTTSink
type MQTTOptions struct {
	Broker      string
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
}

// MQTTSink publishes retained messages on <prefix>/<device>/<key>
type MQTTSink struct {
	client mqtt.Client
	prefix string
}

// NewMQTTSink connects to the broker. The client reconnects on its own after
// the first connection.
func NewMQTTSink(opts MQTTOptions) (*MQTTSink, error) {
	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetOnConnectHandler(func(c mqtt.Client) {
		logrus.Info("Connected to MQTT Broker")
	})
	clientOpts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		logrus.Warnf("MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt: %w", token.Error())
	}

	return &MQTTSink{client: client, prefix: opts.TopicPrefix}, nil
}

// Topic returns the topic a message is published on
func Topic(prefix string, msg Message) string {
	return fmt.Sprintf("%s/%s/%s", prefix, msg.DeviceID, msg.Key)
}

// Publish sends msg as a retained message
func (s *MQTTSink) Publish(ctx context.Context, msg Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	token := s.client.Publish(Topic(s.prefix, msg), 0, true, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker
func (s *MQTTSink) Close() error {
	// Allow 250ms for in-flight publishes
	s.client.Disconnect(250)
	return nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisOptions configures a RedisSink
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisSink publishes every message on a Pub/Sub channel and keeps the
// latest value per device in a hash.
type RedisSink struct {
	client  *redis.Client
	channel string
	log     *logrus.Entry
}

// NewRedisSink connects to Redis and verifies the connection
func NewRedisSink(ctx context.Context, opts RedisOptions) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	log := logrus.WithField("component", "redis")
	log.Infof("Connected to Redis at %s", opts.Addr)

	return &RedisSink{client: client, channel: opts.Channel, log: log}, nil
}

// DeviceKey is the hash holding a device's latest values
func DeviceKey(deviceID string) string {
	return "ecostat:device:" + deviceID
}

// Publish sends msg on the channel and records it in the device hash
func (s *RedisSink) Publish(ctx context.Context, msg Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	if err := s.client.HSet(ctx, DeviceKey(msg.DeviceID), string(msg.Key), msg.Value).Err(); err != nil {
		s.log.Warnf("Failed to store latest value: %v", err)
	}
	return nil
}

// Latest returns the stored values for a device
func (s *RedisSink) Latest(ctx context.Context, deviceID string) (map[string]string, error) {
	return s.client.HGetAll(ctx, DeviceKey(deviceID)).Result()
}

// Close closes the connection pool
func (s *RedisSink) Close() error {
	return s.client.Close()
}

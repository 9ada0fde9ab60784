package webui

import (
	"net/http"

	"github.com/mudler/remindbot/core/conversations"
)

type Config struct {
	ApiKeys     []string
	Scheduler   conversations.Scheduler
	WebhookPath string
	Webhook     http.HandlerFunc
}

type Option func(*Config)

func WithApiKeys(keys ...string) Option {
	return func(c *Config) {
		c.ApiKeys = keys
	}
}

func WithScheduler(s conversations.Scheduler) Option {
	return func(c *Config) {
		c.Scheduler = s
	}
}

// WithWebhook mounts a chat platform webhook at path. It is reachable
// without an API key: platforms authenticate with their own secret.
func WithWebhook(path string, h http.HandlerFunc) Option {
	return func(c *Config) {
		c.WebhookPath = path
		c.Webhook = h
	}
}

func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

func NewConfig(opts ...Option) *Config {
	c := &Config{}
	c.Apply(opts...)
	return c
}

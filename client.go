/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package aichat

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultTimeout = 60 * time.Second
	defaultBaseURL = "https://api.openai.com/v1"

	// DefaultStreamBuffer is the capacity of the delta channel returned by
	// streaming calls.
	DefaultStreamBuffer = 32
)

// Client is a chat completion API client for OpenAI-style endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	streamBuffer      int
	streamIdleTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
// Panics if hc is nil: passing nil indicates a programming error.
func WithHTTPClient(hc *http.Client) Option {
	if hc == nil {
		panic("aichat: WithHTTPClient called with nil *http.Client")
	}

	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the timeout for non-streaming requests.
// Streaming requests are bounded by their context, Cancel and the idle timeout instead.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStreamBuffer sets the capacity of the delta channel. Values below 1 are ignored.
func WithStreamBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.streamBuffer = n
		}
	}
}

// WithStreamIdleTimeout aborts a stream when no event arrives within d.
// Zero disables the check, which is the default.
func WithStreamIdleTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.streamIdleTimeout = d
	}
}

// NewClient creates a new Client with the given options.
// If no API key is provided, it falls back to AI_API_KEY then OPENAI_API_KEY.
// If no base URL is provided, it falls back to AI_BASE_URL then OPENAI_BASE_URL,
// then to the public OpenAI endpoint.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		timeout:      defaultTimeout,
		streamBuffer: DefaultStreamBuffer,
		logger:       slog.Default(),
	}

	if key := GetEnv("AI_API_KEY", "OPENAI_API_KEY"); key != "" {
		c.apiKey = key
	}

	if base := GetEnv("AI_BASE_URL", "OPENAI_BASE_URL"); base != "" {
		c.baseURL = strings.TrimRight(base, "/")
	}

	// Apply explicit options (override env).
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}

	return c, nil
}

// GetEnv returns the value of the first non-empty environment variable among keys.
func GetEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}

	return ""
}

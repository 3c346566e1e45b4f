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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ChatCompletion sends a non-streaming chat completion request.
func (c *Client) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatCompletion, error) {
	r := *req
	r.Stream = false

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.doRequest(ctx, &r, newRequestID())
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var result ChatCompletion
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("aichat: decode response: %w", err)
	}

	if result.Error != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       result.Error.Code,
			Message:    result.Error.Message,
			Type:       result.Error.Type,
		}
	}

	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	return &result, nil
}

// ChatCompletionDeltas sends a streaming chat completion request and bridges
// the event stream onto a bounded channel of deltas.
//
// The channel is closed when the stream ends, fails or is cancelled; the
// handle's Wait returns nil for a clean end and the first error otherwise.
// Errors opening the stream, including non-200 responses, are returned
// directly and no bridge is started.
func (c *Client) ChatCompletionDeltas(ctx context.Context, req *ChatRequest) (<-chan *ChatCompletionDelta, *StreamHandle, error) {
	r := *req
	r.Stream = true

	requestID := newRequestID()
	ctx, cancel := context.WithCancelCause(ctx)

	resp, err := c.doRequest(ctx, &r, requestID)
	if err != nil {
		cancel(err)
		return nil, nil, err
	}

	if resp.StatusCode != http.StatusOK {
		err := c.parseErrorResponse(resp)
		_ = resp.Body.Close()
		cancel(err)

		return nil, nil, err
	}

	c.logger.Debug("chat stream opened", "request_id", requestID, "model", r.Model)

	ch, h := startBridge(ctx, cancel, NewEventSource(resp.Body), BridgeConfig{
		Buffer:      c.streamBuffer,
		IdleTimeout: c.streamIdleTimeout,
		Logger:      c.logger,
		RequestID:   requestID,
	})

	return ch, h, nil
}

// ChatCompletionStream sends a streaming chat completion request
// and returns a Stream for reading chunks.
func (c *Client) ChatCompletionStream(ctx context.Context, req *ChatRequest) (*Stream, error) {
	ch, h, err := c.ChatCompletionDeltas(ctx, req)
	if err != nil {
		return nil, err
	}

	return newStream(ch, h), nil
}

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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// maxErrorBodySize limits the error response body read to 1 MB.
const maxErrorBodySize = 1 << 20

// requestIDHeader carries the client-generated id of each call.
const requestIDHeader = "X-Request-Id"

func (c *Client) doRequest(ctx context.Context, req *ChatRequest, requestID string) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("aichat: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("aichat: create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set(requestIDHeader, requestID)

	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Cache-Control", "no-cache")
	}

	c.logger.Debug("chat request",
		"request_id", requestID,
		"model", req.Model,
		"messages", len(req.Messages),
		"stream", req.Stream,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("aichat: send request: %w", err)
	}

	return resp, nil
}

func newRequestID() string {
	return uuid.NewString()
}

func (c *Client) parseErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    "failed to read error response",
			Err:        err,
		}
	}

	apiErr := apiErrorFromJSON(body)
	if apiErr == nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	apiErr.StatusCode = resp.StatusCode

	return apiErr
}

// apiErrorFromJSON extracts the "error" object of an API payload.
// Returns nil when the payload carries none.
func apiErrorFromJSON(data []byte) *APIError {
	if !gjson.ValidBytes(data) {
		return nil
	}

	e := gjson.GetBytes(data, "error")
	if !e.Exists() || e.Type == gjson.Null {
		return nil
	}

	if e.Type == gjson.String {
		return &APIError{Message: e.String()}
	}

	// Code is a string for OpenAI but some compatible servers send a number.
	return &APIError{
		Code:    e.Get("code").String(),
		Message: e.Get("message").String(),
		Type:    e.Get("type").String(),
	}
}

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
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions.
var (
	ErrNoAPIKey       = errors.New("aichat: API key is required")
	ErrEmptyResponse  = errors.New("aichat: empty response from API")
	ErrStreamClosed   = errors.New("aichat: stream is closed")
	ErrStreamCanceled = errors.New("aichat: stream canceled")
	ErrStreamIdle     = errors.New("aichat: stream idle timeout")
	ErrReceiverClosed = errors.New("aichat: receiver closed")
)

// APIError represents an error returned by the completion API, either as a
// non-200 response or as an in-band error object.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Type       string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aichat: API error (status %d): %s - %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// TransportError reports a failure reading the next event from the stream.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "aichat: stream transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError reports an event payload that does not match the delta schema.
// Data holds the raw payload.
type DecodeError struct {
	Data string
	Err  error
}

func (e *DecodeError) Error() string {
	return "aichat: decode stream chunk: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DeliveryError reports that the consumer stopped receiving records.
// Delivered is the number of records handed over before the failure.
type DeliveryError struct {
	Delivered int
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("aichat: deliver stream chunk after %d records: receiver closed", e.Delivered)
}

func (e *DeliveryError) Unwrap() error {
	return ErrReceiverClosed
}

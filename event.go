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
	"io"
	"iter"

	"github.com/tmaxmax/go-sse"
)

// maxEventSize limits a single SSE event to 1 MB.
const maxEventSize = 1 << 20

// doneSignal is the payload the API sends as its last event.
const doneSignal = "[DONE]"

// EventKind classifies a RawEvent.
type EventKind int

const (
	// EventOpen signals that the connection is established.
	EventOpen EventKind = iota
	// EventMessage carries a delta payload in Data.
	EventMessage
	// EventOther is a named event type the client does not interpret.
	EventOther
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventOther:
		return "other"
	default:
		return "unknown"
	}
}

// RawEvent is one server-sent event as delivered by the transport.
type RawEvent struct {
	Kind EventKind
	ID   string
	Type string
	Data string
}

// EventSource is a lazy sequence of raw events.
// A non-nil error is always the last element of the sequence.
type EventSource = iter.Seq2[RawEvent, error]

// NewEventSource frames r as a text/event-stream.
// The sequence starts with an EventOpen event, ends cleanly at the "[DONE]"
// signal or at EOF, and ends with an *APIError when a payload carries an
// "error" object. If r is an io.Closer it is closed when iteration stops.
func NewEventSource(r io.Reader) EventSource {
	return func(yield func(RawEvent, error) bool) {
		if c, ok := r.(io.Closer); ok {
			defer func() { _ = c.Close() }()
		}

		if !yield(RawEvent{Kind: EventOpen}, nil) {
			return
		}

		for ev, err := range sse.Read(r, &sse.ReadConfig{MaxEventSize: maxEventSize}) {
			if err != nil {
				yield(RawEvent{}, err)
				return
			}

			raw := RawEvent{Kind: EventMessage, ID: ev.LastEventID, Type: ev.Type, Data: ev.Data}

			if ev.Type != "" && ev.Type != "message" {
				raw.Kind = EventOther
				if !yield(raw, nil) {
					return
				}

				continue
			}

			if ev.Data == doneSignal {
				return
			}

			if apiErr := apiErrorFromJSON([]byte(ev.Data)); apiErr != nil {
				yield(RawEvent{}, apiErr)
				return
			}

			if !yield(raw, nil) {
				return
			}
		}
	}
}

// ReplaySource yields events in order, then err if it is non-nil.
// Useful for feeding recorded streams back through a Bridge.
func ReplaySource(events []RawEvent, err error) EventSource {
	return func(yield func(RawEvent, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}

		if err != nil {
			yield(RawEvent{}, err)
		}
	}
}

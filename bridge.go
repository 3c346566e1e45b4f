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
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

var errSchema = errors.New("schema mismatch")

// BridgeConfig tunes a Bridge.
type BridgeConfig struct {
	// Buffer is the channel capacity. DefaultStreamBuffer when below 1.
	Buffer int
	// IdleTimeout aborts the bridge when the source yields nothing for this long.
	// Zero waits forever. An event that arrives after the timer has expired
	// does not revive the stream.
	IdleTimeout time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// RequestID is attached to log records and exposed by the handle.
	RequestID string
}

// Outcome is the terminal state of a bridge.
// Err is nil when the stream completed cleanly.
type Outcome struct {
	Err error
}

// Completed reports whether the stream ended without error.
func (o Outcome) Completed() bool {
	return o.Err == nil
}

func (o Outcome) String() string {
	if o.Err == nil {
		return "completed"
	}

	return "failed: " + o.Err.Error()
}

// StreamHandle supervises a running bridge. It is owned by the caller that
// started the stream; the delta channel is owned by the consumer.
type StreamHandle struct {
	requestID string
	cancel    context.CancelCauseFunc

	done chan struct{}
	err  error

	released    chan struct{}
	releaseOnce sync.Once
}

// RequestID returns the id sent with the request that opened the stream.
func (h *StreamHandle) RequestID() string {
	return h.requestID
}

// Done is closed once the bridge has exited and the outcome is set.
func (h *StreamHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the bridge exits and returns its terminal error,
// nil when the stream completed cleanly.
func (h *StreamHandle) Wait() error {
	<-h.done
	return h.err
}

// Outcome returns the terminal outcome and true once the bridge has exited,
// or a zero Outcome and false while it is still running.
func (h *StreamHandle) Outcome() (Outcome, bool) {
	select {
	case <-h.done:
		return Outcome{Err: h.err}, true
	default:
		return Outcome{}, false
	}
}

// Cancel aborts the stream. The transport is released and no further
// records are sent; the outcome becomes ErrStreamCanceled unless the bridge
// had already exited.
func (h *StreamHandle) Cancel() {
	h.cancel(ErrStreamCanceled)
}

// Release tells the bridge the consumer no longer receives records.
// The next send fails with a *DeliveryError. Safe to call more than once.
func (h *StreamHandle) Release() {
	h.releaseOnce.Do(func() { close(h.released) })
}

// Bridge forwards the message events of src, decoded as ChatCompletionDelta,
// onto a bounded channel read by the consumer. It runs in its own goroutine
// and returns immediately. The channel is closed when the bridge exits; the
// handle reports why.
//
// src must honour ctx for the bridge to be cancellable while it waits for
// the next event.
func Bridge(ctx context.Context, src EventSource, cfg BridgeConfig) (<-chan *ChatCompletionDelta, *StreamHandle) {
	ctx, cancel := context.WithCancelCause(ctx)
	return startBridge(ctx, cancel, src, cfg)
}

func startBridge(ctx context.Context, cancel context.CancelCauseFunc, src EventSource, cfg BridgeConfig) (<-chan *ChatCompletionDelta, *StreamHandle) {
	if cfg.Buffer < 1 {
		cfg.Buffer = DefaultStreamBuffer
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	out := make(chan *ChatCompletionDelta, cfg.Buffer)

	h := &StreamHandle{
		requestID: cfg.RequestID,
		cancel:    cancel,
		done:      make(chan struct{}),
		released:  make(chan struct{}),
	}

	b := &bridge{
		src:      src,
		out:      out,
		released: h.released,
		idle:     newIdleTimer(cfg.IdleTimeout, func() { cancel(ErrStreamIdle) }),
	}

	go func() {
		err := b.run(ctx)
		cancel(context.Canceled)

		cfg.Logger.Debug("chat stream finished",
			"request_id", cfg.RequestID,
			"records", b.delivered,
			"error", err,
		)

		h.err = err
		close(h.done)
	}()

	return out, h
}

type bridge struct {
	src       EventSource
	out       chan<- *ChatCompletionDelta
	released  <-chan struct{}
	idle      *idleTimer
	delivered int
}

func (b *bridge) run(ctx context.Context) error {
	defer close(b.out)
	defer b.idle.stop()

	for ev, srcErr := range b.src {
		b.idle.stop()

		if err := b.step(ctx, ev, srcErr); err != nil {
			return err
		}

		b.idle.arm()
	}

	return nil
}

func (b *bridge) step(ctx context.Context, ev RawEvent, srcErr error) error {
	if err := interruption(ctx); err != nil {
		return err
	}

	if srcErr != nil {
		return &TransportError{Err: srcErr}
	}

	if ev.Kind != EventMessage {
		return nil
	}

	delta, err := decodeDelta(ev.Data)
	if err != nil {
		return err
	}

	return b.send(ctx, delta)
}

func (b *bridge) send(ctx context.Context, delta *ChatCompletionDelta) error {
	// A released receiver wins over free buffer space.
	select {
	case <-b.released:
		return &DeliveryError{Delivered: b.delivered}
	default:
	}

	select {
	case b.out <- delta:
		b.delivered++
		return nil
	case <-b.released:
		return &DeliveryError{Delivered: b.delivered}
	case <-ctx.Done():
		return interruption(ctx)
	}
}

// interruption maps a cancelled bridge context to its terminal error.
func interruption(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}

	cause := context.Cause(ctx)
	if errors.Is(cause, ErrStreamIdle) {
		return &TransportError{Err: ErrStreamIdle}
	}

	return cause
}

func decodeDelta(data string) (*ChatCompletionDelta, error) {
	var delta ChatCompletionDelta
	if err := json.Unmarshal([]byte(data), &delta); err != nil {
		return nil, &DecodeError{Data: data, Err: err}
	}

	if err := checkDeltaSchema(gjson.Parse(data)); err != nil {
		return nil, &DecodeError{Data: data, Err: err}
	}

	return &delta, nil
}

// checkDeltaSchema reports required members that encoding/json would
// silently zero-fill.
func checkDeltaSchema(v gjson.Result) error {
	if !v.IsObject() {
		return fmt.Errorf("%w: payload is not an object", errSchema)
	}

	for _, key := range []string{"id", "object", "model"} {
		if v.Get(key).Type != gjson.String {
			return fmt.Errorf("%w: %q must be a string", errSchema, key)
		}
	}

	if created := v.Get("created"); created.Type != gjson.Number || created.Num < 0 {
		return fmt.Errorf("%w: \"created\" must be a non-negative number", errSchema)
	}

	choices := v.Get("choices")
	if !choices.IsArray() {
		return fmt.Errorf("%w: \"choices\" must be an array", errSchema)
	}

	for i, choice := range choices.Array() {
		if !choice.IsObject() {
			return fmt.Errorf("%w: choice %d is not an object", errSchema, i)
		}
		if choice.Get("index").Type != gjson.Number {
			return fmt.Errorf("%w: choice %d: \"index\" must be a number", errSchema, i)
		}
		if !choice.Get("delta").IsObject() {
			return fmt.Errorf("%w: choice %d: \"delta\" must be an object", errSchema, i)
		}
	}

	return nil
}

// idleTimer fires once when it stays armed for longer than d.
// A nil *idleTimer is disabled.
type idleTimer struct {
	d    time.Duration
	t    *time.Timer
	fire func()

	mu    sync.Mutex
	armed bool
}

func newIdleTimer(d time.Duration, fire func()) *idleTimer {
	if d <= 0 {
		return nil
	}

	it := &idleTimer{d: d, fire: fire, armed: true}
	it.t = time.AfterFunc(d, it.expire)

	return it
}

// expire runs on the timer goroutine. A callback that lost the race with
// stop finds the timer disarmed and does nothing.
func (it *idleTimer) expire() {
	it.mu.Lock()
	armed := it.armed
	it.armed = false
	it.mu.Unlock()

	if armed {
		it.fire()
	}
}

func (it *idleTimer) arm() {
	if it == nil {
		return
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	it.armed = true
	it.t.Reset(it.d)
}

func (it *idleTimer) stop() {
	if it == nil {
		return
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	it.armed = false
	it.t.Stop()
}

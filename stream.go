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
	"sync/atomic"
)

// Stream reads streamed chat completion deltas one at a time.
// Stream is safe for concurrent use between a single Recv caller and Close.
type Stream struct {
	deltas <-chan *ChatCompletionDelta
	handle *StreamHandle
	closed atomic.Bool
}

func newStream(deltas <-chan *ChatCompletionDelta, h *StreamHandle) *Stream {
	return &Stream{
		deltas: deltas,
		handle: h,
	}
}

// Recv reads the next delta from the stream.
// Returns io.EOF when the stream is done, or the error that ended it.
func (s *Stream) Recv() (*ChatCompletionDelta, error) {
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}

	if delta, ok := <-s.deltas; ok {
		return delta, nil
	}

	if err := s.handle.Wait(); err != nil {
		if s.closed.Load() {
			return nil, ErrStreamClosed
		}

		return nil, err
	}

	return nil, io.EOF
}

// Handle returns the handle supervising the underlying bridge.
func (s *Stream) Handle() *StreamHandle {
	return s.handle
}

// Close stops the stream and releases the connection.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.handle.Release()
	s.handle.Cancel()

	return nil
}

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
	"sort"
	"strings"
)

// Accumulator rebuilds a ChatCompletion from streamed deltas.
// The zero value is ready to use.
type Accumulator struct {
	id      string
	object  string
	created int64
	model   string
	usage   *Usage
	choices map[int]*choiceState
}

type choiceState struct {
	role         Role
	name         string
	content      strings.Builder
	finishReason FinishReason
}

// Add merges one delta. Content fragments are appended per choice index in
// the order they are added.
func (a *Accumulator) Add(delta *ChatCompletionDelta) {
	if delta == nil {
		return
	}

	if a.choices == nil {
		a.choices = make(map[int]*choiceState)
	}

	if delta.ID != "" {
		a.id = delta.ID
	}

	if delta.Object != "" {
		a.object = delta.Object
	}

	if delta.Created != 0 {
		a.created = delta.Created
	}

	if delta.Model != "" {
		a.model = delta.Model
	}

	if delta.Usage != nil {
		u := *delta.Usage
		a.usage = &u
	}

	for _, ch := range delta.Choices {
		st, ok := a.choices[ch.Index]
		if !ok {
			st = &choiceState{}
			a.choices[ch.Index] = st
		}

		if ch.Delta.Role != nil {
			st.role = *ch.Delta.Role
		}

		if ch.Delta.Name != nil {
			st.name = *ch.Delta.Name
		}

		st.content.WriteString(ch.Delta.Text())

		if ch.FinishReason != nil {
			st.finishReason = *ch.FinishReason
		}
	}
}

// Content returns the text accumulated so far for the given choice index.
func (a *Accumulator) Content(index int) string {
	st, ok := a.choices[index]
	if !ok {
		return ""
	}

	return st.content.String()
}

// Result returns the completion accumulated so far, choices ordered by index.
// The object type is rewritten from "chat.completion.chunk" to "chat.completion".
func (a *Accumulator) Result() *ChatCompletion {
	out := &ChatCompletion{
		ID:      a.id,
		Object:  strings.TrimSuffix(a.object, ".chunk"),
		Created: a.created,
		Model:   a.model,
		Usage:   a.usage,
	}

	indexes := make([]int, 0, len(a.choices))
	for idx := range a.choices {
		indexes = append(indexes, idx)
	}

	sort.Ints(indexes)

	for _, idx := range indexes {
		st := a.choices[idx]

		role := st.role
		if role == "" {
			role = RoleAssistant
		}

		out.Choices = append(out.Choices, Choice{
			Index:        idx,
			Message:      Message{Role: role, Content: st.content.String(), Name: st.name},
			FinishReason: st.finishReason,
		})
	}

	return out
}

// Collect drains deltas into a ChatCompletion and returns it together with
// the stream outcome. On failure the partial completion is still returned.
// If ctx is done first, the handle is released and cancelled and ctx's error
// is returned.
func Collect(ctx context.Context, deltas <-chan *ChatCompletionDelta, h *StreamHandle) (*ChatCompletion, error) {
	var acc Accumulator

	for {
		select {
		case delta, ok := <-deltas:
			if !ok {
				return acc.Result(), h.Wait()
			}

			acc.Add(delta)
		case <-ctx.Done():
			h.Release()
			h.Cancel()

			return acc.Result(), ctx.Err()
		}
	}
}

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

import "context"

// ChatBuilder assembles a ChatRequest fluently and sends it with the client
// it was created from. It performs no validation; the API reports bad fields.
type ChatBuilder struct {
	client *Client
	req    ChatRequest
}

// Chat starts a request for model with the given messages.
func (c *Client) Chat(model string, messages ...Message) *ChatBuilder {
	return &ChatBuilder{
		client: c,
		req: ChatRequest{
			Model:    model,
			Messages: append([]Message(nil), messages...),
		},
	}
}

// Message appends a message to the conversation.
func (b *ChatBuilder) Message(role Role, content string) *ChatBuilder {
	b.req.Messages = append(b.req.Messages, Message{Role: role, Content: content})
	return b
}

// Temperature sets the sampling temperature.
func (b *ChatBuilder) Temperature(t float64) *ChatBuilder {
	b.req.Temperature = &t
	return b
}

// TopP sets nucleus sampling mass.
func (b *ChatBuilder) TopP(p float64) *ChatBuilder {
	b.req.TopP = &p
	return b
}

// N sets how many choices to generate.
func (b *ChatBuilder) N(n int) *ChatBuilder {
	b.req.N = &n
	return b
}

// Stop sets the stop sequences.
func (b *ChatBuilder) Stop(seqs ...string) *ChatBuilder {
	b.req.Stop = seqs
	return b
}

// MaxTokens caps the generated tokens.
func (b *ChatBuilder) MaxTokens(n int) *ChatBuilder {
	b.req.MaxTokens = &n
	return b
}

// PresencePenalty sets the presence penalty.
func (b *ChatBuilder) PresencePenalty(p float64) *ChatBuilder {
	b.req.PresencePenalty = &p
	return b
}

// FrequencyPenalty sets the frequency penalty.
func (b *ChatBuilder) FrequencyPenalty(p float64) *ChatBuilder {
	b.req.FrequencyPenalty = &p
	return b
}

// LogitBias sets the bias of a single token id.
func (b *ChatBuilder) LogitBias(token string, bias float64) *ChatBuilder {
	if b.req.LogitBias == nil {
		b.req.LogitBias = make(map[string]float64)
	}

	b.req.LogitBias[token] = bias

	return b
}

// User sets the end-user identifier.
func (b *ChatBuilder) User(user string) *ChatBuilder {
	b.req.User = user
	return b
}

// Build returns a copy of the assembled request.
func (b *ChatBuilder) Build() *ChatRequest {
	r := b.req
	r.Messages = append([]Message(nil), b.req.Messages...)
	r.Stop = append([]string(nil), b.req.Stop...)

	if b.req.LogitBias != nil {
		r.LogitBias = make(map[string]float64, len(b.req.LogitBias))
		for k, v := range b.req.LogitBias {
			r.LogitBias[k] = v
		}
	}

	return &r
}

// Create sends the request as a full completion.
func (b *ChatBuilder) Create(ctx context.Context) (*ChatCompletion, error) {
	return b.client.ChatCompletion(ctx, b.Build())
}

// CreateStream sends the request as a stream read through Recv.
func (b *ChatBuilder) CreateStream(ctx context.Context) (*Stream, error) {
	return b.client.ChatCompletionStream(ctx, b.Build())
}

// CreateDeltas sends the request as a stream bridged onto a channel.
func (b *ChatBuilder) CreateDeltas(ctx context.Context) (<-chan *ChatCompletionDelta, *StreamHandle, error) {
	return b.client.ChatCompletionDeltas(ctx, b.Build())
}

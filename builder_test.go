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
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatBuilderBuild(t *testing.T) {
	c := newTestClient(t, "https://api.example.com/v1")

	req := c.Chat(ModelGPT35Turbo, Message{Role: RoleSystem, Content: "be brief"}).
		Message(RoleUser, "Hello!").
		Temperature(0).
		TopP(0.5).
		N(2).
		Stop("\n", "END").
		MaxTokens(64).
		PresencePenalty(0.1).
		FrequencyPenalty(-0.2).
		LogitBias("50256", -100).
		User("u-1").
		Build()

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got["model"] != ModelGPT35Turbo {
		t.Errorf("model = %v", got["model"])
	}
	if msgs, _ := got["messages"].([]any); len(msgs) != 2 {
		t.Errorf("messages = %v", got["messages"])
	}
	if got["temperature"] != float64(0) {
		t.Errorf("temperature = %v, want explicit 0", got["temperature"])
	}
	if got["max_tokens"] != float64(64) {
		t.Errorf("max_tokens = %v", got["max_tokens"])
	}
	if bias, _ := got["logit_bias"].(map[string]any); bias["50256"] != float64(-100) {
		t.Errorf("logit_bias = %v", got["logit_bias"])
	}
	if _, ok := got["stream"]; ok {
		t.Error("stream should be omitted until sent")
	}
}

func TestChatBuilderOmitsUnsetFields(t *testing.T) {
	c := newTestClient(t, "https://api.example.com/v1")

	data, err := json.Marshal(c.Chat(ModelGPT4o).Message(RoleUser, "hi").Build())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestChatBuilderBuildCopies(t *testing.T) {
	c := newTestClient(t, "https://api.example.com/v1")

	b := c.Chat(ModelGPT4o).Message(RoleUser, "one").LogitBias("1", 1)
	first := b.Build()
	b.Message(RoleUser, "two").LogitBias("2", 2)

	if len(first.Messages) != 1 {
		t.Errorf("messages = %d, want 1", len(first.Messages))
	}
	if len(first.LogitBias) != 1 {
		t.Errorf("logit_bias = %v", first.LogitBias)
	}
}

func TestChatBuilderDoesNotAliasMessages(t *testing.T) {
	c := newTestClient(t, "https://api.example.com/v1")

	history := make([]Message, 1, 4)
	history[0] = Message{Role: RoleSystem, Content: "be brief"}

	c.Chat(ModelGPT4o, history...).Message(RoleUser, "first")
	c.Chat(ModelGPT4o, history...).Message(RoleUser, "second")

	if got := history[:2][1]; got.Content != "" {
		t.Errorf("caller backing array overwritten with %q", got.Content)
	}
}

func TestChatBuilderCreateAndStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}

		if req.Stream {
			writeSSE(t, w, chunkJSON("1", "streamed"), "[DONE]")
			return
		}

		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","created":1,"model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"full"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	b := c.Chat(ModelGPT4o).Message(RoleUser, "hi")

	full, err := b.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if full.Choices[0].Message.Content != "full" {
		t.Errorf("content = %q", full.Choices[0].Message.Content)
	}

	ch, h, err := b.CreateDeltas(context.Background())
	if err != nil {
		t.Fatalf("CreateDeltas: %v", err)
	}
	res, err := Collect(context.Background(), ch, h)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.Choices[0].Message.Content != "streamed" {
		t.Errorf("content = %q", res.Choices[0].Message.Content)
	}

	s, err := b.CreateStream(context.Background())
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	defer func() { _ = s.Close() }()

	chunk, err := s.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if chunk.Choices[0].Delta.Text() != "streamed" {
		t.Errorf("chunk = %q", chunk.Choices[0].Delta.Text())
	}
}

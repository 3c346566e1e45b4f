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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vogo/aichat"
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aichat [prompt]",
		Short: "Send a chat completion request to an OpenAI-compatible endpoint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v, args)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.String("model", "", "model name (default from config or "+aichat.DefaultModel+")")
	f.String("system", "", "system prompt")
	f.Float64("temperature", -1, "sampling temperature, negative leaves it unset")
	f.Int("max-tokens", 0, "maximum completion tokens, zero leaves it unset")
	f.Bool("stream", true, "stream the completion as it is generated")
	f.String("config", "", "path to a YAML config file")
	f.Bool("verbose", false, "enable debug logging on stderr")

	// Viper keys use underscores so they line up with AICHAT_* env vars.
	bindFlag := func(viperKey, flagName string) {
		_ = v.BindPFlag(viperKey, f.Lookup(flagName))
	}
	bindFlag("model", "model")
	bindFlag("system", "system")
	bindFlag("temperature", "temperature")
	bindFlag("max_tokens", "max-tokens")
	bindFlag("stream", "stream")
	bindFlag("config", "config")
	bindFlag("verbose", "verbose")

	v.SetEnvPrefix("AICHAT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	return cmd
}

func run(cmd *cobra.Command, v *viper.Viper, args []string) error {
	level := slog.LevelWarn
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	prompt, err := readPrompt(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	cfg := &aichat.Config{}
	if path := v.GetString("config"); path != "" {
		if cfg, err = aichat.LoadConfig(path); err != nil {
			return err
		}
	}

	client, err := aichat.NewClient(append(cfg.Options(), aichat.WithLogger(logger))...)
	if err != nil {
		return err
	}

	req := buildRequest(client, v, cfg, prompt).Build()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	if !v.GetBool("stream") {
		resp, err := client.ChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, resp.Choices[0].Message.Content)
		return nil
	}

	return streamCompletion(ctx, client, req, out)
}

func buildRequest(client *aichat.Client, v *viper.Viper, cfg *aichat.Config, prompt string) *aichat.ChatBuilder {
	model := v.GetString("model")
	if model == "" {
		model = cfg.Model
	}
	if model == "" {
		model = aichat.DefaultModel
	}

	b := client.Chat(model)
	if system := v.GetString("system"); system != "" {
		b.Message(aichat.RoleSystem, system)
	}
	b.Message(aichat.RoleUser, prompt)

	if t := v.GetFloat64("temperature"); t >= 0 {
		b.Temperature(t)
	}
	if n := v.GetInt("max_tokens"); n > 0 {
		b.MaxTokens(n)
	}

	return b
}

func streamCompletion(ctx context.Context, client *aichat.Client, req *aichat.ChatRequest, out io.Writer) error {
	deltas, h, err := client.ChatCompletionDeltas(ctx, req)
	if err != nil {
		return err
	}

	for delta := range deltas {
		for _, choice := range delta.Choices {
			if choice.Index == 0 {
				_, _ = fmt.Fprint(out, choice.Delta.Text())
			}
		}
	}
	_, _ = fmt.Fprintln(out)

	return h.Wait()
}

func readPrompt(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}

	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("no prompt given")
	}

	return prompt, nil
}

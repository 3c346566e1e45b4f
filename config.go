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
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file form of the client settings.
//
//	api_key: sk-...
//	base_url: https://api.openai.com/v1
//	model: gpt-4o-mini
//	timeout: 60s
//	stream_buffer: 32
//	stream_idle_timeout: 30s
type Config struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	StreamBuffer      int           `yaml:"stream_buffer"`
	StreamIdleTimeout time.Duration `yaml:"stream_idle_timeout"`
}

// LoadConfig reads a YAML config file. Values of the form ${VAR} are
// expanded from the environment before parsing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("aichat: read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML config data.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("aichat: parse config: %w", err)
	}

	return &cfg, nil
}

// Options converts the set fields of the config into client options.
// Unset fields leave the client defaults and environment fallbacks in place.
func (c *Config) Options() []Option {
	var opts []Option

	if c.APIKey != "" {
		opts = append(opts, WithAPIKey(c.APIKey))
	}

	if c.BaseURL != "" {
		opts = append(opts, WithBaseURL(c.BaseURL))
	}

	if c.Timeout > 0 {
		opts = append(opts, WithTimeout(c.Timeout))
	}

	if c.StreamBuffer > 0 {
		opts = append(opts, WithStreamBuffer(c.StreamBuffer))
	}

	if c.StreamIdleTimeout > 0 {
		opts = append(opts, WithStreamIdleTimeout(c.StreamIdleTimeout))
	}

	return opts
}

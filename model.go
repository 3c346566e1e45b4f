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

// OpenAI chat model names.
const (
	ModelGPT4o      = "gpt-4o"
	ModelGPT4oMini  = "gpt-4o-mini"
	ModelGPT41      = "gpt-4.1"
	ModelGPT41Mini  = "gpt-4.1-mini"
	ModelGPT41Nano  = "gpt-4.1-nano"
	ModelGPT4       = "gpt-4"
	ModelGPT35Turbo = "gpt-3.5-turbo"
	ModelO3Mini     = "o3-mini"
	ModelO4Mini     = "o4-mini"
)

// Model names of other providers serving the same chat completions API.
const (
	ModelDeepseekChat = "deepseek-chat"
	ModelQwenPlus     = "qwen-plus"
	ModelMoonshot8k   = "moonshot-v1-8k"
)

// DefaultModel is used by the CLI when no model is configured.
const DefaultModel = ModelGPT4oMini

// Package openaicompat implements llm.Provider for any endpoint speaking the
// OpenAI Chat Completions protocol.
//
// Every council member is served through this one client: OpenAI, OpenRouter,
// DeepSeek and self-hosted gateways differ only in base URL, endpoint path and
// auth header. Known hosts come with presets (see providers.LookupPreset).
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "openrouter",
//	    APIKey:       os.Getenv("OPENROUTER_API_KEY"),
//	    BaseURL:      "https://openrouter.ai/api",
//	}, logger)
//	resp, err := p.Completion(ctx, &llm.ChatRequest{Model: "openai/gpt-5", Messages: msgs})
package openaicompat

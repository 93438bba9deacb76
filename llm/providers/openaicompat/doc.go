// Package openaicompat provides a shared base implementation for all
// OpenAI-compatible chat completion providers.
//
// Mistral and OpenAI share the same Chat Completions format. Presets embed
// openaicompat.Provider and only override what differs:
//
//   - Provider name and default model
//   - Base URL
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName:      "mistral",
//	    APIKey:            cfg.APIKey,
//	    BaseURL:           "https://api.mistral.ai",
//	    DefaultModel:      "codestral-latest",
//	    RequestsPerMinute: 30,
//	}, logger)
package openaicompat

// Package openaicompat is the backend adapter for OpenAI-compatible Chat
// Completions endpoints. It serves two providers: "openai" (any server
// speaking /v1/chat/completions with Bearer auth, including vLLM and
// LiteLLM) and "azure" (Azure OpenAI deployments, authenticated with an
// api-key header or a Microsoft Entra ID token).
package openaicompat

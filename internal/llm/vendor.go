package llm

import (
	"fmt"
	"strings"
)

// Vendor selects a model provider.
type Vendor string

const (
	// VendorOpenAI uses the OpenAI chat completions API.
	VendorOpenAI Vendor = "openai"
	// VendorClaude uses the Anthropic messages API.
	VendorClaude Vendor = "claude"
	// VendorGemini uses the Gemini API.
	VendorGemini Vendor = "gemini"
)

// Default model identifiers per vendor.
const (
	DefaultOpenAIModel = "gpt-4o"
	DefaultClaudeModel = "claude-3-5-sonnet-20241022"
	DefaultGeminiModel = "gemini-1.5-pro-002"
)

// Vendors lists the supported vendors.
func Vendors() []Vendor {
	return []Vendor{VendorOpenAI, VendorClaude, VendorGemini}
}

// ParseVendor maps a selector such as "OpenAI" to a Vendor.
func ParseVendor(s string) (Vendor, error) {
	v := Vendor(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case VendorOpenAI, VendorClaude, VendorGemini:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVendor, s)
}

// VendorConfig holds credentials and defaults for one vendor.
type VendorConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Config holds settings for every vendor.
type Config struct {
	OpenAI VendorConfig
	Claude VendorConfig
	Gemini VendorConfig
	// MaxTokens bounds the completion length; 0 uses the vendor default.
	MaxTokens int
}

// New builds the client for the given vendor.
func New(vendor Vendor, cfg Config) (Model, error) {
	switch vendor {
	case VendorOpenAI:
		return NewOpenAI(cfg.OpenAI, cfg.MaxTokens)
	case VendorClaude:
		return NewClaude(cfg.Claude, cfg.MaxTokens)
	case VendorGemini:
		return NewGemini(cfg.Gemini)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownVendor, vendor)
}

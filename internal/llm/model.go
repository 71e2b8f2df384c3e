// Package llm defines the language model capability used by the drill and
// the vendor clients that implement it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
)

var (
	// ErrEmptyCompletion indicates the provider returned no usable text.
	ErrEmptyCompletion = errors.New("model returned an empty completion")
	// ErrUnknownVendor indicates an unrecognized vendor selector.
	ErrUnknownVendor = errors.New("unknown model vendor")
	// ErrMissingAPIKey indicates a vendor was selected without credentials.
	ErrMissingAPIKey = errors.New("model vendor api key is required")
)

// Image is an optional image attached to a prompt.
type Image struct {
	Data     []byte
	MIMEType string
}

// Request is a single text generation request.
type Request struct {
	Prompt string
	// Model overrides the client's default model identifier when set.
	Model string
	Image *Image
}

// Model generates text for a prompt. Implementations block until the
// provider answers or ctx ends, and never return an empty string with a nil
// error.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f ModelFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// LoadImage reads an image file and sniffs its content type.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return &Image{Data: data, MIMEType: http.DetectContentType(data)}, nil
}

func pickModel(req Request, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	return fallback
}

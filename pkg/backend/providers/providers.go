// Package providers registers the built-in backend adapters with a
// backend.Factory.
package providers

import (
	"github.com/rhuss/palaver/pkg/backend"
	"github.com/rhuss/palaver/pkg/backend/bedrock"
	"github.com/rhuss/palaver/pkg/backend/gemini"
	"github.com/rhuss/palaver/pkg/backend/openaicompat"
)

// Register adds the built-in providers to f.
func Register(f *backend.Factory) {
	f.RegisterProvider("openai", openaicompat.NewOpenAI)
	f.RegisterProvider("azure", openaicompat.NewAzure)
	f.RegisterProvider("bedrock", bedrock.New)
	f.RegisterProvider("gemini", gemini.New)
}

// NewFactory returns a factory with every built-in provider registered.
func NewFactory() *backend.Factory {
	f := backend.NewFactory()
	Register(f)
	return f
}

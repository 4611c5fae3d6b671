package summarizer

import "context"

// Summarizer is the gated action behind the gateway endpoint. The gateway
// treats it as opaque: it validates and accounts usage, then delegates here.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
	Close() error
}

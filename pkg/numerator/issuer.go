package numerator

import (
	"context"
	"fmt"
	"time"
)

// Issuer maps document types to their number series. It satisfies the
// workflows' NumberSource interface.
type Issuer struct {
	svc     *Service
	opts    *Options
	configs map[string]Config
}

// NewIssuer returns an issuer preconfigured for the engine's document types.
// Both series are strict: adjustments and returns are audit documents.
func NewIssuer(svc *Service) *Issuer {
	return &Issuer{
		svc:  svc,
		opts: DefaultOptions(),
		configs: map[string]Config{
			"adjustment":   DefaultConfig("ADJ"),
			"sales_return": DefaultConfig("RET"),
		},
	}
}

// Register adds or replaces a series for a document type.
func (i *Issuer) Register(documentType string, cfg Config) {
	i.configs[documentType] = cfg
}

// Next issues the next number for the document type.
func (i *Issuer) Next(ctx context.Context, documentType string) (string, error) {
	cfg, ok := i.configs[documentType]
	if !ok {
		return "", fmt.Errorf("no number series for document type %q", documentType)
	}
	return i.svc.GetNextNumber(ctx, cfg, i.opts, time.Now().UTC())
}

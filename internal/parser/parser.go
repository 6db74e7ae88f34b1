// Package parser extracts structured paper fields from fetched content.
// One implementation exists per source type; the orchestrator resolves the
// right one from the job's source config.
package parser

import (
	"fmt"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

// Registry maps source types to parser implementations.
type Registry struct {
	parsers map[crawler.Source]crawler.Parser
}

// NewRegistry builds a registry with the default parser set.
func NewRegistry() *Registry {
	return &Registry{
		parsers: map[crawler.Source]crawler.Parser{
			crawler.SourceACLAnthology: NewACLAnthology(),
			crawler.SourceArxiv:        NewArxiv(),
			crawler.SourceGenericPDF:   NewPDF(),
		},
	}
}

// ForSource returns the parser registered for the source.
func (r *Registry) ForSource(source crawler.Source) (crawler.Parser, error) {
	p, ok := r.parsers[source]
	if !ok {
		return nil, fmt.Errorf("no parser registered for source %q", source)
	}
	return p, nil
}

// Register adds or replaces a parser for a source.
func (r *Registry) Register(source crawler.Source, p crawler.Parser) {
	r.parsers[source] = p
}

// Package nlu maps finalized transcripts to actuator commands using a
// two-stage resolution: an exact-label intent classifier, falling back to
// nearest-neighbour semantic search over a fixed phrase catalog.
package nlu

import (
	"context"
	"fmt"
	log "log/slog"
)

// Inclusive acceptance thresholds for the two resolution stages.
const (
	IntentThreshold     = 0.75
	SimilarityThreshold = 0.65
)

// Classifier is the intent model collaborator: text in, top label with its
// confidence out.
type Classifier interface {
	Classify(ctx context.Context, text string) (label string, confidence float64, err error)
}

// Embedder is the sentence-embedding collaborator. All vectors from one
// Embedder share the dimensionality reported by Dimensions.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Match is a successful routing decision, with the matched phrase and score
// kept for diagnostics.
type Match struct {
	Command Command
	Phrase  string
	Score   float64
}

// Router resolves transcripts deterministically: same inputs, same decision.
type Router struct {
	classifier Classifier
	embedder   Embedder
	catalog    *Catalog
	index      *Index
}

// NewRouter embeds the catalog phrases once and builds the semantic index.
func NewRouter(ctx context.Context, classifier Classifier, embedder Embedder, catalog *Catalog) (*Router, error) {
	vecs, err := embedder.EmbedBatch(ctx, catalog.Phrases())
	if err != nil {
		return nil, fmt.Errorf("nlu: embed catalog: %w", err)
	}
	if len(vecs) != catalog.Len() {
		return nil, fmt.Errorf("nlu: expected %d catalog embeddings, got %d", catalog.Len(), len(vecs))
	}

	index := NewIndex(embedder.Dimensions())
	for i, phrase := range catalog.Phrases() {
		if err := index.Add(phrase, vecs[i]); err != nil {
			return nil, err
		}
	}

	log.Info("Command catalog indexed", "phrases", catalog.Len(), "dimensions", embedder.Dimensions())
	return &Router{classifier: classifier, embedder: embedder, catalog: catalog, index: index}, nil
}

// Route resolves text to a command. It reports false when neither stage
// clears its threshold. Callers must filter empty or whitespace-only text
// upstream.
func (r *Router) Route(ctx context.Context, text string) (Match, bool, error) {
	// Stage 1: exact-label intent classification.
	label, confidence, err := r.classifier.Classify(ctx, text)
	if err != nil {
		// Recoverable: fall through to semantic search for this attempt.
		log.Warn("Intent classifier unavailable", "err", err)
	} else if meetsIntentThreshold(confidence) {
		if cmd, ok := r.catalog.Lookup(label); ok {
			return Match{Command: cmd, Phrase: label, Score: confidence}, true, nil
		}
	}

	// Stage 2: nearest neighbour over the phrase catalog.
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return Match{}, false, fmt.Errorf("nlu: embed transcript: %w", err)
	}
	phrase, score, ok := r.index.Search(vec)
	if !ok || !meetsSimilarityThreshold(score) {
		return Match{}, false, nil
	}
	cmd, ok := r.catalog.Lookup(phrase)
	if !ok {
		return Match{}, false, nil
	}
	return Match{Command: cmd, Phrase: phrase, Score: score}, true, nil
}

// Both thresholds are inclusive.
func meetsIntentThreshold(confidence float64) bool { return confidence >= IntentThreshold }
func meetsSimilarityThreshold(score float64) bool  { return score >= SimilarityThreshold }

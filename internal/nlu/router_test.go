package nlu

import (
	"context"
	"errors"
	"math"
	"testing"
)

// fakeClassifier returns a fixed label and confidence.
type fakeClassifier struct {
	label      string
	confidence float64
	err        error
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (string, float64, error) {
	return f.label, f.confidence, f.err
}

// fakeEmbedder maps known texts to fixed 2-d vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, ok := f.vectors[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }

// angled returns a unit-ish 2-d vector whose cosine against [1,0] is cos.
func angled(cos float64) []float32 {
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos))}
}

func testCatalog() *Catalog {
	return NewCatalog(
		CatalogEntry{Phrase: "activate red interior", Command: Command{Group: "Interior", Name: "Red"}},
		CatalogEntry{Phrase: "activate blue interior", Command: Command{Group: "Interior", Name: "Blue"}},
		CatalogEntry{Phrase: "open sunroof", Command: Command{Group: "Roof", Name: "Open"}},
	)
}

func testEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"activate red interior":      {1, 0},
		"activate blue interior":     {0, 1},
		"open sunroof":               {-1, 0},
		"turn on red interior light": angled(0.81),
		"something unrelated":        {-0.5, -0.866025},
	}}
}

func newTestRouter(t *testing.T, cl Classifier) *Router {
	t.Helper()
	r, err := NewRouter(context.Background(), cl, testEmbedder(), testCatalog())
	if err != nil {
		t.Fatalf("router construction failed: %v", err)
	}
	return r
}

func TestRouter_ClassifierWins(t *testing.T) {
	t.Parallel()

	cl := &fakeClassifier{label: "open sunroof", confidence: 0.92}
	r := newTestRouter(t, cl)

	m, ok, err := r.Route(context.Background(), "something unrelated")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a match from the classifier stage")
	}
	if m.Command != (Command{Group: "Roof", Name: "Open"}) {
		t.Errorf("expected sunroof command, got %+v", m.Command)
	}
	if m.Phrase != "open sunroof" || m.Score != 0.92 {
		t.Errorf("expected classifier diagnostics, got %+v", m)
	}
}

func TestRouter_ClassifierConfidenceBoundaryInclusive(t *testing.T) {
	t.Parallel()

	// Exactly at the threshold: accepted.
	cl := &fakeClassifier{label: "open sunroof", confidence: 0.75}
	r := newTestRouter(t, cl)

	m, ok, err := r.Route(context.Background(), "something unrelated")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || m.Phrase != "open sunroof" {
		t.Errorf("expected confidence 0.75 to be accepted, got ok=%v match=%+v", ok, m)
	}

	// Just below: falls through to semantic search, which also misses here.
	cl.confidence = math.Nextafter(0.75, 0)
	if _, ok, _ := r.Route(context.Background(), "something unrelated"); ok {
		t.Error("expected confidence below 0.75 to fall through to a semantic miss")
	}
}

func TestRouter_ThresholdComparisonsAreInclusive(t *testing.T) {
	t.Parallel()

	if !meetsIntentThreshold(0.75) {
		t.Error("intent confidence exactly 0.75 must be accepted")
	}
	if meetsIntentThreshold(math.Nextafter(0.75, 0)) {
		t.Error("intent confidence below 0.75 must be rejected")
	}
	if !meetsSimilarityThreshold(0.65) {
		t.Error("similarity exactly 0.65 must be accepted")
	}
	if meetsSimilarityThreshold(math.Nextafter(0.65, 0)) {
		t.Error("similarity below 0.65 must be rejected")
	}
}

func TestRouter_SemanticFallbackScenario(t *testing.T) {
	t.Parallel()

	// Classifier is unsure (0.40): the semantic stage decides.
	cl := &fakeClassifier{label: "activate red interior", confidence: 0.40}
	r := newTestRouter(t, cl)

	m, ok, err := r.Route(context.Background(), "turn on red interior light")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a semantic match")
	}
	if m.Command != (Command{Group: "Interior", Name: "Red"}) {
		t.Errorf("expected red interior command, got %+v", m.Command)
	}
	if m.Phrase != "activate red interior" {
		t.Errorf("expected match phrase %q, got %q", "activate red interior", m.Phrase)
	}
	if math.Abs(m.Score-0.81) > 1e-3 {
		t.Errorf("expected similarity ~0.81, got %v", m.Score)
	}
}

func TestRouter_NoMatchBelowSimilarity(t *testing.T) {
	t.Parallel()

	cl := &fakeClassifier{label: "unknown", confidence: 0.10}
	r := newTestRouter(t, cl)

	m, ok, err := r.Route(context.Background(), "something unrelated")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("expected no match, got %+v", m)
	}
}

func TestRouter_ClassifierLabelNotInCatalog(t *testing.T) {
	t.Parallel()

	// Confident but unknown label: must fall through, not match blindly.
	cl := &fakeClassifier{label: "launch missiles", confidence: 0.99}
	r := newTestRouter(t, cl)

	m, ok, err := r.Route(context.Background(), "turn on red interior light")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || m.Phrase != "activate red interior" {
		t.Errorf("expected semantic fallback match, got ok=%v match=%+v", ok, m)
	}
}

func TestRouter_ClassifierErrorIsRecoverable(t *testing.T) {
	t.Parallel()

	cl := &fakeClassifier{err: errors.New("backend down")}
	r := newTestRouter(t, cl)

	m, ok, err := r.Route(context.Background(), "turn on red interior light")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || m.Command != (Command{Group: "Interior", Name: "Red"}) {
		t.Errorf("expected semantic match despite classifier failure, got ok=%v match=%+v", ok, m)
	}
}

func TestRouter_Deterministic(t *testing.T) {
	t.Parallel()

	cl := &fakeClassifier{label: "activate red interior", confidence: 0.40}
	r := newTestRouter(t, cl)

	first, ok1, _ := r.Route(context.Background(), "turn on red interior light")
	second, ok2, _ := r.Route(context.Background(), "turn on red interior light")
	if ok1 != ok2 || first != second {
		t.Errorf("expected identical decisions, got %+v/%v and %+v/%v", first, ok1, second, ok2)
	}
}

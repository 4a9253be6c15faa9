package lsh

import "testing"

func TestSimilarDocumentsFewerThanTwo(t *testing.T) {
	idx := New([]string{"only one review here"}, 4, 5)
	if got := idx.SimilarDocuments(5); got != nil {
		t.Fatalf("expected nil for a single document, got %v", got)
	}
}

func TestSimilarDocumentsIdenticalVectors(t *testing.T) {
	docs := []string{
		"great coffee strong aroma smooth finish",
		"great coffee strong aroma smooth finish",
		"completely unrelated text about mountains",
	}
	idx := New(docs, 4, 5)
	pairs := idx.SimilarPairs(-1)
	if len(pairs) == 0 {
		t.Fatalf("expected at least one candidate pair")
	}
	top := pairs[0]
	if top.DocA != 0 || top.DocB != 1 {
		t.Fatalf("expected the identical pair (0,1) to rank first, got (%d,%d)", top.DocA, top.DocB)
	}
	if top.Similarity < 0.999 {
		t.Fatalf("identical documents should have similarity ~1.0, got %f", top.Similarity)
	}
}

func TestSimilarDocumentsDeterministicOrder(t *testing.T) {
	docs := []string{
		"the coffee was bitter and cold",
		"the coffee was bitter and cold today",
		"a completely different review about shipping delays",
		"shipping was slow and the box was damaged",
	}
	idx := New(docs, 4, 5)
	first := idx.SimilarDocuments(3)
	second := idx.SimilarDocuments(3)
	if len(first) != len(second) {
		t.Fatalf("non-deterministic result length: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("non-deterministic ordering at %d: %v vs %v", i, first, second)
		}
	}
}

func TestSimilarDocumentsTruncatesToN(t *testing.T) {
	docs := []string{
		"alpha beta gamma delta",
		"alpha beta gamma delta epsilon",
		"alpha beta gamma zeta",
		"totally unrelated words about weather",
	}
	idx := New(docs, 4, 5)
	got := idx.SimilarDocuments(1)
	if len(got) > 1 {
		t.Fatalf("expected at most 1 document, got %d: %v", len(got), got)
	}
}

func TestCosineOrthogonal(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{0, 1, 0}
	if sim := cosine(a, b); sim != 0 {
		t.Fatalf("cosine of orthogonal vectors = %f, want 0", sim)
	}
}

func TestCosineZeroVector(t *testing.T) {
	a := []float64{0, 0, 0}
	b := []float64{1, 1, 1}
	if sim := cosine(a, b); sim != 0 {
		t.Fatalf("cosine with a zero vector = %f, want 0", sim)
	}
}

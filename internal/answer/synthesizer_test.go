package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

// fakeGenerator records the prompt it was given and returns a canned answer.
type fakeGenerator struct {
	answer    string
	err       error
	prompt    string
	image     *models.QuestionImage
	callCount int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, image *models.QuestionImage) (string, error) {
	f.callCount++
	f.prompt = prompt
	f.image = image
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeGenerator) Close() error { return nil }

func retrievalOf(contents ...string) *models.RetrievalResult {
	r := &models.RetrievalResult{Query: "q"}
	for i, c := range contents {
		r.Chunks = append(r.Chunks, &models.RetrievedChunk{
			Chunk: &models.Chunk{
				ID:            "src_" + string(rune('0'+i)),
				SourceID:      "src",
				Content:       c,
				SequenceIndex: i,
			},
			Score: 1.0 - float64(i)*0.1,
		})
	}
	return r
}

func TestNewSynthesizerValidation(t *testing.T) {
	if _, err := NewSynthesizer(&fakeGenerator{}, 0); err == nil {
		t.Error("expected error for zero budget")
	}
}

func TestSynthesizeEmptyRetrievalSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{answer: "should not be called"}
	s, err := NewSynthesizer(gen, 8000)
	if err != nil {
		t.Fatal(err)
	}

	record, err := s.Synthesize(context.Background(), "anything", &models.RetrievalResult{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != models.StatusInsufficientContext {
		t.Errorf("status = %s, want insufficient_context", record.Status)
	}
	if gen.callCount != 0 {
		t.Errorf("generator called %d times, want 0", gen.callCount)
	}
	if record.Answer == "" {
		t.Error("expected a standing not-available answer")
	}
}

func TestSynthesizeAnswered(t *testing.T) {
	gen := &fakeGenerator{answer: "The sky is blue."}
	s, err := NewSynthesizer(gen, 8000)
	if err != nil {
		t.Fatal(err)
	}

	retrieval := retrievalOf("The sky is blue on a clear day.", "Grass is green.")
	record, err := s.Synthesize(context.Background(), "What color is the sky?", retrieval, nil)
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != models.StatusAnswered {
		t.Errorf("status = %s, want answered", record.Status)
	}
	if record.Answer != "The sky is blue." {
		t.Errorf("answer = %q", record.Answer)
	}
	if len(record.SupportingChunks) != 2 {
		t.Errorf("supporting chunks = %d, want 2", len(record.SupportingChunks))
	}
	if !strings.Contains(gen.prompt, "What color is the sky?") {
		t.Error("prompt missing question")
	}
	if !strings.Contains(gen.prompt, "The sky is blue on a clear day.") {
		t.Error("prompt missing context chunk")
	}
}

func TestSynthesizeContextBudget(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}
	s, err := NewSynthesizer(gen, 25)
	if err != nil {
		t.Fatal(err)
	}

	// 20 + 20 chars: only the first fits the 25-char budget.
	retrieval := retrievalOf(strings.Repeat("a", 20), strings.Repeat("b", 20), strings.Repeat("c", 3))
	record, err := s.Synthesize(context.Background(), "q", retrieval, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(record.SupportingChunks) != 1 {
		t.Fatalf("supporting chunks = %d, want 1", len(record.SupportingChunks))
	}
	if strings.Contains(gen.prompt, "bbbb") {
		t.Error("over-budget chunk leaked into prompt")
	}
}

func TestSynthesizeOversizedChunksYieldInsufficientContext(t *testing.T) {
	gen := &fakeGenerator{answer: "should not be called"}
	s, err := NewSynthesizer(gen, 10)
	if err != nil {
		t.Fatal(err)
	}

	// Every chunk overflows the 10-char budget on its own, so nothing may
	// be truncated into the prompt and no generation call is spent.
	retrieval := retrievalOf(strings.Repeat("x", 50), strings.Repeat("y", 30))
	record, err := s.Synthesize(context.Background(), "q", retrieval, nil)
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != models.StatusInsufficientContext {
		t.Errorf("status = %s, want insufficient_context", record.Status)
	}
	if len(record.SupportingChunks) != 0 {
		t.Errorf("supporting chunks = %d, want 0", len(record.SupportingChunks))
	}
	if gen.callCount != 0 {
		t.Errorf("generator called %d times, want 0", gen.callCount)
	}
}

func TestSynthesizeRefusalClassified(t *testing.T) {
	gen := &fakeGenerator{answer: "The information is not available in the provided documents."}
	s, err := NewSynthesizer(gen, 8000)
	if err != nil {
		t.Fatal(err)
	}

	record, err := s.Synthesize(context.Background(), "Who won in 2031?", retrievalOf("The sky is blue."), nil)
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != models.StatusInsufficientContext {
		t.Errorf("status = %s, want insufficient_context", record.Status)
	}
}

func TestSynthesizeGenerationFailure(t *testing.T) {
	boom := errors.New("service down")
	gen := &fakeGenerator{err: boom}
	s, err := NewSynthesizer(gen, 8000)
	if err != nil {
		t.Fatal(err)
	}

	record, err := s.Synthesize(context.Background(), "q", retrievalOf("context"), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped service error", err)
	}
	if record == nil || record.Status != models.StatusGenerationFailed {
		t.Errorf("record = %+v, want generation_failed", record)
	}
}

func TestSynthesizePassesImageThrough(t *testing.T) {
	gen := &fakeGenerator{answer: "a red circle"}
	s, err := NewSynthesizer(gen, 8000)
	if err != nil {
		t.Fatal(err)
	}

	img := &models.QuestionImage{MIMEType: "image/png", Data: []byte{1, 2, 3}}
	if _, err := s.Synthesize(context.Background(), "what is in the image?", retrievalOf("shapes doc"), img); err != nil {
		t.Fatal(err)
	}
	if gen.image != img {
		t.Error("image not forwarded to generator")
	}
}

func TestClassifyAnswer(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.AnswerStatus
	}{
		{name: "plain answer", text: "Paris is the capital of France.", want: models.StatusAnswered},
		{name: "refusal phrase", text: "The information is not available in the provided document.", want: models.StatusInsufficientContext},
		{name: "refusal uppercase", text: "THE CONTEXT DOES NOT CONTAIN the answer.", want: models.StatusInsufficientContext},
		{name: "empty", text: "   ", want: models.StatusInsufficientContext},
		{name: "mentions document but answers", text: "According to the document, the sky is blue.", want: models.StatusAnswered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyAnswer(tt.text); got != tt.want {
				t.Errorf("classifyAnswer(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

package answer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// noContextAnswer is returned without a generation call when retrieval
// produced nothing to ground an answer on.
const noContextAnswer = "The information is not available in the provided documents."

// Synthesizer turns a question plus retrieved chunks into an AnswerRecord.
type Synthesizer struct {
	generator       Generator
	maxContextChars int
	logger          *zap.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Synthesizer) {
		s.logger = logger
	}
}

// NewSynthesizer creates a synthesizer that packs at most maxContextChars of
// chunk text into each prompt.
func NewSynthesizer(generator Generator, maxContextChars int, opts ...Option) (*Synthesizer, error) {
	if maxContextChars <= 0 {
		return nil, fmt.Errorf("maxContextChars must be positive, got %d", maxContextChars)
	}
	s := &Synthesizer{
		generator:       generator,
		maxContextChars: maxContextChars,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Synthesize builds a grounded prompt from the retrieval result and asks the
// generator for an answer. An empty retrieval, or one where no whole chunk
// fits the character budget, short-circuits to an insufficient-context
// record without spending a generation call. A
// generation failure after retries yields a generation_failed record
// alongside the error, so callers can both report and inspect it.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, retrieval *models.RetrievalResult, image *models.QuestionImage) (*models.AnswerRecord, error) {
	if retrieval.Empty() {
		return &models.AnswerRecord{
			Answer: noContextAnswer,
			Status: models.StatusInsufficientContext,
		}, nil
	}

	included := s.selectChunks(retrieval.Chunks)
	if len(included) == 0 {
		// Every retrieved chunk overflows the budget on its own; with no
		// whole chunk to ground on there is nothing to send the generator.
		return &models.AnswerRecord{
			Answer: noContextAnswer,
			Status: models.StatusInsufficientContext,
		}, nil
	}
	texts := make([]string, len(included))
	for i, c := range included {
		texts[i] = c.Content
	}
	prompt := BuildPrompt(question, texts)

	text, err := s.generator.Generate(ctx, prompt, image)
	if err != nil {
		s.logger.Warn("answer generation failed",
			zap.String("question", utils.Truncate(question, 200)),
			zap.Error(err))
		return &models.AnswerRecord{
			SupportingChunks: included,
			Status:           models.StatusGenerationFailed,
		}, fmt.Errorf("generate answer: %w", err)
	}

	record := &models.AnswerRecord{
		Answer:           text,
		SupportingChunks: included,
		Status:           classifyAnswer(text),
	}
	s.logger.Debug("answer synthesized",
		zap.String("status", string(record.Status)),
		zap.Int("supporting_chunks", len(included)))
	return record, nil
}

// selectChunks keeps whole chunks, in rank order, while their combined
// content fits the character budget. The first chunk that would overflow
// ends the selection; chunks are never truncated to fit.
func (s *Synthesizer) selectChunks(ranked []*models.RetrievedChunk) []*models.Chunk {
	var included []*models.Chunk
	used := 0
	for _, rc := range ranked {
		n := len(rc.Chunk.Content)
		if used+n > s.maxContextChars {
			break
		}
		included = append(included, rc.Chunk)
		used += n
	}
	return included
}

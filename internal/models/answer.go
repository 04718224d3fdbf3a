package models

// RetrievedChunk is a chunk paired with its similarity score for one query.
type RetrievedChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is the ranked outcome of one retrieval, most similar first.
// It is recomputed per query and never persisted.
type RetrievalResult struct {
	Chunks    []*RetrievedChunk `json:"chunks"`
	Query     string            `json:"query"`
	QueryTime int64             `json:"query_time_ms"`
}

// Empty reports whether the retrieval produced no chunks.
func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Chunks) == 0
}

// AnswerStatus classifies the outcome of answer synthesis.
type AnswerStatus string

const (
	// StatusAnswered means the model produced an answer grounded in the context.
	StatusAnswered AnswerStatus = "answered"
	// StatusInsufficientContext means the indexed documents do not contain the
	// answer. This is a successful outcome, distinct from a service failure.
	StatusInsufficientContext AnswerStatus = "insufficient_context"
	// StatusGenerationFailed means the generation service failed after retries.
	StatusGenerationFailed AnswerStatus = "generation_failed"
)

// AnswerRecord is the structured result of one question. SupportingChunks
// lists the chunks actually included in the prompt context, in the order used.
type AnswerRecord struct {
	Answer           string       `json:"answer"`
	SupportingChunks []*Chunk     `json:"supporting_chunks"`
	Status           AnswerStatus `json:"status"`
}

// QuestionImage is an optional image attached to a question. It rides along
// into the generation call and never participates in retrieval.
type QuestionImage struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

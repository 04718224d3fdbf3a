package answer

import "strings"

// chunkSeparator visually divides chunks inside the prompt context so the
// model does not run unrelated passages together.
const chunkSeparator = "\n\n---\n\n"

// notAvailableInstruction tells the model how to refuse when the context
// lacks the answer. Refusal detection in classify.go keys off this phrasing.
const notAvailableInstruction = "If the context does not contain the answer, state that the information is not available in the provided documents."

// BuildPrompt assembles the grounded prompt: instructions, the chunk context
// in retrieval order, then the question.
func BuildPrompt(question string, chunks []string) string {
	var b strings.Builder
	b.WriteString("Based on the following context from a document, and the provided image (if any), please provide a clear and concise answer to the question.\n")
	b.WriteString(notAvailableInstruction)
	b.WriteString("\n\nContext:\n---\n")
	b.WriteString(strings.Join(chunks, chunkSeparator))
	b.WriteString("\n---\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

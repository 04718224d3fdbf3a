package chunker

import (
	"errors"
	"strings"
	"testing"
)

func TestNewChunker_validation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"valid", 1000, 200, false},
		{"small valid", 20, 5, false},
		{"zero size", 0, 0, true},
		{"zero overlap", 100, 0, true},
		{"negative overlap", 100, -1, true},
		{"overlap equals size", 100, 100, true},
		{"overlap exceeds size", 100, 150, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.size, tt.overlap)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewChunker(%d, %d) error = %v, wantErr %v", tt.size, tt.overlap, err, tt.wantErr)
			}
			if tt.wantErr {
				var ce *ConfigError
				if !errors.As(err, &ce) {
					t.Errorf("error type = %T, want *ConfigError", err)
				}
			}
		})
	}
}

func TestChunk_emptyInput(t *testing.T) {
	c, _ := NewChunker(20, 5)
	for _, text := range []string{"", "   ", "\n\t  \n"} {
		if _, err := c.Chunk("doc", text); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Chunk(%q) error = %v, want ErrEmptyInput", text, err)
		}
	}
}

func TestChunk_shortTextSingleChunk(t *testing.T) {
	c, _ := NewChunker(100, 20)
	chunks, err := c.Chunk("doc", "  short text  ")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if chunks[0].Content != "short text" {
		t.Errorf("content = %q, want trimmed full text", chunks[0].Content)
	}
	if chunks[0].SequenceIndex != 0 || chunks[0].SourceID != "doc" {
		t.Errorf("chunk = %+v, want seq 0 source doc", chunks[0])
	}
}

func TestChunk_boundariesAndOverlap(t *testing.T) {
	// Literal scenario: 32-rune text, window 20, overlap 5, step 15.
	c, _ := NewChunker(20, 5)
	chunks, err := c.Chunk("doc", "The sky is blue. Grass is green.")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if chunks[0].Content != "The sky is blue. Gra" {
		t.Errorf("chunk 0 = %q", chunks[0].Content)
	}
	if chunks[1].Content != ". Grass is green." {
		t.Errorf("chunk 1 = %q", chunks[1].Content)
	}
	if got := chunks[0].Content[len(chunks[0].Content)-5:]; got != chunks[1].Content[:5] {
		t.Errorf("overlap mismatch: %q vs %q", got, chunks[1].Content[:5])
	}
}

func TestChunk_roundTrip(t *testing.T) {
	// Concatenating chunks with overlaps removed reconstructs the text.
	tests := []struct {
		size    int
		overlap int
		text    string
	}{
		{20, 5, "The sky is blue. Grass is green."},
		{10, 3, strings.Repeat("abcdefghij", 13)},
		{50, 10, strings.Repeat("lorem ipsum dolor sit amet ", 40)},
		{8, 2, "日本語のテキストもルーン単位で分割されます。"},
	}
	for _, tt := range tests {
		c, err := NewChunker(tt.size, tt.overlap)
		if err != nil {
			t.Fatal(err)
		}
		text := strings.TrimSpace(tt.text)
		chunks, err := c.Chunk("doc", text)
		if err != nil {
			t.Fatal(err)
		}
		var b strings.Builder
		for i, ch := range chunks {
			if ch.SequenceIndex != i {
				t.Errorf("size=%d overlap=%d: seq[%d] = %d", tt.size, tt.overlap, i, ch.SequenceIndex)
			}
			runes := []rune(ch.Content)
			if len(runes) > tt.size {
				t.Errorf("chunk %d longer than window: %d > %d", i, len(runes), tt.size)
			}
			if i == 0 {
				b.WriteString(ch.Content)
			} else {
				b.WriteString(string(runes[min(tt.overlap, len(runes)):]))
			}
		}
		if b.String() != text {
			t.Errorf("size=%d overlap=%d: round trip mismatch\n got %q\nwant %q", tt.size, tt.overlap, b.String(), text)
		}
	}
}

func TestChunk_consecutiveOverlapExact(t *testing.T) {
	c, _ := NewChunker(12, 4)
	text := strings.Repeat("0123456789", 7)
	chunks, err := c.Chunk("doc", text)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(chunks); i++ {
		cur := []rune(chunks[i].Content)
		next := []rune(chunks[i+1].Content)
		tail := string(cur[len(cur)-4:])
		n := 4
		if len(next) < n {
			n = len(next)
		}
		if tail[:n] != string(next[:n]) {
			t.Errorf("chunks %d/%d overlap mismatch: %q vs %q", i, i+1, tail, string(next[:n]))
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

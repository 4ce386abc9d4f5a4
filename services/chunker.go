package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ChunkingStrategy is the closed set of fragmenting strategies. Dispatch
// goes through strategyTable so the set stays exhaustively checkable.
type ChunkingStrategy string

const (
	StrategyFixedSize ChunkingStrategy = "fixed-size"
	StrategySentence  ChunkingStrategy = "sentence"
	StrategyParagraph ChunkingStrategy = "paragraph"
	// StrategySemantic is paragraph splitting used as a structural proxy
	// for semantic boundaries. No NLP-based segmentation is performed.
	StrategySemantic ChunkingStrategy = "semantic"
)

// ParseChunkingStrategy maps a caller-supplied string onto the closed set,
// defaulting to fixed-size for unknown values.
func ParseChunkingStrategy(s string) ChunkingStrategy {
	switch ChunkingStrategy(s) {
	case StrategySentence:
		return StrategySentence
	case StrategyParagraph:
		return StrategyParagraph
	case StrategySemantic:
		return StrategySemantic
	default:
		return StrategyFixedSize
	}
}

// ChunkParams configures a chunking run. ChunkSize doubles as the sentence
// strategy's max accumulated size; MaxChunks caps the fragment count for
// the sentence and paragraph strategies (the pipeline truncates fixed-size
// output separately).
type ChunkParams struct {
	ChunkSize int
	Overlap   int
	MaxChunks int
}

// Fragment is one kept piece of the source text. StartChar/EndChar are
// offsets into the original text and feed the page locator.
type Fragment struct {
	Text      string
	StartChar int
	EndChar   int
	Index     int
}

type chunkFunc func(text string, p ChunkParams) []Fragment

var strategyTable = map[ChunkingStrategy]chunkFunc{
	StrategyFixedSize: chunkFixedSize,
	StrategySentence:  chunkSentences,
	StrategyParagraph: chunkParagraphs,
	StrategySemantic:  chunkParagraphs,
}

var (
	sentenceRegex  = regexp.MustCompile(`[^.!?]+[.!?]+`)
	paragraphRegex = regexp.MustCompile(`\n\s*\n`)
)

// ChunkText splits text under the given strategy. Fragments are trimmed,
// empty ones dropped, and indices reassigned sequentially over the kept
// fragments.
func ChunkText(text string, strategy ChunkingStrategy, p ChunkParams) ([]Fragment, error) {
	fn, ok := strategyTable[strategy]
	if !ok {
		return nil, fmt.Errorf("unknown chunking strategy: %s", strategy)
	}
	frags := fn(text, p)
	for i := range frags {
		frags[i].Index = i
	}
	return frags, nil
}

// chunkFixedSize slides a window of ChunkSize characters, advancing by
// ChunkSize-Overlap each step. Overlap is clamped to ChunkSize-1, and the
// window is forced forward by one character if it would ever stall, so the
// walk always terminates.
func chunkFixedSize(text string, p ChunkParams) []Fragment {
	size := p.ChunkSize
	if size < 1 {
		size = 1
	}
	overlap := p.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	step := size - overlap

	var frags []Fragment
	for start := 0; start < len(text); {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		if trimmed := strings.TrimSpace(text[start:end]); trimmed != "" {
			frags = append(frags, Fragment{Text: trimmed, StartChar: start, EndChar: end})
		}
		next := start + step
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return frags
}

// chunkSentences accumulates sentences into a buffer until the next one
// would push the buffer past ChunkSize, then flushes the buffer as one
// fragment. Stops once MaxChunks fragments exist; leftover buffered text
// becomes a final fragment if capacity remains.
func chunkSentences(text string, p ChunkParams) []Fragment {
	maxSize := p.ChunkSize
	if maxSize < 1 {
		maxSize = 1
	}

	spans := sentenceRegex.FindAllStringIndex(text, -1)
	tail := 0
	if len(spans) > 0 {
		tail = spans[len(spans)-1][1]
	}
	if strings.TrimSpace(text[tail:]) != "" {
		spans = append(spans, []int{tail, len(text)})
	}
	if len(spans) == 0 {
		return nil
	}

	var frags []Fragment
	bufStart, bufEnd := -1, 0

	flush := func() {
		if bufStart < 0 {
			return
		}
		if trimmed := strings.TrimSpace(text[bufStart:bufEnd]); trimmed != "" {
			s, e := trimmedOffsets(text, bufStart, bufEnd)
			frags = append(frags, Fragment{Text: trimmed, StartChar: s, EndChar: e})
		}
		bufStart = -1
	}

	for _, sp := range spans {
		if p.MaxChunks > 0 && len(frags) >= p.MaxChunks {
			bufStart = -1
			break
		}
		if bufStart < 0 {
			bufStart, bufEnd = sp[0], sp[1]
			continue
		}
		if len(strings.TrimSpace(text[bufStart:sp[1]])) > maxSize {
			flush()
			bufStart, bufEnd = sp[0], sp[1]
		} else {
			bufEnd = sp[1]
		}
	}
	if p.MaxChunks <= 0 || len(frags) < p.MaxChunks {
		flush()
	}
	return frags
}

// chunkParagraphs treats each run of text between blank lines as one
// fragment, capped at MaxChunks paragraphs.
func chunkParagraphs(text string, p ChunkParams) []Fragment {
	seps := paragraphRegex.FindAllStringIndex(text, -1)

	var frags []Fragment
	prev := 0
	emit := func(start, end int) bool {
		if p.MaxChunks > 0 && len(frags) >= p.MaxChunks {
			return false
		}
		if trimmed := strings.TrimSpace(text[start:end]); trimmed != "" {
			s, e := trimmedOffsets(text, start, end)
			frags = append(frags, Fragment{Text: trimmed, StartChar: s, EndChar: e})
		}
		return true
	}

	for _, sep := range seps {
		if !emit(prev, sep[0]) {
			return frags
		}
		prev = sep[1]
	}
	emit(prev, len(text))
	return frags
}

// trimmedOffsets narrows a raw [start,end) span to the offsets of its
// whitespace-trimmed content within the original text.
func trimmedOffsets(text string, start, end int) (int, int) {
	raw := text[start:end]
	lead := len(raw) - len(strings.TrimLeftFunc(raw, unicode.IsSpace))
	trail := len(raw) - len(strings.TrimRightFunc(raw, unicode.IsSpace))
	return start + lead, end - trail
}

// ProjectedChunkCount is the number of windows the fixed-size strategy
// walks for a text of the given length, used by estimate-only requests
// without materializing fragments.
func ProjectedChunkCount(textLen, chunkSize, overlap int) int {
	if textLen <= 0 {
		return 0
	}
	if chunkSize < 1 {
		chunkSize = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	step := chunkSize - overlap
	return (textLen + step - 1) / step
}

package search

import "strings"

// ContextPriority tiers ranked results into the budget a downstream agent
// gets to see in full versus compressed or dropped.
type ContextPriority int

const (
	PriorityCritical ContextPriority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

func (p ContextPriority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// lowTierCompressedLines caps how much of a Low-priority chunk survives
// packing: enough to identify the match, not enough to spend the token
// budget a Critical/High chunk needed.
const lowTierCompressedLines = 8

// approxCharsPerToken is the same rough token estimator the rest of the
// indexing pipeline uses when no tokenizer is available for a language.
const approxCharsPerToken = 4

// PackedChunk is one entry of an AssembledContext: a search result plus
// the priority tier it packed at and the (possibly compressed) content
// that was actually included.
type PackedChunk struct {
	Result   *SearchResult
	Priority ContextPriority
	Content  string
	Tokens   int
}

// AssembledContext is the token-budgeted context window ContextWindow
// builds from ranked search results: the highest-priority chunks survive
// in full, Low-priority chunks are compressed, and anything that still
// doesn't fit is dropped (Truncated records whether that happened).
type AssembledContext struct {
	Chunks      []*PackedChunk
	TotalTokens int
	Truncated   bool
}

// AssembleContext greedily packs results (already ranked by fused/boosted
// score) into maxTokens, assigning each a priority tier relative to the
// top result's score and compressing Low-tier chunks before dropping
// anything.
func AssembleContext(results []*SearchResult, maxTokens int) *AssembledContext {
	ctx := &AssembledContext{}
	if len(results) == 0 || maxTokens <= 0 {
		return ctx
	}

	topScore := results[0].Score
	budget := maxTokens

	for _, r := range results {
		priority := tierOf(r.Score, topScore)
		content := r.Chunk.Content
		if priority == PriorityLow {
			content = compress(content, lowTierCompressedLines)
		}

		tokens := approxTokens(content)
		if tokens > budget {
			if priority != PriorityLow {
				// Try once more compressed before giving up on this chunk.
				content = compress(content, lowTierCompressedLines)
				tokens = approxTokens(content)
			}
			if tokens > budget {
				ctx.Truncated = true
				continue
			}
		}

		ctx.Chunks = append(ctx.Chunks, &PackedChunk{
			Result:   r,
			Priority: priority,
			Content:  content,
			Tokens:   tokens,
		})
		ctx.TotalTokens += tokens
		budget -= tokens
	}

	return ctx
}

// tierOf buckets a result's score relative to the top score in this result
// set into one of the four priority tiers.
func tierOf(score, topScore float64) ContextPriority {
	if topScore <= 0 {
		return PriorityLow
	}
	ratio := score / topScore
	switch {
	case ratio >= 0.8:
		return PriorityCritical
	case ratio >= 0.5:
		return PriorityHigh
	case ratio >= 0.25:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// compress keeps the first maxLines lines of content, appending a marker
// so callers can tell the chunk was shortened for packing.
func compress(content string, maxLines int) string {
	lines := strings.Split(content, "\n")
	if len(lines) <= maxLines {
		return content
	}
	return strings.Join(lines[:maxLines], "\n") + "\n/* … truncated for context packing … */"
}

func approxTokens(content string) int {
	return len(content)/approxCharsPerToken + 1
}

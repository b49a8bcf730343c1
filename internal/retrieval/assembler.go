package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docrank/docrank/internal/store"
)

// ContextAssembler turns the final ranked chunks into a formatted
// context block with document summaries and citations. In expansion
// mode it injects adjacent chunks from the retrieved candidate pool as
// supporting evidence.
type ContextAssembler struct {
	expandContext bool
	maxResults    int
}

// NewContextAssembler builds an assembler from pipeline options.
func NewContextAssembler(opts Options) *ContextAssembler {
	opts = opts.normalized()
	return &ContextAssembler{
		expandContext: opts.ExpandContext,
		maxResults:    opts.MaxResults,
	}
}

// Assemble groups ranked chunks by document and renders the contextual
// response. pool is the full set of candidates retrieved during this
// invocation; adjacency expansion only draws from it, never from the
// backend. Assemble is a pure function of its inputs.
func (a *ContextAssembler) Assemble(ranked []RankedResult, pool []store.CandidateMatch) ContextualResponse {
	chunks := ranked
	if len(chunks) > a.maxResults {
		chunks = chunks[:a.maxResults]
	}
	if a.expandContext {
		chunks = a.expandWithAdjacent(chunks, pool)
		// The cap covers injected neighbors too. Supporting chunks sit
		// after the primaries, so trimming drops them first.
		if len(chunks) > a.maxResults {
			chunks = chunks[:a.maxResults]
		}
	}

	groups, docOrder := groupByDocument(chunks)

	summaries := make([]DocumentSummary, 0, len(docOrder))
	for _, docID := range docOrder {
		summaries = append(summaries, summarizeDocument(docID, groups[docID]))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].AverageScore > summaries[j].AverageScore
	})

	var (
		out       []ContextualChunk
		citations []string
		citSeen   = map[string]bool{}
		sb        strings.Builder
	)
	for i, summary := range summaries {
		if i > 0 {
			sb.WriteString("\n")
		}
		title := summary.DocumentTitle
		if title == "" {
			title = summary.DocumentID
		}
		if summary.PageRanges != "" {
			fmt.Fprintf(&sb, "## %s (%s)\n", title, summary.PageRanges)
		} else {
			fmt.Fprintf(&sb, "## %s\n", title)
		}

		for _, r := range groups[summary.DocumentID] {
			writeChunk(&sb, r)
			out = append(out, ContextualChunk{
				Key:           r.Key,
				Index:         r.Index,
				Meta:          r.Meta,
				CombinedScore: r.CombinedScore,
				Supporting:    r.Supporting,
			})
			if c := r.Meta.Citation; c != "" && !citSeen[c] {
				citSeen[c] = true
				citations = append(citations, c)
			}
		}
	}

	if out == nil {
		out = []ContextualChunk{}
	}
	if citations == nil {
		citations = []string{}
	}
	if summaries == nil {
		summaries = []DocumentSummary{}
	}
	return ContextualResponse{
		Chunks:          out,
		DocumentSummary: summaries,
		ContextString:   sb.String(),
		Citations:       citations,
	}
}

// expandWithAdjacent injects the chunks at index-1 and index+1 for each
// primary chunk, when those neighbors were retrieved during this
// invocation. Injected chunks carry a discounted score and the
// Supporting flag; chunks already present are skipped.
func (a *ContextAssembler) expandWithAdjacent(primary []RankedResult, pool []store.CandidateMatch) []RankedResult {
	type position struct {
		doc   string
		chunk int
	}

	have := make(map[string]bool, len(primary))
	for _, r := range primary {
		have[r.Key] = true
	}

	byPosition := make(map[position]store.CandidateMatch, len(pool))
	for _, c := range pool {
		pos := position{c.Meta.DocumentID, c.Meta.ChunkIndex}
		if _, ok := byPosition[pos]; !ok {
			byPosition[pos] = c
		}
	}

	expanded := make([]RankedResult, len(primary))
	copy(expanded, primary)

	for _, r := range primary {
		if r.Meta.DocumentID == "" {
			continue
		}
		for _, neighborIdx := range []int{r.Meta.ChunkIndex - 1, r.Meta.ChunkIndex + 1} {
			if neighborIdx < 0 {
				continue
			}
			neighbor, ok := byPosition[position{r.Meta.DocumentID, neighborIdx}]
			if !ok || have[neighbor.Key] {
				continue
			}
			have[neighbor.Key] = true
			expanded = append(expanded, RankedResult{
				Key:           neighbor.Key,
				Index:         neighbor.Index,
				Meta:          neighbor.Meta,
				Appearances:   1,
				BestRank:      r.BestRank,
				AverageRank:   r.AverageRank,
				CombinedScore: r.CombinedScore * supportingScoreDiscount,
				BestDistance:  neighbor.Distance,
				Supporting:    true,
			})
		}
	}
	return expanded
}

// groupByDocument buckets chunks by document, sorted within each group
// by page then chunk index. Document order is first-seen.
func groupByDocument(chunks []RankedResult) (map[string][]RankedResult, []string) {
	groups := make(map[string][]RankedResult)
	var order []string
	for _, r := range chunks {
		if _, ok := groups[r.Meta.DocumentID]; !ok {
			order = append(order, r.Meta.DocumentID)
		}
		groups[r.Meta.DocumentID] = append(groups[r.Meta.DocumentID], r)
	}
	for _, docID := range order {
		g := groups[docID]
		sort.SliceStable(g, func(i, j int) bool {
			if g[i].Meta.PageStart != g[j].Meta.PageStart {
				return g[i].Meta.PageStart < g[j].Meta.PageStart
			}
			return g[i].Meta.ChunkIndex < g[j].Meta.ChunkIndex
		})
	}
	return groups, order
}

func summarizeDocument(docID string, group []RankedResult) DocumentSummary {
	pageSet := map[int]bool{}
	var (
		indices []int
		total   float64
		title   string
	)
	for _, r := range group {
		for p := r.Meta.PageStart; p <= r.Meta.PageEnd; p++ {
			if p > 0 {
				pageSet[p] = true
			}
		}
		if r.Meta.PageStart > 0 && r.Meta.PageEnd < r.Meta.PageStart {
			pageSet[r.Meta.PageStart] = true
		}
		indices = append(indices, r.Meta.ChunkIndex)
		total += r.CombinedScore
		if title == "" {
			title = r.Meta.DocumentTitle
		}
	}

	pages := make([]int, 0, len(pageSet))
	for p := range pageSet {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	sort.Ints(indices)

	return DocumentSummary{
		DocumentID:     docID,
		DocumentTitle:  title,
		RelevantChunks: len(group),
		RelevantPages:  pages,
		PageRanges:     FormatPageRanges(pages),
		ChunkIndices:   indices,
		AverageScore:   total / float64(len(group)),
	}
}

func writeChunk(sb *strings.Builder, r RankedResult) {
	var labels []string
	if r.Supporting {
		labels = append(labels, "(supporting)")
	}
	if r.Meta.PageStart > 0 {
		if r.Meta.PageEnd > r.Meta.PageStart {
			labels = append(labels, fmt.Sprintf("[pages %d-%d]", r.Meta.PageStart, r.Meta.PageEnd))
		} else {
			labels = append(labels, fmt.Sprintf("[page %d]", r.Meta.PageStart))
		}
	}

	sb.WriteString("\n")
	if len(labels) > 0 {
		sb.WriteString(strings.Join(labels, " "))
		sb.WriteString("\n")
	}
	sb.WriteString(r.Meta.Content)
	sb.WriteString("\n")
}

// FormatPageRanges renders a sorted unique page list as a human
// readable range string: "page 4", "pages 1, 2", "pages 1-3, 5-6".
// An empty list renders as an empty string.
func FormatPageRanges(pages []int) string {
	if len(pages) == 0 {
		return ""
	}
	if len(pages) == 1 {
		return fmt.Sprintf("page %d", pages[0])
	}
	// A list that is exactly one pair of consecutive pages reads better
	// enumerated than collapsed.
	if len(pages) == 2 && pages[1] == pages[0]+1 {
		return fmt.Sprintf("pages %d, %d", pages[0], pages[1])
	}

	var runs []string
	start := pages[0]
	prev := pages[0]
	flush := func() {
		if prev > start {
			runs = append(runs, fmt.Sprintf("%d-%d", start, prev))
		} else {
			runs = append(runs, fmt.Sprintf("%d", start))
		}
	}
	for _, p := range pages[1:] {
		if p == prev+1 {
			prev = p
			continue
		}
		flush()
		start, prev = p, p
	}
	flush()
	return "pages " + strings.Join(runs, ", ")
}

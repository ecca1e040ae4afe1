package storage

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// TermMatch records where one query term matched inside node content.
type TermMatch struct {
	// Term is the matched query term, lowercased.
	Term string `json:"term"`

	// Positions are byte offsets of each occurrence in the content.
	Positions []int `json:"positions"`
}

// Tokenize splits a query into lowercased terms.
//
// Terms are runs of letters and digits; everything else separates.
func Tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	terms := make([]string, 0, len(fields))
	seen := make(map[string]bool)
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// IndexText concatenates the indexed fields of a node into the text the
// full-text index covers: content, path, and tags.
func IndexText(node *MemoryNode) string {
	parts := []string{node.Content, node.Path}
	parts = append(parts, node.Tags...)
	return strings.Join(parts, " ")
}

// ScoreContent computes a relevance score for the indexed text of a node
// against the query terms.
//
// The score is term frequency normalized by text length, identical across
// backends so that relevance ordering does not depend on the storage
// variant in use. Returns 0 when no term matches.
func ScoreContent(text string, terms []string) float64 {
	if len(terms) == 0 || text == "" {
		return 0
	}

	lower := strings.ToLower(text)
	words := Tokenize(lower)
	if len(words) == 0 {
		return 0
	}

	hits := 0
	matched := 0
	for _, term := range terms {
		count := strings.Count(lower, term)
		if count > 0 {
			matched++
			hits += count
		}
	}
	if matched == 0 {
		return 0
	}

	// Reward matching more distinct terms over repeating one.
	coverage := float64(matched) / float64(len(terms))
	frequency := float64(hits) / float64(len(words))
	if frequency > 1 {
		frequency = 1
	}
	return coverage * (0.5 + 0.5*frequency)
}

// TermPositions finds the byte offsets of each query term in the content.
//
// Used to build match details for content recall. Matching is
// case-insensitive; terms with no occurrence are omitted.
func TermPositions(content string, terms []string) []TermMatch {
	lower := strings.ToLower(content)

	var matches []TermMatch
	for _, term := range terms {
		var positions []int
		offset := 0
		for {
			i := strings.Index(lower[offset:], term)
			if i < 0 {
				break
			}
			positions = append(positions, offset+i)
			offset += i + len(term)
		}
		if len(positions) > 0 {
			matches = append(matches, TermMatch{Term: term, Positions: positions})
		}
	}
	return matches
}

// DefaultFuzzyDistance is the edit distance allowed by fuzzy matching.
const DefaultFuzzyDistance = 2

// MatchFuzzyText reports whether every query term appears in the text
// within the given edit distance of some text token.
// Short terms (under four runes) are held to distance 1 regardless.
func MatchFuzzyText(text string, terms []string, maxDistance int) bool {
	if len(terms) == 0 {
		return false
	}
	words := Tokenize(text)

	for _, term := range terms {
		allowed := maxDistance
		if len([]rune(term)) < 4 && allowed > 1 {
			allowed = 1
		}
		found := false
		for _, w := range words {
			if editDistance(term, w) <= allowed {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// CompileQueryRegex compiles a regex-mode query, case-insensitive.
// Returns ErrInvalidArgument (wrapped) when the pattern is malformed.
func CompileQueryRegex(query string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + query)
	if err != nil {
		return nil, ErrInvalidArgument
	}
	return re, nil
}

// SortHits orders hits by score descending (ties by domain then node ID
// for determinism) and truncates to maxResults when positive.
func SortHits(hits []*SearchHit, maxResults int) []*SearchHit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Domain != hits[j].Domain {
			return hits[i].Domain < hits[j].Domain
		}
		return hits[i].Node.ID < hits[j].Node.ID
	})

	if maxResults > 0 && len(hits) > maxResults {
		return hits[:maxResults]
	}
	return hits
}

// editDistance computes the Levenshtein distance between two strings.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

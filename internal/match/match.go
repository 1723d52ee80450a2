// Package match ranks source search candidates against a query and decides
// whether the top candidate can be accepted without asking the user.
package match

import (
	"sort"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ryanm101/gamemeta/internal/metadata"
)

// DefaultSimilarityThreshold is the minimum Jaro-Winkler similarity for the
// close tier.
const DefaultSimilarityThreshold = 0.92

// Mode selects how candidates are compared with the query.
type Mode int

const (
	// ModeExact treats the provider's answer as authoritative (barcodes).
	ModeExact Mode = iota
	// ModeFuzzy compares normalized titles.
	ModeFuzzy
)

func (m Mode) String() string {
	if m == ModeExact {
		return "exact"
	}
	return "fuzzy"
}

// Tier orders match quality; higher is better.
type Tier int

const (
	TierNone Tier = iota
	TierClose
	TierSubstring
	TierExact
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierSubstring:
		return "substring"
	case TierClose:
		return "close"
	default:
		return "none"
	}
}

// Ranked is a candidate with its match quality.
type Ranked struct {
	Result metadata.RawSearchResult
	Tier   Tier
	// Score is the best Jaro-Winkler similarity over the candidate's names.
	Score float64
	// MatchedName is the name that produced Tier.
	MatchedName string
	// Index is the candidate's position in the provider response.
	Index int
}

// Decision is the outcome of Decide.
type Decision struct {
	// Auto is true when Choice may be committed without confirmation.
	Auto   bool
	Choice *Ranked
	// Candidates is the ranked list to offer when Auto is false.
	Candidates []Ranked
}

// Options configures an Engine.
type Options struct {
	SimilarityThreshold float64
	// AutoAcceptExact allows fuzzy mode to auto-accept a single exact match.
	AutoAcceptExact bool
}

// Engine ranks candidates. It holds no mutable state.
type Engine struct {
	threshold  float64
	autoAccept bool
}

// New creates an Engine.
func New(opts Options) *Engine {
	threshold := opts.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &Engine{threshold: threshold, autoAccept: opts.AutoAcceptExact}
}

// Rank orders candidates by match quality. In exact mode every candidate is
// returned in provider order. In fuzzy mode candidates with no relation to
// the query are dropped and ties keep provider order.
func (e *Engine) Rank(query string, candidates []metadata.RawSearchResult, mode Mode) []Ranked {
	ranked := make([]Ranked, 0, len(candidates))

	if mode == ModeExact {
		for i, c := range candidates {
			ranked = append(ranked, Ranked{Result: c, Tier: TierExact, Score: 1, MatchedName: c.Name, Index: i})
		}
		return ranked
	}

	q := Normalize(query)
	if q == "" {
		return ranked
	}

	for i, c := range candidates {
		r := Ranked{Result: c, Index: i}
		for _, name := range candidateNames(c) {
			tier, score := e.compare(q, Normalize(name))
			if tier > r.Tier || (tier == r.Tier && score > r.Score) {
				r.Tier, r.Score, r.MatchedName = tier, score, name
			}
		}
		if r.Tier != TierNone {
			ranked = append(ranked, r)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Tier > ranked[j].Tier
	})
	return ranked
}

func candidateNames(c metadata.RawSearchResult) []string {
	names := make([]string, 0, 1+len(c.AlternateNames))
	names = append(names, c.Name)
	return append(names, c.AlternateNames...)
}

func (e *Engine) compare(q, name string) (Tier, float64) {
	if name == "" {
		return TierNone, 0
	}
	score := matchr.JaroWinkler(q, name, false)
	switch {
	case q == name:
		return TierExact, 1
	case strings.Contains(name, q) || strings.Contains(q, name):
		return TierSubstring, score
	case score >= e.threshold:
		return TierClose, score
	default:
		return TierNone, score
	}
}

// Decide reports whether the ranked list has an automatic choice.
func (e *Engine) Decide(ranked []Ranked, mode Mode) Decision {
	d := Decision{Candidates: ranked}
	if len(ranked) == 0 {
		return d
	}

	if mode == ModeExact {
		d.Auto = true
		d.Choice = &ranked[0]
		return d
	}

	exact := 0
	for _, r := range ranked {
		if r.Tier == TierExact {
			exact++
		}
	}
	if exact == 1 && e.autoAccept {
		d.Auto = true
		d.Choice = &ranked[0]
	}
	return d
}

// Normalize lower-cases s, removes diacritics and collapses punctuation and
// whitespace runs into single spaces.
func Normalize(s string) string {
	// Chained transformers carry state, so each call builds its own.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		if r == '\'' || r == '’' {
			continue
		}
		space = true
	}
	return b.String()
}

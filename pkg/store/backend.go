package store

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/dotsetgreg/factkeeper/pkg/facts"
)

var (
	// ErrNotFound is returned by Backend.Get when no fact has the id.
	ErrNotFound = errors.New("fact not found")
	// ErrUnsupportedBackend is returned by Open for unknown backend names.
	ErrUnsupportedBackend = errors.New("unsupported store backend")
)

// Backend is a storage engine for facts. Implementations may fail;
// FactStore is responsible for recovering from those failures.
type Backend interface {
	Name() string
	// Save inserts or replaces the fact with the same ID.
	Save(ctx context.Context, f facts.Fact) error
	Get(ctx context.Context, id string) (facts.Fact, error)
	// List returns every fact for a sender, newest first.
	List(ctx context.Context, subjectKey string) ([]facts.Fact, error)
	DeleteAll(ctx context.Context, subjectKey string) error
	// Search does a token match across all senders.
	Search(ctx context.Context, query string, limit int) ([]facts.Fact, error)
	Close() error
}

var (
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*SQLBackend)(nil)
	_ Backend = (*MongoBackend)(nil)
)

// tokenize splits a search query into lowercase terms, dropping
// single-character noise.
func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
	out := make([]string, 0, len(fields))
	seen := map[string]struct{}{}
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// score counts query tokens present in a fact's content, keywords,
// data type or person.
func score(f facts.Fact, tokens []string) int {
	content := strings.ToLower(f.Content)
	person := strings.ToLower(f.Person)
	n := 0
	for _, tok := range tokens {
		switch {
		case strings.Contains(content, tok):
			n += 2
		case string(f.DataType) == tok, person == tok:
			n++
		default:
			for _, k := range f.Keywords {
				if k == tok {
					n++
					break
				}
			}
		}
	}
	return n
}

// rank keeps facts with a positive score, best first, newest breaking ties.
func rank(candidates []facts.Fact, query string, limit int) []facts.Fact {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil
	}
	type scored struct {
		fact  facts.Fact
		score int
	}
	hits := make([]scored, 0, len(candidates))
	for _, f := range candidates {
		if s := score(f, tokens); s > 0 {
			hits = append(hits, scored{fact: f, score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].fact.CreatedAt.After(hits[j].fact.CreatedAt)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]facts.Fact, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.fact)
	}
	return out
}

package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dotsetgreg/factkeeper/pkg/facts"
	"github.com/dotsetgreg/factkeeper/pkg/logger"
)

const defaultListLimit = 10

var _ facts.Reader = (*FactStore)(nil)

// FactStore is the fact store adapter used by the conversation core.
// Writes go to the durable backend when one is configured; any backend
// error is logged and the write lands in the local memory backend
// instead. Reads merge both, so callers never observe a failure.
type FactStore struct {
	primary Backend
	local   *MemoryBackend
	timeout time.Duration

	mu        sync.Mutex
	lastStamp time.Time
	// purged holds senders whose durable delete failed, with the
	// moment of the delete. Durable facts at or before it are hidden
	// until Resync completes the delete.
	purged map[string]time.Time

	now func() time.Time
}

// NewFactStore wraps primary with a local fallback. A nil primary gives
// a purely in-memory store.
func NewFactStore(primary Backend, timeout time.Duration) *FactStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FactStore{
		primary: primary,
		local:   NewMemoryBackend(),
		timeout: timeout,
		purged:  make(map[string]time.Time),
		now:     time.Now,
	}
}

// BackendName reports the durable backend, or "memory" when there is none.
func (s *FactStore) BackendName() string {
	if s.primary == nil {
		return s.local.Name()
	}
	return s.primary.Name()
}

// stamp returns a strictly increasing millisecond timestamp so the
// newest fact in a series is never ambiguous.
func (s *FactStore) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().UTC().Truncate(time.Millisecond)
	if !t.After(s.lastStamp) {
		t = s.lastStamp.Add(time.Millisecond)
	}
	s.lastStamp = t
	return t
}

// Put assigns a fresh id and timestamp and stores the fact.
func (s *FactStore) Put(ctx context.Context, f facts.Fact) facts.Fact {
	f.ID = uuid.NewString()
	f.CreatedAt = s.stamp()
	s.write(ctx, f, "put")
	return f
}

// Overwrite replaces content and metadata of current in place. The id
// is kept and the timestamp moves to now; no history entry is added.
func (s *FactStore) Overwrite(ctx context.Context, current facts.Fact, content string, meta facts.Metadata) facts.Fact {
	current.Content = content
	current.Metadata = meta
	current.CreatedAt = s.stamp()
	s.write(ctx, current, "overwrite")
	return current
}

func (s *FactStore) write(ctx context.Context, f facts.Fact, op string) {
	if s.primary != nil {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.primary.Save(cctx, f)
		cancel()
		if err == nil {
			// Drop any older copy left by an earlier fallback write.
			s.local.Remove(f.SubjectKey, f.ID, f.CreatedAt)
			return
		}
		logger.WarnCF("store", "Durable write failed, using local fallback", map[string]interface{}{
			"op":      op,
			"backend": s.primary.Name(),
			"sender":  f.SubjectKey,
			"error":   err.Error(),
		})
	}
	_ = s.local.Save(ctx, f)
}

// MostRecent returns the newest fact of the (dataType, person) series.
// An empty person selects the sender's own series.
func (s *FactStore) MostRecent(ctx context.Context, subjectKey string, t facts.DataType, person string) (facts.Fact, bool) {
	return facts.Latest(s.All(ctx, subjectKey), t, person)
}

// All returns every fact for the sender, newest first.
func (s *FactStore) All(ctx context.Context, subjectKey string) []facts.Fact {
	var durable []facts.Fact
	if s.primary != nil {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		list, err := s.primary.List(cctx, subjectKey)
		cancel()
		if err != nil {
			logger.WarnCF("store", "Durable read failed, serving local facts", map[string]interface{}{
				"backend": s.primary.Name(),
				"sender":  subjectKey,
				"error":   err.Error(),
			})
		} else {
			durable = s.visible(list)
		}
	}

	local, _ := s.local.List(ctx, subjectKey)
	return merge(durable, local)
}

// DeleteAll removes every fact for the sender. It is idempotent. The
// only error is a cancelled context; backend failures are absorbed.
func (s *FactStore) DeleteAll(ctx context.Context, subjectKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = s.local.DeleteAll(ctx, subjectKey)
	if s.primary == nil {
		return nil
	}

	at := s.stamp()
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.primary.DeleteAll(cctx, subjectKey)
	cancel()
	if err != nil {
		logger.WarnCF("store", "Durable delete failed, hiding facts until resync", map[string]interface{}{
			"backend": s.primary.Name(),
			"sender":  subjectKey,
			"error":   err.Error(),
		})
		s.mu.Lock()
		s.purged[subjectKey] = at
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	delete(s.purged, subjectKey)
	s.mu.Unlock()
	return nil
}

// Search ranks facts from every sender by token overlap with query.
func (s *FactStore) Search(ctx context.Context, query string, limit int) []facts.Fact {
	var durable []facts.Fact
	if s.primary != nil {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		hits, err := s.primary.Search(cctx, query, limit)
		cancel()
		if err != nil {
			logger.WarnCF("store", "Durable search failed, searching local facts", map[string]interface{}{
				"backend": s.primary.Name(),
				"error":   err.Error(),
			})
		} else {
			durable = s.visible(hits)
		}
	}
	local, _ := s.local.Search(ctx, query, limit)
	return rank(merge(durable, local), query, limit)
}

// List returns the sender's facts, optionally filtered by a substring of
// content or data type. A non-positive limit means 10.
func (s *FactStore) List(ctx context.Context, subjectKey, query string, limit int) []facts.Fact {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query = strings.ToLower(strings.TrimSpace(query))

	out := make([]facts.Fact, 0, limit)
	for _, f := range s.All(ctx, subjectKey) {
		if query != "" &&
			!strings.Contains(strings.ToLower(f.Content), query) &&
			!strings.Contains(string(f.DataType), query) {
			continue
		}
		out = append(out, f)
		if len(out) == limit {
			break
		}
	}
	return out
}

// visible drops durable facts hidden by a pending purge.
func (s *FactStore) visible(list []facts.Fact) []facts.Fact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.purged) == 0 {
		return list
	}
	out := list[:0:0]
	for _, f := range list {
		if at, ok := s.purged[f.SubjectKey]; ok && !f.CreatedAt.After(at) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// merge unions two fact lists by id, keeping the later CreatedAt, and
// returns them newest first. Ties prefer the local copy.
func merge(durable, local []facts.Fact) []facts.Fact {
	byID := make(map[string]facts.Fact, len(durable)+len(local))
	for _, f := range durable {
		byID[f.ID] = f
	}
	for _, f := range local {
		if prev, ok := byID[f.ID]; ok && prev.CreatedAt.After(f.CreatedAt) {
			continue
		}
		byID[f.ID] = f
	}
	out := make([]facts.Fact, 0, len(byID))
	for _, f := range byID {
		out = append(out, f)
	}
	facts.NewestFirst(out)
	return out
}

func (s *FactStore) Close() error {
	if s.primary == nil {
		return nil
	}
	return s.primary.Close()
}

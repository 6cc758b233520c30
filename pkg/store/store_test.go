package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/factkeeper/pkg/facts"
)

const sender = "919910053492"

var errBackendDown = errors.New("backend down")

// flakyBackend delegates to a MemoryBackend until fail is set.
type flakyBackend struct {
	*MemoryBackend
	fail atomic.Bool
}

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{MemoryBackend: NewMemoryBackend()}
}

func (b *flakyBackend) Name() string { return "flaky" }

func (b *flakyBackend) Save(ctx context.Context, f facts.Fact) error {
	if b.fail.Load() {
		return errBackendDown
	}
	return b.MemoryBackend.Save(ctx, f)
}

func (b *flakyBackend) List(ctx context.Context, subjectKey string) ([]facts.Fact, error) {
	if b.fail.Load() {
		return nil, errBackendDown
	}
	return b.MemoryBackend.List(ctx, subjectKey)
}

func (b *flakyBackend) DeleteAll(ctx context.Context, subjectKey string) error {
	if b.fail.Load() {
		return errBackendDown
	}
	return b.MemoryBackend.DeleteAll(ctx, subjectKey)
}

func (b *flakyBackend) Search(ctx context.Context, query string, limit int) ([]facts.Fact, error) {
	if b.fail.Load() {
		return nil, errBackendDown
	}
	return b.MemoryBackend.Search(ctx, query, limit)
}

func birthday(subjectKey, content, person string) facts.Fact {
	e := facts.Extraction{DataType: facts.TypeBirthday, Subject: facts.SelfSubject, Content: content}
	if person != "" {
		e.Subject, e.Person = person, person
	}
	return facts.FromExtraction(subjectKey, e, facts.Metadata{Source: facts.SourceUserInput})
}

func TestFactStore_PutAssignsIDAndNewestWins(t *testing.T) {
	s := NewFactStore(nil, time.Second)
	ctx := context.Background()

	first := s.Put(ctx, birthday(sender, "26th February", ""))
	second := s.Put(ctx, birthday(sender, "2nd June", ""))

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.CreatedAt.After(first.CreatedAt))

	got, ok := s.MostRecent(ctx, sender, facts.TypeBirthday, "")
	require.True(t, ok)
	assert.Equal(t, "2nd June", got.Content)
}

func TestFactStore_SelfAndOtherIsolation(t *testing.T) {
	s := NewFactStore(nil, time.Second)
	ctx := context.Background()

	s.Put(ctx, birthday(sender, "15th September", ""))
	s.Put(ctx, birthday(sender, "8th August", "Adam"))

	self, ok := s.MostRecent(ctx, sender, facts.TypeBirthday, "")
	require.True(t, ok)
	assert.Equal(t, "15th September", self.Content)

	adam, ok := s.MostRecent(ctx, sender, facts.TypeBirthday, "Adam")
	require.True(t, ok)
	assert.Equal(t, "8th August", adam.Content)
}

func TestFactStore_OverwritePreservesID(t *testing.T) {
	s := NewFactStore(newFlakyBackend(), time.Second)
	ctx := context.Background()

	orig := s.Put(ctx, birthday(sender, "26th February", ""))
	updated := s.Overwrite(ctx, orig, "2nd June", facts.Metadata{Source: facts.SourceUserInput, Context: facts.ContextDataUpdate, Confirmed: true})
	assert.Equal(t, orig.ID, updated.ID)

	all := s.All(ctx, sender)
	require.Len(t, all, 1)
	assert.Equal(t, "2nd June", all[0].Content)
	assert.True(t, all[0].Metadata.Confirmed)
	assert.True(t, all[0].CreatedAt.After(orig.CreatedAt))
}

func TestFactStore_FallsBackWhenBackendFails(t *testing.T) {
	primary := newFlakyBackend()
	s := NewFactStore(primary, time.Second)
	ctx := context.Background()

	kept := s.Put(ctx, birthday(sender, "26th February", ""))
	primary.fail.Store(true)

	phone := facts.FromExtraction(sender, facts.Extraction{DataType: facts.TypePhone, Subject: facts.SelfSubject, Content: "9876543210"}, facts.Metadata{})
	s.Put(ctx, phone)

	got, ok := s.MostRecent(ctx, sender, facts.TypePhone, "")
	require.True(t, ok)
	assert.Equal(t, "9876543210", got.Content)

	// Durable read fails too, so only the local fact is visible.
	_, ok = s.MostRecent(ctx, sender, facts.TypeBirthday, "")
	assert.False(t, ok)

	primary.fail.Store(false)
	all := s.All(ctx, sender)
	assert.Len(t, all, 2)
	assert.Equal(t, kept.ID, all[1].ID)

	held, _ := s.Pending()
	assert.Equal(t, 1, held)
	report := s.Resync(ctx)
	assert.Equal(t, 1, report.Replayed)
	held, _ = s.Pending()
	assert.Zero(t, held)

	durable, err := primary.MemoryBackend.List(ctx, sender)
	require.NoError(t, err)
	assert.Len(t, durable, 2)
}

func TestFactStore_OverwriteDuringOutageWinsAfterRecovery(t *testing.T) {
	primary := newFlakyBackend()
	s := NewFactStore(primary, time.Second)
	ctx := context.Background()

	orig := s.Put(ctx, birthday(sender, "26th February", ""))
	primary.fail.Store(true)
	s.Overwrite(ctx, orig, "2nd June", facts.Metadata{Confirmed: true})
	primary.fail.Store(false)

	got, ok := s.MostRecent(ctx, sender, facts.TypeBirthday, "")
	require.True(t, ok)
	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, "2nd June", got.Content)
	assert.Len(t, s.All(ctx, sender), 1)
}

func TestFactStore_DeleteAllIsIdempotentAndSurvivesOutage(t *testing.T) {
	primary := newFlakyBackend()
	s := NewFactStore(primary, time.Second)
	ctx := context.Background()

	s.Put(ctx, birthday(sender, "26th February", ""))
	s.Put(ctx, birthday("someone-else", "1st May", ""))

	primary.fail.Store(true)
	require.NoError(t, s.DeleteAll(ctx, sender))
	primary.fail.Store(false)

	assert.Empty(t, s.All(ctx, sender))
	assert.Len(t, s.All(ctx, "someone-else"), 1)

	fresh := s.Put(ctx, birthday(sender, "2nd June", ""))
	all := s.All(ctx, sender)
	require.Len(t, all, 1)
	assert.Equal(t, fresh.ID, all[0].ID)

	report := s.Resync(ctx)
	assert.Equal(t, 1, report.Purged)
	durable, _ := primary.MemoryBackend.List(ctx, sender)
	require.Len(t, durable, 1)
	assert.Equal(t, fresh.ID, durable[0].ID)

	require.NoError(t, s.DeleteAll(ctx, sender))
	require.NoError(t, s.DeleteAll(ctx, sender))
	assert.Empty(t, s.All(ctx, sender))
}

func TestFactStore_DeleteAllRejectsCancelledContext(t *testing.T) {
	s := NewFactStore(nil, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.DeleteAll(ctx, sender), context.Canceled)
}

func TestFactStore_SearchAcrossSenders(t *testing.T) {
	s := NewFactStore(nil, time.Second)
	ctx := context.Background()

	work := facts.FromExtraction("a", facts.Extraction{DataType: facts.TypeWork, Subject: facts.SelfSubject, Content: "nurse", Keywords: []string{"work"}}, facts.Metadata{})
	s.Put(ctx, work)
	s.Put(ctx, facts.FromExtraction("b", facts.Extraction{DataType: facts.TypeIdentity, Subject: facts.SelfSubject, Content: "a paediatric nurse and runner"}, facts.Metadata{}))
	s.Put(ctx, facts.FromExtraction("b", facts.Extraction{DataType: facts.TypePreference, Subject: facts.SelfSubject, Content: "pineapple"}, facts.Metadata{}))

	hits := s.Search(ctx, "nurse runner", 5)
	require.Len(t, hits, 2)
	assert.Equal(t, "a paediatric nurse and runner", hits[0].Content)

	assert.Len(t, s.Search(ctx, "nurse", 1), 1)
	assert.Empty(t, s.Search(ctx, "  ", 5))
}

func TestFactStore_ListFiltersAndLimits(t *testing.T) {
	s := NewFactStore(nil, time.Second)
	ctx := context.Background()
	for _, c := range []string{"pizza", "pineapple", "pasta"} {
		s.Put(ctx, facts.FromExtraction(sender, facts.Extraction{DataType: facts.TypePreference, Subject: facts.SelfSubject, Content: c}, facts.Metadata{}))
	}
	s.Put(ctx, birthday(sender, "26th February", ""))

	assert.Len(t, s.List(ctx, sender, "", 0), 4)
	assert.Len(t, s.List(ctx, sender, "preference", 2), 2)

	got := s.List(ctx, sender, "PINE", 10)
	require.Len(t, got, 1)
	assert.Equal(t, "pineapple", got[0].Content)
}

func TestFactStore_Profile(t *testing.T) {
	s := NewFactStore(nil, time.Second)
	ctx := context.Background()

	s.Put(ctx, facts.FromExtraction(sender, facts.Extraction{DataType: facts.TypeName, Subject: facts.SelfSubject, Content: "John"}, facts.Metadata{}))
	s.Put(ctx, facts.FromExtraction(sender, facts.Extraction{DataType: facts.TypeName, Subject: facts.SelfSubject, Content: "Neha"}, facts.Metadata{}))
	s.Put(ctx, facts.FromExtraction(sender, facts.Extraction{DataType: facts.TypePreference, Subject: facts.SelfSubject, Content: "pineapple"}, facts.Metadata{}))
	s.Put(ctx, birthday(sender, "26th February", ""))
	s.Put(ctx, birthday(sender, "8th August", "Adam"))
	s.Put(ctx, facts.FromExtraction(sender, facts.Extraction{DataType: facts.TypeWork, Subject: facts.SelfSubject, Content: "nurse"}, facts.Metadata{}))

	p := s.Profile(ctx, sender)
	assert.Equal(t, sender, p.PhoneNumber)
	require.NotNil(t, p.Name)
	assert.Equal(t, "Neha", *p.Name)
	assert.Equal(t, []string{"pineapple"}, p.Preferences)
	assert.Equal(t, []string{"birthday: 26th February"}, p.ContactInfo)
	assert.Equal(t, []string{"nurse", "Adam's birthday: 8th August"}, p.PersonalInfo)
	assert.Empty(t, p.Interests)

	empty := s.Profile(ctx, "nobody")
	assert.Nil(t, empty.Name)
	assert.NotNil(t, empty.Preferences)
}

func TestSQLiteBackend_RoundTrip(t *testing.T) {
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "facts.db"))
	require.NoError(t, err)
	defer b.Close()

	s := NewFactStore(b, time.Second)
	ctx := context.Background()

	orig := s.Put(ctx, facts.FromExtraction(sender, facts.Extraction{
		DataType: facts.TypeBirthday,
		Subject:  "Adam",
		Content:  "8th August",
		Keywords: []string{"birthday", "8th", "august"},
		Date:     "8th August",
	}, facts.Metadata{Source: facts.SourceUserInput, Context: facts.ContextPersonalInfo}))

	got, err := b.Get(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, "Adam", got.Person)
	assert.Equal(t, []string{"birthday", "8th", "august"}, got.Keywords)
	assert.Equal(t, facts.ContextPersonalInfo, got.Metadata.Context)
	assert.True(t, orig.CreatedAt.Equal(got.CreatedAt))

	s.Overwrite(ctx, orig, "9th August", facts.Metadata{Confirmed: true})
	list, err := b.List(ctx, sender)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "9th August", list[0].Content)

	hits, err := b.Search(ctx, "august", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	require.NoError(t, b.DeleteAll(ctx, sender))
	_, err = b.Get(ctx, orig.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLBackend_RebindForPostgres(t *testing.T) {
	b := &SQLBackend{dialect: DialectPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", b.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &SQLBackend{dialect: DialectSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestResyncer_RejectsBadSchedule(t *testing.T) {
	_, err := NewResyncer(NewFactStore(nil, time.Second), "not a cron")
	assert.Error(t, err)

	r, err := NewResyncer(NewFactStore(nil, time.Second), "*/5 * * * *")
	require.NoError(t, err)
	next, err := r.Next(time.Date(2026, 1, 1, 10, 2, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC)), next.String())
}

package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanlab/beanboard/pkg/scores"
)

// fakeStore records the last upsert per field and can be forced to fail.
type fakeStore struct {
	name    string
	world   string
	timeMS  int64
	counter int64
	fail    error
}

func (f *fakeStore) UpsertName(_ context.Context, _, name string) error {
	if f.fail != nil {
		return f.fail
	}
	f.name = name
	return nil
}

func (f *fakeStore) UpsertWorld(_ context.Context, _, world string) error {
	if f.fail != nil {
		return f.fail
	}
	f.world = world
	return nil
}

func (f *fakeStore) UpsertTime(_ context.Context, _ string, ms int64) error {
	if f.fail != nil {
		return f.fail
	}
	f.timeMS = ms
	return nil
}

func (f *fakeStore) UpsertCounter(_ context.Context, _ string, v int64) error {
	if f.fail != nil {
		return f.fail
	}
	f.counter = v
	return nil
}

func (f *fakeStore) Get(_ context.Context, _ string) (*scores.Record, error) {
	return nil, scores.ErrNotFound
}

func (f *fakeStore) TopN(_ context.Context, _ int, _ string) ([]scores.Record, error) {
	return nil, nil
}

func (f *fakeStore) Delete(_ context.Context, _ string) error { return nil }
func (f *fakeStore) Ping(_ context.Context) error             { return nil }
func (f *fakeStore) Close() error                             { return nil }

func TestDeriveKey(t *testing.T) {
	assert.Equal(t, "AAAAAAAA", DeriveKey([]byte("AAAAAAAA")))
	assert.Equal(t, "", DeriveKey(nil))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Hero", want: "Hero"},
		{name: "trims whitespace", in: "  Hero  ", want: "Hero"},
		{name: "drops control chars", in: "He\x00ro\n", want: "Hero"},
		{name: "caps length", in: strings.Repeat("x", 40), want: strings.Repeat("x", scores.NameMax)},
		{name: "keeps unicode", in: "Héro", want: "Héro"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}

func TestSanitizeWorld_Cap(t *testing.T) {
	got := SanitizeWorld(strings.Repeat("w", 100))
	assert.Len(t, got, scores.WorldMax)
}

func TestCommitName(t *testing.T) {
	store := &fakeStore{}
	eng := New(store, nil)

	require.NoError(t, eng.CommitName(context.Background(), "k1", "  Hero\n"))
	assert.Equal(t, "Hero", store.name)
}

func TestCommitWorld(t *testing.T) {
	store := &fakeStore{}
	eng := New(store, nil)

	require.NoError(t, eng.CommitWorld(context.Background(), "k1", "Arena"))
	assert.Equal(t, "Arena", store.world)
}

func TestCommitTime_Clamps(t *testing.T) {
	store := &fakeStore{}
	eng := New(store, nil)

	require.NoError(t, eng.CommitTime(context.Background(), "k1", scores.ScoreCap+500))
	assert.Equal(t, scores.ScoreCap, store.timeMS)

	require.NoError(t, eng.CommitTime(context.Background(), "k1", -1))
	assert.Equal(t, int64(0), store.timeMS)
}

func TestCommitCounter(t *testing.T) {
	store := &fakeStore{}
	eng := New(store, nil)

	require.NoError(t, eng.CommitCounter(context.Background(), "k1", 3))
	assert.Equal(t, int64(3), store.counter)
}

func TestCommit_SurfacesStorageError(t *testing.T) {
	store := &fakeStore{fail: scores.NewStorageError("upserting", errors.New("down"))}
	eng := New(store, nil)

	err := eng.CommitTime(context.Background(), "k1", 5000)
	require.Error(t, err)
	assert.True(t, scores.IsStorage(err))
}

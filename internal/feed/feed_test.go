package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog/internal/models"
)

const sample = `[
  {"id": 1, "title": "The Life of Cactus", "subtitle": "Who knew that cacti lived such interesting lives.", "body": "Nori grape silver beet.", "date": "2023-01-01", "author": "Angela Yu"},
  {"id": 2, "title": "Top 15 Things to do When You are Bored", "subtitle": "", "body": "Chase ball of string.", "author": "Angela Yu"},
  {"id": 3, "title": "  ", "body": "untitled"}
]`

func newTestClient(url string) *Client {
	logger, _ := test.NewNullLogger()
	c := NewClient(url, logger)
	c.Backoff = time.Millisecond
	return c
}

func TestParse(t *testing.T) {
	entries, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].ID)
	assert.Equal(t, "The Life of Cactus", entries[0].Title)
	assert.Equal(t, "Angela Yu", entries[0].Author)
	assert.Equal(t, "2023-01-01", entries[0].Date)

	_, err = Parse([]byte(`{"id": 1}`))
	assert.Error(t, err)
	_, err = Parse([]byte(`[{`))
	assert.Error(t, err)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sample))
	}))
	defer srv.Close()

	entries, err := newTestClient(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.Attempts = 3
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

type fakeStore struct {
	titles map[string]bool
}

func (f *fakeStore) CreatePost(_ context.Context, authorID int64, in models.PostInput) (*models.Post, error) {
	if f.titles[in.Title] {
		return nil, models.ErrDuplicateTitle
	}
	f.titles[in.Title] = true
	return &models.Post{AuthorID: authorID, Title: in.Title, Subtitle: in.Subtitle}, nil
}

func TestImportSkipsDuplicates(t *testing.T) {
	entries, err := Parse([]byte(sample))
	require.NoError(t, err)
	store := &fakeStore{titles: map[string]bool{"The Life of Cactus": true}}

	res, err := Import(context.Background(), store, 1, entries)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 1, Skipped: 1}, res)

	res, err = Import(context.Background(), store, 1, entries)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 0, Skipped: 2}, res)
}

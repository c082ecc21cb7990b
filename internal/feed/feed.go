// Package feed imports posts from an external JSON endpoint.
//
// The endpoint returns an array of post-shaped objects:
//
//	[{"id": 1, "title": "...", "subtitle": "...", "body": "...", "date": "...", "author": "..."}]
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"blog/internal/models"
)

type Entry struct {
	ID       int64
	Title    string
	Subtitle string
	Body     string
	Date     string
	Author   string
}

type Client struct {
	URL      string
	HTTP     *http.Client
	Attempts int
	Backoff  time.Duration
	Log      logrus.FieldLogger
}

func NewClient(url string, log logrus.FieldLogger) *Client {
	return &Client{
		URL:      url,
		HTTP:     &http.Client{Timeout: 15 * time.Second},
		Attempts: 3,
		Backoff:  time.Second,
		Log:      log,
	}
}

// Fetch downloads and parses the feed, retrying transient failures with
// linear backoff.
func (c *Client) Fetch(ctx context.Context) ([]Entry, error) {
	attempts := max(c.Attempts, 1)
	var lastErr error
	for i := 1; i <= attempts; i++ {
		entries, err := c.fetchOnce(ctx)
		if err == nil {
			return entries, nil
		}
		lastErr = err
		var perm permanentError
		if errors.As(err, &perm) || i == attempts {
			break
		}
		c.Log.WithError(err).WithField("attempt", i).Warn("feed fetch failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.Backoff * time.Duration(i)):
		}
	}
	return nil, lastErr
}

type permanentError struct{ error }

func (c *Client) fetchOnce(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, permanentError{err}
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get feed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, permanentError{fmt.Errorf("feed returned %s", resp.Status)}
	}
	entries, err := Parse(body)
	if err != nil {
		return nil, permanentError{err}
	}
	return entries, nil
}

// Parse decodes a feed document. Entries without a title are dropped.
func Parse(data []byte) ([]Entry, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("feed is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, errors.New("feed is not a JSON array")
	}
	var entries []Entry
	root.ForEach(func(_, item gjson.Result) bool {
		e := Entry{
			ID:       item.Get("id").Int(),
			Title:    strings.TrimSpace(item.Get("title").String()),
			Subtitle: strings.TrimSpace(item.Get("subtitle").String()),
			Body:     item.Get("body").String(),
			Date:     item.Get("date").String(),
			Author:   item.Get("author").String(),
		}
		if e.Title != "" {
			entries = append(entries, e)
		}
		return true
	})
	return entries, nil
}

// PostCreator is the part of the store an import needs.
type PostCreator interface {
	CreatePost(ctx context.Context, authorID int64, in models.PostInput) (*models.Post, error)
}

type Result struct {
	Created int
	Skipped int
}

// Import stores entries as posts owned by ownerID. Entries whose title is
// already taken are skipped, so importing the same feed twice is harmless.
func Import(ctx context.Context, store PostCreator, ownerID int64, entries []Entry) (Result, error) {
	var res Result
	for _, e := range entries {
		subtitle := e.Subtitle
		if subtitle == "" {
			subtitle = e.Title
		}
		_, err := store.CreatePost(ctx, ownerID, models.PostInput{Title: e.Title, Subtitle: subtitle, Body: e.Body})
		switch {
		case errors.Is(err, models.ErrDuplicateTitle):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("import %q: %w", e.Title, err)
		default:
			res.Created++
		}
	}
	return res, nil
}

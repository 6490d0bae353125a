package task

import (
	"testing"

	"github.com/pressfeed/ingestor/internal/urlnorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidTask(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"article_id": "art-1",
		"url": "https://example.com/story",
		"source": "example",
		"category": "tech",
		"priority": "high",
		"url_hash": "abc123",
		"domain": "example.com",
		"user_id": "user-9",
		"enriched": true
	}`)

	got, err := Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, "art-1", got.ArticleID)
	assert.Equal(t, PriorityHigh, got.Priority)
	assert.Equal(t, "abc123", got.URLHash)
	assert.Equal(t, "user-9", got.UserID)
	assert.True(t, got.Enriched)
}

func TestParseAcceptsLegacyIDField(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id":"legacy-7","url":"https://example.com/a","source":"s","category":"c","priority":"low"}`)
	got, err := Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, "legacy-7", got.ArticleID)
}

func TestParseComputesMissingURLHash(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"article_id":"a","url":"http://Example.com/x/","source":"s","category":"c","priority":"medium"}`)
	got, err := Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, urlnorm.Fingerprint("https://example.com/x"), got.URLHash)
}

func TestParseRejectsInvalidTasks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload string
	}{
		{"missing id", `{"url":"https://e.com","source":"s","category":"c","priority":"high"}`},
		{"missing url", `{"article_id":"a","source":"s","category":"c","priority":"high"}`},
		{"missing source", `{"article_id":"a","url":"https://e.com","category":"c","priority":"high"}`},
		{"bad priority", `{"article_id":"a","url":"https://e.com","source":"s","category":"c","priority":"urgent"}`},
		{"not json", `{"article_id":`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tc.payload))
			assert.Error(t, err)
		})
	}
}

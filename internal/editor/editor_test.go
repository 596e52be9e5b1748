package editor

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
	"github.com/redirect10-prog/siteForge-ai/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hero = website.Section{
	Name:           "Hero",
	Heading:        "Fresh bread every morning",
	Content:        "Our bakery has served the neighbourhood since 1982 with sourdough, rye and pastries baked before sunrise.",
	CTA:            "Order now",
	CTAAction:      website.ActionScroll,
	CTATarget:      "#contact",
	ImagePrompt:    "warm bakery interior",
	GeneratedImage: "https://img/hero.png",
}

func TestEditMakesItShorter(t *testing.T) {
	client := llm.NewScripted(llm.Reply{Text: "```json\n" +
		`{"name":"Hero","heading":"Fresh bread daily","content":"Sourdough since 1982.","cta":"Order","imagePrompt":"warm bakery interior"}` +
		"\n```"})
	e := New(client, Config{}, nil)

	p, err := e.Edit(context.Background(), hero, "make it shorter")
	require.NoError(t, err)

	got := Apply(hero, p)
	assert.Less(t, len(got.Content), len(hero.Content))
	assert.Equal(t, "Order", got.CTA)
	assert.Equal(t, hero.GeneratedImage, got.GeneratedImage)
	assert.Equal(t, hero.CTAAction, got.CTAAction)

	reqs := client.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, SystemPrompt(), reqs[0].System)
	assert.Contains(t, reqs[0].User, "- Name: Hero")
	assert.Contains(t, reqs[0].User, "Edit instructions: make it shorter")
	assert.True(t, reqs[0].JSON)
}

func TestEditNeverChangesGeneratedImage(t *testing.T) {
	replies := []string{
		`{"name":"Hero","heading":"H","content":"C","generatedImage":"https://evil/other.png"}`,
		`{"name":"Hero","heading":"H","content":"C","generatedImage":null}`,
		`{"name":"Hero","heading":"H","content":"C","imagePrompt":"night sky"}`,
	}
	for _, r := range replies {
		p, err := New(llm.NewScripted(llm.Reply{Text: r}), Config{}, nil).Edit(context.Background(), hero, "tweak")
		require.NoError(t, err, r)
		assert.Equal(t, "https://img/hero.png", Apply(hero, p).GeneratedImage, r)
	}
}

func TestEditFailureLeavesSectionAlone(t *testing.T) {
	cases := []llm.Reply{
		{Text: "I cannot help with that"},
		{Text: `{"name":"Hero","heading":"","content":"x"}`},
		{Text: `{"heading":"H","content":"x"}`},
		{Err: &llm.StatusError{Provider: "gateway", Code: 500}},
	}
	for _, c := range cases {
		_, err := New(llm.NewScripted(c), Config{}, nil).Edit(context.Background(), hero, "shorter")
		assert.Error(t, err)
	}
}

func TestEditRequiresInstructions(t *testing.T) {
	client := llm.NewScripted()
	_, err := New(client, Config{}, nil).Edit(context.Background(), hero, "   ")
	assert.ErrorIs(t, err, ErrNoInstructions)
	assert.Equal(t, 0, client.Calls())
}

func TestParsePatchOptionalFields(t *testing.T) {
	p, err := ParsePatch(`{"name":"A","heading":"B","content":"C"}`)
	require.NoError(t, err)
	assert.Nil(t, p.CTA)
	assert.Nil(t, p.ImagePrompt)
	assert.Equal(t, hero.CTA, Apply(hero, p).CTA)

	p, err = ParsePatch(`{"name":"A","heading":"B","content":"C","cta":null}`)
	require.NoError(t, err)
	require.NotNil(t, p.CTA)
	assert.Empty(t, Apply(hero, p).CTA)
}

func TestPublicError(t *testing.T) {
	code, msg := PublicError(&llm.StatusError{Code: http.StatusTooManyRequests})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Rate limit exceeded. Please try again later.", msg)

	code, msg = PublicError(&llm.StatusError{Code: http.StatusPaymentRequired})
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "AI credits exhausted. Please add credits to continue.", msg)

	code, _ = PublicError(ErrIncompletePatch)
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestLockSingleHolder(t *testing.T) {
	var l Lock
	tok, err := l.TryAcquire(2)
	require.NoError(t, err)

	_, err = l.TryAcquire(0)
	assert.ErrorIs(t, err, ErrLocked)
	idx, held := l.Holding()
	assert.True(t, held)
	assert.Equal(t, 2, idx)

	assert.False(t, l.Release("someone-else"))
	assert.True(t, l.Release(tok))
	assert.False(t, l.Release(tok))

	_, held = l.Holding()
	assert.False(t, held)
}

func TestLockUnderContention(t *testing.T) {
	var l Lock
	var wg sync.WaitGroup
	var mu sync.Mutex
	var tokens []string
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if tok, err := l.TryAcquire(i); err == nil {
				mu.Lock()
				tokens = append(tokens, tok)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	require.Len(t, tokens, 1)
	assert.False(t, strings.TrimSpace(tokens[0]) == "")
}

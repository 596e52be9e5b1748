package imagegen

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGen answers by prompt and records the order of calls.
type fakeGen struct {
	mu      sync.Mutex
	fail    map[string]bool
	prompts []string
}

func (f *fakeGen) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.fail[prompt] {
		return "", errors.New("provider down")
	}
	return "https://img/" + prompt + ".png", nil
}

type fakeMirror struct{ err error }

func (m fakeMirror) Mirror(_ context.Context, src string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "https://cdn/" + src[len("https://img/"):], nil
}

func TestRunToleratesSingleFailure(t *testing.T) {
	gen := &fakeGen{fail: map[string]bool{"b": true}}
	p := NewPipeline(gen, nil, nil)
	in := []website.Section{
		{Name: "Hero", ImagePrompt: "a"},
		{Name: "Features", ImagePrompt: "b"},
		{Name: "CTA", ImagePrompt: "c"},
	}

	var updates []Update
	out := p.Run(context.Background(), in, nil, func(u Update) { updates = append(updates, u) })

	require.Len(t, out, 3)
	assert.Equal(t, "https://img/a.png", out[0].GeneratedImage)
	assert.Empty(t, out[1].GeneratedImage)
	assert.Equal(t, in[1], out[1])
	assert.Equal(t, "https://img/c.png", out[2].GeneratedImage)
	assert.Empty(t, in[0].GeneratedImage, "input must not be mutated")

	require.Len(t, updates, 3)
	assert.Equal(t, Progress{Current: 1, Total: 3}, updates[0].Progress)
	assert.Error(t, updates[1].Err)
	assert.Equal(t, Progress{Current: 3, Total: 3}, updates[2].Progress)
	assert.Equal(t, []string{"a", "b", "c"}, gen.prompts)
}

func TestRunSkipsSectionsWithoutPrompt(t *testing.T) {
	gen := &fakeGen{}
	p := NewPipeline(gen, nil, nil)
	in := []website.Section{{Name: "A"}, {Name: "B", ImagePrompt: "x"}, {Name: "C", ImagePrompt: "  "}}

	var updates []Update
	out := p.Run(context.Background(), in, nil, func(u Update) { updates = append(updates, u) })

	require.Len(t, updates, 1)
	assert.Equal(t, 1, updates[0].Index)
	assert.Equal(t, Progress{Current: 1, Total: 1}, updates[0].Progress)
	assert.Empty(t, out[0].GeneratedImage)
	assert.Empty(t, out[2].GeneratedImage)
}

func TestRunGuardFailsOneImage(t *testing.T) {
	gen := &fakeGen{}
	p := NewPipeline(gen, nil, nil)
	in := []website.Section{{ImagePrompt: "a"}, {ImagePrompt: "b"}}

	calls := 0
	guard := func(context.Context) error {
		calls++
		if calls == 2 {
			return errors.New("quota")
		}
		return nil
	}
	out := p.Run(context.Background(), in, guard, nil)
	assert.NotEmpty(t, out[0].GeneratedImage)
	assert.Empty(t, out[1].GeneratedImage)
	assert.Equal(t, []string{"a"}, gen.prompts)
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	gen := &fakeGen{}
	p := NewPipeline(gen, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	in := []website.Section{{ImagePrompt: "a"}, {ImagePrompt: "b"}}

	out := p.Run(ctx, in, nil, func(Update) { cancel() })
	assert.NotEmpty(t, out[0].GeneratedImage)
	assert.Empty(t, out[1].GeneratedImage)
}

func TestRegenerateKeepsPromptOnFailure(t *testing.T) {
	gen := &fakeGen{fail: map[string]bool{"sunset": true}}
	p := NewPipeline(gen, nil, nil)
	s := website.Section{Name: "Hero", ImagePrompt: "dawn", GeneratedImage: "https://img/old.png"}

	got, err := p.Regenerate(context.Background(), s, "sunset", nil)
	require.Error(t, err)
	assert.Equal(t, s, got)

	got, err = p.Regenerate(context.Background(), s, "forest", nil)
	require.NoError(t, err)
	assert.Equal(t, "forest", got.ImagePrompt)
	assert.Equal(t, "https://img/forest.png", got.GeneratedImage)

	got, err = p.Regenerate(context.Background(), s, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "dawn", got.ImagePrompt)
}

func TestRegenerateWithoutPrompt(t *testing.T) {
	p := NewPipeline(&fakeGen{}, nil, nil)
	_, err := p.Regenerate(context.Background(), website.Section{Name: "A"}, "", nil)
	assert.ErrorIs(t, err, ErrNoPrompt)
}

func TestMirrorFallsBackToProviderURL(t *testing.T) {
	p := NewPipeline(&fakeGen{}, fakeMirror{}, nil)
	img, err := p.Single(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a.png", img)

	p = NewPipeline(&fakeGen{}, fakeMirror{err: errors.New("bucket gone")}, nil)
	img, err = p.Single(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "https://img/a.png", img)
}

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redirect10-prog/siteForge-ai/internal/backendgen"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
	"github.com/redirect10-prog/siteForge-ai/internal/editor"
	"github.com/redirect10-prog/siteForge-ai/internal/generation"
	"github.com/redirect10-prog/siteForge-ai/internal/imagegen"
)

func sample(title string) website.GeneratedWebsite {
	sections := []website.Section{
		{Name: "Hero", Heading: title, Content: "Welcome", ImagePrompt: "sunrise"},
		{Name: "Features", Heading: "Features", Content: "Fast"},
		{Name: "Contact", Heading: "Contact", Content: "Write us", ImagePrompt: "mailbox"},
	}
	return website.GeneratedWebsite{
		WebsiteType: website.TypeLanding,
		Sections:    sections,
		Navigation:  website.NavigationFor(sections),
	}
}

type fakeGenerator struct {
	fn func(ctx context.Context, in generation.Input) (website.GeneratedWebsite, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, in generation.Input) (website.GeneratedWebsite, error) {
	return f.fn(ctx, in)
}

type fakeImages struct {
	between func(index int)
	fail    map[int]bool
}

func (f *fakeImages) Run(ctx context.Context, sections []website.Section, guard imagegen.Guard, observe imagegen.Observer) []website.Section {
	out := append([]website.Section{}, sections...)
	total := imagegen.Total(sections)
	done := 0
	for i, s := range sections {
		if s.ImagePrompt == "" {
			continue
		}
		done++
		u := imagegen.Update{Index: i, Progress: imagegen.Progress{Current: done, Total: total}}
		if f.fail[i] {
			u.Err = errors.New("boom")
		} else {
			u.Image = "https://img/" + s.ImagePrompt + ".png"
			out[i].GeneratedImage = u.Image
		}
		observe(u)
		if f.between != nil {
			f.between(i)
		}
	}
	return out
}

func (f *fakeImages) Regenerate(ctx context.Context, s website.Section, customPrompt string, guard imagegen.Guard) (website.Section, error) {
	if customPrompt != "" {
		s.ImagePrompt = customPrompt
	}
	s.GeneratedImage = "https://img/re-" + s.ImagePrompt + ".png"
	return s, nil
}

type fakeEditor struct {
	started chan struct{}
	release chan struct{}
}

func (f *fakeEditor) Edit(ctx context.Context, s website.Section, instructions string) (editor.SectionPatch, error) {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	return editor.SectionPatch{Name: s.Name, Heading: "Edited " + s.Name, Content: instructions}, nil
}

type fakeBackend struct{}

func (fakeBackend) Synthesize(ctx context.Context, spec website.BackendSpec) (website.GeneratedCode, backendgen.Source, error) {
	return website.GeneratedCode{SQL: "CREATE TABLE x ();"}, backendgen.SourceTemplate, nil
}

func newSession(t *testing.T, deps Deps) *Session {
	t.Helper()
	if deps.Generator == nil {
		deps.Generator = &fakeGenerator{fn: func(_ context.Context, in generation.Input) (website.GeneratedWebsite, error) {
			return sample(in.Prompt), nil
		}}
	}
	if deps.Images == nil {
		deps.Images = &fakeImages{}
	}
	if deps.Editor == nil {
		deps.Editor = &fakeEditor{}
	}
	if deps.Backend == nil {
		deps.Backend = fakeBackend{}
	}
	return New("sess-1", 7, deps)
}

func generated(t *testing.T, s *Session) *Snapshot {
	t.Helper()
	snap, err := s.Generate(context.Background(), GenerateInput{Prompt: "Bakery", Tier: "pro"})
	require.NoError(t, err)
	return snap
}

func TestGenerateCommitsContentAndValidation(t *testing.T) {
	s := newSession(t, Deps{})
	snap := generated(t, s)

	require.NotNil(t, snap.Website)
	assert.Equal(t, "Bakery", snap.Website.Sections[0].Heading)
	require.NotNil(t, snap.Validation)
	assert.True(t, snap.Validation.Navigation.Passed)
	assert.False(t, snap.Status.Generating)
	assert.Equal(t, uint64(1), snap.Epoch)
	assert.Len(t, snap.keys, 3)
}

func TestGenerateFailureIsRecorded(t *testing.T) {
	s := newSession(t, Deps{Generator: &fakeGenerator{fn: func(context.Context, generation.Input) (website.GeneratedWebsite, error) {
		return website.GeneratedWebsite{}, errors.New("model down")
	}}})

	_, err := s.Generate(context.Background(), GenerateInput{Prompt: "x"})
	require.EqualError(t, err, "model down")
	cur := s.Current()
	assert.Equal(t, "model down", cur.Error)
	assert.False(t, cur.Status.Generating)
	assert.Nil(t, cur.Website)
}

func TestStaleGenerationIsDropped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gen := &fakeGenerator{fn: func(_ context.Context, in generation.Input) (website.GeneratedWebsite, error) {
		if in.Prompt == "slow" {
			close(started)
			<-release
		}
		return sample(in.Prompt), nil
	}}
	s := newSession(t, Deps{Generator: gen})

	errc := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background(), GenerateInput{Prompt: "slow"})
		errc <- err
	}()
	<-started

	fast, err := s.Generate(context.Background(), GenerateInput{Prompt: "fast"})
	require.NoError(t, err)
	assert.Equal(t, "fast", fast.Website.Sections[0].Heading)

	close(release)
	require.ErrorIs(t, <-errc, ErrStale)
	assert.Equal(t, "fast", s.Current().Website.Sections[0].Heading)
}

func TestDeleteLastSectionRejected(t *testing.T) {
	s := newSession(t, Deps{})
	generated(t, s)

	_, err := s.Delete(0)
	require.NoError(t, err)
	_, err = s.Delete(0)
	require.NoError(t, err)
	before := s.Current()

	_, err = s.Delete(0)
	require.ErrorIs(t, err, ErrLastSection)
	assert.Same(t, before, s.Current())
	assert.Len(t, s.Current().Website.Sections, 1)
}

func TestDeleteDropsNavigationToRemovedSection(t *testing.T) {
	s := newSession(t, Deps{})
	generated(t, s)

	snap, err := s.Delete(1)
	require.NoError(t, err)
	for _, item := range snap.Website.Navigation {
		assert.NotEqual(t, "#features", item.Target)
	}
	assert.True(t, snap.Validation.Navigation.Passed)
}

func TestDeleteBeforeGenerate(t *testing.T) {
	s := newSession(t, Deps{})
	_, err := s.Delete(0)
	require.ErrorIs(t, err, ErrNoContent)
}

func TestReorder(t *testing.T) {
	s := newSession(t, Deps{})
	generated(t, s)

	snap, err := s.Reorder([]int{2, 0, 1})
	require.NoError(t, err)
	names := []string{}
	for _, sec := range snap.Website.Sections {
		names = append(names, sec.Name)
	}
	assert.Equal(t, []string{"Contact", "Hero", "Features"}, names)

	for _, bad := range [][]int{{0, 1}, {0, 0, 1}, {0, 1, 3}} {
		_, err := s.Reorder(bad)
		require.ErrorIs(t, err, ErrBadOrder, bad)
	}
}

func TestEditLockConflict(t *testing.T) {
	ed := &fakeEditor{started: make(chan struct{}), release: make(chan struct{})}
	s := newSession(t, Deps{Editor: ed})
	generated(t, s)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Edit(context.Background(), 0, "warmer tone", nil)
		errc <- err
	}()
	<-ed.started
	assert.Equal(t, 0, s.Current().Status.EditingIndex)

	_, err := s.Edit(context.Background(), 1, "shorter", nil)
	require.ErrorIs(t, err, editor.ErrLocked)

	close(ed.release)
	require.NoError(t, <-errc)
	cur := s.Current()
	assert.Equal(t, "Edited Hero", cur.Website.Sections[0].Heading)
	assert.Equal(t, -1, cur.Status.EditingIndex)
}

func TestEditFollowsSectionAcrossReorder(t *testing.T) {
	ed := &fakeEditor{started: make(chan struct{}), release: make(chan struct{})}
	s := newSession(t, Deps{Editor: ed})
	generated(t, s)
	_, err := s.SetImage(0, "https://cdn/hero.png")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Edit(context.Background(), 0, "new copy", nil)
		errc <- err
	}()
	<-ed.started
	_, err = s.Reorder([]int{1, 2, 0})
	require.NoError(t, err)
	close(ed.release)
	require.NoError(t, <-errc)

	hero := s.Current().Website.Sections[2]
	assert.Equal(t, "Edited Hero", hero.Heading)
	assert.Equal(t, "new copy", hero.Content)
	assert.Equal(t, "https://cdn/hero.png", hero.GeneratedImage)
	assert.Equal(t, "Features", s.Current().Website.Sections[0].Heading)
}

func TestEditOfDeletedSectionIsDropped(t *testing.T) {
	ed := &fakeEditor{started: make(chan struct{}), release: make(chan struct{})}
	s := newSession(t, Deps{Editor: ed})
	generated(t, s)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Edit(context.Background(), 1, "more", nil)
		errc <- err
	}()
	<-ed.started
	_, err := s.Delete(1)
	require.NoError(t, err)
	close(ed.release)

	require.ErrorIs(t, <-errc, ErrSectionGone)
	for _, sec := range s.Current().Website.Sections {
		assert.NotEqual(t, "Edited Features", sec.Heading)
	}
}

func TestImageBatchCommitsPerSection(t *testing.T) {
	var s *Session
	var seen []string
	images := &fakeImages{between: func(int) {
		seen = append(seen, s.Current().Website.Sections[0].GeneratedImage)
	}}
	s = newSession(t, Deps{Images: images})
	generated(t, s)

	snap, err := s.GenerateImages(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, "https://img/sunrise.png", seen[0])
	assert.Equal(t, "https://img/sunrise.png", snap.Website.Sections[0].GeneratedImage)
	assert.Empty(t, snap.Website.Sections[1].GeneratedImage)
	assert.Equal(t, "https://img/mailbox.png", snap.Website.Sections[2].GeneratedImage)
	assert.False(t, snap.Status.GeneratingImages)
	assert.Equal(t, -1, snap.Status.ImageIndex)
	assert.Equal(t, imagegen.Progress{Current: 2, Total: 2}, snap.Status.ImageProgress)
}

func TestImageBatchLandsOnMovedSections(t *testing.T) {
	var s *Session
	images := &fakeImages{between: func(i int) {
		if i == 0 {
			_, err := s.Reorder([]int{2, 1, 0})
			require.NoError(t, err)
		}
	}}
	s = newSession(t, Deps{Images: images})
	generated(t, s)

	snap, err := s.GenerateImages(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Contact", snap.Website.Sections[0].Name)
	assert.Equal(t, "https://img/mailbox.png", snap.Website.Sections[0].GeneratedImage)
	assert.Equal(t, "https://img/sunrise.png", snap.Website.Sections[2].GeneratedImage)
}

func TestImageBatchKeepsGoingAfterFailure(t *testing.T) {
	s := newSession(t, Deps{Images: &fakeImages{fail: map[int]bool{0: true}}})
	generated(t, s)

	snap, err := s.GenerateImages(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, snap.Website.Sections[0].GeneratedImage)
	assert.Equal(t, "https://img/mailbox.png", snap.Website.Sections[2].GeneratedImage)
}

func TestImageBatchDroppedAfterNewGeneration(t *testing.T) {
	var s *Session
	images := &fakeImages{between: func(i int) {
		if i == 0 {
			_, err := s.Generate(context.Background(), GenerateInput{Prompt: "Second"})
			require.NoError(t, err)
		}
	}}
	s = newSession(t, Deps{Images: images})
	generated(t, s)

	_, err := s.GenerateImages(context.Background(), nil)
	require.ErrorIs(t, err, ErrStale)
	cur := s.Current()
	assert.Equal(t, "Second", cur.Website.Sections[0].Heading)
	assert.Empty(t, cur.Website.Sections[2].GeneratedImage)
	assert.False(t, cur.Status.GeneratingImages)
}

// slowImages blocks every call until release is closed and records how
// many calls overlap. It ignores ctx like a provider mid-request would.
type slowImages struct {
	entered chan struct{}
	release chan struct{}

	mu          sync.Mutex
	calls       int
	inFlight    int
	maxInFlight int
}

func (g *slowImages) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.inFlight++
	g.maxInFlight = max(g.maxInFlight, g.inFlight)
	g.mu.Unlock()

	g.entered <- struct{}{}
	<-g.release

	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()
	return "https://img/" + prompt + ".png", nil
}

func TestImageBatchStopsSpendingAfterNewGeneration(t *testing.T) {
	gen := &slowImages{entered: make(chan struct{}, 8), release: make(chan struct{})}
	s := newSession(t, Deps{Images: imagegen.NewPipeline(gen, nil, nil)})
	generated(t, s)

	var guards atomic.Int32
	guard := func(context.Context) error {
		guards.Add(1)
		return nil
	}

	errc := make(chan error, 1)
	go func() {
		_, err := s.GenerateImages(context.Background(), guard)
		errc <- err
	}()
	<-gen.entered

	_, err := s.Generate(context.Background(), GenerateInput{Prompt: "Second"})
	require.NoError(t, err)
	assert.False(t, s.Current().Status.GeneratingImages)

	_, err = s.GenerateImages(context.Background(), guard)
	require.ErrorIs(t, err, ErrBusy)
	_, err = s.RegenerateImage(context.Background(), 0, "", guard)
	require.ErrorIs(t, err, ErrBusy)

	close(gen.release)
	require.ErrorIs(t, <-errc, ErrStale)

	gen.mu.Lock()
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, gen.maxInFlight)
	gen.mu.Unlock()
	assert.Equal(t, int32(1), guards.Load())

	snap, err := s.GenerateImages(context.Background(), guard)
	require.NoError(t, err)
	assert.Equal(t, "Second", snap.Website.Sections[0].Heading)
	assert.Equal(t, "https://img/sunrise.png", snap.Website.Sections[0].GeneratedImage)
	assert.Equal(t, "https://img/mailbox.png", snap.Website.Sections[2].GeneratedImage)
	gen.mu.Lock()
	assert.Equal(t, 1, gen.maxInFlight)
	gen.mu.Unlock()
}

func TestEditChargesOnlyValidUnlockedEdits(t *testing.T) {
	ed := &fakeEditor{started: make(chan struct{}), release: make(chan struct{})}
	s := newSession(t, Deps{Editor: ed})
	generated(t, s)

	var charges atomic.Int32
	charge := func(context.Context) error {
		charges.Add(1)
		return nil
	}

	_, err := s.Edit(context.Background(), 9, "more", charge)
	require.ErrorIs(t, err, ErrSectionIndex)
	assert.Zero(t, charges.Load())

	errc := make(chan error, 1)
	go func() {
		_, err := s.Edit(context.Background(), 0, "warmer", charge)
		errc <- err
	}()
	<-ed.started
	assert.Equal(t, int32(1), charges.Load())

	_, err = s.Edit(context.Background(), 1, "shorter", charge)
	require.ErrorIs(t, err, editor.ErrLocked)
	assert.Equal(t, int32(1), charges.Load())

	close(ed.release)
	require.NoError(t, <-errc)
}

func TestEditChargeDenialSkipsEditor(t *testing.T) {
	s := newSession(t, Deps{})
	generated(t, s)
	denied := errors.New("limit reached")

	_, err := s.Edit(context.Background(), 0, "warmer", func(context.Context) error { return denied })
	require.ErrorIs(t, err, denied)
	cur := s.Current()
	assert.Equal(t, "Bakery", cur.Website.Sections[0].Heading)
	assert.Equal(t, -1, cur.Status.EditingIndex)

	_, err = s.Edit(context.Background(), 0, "warmer", nil)
	require.NoError(t, err)
}

func TestRegenerateImage(t *testing.T) {
	s := newSession(t, Deps{})
	generated(t, s)

	snap, err := s.RegenerateImage(context.Background(), 1, "laptop", nil)
	require.NoError(t, err)
	assert.Equal(t, "laptop", snap.Website.Sections[1].ImagePrompt)
	assert.Equal(t, "https://img/re-laptop.png", snap.Website.Sections[1].GeneratedImage)
	assert.Equal(t, -1, snap.Status.ImageIndex)

	_, err = s.RegenerateImage(context.Background(), 9, "", nil)
	require.ErrorIs(t, err, ErrSectionIndex)
}

func TestApplyFixesMarksCategoryPassed(t *testing.T) {
	gen := &fakeGenerator{fn: func(context.Context, generation.Input) (website.GeneratedWebsite, error) {
		w := sample("x")
		w.Navigation[1].Target = "#nowhere"
		return w, nil
	}}
	s := newSession(t, Deps{Generator: gen})
	snap := generated(t, s)
	require.False(t, snap.Validation.Navigation.Passed)

	snap, err := s.ApplyFixes(website.CategoryNavigation)
	require.NoError(t, err)
	assert.True(t, snap.Validation.Navigation.Passed)
	assert.Equal(t, "#features", snap.Website.Navigation[1].Target)
}

func TestGenerateBackend(t *testing.T) {
	s := newSession(t, Deps{})
	generated(t, s)
	_, err := s.GenerateBackend(context.Background())
	require.ErrorIs(t, err, ErrNoBackend)

	gen := &fakeGenerator{fn: func(context.Context, generation.Input) (website.GeneratedWebsite, error) {
		w := sample("x")
		w.Backend = &website.BackendSpec{Database: website.Database{Tables: []website.Table{{Name: "leads"}}}}
		return w, nil
	}}
	s = newSession(t, Deps{Generator: gen})
	generated(t, s)
	snap, err := s.GenerateBackend(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Code)
	assert.Equal(t, string(backendgen.SourceTemplate), snap.CodeSource)
	assert.False(t, snap.Status.GeneratingBackend)
}

func TestSubscribeDeliversLatest(t *testing.T) {
	s := newSession(t, Deps{})
	ch, cancel := s.Subscribe()
	defer cancel()

	first := <-ch
	assert.Equal(t, uint64(0), first.Version)

	generated(t, s)
	_, err := s.SetImage(0, "https://cdn/a.png")
	require.NoError(t, err)

	select {
	case snap := <-ch:
		assert.Equal(t, s.Current().Version, snap.Version)
		assert.Equal(t, "https://cdn/a.png", snap.Website.Sections[0].GeneratedImage)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestSnapshotsAreNotMutated(t *testing.T) {
	s := newSession(t, Deps{})
	before := generated(t, s)
	_, err := s.SetImage(0, "https://cdn/a.png")
	require.NoError(t, err)
	assert.Empty(t, before.Website.Sections[0].GeneratedImage)
}

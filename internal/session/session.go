package session

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/redirect10-prog/siteForge-ai/internal/backendgen"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
	"github.com/redirect10-prog/siteForge-ai/internal/editor"
	"github.com/redirect10-prog/siteForge-ai/internal/generation"
	"github.com/redirect10-prog/siteForge-ai/internal/imagegen"
)

type Generator interface {
	Generate(ctx context.Context, in generation.Input) (website.GeneratedWebsite, error)
}

type Images interface {
	Run(ctx context.Context, sections []website.Section, guard imagegen.Guard, observe imagegen.Observer) []website.Section
	Regenerate(ctx context.Context, s website.Section, customPrompt string, guard imagegen.Guard) (website.Section, error)
}

type SectionEditor interface {
	Edit(ctx context.Context, s website.Section, instructions string) (editor.SectionPatch, error)
}

type BackendSynthesizer interface {
	Synthesize(ctx context.Context, spec website.BackendSpec) (website.GeneratedCode, backendgen.Source, error)
}

// Deps are the collaborators a session drives.
type Deps struct {
	Generator Generator
	Images    Images
	Editor    SectionEditor
	Backend   BackendSynthesizer
	Log       *zap.Logger
}

// Session is one user's working copy of a generated website. Commands may
// run concurrently; each commits through the Store.
type Session struct {
	OwnerID uint

	store *Store
	deps  Deps
	lock  editor.Lock
	keys  atomic.Uint64

	// imaging is held from the start of an image command until its last
	// provider call has returned, whatever epoch it belongs to.
	imaging      atomic.Bool
	mu           sync.Mutex
	cancelImages context.CancelFunc
}

func New(id string, ownerID uint, deps Deps) *Session {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Session{OwnerID: ownerID, store: NewStore(id), deps: deps}
}

func (s *Session) ID() string { return s.Current().ID }

func (s *Session) Current() *Snapshot { return s.store.Current() }

func (s *Session) Subscribe() (<-chan *Snapshot, func()) { return s.store.Subscribe() }

func (s *Session) newKeys(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "s" + strconv.FormatUint(s.keys.Add(1), 10)
	}
	return out
}

// GenerateInput carries a generation request.
type GenerateInput struct {
	Prompt string
	Tier   string
	Colors *website.ColorScheme
}

// Generate starts a new generation. Any work still running for earlier
// content can no longer commit once this begins.
func (s *Session) Generate(ctx context.Context, in GenerateInput) (*Snapshot, error) {
	start, _ := s.store.Update(func(n *Snapshot) error {
		n.Epoch++
		n.Prompt = in.Prompt
		n.Tier = in.Tier
		n.Error = ""
		n.Status.Generating = true
		return nil
	})
	epoch := start.Epoch
	s.stopImages()

	w, err := s.deps.Generator.Generate(ctx, generation.Input{
		Prompt:       in.Prompt,
		TierContext:  generation.TierContext(in.Tier),
		ColorContext: generation.ColorContext(in.Colors),
	})
	if err != nil {
		_, serr := s.store.UpdateAt(epoch, func(n *Snapshot) error {
			n.Status = idle()
			n.Error = err.Error()
			return nil
		})
		if serr != nil {
			return nil, serr
		}
		return nil, err
	}
	return s.store.UpdateAt(epoch, func(n *Snapshot) error {
		n.Status = idle()
		n.Website = &w
		n.keys = s.newKeys(len(w.Sections))
		n.Code = nil
		n.CodeSource = ""
		n.SavedID = ""
		n.SavedSlug = ""
		n.revalidate()
		return nil
	})
}

// Load replaces the content with a saved website, as a new epoch.
func (s *Session) Load(w website.GeneratedWebsite, savedID, slug string) *Snapshot {
	snap, _ := s.store.Update(func(n *Snapshot) error {
		n.Epoch++
		c := w.Clone()
		n.Website = &c
		n.keys = s.newKeys(len(c.Sections))
		n.Status = idle()
		n.Error = ""
		n.Code = nil
		n.CodeSource = ""
		n.SavedID = savedID
		n.SavedSlug = slug
		n.revalidate()
		return nil
	})
	s.stopImages()
	return snap
}

// stopImages cancels image work of an earlier epoch. Its provider call may
// still be running; the imaging flag stays held until it returns.
func (s *Session) stopImages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelImages != nil {
		s.cancelImages()
	}
}

// imageWork derives the context image calls run under and a guard that
// refuses to spend quota once epoch is no longer current.
func (s *Session) imageWork(ctx context.Context, epoch uint64, guard imagegen.Guard) (context.Context, imagegen.Guard, func()) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelImages = cancel
	s.mu.Unlock()

	bound := func(gctx context.Context) error {
		if s.store.Current().Epoch != epoch {
			cancel()
			return ErrStale
		}
		if guard == nil {
			return nil
		}
		return guard(gctx)
	}
	done := func() {
		s.mu.Lock()
		s.cancelImages = nil
		s.mu.Unlock()
		cancel()
	}
	return ctx, bound, done
}

// MarkSaved records where the content was persisted.
func (s *Session) MarkSaved(id, slug string) *Snapshot {
	snap, _ := s.store.Update(func(n *Snapshot) error {
		n.SavedID = id
		n.SavedSlug = slug
		return nil
	})
	return snap
}

// GenerateImages illustrates every section with a prompt, committing each
// image as soon as it arrives. guard runs before every image.
func (s *Session) GenerateImages(ctx context.Context, guard imagegen.Guard) (*Snapshot, error) {
	if !s.imaging.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.imaging.Store(false)

	var (
		epoch    uint64
		sections []website.Section
		keys     []string
		pending  []string
	)
	_, err := s.store.Update(func(n *Snapshot) error {
		if n.Website == nil {
			return ErrNoContent
		}
		if n.Status.GeneratingImages || n.Status.ImageIndex >= 0 {
			return ErrBusy
		}
		epoch = n.Epoch
		sections = slices.Clone(n.Website.Sections)
		keys = slices.Clone(n.keys)
		for i, sec := range sections {
			if sec.ImagePrompt != "" {
				pending = append(pending, keys[i])
			}
		}
		n.Status.GeneratingImages = true
		n.Status.ImageProgress = imagegen.Progress{Current: 0, Total: len(pending)}
		n.Status.ImageIndex = -1
		if len(pending) > 0 {
			n.Status.ImageIndex = n.indexOf(pending[0])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx, guard, done := s.imageWork(ctx, epoch, guard)
	defer done()

	s.deps.Images.Run(ctx, sections, guard, func(u imagegen.Update) {
		_, err := s.store.UpdateAt(epoch, func(n *Snapshot) error {
			n.Status.ImageProgress = u.Progress
			if u.Err == nil {
				if i := n.indexOf(keys[u.Index]); i >= 0 {
					n.Website.Sections[i].GeneratedImage = u.Image
				}
			}
			n.Status.ImageIndex = -1
			if u.Progress.Current < len(pending) {
				n.Status.ImageIndex = n.indexOf(pending[u.Progress.Current])
			}
			return nil
		})
		if err != nil {
			s.deps.Log.Debug("image result dropped", zap.Int("index", u.Index), zap.Error(err))
		}
		if errors.Is(err, ErrStale) {
			done()
		}
	})

	return s.store.UpdateAt(epoch, func(n *Snapshot) error {
		n.Status.GeneratingImages = false
		n.Status.ImageIndex = -1
		return nil
	})
}

// RegenerateImage replaces one section's image. A non-empty customPrompt
// becomes the section's prompt when the image succeeds.
func (s *Session) RegenerateImage(ctx context.Context, index int, customPrompt string, guard imagegen.Guard) (*Snapshot, error) {
	if !s.imaging.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.imaging.Store(false)

	var (
		epoch uint64
		key   string
		sec   website.Section
	)
	_, err := s.store.Update(func(n *Snapshot) error {
		var err error
		if sec, key, err = n.section(index); err != nil {
			return err
		}
		if n.Status.GeneratingImages || n.Status.ImageIndex >= 0 {
			return ErrBusy
		}
		epoch = n.Epoch
		n.Status.ImageIndex = index
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx, guard, done := s.imageWork(ctx, epoch, guard)
	out, genErr := s.deps.Images.Regenerate(ctx, sec, customPrompt, guard)
	done()
	snap, err := s.store.UpdateAt(epoch, func(n *Snapshot) error {
		n.Status.ImageIndex = -1
		if genErr != nil {
			return nil
		}
		i := n.indexOf(key)
		if i < 0 {
			return ErrSectionGone
		}
		n.Website.Sections[i].ImagePrompt = out.ImagePrompt
		n.Website.Sections[i].GeneratedImage = out.GeneratedImage
		return nil
	})
	if errors.Is(err, ErrSectionGone) {
		s.clearImageIndex(epoch)
	}
	if genErr != nil {
		return snap, genErr
	}
	return snap, err
}

func (s *Session) clearImageIndex(epoch uint64) {
	_, _ = s.store.UpdateAt(epoch, func(n *Snapshot) error {
		n.Status.ImageIndex = -1
		return nil
	})
}

// SetImage sets a section's image to an uploaded URL.
func (s *Session) SetImage(index int, url string) (*Snapshot, error) {
	return s.store.Update(func(n *Snapshot) error {
		if _, _, err := n.section(index); err != nil {
			return err
		}
		n.Website.Sections[index].GeneratedImage = url
		return nil
	})
}

// Charge spends quota for a command. It runs only once the command is known
// to be valid and about to call the model.
type Charge func(ctx context.Context) error

// Edit rewrites one section from natural language instructions. Only one
// edit runs at a time; a second fails with editor.ErrLocked. charge may be
// nil.
func (s *Session) Edit(ctx context.Context, index int, instructions string, charge Charge) (*Snapshot, error) {
	token, err := s.lock.TryAcquire(index)
	if err != nil {
		return nil, err
	}
	defer func() {
		s.lock.Release(token)
		_, _ = s.store.Update(func(n *Snapshot) error {
			n.Status.EditingIndex = -1
			return nil
		})
	}()

	var (
		epoch uint64
		key   string
		sec   website.Section
	)
	_, err = s.store.Update(func(n *Snapshot) error {
		var err error
		if sec, key, err = n.section(index); err != nil {
			return err
		}
		epoch = n.Epoch
		n.Status.EditingIndex = index
		return nil
	})
	if err != nil {
		return nil, err
	}
	if charge != nil {
		if err := charge(ctx); err != nil {
			return nil, err
		}
	}

	patch, err := s.deps.Editor.Edit(ctx, sec, instructions)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateAt(epoch, func(n *Snapshot) error {
		i := n.indexOf(key)
		if i < 0 {
			return ErrSectionGone
		}
		n.Website.Sections[i] = editor.Apply(n.Website.Sections[i], patch)
		n.revalidate()
		return nil
	})
}

// Reorder arranges sections so that position i holds the section that was
// at order[i].
func (s *Session) Reorder(order []int) (*Snapshot, error) {
	return s.store.Update(func(n *Snapshot) error {
		if n.Website == nil {
			return ErrNoContent
		}
		if !isPermutation(order, len(n.Website.Sections)) {
			return ErrBadOrder
		}
		sections := make([]website.Section, len(order))
		keys := make([]string, len(order))
		for i, from := range order {
			sections[i] = n.Website.Sections[from]
			keys[i] = n.keys[from]
		}
		n.Website.Sections = sections
		n.keys = keys
		n.revalidate()
		return nil
	})
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, i := range order {
		if i < 0 || i >= n || seen[i] {
			return false
		}
		seen[i] = true
	}
	return true
}

// Delete removes a section and navigation entries that only pointed at it.
// The last section cannot be deleted.
func (s *Session) Delete(index int) (*Snapshot, error) {
	return s.store.Update(func(n *Snapshot) error {
		sec, _, err := n.section(index)
		if err != nil {
			return err
		}
		if len(n.Website.Sections) == 1 {
			return ErrLastSection
		}
		n.Website.Sections = slices.Delete(n.Website.Sections, index, index+1)
		n.keys = slices.Delete(n.keys, index, index+1)

		anchor := website.Anchor(sec.Name)
		shared := slices.ContainsFunc(n.Website.Sections, func(o website.Section) bool {
			return website.Anchor(o.Name) == anchor
		})
		if !shared {
			n.Website.Navigation = slices.DeleteFunc(n.Website.Navigation, func(item website.NavigationItem) bool {
				return item.Target == anchor
			})
		}
		n.revalidate()
		return nil
	})
}

// ApplyFixes applies every suggested fix of one validation category.
func (s *Session) ApplyFixes(category website.Category) (*Snapshot, error) {
	return s.store.Update(func(n *Snapshot) error {
		if n.Website == nil {
			return ErrNoContent
		}
		w, res := website.ApplyFixes(*n.Website, category)
		n.Website = &w
		n.Validation = &res
		return nil
	})
}

// GenerateBackend synthesizes code for the website's backend specification.
func (s *Session) GenerateBackend(ctx context.Context) (*Snapshot, error) {
	var (
		epoch uint64
		spec  website.BackendSpec
	)
	_, err := s.store.Update(func(n *Snapshot) error {
		if n.Website == nil {
			return ErrNoContent
		}
		if n.Website.Backend == nil {
			return ErrNoBackend
		}
		if n.Status.GeneratingBackend {
			return ErrBusy
		}
		epoch = n.Epoch
		spec = n.Website.Backend.Clone()
		n.Status.GeneratingBackend = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	code, source, genErr := s.deps.Backend.Synthesize(ctx, spec)
	snap, err := s.store.UpdateAt(epoch, func(n *Snapshot) error {
		n.Status.GeneratingBackend = false
		if genErr != nil {
			return nil
		}
		n.Code = &code
		n.CodeSource = string(source)
		return nil
	})
	if genErr != nil {
		return snap, genErr
	}
	return snap, err
}

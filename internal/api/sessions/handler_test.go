package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/redirect10-prog/siteForge-ai/internal/api/websites"
	"github.com/redirect10-prog/siteForge-ai/internal/app/http/middleware"
	"github.com/redirect10-prog/siteForge-ai/internal/backendgen"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
	"github.com/redirect10-prog/siteForge-ai/internal/editor"
	"github.com/redirect10-prog/siteForge-ai/internal/generation"
	"github.com/redirect10-prog/siteForge-ai/internal/imagegen"
	"github.com/redirect10-prog/siteForge-ai/internal/session"
	"github.com/redirect10-prog/siteForge-ai/internal/usage"
)

var secret = []byte("sessions-test-secret-0123")

type fakeGate struct {
	denied map[usage.Kind]bool
	calls  []usage.Kind
}

func (g *fakeGate) Check(_ context.Context, _ uint, kind usage.Kind) (string, error) {
	g.calls = append(g.calls, kind)
	if g.denied[kind] {
		return "", &usage.QuotaExceededError{Kind: kind, Used: 3, Limit: 3, Tier: plans.TierFree}
	}
	return plans.TierPro, nil
}

func (g *fakeGate) CheckEdit(context.Context, uint, string, string) error {
	g.calls = append(g.calls, usage.KindEdits)
	return nil
}

func (g *fakeGate) Usage(context.Context, uint) (usage.Usage, error) {
	return usage.Usage{Tier: plans.TierPro}, nil
}

type fakeGenerator struct{ calls atomic.Int32 }

func (g *fakeGenerator) Generate(_ context.Context, in generation.Input) (website.GeneratedWebsite, error) {
	g.calls.Add(1)
	return website.GeneratedWebsite{
		WebsiteType: website.TypeLanding,
		Sections: []website.Section{
			{Name: "Hero", Heading: in.Prompt, Content: "Welcome", ImagePrompt: "sunrise"},
			{Name: "About", Heading: "About us", Content: "Since 1990"},
		},
		Navigation: []website.NavigationItem{
			{Label: "Hero", Target: "#hero", Type: website.NavScroll},
			{Label: "About", Target: "#about", Type: website.NavScroll},
		},
		SuggestedPrompts: []string{},
	}, nil
}

type fakeImages struct{}

func (fakeImages) Run(ctx context.Context, sections []website.Section, guard imagegen.Guard, observe imagegen.Observer) []website.Section {
	out := make([]website.Section, len(sections))
	copy(out, sections)
	total := imagegen.Total(sections)
	n := 0
	for i, s := range sections {
		if s.ImagePrompt == "" {
			continue
		}
		n++
		u := imagegen.Update{Index: i, Progress: imagegen.Progress{Current: n, Total: total}}
		if err := guard(ctx); err != nil {
			u.Err = err
		} else {
			u.Image = "https://img.test/" + s.Name + ".png"
			out[i].GeneratedImage = u.Image
		}
		observe(u)
	}
	return out
}

func (fakeImages) Regenerate(ctx context.Context, s website.Section, customPrompt string, guard imagegen.Guard) (website.Section, error) {
	if err := guard(ctx); err != nil {
		return s, err
	}
	if customPrompt != "" {
		s.ImagePrompt = customPrompt
	}
	s.GeneratedImage = "https://img.test/regenerated.png"
	return s, nil
}

// fakeEditor blocks inside Edit while started is set, until release closes.
type fakeEditor struct {
	started chan struct{}
	release chan struct{}
}

func (e *fakeEditor) Edit(_ context.Context, s website.Section, instructions string) (editor.SectionPatch, error) {
	if e.started != nil {
		e.started <- struct{}{}
		<-e.release
	}
	return editor.SectionPatch{Name: s.Name, Heading: s.Heading, Content: instructions}, nil
}

type fakeBackend struct{}

func (fakeBackend) Synthesize(context.Context, website.BackendSpec) (website.GeneratedCode, backendgen.Source, error) {
	return website.GeneratedCode{}, backendgen.SourceTemplate, nil
}

type fixture struct {
	gate   *fakeGate
	gen    *fakeGenerator
	editor *fakeEditor
	mock   sqlmock.Sqlmock
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	f := &fixture{
		gate:   &fakeGate{denied: map[usage.Kind]bool{}},
		gen:    &fakeGenerator{},
		editor: &fakeEditor{},
		mock:   mock,
	}
	h := &Handler{
		Manager: session.NewManager(session.Deps{
			Generator: f.gen,
			Images:    fakeImages{},
			Editor:    f.editor,
			Backend:   fakeBackend{},
		}, 16, time.Hour),
		Gate:    f.gate,
		Repo:    &websites.Repo{DB: db},
		Cache:   websites.NewSiteCache(8, time.Minute),
		BaseURL: "https://siteforge.test",
	}

	r := gin.New()
	g := r.Group("/sessions", middleware.AuthOptional(secret))
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Close)
	g.GET("/:id/events", h.Events)
	g.POST("/:id/generate", h.Generate)
	g.POST("/:id/images", h.Images)
	g.POST("/:id/backend", h.Backend)
	g.POST("/:id/save", h.Save)
	g.PUT("/:id/order", h.Reorder)
	g.POST("/:id/validation/:category/fix", h.ApplyFixes)
	g.POST("/:id/sections/:index/edit", h.Edit)
	g.POST("/:id/sections/:index/image", h.RegenerateImage)
	g.PUT("/:id/sections/:index/image", h.SetImage)
	g.DELETE("/:id/sections/:index", h.DeleteSection)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, userID uint) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, userID uint) string {
	t.Helper()
	tok, err := middleware.IssueToken(secret, middleware.Claims{UserID: userID}, time.Hour)
	require.NoError(t, err)
	return tok
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) session.Snapshot {
	t.Helper()
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap), w.Body.String())
	return snap
}

// generated creates a session for userID and generates into it.
func (f *fixture) generated(t *testing.T, userID uint) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/sessions", nil, userID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decodeSnapshot(t, w).ID

	w = f.do(t, http.MethodPost, "/sessions/"+id+"/generate", map[string]any{"prompt": "Bakery"}, userID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return id
}

// saved generates into a new session and saves it as a website.
func (f *fixture) saved(t *testing.T, userID uint) string {
	t.Helper()
	id := f.generated(t, userID)
	f.mock.ExpectQuery(`SELECT "id" FROM "generated_websites" WHERE slug = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	f.mock.ExpectQuery(`INSERT INTO "generated_websites"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("0b3e4c1a-8f0e-4d7c-9a55-5f4b8e2c1d90"))
	w := f.do(t, http.MethodPost, "/sessions/"+id+"/save", nil, userID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	f.gate.calls = nil
	return id
}

func TestGenerateIntoSession(t *testing.T) {
	f := newFixture(t)
	id := f.generated(t, 4)

	snap := decodeSnapshot(t, f.do(t, http.MethodGet, "/sessions/"+id, nil, 4))
	require.NotNil(t, snap.Website)
	assert.Equal(t, "Bakery", snap.Website.Sections[0].Heading)
	assert.Equal(t, plans.TierPro, snap.Tier)
	assert.False(t, snap.Status.Generating)
	require.NotNil(t, snap.Validation)
	assert.Equal(t, []usage.Kind{usage.KindRequests}, f.gate.calls)
}

func TestSessionsAreOwned(t *testing.T) {
	f := newFixture(t)
	id := f.generated(t, 4)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/sessions/"+id, nil, 5).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/sessions/"+id, nil, 0).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/sessions/"+id, nil, 4).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/sessions/"+id, nil, 4).Code)
}

func TestGenerateQuotaDenied(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/sessions", nil, 4)
	id := decodeSnapshot(t, w).ID
	f.gate.denied[usage.KindRequests] = true

	w = f.do(t, http.MethodPost, "/sessions/"+id+"/generate", map[string]any{"prompt": "Bakery"}, 4)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Zero(t, f.gen.calls.Load())

	w = f.do(t, http.MethodPost, "/sessions/"+id+"/generate", map[string]any{"prompt": "  "}, 4)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommandsBeforeGeneration(t *testing.T) {
	f := newFixture(t)
	id := decodeSnapshot(t, f.do(t, http.MethodPost, "/sessions", nil, 4)).ID

	w := f.do(t, http.MethodPut, "/sessions/"+id+"/order", map[string]any{"order": []int{}}, 4)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Generate a website first"}`, w.Body.String())
}

func TestSectionCommands(t *testing.T) {
	f := newFixture(t)
	id := f.generated(t, 4)

	w := f.do(t, http.MethodPut, "/sessions/"+id+"/order", map[string]any{"order": []int{1, 0}}, 4)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "About", decodeSnapshot(t, w).Website.Sections[0].Name)

	w = f.do(t, http.MethodPut, "/sessions/"+id+"/order", map[string]any{"order": []int{0, 0}}, 4)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/sessions/"+id+"/sections/0/edit", map[string]any{"editInstructions": "Founded in 1990"}, 4)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Founded in 1990", decodeSnapshot(t, w).Website.Sections[0].Content)

	w = f.do(t, http.MethodPost, "/sessions/"+id+"/sections/9/edit", map[string]any{"editInstructions": "x"}, 4)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPut, "/sessions/"+id+"/sections/1/image", map[string]any{"url": "https://cdn.test/a.png"}, 4)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://cdn.test/a.png", decodeSnapshot(t, w).Website.Sections[1].GeneratedImage)

	w = f.do(t, http.MethodDelete, "/sessions/"+id+"/sections/0", nil, 4)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	require.Len(t, snap.Website.Sections, 1)
	assert.Len(t, snap.Website.Navigation, 1)

	w = f.do(t, http.MethodDelete, "/sessions/"+id+"/sections/0", nil, 4)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Cannot delete the last section"}`, w.Body.String())
}

func TestImagesNeedIdentity(t *testing.T) {
	f := newFixture(t)
	id := f.generated(t, 0)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/sessions/"+id+"/images", nil, 0).Code)
}

func TestImagesCommitPerSection(t *testing.T) {
	f := newFixture(t)
	id := f.generated(t, 4)

	w := f.do(t, http.MethodPost, "/sessions/"+id+"/images", nil, 4)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decodeSnapshot(t, w)
	assert.Equal(t, "https://img.test/Hero.png", snap.Website.Sections[0].GeneratedImage)
	assert.Equal(t, imagegen.Progress{Current: 1, Total: 1}, snap.Status.ImageProgress)
	assert.False(t, snap.Status.GeneratingImages)
	assert.Equal(t, -1, snap.Status.ImageIndex)
}

func TestRegenerateImageQuota(t *testing.T) {
	f := newFixture(t)
	id := f.generated(t, 4)
	f.gate.denied[usage.KindImages] = true

	w := f.do(t, http.MethodPost, "/sessions/"+id+"/sections/0/image", map[string]any{"customPrompt": "moon"}, 4)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	snap := decodeSnapshot(t, f.do(t, http.MethodGet, "/sessions/"+id, nil, 4))
	assert.Equal(t, "sunrise", snap.Website.Sections[0].ImagePrompt)
	assert.Equal(t, -1, snap.Status.ImageIndex)
}

func TestApplyFixesCategory(t *testing.T) {
	f := newFixture(t)
	id := f.generated(t, 4)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/sessions/"+id+"/validation/colors/fix", nil, 4).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/sessions/"+id+"/validation/navigation/fix", nil, 4).Code)
}

func TestBackendWithoutSpec(t *testing.T) {
	f := newFixture(t)
	id := f.generated(t, 4)

	w := f.do(t, http.MethodPost, "/sessions/"+id+"/backend", nil, 4)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Website has no backend specification"}`, w.Body.String())
}

func TestSaveCreatesWebsite(t *testing.T) {
	f := newFixture(t)
	id := f.generated(t, 4)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/sessions/"+id+"/save", nil, 0).Code)

	f.mock.ExpectQuery(`SELECT "id" FROM "generated_websites" WHERE slug = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	f.mock.ExpectQuery(`INSERT INTO "generated_websites"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("0b3e4c1a-8f0e-4d7c-9a55-5f4b8e2c1d90"))

	w := f.do(t, http.MethodPost, "/sessions/"+id+"/save", nil, 4)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		ID      string           `json:"id"`
		Slug    string           `json:"slug"`
		URL     string           `json:"url"`
		Session session.Snapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "0b3e4c1a-8f0e-4d7c-9a55-5f4b8e2c1d90", out.ID)
	assert.Len(t, out.Slug, 8)
	assert.Equal(t, "https://siteforge.test/site/"+out.Slug, out.URL)
	assert.Equal(t, out.ID, out.Session.SavedID)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEventsStreamSnapshots(t *testing.T) {
	f := newFixture(t)
	id := f.generated(t, 4)

	srv := httptest.NewServer(f.router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + id + "/events?access_token=" + token(t, 4)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Type)
	require.NotNil(t, first.Snapshot)
	require.NotNil(t, first.Snapshot.Website)

	w := f.do(t, http.MethodPut, "/sessions/"+id+"/order", map[string]any{"order": []int{1, 0}}, 4)
	require.Equal(t, http.StatusOK, w.Code)

	var next event
	require.NoError(t, conn.ReadJSON(&next))
	assert.Greater(t, next.Snapshot.Version, first.Snapshot.Version)
	assert.Equal(t, "About", next.Snapshot.Website.Sections[0].Name)
}

func TestEventsRejectOtherUsers(t *testing.T) {
	f := newFixture(t)
	id := f.generated(t, 4)

	srv := httptest.NewServer(f.router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + id + "/events?access_token=" + token(t, 5)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSavedEditChargesAfterIndexCheck(t *testing.T) {
	f := newFixture(t)
	id := f.saved(t, 4)

	w := f.do(t, http.MethodPost, "/sessions/"+id+"/sections/9/edit", map[string]any{"editInstructions": "x"}, 4)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Section index out of range"}`, w.Body.String())
	assert.Empty(t, f.gate.calls)

	w = f.do(t, http.MethodPost, "/sessions/"+id+"/sections/1/edit", map[string]any{"editInstructions": "Since 1980"}, 4)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []usage.Kind{usage.KindEdits}, f.gate.calls)
}

func TestSavedEditNotChargedWhileLocked(t *testing.T) {
	f := newFixture(t)
	id := f.saved(t, 4)
	f.editor.started = make(chan struct{})
	f.editor.release = make(chan struct{})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- f.do(t, http.MethodPost, "/sessions/"+id+"/sections/0/edit", map[string]any{"editInstructions": "warmer"}, 4)
	}()
	<-f.editor.started
	assert.Equal(t, []usage.Kind{usage.KindEdits}, f.gate.calls)

	w := f.do(t, http.MethodPost, "/sessions/"+id+"/sections/1/edit", map[string]any{"editInstructions": "shorter"}, 4)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"Another edit is already in progress"}`, w.Body.String())
	assert.Equal(t, []usage.Kind{usage.KindEdits}, f.gate.calls)

	close(f.editor.release)
	assert.Equal(t, http.StatusOK, (<-done).Code)
}

package seoaudit

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/testutil"
	"github.com/BaSui01/skillflow/types"
)

const samplePage = `<!DOCTYPE html>
<html lang="en">
<head>
  <title>Widgets — Buy Widgets Online</title>
  <meta name="description" content="The best widgets, shipped worldwide.">
  <link rel="canonical" href="https://shop.example.com/widgets">
</head>
<body>
  <h1>Widgets</h1>
  <h2>Popular</h2>
  <p>We sell widgets. Widgets are great and everyone needs widgets.</p>
  <a href="/cart">Cart</a>
  <a href="https://shop.example.com/about">About</a>
  <a href="https://partner.example.net" rel="nofollow">Partner</a>
  <img src="/hero.png" alt="A widget">
  <img src="/naked.png">
  <script>var hidden = "should not count as words";</script>
</body>
</html>`

type fakeAdapter struct {
	brief string
	err   error
	got   skill.AnalysisRequest
}

func (f *fakeAdapter) Analyze(_ context.Context, req skill.AnalysisRequest) (string, error) {
	f.got = req
	if f.err != nil {
		return "", f.err
	}
	return f.brief, nil
}

func TestParsePage(t *testing.T) {
	t.Parallel()

	pageURL, _ := url.Parse("https://shop.example.com/widgets")
	facts, err := parsePage(strings.NewReader(samplePage), pageURL)
	require.NoError(t, err)

	assert.Equal(t, "Widgets — Buy Widgets Online", facts.Title)
	assert.Equal(t, "The best widgets, shipped worldwide.", facts.MetaDescription)
	assert.Equal(t, "https://shop.example.com/widgets", facts.Canonical)
	assert.Equal(t, "en", facts.Lang)
	assert.Equal(t, []string{"Widgets"}, facts.H1s)
	assert.Equal(t, 1, facts.H2Count)
	assert.Equal(t, 2, facts.InternalLinks)
	assert.Equal(t, 1, facts.ExternalLinks)
	assert.Equal(t, 1, facts.NofollowLinks)
	assert.Equal(t, 2, facts.Images)
	assert.Equal(t, 1, facts.ImagesNoAlt)

	// script 文本不计入正文词数
	assert.Less(t, facts.WordCount, 25)
	assert.Greater(t, facts.WordCount, 10)
}

func TestPageFacts_Issues(t *testing.T) {
	t.Parallel()

	empty := &pageFacts{}
	issues := empty.issues()
	assert.Contains(t, issues, "missing <title>")
	assert.Contains(t, issues, "missing meta description")
	assert.Contains(t, issues, "no <h1> heading")
	assert.Contains(t, issues, "no canonical link")
	assert.Contains(t, issues, "thin content (0 words)")

	noindex := &pageFacts{
		Title:           "ok",
		MetaDescription: "ok",
		H1s:             []string{"a", "b"},
		Canonical:       "https://x",
		MetaRobots:      "noindex, follow",
		WordCount:       500,
	}
	issues = noindex.issues()
	assert.Contains(t, issues, "multiple <h1> headings (2)")
	assert.Contains(t, issues, "page is marked noindex")
	assert.NotContains(t, issues, "missing <title>")
}

func TestSkill_Info(t *testing.T) {
	t.Parallel()

	s := New(nil)
	assert.Equal(t, "seoaudit", s.Name())
	assert.Equal(t, skill.TierL2, s.Info().Tier)
	assert.True(t, s.Info().RequiresClient)
	assert.True(t, s.Info().RequiresAdapter)
	assert.Equal(t, []string{"audit_page", "extract_meta"}, s.Info().ActionNames())
}

func TestSkill_Validate(t *testing.T) {
	t.Parallel()

	s := New(nil)

	for _, bad := range []string{"not a url", "ftp://example.com", "/relative/path", "https://"} {
		err := s.Validate("extract_meta", skill.Params{"url": bad})
		require.Error(t, err, bad)
		assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
	}

	require.NoError(t, s.Validate("extract_meta", skill.Params{"url": "https://example.com/page"}))
	// 缺 url 交给信封的必填检查
	require.NoError(t, s.Validate("extract_meta", skill.Params{}))
}

func htmlStub(body string) testutil.FakeResponse {
	h := http.Header{}
	h.Set("Content-Type", "text/html; charset=utf-8")
	return testutil.FakeResponse{Status: 200, Body: body, Header: h}
}

func TestSkill_ExtractMeta(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeClient().Stub("GET", "/widgets", htmlStub(samplePage))

	s := New(nil)
	resp, err := s.Execute(context.Background(), &skill.Request{
		Action: "extract_meta",
		Params: skill.Params{"url": "https://shop.example.com/widgets"},
		Client: fake,
	})
	require.NoError(t, err)

	assert.Contains(t, resp.Result, `title: "Widgets — Buy Widgets Online"`)
	assert.Contains(t, resp.Result, "links: 2 internal, 1 external, 1 nofollow")
	assert.Equal(t, "Widgets — Buy Widgets Online", resp.Data["title"])
	assert.Equal(t, 1, resp.Data["h1_count"])
	assert.Equal(t, 1, resp.Data["images_no_alt"])

	issues, ok := resp.Data["issues"].([]string)
	require.True(t, ok)
	assert.Contains(t, issues, "1 image(s) without alt text")

	call := fake.LastCall(t)
	assert.Equal(t, "GET", call.Method)
	assert.Equal(t, "/widgets", call.Path)
	assert.Contains(t, call.Header.Get("Accept"), "text/html")
}

func TestSkill_AuditPage(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeClient().Stub("GET", "/widgets", htmlStub(samplePage))
	adapter := &fakeAdapter{brief: "Fix the missing alt text first."}

	s := New(nil)
	resp, err := s.Execute(context.Background(), &skill.Request{
		Action:  "audit_page",
		Params:  skill.Params{"url": "https://shop.example.com/widgets"},
		Client:  fake,
		Adapter: adapter,
	})
	require.NoError(t, err)

	assert.Equal(t, "Fix the missing alt text first.", resp.Result)
	assert.Equal(t, "https://shop.example.com/widgets", resp.Data["url"])

	// 适配器拿到的是事实清单 + 问题列表，不是原始 HTML
	assert.Contains(t, adapter.got.Input, "page: https://shop.example.com/widgets")
	assert.Contains(t, adapter.got.Input, "detected issues:")
	assert.NotContains(t, adapter.got.Input, "<h1>")
	assert.Contains(t, adapter.got.Task, "SEO")
	assert.Equal(t, skill.DefaultAnalysisBudget, adapter.got.Budget)
}

func TestSkill_AuditPage_AdapterError(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeClient().Stub("GET", "/widgets", htmlStub(samplePage))
	adapter := &fakeAdapter{err: types.NewError(types.ErrUpstreamError, "model unavailable")}

	s := New(nil)
	_, err := s.Execute(context.Background(), &skill.Request{
		Action:  "audit_page",
		Params:  skill.Params{"url": "https://shop.example.com/widgets"},
		Client:  fake,
		Adapter: adapter,
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
}

func TestSkill_FetchUpstreamStatus(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeClient().
		Stub("GET", "/gone", testutil.FakeResponse{Status: 404, Body: "not found"})

	s := New(nil)
	_, err := s.Execute(context.Background(), &skill.Request{
		Action: "extract_meta",
		Params: skill.Params{"url": "https://shop.example.com/gone"},
		Client: fake,
	})
	require.Error(t, err)

	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrUpstreamError, e.Code)
	assert.Equal(t, 404, e.HTTPStatus)
}

func TestSkill_FetchNonHTML(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("Content-Type", "application/pdf")
	fake := testutil.NewFakeClient().
		Stub("GET", "/doc.pdf", testutil.FakeResponse{Status: 200, Body: "%PDF-", Header: h})

	s := New(nil)
	_, err := s.Execute(context.Background(), &skill.Request{
		Action: "extract_meta",
		Params: skill.Params{"url": "https://shop.example.com/doc.pdf"},
		Client: fake,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not HTML")
}

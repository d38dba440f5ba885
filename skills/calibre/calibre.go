// =============================================================================
// 📚 calibre — Calibre 内容服务器封装技能（L1）
// =============================================================================
// 走 Calibre content-server 的 /ajax JSON 端点。搜索端点只返回书籍 ID，
// 详情需要二跳 /ajax/books 批量取元数据；整形时合并这两步。
// =============================================================================
package calibre

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/types"
)

// Name 技能在目录中的注册名。
const Name = "calibre"

const (
	defaultLibrary     = "calibre"
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// Skill 实现 calibre 技能。
type Skill struct {
	logger *zap.Logger
}

// New 创建 calibre 技能。
func New(logger *zap.Logger) *Skill {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Skill{logger: logger.With(zap.String("skill", Name))}
}

// Name 实现 skill.Handler。
func (s *Skill) Name() string { return Name }

// Info 实现 skill.Handler。
func (s *Skill) Info() skill.Info {
	libraryParam := skill.ParamSpec{
		Name: "library_id", Type: "string",
		Description: "Calibre library ID, default " + strconv.Quote(defaultLibrary) + ".",
	}

	return skill.Info{
		Name:           Name,
		Description:    "Search and inspect books on a Calibre content server.",
		Tier:           skill.TierL1,
		RequiresClient: true,
		Actions: []skill.ActionSpec{
			{
				Name:    "search_books",
				Summary: "Full-text search across the library.",
				Params: []skill.ParamSpec{
					{Name: "query", Type: "string", Required: true},
					{Name: "limit", Type: "int", Description: "1-50, default 10."},
					libraryParam,
				},
				Cacheable: true,
				CacheTTL:  2 * time.Minute,
			},
			{
				Name:    "get_book",
				Summary: "Fetch one book's metadata by ID.",
				Params: []skill.ParamSpec{
					{Name: "book_id", Type: "int", Required: true},
					libraryParam,
				},
				Cacheable: true,
				CacheTTL:  10 * time.Minute,
			},
			{
				Name:    "list_formats",
				Summary: "List the available formats of a book.",
				Params: []skill.ParamSpec{
					{Name: "book_id", Type: "int", Required: true},
					libraryParam,
				},
			},
			{
				Name:    "recent_books",
				Summary: "List the most recently added books.",
				Params: []skill.ParamSpec{
					{Name: "limit", Type: "int", Description: "1-50, default 10."},
					libraryParam,
				},
				Cacheable: true,
				CacheTTL:  time.Minute,
			},
		},
	}
}

// Validate 实现 skill.Handler。
func (s *Skill) Validate(action string, p skill.Params) error {
	switch action {
	case "search_books", "recent_books":
		if n := p.OptionalInt("limit", defaultSearchLimit); n < 1 || n > maxSearchLimit {
			return types.NewError(types.ErrInvalidInput,
				fmt.Sprintf(`parameter "limit" must be between 1 and %d`, maxSearchLimit))
		}
	case "get_book", "list_formats":
		if id, ok := p.Int("book_id"); ok && id < 1 {
			return types.NewError(types.ErrInvalidInput, `parameter "book_id" must be positive`)
		}
	}
	return nil
}

// Execute 实现 skill.Handler。
func (s *Skill) Execute(ctx context.Context, req *skill.Request) (*skill.Response, error) {
	switch req.Action {
	case "search_books":
		query, err := req.Params.RequireString("query")
		if err != nil {
			return nil, err
		}
		return s.search(ctx, req.Client, req.Params, query, "")
	case "get_book":
		return s.getBook(ctx, req.Client, req.Params)
	case "list_formats":
		return s.listFormats(ctx, req.Client, req.Params)
	case "recent_books":
		return s.search(ctx, req.Client, req.Params, "", "timestamp")
	default:
		return nil, types.NewError(types.ErrInvalidAction,
			fmt.Sprintf("unknown action %q for skill %q", req.Action, Name))
	}
}

// HealthCheck 实现 skill.HealthChecker。
func (s *Skill) HealthCheck(ctx context.Context, client skill.Client) error {
	return skill.GetJSON(ctx, client, "/interface-data/update/"+defaultLibrary, nil)
}

// --- 响应形态 ---

type bookMeta struct {
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Series    string   `json:"series"`
	Timestamp string   `json:"timestamp"`
	Formats   []string `json:"formats"`
	Languages []string `json:"languages"`
	FormatMD  map[string]struct {
		Size int64 `json:"size"`
	} `json:"format_metadata"`
}

func (b bookMeta) authorLine() string {
	if len(b.Authors) == 0 {
		return "unknown author"
	}
	return strings.Join(b.Authors, ", ")
}

// search 驱动 search_books 与 recent_books：先取 ID 列表，再批量取元数据。
func (s *Skill) search(ctx context.Context, client skill.Client, p skill.Params, query, sortBy string) (*skill.Response, error) {
	library := p.OptionalString("library_id", defaultLibrary)
	limit := p.OptionalInt("limit", defaultSearchLimit)

	q := url.Values{}
	q.Set("query", query)
	q.Set("num", strconv.Itoa(limit))
	q.Set("library_id", library)
	if sortBy != "" {
		q.Set("sort", sortBy)
		q.Set("sort_order", "desc")
	}

	var found struct {
		TotalNum int   `json:"total_num"`
		BookIDs  []int `json:"book_ids"`
	}
	if err := skill.GetJSON(ctx, client, "/ajax/search?"+q.Encode(), &found); err != nil {
		return nil, err
	}

	if len(found.BookIDs) == 0 {
		return &skill.Response{
			Result: "no books found",
			Data:   map[string]any{"total": found.TotalNum, "count": 0},
		}, nil
	}

	books, err := s.fetchBooks(ctx, client, library, found.BookIDs)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d book(s)", len(found.BookIDs), found.TotalNum)
	for _, id := range found.BookIDs {
		meta, ok := books[id]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n[%d] %s — %s", id, meta.Title, meta.authorLine())
		if len(meta.Formats) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(meta.Formats, ", "))
		}
	}

	return &skill.Response{
		Result: b.String(),
		Data:   map[string]any{"total": found.TotalNum, "count": len(found.BookIDs), "book_ids": found.BookIDs},
	}, nil
}

// fetchBooks 批量拉取元数据，键为书籍 ID。
func (s *Skill) fetchBooks(ctx context.Context, client skill.Client, library string, ids []int) (map[int]bookMeta, error) {
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = strconv.Itoa(id)
	}

	q := url.Values{}
	q.Set("ids", strings.Join(strIDs, ","))
	q.Set("library_id", library)

	var raw map[string]bookMeta
	if err := skill.GetJSON(ctx, client, "/ajax/books?"+q.Encode(), &raw); err != nil {
		return nil, err
	}

	books := make(map[int]bookMeta, len(raw))
	for key, meta := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		books[id] = meta
	}
	return books, nil
}

func (s *Skill) getBook(ctx context.Context, client skill.Client, p skill.Params) (*skill.Response, error) {
	id, err := p.RequireInt("book_id")
	if err != nil {
		return nil, err
	}
	library := p.OptionalString("library_id", defaultLibrary)

	var meta bookMeta
	path := fmt.Sprintf("/ajax/book/%d?library_id=%s", id, url.QueryEscape(library))
	if err := skill.GetJSON(ctx, client, path, &meta); err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s — %s", meta.Title, meta.authorLine())
	if meta.Series != "" {
		fmt.Fprintf(&b, "\nseries: %s", meta.Series)
	}
	if len(meta.Formats) > 0 {
		fmt.Fprintf(&b, "\nformats: %s", strings.Join(meta.Formats, ", "))
	}
	if len(meta.Languages) > 0 {
		fmt.Fprintf(&b, "\nlanguages: %s", strings.Join(meta.Languages, ", "))
	}

	return &skill.Response{
		Result: b.String(),
		Data: map[string]any{
			"book_id": id,
			"title":   meta.Title,
			"authors": meta.Authors,
			"formats": meta.Formats,
		},
	}, nil
}

func (s *Skill) listFormats(ctx context.Context, client skill.Client, p skill.Params) (*skill.Response, error) {
	id, err := p.RequireInt("book_id")
	if err != nil {
		return nil, err
	}
	library := p.OptionalString("library_id", defaultLibrary)

	var meta bookMeta
	path := fmt.Sprintf("/ajax/book/%d?library_id=%s", id, url.QueryEscape(library))
	if err := skill.GetJSON(ctx, client, path, &meta); err != nil {
		return nil, err
	}

	formats := append([]string(nil), meta.Formats...)
	sort.Strings(formats)

	var b strings.Builder
	fmt.Fprintf(&b, "book %d %q has %d format(s)", id, meta.Title, len(formats))
	for _, f := range formats {
		if md, ok := meta.FormatMD[f]; ok && md.Size > 0 {
			fmt.Fprintf(&b, "\n%s (%.1f KiB)", f, float64(md.Size)/1024)
			continue
		}
		fmt.Fprintf(&b, "\n%s", f)
	}

	return &skill.Response{
		Result: b.String(),
		Data:   map[string]any{"book_id": id, "formats": formats},
	}, nil
}

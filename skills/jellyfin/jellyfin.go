// =============================================================================
// 🎬 jellyfin — Jellyfin 媒体服务器封装技能（L1）
// =============================================================================
// 经注入客户端访问 Jellyfin REST API，X-Emby-Token 由客户端配置携带。
// 查询统一走 /Items 端点的参数组合，整形为可读的媒体清单。
// =============================================================================
package jellyfin

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/types"
)

// Name 技能在目录中的注册名。
const Name = "jellyfin"

const (
	defaultLimit = 10
	maxLimit     = 50
)

var allowedItemTypes = map[string]bool{
	"Movie": true, "Series": true, "Episode": true,
	"Audio": true, "MusicAlbum": true, "Book": true,
}

// Skill 实现 jellyfin 技能。
type Skill struct {
	logger *zap.Logger
}

// New 创建 jellyfin 技能。
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
	return skill.Info{
		Name:           Name,
		Description:    "Browse and refresh media on a Jellyfin server.",
		Tier:           skill.TierL1,
		RequiresClient: true,
		Actions: []skill.ActionSpec{
			{
				Name:    "search_items",
				Summary: "Search the library by title.",
				Params: []skill.ParamSpec{
					{Name: "query", Type: "string", Required: true},
					{Name: "item_type", Type: "string", Description: "Movie, Series, Episode, Audio, MusicAlbum, or Book."},
					{Name: "limit", Type: "int", Description: "1-50, default 10."},
				},
			},
			{
				Name:    "get_item",
				Summary: "Fetch one library item by ID.",
				Params: []skill.ParamSpec{
					{Name: "item_id", Type: "string", Required: true},
				},
				Cacheable: true,
				CacheTTL:  10 * time.Minute,
			},
			{
				Name:    "latest_media",
				Summary: "List the most recently added media.",
				Params: []skill.ParamSpec{
					{Name: "limit", Type: "int", Description: "1-50, default 10."},
				},
				Cacheable: true,
				CacheTTL:  time.Minute,
			},
			{
				Name:    "refresh_library",
				Summary: "Trigger a full library scan.",
			},
		},
	}
}

// Validate 实现 skill.Handler。
func (s *Skill) Validate(action string, p skill.Params) error {
	switch action {
	case "search_items":
		if it := p.OptionalString("item_type", ""); it != "" && !allowedItemTypes[it] {
			return types.NewError(types.ErrInvalidInput,
				`parameter "item_type" must be one of [Movie, Series, Episode, Audio, MusicAlbum, Book]`)
		}
		fallthrough
	case "latest_media":
		if n := p.OptionalInt("limit", defaultLimit); n < 1 || n > maxLimit {
			return types.NewError(types.ErrInvalidInput,
				fmt.Sprintf(`parameter "limit" must be between 1 and %d`, maxLimit))
		}
	}
	return nil
}

// Execute 实现 skill.Handler。
func (s *Skill) Execute(ctx context.Context, req *skill.Request) (*skill.Response, error) {
	switch req.Action {
	case "search_items":
		return s.searchItems(ctx, req.Client, req.Params)
	case "get_item":
		return s.getItem(ctx, req.Client, req.Params)
	case "latest_media":
		return s.latestMedia(ctx, req.Client, req.Params)
	case "refresh_library":
		return s.refreshLibrary(ctx, req.Client)
	default:
		return nil, types.NewError(types.ErrInvalidAction,
			fmt.Sprintf("unknown action %q for skill %q", req.Action, Name))
	}
}

// HealthCheck 实现 skill.HealthChecker。
func (s *Skill) HealthCheck(ctx context.Context, client skill.Client) error {
	return skill.GetJSON(ctx, client, "/System/Info/Public", nil)
}

// --- 响应形态 ---

type mediaItem struct {
	ID             string `json:"Id"`
	Name           string `json:"Name"`
	Type           string `json:"Type"`
	ProductionYear int    `json:"ProductionYear"`
	SeriesName     string `json:"SeriesName"`
	Overview       string `json:"Overview"`
	RunTimeTicks   int64  `json:"RunTimeTicks"`
	DateCreated    string `json:"DateCreated"`
}

type itemsResponse struct {
	Items            []mediaItem `json:"Items"`
	TotalRecordCount int         `json:"TotalRecordCount"`
}

func (m mediaItem) line() string {
	label := m.Name
	if m.SeriesName != "" {
		label = m.SeriesName + " — " + m.Name
	}
	if m.ProductionYear > 0 {
		label += fmt.Sprintf(" (%d)", m.ProductionYear)
	}
	return fmt.Sprintf("[%s] %s — %s", m.ID, label, m.Type)
}

func (s *Skill) searchItems(ctx context.Context, client skill.Client, p skill.Params) (*skill.Response, error) {
	query, err := p.RequireString("query")
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("searchTerm", query)
	q.Set("recursive", "true")
	q.Set("limit", strconv.Itoa(p.OptionalInt("limit", defaultLimit)))
	if it := p.OptionalString("item_type", ""); it != "" {
		q.Set("includeItemTypes", it)
	}

	var out itemsResponse
	if err := skill.GetJSON(ctx, client, "/Items?"+q.Encode(), &out); err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d item(s) for %q", len(out.Items), out.TotalRecordCount, query)
	ids := make([]string, 0, len(out.Items))
	for _, item := range out.Items {
		ids = append(ids, item.ID)
		b.WriteString("\n")
		b.WriteString(item.line())
	}

	return &skill.Response{
		Result: b.String(),
		Data:   map[string]any{"count": len(out.Items), "total": out.TotalRecordCount, "item_ids": ids},
	}, nil
}

func (s *Skill) getItem(ctx context.Context, client skill.Client, p skill.Params) (*skill.Response, error) {
	id, err := p.RequireString("item_id")
	if err != nil {
		return nil, err
	}

	var out itemsResponse
	if err := skill.GetJSON(ctx, client, "/Items?ids="+url.QueryEscape(id), &out); err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("item %s not found", id)).WithHTTPStatus(404)
	}

	item := out.Items[0]
	var b strings.Builder
	b.WriteString(item.line())
	if item.RunTimeTicks > 0 {
		fmt.Fprintf(&b, "\nruntime: %d min", item.RunTimeTicks/600_000_000)
	}
	if item.Overview != "" {
		fmt.Fprintf(&b, "\n%s", item.Overview)
	}

	return &skill.Response{
		Result: b.String(),
		Data: map[string]any{
			"item_id": item.ID,
			"name":    item.Name,
			"type":    item.Type,
			"year":    item.ProductionYear,
		},
	}, nil
}

func (s *Skill) latestMedia(ctx context.Context, client skill.Client, p skill.Params) (*skill.Response, error) {
	q := url.Values{}
	q.Set("sortBy", "DateCreated")
	q.Set("sortOrder", "Descending")
	q.Set("recursive", "true")
	q.Set("limit", strconv.Itoa(p.OptionalInt("limit", defaultLimit)))

	var out itemsResponse
	if err := skill.GetJSON(ctx, client, "/Items?"+q.Encode(), &out); err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d recently added item(s)", len(out.Items))
	for _, item := range out.Items {
		b.WriteString("\n")
		b.WriteString(item.line())
	}

	return &skill.Response{
		Result: b.String(),
		Data:   map[string]any{"count": len(out.Items)},
	}, nil
}

func (s *Skill) refreshLibrary(ctx context.Context, client skill.Client) (*skill.Response, error) {
	if err := skill.PostJSON(ctx, client, "/Library/Refresh", nil, nil); err != nil {
		return nil, err
	}

	return &skill.Response{
		Result: "library scan triggered",
		Data:   map[string]any{"triggered": true},
	}, nil
}

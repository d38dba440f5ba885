// =============================================================================
// 📥 transmission — Transmission RPC 封装技能（L1）
// =============================================================================
// Transmission 的 RPC 是单端点 POST 协议：所有方法都发往 /transmission/rpc，
// 并要求 X-Transmission-Session-Id 请求头。会话 ID 通过 409 握手获取并
// 缓存在内存，失效时刷新后重试一次。
// =============================================================================
package transmission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/types"
)

// Name 技能在目录中的注册名。
const Name = "transmission"

const (
	rpcPath       = "/transmission/rpc"
	sessionHeader = "X-Transmission-Session-Id"
	maxRPCBody    = 1 << 20
)

// torrentStatus 把 Transmission 的状态码译成可读文本。
var torrentStatus = map[int]string{
	0: "stopped",
	1: "queued-verify",
	2: "verifying",
	3: "queued-download",
	4: "downloading",
	5: "queued-seed",
	6: "seeding",
}

// Skill 实现 transmission 技能。
type Skill struct {
	logger *zap.Logger

	// 会话 ID 握手缓存。
	mu        sync.Mutex
	sessionID string
}

// New 创建 transmission 技能。
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
		Description:    "Manage torrents on a Transmission daemon over its RPC protocol.",
		Tier:           skill.TierL1,
		RequiresClient: true,
		Actions: []skill.ActionSpec{
			{
				Name:    "add_torrent",
				Summary: "Add a torrent by magnet link or URL.",
				Params: []skill.ParamSpec{
					{Name: "filename", Type: "string", Required: true, Description: "Magnet link or torrent URL."},
					{Name: "download_dir", Type: "string"},
					{Name: "paused", Type: "bool"},
				},
			},
			{
				Name:      "list_torrents",
				Summary:   "List torrents with status and progress.",
				Cacheable: true,
				CacheTTL:  15 * time.Second,
			},
			{
				Name:    "torrent_action",
				Summary: "Start, stop, or verify a torrent.",
				Params: []skill.ParamSpec{
					{Name: "id", Type: "int", Required: true},
					{Name: "op", Type: "string", Required: true, Enum: []string{"start", "stop", "verify"}},
				},
			},
			{
				Name:    "remove_torrent",
				Summary: "Remove a torrent, optionally deleting its data.",
				Params: []skill.ParamSpec{
					{Name: "id", Type: "int", Required: true},
					{Name: "delete_data", Type: "bool"},
				},
			},
			{
				Name:    "session_stats",
				Summary: "Fetch daemon-wide transfer statistics.",
			},
		},
	}
}

// Validate 实现 skill.Handler。必填与枚举检查由信封按规格完成。
func (s *Skill) Validate(action string, p skill.Params) error {
	switch action {
	case "add_torrent":
		filename := strings.TrimSpace(p.OptionalString("filename", ""))
		if filename != "" && !strings.HasPrefix(filename, "magnet:") &&
			!strings.HasPrefix(filename, "http://") && !strings.HasPrefix(filename, "https://") {
			return types.NewError(types.ErrInvalidInput,
				`parameter "filename" must be a magnet link or an http(s) URL`)
		}
	case "torrent_action", "remove_torrent":
		if id, ok := p.Int("id"); ok && id < 1 {
			return types.NewError(types.ErrInvalidInput, `parameter "id" must be positive`)
		}
	}
	return nil
}

// Execute 实现 skill.Handler。
func (s *Skill) Execute(ctx context.Context, req *skill.Request) (*skill.Response, error) {
	switch req.Action {
	case "add_torrent":
		return s.addTorrent(ctx, req.Client, req.Params)
	case "list_torrents":
		return s.listTorrents(ctx, req.Client)
	case "torrent_action":
		return s.torrentAction(ctx, req.Client, req.Params)
	case "remove_torrent":
		return s.removeTorrent(ctx, req.Client, req.Params)
	case "session_stats":
		return s.sessionStats(ctx, req.Client)
	default:
		return nil, types.NewError(types.ErrInvalidAction,
			fmt.Sprintf("unknown action %q for skill %q", req.Action, Name))
	}
}

// HealthCheck 实现 skill.HealthChecker。
func (s *Skill) HealthCheck(ctx context.Context, client skill.Client) error {
	return s.rpc(ctx, client, "session-get", nil, nil)
}

// --- RPC 传输 ---

type rpcEnvelope struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

// rpc 执行一次 Transmission RPC 调用。409 表示会话 ID 过期：从响应头
// 取新 ID 后重试一次，重试仍 409 则按上游错误上抛。
func (s *Skill) rpc(ctx context.Context, client skill.Client, method string, args map[string]any, out any) error {
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := s.post(ctx, client, method, args)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return err
			}
			return types.NewError(types.ErrUpstreamError, "transmission rpc failed").
				WithCause(err).
				WithRetryable(true)
		}

		if resp.StatusCode == http.StatusConflict {
			id := resp.Header.Get(sessionHeader)
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxRPCBody))
			resp.Body.Close()

			if id == "" || attempt == 1 {
				return types.NewError(types.ErrUpstreamError,
					"transmission session handshake failed").
					WithHTTPStatus(http.StatusConflict).
					WithRetryable(true)
			}
			s.mu.Lock()
			s.sessionID = id
			s.mu.Unlock()
			s.logger.Debug("refreshed transmission session id")
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxRPCBody))
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return skill.MapUpstreamStatus(resp.StatusCode, strings.TrimSpace(string(body)))
		}
		if readErr != nil {
			return types.NewError(types.ErrUpstreamError, "read transmission response").
				WithCause(readErr).
				WithRetryable(true)
		}

		var envelope rpcEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return types.NewError(types.ErrUpstreamError, "decode transmission response").WithCause(err)
		}
		if envelope.Result != "success" {
			return types.NewError(types.ErrUpstreamError,
				fmt.Sprintf("transmission rpc %s failed: %s", method, envelope.Result))
		}
		if out != nil && len(envelope.Arguments) > 0 {
			if err := json.Unmarshal(envelope.Arguments, out); err != nil {
				return types.NewError(types.ErrUpstreamError, "decode transmission arguments").WithCause(err)
			}
		}
		return nil
	}
	return types.NewError(types.ErrUpstreamError, "transmission rpc retries exhausted").WithRetryable(true)
}

func (s *Skill) post(ctx context.Context, client skill.Client, method string, args map[string]any) (*http.Response, error) {
	payload := map[string]any{"method": method}
	if len(args) > 0 {
		payload["arguments"] = args
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		client.BaseURL()+rpcPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	s.mu.Lock()
	if s.sessionID != "" {
		req.Header.Set(sessionHeader, s.sessionID)
	}
	s.mu.Unlock()

	return client.Do(ctx, req)
}

// --- 动作 ---

type torrentInfo struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Status       int     `json:"status"`
	PercentDone  float64 `json:"percentDone"`
	TotalSize    int64   `json:"totalSize"`
	RateDownload int64   `json:"rateDownload"`
	RateUpload   int64   `json:"rateUpload"`
	HashString   string  `json:"hashString"`
}

func (s *Skill) addTorrent(ctx context.Context, client skill.Client, p skill.Params) (*skill.Response, error) {
	filename, err := p.RequireString("filename")
	if err != nil {
		return nil, err
	}

	args := map[string]any{"filename": filename}
	if dir := p.OptionalString("download_dir", ""); dir != "" {
		args["download-dir"] = dir
	}
	if p.OptionalBool("paused", false) {
		args["paused"] = true
	}

	var out struct {
		Added     *torrentInfo `json:"torrent-added"`
		Duplicate *torrentInfo `json:"torrent-duplicate"`
	}
	if err := s.rpc(ctx, client, "torrent-add", args, &out); err != nil {
		return nil, err
	}

	switch {
	case out.Added != nil:
		return &skill.Response{
			Result: fmt.Sprintf("torrent %q added with id %d", out.Added.Name, out.Added.ID),
			Data:   map[string]any{"id": out.Added.ID, "hash": out.Added.HashString, "duplicate": false},
		}, nil
	case out.Duplicate != nil:
		return &skill.Response{
			Result: fmt.Sprintf("torrent %q already present with id %d", out.Duplicate.Name, out.Duplicate.ID),
			Data:   map[string]any{"id": out.Duplicate.ID, "hash": out.Duplicate.HashString, "duplicate": true},
		}, nil
	default:
		return nil, types.NewError(types.ErrUpstreamError, "transmission returned neither added nor duplicate torrent")
	}
}

func (s *Skill) listTorrents(ctx context.Context, client skill.Client) (*skill.Response, error) {
	args := map[string]any{
		"fields": []string{"id", "name", "status", "percentDone", "totalSize", "rateDownload", "rateUpload"},
	}
	var out struct {
		Torrents []torrentInfo `json:"torrents"`
	}
	if err := s.rpc(ctx, client, "torrent-get", args, &out); err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d torrent(s)", len(out.Torrents))
	for _, tr := range out.Torrents {
		fmt.Fprintf(&b, "\n[%d] %s — %s, %.1f%%, ↓%s/s ↑%s/s",
			tr.ID, tr.Name, statusText(tr.Status), tr.PercentDone*100,
			humanBytes(tr.RateDownload), humanBytes(tr.RateUpload))
	}

	return &skill.Response{
		Result: b.String(),
		Data:   map[string]any{"count": len(out.Torrents)},
	}, nil
}

func (s *Skill) torrentAction(ctx context.Context, client skill.Client, p skill.Params) (*skill.Response, error) {
	id, err := p.RequireInt("id")
	if err != nil {
		return nil, err
	}
	op, err := p.RequireOneOf("op", "start", "stop", "verify")
	if err != nil {
		return nil, err
	}

	if err := s.rpc(ctx, client, "torrent-"+op, map[string]any{"ids": []int{id}}, nil); err != nil {
		return nil, err
	}

	return &skill.Response{
		Result: fmt.Sprintf("torrent %d: %s requested", id, op),
		Data:   map[string]any{"id": id, "op": op},
	}, nil
}

func (s *Skill) removeTorrent(ctx context.Context, client skill.Client, p skill.Params) (*skill.Response, error) {
	id, err := p.RequireInt("id")
	if err != nil {
		return nil, err
	}
	deleteData := p.OptionalBool("delete_data", false)

	args := map[string]any{"ids": []int{id}, "delete-local-data": deleteData}
	if err := s.rpc(ctx, client, "torrent-remove", args, nil); err != nil {
		return nil, err
	}

	result := fmt.Sprintf("torrent %d removed", id)
	if deleteData {
		result += " along with its data"
	}
	return &skill.Response{
		Result: result,
		Data:   map[string]any{"id": id, "deleted_data": deleteData},
	}, nil
}

func (s *Skill) sessionStats(ctx context.Context, client skill.Client) (*skill.Response, error) {
	var out struct {
		ActiveTorrentCount int   `json:"activeTorrentCount"`
		PausedTorrentCount int   `json:"pausedTorrentCount"`
		TorrentCount       int   `json:"torrentCount"`
		DownloadSpeed      int64 `json:"downloadSpeed"`
		UploadSpeed        int64 `json:"uploadSpeed"`
	}
	if err := s.rpc(ctx, client, "session-stats", nil, &out); err != nil {
		return nil, err
	}

	return &skill.Response{
		Result: fmt.Sprintf("%d torrents (%d active, %d paused), ↓%s/s ↑%s/s",
			out.TorrentCount, out.ActiveTorrentCount, out.PausedTorrentCount,
			humanBytes(out.DownloadSpeed), humanBytes(out.UploadSpeed)),
		Data: map[string]any{
			"torrents":       out.TorrentCount,
			"active":         out.ActiveTorrentCount,
			"paused":         out.PausedTorrentCount,
			"download_speed": out.DownloadSpeed,
			"upload_speed":   out.UploadSpeed,
		},
	}, nil
}

// SessionID 返回当前缓存的会话 ID，测试用。
func (s *Skill) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func statusText(code int) string {
	if s, ok := torrentStatus[code]; ok {
		return s
	}
	return fmt.Sprintf("status-%d", code)
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

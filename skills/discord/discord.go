// =============================================================================
// 💬 discord — Discord REST 封装技能（L1）
// =============================================================================
// 经注入客户端访问 Discord REST API（v10）。客户端负责 Bot Token 注入，
// 技能本体只做路径拼装与响应整形。频道名到 ID 的解析结果缓存在内存，
// 同名频道重复调用不再列目录。
// =============================================================================
package discord

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/types"
)

// Name 技能在目录中的注册名。
const Name = "discord"

const (
	defaultMessageLimit = 20
	maxMessageLimit     = 100
)

// Skill 实现 discord 技能。
type Skill struct {
	logger *zap.Logger

	// 频道名 → 频道 ID 缓存，键为 "guildID/name"。
	mu       sync.RWMutex
	channels map[string]string
}

// New 创建 discord 技能。
func New(logger *zap.Logger) *Skill {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Skill{
		logger:   logger.With(zap.String("skill", Name)),
		channels: make(map[string]string),
	}
}

// Name 实现 skill.Handler。
func (s *Skill) Name() string { return Name }

// Info 实现 skill.Handler。
func (s *Skill) Info() skill.Info {
	channelParams := []skill.ParamSpec{
		{Name: "channel_id", Type: "string", Description: "Channel snowflake ID."},
		{Name: "channel", Type: "string", Description: "Channel name, resolved via guild_id."},
		{Name: "guild_id", Type: "string", Description: "Guild ID, required when channel is given by name."},
	}

	return skill.Info{
		Name:           Name,
		Description:    "Send messages, inspect channels, and open threads on Discord.",
		Tier:           skill.TierL1,
		RequiresClient: true,
		Actions: []skill.ActionSpec{
			{
				Name:    "send_message",
				Summary: "Post a message to a channel.",
				Params: append([]skill.ParamSpec{
					{Name: "content", Type: "string", Required: true},
				}, channelParams...),
			},
			{
				Name:      "get_channel",
				Summary:   "Fetch a channel's metadata.",
				Params:    channelParams,
				Cacheable: true,
				CacheTTL:  5 * time.Minute,
			},
			{
				Name:    "list_messages",
				Summary: "List the most recent messages of a channel.",
				Params: append([]skill.ParamSpec{
					{Name: "limit", Type: "int", Description: "1-100, default 20."},
				}, channelParams...),
			},
			{
				Name:    "create_thread",
				Summary: "Start a thread in a channel.",
				Params: append([]skill.ParamSpec{
					{Name: "name", Type: "string", Required: true},
					{Name: "auto_archive_minutes", Type: "int", Description: "One of 60, 1440, 4320, 10080."},
				}, channelParams...),
			},
		},
	}
}

// Validate 实现 skill.Handler。
func (s *Skill) Validate(action string, p skill.Params) error {
	if err := validateChannelRef(p); err != nil {
		return err
	}

	switch action {
	case "list_messages":
		if n := p.OptionalInt("limit", defaultMessageLimit); n < 1 || n > maxMessageLimit {
			return types.NewError(types.ErrInvalidInput,
				fmt.Sprintf(`parameter "limit" must be between 1 and %d`, maxMessageLimit))
		}
	case "create_thread":
		switch n := p.OptionalInt("auto_archive_minutes", 1440); n {
		case 60, 1440, 4320, 10080:
		default:
			return types.NewError(types.ErrInvalidInput,
				`parameter "auto_archive_minutes" must be one of [60, 1440, 4320, 10080]`)
		}
	}
	return nil
}

// validateChannelRef 要求 channel_id 与 channel 至少给一个；
// 按名引用时必须带 guild_id。
func validateChannelRef(p skill.Params) error {
	id := strings.TrimSpace(p.OptionalString("channel_id", ""))
	name := strings.TrimSpace(p.OptionalString("channel", ""))
	if id == "" && name == "" {
		return types.NewError(types.ErrInvalidInput,
			`either "channel_id" or "channel" must be given`)
	}
	if id == "" && strings.TrimSpace(p.OptionalString("guild_id", "")) == "" {
		return types.NewError(types.ErrInvalidInput,
			`parameter "guild_id" is required when the channel is given by name`)
	}
	return nil
}

// Execute 实现 skill.Handler。
func (s *Skill) Execute(ctx context.Context, req *skill.Request) (*skill.Response, error) {
	channelID, err := s.resolveChannelID(ctx, req.Client, req.Params)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case "send_message":
		return s.sendMessage(ctx, req.Client, channelID, req.Params)
	case "get_channel":
		return s.getChannel(ctx, req.Client, channelID)
	case "list_messages":
		return s.listMessages(ctx, req.Client, channelID, req.Params)
	case "create_thread":
		return s.createThread(ctx, req.Client, channelID, req.Params)
	default:
		return nil, types.NewError(types.ErrInvalidAction,
			fmt.Sprintf("unknown action %q for skill %q", req.Action, Name))
	}
}

// HealthCheck 实现 skill.HealthChecker。
func (s *Skill) HealthCheck(ctx context.Context, client skill.Client) error {
	return skill.GetJSON(ctx, client, "/users/@me", nil)
}

// --- Discord 响应形态 ---

type channelObj struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    int    `json:"type"`
	Topic   string `json:"topic"`
	GuildID string `json:"guild_id"`
}

type messageObj struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Author    struct {
		Username string `json:"username"`
	} `json:"author"`
}

// resolveChannelID 把参数里的频道引用解析为 ID。按名解析先查缓存，
// 未命中时列出 guild 频道并整批回填。
func (s *Skill) resolveChannelID(ctx context.Context, client skill.Client, p skill.Params) (string, error) {
	if id := strings.TrimSpace(p.OptionalString("channel_id", "")); id != "" {
		return id, nil
	}

	name := strings.TrimSpace(p.OptionalString("channel", ""))
	guildID := strings.TrimSpace(p.OptionalString("guild_id", ""))
	key := guildID + "/" + name

	s.mu.RLock()
	id, hit := s.channels[key]
	s.mu.RUnlock()
	if hit {
		return id, nil
	}

	var listed []channelObj
	if err := skill.GetJSON(ctx, client, "/guilds/"+url.PathEscape(guildID)+"/channels", &listed); err != nil {
		return "", err
	}

	s.mu.Lock()
	for _, ch := range listed {
		if ch.Name != "" {
			s.channels[guildID+"/"+ch.Name] = ch.ID
		}
	}
	id, hit = s.channels[key]
	s.mu.Unlock()

	if !hit {
		return "", types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("channel %q not found in guild %s", name, guildID)).
			WithHTTPStatus(404)
	}
	s.logger.Debug("resolved channel name", zap.String("channel", name), zap.String("id", id))
	return id, nil
}

func (s *Skill) sendMessage(ctx context.Context, client skill.Client, channelID string, p skill.Params) (*skill.Response, error) {
	content, err := p.RequireString("content")
	if err != nil {
		return nil, err
	}

	var msg messageObj
	err = skill.PostJSON(ctx, client, "/channels/"+url.PathEscape(channelID)+"/messages",
		map[string]any{"content": content}, &msg)
	if err != nil {
		return nil, err
	}

	return &skill.Response{
		Result: fmt.Sprintf("message %s sent to channel %s", msg.ID, channelID),
		Data:   map[string]any{"message_id": msg.ID, "channel_id": channelID},
	}, nil
}

func (s *Skill) getChannel(ctx context.Context, client skill.Client, channelID string) (*skill.Response, error) {
	var ch channelObj
	if err := skill.GetJSON(ctx, client, "/channels/"+url.PathEscape(channelID), &ch); err != nil {
		return nil, err
	}

	result := fmt.Sprintf("channel #%s (id %s, type %d)", ch.Name, ch.ID, ch.Type)
	if ch.Topic != "" {
		result += "\ntopic: " + ch.Topic
	}

	return &skill.Response{
		Result: result,
		Data: map[string]any{
			"channel_id": ch.ID,
			"name":       ch.Name,
			"type":       ch.Type,
			"guild_id":   ch.GuildID,
		},
	}, nil
}

func (s *Skill) listMessages(ctx context.Context, client skill.Client, channelID string, p skill.Params) (*skill.Response, error) {
	limit := p.OptionalInt("limit", defaultMessageLimit)

	var msgs []messageObj
	path := fmt.Sprintf("/channels/%s/messages?limit=%d", url.PathEscape(channelID), limit)
	if err := skill.GetJSON(ctx, client, path, &msgs); err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d message(s) in channel %s", len(msgs), channelID)
	for _, m := range msgs {
		fmt.Fprintf(&b, "\n[%s] %s: %s", m.Timestamp, m.Author.Username, m.Content)
	}

	return &skill.Response{
		Result: b.String(),
		Data:   map[string]any{"count": len(msgs), "channel_id": channelID},
	}, nil
}

func (s *Skill) createThread(ctx context.Context, client skill.Client, channelID string, p skill.Params) (*skill.Response, error) {
	name, err := p.RequireString("name")
	if err != nil {
		return nil, err
	}

	var thread channelObj
	err = skill.PostJSON(ctx, client, "/channels/"+url.PathEscape(channelID)+"/threads",
		map[string]any{
			"name":                  name,
			"auto_archive_duration": p.OptionalInt("auto_archive_minutes", 1440),
		}, &thread)
	if err != nil {
		return nil, err
	}

	return &skill.Response{
		Result: fmt.Sprintf("thread %q created with id %s", thread.Name, thread.ID),
		Data:   map[string]any{"thread_id": thread.ID, "parent_id": channelID},
	}, nil
}

// CachedChannels 返回已缓存的频道名数量，测试与诊断用。
func (s *Skill) CachedChannels() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels)
}

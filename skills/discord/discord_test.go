package discord

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/testutil"
	"github.com/BaSui01/skillflow/types"
)

func TestSkill_Info(t *testing.T) {
	t.Parallel()

	s := New(nil)
	assert.Equal(t, "discord", s.Name())

	info := s.Info()
	assert.Equal(t, skill.TierL1, info.Tier)
	assert.True(t, info.RequiresClient)
	assert.Equal(t,
		[]string{"create_thread", "get_channel", "list_messages", "send_message"},
		info.ActionNames())
}

func TestSkill_ValidateChannelRef(t *testing.T) {
	t.Parallel()

	s := New(nil)

	tests := []struct {
		name    string
		params  skill.Params
		wantErr bool
	}{
		{"by id", skill.Params{"channel_id": "123"}, false},
		{"by name with guild", skill.Params{"channel": "general", "guild_id": "g1"}, false},
		{"neither", skill.Params{}, true},
		{"name without guild", skill.Params{"channel": "general"}, true},
		{"blank id falls back to name rule", skill.Params{"channel_id": " ", "channel": "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := s.Validate("get_channel", tt.params)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSkill_ValidateLimits(t *testing.T) {
	t.Parallel()

	s := New(nil)

	err := s.Validate("list_messages", skill.Params{"channel_id": "1", "limit": float64(500)})
	require.Error(t, err)

	err = s.Validate("create_thread", skill.Params{"channel_id": "1", "auto_archive_minutes": float64(90)})
	require.Error(t, err)

	require.NoError(t, s.Validate("create_thread", skill.Params{"channel_id": "1", "auto_archive_minutes": float64(60)}))
}

func TestSkill_SendMessage(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeClient().
		StubJSON("POST", "/channels/123/messages", 200, `{"id":"m1","channel_id":"123"}`)

	s := New(testutil.NewTestLogger(t))
	resp, err := s.Execute(context.Background(), &skill.Request{
		Action: "send_message",
		Params: skill.Params{"channel_id": "123", "content": "hello"},
		Client: fake,
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Result, "message m1 sent")
	assert.Equal(t, "m1", resp.Data["message_id"])

	call := fake.LastCall(t)
	assert.Equal(t, "POST", call.Method)
	assert.Contains(t, call.Body, `"content":"hello"`)
}

func TestSkill_ChannelNameResolutionCached(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeClient().
		StubJSON("GET", "/guilds/g1/channels", 200,
			`[{"id":"111","name":"general"},{"id":"222","name":"dev"}]`).
		StubJSON("POST", "/channels/111/messages", 200, `{"id":"m1"}`).
		StubJSON("POST", "/channels/222/messages", 200, `{"id":"m2"}`)

	s := New(nil)
	params := skill.Params{"channel": "general", "guild_id": "g1", "content": "hi"}

	_, err := s.Execute(context.Background(), &skill.Request{Action: "send_message", Params: params, Client: fake})
	require.NoError(t, err)
	assert.Equal(t, 2, s.CachedChannels(), "listing backfills every named channel")
	assert.Equal(t, 2, fake.CallCount())

	// 第二次按名调用与兄弟频道调用都不再列目录
	_, err = s.Execute(context.Background(), &skill.Request{Action: "send_message", Params: params, Client: fake})
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), &skill.Request{
		Action: "send_message",
		Params: skill.Params{"channel": "dev", "guild_id": "g1", "content": "yo"},
		Client: fake,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, fake.CallCount(), "no further guild listings")
}

func TestSkill_ChannelNameNotFound(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeClient().
		StubJSON("GET", "/guilds/g1/channels", 200, `[{"id":"111","name":"general"}]`)

	s := New(nil)
	_, err := s.Execute(context.Background(), &skill.Request{
		Action: "send_message",
		Params: skill.Params{"channel": "ghost", "guild_id": "g1", "content": "hi"},
		Client: fake,
	})
	require.Error(t, err)

	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrUpstreamError, e.Code)
	assert.False(t, e.Retryable)
	assert.Contains(t, e.Message, `"ghost"`)
}

func TestSkill_GetChannel(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeClient().
		StubJSON("GET", "/channels/123", 200,
			`{"id":"123","name":"general","type":0,"topic":"daily chatter","guild_id":"g1"}`)

	s := New(nil)
	resp, err := s.Execute(context.Background(), &skill.Request{
		Action: "get_channel",
		Params: skill.Params{"channel_id": "123"},
		Client: fake,
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Result, "#general")
	assert.Contains(t, resp.Result, "daily chatter")
	assert.Equal(t, "g1", resp.Data["guild_id"])
}

func TestSkill_ListMessages(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeClient().
		StubJSON("GET", "/channels/123/messages", 200,
			`[{"id":"m2","content":"later","timestamp":"t2","author":{"username":"ada"}},
			  {"id":"m1","content":"first","timestamp":"t1","author":{"username":"bob"}}]`)

	s := New(nil)
	resp, err := s.Execute(context.Background(), &skill.Request{
		Action: "list_messages",
		Params: skill.Params{"channel_id": "123", "limit": float64(2)},
		Client: fake,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Data["count"])
	assert.Contains(t, resp.Result, "ada: later")

	call := fake.LastCall(t)
	assert.Equal(t, "limit=2", call.Query)
}

func TestSkill_UpstreamErrorMapped(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeClient().
		StubJSON("POST", "/channels/123/messages", 403, `{"message":"Missing Permissions"}`)

	s := New(nil)
	_, err := s.Execute(context.Background(), &skill.Request{
		Action: "send_message",
		Params: skill.Params{"channel_id": "123", "content": "hi"},
		Client: fake,
	})
	require.Error(t, err)

	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrUpstreamError, e.Code)
	assert.Equal(t, 403, e.HTTPStatus)
	assert.False(t, e.Retryable)
}

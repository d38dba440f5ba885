// =============================================================================
// 🌍 deepl — DeepL 翻译封装技能（L1）
// =============================================================================
// DeepL v2 API 是表单编码接口，Auth-Key 由注入客户端以
// "Authorization: DeepL-Auth-Key …" 形式携带。目标语言统一转大写，
// 与 DeepL 的语言码约定一致。
// =============================================================================
package deepl

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/types"
)

// Name 技能在目录中的注册名。
const Name = "deepl"

const maxTextLength = 30_000

// Skill 实现 deepl 技能。
type Skill struct {
	logger *zap.Logger
}

// New 创建 deepl 技能。
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
		Description:    "Translate text and inspect quota via the DeepL v2 API.",
		Tier:           skill.TierL1,
		RequiresClient: true,
		Actions: []skill.ActionSpec{
			{
				Name:    "translate",
				Summary: "Translate a text into a target language.",
				Params: []skill.ParamSpec{
					{Name: "text", Type: "string", Required: true},
					{Name: "target_lang", Type: "string", Required: true, Description: "e.g. EN, DE, ZH; case-insensitive."},
					{Name: "source_lang", Type: "string", Description: "Auto-detected when omitted."},
					{Name: "formality", Type: "string", Enum: []string{"default", "more", "less"}},
				},
			},
			{
				Name:    "usage",
				Summary: "Show character quota consumption.",
			},
			{
				Name:      "source_languages",
				Summary:   "List supported source languages.",
				Cacheable: true,
				CacheTTL:  24 * time.Hour,
			},
			{
				Name:      "target_languages",
				Summary:   "List supported target languages.",
				Cacheable: true,
				CacheTTL:  24 * time.Hour,
			},
		},
	}
}

// Validate 实现 skill.Handler。
func (s *Skill) Validate(action string, p skill.Params) error {
	if action != "translate" {
		return nil
	}
	if text, ok := p.String("text"); ok && len(text) > maxTextLength {
		return types.NewError(types.ErrInvalidInput,
			fmt.Sprintf(`parameter "text" exceeds %d characters`, maxTextLength))
	}
	if lang := p.OptionalString("target_lang", ""); lang != "" && len(strings.TrimSpace(lang)) > 5 {
		return types.NewError(types.ErrInvalidInput, `parameter "target_lang" is not a valid language code`)
	}
	return nil
}

// Execute 实现 skill.Handler。
func (s *Skill) Execute(ctx context.Context, req *skill.Request) (*skill.Response, error) {
	switch req.Action {
	case "translate":
		return s.translate(ctx, req.Client, req.Params)
	case "usage":
		return s.usage(ctx, req.Client)
	case "source_languages":
		return s.languages(ctx, req.Client, "source")
	case "target_languages":
		return s.languages(ctx, req.Client, "target")
	default:
		return nil, types.NewError(types.ErrInvalidAction,
			fmt.Sprintf("unknown action %q for skill %q", req.Action, Name))
	}
}

// HealthCheck 实现 skill.HealthChecker。
func (s *Skill) HealthCheck(ctx context.Context, client skill.Client) error {
	return skill.GetJSON(ctx, client, "/v2/usage", nil)
}

func (s *Skill) translate(ctx context.Context, client skill.Client, p skill.Params) (*skill.Response, error) {
	text, err := p.RequireString("text")
	if err != nil {
		return nil, err
	}
	targetLang, err := p.RequireString("target_lang")
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", strings.ToUpper(strings.TrimSpace(targetLang)))
	if src := p.OptionalString("source_lang", ""); src != "" {
		form.Set("source_lang", strings.ToUpper(strings.TrimSpace(src)))
	}
	if formality := p.OptionalString("formality", ""); formality != "" && formality != "default" {
		form.Set("formality", formality)
	}

	var out struct {
		Translations []struct {
			DetectedSourceLanguage string `json:"detected_source_language"`
			Text                   string `json:"text"`
		} `json:"translations"`
	}
	if err := skill.PostForm(ctx, client, "/v2/translate", form, &out); err != nil {
		return nil, err
	}
	if len(out.Translations) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "deepl returned no translations")
	}

	tr := out.Translations[0]
	return &skill.Response{
		Result: tr.Text,
		Data: map[string]any{
			"detected_source_language": tr.DetectedSourceLanguage,
			"target_lang":              form.Get("target_lang"),
		},
	}, nil
}

func (s *Skill) usage(ctx context.Context, client skill.Client) (*skill.Response, error) {
	var out struct {
		CharacterCount int64 `json:"character_count"`
		CharacterLimit int64 `json:"character_limit"`
	}
	if err := skill.GetJSON(ctx, client, "/v2/usage", &out); err != nil {
		return nil, err
	}

	pct := 0.0
	if out.CharacterLimit > 0 {
		pct = float64(out.CharacterCount) / float64(out.CharacterLimit) * 100
	}

	return &skill.Response{
		Result: fmt.Sprintf("%d of %d characters used (%.1f%%)",
			out.CharacterCount, out.CharacterLimit, pct),
		Data: map[string]any{
			"character_count": out.CharacterCount,
			"character_limit": out.CharacterLimit,
		},
	}, nil
}

func (s *Skill) languages(ctx context.Context, client skill.Client, kind string) (*skill.Response, error) {
	var out []struct {
		Language string `json:"language"`
		Name     string `json:"name"`
	}
	if err := skill.GetJSON(ctx, client, "/v2/languages?type="+kind, &out); err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(out))
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s language(s)", len(out), kind)
	for _, l := range out {
		codes = append(codes, l.Language)
		fmt.Fprintf(&b, "\n%s — %s", l.Language, l.Name)
	}

	return &skill.Response{
		Result: b.String(),
		Data:   map[string]any{"count": len(out), "codes": codes},
	}, nil
}

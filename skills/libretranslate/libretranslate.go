// =============================================================================
// 🗺️ libretranslate — LibreTranslate 封装技能（L1）
// =============================================================================
// LibreTranslate 是 JSON 接口；自托管实例通常无鉴权，公共实例的
// api_key 由注入客户端携带，技能本体不接触密钥。
// =============================================================================
package libretranslate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/types"
)

// Name 技能在目录中的注册名。
const Name = "libretranslate"

// Skill 实现 libretranslate 技能。
type Skill struct {
	logger *zap.Logger
}

// New 创建 libretranslate 技能。
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
		Description:    "Translate and detect languages on a LibreTranslate instance.",
		Tier:           skill.TierL1,
		RequiresClient: true,
		Actions: []skill.ActionSpec{
			{
				Name:    "translate",
				Summary: "Translate a text between two languages.",
				Params: []skill.ParamSpec{
					{Name: "text", Type: "string", Required: true},
					{Name: "target", Type: "string", Required: true, Description: "Target language code, e.g. de."},
					{Name: "source", Type: "string", Description: `Source language code; "auto" when omitted.`},
				},
			},
			{
				Name:    "detect",
				Summary: "Detect the language of a text.",
				Params: []skill.ParamSpec{
					{Name: "text", Type: "string", Required: true},
				},
			},
			{
				Name:      "languages",
				Summary:   "List the languages the instance supports.",
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
	for _, key := range []string{"target", "source"} {
		if code := strings.TrimSpace(p.OptionalString(key, "")); code != "" && len(code) > 7 {
			return types.NewError(types.ErrInvalidInput,
				fmt.Sprintf("parameter %q is not a valid language code", key))
		}
	}
	return nil
}

// Execute 实现 skill.Handler。
func (s *Skill) Execute(ctx context.Context, req *skill.Request) (*skill.Response, error) {
	switch req.Action {
	case "translate":
		return s.translate(ctx, req.Client, req.Params)
	case "detect":
		return s.detect(ctx, req.Client, req.Params)
	case "languages":
		return s.languages(ctx, req.Client)
	default:
		return nil, types.NewError(types.ErrInvalidAction,
			fmt.Sprintf("unknown action %q for skill %q", req.Action, Name))
	}
}

// HealthCheck 实现 skill.HealthChecker。
func (s *Skill) HealthCheck(ctx context.Context, client skill.Client) error {
	return skill.GetJSON(ctx, client, "/languages", nil)
}

func (s *Skill) translate(ctx context.Context, client skill.Client, p skill.Params) (*skill.Response, error) {
	text, err := p.RequireString("text")
	if err != nil {
		return nil, err
	}
	target, err := p.RequireString("target")
	if err != nil {
		return nil, err
	}
	source := p.OptionalString("source", "auto")

	body := map[string]any{
		"q":      text,
		"source": strings.ToLower(source),
		"target": strings.ToLower(target),
		"format": "text",
	}

	var out struct {
		TranslatedText   string `json:"translatedText"`
		DetectedLanguage *struct {
			Confidence float64 `json:"confidence"`
			Language   string  `json:"language"`
		} `json:"detectedLanguage"`
	}
	if err := skill.PostJSON(ctx, client, "/translate", body, &out); err != nil {
		return nil, err
	}

	data := map[string]any{"target": strings.ToLower(target)}
	if out.DetectedLanguage != nil {
		data["detected_language"] = out.DetectedLanguage.Language
		data["confidence"] = out.DetectedLanguage.Confidence
	}

	return &skill.Response{Result: out.TranslatedText, Data: data}, nil
}

func (s *Skill) detect(ctx context.Context, client skill.Client, p skill.Params) (*skill.Response, error) {
	text, err := p.RequireString("text")
	if err != nil {
		return nil, err
	}

	var out []struct {
		Confidence float64 `json:"confidence"`
		Language   string  `json:"language"`
	}
	if err := skill.PostJSON(ctx, client, "/detect", map[string]any{"q": text}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "libretranslate returned no detections")
	}

	best := out[0]
	return &skill.Response{
		Result: fmt.Sprintf("detected %s (%.0f%% confidence)", best.Language, best.Confidence),
		Data:   map[string]any{"language": best.Language, "confidence": best.Confidence},
	}, nil
}

func (s *Skill) languages(ctx context.Context, client skill.Client) (*skill.Response, error) {
	var out []struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if err := skill.GetJSON(ctx, client, "/languages", &out); err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(out))
	var b strings.Builder
	fmt.Fprintf(&b, "%d language(s)", len(out))
	for _, l := range out {
		codes = append(codes, l.Code)
		fmt.Fprintf(&b, "\n%s — %s", l.Code, l.Name)
	}

	return &skill.Response{
		Result: b.String(),
		Data:   map[string]any{"count": len(out), "codes": codes},
	}, nil
}

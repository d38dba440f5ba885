// =============================================================================
// 📝 textkit — 本地文本工具技能（L0）
// =============================================================================
// 纯本地计算，不触网、不需要客户端：文本统计、slug 化、URL 提取与摘要
// 校验。是目录里唯一的 L0 技能，也是信封无客户端路径的基准实现。
// =============================================================================
package textkit

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/types"
)

// Name 技能在目录中的注册名。
const Name = "textkit"

var (
	reURL       = regexp.MustCompile(`https?://[^\s<>"']+`)
	reNonSlug   = regexp.MustCompile(`[^a-z0-9]+`)
	reMultiDash = regexp.MustCompile(`-{2,}`)
)

// Skill 实现 textkit 技能。
type Skill struct {
	logger *zap.Logger
}

// New 创建 textkit 技能。
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
		Name:        Name,
		Description: "Local text utilities: statistics, slugs, URL extraction, checksums.",
		Tier:        skill.TierL0,
		Actions: []skill.ActionSpec{
			{
				Name:    "stats",
				Summary: "Count characters, words, lines, and sentences in a text.",
				Params: []skill.ParamSpec{
					{Name: "text", Type: "string", Required: true},
				},
			},
			{
				Name:    "slugify",
				Summary: "Turn a text into a URL-safe slug.",
				Params: []skill.ParamSpec{
					{Name: "text", Type: "string", Required: true},
					{Name: "max_length", Type: "int", Description: "Maximum slug length, default 80."},
				},
			},
			{
				Name:    "extract_urls",
				Summary: "Extract all http(s) URLs from a text.",
				Params: []skill.ParamSpec{
					{Name: "text", Type: "string", Required: true},
					{Name: "unique", Type: "bool", Description: "Deduplicate results, default true."},
				},
			},
			{
				Name:    "checksum",
				Summary: "Compute a checksum of a text.",
				Params: []skill.ParamSpec{
					{Name: "text", Type: "string", Required: true},
					{Name: "algorithm", Type: "string", Enum: []string{"md5", "sha1", "sha256"}},
				},
			},
		},
	}
}

// Validate 实现 skill.Handler。必填项由信封按规格先行检查，
// 这里只做动作特有的约束。
func (s *Skill) Validate(action string, p skill.Params) error {
	switch action {
	case "slugify":
		if n := p.OptionalInt("max_length", 80); n < 1 {
			return types.NewError(types.ErrInvalidInput, `parameter "max_length" must be positive`)
		}
	case "checksum":
		if alg := p.OptionalString("algorithm", "sha256"); alg != "md5" && alg != "sha1" && alg != "sha256" {
			return types.NewError(types.ErrInvalidInput,
				`parameter "algorithm" must be one of [md5, sha1, sha256]`)
		}
	}
	return nil
}

// Execute 实现 skill.Handler。
func (s *Skill) Execute(_ context.Context, req *skill.Request) (*skill.Response, error) {
	text, err := req.Params.RequireString("text")
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case "stats":
		return s.stats(text), nil
	case "slugify":
		return s.slugify(text, req.Params.OptionalInt("max_length", 80)), nil
	case "extract_urls":
		return s.extractURLs(text, req.Params.OptionalBool("unique", true)), nil
	case "checksum":
		return s.checksum(text, req.Params.OptionalString("algorithm", "sha256"))
	default:
		return nil, types.NewError(types.ErrInvalidAction,
			fmt.Sprintf("unknown action %q for skill %q", req.Action, Name))
	}
}

func (s *Skill) stats(text string) *skill.Response {
	chars := len([]rune(text))
	words := len(strings.Fields(text))
	lines := strings.Count(text, "\n") + 1
	if strings.TrimSpace(text) == "" {
		lines = 0
	}

	sentences := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '。' || r == '！' || r == '？' {
			sentences++
		}
	}

	return &skill.Response{
		Result: fmt.Sprintf("%d characters, %d words, %d lines, %d sentences",
			chars, words, lines, sentences),
		Data: map[string]any{
			"characters": chars,
			"words":      words,
			"lines":      lines,
			"sentences":  sentences,
		},
	}
}

func (s *Skill) slugify(text string, maxLen int) *skill.Response {
	slug := strings.ToLower(strings.TrimSpace(text))
	slug = stripDiacritics(slug)
	slug = reNonSlug.ReplaceAllString(slug, "-")
	slug = reMultiDash.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxLen {
		slug = strings.Trim(slug[:maxLen], "-")
	}

	return &skill.Response{
		Result: slug,
		Data:   map[string]any{"length": len(slug)},
	}
}

func (s *Skill) extractURLs(text string, unique bool) *skill.Response {
	found := reURL.FindAllString(text, -1)
	urls := make([]string, 0, len(found))
	seen := make(map[string]struct{}, len(found))
	for _, u := range found {
		u = strings.TrimRight(u, ".,;:)]}>")
		if unique {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
		}
		urls = append(urls, u)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "found %d url(s)", len(urls))
	for _, u := range urls {
		b.WriteString("\n")
		b.WriteString(u)
	}

	return &skill.Response{
		Result: b.String(),
		Data:   map[string]any{"count": len(urls), "urls": urls},
	}
}

func (s *Skill) checksum(text, algorithm string) (*skill.Response, error) {
	var sum string
	switch algorithm {
	case "md5":
		sum = fmt.Sprintf("%x", md5.Sum([]byte(text)))
	case "sha1":
		sum = fmt.Sprintf("%x", sha1.Sum([]byte(text)))
	case "sha256":
		sum = fmt.Sprintf("%x", sha256.Sum256([]byte(text)))
	default:
		return nil, types.NewError(types.ErrInvalidInput,
			fmt.Sprintf("unsupported checksum algorithm %q", algorithm))
	}

	return &skill.Response{
		Result: fmt.Sprintf("%s: %s", algorithm, sum),
		Data:   map[string]any{"algorithm": algorithm, "checksum": sum},
	}, nil
}

// stripDiacritics 做一个轻量的变音符折叠，覆盖常见拉丁扩展字符；
// 其余非 ASCII 字符交由 slug 规则替换为连字符。
func stripDiacritics(s string) string {
	replacer := strings.NewReplacer(
		"ä", "a", "ö", "o", "ü", "u", "ß", "ss",
		"é", "e", "è", "e", "ê", "e", "ë", "e",
		"á", "a", "à", "a", "â", "a", "ã", "a", "å", "a",
		"í", "i", "ì", "i", "î", "i", "ï", "i",
		"ó", "o", "ò", "o", "ô", "o", "õ", "o",
		"ú", "u", "ù", "u", "û", "u",
		"ç", "c", "ñ", "n",
	)
	out := replacer.Replace(s)
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return ' '
		}
		return r
	}, out)
}

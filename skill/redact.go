// =============================================================================
// 🔒 敏感信息脱敏
// =============================================================================
// 所有离开调用信封的文本（结果载荷、错误消息、审计参数）都必须先经过
// 脱敏器。规则按顺序应用：先处理 Authorization 整行与 Bearer 凭据，
// 再处理 JSON 字段与 key=value 形式，避免前一条规则截断后泄漏残值。
// =============================================================================
package skill

import "regexp"

// Redacted 是所有敏感值的统一替换文本。
const Redacted = "[REDACTED]"

// 规则顺序有意义：authLine 必须先于 kvPair，否则 "Authorization: Bearer x"
// 会被 kvPair 只替换掉 "Bearer" 而留下凭据本体。
var (
	reAuthLine = regexp.MustCompile(`(?i)\b(authorization\s*[:=]\s*)([^\r\n&"']+)`)
	reBearer   = regexp.MustCompile(`(?i)\b(bearer\s+)([A-Za-z0-9\-._~+/=]+)`)
	reQuoted   = regexp.MustCompile(`(?i)("(?:api[_-]?key|access[_-]?token|refresh[_-]?token|token|secret|password|passwd|authorization)"\s*:\s*")([^"]*)(")`)
	reKVPair   = regexp.MustCompile(`(?i)\b((?:api[_-]?key|access[_-]?token|refresh[_-]?token|token|secret|password|passwd)\s*[:=]\s*)([^\s&"',;]+)`)

	reSensitiveKey = regexp.MustCompile(`(?i)^(api[_-]?key|access[_-]?token|refresh[_-]?token|token|secret|password|passwd|authorization|bearer)$`)
)

// Redactor 对文本与参数做敏感信息脱敏。零值不可用，使用 NewRedactor。
type Redactor struct {
	rules []*regexp.Regexp
}

// NewRedactor 创建使用默认规则集的脱敏器。
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []*regexp.Regexp{reAuthLine, reBearer, reQuoted, reKVPair},
	}
}

// Redact 返回 s 的脱敏副本，所有命中规则的值替换为 [REDACTED]。
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	out := reAuthLine.ReplaceAllString(s, "${1}"+Redacted)
	out = reBearer.ReplaceAllString(out, "${1}"+Redacted)
	out = reQuoted.ReplaceAllString(out, "${1}"+Redacted+"${3}")
	out = reKVPair.ReplaceAllString(out, "${1}"+Redacted)
	return out
}

// RedactError 对错误消息脱敏，nil 安全。
func (r *Redactor) RedactError(err error) string {
	if err == nil {
		return ""
	}
	return r.Redact(err.Error())
}

// RedactParams 返回参数的脱敏副本：敏感键的值整体替换，
// 其余字符串值按文本规则脱敏，嵌套 map 与 slice 递归处理。
// 用于审计落盘，原 map 不被修改。
func (r *Redactor) RedactParams(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		if reSensitiveKey.MatchString(k) {
			out[k] = Redacted
			continue
		}
		out[k] = r.redactValue(v)
	}
	return out
}

func (r *Redactor) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return r.Redact(val)
	case map[string]any:
		return r.RedactParams(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.redactValue(item)
		}
		return out
	default:
		return v
	}
}

// =============================================================================
// 🧠 平台分析适配器（L2 技能专用）
// =============================================================================
// L2 技能不直接访问任何 LLM：它们把整理好的素材交给平台注入的
// AnalysisAdapter，由宿主平台决定模型与路由。素材在提交前按 token
// 预算裁剪，避免把超长网页原文整段推给适配器。
// =============================================================================
package skill

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/BaSui01/skillflow/types"
)

// DefaultAnalysisBudget 是分析素材的默认 token 预算。
const DefaultAnalysisBudget = 6000

// AnalysisRequest 描述一次 LLM 辅助分析。
type AnalysisRequest struct {
	// Task 任务说明，如 "summarize the SEO findings below"
	Task string
	// Input 素材正文，提交前会按 Budget 裁剪
	Input string
	// Budget token 预算，<=0 时使用 DefaultAnalysisBudget
	Budget int
}

// AnalysisAdapter 由宿主平台实现并注入。
type AnalysisAdapter interface {
	Analyze(ctx context.Context, req AnalysisRequest) (string, error)
}

// NopAdapter 是未配置适配器时的占位实现，所有调用返回
// PROVIDER_NOT_CONFIGURED。
type NopAdapter struct{}

// Analyze 实现 AnalysisAdapter。
func (NopAdapter) Analyze(_ context.Context, _ AnalysisRequest) (string, error) {
	return "", types.NewError(types.ErrProviderNotConfigured, "no analysis adapter configured")
}

// tiktoken 编码懒加载，首次使用可能触发编码表下载。
var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func analysisEncoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
		if encErr != nil {
			encErr = fmt.Errorf("init tiktoken encoding cl100k_base: %w", encErr)
		}
	})
	return enc, encErr
}

// CountTokens 返回文本的 token 数。
func CountTokens(text string) (int, error) {
	e, err := analysisEncoding()
	if err != nil {
		return 0, err
	}
	return len(e.Encode(text, nil, nil)), nil
}

// TrimToBudget 把文本裁剪到 token 预算内，返回裁剪后的文本与其 token 数。
// 预算 <=0 时使用 DefaultAnalysisBudget。
func TrimToBudget(text string, budget int) (string, int, error) {
	if budget <= 0 {
		budget = DefaultAnalysisBudget
	}
	e, err := analysisEncoding()
	if err != nil {
		return "", 0, err
	}
	tokens := e.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text, len(tokens), nil
	}
	return e.Decode(tokens[:budget]), budget, nil
}

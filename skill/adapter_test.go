package skill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/skillflow/types"
)

func TestNopAdapter(t *testing.T) {
	t.Parallel()

	_, err := NopAdapter{}.Analyze(context.Background(), AnalysisRequest{Task: "summarize"})
	require.Error(t, err)
	assert.Equal(t, types.ErrProviderNotConfigured, types.GetErrorCode(err))
	assert.False(t, types.IsRetryable(err))
}

// tiktoken 编码表可能需要联网下载，拿不到时跳过而不失败。
func TestTrimToBudget(t *testing.T) {
	if _, err := analysisEncoding(); err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}

	short := "hello world"
	out, n, err := TrimToBudget(short, 100)
	require.NoError(t, err)
	assert.Equal(t, short, out)
	assert.Greater(t, n, 0)

	long := ""
	for i := 0; i < 500; i++ {
		long += "the quick brown fox jumps over the lazy dog "
	}
	out, n, err = TrimToBudget(long, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	assert.Less(t, len(out), len(long))

	// 非正预算使用默认值
	out, _, err = TrimToBudget(short, 0)
	require.NoError(t, err)
	assert.Equal(t, short, out)
}

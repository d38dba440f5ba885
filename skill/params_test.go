package skill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/skillflow/types"
)

func TestParams_TypedGetters(t *testing.T) {
	t.Parallel()

	p := Params{
		"name":   "general",
		"limit":  float64(25), // JSON 解码后的数字形态
		"count":  3,
		"ratio":  0.5,
		"flag":   true,
		"tags":   []any{"a", "b"},
		"mixed":  []any{"a", 1},
		"digits": "42",
	}

	s, ok := p.String("name")
	assert.True(t, ok)
	assert.Equal(t, "general", s)

	_, ok = p.String("limit")
	assert.False(t, ok)

	n, ok := p.Int("limit")
	assert.True(t, ok)
	assert.Equal(t, 25, n)

	n, ok = p.Int("digits")
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	f, ok := p.Float("ratio")
	assert.True(t, ok)
	assert.Equal(t, 0.5, f)

	f, ok = p.Float("count")
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	b, ok := p.Bool("flag")
	assert.True(t, ok)
	assert.True(t, b)

	tags, ok := p.StringSlice("tags")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, tags)

	_, ok = p.StringSlice("mixed")
	assert.False(t, ok)
}

func TestParams_RequireString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"present", Params{"q": "golang"}, false},
		{"missing", Params{}, true},
		{"empty", Params{"q": ""}, true},
		{"whitespace only", Params{"q": "   \t\n"}, true},
		{"wrong type", Params{"q": 7}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.params.RequireString("q")
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
				assert.Contains(t, err.Error(), `"q"`)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParams_RequireInt(t *testing.T) {
	t.Parallel()

	_, err := Params{}.RequireInt("n")
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))

	_, err = Params{"n": "not a number"}.RequireInt("n")
	require.Error(t, err)

	n, err := Params{"n": float64(8)}.RequireInt("n")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestParams_RequireOneOf(t *testing.T) {
	t.Parallel()

	v, err := Params{"op": "start"}.RequireOneOf("op", "start", "stop", "verify")
	require.NoError(t, err)
	assert.Equal(t, "start", v)

	_, err = Params{"op": "pause"}.RequireOneOf("op", "start", "stop", "verify")
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "start, stop, verify")
}

func TestParams_Optional(t *testing.T) {
	t.Parallel()

	p := Params{"lang": "de", "blank": "  ", "n": float64(3), "b": false}

	assert.Equal(t, "de", p.OptionalString("lang", "en"))
	assert.Equal(t, "en", p.OptionalString("missing", "en"))
	assert.Equal(t, "en", p.OptionalString("blank", "en"))
	assert.Equal(t, 3, p.OptionalInt("n", 10))
	assert.Equal(t, 10, p.OptionalInt("missing", 10))
	assert.False(t, p.OptionalBool("b", true))
	assert.True(t, p.OptionalBool("missing", true))
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringSetUnion(t *testing.T) {
	s := StringSet{"en"}

	merged := s.Union("zh", "en", "", "de")
	assert.Equal(t, StringSet{"de", "en", "zh"}, merged, "求并去重、忽略空串、按字典序")
	// 原集合不被修改
	assert.Equal(t, StringSet{"en"}, s)
}

func TestStringSetValueIsStable(t *testing.T) {
	a, err := StringSet{"zh", "en"}.Value()
	require.NoError(t, err)
	b, err := StringSet{"en", "zh"}.Value()
	require.NoError(t, err)
	assert.Equal(t, a, b, "同一集合的存储形式与元素顺序无关")

	empty, err := StringSet(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), empty)
}

func TestIsKnownDimension(t *testing.T) {
	for _, dim := range CanonicalDimensions {
		assert.True(t, IsKnownDimension(dim), dim)
	}
	assert.False(t, IsKnownDimension("astrology"))
	assert.False(t, IsKnownDimension(""))
}

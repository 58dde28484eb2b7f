package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelRequiresPrefix(t *testing.T) {
	assert.True(t, modelRequiresPrefix("BAAI/bge-large-zh-v1.5"))
	assert.True(t, modelRequiresPrefix("intfloat/multilingual-e5-large"))
	assert.True(t, modelRequiresPrefix("E5-Base"))
	assert.False(t, modelRequiresPrefix("text-embedding-v4"))
	assert.False(t, modelRequiresPrefix("text-embedding-3-small"))
}

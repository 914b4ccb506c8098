package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-audit/internal/common"
)

func TestNew_OpenAI(t *testing.T) {
	gen, closeFn, err := New(context.Background(), common.LLMConfig{Provider: "openai", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "OpenAI", gen.Name())
	assert.NoError(t, closeFn())
}

func TestNew_Errors(t *testing.T) {
	_, closeFn, err := New(context.Background(), common.LLMConfig{Provider: "claude"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
	assert.NotNil(t, closeFn)

	_, _, err = New(context.Background(), common.LLMConfig{Provider: "gemini"}, nil)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/freight-audit/internal/common"
)

func TestCandidateText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"height":`), genai.Text(` 2}`)}},
		}},
	}
	assert.Equal(t, `{"height": 2}`, candidateText(resp))
	assert.Empty(t, candidateText(nil))
	assert.Empty(t, candidateText(&genai.GenerateContentResponse{}))
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, nil)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

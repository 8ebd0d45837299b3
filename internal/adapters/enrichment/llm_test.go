package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponsePlainJSON(t *testing.T) {
	out, err := parseResponse(`{"adjustment": 5.5, "reasoning": "established team", "factors": ["reputation"]}`)
	require.NoError(t, err)
	assert.Equal(t, 5.5, out.Adjustment)
	assert.Equal(t, "established team", out.Reasoning)
	assert.Equal(t, []string{"reputation"}, out.Factors)
}

func TestParseResponseFencedJSON(t *testing.T) {
	out, err := parseResponse("Here is my assessment:\n```json\n{\"adjustment\": -4, \"reasoning\": \"meme naming\", \"factors\": []}\n```")
	require.NoError(t, err)
	assert.Equal(t, -4.0, out.Adjustment)
	assert.Equal(t, "meme naming", out.Reasoning)
}

func TestParseResponseNoJSON(t *testing.T) {
	_, err := parseResponse("I cannot assess this listing.")
	assert.Error(t, err)
}

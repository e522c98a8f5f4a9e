package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMention_Confidence(t *testing.T) {
	m := &Mention{}
	assert.Equal(t, 1.0, m.Confidence())
	m.ConfidenceWeight = Float(0.4)
	assert.Equal(t, 0.4, m.Confidence())
}

func TestMention_Scored(t *testing.T) {
	m := &Mention{SentimentScore: Float(-0.3)}
	assert.False(t, m.Scored())
	m.InfluenceWeight = Float(2)
	assert.True(t, m.Scored())
}

func TestIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, IDs([]*Mention{{ID: "a"}, {ID: "b"}}))
	assert.Empty(t, IDs(nil))
}

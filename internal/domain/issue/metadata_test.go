package issue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("FUEL prices up 2024!! Ｆｕｅｌ queues, at the pump.")
	assert.Equal(t, []string{"fuel", "prices", "fuel", "queues", "the", "pump"}, got)
}

func TestMetadataExtractor_Extract(t *testing.T) {
	x := NewMetadataExtractor(MetadataConfig{TopKeywords: 3, TopSources: 2, MaxRegions: 10, ExtraStopwords: []string{"Prices"}})
	ms := []*mention.Mention{
		{ID: "1", Text: "Fuel prices are rising at the pump", Source: "twitter", Region: "north"},
		{ID: "2", Text: "Long fuel queues at every pump", Source: "news", Region: "south"},
		{ID: "3", Text: "fuel shortage again", Source: "twitter", Region: "north"},
		{ID: "4", Text: "shortage", Source: "forum", Region: " "},
	}
	md := x.Extract(ms)

	assert.Equal(t, []string{"fuel", "pump", "shortage"}, md.Keywords)
	assert.Equal(t, []string{"twitter", "forum"}, md.Sources)
	assert.Equal(t, []string{"north", "south"}, md.Regions)
}

func TestMetadataExtractor_Label(t *testing.T) {
	x := NewMetadataExtractor(MetadataConfig{})
	ms := []*mention.Mention{
		{Text: "water outage downtown"},
		{Text: "water outage again"},
		{Text: "no water"},
	}
	assert.Equal(t, "Water Outage Downtown", x.Label(ms, "utilities"))
	assert.Equal(t, "Issue in utilities", x.Label([]*mention.Mention{{Text: "ok"}}, "utilities"))
}

func TestTopN_TiesAlphabetical(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, topN([]string{"b", "a", "c", "a", "b"}, 2))
	assert.Empty(t, topN(nil, 3))
}

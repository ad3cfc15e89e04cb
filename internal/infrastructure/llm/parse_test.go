package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGrants(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantNames []string
		wantErr   bool
	}{
		{name: "grants key", content: `{"grants":[{"name":"A"},{"name":"B"}]}`, wantNames: []string{"A", "B"}},
		{name: "other array key", content: `{"results":[{"name":"A"}]}`, wantNames: []string{"A"}},
		{name: "single object", content: `{"name":"Solo","amount":"1"}`, wantNames: []string{"Solo"}},
		{name: "bare array", content: `[{"name":"A"}]`, wantNames: []string{"A"}},
		{name: "fenced", content: "```json\n{\"grants\":[{\"name\":\"A\"}]}\n```", wantNames: []string{"A"}},
		{name: "empty list", content: `{"grants":[]}`, wantNames: []string{}},
		{name: "nameless dropped", content: `[{"name":""},{"organization":"x"},{"name":"Kept"}]`, wantNames: []string{"Kept"}},
		{name: "prose", content: "Sorry, nothing found.", wantErr: true},
		{name: "empty", content: "   ", wantErr: true},
		{name: "object without list", content: `{"message":"none"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grants, err := parseGrants(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			names := make([]string, 0, len(grants))
			for _, g := range grants {
				names = append(names, g.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestParseGrantsToleratesLooseValues(t *testing.T) {
	grants, err := parseGrants(`{"grants":[{
		"name": "  Mixed  ",
		"amount": 12500.5,
		"eligibility": ["SMEs", "", "start-ups"],
		"deadline": null,
		"contactInfo": "grants@example.org",
		"exclusions": "",
		"unknownField": {"nested": true}
	}]}`)
	require.NoError(t, err)
	require.Len(t, grants, 1)

	g := grants[0]
	assert.Equal(t, "Mixed", g.Name)
	assert.Equal(t, "12500.5", g.Amount)
	assert.Equal(t, "SMEs; start-ups", g.Eligibility)
	assert.Equal(t, "", g.Deadline)
	require.NotNil(t, g.ContactInfo)
	assert.Equal(t, "grants@example.org", *g.ContactInfo)
	assert.Nil(t, g.Exclusions)
	assert.Nil(t, g.RequirementDetails)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "body", stripCodeFence("```\nbody\n```"))
	assert.Equal(t, "body", stripCodeFence("```md\nbody```"))
	assert.Equal(t, "plain", stripCodeFence("plain"))
	assert.Equal(t, "", stripCodeFence("```"))
}

package segment_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/casegraph/internal/segment"
)

func TestSplit_Headers(t *testing.T) {
	text := "Case Number: 24-0117\n\nSUMMARY OF INCIDENT\nOfficers responded to a call.\n\n# Witnesses\nJane Doe saw the car.\n\n2. Evidence Collected\nA knife was recovered.\n\nNarrative:\nThe suspect fled."

	sections := segment.Split(text)
	require.Len(t, sections, 5)

	assert.Equal(t, "", sections[0].Title)
	assert.Equal(t, "Case Number: 24-0117", sections[0].Body)
	assert.Equal(t, "SUMMARY OF INCIDENT", sections[1].Title)
	assert.Equal(t, "Officers responded to a call.", sections[1].Body)
	assert.Equal(t, "Witnesses", sections[2].Title)
	assert.Equal(t, "Evidence Collected", sections[3].Title)
	assert.Equal(t, "Narrative", sections[4].Title)
	assert.Equal(t, "The suspect fled.", sections[4].Body)

	for _, s := range sections {
		assert.Equal(t, s.Body, text[s.Offset:s.Offset+len(s.Body)], "offset must point at body in %q", s.Title)
	}
}

func TestSplit_NoHeaders(t *testing.T) {
	text := "John Smith was interviewed on 03/15/2024 regarding the incident."
	sections := segment.Split(text)
	require.Len(t, sections, 1)
	assert.Equal(t, "", sections[0].Title)
	assert.Equal(t, text, sections[0].Body)
	assert.Equal(t, 0, sections[0].Offset)
}

func TestSplit_Empty(t *testing.T) {
	assert.Nil(t, segment.Split(""))
	assert.Nil(t, segment.Split("  \n "))
}

func TestHeaderTitle(t *testing.T) {
	tests := []struct {
		line  string
		title string
		ok    bool
	}{
		{"## Timeline", "Timeline", true},
		{"SUMMARY OF INCIDENT", "SUMMARY OF INCIDENT", true},
		{"NARRATIVE:", "NARRATIVE", true},
		{"Statement Details:", "Statement Details", true},
		{"3. Background", "Background", true},
		{"Section 2) Persons Involved", "Persons Involved", true},
		{"FBI", "", false},
		{"The suspect fled on foot.", "", false},
		{"Name: John Smith", "", false},
		{"I WAS HOME, I SWEAR.", "", false},
		{strings.Repeat("A", 90), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			title, ok := segment.HeaderTitle(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.title, title)
		})
	}
}

package extract_test

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/casegraph/internal/extract"
	"github.com/ajitpratap0/casegraph/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func byValue(cands []models.Candidate, value string) *models.Candidate {
	for i := range cands {
		if cands[i].NormalizedValue == value {
			return &cands[i]
		}
	}
	return nil
}

func values(cands []models.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.NormalizedValue
	}
	return out
}

func TestInterviewSentence(t *testing.T) {
	text := "John Smith was interviewed on 03/15/2024 regarding the incident."

	people := (&extract.PersonExtractor{}).Extract(text)
	p := byValue(people, "John Smith")
	require.NotNil(t, p, "got %v", values(people))
	assert.GreaterOrEqual(t, p.Confidence, 75)
	assert.Equal(t, "John Smith", p.OriginalText)

	dates := (&extract.DateExtractor{}).Extract(text)
	require.Len(t, dates, 1)
	assert.Equal(t, "03/15/2024", dates[0].OriginalText)
	assert.Equal(t, "2024-03-15", dates[0].NormalizedValue)
	assert.Contains(t, dates[0].Context, "interviewed on 03/15/2024")
}

func TestDateExtractor(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		original string
		value    string
	}{
		{"long month", "It happened on March 15, 2024 late.", "March 15, 2024", "2024-03-15"},
		{"abbreviated month", "Seen Sept. 3rd 2023.", "Sept. 3rd 2023", "2023-09-03"},
		{"day first", "On the 4th of July 2022 we met.", "4th of July 2022", "2022-07-04"},
		{"iso", "Logged 2024-01-09 by intake.", "2024-01-09", "2024-01-09"},
		{"day first numeric", "Dated 25/12/2023.", "25/12/2023", "2023-12-25"},
		{"short year", "Dated 6/7/24 on the form.", "6/7/24", "2024-06-07"},
		{"invalid keeps original", "Dated 02/30/2024.", "02/30/2024", "02/30/2024"},
	}
	ex := &extract.DateExtractor{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ex.Extract(tt.text)
			require.NotEmpty(t, got)
			assert.Equal(t, tt.original, got[0].OriginalText)
			assert.Equal(t, tt.value, got[0].NormalizedValue)
		})
	}
}

func TestDateExtractor_AmbiguousScoresLower(t *testing.T) {
	ex := &extract.DateExtractor{}
	full := ex.Extract("on 03/15/2024")
	bare := ex.Extract("on 3/15 at night")
	require.Len(t, full, 1)
	require.Len(t, bare, 1)
	assert.Less(t, bare[0].Confidence, full[0].Confidence)
	assert.Equal(t, "03", bare[0].Attr("month"))
	assert.Equal(t, "15", bare[0].Attr("day"))
}

func TestDateExtractor_NoOverlap(t *testing.T) {
	got := (&extract.DateExtractor{}).Extract("March 15, 2024")
	require.Len(t, got, 1, "month_day must not re-match inside a full date")
	assert.Equal(t, "month_day_year", got[0].Pattern)
}

func TestTimeExtractor(t *testing.T) {
	tests := []struct {
		text  string
		value string
	}{
		{"left at 9 pm sharp", "21:00"},
		{"called at 11:45 a.m. today", "11:45"},
		{"at 12:10am", "00:10"},
		{"arrived 2130 hours", "21:30"},
		{"logged 07:05 by desk", "07:05"},
		{"around midnight", "00:00"},
	}
	ex := &extract.TimeExtractor{}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ex.Extract(tt.text)
			require.Len(t, got, 1)
			assert.Equal(t, tt.value, got[0].NormalizedValue)
		})
	}
}

func TestTimeExtractor_Hedged(t *testing.T) {
	got := (&extract.TimeExtractor{}).Extract("She got home at approximately 10:30 pm.")
	require.Len(t, got, 1)
	assert.Equal(t, "true", got[0].Attr("approximate"))

	got = (&extract.TimeExtractor{}).Extract("She got home at 10:30 pm.")
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Attr("approximate"))
}

func TestPersonExtractor(t *testing.T) {
	text := "Det. Maria Reyes interviewed witness Tom Baker. Victim: Anna Lee\n" +
		"Name: Paul O'Connor\nLater Carl Jensen said nothing."
	got := (&extract.PersonExtractor{}).Extract(text)

	reyes := byValue(got, "Maria Reyes")
	require.NotNil(t, reyes, "got %v", values(got))
	assert.Equal(t, "investigator", reyes.Attr("role"))
	assert.Equal(t, 90, reyes.Confidence)

	baker := byValue(got, "Tom Baker")
	require.NotNil(t, baker)
	assert.Equal(t, "witness", baker.Attr("role"))

	lee := byValue(got, "Anna Lee")
	require.NotNil(t, lee)
	assert.Equal(t, "victim", lee.Attr("role"))

	require.NotNil(t, byValue(got, "Paul O'Connor"))

	jensen := byValue(got, "Carl Jensen")
	require.NotNil(t, jensen, "leading stop word must be trimmed")
	assert.Equal(t, "Carl Jensen", jensen.OriginalText)
}

func TestPersonExtractor_StopPhrases(t *testing.T) {
	text := "CASE REPORT\nCase Report filed by Police Department on Monday March 4.\nThe Toyota Camry was towed."
	got := (&extract.PersonExtractor{}).Extract(text)
	assert.Empty(t, got, "got %v", values(got))
}

func TestLocationExtractor(t *testing.T) {
	text := "Officers went to 1420 Oak Street, Apt 3 and later to Riverside Park in Springfield, IL. " +
		"He said he was at home."
	got := (&extract.LocationExtractor{}).Extract(text)

	addr := byValue(got, "1420 Oak Street, Apt 3")
	require.NotNil(t, addr, "got %v", values(got))
	assert.Equal(t, "address", addr.Attr("kind"))
	assert.Equal(t, 90, addr.Confidence)

	require.NotNil(t, byValue(got, "Riverside Park"))
	require.NotNil(t, byValue(got, "Springfield, IL"))

	home := byValue(got, "home")
	require.NotNil(t, home)
	assert.Equal(t, "true", home.Attr("generic"))
	assert.Less(t, home.Confidence, addr.Confidence)
}

func TestOrganizationExtractor(t *testing.T) {
	text := "She works for Acme Logistics and filed with the FBI about Harbor Credit Union."
	got := (&extract.OrganizationExtractor{}).Extract(text)
	require.NotNil(t, byValue(got, "FBI"), "got %v", values(got))
	require.NotNil(t, byValue(got, "Acme Logistics"))
	require.NotNil(t, byValue(got, "Harbor Credit Union"))
}

func TestVehicleExtractor(t *testing.T) {
	text := "A silver Toyota Camry with license plate 7ABC-123 was seen near a red sedan."
	got := (&extract.VehicleExtractor{}).Extract(text)

	plate := byValue(got, "7ABC123")
	require.NotNil(t, plate, "got %v", values(got))
	assert.Equal(t, 90, plate.Confidence)

	car := byValue(got, "silver Toyota Camry")
	require.NotNil(t, car)
	assert.Equal(t, 85, car.Confidence)
	assert.Equal(t, "silver", car.Attr("color"))

	sedan := byValue(got, "red sedan")
	require.NotNil(t, sedan)
	assert.Empty(t, sedan.Attr("generic"))
}

func TestCommunicationExtractor(t *testing.T) {
	text := "Call (555) 123-4567 or 555.987.6543, email J.Doe@Example.com, DM @night_owl."
	got := (&extract.CommunicationExtractor{}).Extract(text)
	assert.NotNil(t, byValue(got, "555-123-4567"), "got %v", values(got))
	assert.NotNil(t, byValue(got, "555-987-6543"))
	assert.NotNil(t, byValue(got, "j.doe@example.com"))
	handle := byValue(got, "@night_owl")
	require.NotNil(t, handle)
	assert.Equal(t, "@night_owl", handle.OriginalText)
}

func TestFinancialExtractor(t *testing.T) {
	text := "He withdrew $1,500.00 from account #123456789 and paid 40 dollars with a Visa card ending in 4421."
	got := (&extract.FinancialExtractor{}).Extract(text)

	amount := byValue(got, "USD 1500.00")
	require.NotNil(t, amount, "got %v", values(got))
	assert.Equal(t, "amount", amount.Attr("kind"))

	assert.NotNil(t, byValue(got, "USD 40.00"))
	assert.NotNil(t, byValue(got, "acct 123456789"))
	assert.NotNil(t, byValue(got, "card ****4421"))
}

func TestEvidenceExtractor(t *testing.T) {
	text := "The suspect owned a baseball bat. His neighbor described him as quiet, polite and " +
		"rarely seen outside of working hours during the week. " +
		"A bloody knife was recovered under the sink. Exhibit 12 was logged."
	got := (&extract.EvidenceExtractor{}).Extract(text)

	knife := byValue(got, "bloody knife")
	require.NotNil(t, knife, "got %v", values(got))
	bat := byValue(got, "baseball bat")
	require.NotNil(t, bat)
	assert.Greater(t, knife.Confidence, bat.Confidence, "collection language boosts score")

	assert.NotNil(t, byValue(got, "Exhibit 12"))
}

func TestSet_StampsDocumentAndBoundsConfidence(t *testing.T) {
	text := "INCIDENT REPORT\nJohn Smith was seen at 1420 Oak Street on March 15, 2024 at 9 pm " +
		"driving a black Honda Civic. He called 555-123-4567 and paid $200. A gun was recovered."
	set := extract.NewSet(quietLogger())
	got := set.Extract("doc-1", text)
	require.NotEmpty(t, got)

	seen := map[models.CandidateCategory]bool{}
	for _, c := range got {
		seen[c.Category] = true
		assert.Equal(t, "doc-1", c.SourceDocumentID)
		assert.GreaterOrEqual(t, c.Confidence, 0)
		assert.LessOrEqual(t, c.Confidence, 100)
		assert.Equal(t, text[c.Start:c.End], c.OriginalText)
	}
	for _, cat := range []models.CandidateCategory{
		models.CategoryDate, models.CategoryTime, models.CategoryLocation,
		models.CategoryPerson, models.CategoryVehicle, models.CategoryCommunication,
		models.CategoryFinancial, models.CategoryEvidence,
	} {
		assert.True(t, seen[cat], "missing category %s", cat)
	}
}

func TestSet_EmptyText(t *testing.T) {
	assert.Empty(t, extract.NewSet(quietLogger()).Extract("doc", ""))
}

type panicky struct{}

func (panicky) Category() models.CandidateCategory { return models.CategoryPerson }
func (panicky) Extract(string) []models.Candidate { panic("boom") }

func TestSet_RecoversPanickingExtractor(t *testing.T) {
	set := extract.NewSet(quietLogger(), panicky{}, &extract.DateExtractor{})
	got := set.Extract("doc", "on 2024-01-02")
	require.Len(t, got, 1)
	assert.Equal(t, models.CategoryDate, got[0].Category)
}

func TestSet_LogsThroughInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	set := extract.NewSet(logger, panicky{}, &extract.DateExtractor{})

	set.Extract("doc-7", "on 2024-01-02")
	out := buf.String()
	assert.Contains(t, out, "extractor panicked")
	assert.Contains(t, out, "candidates extracted")
	assert.Contains(t, out, "category=date")
	assert.Contains(t, out, "document_id=doc-7")
}

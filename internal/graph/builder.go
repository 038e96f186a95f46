// Package graph turns extractor candidates into timeline events,
// connections and alibi drafts, and materializes drafts into case artifacts.
package graph

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/resolve"
	"github.com/ajitpratap0/casegraph/pkg/textutil"
)

// Input is one chunk of a document ready for drafting.
type Input struct {
	DocumentID   string
	DocumentType models.DocumentType
	Text         string
	Candidates   []models.Candidate

	// Subject is the interviewee or statement giver named in the document
	// header, used to bind first-person alibi claims.
	Subject *models.EntityRef

	// StatementDate is the document date in YYYY-MM-DD form, if known.
	StatementDate string
}

// Builder drafts artifacts from candidates. It holds no mutable state and is
// safe for concurrent use.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// EntityType maps a candidate to the entity type it resolves to. The second
// result is false for candidates that never become entities: dates, times,
// monetary amounts and generic place or vehicle mentions.
func EntityType(c *models.Candidate) (models.EntityType, bool) {
	if c.Attr("generic") == "true" {
		return "", false
	}
	switch c.Category {
	case models.CategoryPerson:
		return models.EntityTypePerson, true
	case models.CategoryLocation:
		return models.EntityTypeLocation, true
	case models.CategoryOrganization:
		return models.EntityTypeOrganization, true
	case models.CategoryVehicle:
		return models.EntityTypeVehicle, true
	case models.CategoryEvidence:
		return models.EntityTypeEvidence, true
	case models.CategoryCommunication:
		return models.EntityTypeOther, true
	case models.CategoryFinancial:
		if c.Attr("kind") == "amount" {
			return "", false
		}
		return models.EntityTypeOther, true
	}
	return "", false
}

var kindDescription = map[string]string{
	"phone":     "phone number",
	"email":     "email address",
	"handle":    "social media handle",
	"account":   "bank account",
	"card":      "payment card",
	"check":     "check",
	"reference": "transaction reference",
	"plate":     "license plate",
	"vin":       "vehicle identification number",
	"address":   "street address",
	"hash":      "file hash",
	"ip":        "IP address",
}

// chunkState carries per-chunk lookups while drafting.
type chunkState struct {
	in       Input
	refOf    map[int]models.EntityRef // candidate index -> entity ref
	roles    map[string]string        // resolve key -> role
	lastDate string
	logger   *slog.Logger
}

// Build drafts every artifact found in one chunk.
func (b *Builder) Build(in Input) *models.Extraction {
	out := &models.Extraction{DocumentID: in.DocumentID, Source: models.SourcePatterns}
	cands := append([]models.Candidate(nil), in.Candidates...)
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Start < cands[j].Start })
	in.Candidates = cands

	st := &chunkState{
		in:     in,
		refOf:  make(map[int]models.EntityRef),
		roles:  make(map[string]string),
		logger: b.logger,
	}
	out.Entities = st.draftEntities()

	seenConn := make(map[string]bool)
	for _, sent := range textutil.Sentences(in.Text) {
		idx := st.candidatesIn(sent)
		if len(idx) == 0 {
			continue
		}
		sentence := in.Text[sent.Start:sent.End]

		ev, ok := st.draftEvent(sentence, idx)
		if ok {
			out.Events = append(out.Events, ev)
			for _, c := range st.draftConnections(sentence, ev) {
				key := c.From.Name + "|" + c.To.Name + "|" + c.Type + "|" + c.Label
				if seenConn[strings.ToLower(key)] {
					continue
				}
				seenConn[strings.ToLower(key)] = true
				out.Connections = append(out.Connections, c)
			}
		}
		if al, ok := st.draftAlibi(sentence, idx); ok {
			out.Alibis = append(out.Alibis, al)
		}
	}

	b.logger.Debug("chunk drafted",
		"document_id", in.DocumentID,
		"entities", len(out.Entities),
		"events", len(out.Events),
		"connections", len(out.Connections),
		"alibis", len(out.Alibis),
	)
	return out
}

// draftEntities dedupes entity candidates by resolve key, keeping the first
// spelling, the highest confidence and the first non-empty role.
func (st *chunkState) draftEntities() []models.ExtractedEntity {
	var out []models.ExtractedEntity
	pos := make(map[string]int)
	for i := range st.in.Candidates {
		c := &st.in.Candidates[i]
		t, ok := EntityType(c)
		if !ok || strings.TrimSpace(c.NormalizedValue) == "" {
			continue
		}
		ref := models.EntityRef{Name: c.NormalizedValue, Type: t}
		st.refOf[i] = ref
		key := resolve.Key(ref.Name, ref.Type)
		role := c.Attr("role")
		if role != "" && st.roles[key] == "" {
			st.roles[key] = role
		}

		if p, ok := pos[key]; ok {
			if c.Confidence > out[p].Confidence {
				out[p].Confidence = c.Confidence
			}
			if out[p].Role == "" {
				out[p].Role = role
			}
			continue
		}
		pos[key] = len(out)
		out = append(out, models.ExtractedEntity{
			Name:        c.NormalizedValue,
			Type:        t,
			Role:        role,
			Description: kindDescription[c.Attr("kind")],
			Confidence:  c.Confidence,
		})
	}
	return out
}

func (st *chunkState) candidatesIn(s textutil.Span) []int {
	var idx []int
	for i := range st.in.Candidates {
		c := &st.in.Candidates[i]
		if c.Start >= s.Start && c.End <= s.End {
			idx = append(idx, i)
		}
	}
	return idx
}

func (st *chunkState) first(idx []int, cat models.CandidateCategory) *models.Candidate {
	for _, i := range idx {
		if st.in.Candidates[i].Category == cat {
			return &st.in.Candidates[i]
		}
	}
	return nil
}

// location picks the sentence's location: the highest scoring named place,
// or a generic place when nothing better is present.
func (st *chunkState) location(idx []int) string {
	var best *models.Candidate
	for _, i := range idx {
		c := &st.in.Candidates[i]
		if c.Category != models.CategoryLocation {
			continue
		}
		if best == nil || c.Confidence > best.Confidence {
			best = c
		}
	}
	if best == nil {
		return ""
	}
	return best.NormalizedValue
}

// outside drops candidates whose span overlaps c, such as the owner named
// inside "Mary Jones's house".
func (st *chunkState) outside(idx []int, c *models.Candidate) []int {
	var out []int
	for _, i := range idx {
		o := &st.in.Candidates[i]
		if o.Start < c.End && c.Start < o.End {
			continue
		}
		out = append(out, i)
	}
	return out
}

// participants returns the distinct non-location entity refs in the sentence
// in order of appearance.
func (st *chunkState) participants(idx []int) []models.EntityRef {
	var out []models.EntityRef
	seen := make(map[string]bool)
	for _, i := range idx {
		ref, ok := st.refOf[i]
		if !ok || ref.Type == models.EntityTypeLocation {
			continue
		}
		key := resolve.Key(ref.Name, ref.Type)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ref)
	}
	return out
}

var (
	phoneCallRE   = regexp.MustCompile(`(?i)\b(?:call(?:ed|s|ing)?|phoned?|dialed|texted|text messages?|voicemail)\b`)
	sightingRE    = regexp.MustCompile(`(?i)\b(?:saw|seen|sighted|spotted|observed|witnessed)\b`)
	evidenceRE    = regexp.MustCompile(`(?i)\b(?:evidence|found|recovered|collected|seized|discovered)\b`)
	transactionRE = regexp.MustCompile(`(?i)\b(?:transactions?|purchased?|bought|paid|withdrew|withdrawal|deposit(?:ed)?|transferred|payment)\b`)
	accountRE     = regexp.MustCompile(`(?i)\b(?:interview(?:ed)?|statements?|stated|testified|told)\b`)
	alibiRE       = regexp.MustCompile(`(?i)\b(?:alibi|claimed|claims)\b`)
	hedgeRE       = regexp.MustCompile(`(?i)\b(?:around|approximately|approx|about|roughly|circa|sometime)\b`)
)

// classifyEvent assigns an event type by keyword precedence.
func (st *chunkState) classifyEvent(sentence string, participants []models.EntityRef) models.EventType {
	switch {
	case phoneCallRE.MatchString(sentence):
		return models.EventPhoneCall
	case sightingRE.MatchString(sentence):
		return models.EventSighting
	case evidenceRE.MatchString(sentence):
		return models.EventEvidenceFound
	case transactionRE.MatchString(sentence):
		return models.EventTransaction
	case accountRE.MatchString(sentence):
		return models.EventWitnessAccount
	}
	for _, p := range participants {
		if st.roles[resolve.Key(p.Name, p.Type)] == "victim" {
			return models.EventVictimAction
		}
	}
	if alibiRE.MatchString(sentence) {
		return models.EventSuspectMovement
	}
	return models.EventOther
}

var eventTitles = map[models.EventType]string{
	models.EventPhoneCall:       "Phone call",
	models.EventSighting:        "Sighting",
	models.EventEvidenceFound:   "Evidence found",
	models.EventTransaction:     "Transaction",
	models.EventWitnessAccount:  "Witness account",
	models.EventVictimAction:    "Victim action",
	models.EventSuspectMovement: "Suspect movement",
	models.EventOther:           "Event",
}

// EventTitle builds "<Type>: <subject>" where subject is the first
// participant, else the location, else the truncated sentence.
func EventTitle(t models.EventType, participants []models.EntityRef, location, sentence string) string {
	label := eventTitles[t]
	if label == "" {
		label = eventTitles[models.EventOther]
	}
	switch {
	case len(participants) > 0:
		return label + ": " + participants[0].Name
	case location != "":
		return label + ": " + location
	default:
		return label + ": " + textutil.Truncate(textutil.CollapseSpace(sentence), 60)
	}
}

// resolveDate returns the sentence's date value and whether it was inherited.
// Partial dates borrow the year of the last full date in the chunk.
func (st *chunkState) resolveDate(date *models.Candidate) (string, bool) {
	if date.Attr("month") != "" && date.Attr("day") != "" {
		if st.lastDate == "" {
			return date.NormalizedValue, false
		}
		return st.lastDate[:4] + "-" + date.Attr("month") + "-" + date.Attr("day"), true
	}
	return date.NormalizedValue, false
}

// draftEvent creates an event for a sentence holding a date, or holding a
// time when an earlier sentence in the chunk supplied the date.
func (st *chunkState) draftEvent(sentence string, idx []int) (models.ExtractedEvent, bool) {
	date := st.first(idx, models.CategoryDate)
	clock := st.first(idx, models.CategoryTime)
	if date == nil && (clock == nil || st.lastDate == "") {
		return models.ExtractedEvent{}, false
	}

	ev := models.ExtractedEvent{Description: textutil.Truncate(textutil.CollapseSpace(sentence), 280)}
	var score int
	if date != nil {
		ev.Date, ev.DateInherited = st.resolveDate(date)
		score = date.Confidence
	} else {
		ev.Date, ev.DateInherited = st.lastDate, true
		score = clock.Confidence - 10
	}
	_, parsed := ParseDate(ev.Date)
	if parsed && !ev.DateInherited && date != nil {
		st.lastDate = ev.Date
	}
	if !parsed {
		st.logger.Debug("event date not parseable, keeping event with unknown time",
			"document_id", st.in.DocumentID, "date", ev.Date)
	}

	if clock != nil {
		ev.Time = clock.NormalizedValue
		ev.Approximate = clock.Attr("approximate") == "true"
		score += 5
	}
	if !ev.Approximate && hedgeRE.MatchString(sentence) {
		ev.Approximate = true
	}

	ev.Location = st.location(idx)
	if ev.Location != "" {
		score += 5
	}
	ev.Participants = st.participants(idx)
	score += min(5*len(ev.Participants), 10)

	if !parsed {
		score = min(score, 30)
	}
	ev.Confidence = models.ClampConfidence(score)
	ev.Type = st.classifyEvent(sentence, ev.Participants)
	ev.Title = EventTitle(ev.Type, ev.Participants, ev.Location, sentence)
	return ev, true
}

var employmentRE = regexp.MustCompile(`(?i)\b(?:works? (?:for|at)|worked (?:for|at)|employed by|employee of|member of|manager at|owner of)\b`)

// draftConnections links every unordered pair of participants, every
// participant to the event location, and people to organizations named with
// employment language.
func (st *chunkState) draftConnections(sentence string, ev models.ExtractedEvent) []models.ExtractedConnection {
	var out []models.ExtractedConnection
	desc := textutil.Truncate(textutil.CollapseSpace(sentence), 160)
	ps := ev.Participants

	for i := 0; i < len(ps); i++ {
		for j := i + 1; j < len(ps); j++ {
			a, b := ps[i], ps[j]
			if strings.ToLower(b.Name) < strings.ToLower(a.Name) {
				a, b = b, a
			}
			out = append(out, models.ExtractedConnection{
				From: a, To: b, Type: models.ConnAssociatedWith,
				Description: desc, Confidence: models.ConfidencePossible,
			})
		}
	}

	if ev.Location != "" && st.locationIsEntity(ev.Location) {
		conf := models.ConfidencePossible
		if ev.Time != "" && !ev.Approximate && !ev.DateInherited {
			conf = models.ConfidenceProbable
		}
		loc := models.EntityRef{Name: ev.Location, Type: models.EntityTypeLocation}
		for _, p := range ps {
			out = append(out, models.ExtractedConnection{
				From: p, To: loc, Type: models.ConnLocatedAt,
				Description: desc, Confidence: conf,
			})
		}
	}

	if employmentRE.MatchString(sentence) {
		for _, p := range ps {
			if p.Type != models.EntityTypePerson {
				continue
			}
			for _, o := range ps {
				if o.Type != models.EntityTypeOrganization {
					continue
				}
				out = append(out, models.ExtractedConnection{
					From: p, To: o, Type: models.ConnAffiliatedWith, Label: "employment",
					Description: desc, Confidence: models.ConfidenceProbable,
				})
			}
		}
	}
	return out
}

// locationIsEntity reports whether name was drafted as a location entity,
// which excludes generic places such as "home".
func (st *chunkState) locationIsEntity(name string) bool {
	for _, ref := range st.refOf {
		if ref.Type == models.EntityTypeLocation && strings.EqualFold(ref.Name, name) {
			return true
		}
	}
	return false
}

var (
	claimRE       = regexp.MustCompile(`(?i)\b(?:claimed|claims|stated|states|said|says|alibi|told|insisted|maintained)\b`)
	firstPersonRE = regexp.MustCompile(`(?i)(?:^|[\s:])I (?:was|am|had been|stayed|went)\b`)
	beingRE       = regexp.MustCompile(`(?i)\b(?:was|were|been|am|is)\b`)
	gerundRE      = regexp.MustCompile(`(?i)\b([a-z]+ing)((?:\s+(?:a|an|the|his|her|my|their|some|tv|out|late|dinner|movies?|television|games|cards|alone|with\s+[a-z]+))*)\b`)
)

// notActivities end in "ing" but do not describe what someone was doing.
var notActivities = map[string]bool{
	"morning": true, "evening": true, "during": true, "nothing": true,
	"something": true, "anything": true, "everything": true, "building": true,
	"thing": true, "parking": true, "ceiling": true, "spring": true,
	"string": true, "king": true, "ring": true, "wedding": true, "being": true,
	"clothing": true, "bring": true, "sing": true, "wing": true,
}

// activityOf returns the first gerund phrase after a form of "to be", such as
// "sleeping" or "watching a movie".
func activityOf(sentence string) string {
	loc := beingRE.FindStringIndex(sentence)
	if loc == nil {
		return ""
	}
	for _, m := range gerundRE.FindAllStringSubmatch(sentence[loc[1]:], -1) {
		verb := strings.ToLower(m[1])
		if notActivities[verb] {
			continue
		}
		return textutil.CollapseSpace(strings.ToLower(m[1] + m[2]))
	}
	return ""
}

// draftAlibi recognizes a claim about someone's whereabouts: a claim verb or
// first-person account, a subject, and a claimed location.
func (st *chunkState) draftAlibi(sentence string, idx []int) (models.ExtractedAlibi, bool) {
	firstPerson := firstPersonRE.MatchString(sentence) && st.in.Subject != nil &&
		isAccountDocument(st.in.DocumentType)
	if !claimRE.MatchString(sentence) && !firstPerson {
		return models.ExtractedAlibi{}, false
	}

	var loc *models.Candidate
	for _, i := range idx {
		if st.in.Candidates[i].Category == models.CategoryLocation {
			loc = &st.in.Candidates[i]
			break
		}
	}
	if loc == nil {
		st.logger.Debug("alibi claim skipped: no location", "document_id", st.in.DocumentID)
		return models.ExtractedAlibi{}, false
	}

	var subject *models.EntityRef
	var others []models.EntityRef
	for _, p := range st.participants(st.outside(idx, loc)) {
		if p.Type != models.EntityTypePerson || st.roles[resolve.Key(p.Name, p.Type)] == "investigator" {
			continue
		}
		if subject == nil && !firstPerson {
			ref := p
			subject = &ref
			continue
		}
		others = append(others, p)
	}
	if firstPerson {
		subject = st.in.Subject
		filtered := others[:0]
		for _, o := range others {
			if !strings.EqualFold(o.Name, subject.Name) {
				filtered = append(filtered, o)
			}
		}
		others = filtered
	}
	if subject == nil {
		st.logger.Debug("alibi claim skipped: no subject",
			"document_id", st.in.DocumentID, "location", loc.NormalizedValue)
		return models.ExtractedAlibi{}, false
	}

	al := models.ExtractedAlibi{
		Subject:       *subject,
		StatementDate: st.in.StatementDate,
		Location:      loc.NormalizedValue,
		FullStatement: textutil.Truncate(textutil.CollapseSpace(sentence), 500),
		Corroborators: others,
	}
	score := 50
	if loc.Attr("generic") != "true" {
		score += 10
	}
	if act := activityOf(sentence); act != "" {
		al.Activity = act
		score += 10
	}

	var times []string
	for _, i := range idx {
		if c := st.in.Candidates[i]; c.Category == models.CategoryTime {
			times = append(times, c.NormalizedValue)
		}
	}
	if len(times) > 0 {
		al.StartTime = times[0]
		score += 10
	}
	if len(times) > 1 {
		al.EndTime = times[1]
	}
	if date := st.first(idx, models.CategoryDate); date != nil {
		al.Date, _ = st.resolveDate(date)
	} else {
		al.Date = st.lastDate
	}
	al.Confidence = models.ClampConfidence(score)
	return al, true
}

func isAccountDocument(t models.DocumentType) bool {
	switch t {
	case models.DocTypeInterview, models.DocTypeWitnessStatement, models.DocTypeGeneral:
		return true
	}
	return false
}

// DocumentSubject returns the person named in a labeled header field such as
// "Interviewee:" or "Name:", skipping investigators.
func DocumentSubject(cands []models.Candidate) *models.EntityRef {
	for i := range cands {
		c := &cands[i]
		if c.Category != models.CategoryPerson || c.Pattern != "field_label" {
			continue
		}
		if c.Attr("role") == "investigator" {
			continue
		}
		return &models.EntityRef{Name: c.NormalizedValue, Type: models.EntityTypePerson}
	}
	return nil
}

// DocumentDate returns the first fully resolved date in the candidates.
func DocumentDate(cands []models.Candidate) string {
	best := -1
	for i := range cands {
		c := &cands[i]
		if c.Category != models.CategoryDate {
			continue
		}
		if _, ok := ParseDate(c.NormalizedValue); !ok {
			continue
		}
		if best < 0 || c.Start < cands[best].Start {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return cands[best].NormalizedValue
}

// AllEntities returns ex's entity drafts plus any entity referenced only by
// an event, connection or alibi.
func AllEntities(ex *models.Extraction) []models.ExtractedEntity {
	out := append([]models.ExtractedEntity(nil), ex.Entities...)
	seen := make(map[string]bool, len(out))
	for _, e := range out {
		seen[resolve.Key(e.Name, e.Type)] = true
	}
	add := func(ref models.EntityRef, confidence int) {
		if strings.TrimSpace(ref.Name) == "" {
			return
		}
		if !ref.Type.IsValid() {
			ref.Type = models.EntityTypeOther
		}
		key := resolve.Key(ref.Name, ref.Type)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, models.ExtractedEntity{Name: ref.Name, Type: ref.Type, Confidence: confidence})
	}
	for _, ev := range ex.Events {
		for _, p := range ev.Participants {
			add(p, ev.Confidence)
		}
	}
	for _, c := range ex.Connections {
		add(c.From, 50)
		add(c.To, 50)
	}
	for _, a := range ex.Alibis {
		add(a.Subject, a.Confidence)
		for _, p := range a.Corroborators {
			add(p, a.Confidence)
		}
	}
	return out
}

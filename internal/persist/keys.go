package persist

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/resolve"
	"github.com/ajitpratap0/casegraph/pkg/textutil"
)

// descriptionKeyRunes bounds how much of an event description feeds its key.
const descriptionKeyRunes = 64

// EntityKey dedupes entities by case, lower-cased name and type.
func EntityKey(caseID, name string, t models.EntityType) string {
	return digest("entity", caseID, resolve.Key(name, t))
}

// EventKey dedupes events by normalized title, ISO time and the leading
// part of the description.
func EventKey(caseID, title string, eventTime *time.Time, description string) string {
	desc := []rune(norm(description))
	if len(desc) > descriptionKeyRunes {
		desc = desc[:descriptionKeyRunes]
	}
	return digest("event", caseID, norm(title), isoTime(eventTime), string(desc))
}

// ConnectionKey dedupes connections by endpoint names, type and label.
func ConnectionKey(caseID, fromName, toName, connectionType, label string) string {
	return digest("connection", caseID, norm(fromName), norm(toName), norm(connectionType), norm(label))
}

// AlibiKey dedupes alibi versions by subject, window and claimed location.
func AlibiKey(caseID, subjectEntityID string, start, end *time.Time, location string) string {
	return digest("alibi", caseID, subjectEntityID, isoTime(start), isoTime(end), norm(location))
}

func norm(s string) string {
	return strings.ToLower(textutil.CollapseSpace(s))
}

func isoTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// digest joins parts with a unit separator so no part can bleed into the next.
func digest(kind string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0x1f})
	}
	return kind + ":" + hex.EncodeToString(h.Sum(nil))[:40]
}

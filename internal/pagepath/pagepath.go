// Package pagepath derives the strings that tag events and key form state
// from the document location.
package pagepath

import (
	"strings"

	"github.com/vincentbai/formtrack/internal/dom"
)

// Current returns the location path with a single trailing slash removed.
// "/" and "" are returned unchanged.
func Current(loc dom.Location) string {
	p := loc.Pathname
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// FormIdentity keys a form by page path and its id attribute. Two forms without
// an id on the same page share an identity.
func FormIdentity(loc dom.Location, formID string) string {
	p := strings.TrimPrefix(loc.Pathname, "/")
	return strings.ReplaceAll(p, "/", "-") + "-" + formID
}

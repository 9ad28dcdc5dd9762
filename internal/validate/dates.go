package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/melvinwevers/card-annotation/internal/schema"
	"github.com/melvinwevers/card-annotation/pkg/register"
)

// dateRule names the registration and departure date fields of a
// section subject to the temporal-ordering check.
type dateRule struct {
	registration string
	departure    string
}

// The two entry-list sections both record an assignment date and a
// departure date in DDMMYY form.
var dateRules = map[string]dateRule{
	schema.SectionMainEntries: {registration: "datum_registration", departure: "datum_vertrek"},
	schema.SectionFollowUp:    {registration: "datum", departure: "datum_vertrek"},
}

// EntryDates checks the cross-field rule that a person's departure date
// must fall strictly after their registration date. Blank dates and
// dates that fail the DDMMYY format skip the rule; the per-field check
// already reports format problems and double-reporting helps nobody.
func (v *Validator) EntryDates(section string, entry register.Fields) Verdict {
	rule, ok := dateRules[section]
	if !ok {
		return accept()
	}
	reg := strings.TrimSpace(entry[rule.registration].Display())
	dep := strings.TrimSpace(entry[rule.departure].Display())
	regOrd, ok := ddmmyyOrdinal(reg)
	if !ok {
		return accept()
	}
	depOrd, ok := ddmmyyOrdinal(dep)
	if !ok {
		return accept()
	}
	if depOrd <= regOrd {
		return Verdict{
			Reason:   fmt.Sprintf("Verhuisdatum %s must be later than registratiedatum %s", dep, reg),
			Blocking: true,
		}
	}
	return accept()
}

// DateFields returns the field names participating in the section's
// date ordering rule, empty when the section has none.
func DateFields(section string) []string {
	rule, ok := dateRules[section]
	if !ok {
		return nil
	}
	return []string{rule.registration, rule.departure}
}

// ddmmyyOrdinal parses a six-digit DDMMYY date into a comparable
// absolute ordinal. Two-digit years map to 1900+Y for Y >= 30 and
// 2000+Y below; the registers span the 1930s through the 2020s.
func ddmmyyOrdinal(s string) (int, bool) {
	if len(s) != 6 {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	day, _ := strconv.Atoi(s[0:2])
	month, _ := strconv.Atoi(s[2:4])
	yy, _ := strconv.Atoi(s[4:6])
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return 0, false
	}
	year := 2000 + yy
	if yy >= 30 {
		year = 1900 + yy
	}
	return year*10000 + month*100 + day, true
}

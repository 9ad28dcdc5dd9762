package validate

import (
	"strings"
	"testing"

	"github.com/melvinwevers/card-annotation/internal/schema"
	"github.com/melvinwevers/card-annotation/pkg/register"
)

func TestFieldDateFormat(t *testing.T) {
	v := New(schema.Default())
	if got := v.Field(schema.SectionMainEntries, "datum_registration", "160636"); !got.OK {
		t.Fatalf("six digit date rejected: %s", got.Reason)
	}
	got := v.Field(schema.SectionMainEntries, "datum_registration", "16063")
	if got.OK {
		t.Fatalf("five digit date accepted")
	}
	if !strings.Contains(got.Reason, "Invalid format") {
		t.Fatalf("reason = %q", got.Reason)
	}
	if !got.Blocking {
		t.Fatalf("priority field failure should block")
	}
}

func TestFieldBlankOptionalPasses(t *testing.T) {
	v := New(schema.Default())
	if got := v.Field(schema.SectionMainEntries, "datum_vertrek", ""); !got.OK {
		t.Fatalf("blank optional date rejected: %s", got.Reason)
	}
	if got := v.Field(schema.SectionMainEntries, "gezinshoofd", "   "); !got.OK {
		t.Fatalf("whitespace-only optional name rejected: %s", got.Reason)
	}
}

func TestFieldRequired(t *testing.T) {
	reg := schema.NewRegistry()
	if err := reg.AddField("s", "naam", schema.FieldSchema{
		Type: schema.TypeString, Description: "Naam", Required: true,
	}); err != nil {
		t.Fatalf("add field: %v", err)
	}
	reg.SetPriority("s", "naam")
	v := New(reg)
	got := v.Field("s", "naam", "")
	if got.OK || got.Reason != "Naam is required" {
		t.Fatalf("verdict = %+v", got)
	}
}

func TestNonPriorityFailureIsVisibleNotBlocking(t *testing.T) {
	v := New(schema.Default())
	got := v.Field(schema.SectionHeader, "codenummer", "12")
	if got.OK {
		t.Fatalf("bad codenummer accepted")
	}
	if got.Blocking {
		t.Fatalf("non-priority failure should not block")
	}
}

func TestPriorityOnlyDisabledBlocksEverything(t *testing.T) {
	v := New(schema.Default(), WithPriorityOnly(false))
	got := v.Field(schema.SectionHeader, "codenummer", "12")
	if got.OK || !got.Blocking {
		t.Fatalf("verdict = %+v", got)
	}
}

func TestFieldNumericMessages(t *testing.T) {
	reg := schema.NewRegistry()
	if err := reg.AddField("s", "count", schema.FieldSchema{
		Type: schema.TypeInt, Description: "Aantal", Min: floatPtr(0),
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := reg.AddField("s", "ratio", schema.FieldSchema{
		Type: schema.TypeFloat, Description: "Ratio",
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	reg.SetPriority("s", "count", "ratio")
	v := New(reg)

	if got := v.Field("s", "count", "5.0"); !got.OK {
		t.Fatalf("whole number with fractional suffix rejected: %s", got.Reason)
	}
	got := v.Field("s", "count", "abc")
	if got.OK || got.Reason != "Aantal: Must be a valid whole number" {
		t.Fatalf("verdict = %+v", got)
	}
	got = v.Field("s", "count", "-1")
	if got.OK || got.Reason != "Aantal: Minimum value is 0" {
		t.Fatalf("verdict = %+v", got)
	}
	got = v.Field("s", "ratio", "x")
	if got.OK || got.Reason != "Ratio: Must be a valid decimal number" {
		t.Fatalf("verdict = %+v", got)
	}
}

func TestFieldEnumMessageTruncates(t *testing.T) {
	reg := schema.NewRegistry()
	if err := reg.AddField("s", "kleur", schema.FieldSchema{
		Type: schema.TypeEnum, Description: "Kleur",
		Options: []string{"rood", "groen", "blauw", "geel"},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	reg.SetPriority("s", "kleur")
	v := New(reg)
	if got := v.Field("s", "kleur", "groen"); !got.OK {
		t.Fatalf("valid option rejected")
	}
	got := v.Field("s", "kleur", "paars")
	if got.OK || got.Reason != "Kleur: Must be one of: rood, groen, blauw..." {
		t.Fatalf("verdict = %+v", got)
	}
}

func TestFieldNormalizesBeforePatternMatch(t *testing.T) {
	v := New(schema.Default())
	// Decomposed e + combining acute; the pattern class only covers
	// composed letters, so NFC normalization must run first.
	name := "Bruine, Jose\u0301 de"
	if got := v.Field(schema.SectionMainEntries, "gezinshoofd", name); !got.OK {
		t.Fatalf("decomposed name rejected: %s", got.Reason)
	}
}

func TestFieldWithoutSchemaPasses(t *testing.T) {
	v := New(schema.Default())
	if got := v.Field("unknown_section", "whatever", "x"); !got.OK {
		t.Fatalf("schemaless field rejected")
	}
}

func TestScalarMaxLength(t *testing.T) {
	v := New(schema.Default())
	long := strings.Repeat("a", 501)
	got := v.Scalar(schema.SectionFooterNotes, long)
	if got.OK || !strings.Contains(got.Reason, "Maximum 500 characters") {
		t.Fatalf("verdict = %+v", got)
	}
	if got := v.Scalar(schema.SectionFooterNotes, "verhuisd"); !got.OK {
		t.Fatalf("short note rejected")
	}
}

func TestEntryDatesOrdering(t *testing.T) {
	v := New(schema.Default())
	entry := register.Fields{
		"datum_registration": register.String("160636"),
		"datum_vertrek":      register.String("090659"),
	}
	if got := v.EntryDates(schema.SectionMainEntries, entry); !got.OK {
		t.Fatalf("1936 -> 1959 rejected: %s", got.Reason)
	}

	entry["datum_registration"] = register.String("090659")
	entry["datum_vertrek"] = register.String("160636")
	got := v.EntryDates(schema.SectionMainEntries, entry)
	if got.OK {
		t.Fatalf("departure before registration accepted")
	}
	if !got.Blocking {
		t.Fatalf("date ordering failure should block")
	}
	if !strings.Contains(got.Reason, "160636") || !strings.Contains(got.Reason, "090659") {
		t.Fatalf("reason should name both dates: %q", got.Reason)
	}
}

func TestEntryDatesEqualRejected(t *testing.T) {
	v := New(schema.Default())
	entry := register.Fields{
		"datum_registration": register.String("010150"),
		"datum_vertrek":      register.String("010150"),
	}
	if got := v.EntryDates(schema.SectionMainEntries, entry); got.OK {
		t.Fatalf("equal dates accepted")
	}
}

func TestEntryDatesSkipsBlankAndMalformed(t *testing.T) {
	v := New(schema.Default())
	for _, entry := range []register.Fields{
		{"datum_registration": register.String("160636"), "datum_vertrek": register.String("")},
		{"datum_registration": register.String(""), "datum_vertrek": register.String("090659")},
		{"datum_registration": register.String("990136"), "datum_vertrek": register.String("090659")},
		{"datum_registration": register.String("16063"), "datum_vertrek": register.String("090659")},
	} {
		if got := v.EntryDates(schema.SectionMainEntries, entry); !got.OK {
			t.Fatalf("rule should skip for %v: %s", entry, got.Reason)
		}
	}
}

func TestEntryDatesCenturyMapping(t *testing.T) {
	v := New(schema.Default())
	// YY 29 maps to 2029, YY 30 to 1930: 1930 < 2029 so swapping them
	// must flip the verdict.
	entry := register.Fields{
		"datum_registration": register.String("010130"),
		"datum_vertrek":      register.String("010129"),
	}
	if got := v.EntryDates(schema.SectionMainEntries, entry); !got.OK {
		t.Fatalf("1930 -> 2029 rejected: %s", got.Reason)
	}
	entry["datum_registration"] = register.String("010129")
	entry["datum_vertrek"] = register.String("010130")
	if got := v.EntryDates(schema.SectionMainEntries, entry); got.OK {
		t.Fatalf("2029 -> 1930 accepted")
	}
}

func TestEntryDatesFollowUpSection(t *testing.T) {
	v := New(schema.Default())
	entry := register.Fields{
		"datum":         register.String("010160"),
		"datum_vertrek": register.String("010155"),
	}
	if got := v.EntryDates(schema.SectionFollowUp, entry); got.OK {
		t.Fatalf("follow-up section should apply the rule")
	}
	if got := v.EntryDates(schema.SectionHeader, entry); !got.OK {
		t.Fatalf("header section has no date rule")
	}
}

func TestDateFields(t *testing.T) {
	got := DateFields(schema.SectionFollowUp)
	if len(got) != 2 || got[0] != "datum" || got[1] != "datum_vertrek" {
		t.Fatalf("DateFields = %v", got)
	}
	if DateFields(schema.SectionHeader) != nil {
		t.Fatalf("header should have no date fields")
	}
}

func floatPtr(f float64) *float64 { return &f }

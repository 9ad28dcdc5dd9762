package schema

// Section names of the card layout.
const (
	SectionHeader      = "header"
	SectionMainEntries = "main_entries"
	SectionFollowUp    = "follow_up_entries"
	SectionFooterNotes = "footer_notes"
)

// personName matches "Last name, First name" with Latin letters and
// diacritics, apostrophes, hyphens and dots; empty is allowed.
const personName = `([\p{L}\s\-',\.]+,\s*[\p{L}\s\-'\.]+)?`

// ddmmyy matches a six digit date or empty.
const ddmmyy = `(\d{6})?`

// headcount matches the tally columns: digits, a slash, a dash or empty.
const headcount = `(|\d+|/|-)`

// Default builds the registry for the Amsterdam population-register
// cards: a header block, the main resident entries, follow-up entries
// and a free-text footer. Priority lists concentrate validation on the
// fields the transcription project actually consumes downstream.
func Default() *Registry {
	r := NewRegistry()

	r.mustAddField(SectionHeader, "street", FieldSchema{
		Type:        TypeString,
		Description: "Straat",
		Autocomplete: []string{
			"Elisabeth Wolffstraat", "Saenredamstraat", "Spanderswoudstraat",
			"Haarlemmerdijk", "Vossiusstraat", "Stierstraat", "Burgemeester Fockstraat",
		},
		MinLength: intPtr(5),
		MaxLength: intPtr(100),
	})
	r.mustAddField(SectionHeader, "house_number", FieldSchema{
		Type:        TypeString,
		Description: "Huisnummer",
		MinLength:   intPtr(1),
		MaxLength:   intPtr(100),
	})
	r.mustAddField(SectionHeader, "codenummer", FieldSchema{
		Type:        TypeString,
		Pattern:     `\d{4}`,
		Description: "Codenummer (4 cijfers)",
	})
	r.mustAddField(SectionHeader, "buurtletter", FieldSchema{
		Type:        TypeString,
		Pattern:     `(|[A-Z]{2}\s*[A-Z]*\s*\d*)`,
		Description: "Buurtletter (Twee karakters + cijfers)",
	})
	r.mustAddField(SectionHeader, "stemdistrict_nr", FieldSchema{
		Type:        TypeString,
		Pattern:     `(|\d{2}\s*-\s*\d{3})`,
		Description: "Stemdistrict Nr.",
	})

	r.mustAddField(SectionMainEntries, "record_no", FieldSchema{
		Type:        TypeString,
		Pattern:     `(|\d{1,3})`,
		Description: "Record nummer (Optional, 1-999)",
	})
	r.mustAddField(SectionMainEntries, "datum_registration", FieldSchema{
		Type:        TypeString,
		Pattern:     ddmmyy,
		Description: "Registratie Datum (DDMMYY)",
	})
	r.mustAddField(SectionMainEntries, "gezinshoofd", FieldSchema{
		Type:        TypeString,
		Pattern:     personName,
		Description: "Gezinshoofd (Last name, First name) - Optional",
		MaxLength:   intPtr(100),
	})
	r.mustAddField(SectionMainEntries, "year_of_birth", FieldSchema{
		Type:        TypeString,
		Pattern:     `(|\d{2})`,
		Description: "Jaar (Geboortejaar) (YY) - Optional",
	})
	r.mustAddField(SectionMainEntries, "M", FieldSchema{
		Type:        TypeString,
		Pattern:     headcount,
		Description: "Aantal mannen (M) (Cijfers, Slash, Dash of leeg)",
	})
	r.mustAddField(SectionMainEntries, "V", FieldSchema{
		Type:        TypeString,
		Pattern:     headcount,
		Description: "Aantal vrouwen (V) (Cijfers, Slash, Dash of leeg)",
	})
	r.mustAddField(SectionMainEntries, "datum_vertrek", FieldSchema{
		Type:        TypeString,
		Pattern:     ddmmyy,
		Description: "Verhuisdatum (Datum) (DDMMYY)",
	})
	r.mustAddField(SectionMainEntries, "waarheen", FieldSchema{
		Type:        TypeString,
		Description: "Waarheen",
		MinLength:   intPtr(0),
		MaxLength:   intPtr(200),
	})
	r.mustAddField(SectionMainEntries, "remarks", FieldSchema{
		Type:        TypeString,
		Description: "Opmerkingen",
		MaxLength:   intPtr(200),
	})

	r.mustAddField(SectionFollowUp, "volg_nr", FieldSchema{
		Type:        TypeString,
		Pattern:     `(|\d{1,3})`,
		Description: "Volgnr. (Optional, 1-999)",
	})
	r.mustAddField(SectionFollowUp, "datum", FieldSchema{
		Type:        TypeString,
		Pattern:     ddmmyy,
		Description: "Datum (Inschrijfdatum) (DDMMYY)",
	})
	r.mustAddField(SectionFollowUp, "inwonenden", FieldSchema{
		Type:        TypeString,
		Pattern:     personName,
		Description: "Inwonenden (Last name, First name Middle) - Optional",
		MaxLength:   intPtr(100),
	})
	r.mustAddField(SectionFollowUp, "year_of_birth", FieldSchema{
		Type:        TypeString,
		Pattern:     `(|\d{2})`,
		Description: "Jaar (Geboortejaar) (YY) - Optional",
	})
	r.mustAddField(SectionFollowUp, "M", FieldSchema{
		Type:        TypeString,
		Pattern:     headcount,
		Description: "Aantal mannen (M) (Cijfers, Slash, Dash of leeg)",
	})
	r.mustAddField(SectionFollowUp, "V", FieldSchema{
		Type:        TypeString,
		Pattern:     headcount,
		Description: "Aantal vrouwen (V) (Cijfers, Slash, Dash of leeg)",
	})
	r.mustAddField(SectionFollowUp, "datum_vertrek", FieldSchema{
		Type:        TypeString,
		Pattern:     ddmmyy,
		Description: "Verhuisdatum (DDMMYY)",
	})
	r.mustAddField(SectionFollowUp, "waarheen", FieldSchema{
		Type:        TypeString,
		Description: "Waarheen",
		MaxLength:   intPtr(200),
	})
	r.mustAddField(SectionFollowUp, "remarks", FieldSchema{
		Type:        TypeString,
		Description: "Opmerkingen",
		MaxLength:   intPtr(200),
	})

	if err := r.AddScalar(SectionFooterNotes, FieldSchema{
		Type:        TypeString,
		Description: "Aantekeningen",
		MaxLength:   intPtr(500),
	}); err != nil {
		panic(err)
	}

	r.SetPriority(SectionHeader, "street", "house_number")
	r.SetPriority(SectionMainEntries, "gezinshoofd", "datum_registration", "datum_vertrek", "year_of_birth")
	r.SetPriority(SectionFollowUp)

	return r
}

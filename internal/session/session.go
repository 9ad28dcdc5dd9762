package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/melvinwevers/card-annotation/internal/blob"
	"github.com/melvinwevers/card-annotation/internal/record"
	"github.com/melvinwevers/card-annotation/internal/validate"
	"github.com/melvinwevers/card-annotation/pkg/register"
)

// dateOrderField keys the cross-field date ordering error inside an
// entry, distinct from any real field name.
const dateOrderField = "~date_order"

// State tracks where a session is in its lifecycle.
type State int

const (
	// StateEditing is an open session holding its record's claim.
	StateEditing State = iota
	// StateSaved means the correction was written and the claim released.
	StateSaved
	// StateAbandoned means the claim was released without saving.
	StateAbandoned
)

// ErrSessionClosed is returned by edits on a saved or abandoned session.
var ErrSessionClosed = errors.New("session is closed")

// SaveBlockedError reports the blocking validation errors that stopped
// a save.
type SaveBlockedError struct {
	Errors []register.FieldError
}

func (e *SaveBlockedError) Error() string {
	return fmt.Sprintf("save blocked by %d validation errors", len(e.Errors))
}

type entryKey struct {
	section string
	index   int
}

// Session is one operator editing one claimed record. It is not safe
// for concurrent use; each operator session owns exactly one.
type Session struct {
	svc      *Service
	identity register.Identity
	claim    register.Claim
	doc      *record.Document
	payload  *register.Payload
	errs     register.ErrorSet
	staged   map[entryKey]bool
	state    State
}

// Open claims recordID for the identity and loads it for editing. A
// record held by another session yields a locks.BusyError. A document
// without an editable section releases the claim and yields
// ErrNoEditable, so such records are skipped without sticking locked.
func (s *Service) Open(ctx context.Context, recordID string, id register.Identity) (*Session, error) {
	start := s.now()
	sess, err := s.open(ctx, recordID, id)
	s.metrics.Observe(ctx, "open", err == nil, s.now().Sub(start))
	return sess, err
}

func (s *Service) open(ctx context.Context, recordID string, id register.Identity) (*Session, error) {
	claim, err := s.locks.Acquire(ctx, recordID, id)
	if err != nil {
		return nil, err
	}
	doc, err := s.LoadDocument(ctx, recordID)
	if err != nil {
		_ = s.locks.Release(ctx, recordID, id)
		return nil, err
	}
	if !doc.HasEditable() {
		if err := s.locks.Release(ctx, recordID, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", recordID, ErrNoEditable)
	}
	sess := &Session{
		svc:      s,
		identity: id,
		claim:    claim,
		doc:      doc,
		payload:  doc.Payload().Clone(),
		errs:     register.NewErrorSet(),
		staged:   make(map[entryKey]bool),
	}
	sess.revalidate()
	return sess, nil
}

// RecordID returns the claimed record's id.
func (sess *Session) RecordID() string { return sess.claim.RecordID }

// Claim returns the claim backing this session.
func (sess *Session) Claim() register.Claim { return sess.claim }

// State returns the lifecycle state.
func (sess *Session) State() State { return sess.state }

// Payload exposes the working copy of the editable sections.
func (sess *Session) Payload() *register.Payload { return sess.payload }

// Errors returns every live validation error in deterministic order.
func (sess *Session) Errors() []register.FieldError { return sess.errs.All() }

// BlockingErrors returns the errors currently gating a save.
func (sess *Session) BlockingErrors() []register.FieldError { return sess.errs.Blocking() }

// SetField applies operator input to a field of a list entry (entry >=
// 0) or of a dict-shaped section (entry -1). The input is converted to
// the field's original type, the field is revalidated, and the entry's
// date ordering rule is re-checked. The converted value is returned so
// the form can redisplay it.
func (sess *Session) SetField(section string, entry int, field string, input string) (register.Value, error) {
	if sess.state != StateEditing {
		return register.Null(), ErrSessionClosed
	}
	fields, err := sess.fieldsAt(section, entry)
	if err != nil {
		return register.Null(), err
	}
	converted := fields[field].Convert(input)
	fields[field] = converted
	sess.checkField(section, entry, field, fields)
	sess.checkEntryDates(section, entry, fields)
	return converted, nil
}

// SetScalar applies operator input to a scalar-shaped section.
func (sess *Session) SetScalar(section string, input string) (register.Value, error) {
	if sess.state != StateEditing {
		return register.Null(), ErrSessionClosed
	}
	sec, ok := sess.payload.Section(section)
	if !ok || !sec.IsScalar() {
		return register.Null(), fmt.Errorf("section %s is not a scalar", section)
	}
	converted := sec.Scalar.Convert(input)
	sec.Scalar = &converted
	key := register.FieldKey{RecordID: sess.claim.RecordID, Section: section, Entry: -1}
	verdict := sess.svc.validator.Scalar(section, converted.Display())
	sess.apply(key, verdict, false)
	return converted, nil
}

// MarkNeedsReview flags a field as needing expert review. The flag is
// stored in the payload next to the field and makes the field's
// validation failures non-blocking while keeping them visible, so an
// operator can save a card whose handwriting genuinely cannot be read.
func (sess *Session) MarkNeedsReview(section string, entry int, field string, flag bool) error {
	if sess.state != StateEditing {
		return ErrSessionClosed
	}
	fields, err := sess.fieldsAt(section, entry)
	if err != nil {
		return err
	}
	fields.SetNeedsReview(field, flag)
	sess.checkField(section, entry, field, fields)
	sess.checkEntryDates(section, entry, fields)
	return nil
}

// StageEntryDelete marks a list entry for deletion. Nothing is removed
// until ConfirmEntryDeletes; the two-step flow is what keeps a slipped
// click from destroying a transcribed person row.
func (sess *Session) StageEntryDelete(section string, index int) error {
	if sess.state != StateEditing {
		return ErrSessionClosed
	}
	sec, ok := sess.payload.Section(section)
	if !ok || !sec.IsList() {
		return fmt.Errorf("section %s is not an entry list", section)
	}
	if index < 0 || index >= len(sec.Entries) {
		return fmt.Errorf("entry index %d out of range in %s", index, section)
	}
	sess.staged[entryKey{section: section, index: index}] = true
	return nil
}

// UnstageEntryDelete cancels a staged deletion.
func (sess *Session) UnstageEntryDelete(section string, index int) {
	delete(sess.staged, entryKey{section: section, index: index})
}

// StagedDeletions reports how many entries are currently staged.
func (sess *Session) StagedDeletions() int { return len(sess.staged) }

// IsStagedForDelete reports whether the entry is marked for deletion.
func (sess *Session) IsStagedForDelete(section string, index int) bool {
	return sess.staged[entryKey{section: section, index: index}]
}

// ConfirmEntryDeletes removes every staged entry and rebuilds the
// validation state, since deletion shifts the indices of later entries.
func (sess *Session) ConfirmEntryDeletes() error {
	if sess.state != StateEditing {
		return ErrSessionClosed
	}
	bySection := make(map[string][]int)
	for k := range sess.staged {
		bySection[k.section] = append(bySection[k.section], k.index)
	}
	for section, indices := range bySection {
		// Delete back to front so earlier indices stay valid.
		sortDesc(indices)
		for _, idx := range indices {
			if err := sess.payload.DeleteEntry(section, idx); err != nil {
				return err
			}
		}
	}
	sess.staged = make(map[entryKey]bool)
	sess.errs = register.NewErrorSet()
	sess.revalidate()
	return nil
}

func sortDesc(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j] > xs[j-1]; j-- {
			xs[j], xs[j-1] = xs[j-1], xs[j]
		}
	}
}

// Save writes the corrected document and releases the claim. Blocking
// validation errors stop the save; a storage failure leaves the claim
// held so the operator can retry without losing the record.
func (sess *Session) Save(ctx context.Context) error {
	start := sess.svc.now()
	err := sess.save(ctx)
	sess.svc.metrics.Observe(ctx, "save", err == nil, sess.svc.now().Sub(start))
	return err
}

func (sess *Session) save(ctx context.Context) error {
	if sess.state != StateEditing {
		return ErrSessionClosed
	}
	if blocking := sess.errs.Blocking(); len(blocking) > 0 {
		return &SaveBlockedError{Errors: blocking}
	}
	sess.doc.SetPayload(sess.payload)
	encoded, err := sess.doc.Encode()
	if err != nil {
		return err
	}
	_, err = sess.svc.blobs.Write(ctx, PrefixCorrected+sess.claim.RecordID, encoded, blobWriteOptions(sess.identity))
	if err != nil {
		return fmt.Errorf("save %s: %w", sess.claim.RecordID, err)
	}
	if err := sess.svc.locks.Release(ctx, sess.claim.RecordID, sess.identity); err != nil {
		return err
	}
	sess.state = StateSaved
	sess.svc.cache.invalidate()
	return nil
}

// Abandon releases the claim without saving. Safe to call after Save;
// it then does nothing.
func (sess *Session) Abandon(ctx context.Context) error {
	if sess.state != StateEditing {
		return nil
	}
	start := sess.svc.now()
	err := sess.svc.locks.Release(ctx, sess.claim.RecordID, sess.identity)
	sess.svc.metrics.Observe(ctx, "abandon", err == nil, sess.svc.now().Sub(start))
	if err != nil {
		return err
	}
	sess.state = StateAbandoned
	return nil
}

func (sess *Session) fieldsAt(section string, entry int) (register.Fields, error) {
	sec, ok := sess.payload.Section(section)
	if !ok {
		return nil, fmt.Errorf("unknown section %s", section)
	}
	if entry >= 0 {
		if !sec.IsList() {
			return nil, fmt.Errorf("section %s is not an entry list", section)
		}
		if entry >= len(sec.Entries) {
			return nil, fmt.Errorf("entry index %d out of range in %s", entry, section)
		}
		if sec.Entries[entry] == nil {
			sec.Entries[entry] = register.Fields{}
		}
		return sec.Entries[entry], nil
	}
	if sec.IsList() || sec.IsScalar() {
		return nil, fmt.Errorf("section %s has no flat fields", section)
	}
	if sec.Fields == nil {
		sec.Fields = register.Fields{}
	}
	return sec.Fields, nil
}

// checkField revalidates one field and updates the error set. A
// needs-review flag demotes a failure to non-blocking.
func (sess *Session) checkField(section string, entry int, field string, fields register.Fields) {
	key := register.FieldKey{RecordID: sess.claim.RecordID, Section: section, Entry: entry, Field: field}
	verdict := sess.svc.validator.Field(section, field, fields[field].Display())
	sess.apply(key, verdict, fields.NeedsReview(field))
}

// checkEntryDates revalidates the entry's date ordering rule. Flagging
// either participating date for review demotes the rule too.
func (sess *Session) checkEntryDates(section string, entry int, fields register.Fields) {
	if entry < 0 {
		return
	}
	key := register.FieldKey{RecordID: sess.claim.RecordID, Section: section, Entry: entry, Field: dateOrderField}
	verdict := sess.svc.validator.EntryDates(section, fields)
	flagged := false
	for _, name := range validate.DateFields(section) {
		if fields.NeedsReview(name) {
			flagged = true
		}
	}
	sess.apply(key, verdict, flagged)
}

func (sess *Session) apply(key register.FieldKey, verdict validate.Verdict, reviewed bool) {
	if verdict.OK {
		sess.errs.Clear(key)
		return
	}
	sess.errs.Put(register.FieldError{
		Key:      key,
		Reason:   verdict.Reason,
		Blocking: verdict.Blocking && !reviewed,
	})
}

// revalidate rebuilds the full error set from the working payload.
func (sess *Session) revalidate() {
	for _, name := range sess.payload.SectionNames() {
		if register.IsFlagKey(name) {
			continue
		}
		sec, _ := sess.payload.Section(name)
		switch {
		case sec.IsList():
			for i, fields := range sec.Entries {
				for field := range fields {
					if register.IsFlagKey(field) {
						continue
					}
					sess.checkField(name, i, field, fields)
				}
				sess.checkEntryDates(name, i, fields)
			}
		case sec.IsScalar():
			key := register.FieldKey{RecordID: sess.claim.RecordID, Section: name, Entry: -1}
			verdict := sess.svc.validator.Scalar(name, sec.Scalar.Display())
			sess.apply(key, verdict, false)
		default:
			for field := range sec.Fields {
				if register.IsFlagKey(field) {
					continue
				}
				sess.checkField(name, -1, field, sec.Fields)
			}
		}
	}
}

func blobWriteOptions(id register.Identity) blob.WriteOptions {
	return blob.WriteOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"corrected-by": sanitizeMetaValue(id.User),
			"session-id":   id.SessionID,
		},
	}
}

func sanitizeMetaValue(v string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, v)
}

package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/melvinwevers/card-annotation/internal/blob"
	"github.com/melvinwevers/card-annotation/internal/locks"
	"github.com/melvinwevers/card-annotation/internal/lockstore"
	"github.com/melvinwevers/card-annotation/internal/record"
	"github.com/melvinwevers/card-annotation/pkg/register"
)

const sampleCard = `{
  "source": "batch_1936_04",
  "validated_json": {
    "header": {"street": "Keizersgracht", "house_number": "12"},
    "main_entries": [
      {"gezinshoofd": "Jansen, Piet", "datum_registration": "160636", "datum_vertrek": "", "year_of_birth": "01"},
      {"gezinshoofd": "Vries, Anna de", "datum_registration": "090639", "datum_vertrek": "", "year_of_birth": "12"}
    ],
    "footer_notes": ""
  }
}`

func newService(t *testing.T) (*Service, blob.Store) {
	t.Helper()
	blobs := blob.NewMemory()
	mgr := locks.NewManager(lockstore.NewMemory())
	svc := NewService(blobs, mgr, WithListTTL(0))
	return svc, blobs
}

func seed(t *testing.T, blobs blob.Store, id, doc string) {
	t.Helper()
	if _, err := blobs.Write(context.Background(), PrefixRecords+id, []byte(doc), blob.WriteOptions{}); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestOpenEditSaveLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, blobs := newService(t)
	seed(t, blobs, "card_0001.json", sampleCard)
	id := NewIdentity("anna")

	sess, err := svc.Open(ctx, "card_0001.json", id)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if sess.State() != StateEditing {
		t.Fatalf("state = %v", sess.State())
	}

	// The record shows locked to everyone while the session holds it.
	statuses, err := svc.ListRecords(ctx)
	if err != nil || len(statuses) != 1 || statuses[0].Status != StatusLocked {
		t.Fatalf("statuses = %v, %v", statuses, err)
	}

	if _, err := sess.SetField("header", -1, "street", "Prinsengracht"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	if _, err := sess.SetField("main_entries", 0, "datum_vertrek", "010150"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	if err := sess.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if sess.State() != StateSaved {
		t.Fatalf("state after save = %v", sess.State())
	}

	saved, err := blobs.Read(ctx, PrefixCorrected+"card_0001.json")
	if err != nil {
		t.Fatalf("read corrected: %v", err)
	}
	if !strings.Contains(string(saved), `"street": "Prinsengracht"`) {
		t.Fatalf("edit missing:\n%s", saved)
	}
	if !strings.Contains(string(saved), `"source": "batch_1936_04"`) {
		t.Fatalf("untouched section lost:\n%s", saved)
	}

	// Lock released and status flipped to corrected.
	statuses, err = svc.ListRecords(ctx)
	if err != nil || statuses[0].Status != StatusCorrected {
		t.Fatalf("statuses = %v, %v", statuses, err)
	}
	if _, err := svc.Open(ctx, "card_0001.json", NewIdentity("bram")); err != nil {
		t.Fatalf("reopen after save: %v", err)
	}
}

func TestOpenBusySurfacesHolder(t *testing.T) {
	ctx := context.Background()
	svc, blobs := newService(t)
	seed(t, blobs, "card_0001.json", sampleCard)

	if _, err := svc.Open(ctx, "card_0001.json", NewIdentity("anna")); err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err := svc.Open(ctx, "card_0001.json", NewIdentity("bram"))
	if !errors.Is(err, locks.ErrBusy) {
		t.Fatalf("err = %v", err)
	}
	var busy *locks.BusyError
	if !errors.As(err, &busy) || busy.Holder != "anna" {
		t.Fatalf("busy = %+v", busy)
	}
}

func TestSaveGateAndNeedsReviewOverride(t *testing.T) {
	ctx := context.Background()
	svc, blobs := newService(t)
	seed(t, blobs, "card_0001.json", sampleCard)
	sess, err := svc.Open(ctx, "card_0001.json", NewIdentity("anna"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// Five digit date on a priority field blocks the save.
	if _, err := sess.SetField("main_entries", 0, "datum_registration", "16063"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	err = sess.Save(ctx)
	var blocked *SaveBlockedError
	if !errors.As(err, &blocked) || len(blocked.Errors) != 1 {
		t.Fatalf("err = %v", err)
	}
	if sess.State() != StateEditing {
		t.Fatalf("blocked save should keep the session open")
	}

	// Flagging the field keeps the error visible but unblocks saving.
	if err := sess.MarkNeedsReview("main_entries", 0, "datum_registration", true); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if len(sess.Errors()) != 1 {
		t.Fatalf("error should stay visible: %v", sess.Errors())
	}
	if len(sess.BlockingErrors()) != 0 {
		t.Fatalf("blocking = %v", sess.BlockingErrors())
	}
	if err := sess.Save(ctx); err != nil {
		t.Fatalf("save after override: %v", err)
	}

	saved, _ := blobs.Read(ctx, PrefixCorrected+"card_0001.json")
	if !strings.Contains(string(saved), `"datum_registration_needs review": true`) {
		t.Fatalf("flag key missing:\n%s", saved)
	}
}

func TestDateOrderingBlocksSave(t *testing.T) {
	ctx := context.Background()
	svc, blobs := newService(t)
	seed(t, blobs, "card_0001.json", sampleCard)
	sess, err := svc.Open(ctx, "card_0001.json", NewIdentity("anna"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// Departure 1936 against registration 1959: earlier, so blocked.
	if _, err := sess.SetField("main_entries", 0, "datum_registration", "090659"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := sess.SetField("main_entries", 0, "datum_vertrek", "160636"); err != nil {
		t.Fatalf("set: %v", err)
	}
	err = sess.Save(ctx)
	var blocked *SaveBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(blocked.Errors[0].Reason, "160636") {
		t.Fatalf("reason = %q", blocked.Errors[0].Reason)
	}

	// Fixing the departure clears the rule.
	if _, err := sess.SetField("main_entries", 0, "datum_vertrek", "160666"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := sess.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func TestSetFieldConvertsToOriginalShape(t *testing.T) {
	ctx := context.Background()
	svc, blobs := newService(t)
	seed(t, blobs, "card_0001.json", `{"validated_json":{"header":{"house_number":12,"street":"Keizersgracht"}}}`)
	sess, err := svc.Open(ctx, "card_0001.json", NewIdentity("anna"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := sess.SetField("header", -1, "house_number", "14")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if got.Kind() != register.KindInt || got.IntVal() != 14 {
		t.Fatalf("converted = %+v, integer identity lost", got)
	}
	if err := sess.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	saved, _ := blobs.Read(ctx, PrefixCorrected+"card_0001.json")
	if !strings.Contains(string(saved), `"house_number": 14`) {
		t.Fatalf("saved value not numeric:\n%s", saved)
	}
}

func TestStagedEntryDeletion(t *testing.T) {
	ctx := context.Background()
	svc, blobs := newService(t)
	seed(t, blobs, "card_0001.json", sampleCard)
	sess, err := svc.Open(ctx, "card_0001.json", NewIdentity("anna"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := sess.StageEntryDelete("main_entries", 0); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if !sess.IsStagedForDelete("main_entries", 0) || sess.StagedDeletions() != 1 {
		t.Fatalf("staging not recorded")
	}
	// Staging alone must not touch the payload.
	sec, _ := sess.Payload().Section("main_entries")
	if len(sec.Entries) != 2 {
		t.Fatalf("entries = %d before confirmation", len(sec.Entries))
	}

	sess.UnstageEntryDelete("main_entries", 0)
	if sess.StagedDeletions() != 0 {
		t.Fatalf("unstage failed")
	}

	if err := sess.StageEntryDelete("main_entries", 0); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := sess.ConfirmEntryDeletes(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	sec, _ = sess.Payload().Section("main_entries")
	if len(sec.Entries) != 1 || sec.Entries[0]["gezinshoofd"].Str() != "Vries, Anna de" {
		t.Fatalf("entries after delete = %+v", sec.Entries)
	}
	if err := sess.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	saved, _ := blobs.Read(ctx, PrefixCorrected+"card_0001.json")
	if strings.Contains(string(saved), "Jansen, Piet") {
		t.Fatalf("deleted entry survived:\n%s", saved)
	}
}

func TestStageEntryDeleteValidatesIndex(t *testing.T) {
	ctx := context.Background()
	svc, blobs := newService(t)
	seed(t, blobs, "card_0001.json", sampleCard)
	sess, err := svc.Open(ctx, "card_0001.json", NewIdentity("anna"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := sess.StageEntryDelete("main_entries", 7); err == nil {
		t.Fatalf("out of range index accepted")
	}
	if err := sess.StageEntryDelete("header", 0); err == nil {
		t.Fatalf("non-list section accepted")
	}
}

func TestOpenSkipsDocumentWithoutEditableSection(t *testing.T) {
	ctx := context.Background()
	svc, blobs := newService(t)
	seed(t, blobs, "card_0002.json", `{"source": "x"}`)

	_, err := svc.Open(ctx, "card_0002.json", NewIdentity("anna"))
	if !errors.Is(err, ErrNoEditable) {
		t.Fatalf("err = %v", err)
	}
	// The claim must have been released.
	claims, err := svc.LiveClaims(ctx)
	if err != nil || len(claims) != 0 {
		t.Fatalf("claims = %v, %v", claims, err)
	}
}

type failingWrites struct {
	blob.Store
}

func (f *failingWrites) Write(context.Context, string, []byte, blob.WriteOptions) (blob.Info, error) {
	return blob.Info{}, errors.New("storage down")
}

func TestSaveFailureKeepsClaim(t *testing.T) {
	ctx := context.Background()
	inner := blob.NewMemory()
	mgr := locks.NewManager(lockstore.NewMemory())
	svc := NewService(&failingWrites{Store: inner}, mgr, WithListTTL(0))
	if _, err := inner.Write(ctx, PrefixRecords+"card_0001.json", []byte(sampleCard), blob.WriteOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sess, err := svc.Open(ctx, "card_0001.json", NewIdentity("anna"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := sess.Save(ctx); err == nil {
		t.Fatalf("save should fail")
	}
	if sess.State() != StateEditing {
		t.Fatalf("state = %v, session should stay open", sess.State())
	}
	claims, err := svc.LiveClaims(ctx)
	if err != nil || len(claims) != 1 {
		t.Fatalf("claim lost after failed save: %v, %v", claims, err)
	}
}

func TestAbandonReleasesWithoutSaving(t *testing.T) {
	ctx := context.Background()
	svc, blobs := newService(t)
	seed(t, blobs, "card_0001.json", sampleCard)
	sess, err := svc.Open(ctx, "card_0001.json", NewIdentity("anna"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := sess.SetField("header", -1, "street", "Prinsengracht"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := sess.Abandon(ctx); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if sess.State() != StateAbandoned {
		t.Fatalf("state = %v", sess.State())
	}
	if _, err := blobs.Read(ctx, PrefixCorrected+"card_0001.json"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("abandon must not write: %v", err)
	}
	if _, err := sess.SetField("header", -1, "street", "x"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("edit after abandon: %v", err)
	}
	// Abandon after abandon is a no-op.
	if err := sess.Abandon(ctx); err != nil {
		t.Fatalf("second abandon: %v", err)
	}
}

func TestZeroEditSaveRoundTrips(t *testing.T) {
	ctx := context.Background()
	svc, blobs := newService(t)
	seed(t, blobs, "card_0001.json", sampleCard)
	sess, err := svc.Open(ctx, "card_0001.json", NewIdentity("anna"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := sess.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	saved, _ := blobs.Read(ctx, PrefixCorrected+"card_0001.json")
	doc, err := record.Decode(saved)
	if err != nil {
		t.Fatalf("decode saved: %v", err)
	}
	sec, _ := doc.Payload().Section("main_entries")
	if len(sec.Entries) != 2 || sec.Entries[0]["gezinshoofd"].Str() != "Jansen, Piet" {
		t.Fatalf("payload changed without edits: %+v", sec.Entries)
	}
}

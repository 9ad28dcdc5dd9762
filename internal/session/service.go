// Package session drives the correction workflow: it arbitrates record
// claims, loads and saves documents, tracks per-field validation state,
// and reports corpus progress. One Service is shared by all operator
// sessions of a process; one Session is one operator editing one record.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/melvinwevers/card-annotation/internal/blob"
	"github.com/melvinwevers/card-annotation/internal/blob/core"
	"github.com/melvinwevers/card-annotation/internal/locks"
	"github.com/melvinwevers/card-annotation/internal/record"
	"github.com/melvinwevers/card-annotation/internal/schema"
	"github.com/melvinwevers/card-annotation/internal/validate"
	"github.com/melvinwevers/card-annotation/pkg/register"
)

// Storage layout mirrored from the extraction pipeline's bucket.
const (
	// PrefixRecords holds the raw extraction output documents.
	PrefixRecords = "jsons/"
	// PrefixCorrected holds operator-corrected documents.
	PrefixCorrected = "corrected/"
	// PrefixImages holds the source card scans.
	PrefixImages = "images/"
)

// ImageExtensions are the scan formats probed in order when resolving a
// record's source image.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".tif", ".jp2"}

// DefaultListTTL bounds how stale a cached record listing may get.
const DefaultListTTL = 5 * time.Minute

// Status classifies one record for the worklist.
type Status string

const (
	// StatusUncorrected means no corrected version exists and nobody
	// holds a claim.
	StatusUncorrected Status = "uncorrected"
	// StatusCorrected means an operator has saved a corrected version.
	StatusCorrected Status = "corrected"
	// StatusLocked means another session currently holds the record.
	StatusLocked Status = "locked"
)

// RecordStatus pairs a record id with its worklist classification.
type RecordStatus struct {
	ID     string
	Status Status
}

// Progress summarizes how far through the corpus the correctors are.
type Progress struct {
	Total     int
	Corrected int
	Locked    int
	Remaining int
	Percent   float64
}

// ErrNoEditable is returned by Open for documents without an editable
// section; the claim is released before the error surfaces, so the
// record never sticks in a locked state.
var ErrNoEditable = errors.New("document has no editable section")

// NewIdentity mints a fresh operator identity for one tool process.
func NewIdentity(user string) register.Identity {
	return register.Identity{User: user, SessionID: uuid.NewString(), PID: os.Getpid()}
}

// Service is the shared correction engine over one record store and one
// lock namespace.
type Service struct {
	blobs     blob.Store
	locks     *locks.Manager
	registry  *schema.Registry
	validator *validate.Validator
	metrics   MetricsRecorder
	cache     *listCache
	now       func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRegistry substitutes the field schema registry.
func WithRegistry(reg *schema.Registry) ServiceOption {
	return func(s *Service) {
		s.registry = reg
		s.validator = validate.New(reg)
	}
}

// WithValidator substitutes the validator, for policies beyond the
// registry default (e.g. blocking on non-priority fields too).
func WithValidator(v *validate.Validator) ServiceOption {
	return func(s *Service) { s.validator = v }
}

// WithMetrics attaches an operation metrics sink.
func WithMetrics(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithListTTL overrides the record listing cache TTL.
func WithListTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) { s.cache = newListCache(ttl, s.now) }
}

// WithClock overrides the time source; tests only.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
		s.cache = newListCache(s.cache.ttl, now)
	}
}

// NewService builds a correction service over the given stores.
func NewService(blobs blob.Store, lockMgr *locks.Manager, opts ...ServiceOption) *Service {
	reg := schema.Default()
	s := &Service{
		blobs:     blobs,
		locks:     lockMgr,
		registry:  reg,
		validator: validate.New(reg),
		metrics:   NopMetricsRecorder{},
		now:       time.Now,
	}
	s.cache = newListCache(DefaultListTTL, s.now)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InvalidateListings drops cached record listings, forcing the next
// status query to hit storage.
func (s *Service) InvalidateListings() { s.cache.invalidate() }

func (s *Service) list(ctx context.Context, prefix string) ([]blob.Info, error) {
	if infos, ok := s.cache.get(prefix); ok {
		return infos, nil
	}
	infos, err := s.blobs.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	s.cache.put(prefix, infos)
	return infos, nil
}

// recordIDs returns the ids of all extraction documents, sorted.
func (s *Service) recordIDs(ctx context.Context) ([]string, error) {
	infos, err := s.list(ctx, PrefixRecords)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		id := strings.TrimPrefix(info.Key, PrefixRecords)
		if id == "" || strings.Contains(id, "/") || !strings.HasSuffix(id, ".json") {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Service) correctedSet(ctx context.Context) (map[string]bool, error) {
	infos, err := s.list(ctx, PrefixCorrected)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(infos))
	for _, info := range infos {
		set[strings.TrimPrefix(info.Key, PrefixCorrected)] = true
	}
	return set, nil
}

func (s *Service) lockedSet(ctx context.Context) (map[string]bool, error) {
	claims, err := s.locks.ListLiveClaims(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(claims))
	for _, c := range claims {
		set[c.RecordID] = true
	}
	return set, nil
}

// ListRecords classifies every record for the worklist. A held claim
// outranks a saved correction, matching how the worklist shows a record
// someone is re-editing.
func (s *Service) ListRecords(ctx context.Context) ([]RecordStatus, error) {
	ids, err := s.recordIDs(ctx)
	if err != nil {
		return nil, err
	}
	corrected, err := s.correctedSet(ctx)
	if err != nil {
		return nil, err
	}
	locked, err := s.lockedSet(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RecordStatus, 0, len(ids))
	for _, id := range ids {
		status := StatusUncorrected
		switch {
		case locked[id]:
			status = StatusLocked
		case corrected[id]:
			status = StatusCorrected
		}
		out = append(out, RecordStatus{ID: id, Status: status})
	}
	return out, nil
}

// ListAvailable returns the uncorrected, unclaimed record ids in order.
func (s *Service) ListAvailable(ctx context.Context) ([]string, error) {
	statuses, err := s.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rs := range statuses {
		if rs.Status == StatusUncorrected {
			out = append(out, rs.ID)
		}
	}
	return out, nil
}

// NextAvailable returns the first available record after the given id
// in lexicographic order, wrapping around to the start of the corpus.
// It returns "" when nothing is left to correct.
func (s *Service) NextAvailable(ctx context.Context, after string) (string, error) {
	available, err := s.ListAvailable(ctx)
	if err != nil {
		return "", err
	}
	if len(available) == 0 {
		return "", nil
	}
	for _, id := range available {
		if id > after {
			return id, nil
		}
	}
	return available[0], nil
}

// Progress summarizes corpus completion.
func (s *Service) Progress(ctx context.Context) (Progress, error) {
	statuses, err := s.ListRecords(ctx)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{Total: len(statuses)}
	for _, rs := range statuses {
		switch rs.Status {
		case StatusCorrected:
			p.Corrected++
		case StatusLocked:
			p.Locked++
		}
	}
	p.Remaining = p.Total - p.Corrected - p.Locked
	if p.Total > 0 {
		p.Percent = float64(p.Corrected) / float64(p.Total) * 100
	}
	return p, nil
}

// Image resolves the source scan for a record, probing the known
// formats in order. It returns the image bytes and the key it was found
// under.
func (s *Service) Image(ctx context.Context, recordID string) ([]byte, string, error) {
	base := record.ImageBase(recordID)
	for _, ext := range ImageExtensions {
		key := PrefixImages + base + ext
		ok, err := s.blobs.Exists(ctx, key)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			continue
		}
		data, err := s.blobs.Read(ctx, key)
		if err != nil {
			return nil, "", err
		}
		return data, key, nil
	}
	return nil, "", core.NotFound(PrefixImages + base)
}

// LoadDocument reads and decodes a record, preferring the corrected
// version when one exists so a re-edit continues from the last save.
func (s *Service) LoadDocument(ctx context.Context, recordID string) (*record.Document, error) {
	for _, prefix := range []string{PrefixCorrected, PrefixRecords} {
		data, err := s.blobs.Read(ctx, prefix+recordID)
		if errors.Is(err, blob.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		doc, err := record.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", recordID, err)
		}
		return doc, nil
	}
	return nil, core.NotFound(PrefixRecords + recordID)
}

// CompareVersions loads both versions of a record for side-by-side
// review. It returns nil when no corrected version exists yet.
func (s *Service) CompareVersions(ctx context.Context, recordID string) (*Comparison, error) {
	original, err := s.blobs.Read(ctx, PrefixRecords+recordID)
	if err != nil {
		return nil, err
	}
	corrected, err := s.blobs.Read(ctx, PrefixCorrected+recordID)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	origDoc, err := record.Decode(original)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", recordID, err)
	}
	corrDoc, err := record.Decode(corrected)
	if err != nil {
		return nil, fmt.Errorf("decode corrected %s: %w", recordID, err)
	}
	origOut, err := origDoc.Encode()
	if err != nil {
		return nil, err
	}
	corrOut, err := corrDoc.Encode()
	if err != nil {
		return nil, err
	}
	return &Comparison{
		RecordID:   recordID,
		Original:   origDoc,
		Corrected:  corrDoc,
		HasChanges: string(origOut) != string(corrOut),
	}, nil
}

// Comparison holds both versions of a record.
type Comparison struct {
	RecordID   string
	Original   *record.Document
	Corrected  *record.Document
	HasChanges bool
}

// SweepStale forcibly removes claims older than olderThan and refreshes
// the worklist. Run periodically, or from the sweeper command.
func (s *Service) SweepStale(ctx context.Context, olderThan time.Duration) ([]register.StaleClaim, error) {
	start := s.now()
	swept, err := s.locks.SweepStale(ctx, olderThan)
	s.metrics.Observe(ctx, "sweep", err == nil, s.now().Sub(start))
	if len(swept) > 0 {
		s.cache.invalidate()
	}
	return swept, err
}

// LiveClaims lists current claims for operational visibility.
func (s *Service) LiveClaims(ctx context.Context) ([]register.ClaimInfo, error) {
	return s.locks.ListLiveClaims(ctx)
}

package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tripflow/platform/pkg/common/logger"
	"github.com/tripflow/platform/pkg/common/models"
	"github.com/tripflow/platform/pkg/trip"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

type fakeStore struct {
	failCreate bool
	nextID     uint
	records    map[uint]*trip.Record
	children   map[uint][]trip.Participant
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, records: make(map[uint]*trip.Record), children: make(map[uint][]trip.Participant)}
}

func (f *fakeStore) CreateRecord(ctx context.Context, rec *trip.Record, participants []trip.Participant) error {
	if f.failCreate {
		return errors.New("storage down")
	}
	rec.ID = f.nextID
	f.nextID++
	rec.Persisted = true
	rec.Status = trip.StatusSubmitted
	f.records[rec.ID] = rec
	f.children[rec.ID] = participants
	return nil
}

func (f *fakeStore) SetArtifact(ctx context.Context, recordID uint, path string, meta map[string]interface{}) error {
	f.records[recordID].Rendered = true
	f.records[recordID].Artifact = path
	return nil
}

func (f *fakeStore) SetDelivered(ctx context.Context, recordID uint) error {
	f.records[recordID].Delivered = true
	return nil
}

type fakeRenderer struct {
	fail  bool
	calls int
}

func (f *fakeRenderer) Render(ctx context.Context, doc Document) (string, map[string]interface{}, error) {
	f.calls++
	if f.fail {
		return "", nil, errors.New("render broke")
	}
	return "/tmp/trip_test.xlsx", map[string]interface{}{"format": "xlsx"}, nil
}

type fakeDeliverer struct {
	fail       bool
	calls      int
	attachment string
	subject    string
	body       string
}

func (f *fakeDeliverer) Deliver(ctx context.Context, attachmentPath, subject, body string) error {
	f.calls++
	f.attachment = attachmentPath
	f.subject = subject
	f.body = body
	if f.fail {
		return errors.New("smtp down")
	}
	return nil
}

func submission() Submission {
	return Submission{
		Identity:  models.Identity{Owner: 100, DisplayName: "Test User", Organization: "Test Org"},
		SportType: "Football",
		EventRank: "International",
		Country:   "Spain",
		City:      "Madrid",
		Participants: []trip.Participant{
			{FullName: "Ivanov Ivan", DateFrom: "25.12.2024", DateTo: "31.12.2024", Position: 1},
		},
	}
}

func TestFinalizeHappyPath(t *testing.T) {
	store := newFakeStore()
	renderer := &fakeRenderer{}
	deliverer := &fakeDeliverer{}
	p := New(store, renderer, deliverer, nil)

	outcome, err := p.Finalize(context.Background(), submission())
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if !outcome.Rendered || !outcome.Delivered {
		t.Fatalf("expected full success, got %+v", outcome)
	}

	rec := store.records[outcome.RecordID]
	if rec == nil || !rec.Persisted || !rec.Rendered || !rec.Delivered {
		t.Fatalf("record flags wrong: %+v", rec)
	}
	if len(store.children[outcome.RecordID]) != 1 {
		t.Fatal("participants not persisted with the record")
	}
	if deliverer.attachment != "/tmp/trip_test.xlsx" {
		t.Fatalf("artifact not attached: %q", deliverer.attachment)
	}
	if !strings.Contains(deliverer.subject, "Madrid") || !strings.Contains(deliverer.body, "Test Org") {
		t.Fatalf("message not composed from submission: %q / %q", deliverer.subject, deliverer.body)
	}
}

func TestFinalizePersistFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.failCreate = true
	renderer := &fakeRenderer{}
	deliverer := &fakeDeliverer{}
	p := New(store, renderer, deliverer, nil)

	_, err := p.Finalize(context.Background(), submission())
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if renderer.calls != 0 || deliverer.calls != 0 {
		t.Fatal("later stages must not run when persist fails")
	}
}

func TestFinalizeRenderFailureIsNonFatal(t *testing.T) {
	store := newFakeStore()
	renderer := &fakeRenderer{fail: true}
	deliverer := &fakeDeliverer{}
	p := New(store, renderer, deliverer, nil)

	outcome, err := p.Finalize(context.Background(), submission())
	if err != nil {
		t.Fatalf("render failure must not fail finalize: %v", err)
	}
	if outcome.Rendered {
		t.Fatal("rendered flag must stay false")
	}
	if !outcome.Delivered {
		t.Fatal("delivery must still be attempted")
	}
	// delivery goes out without an attachment
	if deliverer.attachment != "" {
		t.Fatalf("unexpected attachment %q", deliverer.attachment)
	}

	rec := store.records[outcome.RecordID]
	if !rec.Persisted || rec.Rendered {
		t.Fatalf("record flags wrong after render failure: %+v", rec)
	}
}

func TestFinalizeDeliveryFailureIsNonFatal(t *testing.T) {
	store := newFakeStore()
	renderer := &fakeRenderer{}
	deliverer := &fakeDeliverer{fail: true}
	p := New(store, renderer, deliverer, nil)

	outcome, err := p.Finalize(context.Background(), submission())
	if err != nil {
		t.Fatalf("delivery failure must not fail finalize: %v", err)
	}
	if !outcome.Rendered || outcome.Delivered {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	rec := store.records[outcome.RecordID]
	if !rec.Persisted || !rec.Rendered || rec.Delivered {
		t.Fatalf("record flags wrong after delivery failure: %+v", rec)
	}
}

func TestFinalizeBothSideStagesFail(t *testing.T) {
	store := newFakeStore()
	p := New(store, &fakeRenderer{fail: true}, &fakeDeliverer{fail: true}, nil)

	outcome, err := p.Finalize(context.Background(), submission())
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	rec := store.records[outcome.RecordID]
	if !rec.Persisted || rec.Rendered || rec.Delivered {
		t.Fatalf("persisted record must survive degraded stages: %+v", rec)
	}
}

package intake

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tripflow/platform/pkg/common/logger"
	"github.com/tripflow/platform/pkg/common/models"
	"github.com/tripflow/platform/pkg/pipeline"
	"github.com/tripflow/platform/pkg/trip"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

type fakeSessions struct {
	data map[int64]*WorkingSubmission
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{data: make(map[int64]*WorkingSubmission)}
}

func (f *fakeSessions) Get(ctx context.Context, owner int64) (*WorkingSubmission, error) {
	return f.data[owner], nil
}

func (f *fakeSessions) Put(ctx context.Context, owner int64, ws *WorkingSubmission) error {
	f.data[owner] = ws
	return nil
}

func (f *fakeSessions) Clear(ctx context.Context, owner int64) error {
	delete(f.data, owner)
	return nil
}

type fakeGate struct {
	allowed map[int64]bool
}

func (f *fakeGate) IsSubmissionAllowed(ctx context.Context, owner int64) (bool, error) {
	return f.allowed[owner], nil
}

func (f *fakeGate) Identity(ctx context.Context, owner int64) (models.Identity, error) {
	return models.Identity{Owner: owner, DisplayName: "Test User", Organization: "Test Org"}, nil
}

type fakeDrafts struct {
	nextID  uint
	saved   map[uint]*WorkingSubmission
	names   map[uint]string
	deleted []uint
	failing bool
}

func newFakeDrafts() *fakeDrafts {
	return &fakeDrafts{nextID: 1, saved: make(map[uint]*WorkingSubmission), names: make(map[uint]string)}
}

func (f *fakeDrafts) Save(ctx context.Context, ws *WorkingSubmission, name string) (uint, error) {
	if f.failing {
		return 0, errors.New("storage down")
	}
	id := f.nextID
	f.nextID++
	snapshot := *ws
	snapshot.Participants = append([]Participant(nil), ws.Participants...)
	f.saved[id] = &snapshot
	f.names[id] = name
	return id, nil
}

func (f *fakeDrafts) Load(ctx context.Context, id uint, owner int64) (*WorkingSubmission, error) {
	saved, ok := f.saved[id]
	if !ok || saved.Owner != owner {
		return nil, trip.ErrDraftNotFound
	}
	ws := *saved
	ws.Participants = append([]Participant(nil), saved.Participants...)
	ws.Step = StepParticipants
	ws.ResumedFromDraft = id
	return &ws, nil
}

func (f *fakeDrafts) Delete(ctx context.Context, id uint, owner int64) error {
	if _, ok := f.saved[id]; !ok {
		return trip.ErrDraftNotFound
	}
	delete(f.saved, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeFinalizer struct {
	failPersist bool
	calls       int
	last        pipeline.Submission
}

func (f *fakeFinalizer) Finalize(ctx context.Context, sub pipeline.Submission) (*pipeline.Outcome, error) {
	f.calls++
	f.last = sub
	if f.failPersist {
		return nil, fmt.Errorf("%w: connection refused", pipeline.ErrPersist)
	}
	return &pipeline.Outcome{RecordID: 42, Rendered: true, Delivered: true}, nil
}

func newTestMachine(t *testing.T) (*Machine, *fakeSessions, *fakeDrafts, *fakeFinalizer) {
	t.Helper()
	sessions := newFakeSessions()
	drafts := newFakeDrafts()
	finalizer := &fakeFinalizer{}
	gate := &fakeGate{allowed: map[int64]bool{100: true}}
	machine := NewMachine(sessions, gate, drafts, finalizer, nil, DefaultPrompts())
	return machine, sessions, drafts, finalizer
}

func drive(t *testing.T, m *Machine, owner int64, inputs ...string) *Reply {
	t.Helper()
	ctx := context.Background()
	var reply *Reply
	for _, input := range inputs {
		var err error
		reply, err = m.Input(ctx, owner, input)
		if err != nil {
			t.Fatalf("Input(%q) failed: %v", input, err)
		}
	}
	return reply
}

func TestFullIntakeFlow(t *testing.T) {
	machine, _, _, finalizer := newTestMachine(t)
	ctx := context.Background()

	reply, err := machine.Start(ctx, 100)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if reply.Step != StepSportType {
		t.Fatalf("expected first step %s, got %s", StepSportType, reply.Step)
	}

	reply = drive(t, machine, 100,
		"Football", "International", "Spain", "Madrid",
		"add", "Ivanov Ivan", "25.12.2024", "31.12.2024",
		"done", "submit",
	)

	if !reply.Done {
		t.Fatal("expected terminal reply after submit")
	}
	if reply.Outcome == nil || reply.Outcome.RecordID != 42 {
		t.Fatalf("unexpected outcome: %+v", reply.Outcome)
	}
	if finalizer.calls != 1 {
		t.Fatalf("expected exactly one finalize call, got %d", finalizer.calls)
	}

	sub := finalizer.last
	if sub.SportType != "Football" || sub.EventRank != "International" || sub.Country != "Spain" || sub.City != "Madrid" {
		t.Fatalf("unexpected submission scalars: %+v", sub)
	}
	if len(sub.Participants) != 1 || sub.Participants[0].Position != 1 || sub.Participants[0].FullName != "Ivanov Ivan" {
		t.Fatalf("unexpected participants: %+v", sub.Participants)
	}

	// session is cleared after finalize
	if _, err := machine.Input(ctx, 100, "anything"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after finalize, got %v", err)
	}
}

func TestStartDeniedForUnapprovedOwner(t *testing.T) {
	machine, _, _, _ := newTestMachine(t)
	if _, err := machine.Start(context.Background(), 200); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestStartDiscardsPreviousSession(t *testing.T) {
	machine, sessions, _, _ := newTestMachine(t)
	ctx := context.Background()

	machine.Start(ctx, 100)
	drive(t, machine, 100, "Football", "International")

	machine.Start(ctx, 100)
	ws := sessions.data[100]
	if ws.Step != StepSportType || ws.SportType != "" {
		t.Fatalf("expected a fresh session, got %+v", ws)
	}
}

func TestFieldValidationKeepsState(t *testing.T) {
	machine, sessions, _, _ := newTestMachine(t)
	ctx := context.Background()
	machine.Start(ctx, 100)

	reply := drive(t, machine, 100, "F")
	if reply.Error == "" || reply.Step != StepSportType {
		t.Fatalf("expected re-prompt at sport type, got %+v", reply)
	}
	if sessions.data[100].SportType != "" {
		t.Fatal("rejected input must not be stored")
	}

	reply = drive(t, machine, 100, "  Football  ")
	if reply.Step != StepEventRank {
		t.Fatalf("expected advance to event rank, got %s", reply.Step)
	}
	if sessions.data[100].SportType != "Football" {
		t.Fatalf("expected trimmed value, got %q", sessions.data[100].SportType)
	}
}

func TestInvertedDateRangeRejected(t *testing.T) {
	machine, sessions, _, _ := newTestMachine(t)
	ctx := context.Background()
	machine.Start(ctx, 100)

	reply := drive(t, machine, 100,
		"Football", "International", "Spain", "Madrid",
		"add", "Ivanov Ivan", "31.12.2024", "25.12.2024",
	)
	if reply.Error == "" || reply.Step != StepParticipantDateTo {
		t.Fatalf("expected date-to re-prompt, got %+v", reply)
	}

	ws := sessions.data[100]
	if len(ws.Participants) != 0 {
		t.Fatal("no participant may be appended on a range error")
	}
	// name and start date survive the rejection
	if ws.PendingName != "Ivanov Ivan" || ws.PendingDateFrom != "31.12.2024" {
		t.Fatalf("pending entry lost: %+v", ws)
	}

	reply = drive(t, machine, 100, "31.12.2024")
	if len(sessions.data[100].Participants) != 1 {
		t.Fatal("expected participant appended after corrected date")
	}
	if reply.Step != StepParticipants {
		t.Fatalf("expected return to menu, got %s", reply.Step)
	}
}

func TestSingleTokenNameRejected(t *testing.T) {
	machine, sessions, _, _ := newTestMachine(t)
	ctx := context.Background()
	machine.Start(ctx, 100)

	reply := drive(t, machine, 100,
		"Football", "International", "Spain", "Madrid",
		"add", "Ivanov",
	)
	if reply.Error == "" || reply.Step != StepParticipantName {
		t.Fatalf("expected name re-prompt, got %+v", reply)
	}
	if len(sessions.data[100].Participants) != 0 {
		t.Fatal("list must be unchanged")
	}
}

func TestDoneWithEmptyListRejected(t *testing.T) {
	machine, sessions, _, _ := newTestMachine(t)
	ctx := context.Background()
	machine.Start(ctx, 100)

	reply := drive(t, machine, 100, "Football", "International", "Spain", "Madrid", "done")
	if reply.Error == "" || reply.Step != StepParticipants {
		t.Fatalf("expected rejection at participant menu, got %+v", reply)
	}
	if sessions.data[100].Step != StepParticipants {
		t.Fatal("state must not transition")
	}
}

func TestRemoveKeepsStablePositions(t *testing.T) {
	machine, sessions, _, _ := newTestMachine(t)
	ctx := context.Background()
	machine.Start(ctx, 100)

	drive(t, machine, 100,
		"Football", "International", "Spain", "Madrid",
		"add", "Ivanov Ivan", "25.12.2024", "26.12.2024",
		"add", "Petrov Petr", "25.12.2024", "27.12.2024",
		"remove 1",
		"add", "Sidorov Semen", "25.12.2024", "28.12.2024",
	)

	ws := sessions.data[100]
	if len(ws.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(ws.Participants))
	}
	// positions are never reused after removal
	if ws.Participants[0].Position != 2 || ws.Participants[1].Position != 3 {
		t.Fatalf("unexpected positions: %+v", ws.Participants)
	}

	reply := drive(t, machine, 100, "remove 9")
	if reply.Error == "" || len(sessions.data[100].Participants) != 2 {
		t.Fatalf("out-of-range remove must not mutate the list: %+v", reply)
	}
}

func TestCancelDiscardsSession(t *testing.T) {
	machine, sessions, _, finalizer := newTestMachine(t)
	ctx := context.Background()
	machine.Start(ctx, 100)

	reply := drive(t, machine, 100, "Football", "International", "cancel")
	if !reply.Done {
		t.Fatal("expected terminal reply on cancel")
	}
	if _, ok := sessions.data[100]; ok {
		t.Fatal("session must be discarded")
	}
	if finalizer.calls != 0 {
		t.Fatal("cancel must not reach the pipeline")
	}
}

func TestPersistFailurePreservesSession(t *testing.T) {
	machine, sessions, _, finalizer := newTestMachine(t)
	finalizer.failPersist = true
	ctx := context.Background()
	machine.Start(ctx, 100)

	reply := drive(t, machine, 100,
		"Football", "International", "Spain", "Madrid",
		"add", "Ivanov Ivan", "25.12.2024", "31.12.2024",
		"done", "submit",
	)
	if reply.Done || reply.Error == "" {
		t.Fatalf("expected retry prompt, got %+v", reply)
	}

	ws := sessions.data[100]
	if ws == nil || ws.Step != StepConfirm || len(ws.Participants) != 1 {
		t.Fatalf("working submission must survive a persist failure: %+v", ws)
	}

	finalizer.failPersist = false
	reply = drive(t, machine, 100, "submit")
	if !reply.Done || reply.Outcome == nil {
		t.Fatalf("retry should succeed: %+v", reply)
	}
}

func TestDraftSaveAndResume(t *testing.T) {
	machine, sessions, drafts, _ := newTestMachine(t)
	ctx := context.Background()
	machine.Start(ctx, 100)

	reply := drive(t, machine, 100,
		"Football", "International", "Spain", "Madrid",
		"add", "Ivanov Ivan", "25.12.2024", "26.12.2024",
		"add", "Petrov Petr", "25.12.2024", "27.12.2024",
		"done", "draft", "My trip",
	)
	if !reply.Done || reply.DraftID == 0 {
		t.Fatalf("expected saved draft, got %+v", reply)
	}
	if drafts.names[reply.DraftID] != "My trip" {
		t.Fatalf("draft name not stored: %q", drafts.names[reply.DraftID])
	}
	if _, ok := sessions.data[100]; ok {
		t.Fatal("session must end after draft save")
	}

	resumed, err := machine.Resume(ctx, 100, reply.DraftID)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if resumed.Step != StepParticipants {
		t.Fatalf("drafts must resume at the participant menu, got %s", resumed.Step)
	}
	if len(resumed.Participants) != 2 {
		t.Fatalf("participants not restored: %+v", resumed.Participants)
	}

	// finalizing a resumed session promotes the draft: the row is deleted
	final := drive(t, machine, 100, "done", "submit")
	if !final.Done || final.Outcome == nil {
		t.Fatalf("expected finalize after resume, got %+v", final)
	}
	if len(drafts.deleted) != 1 || drafts.deleted[0] != reply.DraftID {
		t.Fatalf("promoted draft must be deleted, got %v", drafts.deleted)
	}
}

func TestResumeForeignDraftFails(t *testing.T) {
	machine, _, drafts, _ := newTestMachine(t)
	ctx := context.Background()

	ws := NewWorkingSubmission(999)
	ws.SportType, ws.EventRank, ws.Country, ws.City = "Football", "National", "Spain", "Sevilla"
	ws.AppendParticipant("Ivanov Ivan", "25.12.2024", "26.12.2024")
	ws.AppendParticipant("Petrov Petr", "25.12.2024", "27.12.2024")
	id, _ := drafts.Save(ctx, ws, "")

	if _, err := machine.Resume(ctx, 100, id); !errors.Is(err, trip.ErrDraftNotFound) {
		t.Fatalf("foreign draft must read as not found, got %v", err)
	}
}

func TestDraftSaveFailureKeepsSession(t *testing.T) {
	machine, sessions, drafts, _ := newTestMachine(t)
	drafts.failing = true
	ctx := context.Background()
	machine.Start(ctx, 100)

	reply := drive(t, machine, 100,
		"Football", "International", "Spain", "Madrid",
		"add", "Ivanov Ivan", "25.12.2024", "31.12.2024",
		"done", "draft", "skip",
	)
	if reply.Done || reply.Error == "" {
		t.Fatalf("expected retry prompt on draft save failure, got %+v", reply)
	}
	if sessions.data[100] == nil {
		t.Fatal("session must survive a draft persist failure")
	}
}

func TestConfirmRejectsUnknownInput(t *testing.T) {
	machine, sessions, _, finalizer := newTestMachine(t)
	ctx := context.Background()
	machine.Start(ctx, 100)

	reply := drive(t, machine, 100,
		"Football", "International", "Spain", "Madrid",
		"add", "Ivanov Ivan", "25.12.2024", "31.12.2024",
		"done", "yes please",
	)
	if reply.Error == "" || reply.Step != StepConfirm {
		t.Fatalf("expected rejection at confirm, got %+v", reply)
	}
	if sessions.data[100].Step != StepConfirm || finalizer.calls != 0 {
		t.Fatal("invalid confirm input must not change state")
	}
}

func TestInputWithoutSession(t *testing.T) {
	machine, _, _, _ := newTestMachine(t)
	if _, err := machine.Input(context.Background(), 100, "hello"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

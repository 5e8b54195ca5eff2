package conversations

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ivankudzin/shipyard/internal/domain/model"
	pgrepo "github.com/ivankudzin/shipyard/internal/repo/postgres"
)

const (
	alice = "11111111-1111-4111-8111-111111111111"
	bob   = "22222222-2222-4222-8222-222222222222"
	carol = "33333333-3333-4333-8333-333333333333"
	dave  = "44444444-4444-4444-8444-444444444444"
	erin  = "e0a1b2c3-d4e5-4f60-8a7b-9c0d1e2f3a4b"
)

type fakeStore struct {
	mu            sync.Mutex
	seq           int
	base          time.Time
	conversations map[string]model.Conversation
	participants  map[string][]string
	profiles      map[string]model.ProfileSummary
	lookupErr     error
	createCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		base:          time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
		conversations: make(map[string]model.Conversation),
		participants:  make(map[string][]string),
		profiles: map[string]model.ProfileSummary{
			alice: {ID: alice, DisplayName: "Alice"},
			bob:   {ID: bob, DisplayName: "Bob", PrimaryPhotoURL: "https://cdn.example/bob.jpg"},
			carol: {ID: carol, DisplayName: "Carol"},
			dave:  {ID: dave, DisplayName: "Dave"},
			erin:  {ID: erin, DisplayName: "Erin"},
		},
	}
}

func (f *fakeStore) nextID() string {
	f.seq++
	ids := []string{
		"aaaaaaaa-0000-4000-8000-000000000001",
		"aaaaaaaa-0000-4000-8000-000000000002",
		"aaaaaaaa-0000-4000-8000-000000000003",
		"aaaaaaaa-0000-4000-8000-000000000004",
	}
	return ids[(f.seq-1)%len(ids)]
}

func (f *fakeStore) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return false, f.lookupErr
	}
	for _, id := range f.participants[conversationID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListForUser(_ context.Context, userID string) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Conversation, 0)
	for id, members := range f.participants {
		for _, m := range members {
			if m == userID {
				out = append(out, f.conversations[id])
			}
		}
	}
	return out, nil
}

func (f *fakeStore) FindShared(_ context.Context, userID string, ids []string) (model.Conversation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var (
		best  model.Conversation
		found bool
	)
	for _, id := range ids {
		for _, m := range f.participants[id] {
			if m != userID {
				continue
			}
			c := f.conversations[id]
			if !found || c.CreatedAt.Before(best.CreatedAt) {
				best, found = c, true
			}
		}
	}
	return best, found, nil
}

func (f *fakeStore) CreateWithParticipants(_ context.Context, initiatorID, otherID string) (model.Conversation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if _, ok := f.profiles[otherID]; !ok {
		return model.Conversation{}, false, pgrepo.ErrUnknownUser
	}
	c := model.Conversation{ID: f.nextID(), CreatedAt: f.base.Add(time.Duration(f.seq) * time.Minute)}
	f.conversations[c.ID] = c
	f.participants[c.ID] = []string{initiatorID, otherID}
	return c, true, nil
}

func (f *fakeStore) Get(_ context.Context, conversationID string) (model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[conversationID]
	if !ok {
		return model.Conversation{}, pgrepo.ErrConversationNotFound
	}
	return c, nil
}

func (f *fakeStore) OtherParticipants(_ context.Context, conversationID, userID string) ([]model.ProfileSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.ProfileSummary, 0)
	for _, id := range f.participants[conversationID] {
		if id != userID {
			out = append(out, f.profiles[id])
		}
	}
	return out, nil
}

func (f *fakeStore) AddParticipant(_ context.Context, conversationID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.profiles[userID]; !ok {
		return pgrepo.ErrUnknownUser
	}
	for _, id := range f.participants[conversationID] {
		if id == userID {
			return nil
		}
	}
	f.participants[conversationID] = append(f.participants[conversationID], userID)
	return nil
}

type fakeLastMessages map[string]*model.LastMessage

func (f fakeLastMessages) Last(_ context.Context, conversationID string) (*model.LastMessage, error) {
	return f[conversationID], nil
}

func TestCreateOrFindReturnsSameConversationTwice(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeLastMessages{})
	ctx := context.Background()

	first, created, err := svc.CreateOrFind(ctx, alice, bob)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if !created {
		t.Fatalf("expected first call to create")
	}

	second, created, err := svc.CreateOrFind(ctx, alice, bob)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatalf("expected second call to find existing conversation")
	}
	if first.ID != second.ID {
		t.Fatalf("unexpected conversation ids: %s != %s", first.ID, second.ID)
	}

	fromOtherSide, _, err := svc.CreateOrFind(ctx, bob, alice)
	if err != nil {
		t.Fatalf("reverse create: %v", err)
	}
	if fromOtherSide.ID != first.ID {
		t.Fatalf("reverse direction should find the same conversation")
	}
	if store.createCalls != 1 {
		t.Fatalf("expected exactly one create, got %d", store.createCalls)
	}
}

func TestCreateOrFindRejectsSelf(t *testing.T) {
	svc := NewService(newFakeStore(), fakeLastMessages{})

	if _, _, err := svc.CreateOrFind(context.Background(), alice, alice); !errors.Is(err, ErrSelfTarget) {
		t.Fatalf("expected ErrSelfTarget, got %v", err)
	}
}

func TestCreateOrFindRejectsSelfInAnyCase(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeLastMessages{})
	ctx := context.Background()

	if _, _, err := svc.CreateOrFind(ctx, erin, bob); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	calls := store.createCalls

	for _, other := range []string{strings.ToUpper(erin), " " + strings.ToUpper(erin) + " ", "{" + erin + "}"} {
		if _, _, err := svc.CreateOrFind(ctx, erin, other); !errors.Is(err, ErrSelfTarget) {
			t.Fatalf("other %q: expected ErrSelfTarget, got %v", other, err)
		}
	}
	if store.createCalls != calls {
		t.Fatalf("self target must not reach the store")
	}
}

func TestCreateOrFindCanonicalizesOtherUser(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeLastMessages{})
	ctx := context.Background()

	first, created, err := svc.CreateOrFind(ctx, alice, strings.ToUpper(erin))
	if err != nil || !created {
		t.Fatalf("create: created=%v err=%v", created, err)
	}
	again, created, err := svc.CreateOrFind(ctx, erin, alice)
	if err != nil {
		t.Fatalf("find from other side: %v", err)
	}
	if created || again.ID != first.ID {
		t.Fatalf("expected the same conversation, got %s and %s", first.ID, again.ID)
	}
}

func TestCreateOrFindValidatesOtherUser(t *testing.T) {
	svc := NewService(newFakeStore(), fakeLastMessages{})
	ctx := context.Background()

	if _, _, err := svc.CreateOrFind(ctx, alice, " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty id, got %v", err)
	}
	if _, _, err := svc.CreateOrFind(ctx, alice, "not-a-uuid"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for malformed id, got %v", err)
	}
	if _, _, err := svc.CreateOrFind(ctx, alice, "99999999-9999-4999-8999-999999999999"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestCreateOrFindPicksEarliestSharedConversation(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeLastMessages{})
	ctx := context.Background()

	first, _, err := svc.CreateOrFind(ctx, alice, bob)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// A later duplicate, as left behind by older clients.
	dup := model.Conversation{ID: "bbbbbbbb-0000-4000-8000-000000000009", CreatedAt: first.CreatedAt.Add(time.Hour)}
	store.conversations[dup.ID] = dup
	store.participants[dup.ID] = []string{bob, alice}

	got, _, err := svc.CreateOrFind(ctx, alice, bob)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("expected earliest conversation %s, got %s", first.ID, got.ID)
	}
}

func TestAuthorizeCollapsesFailuresToDenied(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeLastMessages{})
	ctx := context.Background()

	conv, _, err := svc.CreateOrFind(ctx, alice, bob)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if res, _ := svc.Authorize(ctx, conv.ID, alice); res != Authorized {
		t.Fatalf("expected participant to be authorized")
	}
	if res, _ := svc.Authorize(ctx, conv.ID, carol); res != Denied {
		t.Fatalf("expected non-participant to be denied")
	}
	if res, _ := svc.Authorize(ctx, "garbage", alice); res != Denied {
		t.Fatalf("expected malformed id to be denied")
	}

	store.lookupErr = errors.New("connection reset")
	res, err := svc.Authorize(ctx, conv.ID, alice)
	if res != Denied {
		t.Fatalf("expected lookup failure to be denied")
	}
	if err == nil {
		t.Fatalf("expected lookup error to be reported for logging")
	}
}

func TestListOrdersByLastActivity(t *testing.T) {
	store := newFakeStore()
	last := fakeLastMessages{}
	svc := NewService(store, last)
	ctx := context.Background()

	withBob, _, _ := svc.CreateOrFind(ctx, alice, bob)
	withCarol, _, _ := svc.CreateOrFind(ctx, alice, carol)
	withDave, _, _ := svc.CreateOrFind(ctx, alice, dave)

	last[withBob.ID] = &model.LastMessage{Content: "latest", CreatedAt: store.base.Add(24 * time.Hour)}
	last[withCarol.ID] = &model.LastMessage{Content: "older", CreatedAt: store.base.Add(2 * time.Hour)}

	items, err := svc.List(ctx, alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("unexpected count: %d", len(items))
	}
	if items[0].ID != withBob.ID || items[1].ID != withCarol.ID || items[2].ID != withDave.ID {
		t.Fatalf("unexpected order: %s, %s, %s", items[0].ID, items[1].ID, items[2].ID)
	}
	if items[0].Participant == nil || items[0].Participant.DisplayName != "Bob" {
		t.Fatalf("unexpected participant preview: %+v", items[0].Participant)
	}
	if items[2].LastMessage != nil {
		t.Fatalf("expected no last message for empty conversation")
	}
}

func TestGetRequiresParticipant(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeLastMessages{})
	ctx := context.Background()

	conv, _, _ := svc.CreateOrFind(ctx, alice, bob)

	detail, err := svc.Get(ctx, conv.ID, alice)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(detail.Participants) != 1 || detail.Participants[0].ID != bob {
		t.Fatalf("unexpected participants: %+v", detail.Participants)
	}

	if _, err := svc.Get(ctx, conv.ID, carol); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAddParticipantExtendsConversation(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeLastMessages{})
	ctx := context.Background()

	conv, _, _ := svc.CreateOrFind(ctx, alice, bob)

	if err := svc.AddParticipant(ctx, conv.ID, carol, dave); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected outsider to be forbidden, got %v", err)
	}
	if err := svc.AddParticipant(ctx, conv.ID, bob, carol); err != nil {
		t.Fatalf("add participant: %v", err)
	}
	if err := svc.AddParticipant(ctx, conv.ID, bob, carol); err != nil {
		t.Fatalf("re-adding participant should be a no-op: %v", err)
	}

	detail, err := svc.Get(ctx, conv.ID, carol)
	if err != nil {
		t.Fatalf("get as new participant: %v", err)
	}
	if len(detail.Participants) != 2 {
		t.Fatalf("expected two other participants, got %d", len(detail.Participants))
	}

	if err := svc.AddParticipant(ctx, conv.ID, bob, strings.ToUpper(erin)); err != nil {
		t.Fatalf("add participant in upper case: %v", err)
	}
	if ok, _ := store.IsParticipant(ctx, conv.ID, erin); !ok {
		t.Fatalf("participant should be stored in canonical form")
	}
}

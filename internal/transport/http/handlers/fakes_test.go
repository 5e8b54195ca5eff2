package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/shipyard/internal/domain/model"
	pgrepo "github.com/ivankudzin/shipyard/internal/repo/postgres"
	authsvc "github.com/ivankudzin/shipyard/internal/services/auth"
)

const (
	userAva  = "11111111-1111-4111-8111-111111111111"
	userBen  = "22222222-2222-4222-8222-222222222222"
	userCleo = "33333333-3333-4333-8333-333333333333"
)

// memoryStore backs the conversation, message and profile services in handler tests.
type memoryStore struct {
	mu           sync.Mutex
	now          time.Time
	seq          int
	profiles     map[string]model.Profile
	answers      map[string]map[string]string
	convs        map[string]model.Conversation
	participants map[string][]string
	messages     map[string][]model.Message
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		now:          time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		profiles:     make(map[string]model.Profile),
		answers:      make(map[string]map[string]string),
		convs:        make(map[string]model.Conversation),
		participants: make(map[string][]string),
		messages:     make(map[string][]model.Message),
	}
}

func (s *memoryStore) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

func (s *memoryStore) nextID() string {
	s.seq++
	return fmt.Sprintf("aaaaaaaa-0000-4000-8000-%012d", s.seq)
}

func (s *memoryStore) addProfile(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *memoryStore) addConversation(members ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID()
	s.convs[id] = model.Conversation{ID: id, CreatedAt: s.tick()}
	s.participants[id] = append([]string(nil), members...)
	return id
}

func (s *memoryStore) summary(userID string) model.ProfileSummary {
	p := s.profiles[userID]
	return model.ProfileSummary{ID: userID, DisplayName: p.DisplayName, PrimaryPhotoURL: p.PrimaryPhotoURL}
}

func (s *memoryStore) isMember(convID, userID string) bool {
	for _, member := range s.participants[convID] {
		if member == userID {
			return true
		}
	}
	return false
}

func (s *memoryStore) IsParticipant(_ context.Context, convID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isMember(convID, userID), nil
}

func (s *memoryStore) ListForUser(_ context.Context, userID string) ([]model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Conversation, 0)
	for id, conv := range s.convs {
		if s.isMember(id, userID) {
			out = append(out, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) FindShared(_ context.Context, userID string, ids []string) (model.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *model.Conversation
	for _, id := range ids {
		if !s.isMember(id, userID) {
			continue
		}
		conv := s.convs[id]
		if best == nil || conv.CreatedAt.Before(best.CreatedAt) {
			best = &conv
		}
	}
	if best == nil {
		return model.Conversation{}, false, nil
	}
	return *best, true, nil
}

func (s *memoryStore) CreateWithParticipants(_ context.Context, initiatorID, otherID string) (model.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[otherID]; !ok {
		return model.Conversation{}, false, pgrepo.ErrUnknownUser
	}
	id := s.nextID()
	conv := model.Conversation{ID: id, CreatedAt: s.tick()}
	s.convs[id] = conv
	s.participants[id] = []string{initiatorID, otherID}
	return conv, true, nil
}

func (s *memoryStore) Get(_ context.Context, convID string) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[convID]
	if !ok {
		return model.Conversation{}, pgrepo.ErrConversationNotFound
	}
	return conv, nil
}

func (s *memoryStore) OtherParticipants(_ context.Context, convID, userID string) ([]model.ProfileSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ProfileSummary, 0)
	for _, member := range s.participants[convID] {
		if member != userID {
			out = append(out, s.summary(member))
		}
	}
	return out, nil
}

func (s *memoryStore) AddParticipant(_ context.Context, convID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[userID]; !ok {
		return pgrepo.ErrUnknownUser
	}
	if !s.isMember(convID, userID) {
		s.participants[convID] = append(s.participants[convID], userID)
	}
	return nil
}

func (s *memoryStore) Last(_ context.Context, convID string) (*model.LastMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.messages[convID]
	if len(items) == 0 {
		return nil, nil
	}
	last := items[len(items)-1]
	return &model.LastMessage{Content: last.Content, CreatedAt: last.CreatedAt}, nil
}

func (s *memoryStore) List(_ context.Context, convID string, since time.Time) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, 0)
	for _, msg := range s.messages[convID] {
		if since.IsZero() || msg.CreatedAt.After(since) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *memoryStore) Insert(_ context.Context, convID, senderID, content string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := model.Message{
		ID:             s.nextID(),
		ConversationID: convID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      s.tick(),
		Sender:         s.summary(senderID),
	}
	s.messages[convID] = append(s.messages[convID], msg)
	return msg, nil
}

func (s *memoryStore) GetProfile(_ context.Context, userID string) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return model.Profile{}, pgrepo.ErrProfileNotFound
	}
	return p, nil
}

// profileView adapts memoryStore to the profile service, whose Get collides
// with the conversation store's Get.
type profileView struct {
	*memoryStore
}

func (v profileView) Get(ctx context.Context, userID string) (model.Profile, error) {
	return v.memoryStore.GetProfile(ctx, userID)
}

func (v profileView) Upsert(_ context.Context, p model.Profile) (model.Profile, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if existing, ok := v.profiles[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = p.UpdatedAt
	}
	v.profiles[p.ID] = p
	return p, nil
}

func (v profileView) Search(_ context.Context, filter pgrepo.SearchFilter) ([]model.Profile, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]model.Profile, 0)
	for _, p := range v.profiles {
		if filter.Country != "" && !strings.EqualFold(p.LocationCountry, filter.Country) {
			continue
		}
		if filter.City != "" && !strings.EqualFold(p.LocationCity, filter.City) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v profileView) ReplaceAnswers(_ context.Context, userID string, answers map[string]string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.profiles[userID]; !ok {
		v.profiles[userID] = model.Profile{ID: userID}
	}
	copied := make(map[string]string, len(answers))
	for key, text := range answers {
		copied[key] = text
	}
	v.answers[userID] = copied
	return nil
}

func (v profileView) ListAnswers(_ context.Context, userID string) ([]model.ProfileAnswer, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	keys := make([]string, 0, len(v.answers[userID]))
	for key := range v.answers[userID] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]model.ProfileAnswer, 0, len(keys))
	for _, key := range keys {
		out = append(out, model.ProfileAnswer{QuestionKey: key, AnswerText: v.answers[userID][key]})
	}
	return out, nil
}

func withIdentity(r *http.Request, userID string) *http.Request {
	return r.WithContext(authsvc.WithIdentity(r.Context(), authsvc.Identity{UserID: userID}))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
}

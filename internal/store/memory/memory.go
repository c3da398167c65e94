// Package memory is an in-process store.Repository for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/quill/internal/scoring"
	"github.com/MikeSquared-Agency/quill/internal/store"
	"github.com/MikeSquared-Agency/quill/internal/style"
)

type snapshot struct {
	corpus style.Corpus
	at     time.Time
}

type scoreKey struct {
	user     uuid.UUID
	category string
}

type Store struct {
	mu sync.Mutex

	users       map[uuid.UUID]string
	identifiers map[string]uuid.UUID
	pairs       map[uuid.UUID][]style.EmailPair
	profiles    map[uuid.UUID][]style.StyleProfile
	synthetic   []*style.SyntheticEmail
	byID        map[uuid.UUID]*style.SyntheticEmail
	generated   map[uuid.UUID][]style.GeneratedEmail
	snapshots   map[uuid.UUID][]snapshot
	scores      map[scoreKey]store.CategoryScore

	now func() time.Time
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		users:       map[uuid.UUID]string{},
		identifiers: map[string]uuid.UUID{},
		pairs:       map[uuid.UUID][]style.EmailPair{},
		profiles:    map[uuid.UUID][]style.StyleProfile{},
		byID:        map[uuid.UUID]*style.SyntheticEmail{},
		generated:   map[uuid.UUID][]style.GeneratedEmail{},
		snapshots:   map[uuid.UUID][]snapshot{},
		scores:      map[scoreKey]store.CategoryScore{},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) GetOrCreateUser(_ context.Context, identifier string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, err := uuid.Parse(strings.TrimSpace(identifier)); err == nil {
		if _, ok := s.users[id]; !ok {
			return uuid.Nil, store.ErrNotFound
		}
		return id, nil
	}
	key := store.NormalizeIdentifier(identifier)
	if key == "" {
		return uuid.Nil, store.ErrNotFound
	}
	if id, ok := s.identifiers[key]; ok {
		return id, nil
	}
	id := uuid.New()
	s.users[id] = key
	s.identifiers[key] = id
	return id, nil
}

func (s *Store) ResolveUser(_ context.Context, identifier string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, err := uuid.Parse(strings.TrimSpace(identifier)); err == nil {
		if _, ok := s.users[id]; ok {
			return id, nil
		}
		return uuid.Nil, store.ErrNotFound
	}
	if id, ok := s.identifiers[store.NormalizeIdentifier(identifier)]; ok {
		return id, nil
	}
	return uuid.Nil, store.ErrNotFound
}

func (s *Store) InsertEmailPairs(_ context.Context, userID uuid.UUID, pairs []style.EmailPair) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range pairs {
		p.ID = uuid.New()
		s.pairs[userID] = append(s.pairs[userID], p)
	}
	return len(pairs), nil
}

func (s *Store) ListEmailPairs(_ context.Context, userID uuid.UUID) ([]style.EmailPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]style.EmailPair(nil), s.pairs[userID]...), nil
}

func (s *Store) InsertStyleProfile(_ context.Context, userID uuid.UUID, p style.StyleProfile) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = uuid.New()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	p.Categories = append([]style.Category(nil), p.Categories...)
	s.profiles[userID] = append(s.profiles[userID], p)
	return p.ID, nil
}

// LatestStyleProfile returns the newest profile; on equal timestamps the one
// inserted last wins.
func (s *Store) LatestStyleProfile(_ context.Context, userID uuid.UUID) (*style.StyleProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.profiles[userID]
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	best := 0
	for i := range list {
		if !list[i].CreatedAt.Before(list[best].CreatedAt) {
			best = i
		}
	}
	p := list[best]
	return &p, nil
}

func (s *Store) InsertSyntheticEmails(_ context.Context, userID uuid.UUID, corpus style.Corpus) ([]style.SyntheticEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []style.SyntheticEmail
	for _, ce := range corpus {
		for _, content := range ce.Emails {
			out = append(out, *s.insertLocked(userID, ce.Category, content, nil))
		}
	}
	return out, nil
}

func (s *Store) InsertSyntheticEmail(_ context.Context, userID uuid.UUID, category, content string, lineage *uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(userID, category, content, lineage).ID, nil
}

func (s *Store) insertLocked(userID uuid.UUID, category, content string, lineage *uuid.UUID) *style.SyntheticEmail {
	now := s.now()
	rec := &style.SyntheticEmail{
		ID:        uuid.New(),
		UserID:    userID,
		Category:  category,
		Content:   content,
		Status:    style.StatusPending,
		Lineage:   lineage,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.synthetic = append(s.synthetic, rec)
	s.byID[rec.ID] = rec
	return rec
}

func (s *Store) GetSyntheticEmail(_ context.Context, id uuid.UUID) (*style.SyntheticEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (s *Store) UpdateSyntheticEmailFeedback(_ context.Context, u store.FeedbackUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lockPending(u.ID, u.UserID, u.Version)
	if err != nil {
		return err
	}
	rec.Approved = u.Approved
	rec.Status = style.StatusPending
	if u.Approved {
		rec.Status = style.StatusApproved
	}
	rec.Rating = u.Rating
	rec.Feedback = u.Comments
	rec.Version++
	rec.UpdatedAt = s.now()
	return nil
}

func (s *Store) ReplaceSyntheticEmail(_ context.Context, r store.Replacement) (*style.SyntheticEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orig, err := s.lockPending(r.OriginalID, r.UserID, r.Version)
	if err != nil {
		return nil, err
	}
	lineage := orig.ID
	next := s.insertLocked(r.UserID, orig.Category, r.Content, &lineage)

	orig.Status = style.StatusReplaced
	orig.Approved = false
	orig.Rating = r.Rating
	orig.Feedback = r.Comments
	orig.Version++
	orig.UpdatedAt = next.CreatedAt

	out := *next
	return &out, nil
}

func (s *Store) lockPending(id, userID uuid.UUID, version int) (*style.SyntheticEmail, error) {
	rec, ok := s.byID[id]
	if !ok || rec.UserID != userID {
		return nil, store.ErrNotFound
	}
	if rec.Version != version || rec.Status != style.StatusPending {
		return nil, store.ErrConflict
	}
	return rec, nil
}

func (s *Store) ListSyntheticEmails(_ context.Context, userID uuid.UUID, category string) ([]style.SyntheticEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []style.SyntheticEmail
	for _, rec := range s.synthetic {
		if rec.UserID != userID || (category != "" && rec.Category != category) {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *Store) ApprovedSyntheticEmails(_ context.Context, userID uuid.UUID) (style.Corpus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approvedLocked(userID), nil
}

func (s *Store) approvedLocked(userID uuid.UUID) style.Corpus {
	var corpus style.Corpus
	index := map[string]int{}
	for _, rec := range s.synthetic {
		if rec.UserID != userID || rec.Status != style.StatusApproved {
			continue
		}
		i, ok := index[rec.Category]
		if !ok {
			i = len(corpus)
			index[rec.Category] = i
			corpus = append(corpus, style.CategoryEmails{Category: rec.Category})
		}
		corpus[i].Emails = append(corpus[i].Emails, rec.Content)
	}
	return corpus
}

func (s *Store) InsertGeneratedEmail(_ context.Context, userID uuid.UUID, e style.GeneratedEmail) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = uuid.New()
	e.UserID = userID
	e.CreatedAt = s.now()
	e.KeyPoints = append([]string(nil), e.KeyPoints...)
	s.generated[userID] = append(s.generated[userID], e)
	return e.ID, nil
}

func (s *Store) ListGeneratedEmails(_ context.Context, userID uuid.UUID) ([]style.GeneratedEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]style.GeneratedEmail(nil), s.generated[userID]...), nil
}

func (s *Store) SaveStyleSnapshot(_ context.Context, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	corpus := s.approvedLocked(userID)
	if corpus.Total() == 0 {
		return false, nil
	}
	s.snapshots[userID] = append(s.snapshots[userID], snapshot{corpus: corpus, at: s.now()})
	return true, nil
}

func (s *Store) GetStyleSnapshot(_ context.Context, userID uuid.UUID) (style.Corpus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.snapshots[userID]
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	return list[len(list)-1].corpus, nil
}

func (s *Store) GetCategoryScore(_ context.Context, userID uuid.UUID, category string) (*store.CategoryScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scores[scoreKey{userID, category}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sc, nil
}

func (s *Store) RecordCategoryReview(_ context.Context, r store.ScoreReview) (*store.CategoryScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scoreKey{r.UserID, r.Category}
	tally := scoring.NewTally()
	if sc, ok := s.scores[key]; ok {
		tally = scoring.Tally{Score: sc.Score, Approvals: sc.Approvals, Rejections: sc.Rejections}
	}
	tally = tally.Record(r.Approved, r.Rating)

	sc := store.CategoryScore{
		UserID:     r.UserID,
		Category:   r.Category,
		Score:      tally.Score,
		Approvals:  tally.Approvals,
		Rejections: tally.Rejections,
		UpdatedAt:  s.now(),
	}
	s.scores[key] = sc
	return &sc, nil
}

func (s *Store) ListCategoryScores(_ context.Context, userID uuid.UUID) ([]store.CategoryScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.CategoryScore
	for k, sc := range s.scores {
		if k.user == userID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

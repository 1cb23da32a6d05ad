package waitlist

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/seanlongden/lead-formatter-waitlist/databases"
	"github.com/seanlongden/lead-formatter-waitlist/events"
	"github.com/seanlongden/lead-formatter-waitlist/mailer"
	"github.com/seanlongden/lead-formatter-waitlist/models"
)

// memoryStore mimics the unique indexes and single-document atomicity of the Mongo stores.
type memoryStore struct {
	mu        sync.Mutex
	users     map[primitive.ObjectID]*models.WaitlistUser
	referrals []models.Referral

	casConflicts int
	incrementErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[primitive.ObjectID]*models.WaitlistUser{}}
}

func (m *memoryStore) findLocked(match func(*models.WaitlistUser) bool) (*models.WaitlistUser, error) {
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memoryStore) FindByEmail(_ context.Context, email string) (*models.WaitlistUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(func(u *models.WaitlistUser) bool { return u.Email == email })
}

func (m *memoryStore) FindByReferralCode(_ context.Context, code string, verifiedOnly bool) (*models.WaitlistUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(func(u *models.WaitlistUser) bool {
		return u.ReferralCode == code && (!verifiedOnly || u.EmailVerified)
	})
}

func (m *memoryStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.WaitlistUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *u
	return &cp, nil
}

func (m *memoryStore) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.WaitlistUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WaitlistUser
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memoryStore) FindByConsumedToken(_ context.Context, tokenHash string) (*models.WaitlistUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(func(u *models.WaitlistUser) bool {
		return u.EmailVerified && u.ConsumedTokenHash == tokenHash
	})
}

func (m *memoryStore) ReferralCodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.findLocked(func(u *models.WaitlistUser) bool { return u.ReferralCode == code })
	return err == nil, nil
}

func (m *memoryStore) InsertOne(_ context.Context, user models.WaitlistUser) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email || u.ReferralCode == user.ReferralCode {
			return primitive.NilObjectID, fmt.Errorf("E11000: %w", databases.ErrDuplicateKey)
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	m.users[user.ID] = &user
	return user.ID, nil
}

func (m *memoryStore) ConsumeVerificationToken(_ context.Context, tokenHash string, now time.Time) (*models.WaitlistUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.EmailVerified || u.VerificationToken != tokenHash || u.VerificationTokenExpires == nil || !u.VerificationTokenExpires.After(now) {
			continue
		}
		u.EmailVerified = true
		u.ConsumedTokenHash = tokenHash
		u.VerificationToken = ""
		u.VerificationTokenExpires = nil
		u.UpdatedAt = now
		cp := *u
		return &cp, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memoryStore) ReplaceVerificationToken(_ context.Context, id primitive.ObjectID, tokenHash string, expires, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.EmailVerified {
		return mongo.ErrNoDocuments
	}
	u.VerificationToken = tokenHash
	u.VerificationTokenExpires = &expires
	u.UpdatedAt = now
	return nil
}

func (m *memoryStore) IncrementReferralCount(_ context.Context, id primitive.ObjectID, now time.Time) (*models.WaitlistUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrementErr != nil {
		return nil, m.incrementErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	u.ReferralCount++
	u.UpdatedAt = now
	cp := *u
	return &cp, nil
}

func (m *memoryStore) CompareAndSetTier(_ context.Context, id primitive.ObjectID, expectedTier, newTier int, unlocked [5]*time.Time, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.CurrentTier != expectedTier {
		m.casConflicts++
		return false, nil
	}
	u.CurrentTier = newTier
	current := u.UnlockedAt()
	for tier := 1; tier < len(unlocked); tier++ {
		if unlocked[tier] != nil {
			current[tier] = unlocked[tier]
		}
	}
	u.SetUnlockedAt(current)
	u.UpdatedAt = now
	return true, nil
}

func (m *memoryStore) MarkSynced(_ context.Context, userID, subscriberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return err
	}
	if u, ok := m.users[id]; ok {
		u.ConvertkitSynced = true
		u.ConvertkitSubscriberID = subscriberID
	}
	return nil
}

func (m *memoryStore) sorted(match func(*models.WaitlistUser) bool, less func(a, b models.WaitlistUser) bool) []models.WaitlistUser {
	var out []models.WaitlistUser
	for _, u := range m.users {
		if match(u) {
			out = append(out, *u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (m *memoryStore) FindUnsynced(_ context.Context, limit int64) ([]models.WaitlistUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(
		func(u *models.WaitlistUser) bool { return u.EmailVerified && !u.ConvertkitSynced },
		func(a, b models.WaitlistUser) bool { return a.CreatedAt.Before(b.CreatedAt) },
	)
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) FindPendingCredits(_ context.Context, before time.Time, limit int64) ([]models.WaitlistUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(
		func(u *models.WaitlistUser) bool {
			return u.EmailVerified && u.ReferralCreditPending && !u.UpdatedAt.After(before)
		},
		func(a, b models.WaitlistUser) bool { return a.CreatedAt.Before(b.CreatedAt) },
	)
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) ClearCreditPending(_ context.Context, id primitive.ObjectID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.ReferralCreditPending = false
		u.UpdatedAt = now
	}
	return nil
}

func (m *memoryStore) setIncrementErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementErr = err
}

func (m *memoryStore) referralCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.referrals)
}

func (m *memoryStore) CountUsers(_ context.Context, verified *bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if verified == nil || u.EmailVerified == *verified {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) TopReferrers(_ context.Context, limit int64) ([]models.WaitlistUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(
		func(u *models.WaitlistUser) bool { return u.EmailVerified && u.ReferralCount > 0 },
		func(a, b models.WaitlistUser) bool { return a.ReferralCount > b.ReferralCount },
	)
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) List(_ context.Context, page, limit int, _ bson.D) ([]models.WaitlistUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(
		func(*models.WaitlistUser) bool { return true },
		func(a, b models.WaitlistUser) bool { return a.CreatedAt.After(b.CreatedAt) },
	)
	start := (page - 1) * limit
	if start >= len(out) {
		return nil, nil
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

func (m *memoryStore) ListVerified(_ context.Context) ([]models.WaitlistUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(
		func(u *models.WaitlistUser) bool { return u.EmailVerified },
		func(a, b models.WaitlistUser) bool { return a.CreatedAt.After(b.CreatedAt) },
	), nil
}

func (m *memoryStore) TierBreakdown(_ context.Context) (map[int]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]int64{}
	for _, u := range m.users {
		if u.EmailVerified {
			out[u.CurrentTier]++
		}
	}
	return out, nil
}

// referralStore shares the user store's lock so the two behave like one database.
type referralStore struct {
	m *memoryStore
}

func (r referralStore) InsertOne(_ context.Context, referral models.Referral) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.referrals {
		if existing.ReferredID == referral.ReferredID {
			return fmt.Errorf("E11000 referredId: %w", databases.ErrDuplicateKey)
		}
	}
	if referral.ID.IsZero() {
		referral.ID = primitive.NewObjectID()
	}
	r.m.referrals = append(r.m.referrals, referral)
	return nil
}

func (r referralStore) FindByReferrer(_ context.Context, referrerID primitive.ObjectID, limit int64) ([]models.Referral, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Referral
	for i := len(r.m.referrals) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if r.m.referrals[i].ReferrerID == referrerID {
			out = append(out, r.m.referrals[i])
		}
	}
	return out, nil
}

func (r referralStore) DeleteByReferred(_ context.Context, referredID primitive.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	kept := r.m.referrals[:0]
	for _, existing := range r.m.referrals {
		if existing.ReferredID != referredID {
			kept = append(kept, existing)
		}
	}
	r.m.referrals = kept
	return nil
}

func (r referralStore) CountDocuments(context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.m.referrals)), nil
}

// recordingBus collects published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) Subscribe(events.Handler) error { return nil }
func (b *recordingBus) Close() error                   { return nil }

func (b *recordingBus) ofType(t events.Type) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// recordingMailer collects sent messages.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (r *recordingMailer) Name() string { return "recording" }

func (r *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingMailer) messages() []mailer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mailer.Message(nil), r.sent...)
}

// withSubject filters sent messages by subject; delivery order is not fixed.
func (r *recordingMailer) withSubject(subject string) []mailer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []mailer.Message
	for _, msg := range r.sent {
		if msg.Subject == subject {
			out = append(out, msg)
		}
	}
	return out
}

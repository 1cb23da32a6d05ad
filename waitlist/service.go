package waitlist

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/seanlongden/lead-formatter-waitlist/config"
	"github.com/seanlongden/lead-formatter-waitlist/databases"
	"github.com/seanlongden/lead-formatter-waitlist/events"
	"github.com/seanlongden/lead-formatter-waitlist/mailer"
	"github.com/seanlongden/lead-formatter-waitlist/metrics"
	"github.com/seanlongden/lead-formatter-waitlist/models"
	templates "github.com/seanlongden/lead-formatter-waitlist/templates/html"
)

const (
	dashboardReferralLimit = 50
	leaderboardSize        = 10
	mailTimeout            = 15 * time.Second
)

// Service implements the waitlist operations on top of the user and referral stores.
type Service struct {
	conf      *config.Config
	users     databases.WaitlistUserDatabase
	referrals databases.ReferralDatabase
	bus       events.Bus
	mailer    mailer.Mailer

	now    func() time.Time
	random io.Reader

	mail sync.WaitGroup
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRandom replaces crypto/rand as the source for codes and tokens.
func WithRandom(r io.Reader) Option {
	return func(s *Service) { s.random = r }
}

// NewService wires the waitlist to its stores, event bus and mailer.
func NewService(conf *config.Config, users databases.WaitlistUserDatabase, referrals databases.ReferralDatabase, bus events.Bus, m mailer.Mailer, opts ...Option) *Service {
	s := &Service{
		conf:      conf,
		users:     users,
		referrals: referrals,
		bus:       bus,
		mailer:    m,
		now:       func() time.Time { return time.Now().UTC() },
		random:    rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignupInput is the data accepted by Signup.
type SignupInput struct {
	Email        string
	ReferralCode string
	IPAddress    string
}

// SignupResult carries the verification link. The raw token never leaves the process
// except in the link, and handlers only echo it in development.
type SignupResult struct {
	VerificationURL   string
	VerificationToken string
}

// Signup registers an email and mails its verification link. An unknown or unverified
// referral code is ignored.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	email := NormalizeEmail(in.Email)
	switch {
	case email == "":
		return nil, &ValidationError{Message: "Email is required"}
	case !validEmail(email):
		return nil, &ValidationError{Message: "Invalid email format"}
	case disposableEmail(email):
		return nil, &ValidationError{Message: "Please use a non-disposable email address"}
	}

	if err := s.conflictFor(ctx, email); err != nil {
		metrics.SignupsTotal.WithLabelValues("conflict").Inc()
		return nil, err
	}

	now := s.now()
	user := models.WaitlistUser{
		Email:     email,
		IPAddress: in.IPAddress,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if code := NormalizeReferralCode(in.ReferralCode); code != "" {
		referrer, err := s.users.FindByReferralCode(ctx, code, true)
		switch {
		case err == nil:
			user.ReferredBy = &referrer.ID
			user.ReferredByCode = referrer.ReferralCode
			user.ReferralCreditPending = true
		case errors.Is(err, mongo.ErrNoDocuments):
			zap.S().Debugw("ignoring unknown referral code", "referralCode", code)
		default:
			return nil, fmt.Errorf("failed to look up referrer: %w", err)
		}
	}

	token, tokenHash, err := newVerificationToken(s.random)
	if err != nil {
		return nil, err
	}
	expires := now.Add(s.conf.VerificationTokenTTL)
	user.VerificationToken = tokenHash
	user.VerificationTokenExpires = &expires

	if _, err := s.insertWithUniqueCode(ctx, &user); err != nil {
		metrics.SignupsTotal.WithLabelValues(metrics.Result(err)).Inc()
		return nil, err
	}
	metrics.SignupsTotal.WithLabelValues("ok").Inc()
	zap.S().Infow("waitlist signup",
		"referralCode", user.ReferralCode,
		"referredBy", user.ReferredByCode)

	verifyURL := VerificationURL(s.conf.BaseURL, token)
	text, html := templates.RenderVerificationEmail(verifyURL, s.conf.VerificationTokenTTL)
	s.deliver(mailer.Message{To: email, Subject: templates.VerificationSubject, Text: text, HTML: html})

	return &SignupResult{VerificationURL: verifyURL, VerificationToken: token}, nil
}

func (s *Service) conflictFor(ctx context.Context, email string) error {
	existing, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up email: %w", err)
	}
	conflict := &ConflictError{EmailVerified: existing.EmailVerified}
	if existing.EmailVerified {
		conflict.ReferralCode = existing.ReferralCode
	}
	return conflict
}

// insertWithUniqueCode draws codes until the insert sticks. The pre-check only saves a
// round trip; the unique index decides.
func (s *Service) insertWithUniqueCode(ctx context.Context, user *models.WaitlistUser) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := NewReferralCode(s.random)
		if err != nil {
			return "", err
		}
		exists, err := s.users.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check referral code: %w", err)
		}
		if exists {
			continue
		}

		user.ReferralCode = code
		id, err := s.users.InsertOne(ctx, *user)
		if err == nil {
			user.ID = id
			return code, nil
		}
		if !errors.Is(err, databases.ErrDuplicateKey) {
			return "", fmt.Errorf("failed to insert waitlist user: %w", err)
		}
		// lost a race on either the email or the code
		if conflict := s.conflictFor(ctx, user.Email); conflict != nil {
			return "", conflict
		}
		zap.S().Debugw("referral code collision, retrying", "referralCode", code)
	}
}

// ResendResult tells the caller which link went out. The URLs are only echoed in development.
type ResendResult struct {
	Message         string
	VerificationURL string
	DashboardURL    string
}

const resendUnknownMessage = "If this email is registered, you will receive a link shortly."

// ResendLink mails a fresh verification link to an unverified user or the dashboard link to
// a verified one. Unknown addresses get the same answer as a successful send.
func (s *Service) ResendLink(ctx context.Context, rawEmail string) (*ResendResult, error) {
	email := NormalizeEmail(rawEmail)
	if email == "" {
		return nil, &ValidationError{Message: "Email is required"}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &ResendResult{Message: resendUnknownMessage}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	if !user.EmailVerified {
		token, tokenHash, err := newVerificationToken(s.random)
		if err != nil {
			return nil, err
		}
		now := s.now()
		err = s.users.ReplaceVerificationToken(ctx, user.ID, tokenHash, now.Add(s.conf.VerificationTokenTTL), now)
		switch {
		case err == nil:
			verifyURL := VerificationURL(s.conf.BaseURL, token)
			text, html := templates.RenderVerificationEmail(verifyURL, s.conf.VerificationTokenTTL)
			s.deliver(mailer.Message{To: email, Subject: templates.VerificationSubject, Text: text, HTML: html})
			return &ResendResult{Message: "Verification email sent", VerificationURL: verifyURL}, nil
		case errors.Is(err, mongo.ErrNoDocuments):
			// verified between the read and the write, fall through to the dashboard link
		default:
			return nil, fmt.Errorf("failed to replace verification token: %w", err)
		}
	}

	dashboardURL := DashboardURL(s.conf.BaseURL, user.ReferralCode)
	text, html := templates.RenderDashboardEmail(dashboardURL, user.ReferralCode)
	s.deliver(mailer.Message{To: email, Subject: templates.DashboardLinkSubject, Text: text, HTML: html})
	return &ResendResult{Message: "Dashboard link sent to your email", DashboardURL: dashboardURL}, nil
}

// Dashboard returns the projection for a verified user's referral code.
func (s *Service) Dashboard(ctx context.Context, rawCode string) (*models.Dashboard, error) {
	code := NormalizeReferralCode(rawCode)
	user, err := s.users.FindByReferralCode(ctx, code, false)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &NotFoundError{Message: "User not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up referral code: %w", err)
	}
	if !user.EmailVerified {
		return nil, &ForbiddenError{Message: "Email not verified", EmailVerified: false}
	}

	edges, err := s.referrals.FindByReferrer(ctx, user.ID, dashboardReferralLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load referrals: %w", err)
	}

	referred := make(map[string]string, len(edges))
	if len(edges) > 0 {
		ids := make([]primitive.ObjectID, 0, len(edges))
		for _, edge := range edges {
			ids = append(ids, edge.ReferredID)
		}
		users, err := s.users.FindByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load referred users: %w", err)
		}
		for _, u := range users {
			referred[u.ID.Hex()] = u.Email
		}
	}

	dashboard := ProjectDashboard(*user, edges, referred, s.conf.BaseURL, s.conf.Rewards)
	return &dashboard, nil
}

// ValidateCode reports whether code belongs to a verified user, returning the normalized code.
func (s *Service) ValidateCode(ctx context.Context, rawCode string) (bool, string, error) {
	code := NormalizeReferralCode(rawCode)
	if !IsReferralCode(code) {
		return false, code, nil
	}
	_, err := s.users.FindByReferralCode(ctx, code, true)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, code, nil
	}
	if err != nil {
		return false, code, err
	}
	return true, code, nil
}

// ResyncUnsynced re-emits UserVerified for verified users whose sync never completed.
func (s *Service) ResyncUnsynced(ctx context.Context, limit int64) (int, error) {
	users, err := s.users.FindUnsynced(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load unsynced users: %w", err)
	}
	for _, u := range users {
		s.bus.Publish(ctx, verifiedEvent(u, s.now()))
	}
	return len(users), nil
}

// deliver sends msg in the background. Failures are logged, never surfaced.
func (s *Service) deliver(msg mailer.Message) {
	s.mail.Add(1)
	go func() {
		defer s.mail.Done()
		defer func() {
			if r := recover(); r != nil {
				zap.S().Errorw("panic while sending email", "subject", msg.Subject, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		err := s.mailer.Send(ctx, msg)
		metrics.EmailsSentTotal.WithLabelValues(s.mailer.Name(), metrics.Result(err)).Inc()
		if err != nil {
			zap.S().Errorw("failed to send email", "to", MaskEmail(msg.To), "subject", msg.Subject, "error", err)
		}
	}()
}

// Wait blocks until queued emails have been handed to the provider.
func (s *Service) Wait() {
	s.mail.Wait()
}

func verifiedEvent(u models.WaitlistUser, now time.Time) events.Event {
	return events.Event{
		Type:          events.UserVerified,
		UserID:        u.ID.Hex(),
		Email:         u.Email,
		ReferralCode:  u.ReferralCode,
		ReferredBy:    u.ReferredByCode,
		ReferralCount: u.ReferralCount,
		Tier:          u.CurrentTier,
		OccurredAt:    now,
	}
}

package waitlist

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	"github.com/seanlongden/lead-formatter-waitlist/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxPage         = 1000000
	defaultSort     = "-createdAt"
)

var sortableFields = map[string]struct{}{
	"createdAt":     {},
	"updatedAt":     {},
	"email":         {},
	"referralCount": {},
	"currentTier":   {},
	"emailVerified": {},
	"referralCode":  {},
}

// ExportHeader is the first row of the CSV export.
var ExportHeader = []string{"Email", "Referral Code", "Referral Count", "Tier", "Referred By", "Joined At"}

const exportTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Stats returns the public counters and the top referrers.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	var (
		verified  = true
		stats     models.Stats
		top       []models.WaitlistUser
		eg, egCtx = errgroup.WithContext(ctx)
	)

	eg.Go(func() error {
		count, err := s.users.CountUsers(egCtx, &verified)
		stats.TotalUsers = count
		return err
	})
	eg.Go(func() error {
		count, err := s.referrals.CountDocuments(egCtx)
		stats.TotalReferrals = count
		return err
	})
	eg.Go(func() error {
		var err error
		top, err = s.users.TopReferrers(egCtx, leaderboardSize)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	stats.Leaderboard = make([]models.LeaderboardEntry, 0, len(top))
	for i, u := range top {
		stats.Leaderboard = append(stats.Leaderboard, models.LeaderboardEntry{
			Rank:          i + 1,
			ReferralCode:  u.ReferralCode,
			ReferralCount: u.ReferralCount,
			Tier:          u.CurrentTier,
		})
	}
	return &stats, nil
}

// AdminUsersQuery is a page request of the admin listing.
type AdminUsersQuery struct {
	Page  int
	Limit int
	Sort  string
}

// ParseSort turns "field" or "-field" into a sort document over the allowed fields.
func ParseSort(sort string) (bson.D, error) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		sort = defaultSort
	}
	direction := 1
	field := sort
	if strings.HasPrefix(sort, "-") {
		direction = -1
		field = sort[1:]
	}
	if _, ok := sortableFields[field]; !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("Invalid sort field %q", field)}
	}
	return bson.D{{Key: field, Value: direction}}, nil
}

// AdminUsers returns one page of users together with the waitlist totals.
func (s *Service) AdminUsers(ctx context.Context, q AdminUsersQuery) (*models.AdminUserPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	if q.Page > maxPage {
		return nil, &ValidationError{Message: fmt.Sprintf("Page must be at most %d", maxPage)}
	}
	sort, err := ParseSort(q.Sort)
	if err != nil {
		return nil, err
	}

	var (
		verified, unverified = true, false
		page                 = models.AdminUserPage{}
		breakdown            map[int]int64
		eg, egCtx            = errgroup.WithContext(ctx)
	)

	eg.Go(func() error {
		users, err := s.users.List(egCtx, q.Page, q.Limit, sort)
		page.Users = users
		return err
	})
	eg.Go(func() error {
		count, err := s.users.CountUsers(egCtx, nil)
		page.Stats.Total = count
		return err
	})
	eg.Go(func() error {
		count, err := s.users.CountUsers(egCtx, &verified)
		page.Stats.Verified = count
		return err
	})
	eg.Go(func() error {
		count, err := s.users.CountUsers(egCtx, &unverified)
		page.Stats.Unverified = count
		return err
	})
	eg.Go(func() error {
		count, err := s.referrals.CountDocuments(egCtx)
		page.Stats.TotalReferrals = count
		return err
	})
	eg.Go(func() error {
		var err error
		breakdown, err = s.users.TierBreakdown(egCtx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load admin users: %w", err)
	}

	if page.Users == nil {
		page.Users = []models.WaitlistUser{}
	}
	page.Stats.TierBreakdown = make(map[string]int64, len(breakdown))
	for tier, count := range breakdown {
		page.Stats.TierBreakdown["tier"+strconv.Itoa(tier)] = count
	}

	limit := int64(q.Limit)
	page.Pagination = models.Pagination{
		Page:  q.Page,
		Limit: q.Limit,
		Total: page.Stats.Total,
		Pages: (page.Stats.Total + limit - 1) / limit,
	}
	return &page, nil
}

// Export writes every verified user as CSV, newest first.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	users, err := s.users.ListVerified(ctx)
	if err != nil {
		return fmt.Errorf("failed to load verified users: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, u := range users {
		record := []string{
			u.Email,
			u.ReferralCode,
			strconv.Itoa(u.ReferralCount),
			strconv.Itoa(u.CurrentTier),
			u.ReferredByCode,
			u.CreatedAt.UTC().Format(exportTimeLayout),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

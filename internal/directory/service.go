package directory

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type Service interface {
	CreateProfile(ctx context.Context, accountID uuid.UUID, displayName, bio string, niches []string, platforms json.RawMessage, followerCount int32, minDealAmountCents int64) (*CreatorProfile, error)
	PublishProfile(ctx context.Context, accountID, profileID uuid.UUID) error
	ListCreators(ctx context.Context, niche string) ([]*CreatorProfile, error)
	GetBySlug(ctx context.Context, slug string) (*CreatorProfile, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) *service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

var slugSanitize = regexp.MustCompile(`[^a-z0-9-]+`)

// normalizeNiches lowercases each niche so filtering is case-insensitive.
func normalizeNiches(niches []string) []string {
	out := make([]string, len(niches))
	for i, n := range niches {
		out[i] = strings.ToLower(strings.TrimSpace(n))
	}
	return out
}

func slugFromName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = slugSanitize.ReplaceAllString(s, "")
	if s == "" {
		s = "creator"
	}
	return s + "-" + uuid.New().String()[:8]
}

func (s *service) CreateProfile(ctx context.Context, accountID uuid.UUID, displayName, bio string, niches []string, platforms json.RawMessage, followerCount int32, minDealAmountCents int64) (*CreatorProfile, error) {
	slug := slugFromName(displayName)
	return s.repo.Create(ctx, CreateParams{
		AccountID:          accountID,
		DisplayName:        displayName,
		Slug:               slug,
		Bio:                bio,
		Niches:             normalizeNiches(niches),
		Platforms:          platforms,
		FollowerCount:      followerCount,
		MinDealAmountCents: minDealAmountCents,
	})
}

func (s *service) PublishProfile(ctx context.Context, accountID, profileID uuid.UUID) error {
	return s.repo.Publish(ctx, accountID, profileID)
}

func (s *service) ListCreators(ctx context.Context, niche string) ([]*CreatorProfile, error) {
	return s.repo.ListPublished(ctx, strings.ToLower(strings.TrimSpace(niche)))
}

func (s *service) GetBySlug(ctx context.Context, slug string) (*CreatorProfile, error) {
	return s.repo.GetBySlug(ctx, slug)
}

package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rivalscope/rivalscope/internal/models"
	"gorm.io/gorm"
)

// ErrCompetitorNotFound is returned when a competitor id does not exist for
// the given owner.
var ErrCompetitorNotFound = errors.New("competitor not found")

// CompetitorRepository manages competitors and their platform bindings.
type CompetitorRepository interface {
	CreateCompetitor(ctx context.Context, userID, name string) (*models.Competitor, error)
	RenameCompetitor(ctx context.Context, userID, competitorID, name string) (*models.Competitor, error)
	GetCompetitor(ctx context.Context, userID, competitorID string) (*models.Competitor, error)
	ListAllCompetitors(ctx context.Context) ([]models.Competitor, error)
	DeleteCompetitor(ctx context.Context, userID, competitorID string) error

	AddSources(ctx context.Context, competitorID string, bindings []models.PlatformBinding) ([]models.PlatformBinding, error)
	ListSources(ctx context.Context, competitorID string) ([]models.PlatformBinding, error)
	SetSourceEnabled(ctx context.Context, sourceID string, enabled bool) error
	TouchSources(ctx context.Context, competitorID string, platforms []models.Platform, at time.Time) error
}

type competitorRepository struct {
	db *gorm.DB
}

// NewCompetitorRepository creates the gorm-backed competitor repository.
func NewCompetitorRepository(db *gorm.DB) CompetitorRepository {
	return &competitorRepository{db: db}
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from a display name.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugStrip.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "competitor"
	}
	return s
}

// uniqueSlug appends a numeric suffix until the slug is free for this owner.
func (r *competitorRepository) uniqueSlug(ctx context.Context, userID, base string, excludeID string) (string, error) {
	slug := base
	for i := 2; ; i++ {
		var count int64
		q := r.db.WithContext(ctx).Model(&CompetitorRow{}).
			Where("user_id = ? AND slug = ?", userID, slug)
		if excludeID != "" {
			q = q.Where("id <> ?", excludeID)
		}
		if err := q.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func (r *competitorRepository) CreateCompetitor(ctx context.Context, userID, name string) (*models.Competitor, error) {
	slug, err := r.uniqueSlug(ctx, userID, Slugify(name), "")
	if err != nil {
		return nil, fmt.Errorf("failed to derive slug: %w", err)
	}

	row := CompetitorRow{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      slug,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create competitor: %w", err)
	}
	return competitorFromRow(row), nil
}

// RenameCompetitor updates the display name and regenerates the slug; the
// rest of the row is immutable after creation.
func (r *competitorRepository) RenameCompetitor(ctx context.Context, userID, competitorID, name string) (*models.Competitor, error) {
	var row CompetitorRow
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", competitorID, userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompetitorNotFound
	}
	if err != nil {
		return nil, err
	}

	slug, err := r.uniqueSlug(ctx, userID, Slugify(name), competitorID)
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).Model(&CompetitorRow{}).
		Where("id = ?", competitorID).
		Updates(map[string]interface{}{"name": name, "slug": slug}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rename competitor: %w", err)
	}

	row.Name = name
	row.Slug = slug
	return competitorFromRow(row), nil
}

func (r *competitorRepository) GetCompetitor(ctx context.Context, userID, competitorID string) (*models.Competitor, error) {
	var row CompetitorRow
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", competitorID, userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompetitorNotFound
	}
	if err != nil {
		return nil, err
	}
	return competitorFromRow(row), nil
}

// ListAllCompetitors returns every competitor across owners, used by the
// periodic re-scrape scheduler.
func (r *competitorRepository) ListAllCompetitors(ctx context.Context) ([]models.Competitor, error) {
	var rows []CompetitorRow
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Competitor, 0, len(rows))
	for _, row := range rows {
		out = append(out, *competitorFromRow(row))
	}
	return out, nil
}

// DeleteCompetitor removes the competitor and cascades to its sources and
// insights in one transaction.
func (r *competitorRepository) DeleteCompetitor(ctx context.Context, userID, competitorID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", competitorID, userID).Delete(&CompetitorRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCompetitorNotFound
		}
		for _, m := range []interface{}{&SourceRow{}, &FeatureRow{}, &ComplaintRow{}, &LeadRow{}, &AlternativeRow{}} {
			if err := tx.Where("competitor_id = ?", competitorID).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *competitorRepository) AddSources(ctx context.Context, competitorID string, bindings []models.PlatformBinding) ([]models.PlatformBinding, error) {
	added := make([]models.PlatformBinding, 0, len(bindings))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, b := range bindings {
			row := SourceRow{
				ID:           uuid.NewString(),
				CompetitorID: competitorID,
				Platform:     string(b.Platform),
				Target:       b.Target,
				Enabled:      true,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to add source %s: %w", b.Platform, err)
			}
			added = append(added, bindingFromRow(row))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func (r *competitorRepository) ListSources(ctx context.Context, competitorID string) ([]models.PlatformBinding, error) {
	var rows []SourceRow
	err := r.db.WithContext(ctx).
		Where("competitor_id = ?", competitorID).
		Order("platform ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.PlatformBinding, 0, len(rows))
	for _, row := range rows {
		out = append(out, bindingFromRow(row))
	}
	return out, nil
}

func (r *competitorRepository) SetSourceEnabled(ctx context.Context, sourceID string, enabled bool) error {
	return r.db.WithContext(ctx).Model(&SourceRow{}).
		Where("id = ?", sourceID).
		Update("enabled", enabled).Error
}

// TouchSources stamps last_scraped_at for the platforms that just ran.
func (r *competitorRepository) TouchSources(ctx context.Context, competitorID string, platforms []models.Platform, at time.Time) error {
	if len(platforms) == 0 {
		return nil
	}
	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, string(p))
	}
	return r.db.WithContext(ctx).Model(&SourceRow{}).
		Where("competitor_id = ? AND platform IN ?", competitorID, names).
		Update("last_scraped_at", at).Error
}

func competitorFromRow(row CompetitorRow) *models.Competitor {
	return &models.Competitor{
		ID:        row.ID,
		Name:      row.Name,
		Slug:      row.Slug,
		UserID:    row.UserID,
		CreatedAt: row.CreatedAt,
	}
}

func bindingFromRow(row SourceRow) models.PlatformBinding {
	return models.PlatformBinding{
		ID:            row.ID,
		CompetitorID:  row.CompetitorID,
		Platform:      models.Platform(row.Platform),
		Target:        row.Target,
		Enabled:       row.Enabled,
		LastScrapedAt: row.LastScrapedAt,
	}
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rivalscope/rivalscope/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsightRepository persists validated insight sets. All four categories are
// written inside one transaction: insights are never partially visible.
type InsightRepository interface {
	PersistInsights(ctx context.Context, userID, competitorID string, set *models.InsightSet) error
}

type insightRepository struct {
	db *gorm.DB
}

// NewInsightRepository creates the gorm-backed insight repository.
func NewInsightRepository(db *gorm.DB) InsightRepository {
	return &insightRepository{db: db}
}

// evidencePlatform extracts the platform prefix from an evidence id of the
// form "<platform>-<index>".
func evidencePlatform(refs []string) string {
	if len(refs) == 0 {
		return ""
	}
	id := refs[0]
	if i := strings.LastIndex(id, "-"); i > 0 {
		return id[:i]
	}
	return ""
}

func evidenceJSON(refs []string) ([]byte, error) {
	if refs == nil {
		refs = []string{}
	}
	return json.Marshal(refs)
}

// PersistInsights writes the four categories in a single transaction.
// Features, complaints and leads are plain inserts; alternatives upsert on
// (user, competitor, name), incrementing the mention counter and overwriting
// evidence and confidence. Any failure rolls back everything.
func (r *insightRepository) PersistInsights(ctx context.Context, userID, competitorID string, set *models.InsightSet) error {
	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, f := range set.Features {
			ev, err := evidenceJSON(f.EvidenceIDs)
			if err != nil {
				return err
			}
			row := FeatureRow{
				ID:           uuid.NewString(),
				UserID:       userID,
				CompetitorID: competitorID,
				Description:  f.Description,
				Platform:     evidencePlatform(f.EvidenceIDs),
				EvidenceIDs:  ev,
				CreatedAt:    now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to insert feature: %w", err)
			}
		}

		for _, c := range set.Complaints {
			ev, err := evidenceJSON(c.EvidenceIDs)
			if err != nil {
				return err
			}
			row := ComplaintRow{
				ID:           uuid.NewString(),
				UserID:       userID,
				CompetitorID: competitorID,
				Description:  c.Description,
				Platform:     evidencePlatform(c.EvidenceIDs),
				EvidenceIDs:  ev,
				CreatedAt:    now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to insert complaint: %w", err)
			}
		}

		for _, l := range set.Leads {
			ev, err := evidenceJSON(l.EvidenceIDs)
			if err != nil {
				return err
			}
			row := LeadRow{
				ID:           uuid.NewString(),
				UserID:       userID,
				CompetitorID: competitorID,
				Username:     l.Username,
				Platform:     l.Platform,
				Excerpt:      l.Excerpt,
				Reason:       l.Reason,
				EvidenceIDs:  ev,
				CreatedAt:    now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to insert lead: %w", err)
			}
		}

		for _, a := range set.Alternatives {
			ev, err := evidenceJSON(a.EvidenceIDs)
			if err != nil {
				return err
			}
			row := AlternativeRow{
				ID:           uuid.NewString(),
				UserID:       userID,
				CompetitorID: competitorID,
				Name:         a.Name,
				Description:  a.Description,
				Confidence:   a.Confidence,
				Mentions:     1,
				Platform:     evidencePlatform(a.EvidenceIDs),
				EvidenceIDs:  ev,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			err = tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}, {Name: "competitor_id"}, {Name: "name"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"mentions":     gorm.Expr("alternatives.mentions + 1"),
					"description":  a.Description,
					"confidence":   a.Confidence,
					"evidence_ids": ev,
					"updated_at":   now,
				}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("failed to upsert alternative %q: %w", a.Name, err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	logrus.Infof("Persisted %d insights for competitor %s", set.Total(), competitorID)
	return nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/edusphere/exam-engine/internal/cache"
	"github.com/edusphere/exam-engine/internal/models"
	"github.com/edusphere/exam-engine/internal/repositories"
)

type AnsweredQuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAnsweredQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AnsweredQuestionRepository {
	return &AnsweredQuestionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AnsweredQuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AnsweredQuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.AnsweredQuestion) error {
	if len(answers) == 0 {
		return nil
	}
	db := a.getDB(tx)
	if err := db.WithContext(ctx).CreateInBatches(answers, 100).Error; err != nil {
		return fmt.Errorf("failed to create answer slots: %w", err)
	}
	return nil
}

func (a *AnsweredQuestionPostgreSQL) GetBySubmission(ctx context.Context, tx *gorm.DB, submissionID string) ([]*models.AnsweredQuestion, error) {
	db := a.getDB(tx)
	var answers []*models.AnsweredQuestion
	if err := db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Preload("Selected").
		Order("created_at ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}

func (a *AnsweredQuestionPostgreSQL) GetBySubmissionAndQuestion(ctx context.Context, tx *gorm.DB, submissionID, questionID string) (*models.AnsweredQuestion, error) {
	db := a.getDB(tx)
	var answer models.AnsweredQuestion
	if err := db.WithContext(ctx).
		Where("submission_id = ? AND question_id = ?", submissionID, questionID).
		Preload("Selected").
		First(&answer).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}

func (a *AnsweredQuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, answer *models.AnsweredQuestion) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Omit("Selected").Save(answer).Error; err != nil {
		return err
	}
	cache.InvalidateSubmissionCache(ctx, a.cacheManager, answer.SubmissionID)
	return nil
}

// ReplaceSelectedChoices swaps the whole selection of one answer slot.
// Delete plus insert keeps the semantics a full replace regardless of the
// previous state.
func (a *AnsweredQuestionPostgreSQL) ReplaceSelectedChoices(ctx context.Context, tx *gorm.DB, answeredQuestionID string, choiceIDs []string) error {
	db := a.getDB(tx)

	if err := db.WithContext(ctx).
		Where("answered_question_id = ?", answeredQuestionID).
		Delete(&models.SelectedChoice{}).Error; err != nil {
		return fmt.Errorf("failed to clear selected choices: %w", err)
	}

	if len(choiceIDs) == 0 {
		return nil
	}

	rows := make([]models.SelectedChoice, 0, len(choiceIDs))
	for _, choiceID := range choiceIDs {
		rows = append(rows, models.SelectedChoice{
			AnsweredQuestionID: answeredQuestionID,
			ChoiceID:           choiceID,
		})
	}

	if err := db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to store selected choices: %w", err)
	}
	return nil
}

type progressCounts struct {
	Answered int64 `json:"answered"`
	Total    int64 `json:"total"`
}

func (a *AnsweredQuestionPostgreSQL) Progress(ctx context.Context, tx *gorm.DB, submissionID string) (int64, int64, error) {
	// Transactional reads must see the transaction's own writes, so only
	// the plain polling path goes through the cache. Writes drop the key
	// via InvalidateSubmissionCache.
	if tx == nil {
		var counts progressCounts
		err := a.cacheManager.Progress.CacheOrExecute(ctx,
			fmt.Sprintf("submission:%s", submissionID),
			&counts,
			cache.ProgressCacheConfig.TTL,
			func() (interface{}, error) {
				answered, total, err := a.countProgress(ctx, a.db, submissionID)
				if err != nil {
					return nil, err
				}
				return progressCounts{Answered: answered, Total: total}, nil
			})
		if err != nil {
			return 0, 0, err
		}
		return counts.Answered, counts.Total, nil
	}

	return a.countProgress(ctx, tx, submissionID)
}

func (a *AnsweredQuestionPostgreSQL) countProgress(ctx context.Context, db *gorm.DB, submissionID string) (int64, int64, error) {
	var total int64
	if err := db.WithContext(ctx).
		Model(&models.AnsweredQuestion{}).
		Where("submission_id = ?", submissionID).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}

	// A slot counts as answered when it has at least one selected choice.
	var answered int64
	if err := db.WithContext(ctx).
		Model(&models.AnsweredQuestion{}).
		Where("submission_id = ?", submissionID).
		Where("EXISTS (SELECT 1 FROM selected_choices sc WHERE sc.answered_question_id = answered_questions.id)").
		Count(&answered).Error; err != nil {
		return 0, 0, err
	}

	return answered, total, nil
}

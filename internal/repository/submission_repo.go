package repository

import (
	"context"

	"gorm.io/gorm"

	"crm_configurator_v1/internal/model"
)

// ==================== 仓储接口 ====================

// SubmissionRepository 配置提交记录仓储接口
type SubmissionRepository interface {
	Create(ctx context.Context, s *model.Submission) error
	GetByID(ctx context.Context, id int64) (*model.Submission, error)
	ListByCorrelation(ctx context.Context, correlationID int64, limit int) ([]model.Submission, error)
	CountByStatus(ctx context.Context, correlationID int64) (map[string]int64, error)
}

// ==================== 仓储实现 ====================

type submissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepository 创建提交记录仓储
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) Create(ctx context.Context, s *model.Submission) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *submissionRepo) GetByID(ctx context.Context, id int64) (*model.Submission, error) {
	var s model.Submission
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByCorrelation 按关联 ID 倒序列出，limit <= 0 时默认 50
func (r *submissionRepo) ListByCorrelation(ctx context.Context, correlationID int64, limit int) ([]model.Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []model.Submission
	err := r.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *submissionRepo) CountByStatus(ctx context.Context, correlationID int64) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&model.Submission{}).
		Where("correlation_id = ?", correlationID).
		Select("status, COUNT(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"publisher-service/internal/domain/entities"
)

// VideoRepository 视频仓库接口
type VideoRepository interface {
	// FindByID 根据ID查找视频
	FindByID(ctx context.Context, tenantID, videoID uuid.UUID) (*entities.Video, error)
}

// PostgresVideoRepository PostgreSQL视频仓库实现
type PostgresVideoRepository struct {
	db *sqlx.DB
}

// NewVideoRepository 创建视频仓库，复用已建立的连接池
func NewVideoRepository(db *sqlx.DB) VideoRepository {
	return &PostgresVideoRepository{
		db: db,
	}
}

// videoColumns 与videos表保持一致的显式列清单
const videoColumns = `
	id, tenant_id, title, description, keywords,
	file_name, file_key, file_type, size, duration, width, height,
	is_transcoded, transcode_status, storage_path, cover_url, is_public,
	created_at, updated_at`

// FindByID 根据ID查找视频
func (r *PostgresVideoRepository) FindByID(ctx context.Context, tenantID, videoID uuid.UUID) (*entities.Video, error) {
	// 构建SQL语句
	query := `SELECT ` + videoColumns + `
		FROM videos
		WHERE id = $1 AND tenant_id = $2
	`

	// 执行SQL
	var video entities.Video
	err := r.db.GetContext(ctx, &video, query, videoID, tenantID)
	if err != nil {
		return nil, err
	}

	return &video, nil
}

package rating

import (
	"context"
	"fmt"

	"github.com/SlpAus/book-summaries-backend/internal/catalog"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"gorm.io/gorm"
)

// WarmupCache 从 books 表加载评分聚合到聚合存储，并同步到书目仓库。
// 调用方需要确保在安全的时机（启动或缓存重建）调用。
func WarmupCache(ctx context.Context, db *gorm.DB, store AggregateStore, repo *catalog.Repository) error {
	var books []catalog.Book
	if err := db.Select("slug", "rating_sum", "rating_count").Where("rating_count > 0").Find(&books).Error; err != nil {
		return fmt.Errorf("无法从SQLite读取评分聚合: %w", err)
	}
	repo.ResetRatingVersions()
	all := make(map[string]Aggregate, len(books))
	for _, b := range books {
		a := Aggregate{Sum: b.RatingSum, Count: b.RatingCount}
		all[b.Slug] = a
		repo.UpdateRating(b.Slug, a.Average(), a.Count)
	}
	if err := store.Load(ctx, all); err != nil {
		return err
	}
	logger.Infof("成功预热 %d 本书的评分聚合。", len(all))
	return nil
}

// PersistAggregates 把聚合写回 books 表，由快照备份在事务中调用
func PersistAggregates(tx *gorm.DB, all map[string]Aggregate) error {
	if len(all) == 0 {
		return nil
	}
	// 只更新已存在的书目，未知的slug不会插入新行
	for slug, a := range all {
		err := tx.Model(&catalog.Book{}).Where("slug = ?", slug).
			Updates(map[string]interface{}{"rating_sum": a.Sum, "rating_count": a.Count}).Error
		if err != nil {
			return fmt.Errorf("持久化书目 %s 的评分失败: %w", slug, err)
		}
	}
	return nil
}

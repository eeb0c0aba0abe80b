package rating

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SlpAus/book-summaries-backend/internal/catalog"
	"github.com/SlpAus/book-summaries-backend/internal/stats"
)

const (
	MinRating = 1
	MaxRating = 5

	rateNotification = "🎉 +3 points for rating!"
)

var (
	ErrInvalidRating = errors.New("评分必须是1到5之间的整数")
	ErrItemNotFound  = errors.New("找不到这本书")
)

type Service struct {
	stats *stats.Service
	store AggregateStore
	repo  *catalog.Repository
}

func NewService(st *stats.Service, store AggregateStore, repo *catalog.Repository) *Service {
	return &Service{stats: st, store: store, repo: repo}
}

// Result 是一次评分的结果
type Result struct {
	Slug         string         `json:"slug"`
	Rating       int            `json:"rating"`
	Stars        string         `json:"stars"`
	Average      string         `json:"average"`
	AverageValue float64        `json:"averageValue"`
	Count        int            `json:"count"`
	Awarded      bool           `json:"awarded"`
	Notification string         `json:"notification,omitempty"`
	Progress     stats.Progress `json:"progress"`
}

// Stars 返回实心星数量等于评分的星级字符串
func Stars(rating int) string {
	rating = max(0, min(MaxRating, rating))
	return strings.Repeat("★", rating) + strings.Repeat("☆", MaxRating-rating)
}

// NextAggregate 计算一次评分后的聚合。
// 第一次评分计入新样本；同一访客再次评分时替换自己原有的样本，人数不变。
func NextAggregate(a Aggregate, previous, rating int) Aggregate {
	if previous > 0 {
		a.Sum += float64(rating - previous)
		return a
	}
	a.Sum += float64(rating)
	a.Count++
	return a
}

// Submit 提交访客对一本书的评分。
// 只有第一次评分会奖励 +3 分；评分值总是保存在访客进度中。
func (s *Service) Submit(ctx context.Context, userID, slug string, rating int) (Result, error) {
	if rating < MinRating || rating > MaxRating {
		return Result{}, ErrInvalidRating
	}
	if !s.repo.Exists(slug) {
		return Result{}, ErrItemNotFound
	}

	var (
		agg     Aggregate
		comp    *Compensator
		awarded bool
	)
	defer func() { comp.RollbackUnlessCommitted(context.WithoutCancel(ctx)) }()

	_, after, err := s.stats.Mutate(ctx, userID, func(st *stats.State) error {
		previous, _ := st.Stats.Rating(slug)
		delta := NextAggregate(Aggregate{}, previous, rating)

		var err error
		agg, err = s.store.Add(ctx, slug, delta.Sum, delta.Count)
		if err != nil {
			return fmt.Errorf("更新评分聚合失败: %w", err)
		}
		comp = &Compensator{store: s.store, repo: s.repo, slug: slug, dSum: delta.Sum, dCount: delta.Count}

		st.Stats.Ratings[slug] = rating
		if previous == 0 {
			stats.ApplyAward(&st.Stats, stats.RatePoints, stats.ActivityRate)
			awarded = true
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	comp.Commit()

	s.repo.ApplyRating(slug, agg.Average(), agg.Count, agg.Version)

	res := Result{
		Slug:         slug,
		Rating:       rating,
		Stars:        Stars(rating),
		Average:      fmt.Sprintf("%.1f", agg.Average()),
		AverageValue: agg.Average(),
		Count:        agg.Count,
		Awarded:      awarded,
		Progress:     stats.Project(after.Stats),
	}
	if awarded {
		res.Notification = rateNotification
	}
	return res, nil
}

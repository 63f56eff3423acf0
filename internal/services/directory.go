package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"zhutan/internal/models"
	"zhutan/internal/utils"

	"gorm.io/gorm"
)

// AuthorSummary 作者摘要
type AuthorSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// CategorySummary 分类摘要
type CategorySummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Directory 作者与分类的外部查询。找不到的作者不出现在返回的 map 中
type Directory interface {
	Authors(ctx context.Context, ids []uint) (map[uint]AuthorSummary, error)
	Category(ctx context.Context, id uint) (*CategorySummary, error)
	Categories(ctx context.Context) ([]CategorySummary, error)
}

// StoreDirectory 基于数据库的 Directory，结果写入缓存
type StoreDirectory struct {
	db    *gorm.DB
	cache utils.Cache
	ttl   time.Duration
}

func NewStoreDirectory(db *gorm.DB, cache utils.Cache, ttl time.Duration) *StoreDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StoreDirectory{db: db, cache: cache, ttl: ttl}
}

func authorCacheKey(id uint) string   { return fmt.Sprintf("author:%d", id) }
func categoryCacheKey(id uint) string { return fmt.Sprintf("category:%d", id) }

const categoriesCacheKey = "categories:all"

func (d *StoreDirectory) Authors(ctx context.Context, ids []uint) (map[uint]AuthorSummary, error) {
	result := make(map[uint]AuthorSummary, len(ids))
	missing := make([]uint, 0, len(ids))
	for _, id := range dedupeIDs(ids) {
		var a AuthorSummary
		if d.cache != nil && d.cache.Get(ctx, authorCacheKey(id), &a) {
			result[id] = a
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return result, nil
	}

	var users []models.User
	if err := d.db.WithContext(ctx).Where("id IN ?", missing).Find(&users).Error; err != nil {
		return nil, utils.NewStoreError("load authors", err)
	}
	for _, u := range users {
		a := AuthorSummary{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
		result[u.ID] = a
		if d.cache != nil {
			d.cache.Set(ctx, authorCacheKey(u.ID), a, d.ttl)
		}
	}
	return result, nil
}

// Category 分类不存在时返回 nil
func (d *StoreDirectory) Category(ctx context.Context, id uint) (*CategorySummary, error) {
	var c CategorySummary
	if d.cache != nil && d.cache.Get(ctx, categoryCacheKey(id), &c) {
		return &c, nil
	}

	var category models.Category
	err := d.db.WithContext(ctx).First(&category, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewStoreError("load category", err)
	}
	c = CategorySummary{ID: category.ID, Name: category.Name, Slug: category.Slug}
	if d.cache != nil {
		d.cache.Set(ctx, categoryCacheKey(id), c, d.ttl)
	}
	return &c, nil
}

func (d *StoreDirectory) Categories(ctx context.Context) ([]CategorySummary, error) {
	var list []CategorySummary
	if d.cache != nil && d.cache.Get(ctx, categoriesCacheKey, &list) {
		return list, nil
	}

	var categories []models.Category
	if err := d.db.WithContext(ctx).Order("id ASC").Find(&categories).Error; err != nil {
		return nil, utils.NewStoreError("load categories", err)
	}
	list = make([]CategorySummary, 0, len(categories))
	for _, c := range categories {
		list = append(list, CategorySummary{ID: c.ID, Name: c.Name, Slug: c.Slug})
	}
	if d.cache != nil {
		d.cache.Set(ctx, categoriesCacheKey, list, d.ttl)
	}
	return list, nil
}

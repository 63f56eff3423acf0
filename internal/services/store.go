package services

import (
	"errors"
	"strings"
	"zhutan/internal/models"
	"zhutan/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Page limit/offset 分页参数
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// normalize 限制分页范围，limit<=0 取默认值
func (p Page) normalize(def, max int) Page {
	if p.Limit <= 0 {
		p.Limit = def
	}
	if max > 0 && p.Limit > max {
		p.Limit = max
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

const (
	defaultPageSize = 30
	maxPageSize     = 100
)

// forUpdate 行锁，SQLite 方言会忽略该子句（SQLite 本身串行写）
var forUpdate = clause.Locking{Strength: "UPDATE"}

// findDiscussion 读取未删除的讨论，lock 为 true 时加行锁
func findDiscussion(tx *gorm.DB, id uint, lock bool) (*models.Discussion, error) {
	q := tx
	if lock {
		q = q.Clauses(forUpdate)
	}
	var d models.Discussion
	if err := q.Where("id = ? AND is_deleted = ?", id, false).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("discussion", id)
		}
		return nil, utils.NewStoreError("load discussion", err)
	}
	return &d, nil
}

// findComment 读取未删除的评论
func findComment(tx *gorm.DB, id uint, lock bool) (*models.Comment, error) {
	q := tx
	if lock {
		q = q.Clauses(forUpdate)
	}
	var c models.Comment
	if err := q.Where("id = ? AND is_deleted = ?", id, false).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("comment", id)
		}
		return nil, utils.NewStoreError("load comment", err)
	}
	return &c, nil
}

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

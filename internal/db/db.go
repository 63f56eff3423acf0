package db

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"
	"zhutan/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newLogger 只输出慢查询与错误，查无记录属于正常分支不打印
func newLogger(w io.Writer) logger.Interface {
	return logger.New(log.New(w, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Open 按驱动打开数据库。postgres 用于生产，sqlite 用于本地开发和测试
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger(os.Stdout),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if driver == "sqlite" {
		// SQLite 单写者，串行化连接避免 database is locked
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(20)
	}

	slog.Info("database connection established", "driver", driver)
	return gdb, nil
}

// Migrate 自动迁移所有表
func Migrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Discussion{},
		&models.DiscussionTag{},
		&models.Comment{},
		&models.Poll{},
		&models.PollOption{},
		&models.PollVote{},
		&models.Vote{},
		&models.Bookmark{},
		&models.View{},
		&models.Report{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	slog.Info("database migration completed")
	return nil
}

// SeedCategories 初始化预设分类，已有数据时跳过
func SeedCategories(gdb *gorm.DB) error {
	var count int64
	if err := gdb.Model(&models.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		slog.Debug("categories already seeded, skipping")
		return nil
	}

	categories := []models.Category{
		{Name: "综合", Slug: "general", Description: "什么都可以聊"},
		{Name: "市集", Slug: "marketplace", Description: "买卖、交换与点评"},
		{Name: "招聘", Slug: "jobs", Description: "工作机会与求职交流"},
		{Name: "活动", Slug: "events", Description: "线上线下活动"},
	}
	if err := gdb.Create(&categories).Error; err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	slog.Info("initial categories created", "count", len(categories))
	return nil
}

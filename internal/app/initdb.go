package app

import (
	"fmt"
	"time"

	"github.com/MHassaanT/motomind-backend/config"
	"github.com/MHassaanT/motomind-backend/internal/domain"
	"github.com/MHassaanT/motomind-backend/pkg/common"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func getDatabase(cfg config.DBConfig) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name, time.Local.String())

	loglevel := gormlogger.Silent
	if cfg.Debug {
		loglevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(loglevel),
	})
	if err != nil {
		panic(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	if cfg.MaxConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
	}
	if cfg.IdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.IdleConn)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db
}

// configSchema describes one settings row seeded on first boot.
type configSchema struct {
	Type        string
	Name        string
	Default     string
	Description string
}

var defaultSettings = []configSchema{
	{"system", "SystemTitle", "MotoMind Workshop Manager", "System title"},
	{"whatsapp", "ReminderTemplate", "", "Override for the reminder message template"},
	{"whatsapp", "BillTemplate", "", "Override for the bill message template"},
	{"whatsapp", "CountryPrefix", "92", "Country prefix used when normalizing local numbers"},
	{"whatsapp", "ReminderEnabled", "true", "Master switch for the daily reminder run"},
}

func (a *Application) checkSettings() {
	for sortid, schema := range defaultSettings {
		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", schema.Type, schema.Name).
			Count(&count)

		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				ID:     common.UUIDint64(),
				Sort:   sortid,
				Type:   schema.Type,
				Name:   schema.Name,
				Value:  schema.Default,
				Remark: schema.Description,
			})
			zap.L().Info("initialized config",
				zap.String("type", schema.Type),
				zap.String("name", schema.Name),
				zap.String("default", schema.Default))
		}
	}
}

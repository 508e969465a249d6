package app

import (
	"sync"
	"time"

	"github.com/MHassaanT/motomind-backend/internal/domain"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configCacheTTL = 30 * time.Second

// ConfigManager reads settings rows with a short-lived cache so hot
// paths do not hit the database on every lookup.
type ConfigManager struct {
	db     *gorm.DB
	mu     sync.RWMutex
	cache  map[string]string
	loaded time.Time
}

func NewConfigManager(db *gorm.DB) *ConfigManager {
	return &ConfigManager{db: db, cache: make(map[string]string)}
}

func (m *ConfigManager) lookup(category, name string) string {
	key := category + "." + name

	m.mu.RLock()
	if time.Since(m.loaded) < configCacheTTL {
		v, ok := m.cache[key]
		m.mu.RUnlock()
		if ok {
			return v
		}
		return ""
	}
	m.mu.RUnlock()

	var rows []domain.SysConfig
	if err := m.db.Find(&rows).Error; err != nil {
		zap.L().Error("failed to load settings", zap.Error(err))
		return ""
	}

	m.mu.Lock()
	m.cache = make(map[string]string, len(rows))
	for _, row := range rows {
		m.cache[row.Type+"."+row.Name] = row.Value
	}
	m.loaded = time.Now()
	v := m.cache[key]
	m.mu.Unlock()
	return v
}

// Invalidate drops the cache so the next lookup reloads from the database.
func (m *ConfigManager) Invalidate() {
	m.mu.Lock()
	m.loaded = time.Time{}
	m.mu.Unlock()
}

func (m *ConfigManager) GetString(category, name string) string {
	return m.lookup(category, name)
}

func (m *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(m.lookup(category, name))
}

func (m *ConfigManager) GetBool(category, name string) bool {
	return cast.ToBool(m.lookup(category, name))
}

// SetValue updates one settings row and invalidates the cache.
func (m *ConfigManager) SetValue(category, name, value string) error {
	err := m.db.Model(&domain.SysConfig{}).
		Where("type = ? and name = ?", category, name).
		Update("value", value).Error
	if err != nil {
		return err
	}
	m.Invalidate()
	return nil
}

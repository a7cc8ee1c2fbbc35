// Package catalog keeps a database record of every finished take.
package catalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/pillash/mp4util"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"takecam/video"
)

type TakeRecord struct {
	gorm.Model

	Session string `gorm:"index"`
	Index   int
	Path    string

	StartedAt time.Time
	EndedAt   time.Time

	Frames      int
	MeanFPS     float64
	Status      string `gorm:"index"`
	Error       string
	DurationSec int
}

func toRecord(t *video.Take) *TakeRecord {
	r := &TakeRecord{
		Session:   t.Session,
		Index:     t.Index,
		Path:      t.Path,
		StartedAt: t.Started,
		EndedAt:   t.Ended,
		Frames:    t.Result.Stats.Frames,
		MeanFPS:   t.Result.Stats.MeanFPS(),
		Status:    t.Result.Status.String(),
	}
	if t.Result.Err != nil {
		r.Error = t.Result.Err.Error()
	}
	return r
}

// Catalog is a video.TakeListener writing TakeRecords. Writes happen in the
// background so the key loop is never held up by the database.
type Catalog struct {
	db *gorm.DB
	wg sync.WaitGroup
}

// Open connects to MySQL and migrates the schema.
func Open(dsn string) (*Catalog, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return New(db)
}

func New(db *gorm.DB) (*Catalog, error) {
	if err := db.AutoMigrate(&TakeRecord{}); err != nil {
		return nil, fmt.Errorf("migrating take records: %w", err)
	}
	return &Catalog{db: db}, nil
}

// DB exposes the connection for other stores sharing the database.
func (c *Catalog) DB() *gorm.DB {
	return c.db
}

func (c *Catalog) TakeStarted(t *video.Take) {}

func (c *Catalog) TakeEnded(t *video.Take) {
	r := toRecord(t)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if t.Result.Status != video.StatusOpenFailure {
			if d, err := mp4util.Duration(r.Path); err != nil {
				log.Warnf("Failed to read duration of %v: %v", r.Path, err)
			} else {
				r.DurationSec = d
			}
		}
		if err := c.db.Create(r).Error; err != nil {
			log.Errorf("Failed to store take record for %v: %v", r.Path, err)
			return
		}
		log.Debugf("Stored take record %d for %v", r.ID, r.Path)
	}()
}

// Recent returns up to n take records, newest first.
func (c *Catalog) Recent(n int) ([]*TakeRecord, error) {
	var records []*TakeRecord
	if err := c.db.Order("id desc").Limit(n).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Close waits for pending writes.
func (c *Catalog) Close() error {
	c.wg.Wait()
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

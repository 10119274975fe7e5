package database

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/monorkin/nightscout-watch-monitor/internal/models"
)

var ErrNotFound = gorm.ErrRecordNotFound

// Store groups the queries the monitor and the read API run.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// UpsertSite matches an existing site by URL, then by name, and refreshes
// its metadata. A site seen for the first time is created.
func (s *Store) UpsertSite(site *models.Site) error {
	var existing models.Site

	err := s.db.
		Where("url = ?", site.URL).
		Or("name = ?", site.Name).
		First(&existing).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(site).Error; err != nil {
			return errors.Wrapf(err, "failed to create site %s", site.Name)
		}
		return nil
	case err != nil:
		return errors.Wrapf(err, "failed to look up site %s", site.Name)
	}

	existing.Name = site.Name
	existing.URL = site.URL
	if site.Units != "" {
		existing.Units = site.Units
	}
	if site.Version != "" {
		existing.Version = site.Version
	}
	if site.LastSeen.After(existing.LastSeen) {
		existing.LastSeen = site.LastSeen
	}

	if err := s.db.Save(&existing).Error; err != nil {
		return errors.Wrapf(err, "failed to update site %s", site.Name)
	}

	*site = existing

	return nil
}

// FindSite accepts a numeric ID, a name or a URL.
func (s *Store) FindSite(identifier string) (*models.Site, error) {
	var site models.Site

	query := s.db.Where("name = ?", identifier).Or("url = ?", identifier)
	if id, err := strconv.ParseUint(identifier, 10, 64); err == nil {
		query = query.Or("id = ?", id)
	}

	if err := query.First(&site).Error; err != nil {
		return nil, errors.Wrapf(err, "site %s", identifier)
	}

	return &site, nil
}

func (s *Store) ListSites() ([]models.Site, error) {
	var sites []models.Site

	if err := s.db.Order("name asc").Find(&sites).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list sites")
	}

	return sites, nil
}

func (s *Store) DeleteSite(site *models.Site) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("site_id = ?", site.ID).Delete(&models.Reading{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete readings")
		}

		return tx.Unscoped().Delete(site).Error
	})
}

// SaveReading reports false when a reading with the same site and timestamp
// is already stored.
func (s *Store) SaveReading(reading *models.Reading) (bool, error) {
	result := s.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "site_id"}, {Name: "timestamp"}},
			DoNothing: true,
		}).
		Create(reading)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to save reading")
	}

	return result.RowsAffected > 0, nil
}

func (s *Store) LatestReading(siteID uint) (*models.Reading, error) {
	var reading models.Reading

	err := s.db.
		Where("site_id = ?", siteID).
		Order("timestamp desc").
		First(&reading).Error
	if err != nil {
		return nil, errors.Wrapf(err, "no reading for site %d", siteID)
	}

	return &reading, nil
}

// ReadingsBetween returns readings with from <= timestamp < to, oldest first.
func (s *Store) ReadingsBetween(siteID uint, from, to time.Time) ([]models.Reading, error) {
	var readings []models.Reading

	err := s.db.
		Where("site_id = ? AND timestamp >= ? AND timestamp < ?", siteID, from.UTC(), to.UTC()).
		Order("timestamp asc").
		Find(&readings).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load readings")
	}

	return readings, nil
}

func (s *Store) GetSize() (int64, error) {
	return GetSize(s.db)
}

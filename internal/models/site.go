package models

import (
	"time"

	"gorm.io/gorm"
)

type Site struct {
	gorm.Model
	Name     string `gorm:"uniqueIndex"`
	URL      string `gorm:"column:url;uniqueIndex"`
	Units    string
	Version  string
	LastSeen time.Time
	Readings []Reading
}

package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/monorkin/nightscout-watch-monitor/internal/models"
	"github.com/monorkin/nightscout-watch-monitor/nightscout/watch"
)

const (
	DEFAULT_READING_HOURS = 24
	MAX_READING_HOURS     = 24 * 90
)

type siteView struct {
	ID       uint      `json:"id"`
	Name     string    `json:"name"`
	URL      string    `json:"url"`
	Units    string    `json:"units,omitempty"`
	Version  string    `json:"version,omitempty"`
	LastSeen time.Time `json:"lastSeen"`
}

func newSiteView(site models.Site) siteView {
	return siteView{
		ID:       site.ID,
		Name:     site.Name,
		URL:      site.URL,
		Units:    site.Units,
		Version:  site.Version,
		LastSeen: site.LastSeen,
	}
}

// GET /api/v1/sites
func (s *Server) handleListSites(c *gin.Context) {
	sites, err := s.store.ListSites()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]siteView, 0, len(sites))
	for _, site := range sites {
		views = append(views, newSiteView(site))
	}

	c.JSON(http.StatusOK, gin.H{
		"data": views,
		"meta": gin.H{
			"count": len(views),
		},
	})
}

// GET /api/v1/sites/:site/watch
func (s *Server) handleLatestWatchEntry(c *gin.Context) {
	site, ok := s.findSite(c)
	if !ok {
		return
	}

	reading, err := s.store.LatestReading(site.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no readings stored for site"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": reading.WatchEntry(),
		"site": newSiteView(*site),
	})
}

// GET /api/v1/sites/:site/readings?hours=N
func (s *Server) handleReadings(c *gin.Context) {
	hours := DEFAULT_READING_HOURS
	if hoursStr := c.Query("hours"); hoursStr != "" {
		parsed, err := strconv.Atoi(hoursStr)
		if err != nil || parsed <= 0 || parsed > MAX_READING_HOURS {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hours"})
			return
		}
		hours = parsed
	}

	site, ok := s.findSite(c)
	if !ok {
		return
	}

	to := s.clock().UTC()
	from := to.Add(-time.Duration(hours) * time.Hour)

	readings, err := s.store.ReadingsBetween(site.ID, from, to.Add(time.Second))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	entries := make([]watch.WatchEntry, 0, len(readings))
	for _, reading := range readings {
		entries = append(entries, reading.WatchEntry())
	}

	c.JSON(http.StatusOK, gin.H{
		"data": entries,
		"meta": gin.H{
			"count": len(entries),
			"from":  from,
			"to":    to,
		},
	})
}

func (s *Server) findSite(c *gin.Context) (*models.Site, bool) {
	site, err := s.store.FindSite(c.Param("site"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}

	return site, true
}

package server

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetpulse/fleetpulse/internal/models"
)

// API bundles the collector's HTTP handlers with their collaborators.
type API struct {
	store RecordStore
	log   *slog.Logger
	now   func() time.Time
}

// NewAPI creates the handler set backed by the given store.
func NewAPI(store RecordStore, log *slog.Logger) *API {
	return &API{store: store, log: log, now: time.Now}
}

// Register wires up the collector routes. When agentToken is non-empty
// the ingest route requires "Authorization: Bearer <agentToken>".
func (a *API) Register(r *gin.Engine, agentToken string) {
	ingest := r.Group("/")
	if agentToken != "" {
		ingest.Use(AgentTokenMiddleware(agentToken))
	}
	ingest.POST("/send", a.handleSend)

	r.GET("/query", a.handleQuery)
	r.GET("/download/json", a.handleDownloadJSON)
	r.GET("/download/csv", a.handleDownloadCSV)
	r.GET("/api/stats", a.handleStats)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// AgentTokenMiddleware guards the ingest route with a pre-shared key.
// It checks: Authorization: Bearer <token>
func AgentTokenMiddleware(token string) gin.HandlerFunc {
	expected := "Bearer " + token
	return func(c *gin.Context) {
		if raw := c.GetHeader("Authorization"); raw == "" || raw != expected {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or missing agent token",
			})
			return
		}
		c.Next()
	}
}

// handleSend accepts one snapshot from an agent.
//
//	POST /send
func (a *API) handleSend(c *gin.Context) {
	var snap models.Snapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored := models.StoredSnapshot{Snapshot: snap, ReceivedAt: a.now()}
	id, err := a.store.Append(&stored)
	if err != nil {
		a.log.Error("append failed", "agent_id", snap.AgentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store snapshot"})
		return
	}

	a.log.Info("snapshot stored", "id", id, "agent_id", snap.AgentID, "ip", snap.IP)
	c.JSON(http.StatusOK, gin.H{"status": "success", "id": id})
}

// handleQuery returns all records for one IP; 404 when none match.
//
//	GET /query?ip=10.0.0.5
func (a *API) handleQuery(c *gin.Context) {
	ip := c.Query("ip")
	if ip == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ip query parameter required"})
		return
	}

	results, err := a.store.ListByIP(ip)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(results) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "ip not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// listForDownload resolves the optional ip filter shared by both
// download handlers.
func (a *API) listForDownload(c *gin.Context) ([]models.StoredSnapshot, bool) {
	var (
		results []models.StoredSnapshot
		err     error
	)
	if ip := c.Query("ip"); ip != "" {
		results, err = a.store.ListByIP(ip)
	} else {
		results, err = a.store.ListAll()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if len(results) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data available"})
		return nil, false
	}
	return results, true
}

// handleDownloadJSON serves the record set as a JSON attachment.
//
//	GET /download/json[?ip=]
func (a *API) handleDownloadJSON(c *gin.Context) {
	results, ok := a.listForDownload(c)
	if !ok {
		return
	}
	name := fmt.Sprintf("system_data_%s.json", a.now().Format("20060102_150405"))
	c.Header("Content-Disposition", `attachment; filename=`+name)
	c.JSON(http.StatusOK, results)
}

// handleDownloadCSV serves a flat CSV summary of the record set.
//
//	GET /download/csv[?ip=]
func (a *API) handleDownloadCSV(c *gin.Context) {
	results, ok := a.listForDownload(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"ip", "agent_id", "cpu_count", "cpu_frequency", "os_name", "os_version", "timestamp", "received_at"})
	for i := range results {
		r := &results[i]
		freq := ""
		if r.CPU.Frequency != nil {
			freq = strconv.FormatFloat(r.CPU.Frequency.Current, 'f', -1, 64)
		}
		_ = w.Write([]string{
			r.IP,
			r.AgentID,
			strconv.Itoa(r.CPU.Count),
			freq,
			r.OS.Name,
			r.OS.Version,
			r.Timestamp.Format(time.RFC3339),
			r.ReceivedAt.Format(time.RFC3339),
		})
	}
	w.Flush()

	name := fmt.Sprintf("system_data_%s.csv", a.now().Format("20060102_150405"))
	c.Header("Content-Disposition", `attachment; filename=`+name)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// handleStats recomputes the aggregated dashboard view. An empty store
// is a valid steady state here: the response is all zeros, not an error.
//
//	GET /api/stats
func (a *API) handleStats(c *gin.Context) {
	records, err := a.store.ListAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, Aggregate(records, a.now()))
}

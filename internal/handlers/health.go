package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/orgperms-api/internal/database"
)

// Health reports liveness and whether the database answers a ping.
func Health(c *gin.Context) {
	status := "ok"
	dbStatus := "connected"
	code := http.StatusOK

	db := database.GetDB()
	if db == nil {
		dbStatus = "not configured"
		status = "degraded"
		code = http.StatusServiceUnavailable
	} else if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		dbStatus = "unreachable"
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"database":  dbStatus,
		"timestamp": time.Now().UTC(),
	})
}

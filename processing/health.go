package worker

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// InFlightCounter reports the current in-flight delivery count
type InFlightCounter interface {
	InFlight() int64
}

// HealthRouter serves the liveness surface on GET / and GET /health.
// It only reads an atomic counter, so processing never blocks it.
func HealthRouter(w InFlightCounter, service, subscription string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "healthy",
			"service":         service,
			"subscription":    subscription,
			"in_flight_count": w.InFlight(),
		})
	}
	r.GET("/", handler)
	r.GET("/health", handler)
	return r
}

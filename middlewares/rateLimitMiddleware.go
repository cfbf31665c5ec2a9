package middlewares

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cargolense/tradedocs_backend/config"
	"github.com/cargolense/tradedocs_backend/utils"
	"github.com/gin-gonic/gin"
)

const defaultIngestLimitPerMinute = 600

// IngestRateLimit caps document ingestion per org per minute. Counters are
// keyed by minute bucket so a crashed instance leaves no stuck state; the key
// expires shortly after its bucket closes. Redis being unavailable never
// blocks ingestion.
func IngestRateLimit() gin.HandlerFunc {
	limit := defaultIngestLimitPerMinute
	if v, err := strconv.Atoi(os.Getenv("INGEST_RATE_LIMIT_PER_MINUTE")); err == nil && v > 0 {
		limit = v
	}

	return func(c *gin.Context) {
		orgId, ok := utils.GetOrgIdFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		bucket := time.Now().UTC().Format("200601021504")
		key := fmt.Sprintf("RateLimit:ingest:%s:%s", orgId, bucket)
		count, err := config.GetRedisCounter(c.Request.Context(), key)
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			if rdb := config.GetRedisDB(); rdb != nil {
				rdb.Expire(c.Request.Context(), key, 2*time.Minute)
			}
		}
		if count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "ingest rate limit exceeded"})
			return
		}
		c.Next()
	}
}

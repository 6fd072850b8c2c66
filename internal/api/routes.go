package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getchatads/chatads-relay/internal/chatads"
	"github.com/getchatads/chatads-relay/internal/json"
)

// setupRoutes configures the relay endpoints. Everything is unauthenticated
// on this side; the upstream credential travels in the x-api-key header and
// is validated by ChatAds, not here.
func (s *Server) setupRoutes() {
	v1 := s.engine.Group("/v1")
	{
		v1.POST("/message/send", s.handleMessageSend)
	}

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		s.metrics.Registry(), promhttp.HandlerOpts{})))

	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "ChatAds Relay",
			"endpoints": []string{
				"POST /v1/message/send",
				"GET /health",
				"GET /metrics",
			},
		})
	})
}

// sendRequest is the inbound tool-call body. Field names follow the caller
// convention (snake_case user_agent), not the upstream wire casing.
type sendRequest struct {
	Message   string `json:"message"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
	Country   string `json:"country"`
	Language  string `json:"language"`
}

// handleMessageSend runs one message through the pipeline. The response is
// always HTTP 200 with a normalized result; failures travel in-band as
// status=error so tool-calling clients never need transport error handling.
func (s *Server) handleMessageSend(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusOK, invalidBodyResult("Request body could not be read"))
		return
	}

	var req sendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusOK, invalidBodyResult("Request body must be a JSON object"))
		return
	}

	result := s.Relay().Send(c.Request.Context(), chatads.Request{
		Message:   req.Message,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Country:   req.Country,
		Language:  req.Language,
	}, c.GetHeader("x-api-key"))

	c.JSON(http.StatusOK, result)
}

// handleHealth reports upstream reachability. Healthy and degraded both map
// to HTTP 200 so load balancers only eject the instance when the upstream is
// genuinely unreachable.
func (s *Server) handleHealth(c *gin.Context) {
	health := s.Relay().Health(c.Request.Context())

	statusCode := http.StatusOK
	if health.Status == chatads.HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, health)
}

func invalidBodyResult(message string) chatads.Result {
	apiErr := chatads.NewAPIError(chatads.CodeInvalidInput, message)
	return chatads.Result{
		Status:       chatads.StatusError,
		ErrorCode:    apiErr.Code,
		ErrorMessage: apiErr.Message,
		Metadata:     chatads.Metadata{RequestID: chatads.LocalRequestID()},
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, x-api-key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Package httpapi exposes the buyer-app client API and the protocol
// callback intake over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bapflow/internal/observability"
	"bapflow/internal/protocol"
	"bapflow/internal/realtime"
	"bapflow/internal/transport"
)

// ConfirmService is the orchestrator surface the API exposes.
type ConfirmService interface {
	ConfirmOrder(ctx context.Context, req *protocol.OrderRequest) (*protocol.Response, error)
	ConfirmMultipleOrder(ctx context.Context, reqs []*protocol.OrderRequest) ([]*protocol.Response, error)
	OnConfirmOrder(ctx context.Context, messageID string) (*protocol.Response, error)
	OnConfirmMultipleOrder(ctx context.Context, messageIDs []string) ([]*protocol.Response, error)
}

// CallbackSink receives inbound protocol callbacks.
type CallbackSink interface {
	Append(ctx context.Context, messageID string, response protocol.Response) error
}

// Server holds the API dependencies.
type Server struct {
	service   ConfirmService
	callbacks CallbackSink
	hub       *realtime.Hub
	metrics   *observability.Metrics
	limiter   *transport.RateLimiter
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// NewServer constructs the API server.
func NewServer(service ConfirmService, callbacks CallbackSink, hub *realtime.Hub, metrics *observability.Metrics, limiter *transport.RateLimiter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		service:   service,
		callbacks: callbacks,
		hub:       hub,
		metrics:   metrics,
		limiter:   limiter,
		upgrader:  websocket.Upgrader{},
		logger:    logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.rateLimitMiddleware())

	client := router.Group("/clientApis")
	client.POST("/v1/confirm_order", s.handleConfirmOrder)
	client.POST("/v2/confirm_order", s.handleConfirmMultipleOrder)
	client.GET("/v1/on_confirm_order", s.handleOnConfirmOrder)
	client.GET("/v2/on_confirm_order", s.handleOnConfirmMultipleOrder)

	router.POST("/protocol/v1/on_confirm", s.handleProtocolOnConfirm)
	router.GET("/ws/orders", s.handleOrderSocket)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
	router.GET("/metrics", gin.WrapH(observability.Handler(s.metrics)))

	return router
}

func (s *Server) handleConfirmOrder(c *gin.Context) {
	span := s.metrics.Start("confirmOrder")

	var req protocol.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.EndRejected()
		c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	resp, err := s.service.ConfirmOrder(c.Request.Context(), &req)
	if err != nil {
		span.End(err)
		s.logger.Error("confirm order failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	if resp.Error != nil {
		span.EndRejected()
	} else {
		span.End(nil)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleConfirmMultipleOrder(c *gin.Context) {
	span := s.metrics.Start("confirmMultipleOrder")

	var reqs []*protocol.OrderRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		span.EndRejected()
		c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	resps, err := s.service.ConfirmMultipleOrder(c.Request.Context(), reqs)
	if err != nil {
		span.End(err)
		s.logger.Error("confirm multiple orders failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	span.End(nil)
	c.JSON(http.StatusOK, resps)
}

func (s *Server) handleOnConfirmOrder(c *gin.Context) {
	span := s.metrics.Start("onConfirmOrder")

	messageID := strings.TrimSpace(c.Query("messageId"))
	if messageID == "" {
		span.EndRejected()
		c.JSON(http.StatusBadRequest, errorBody("messageId is required"))
		return
	}

	resp, err := s.service.OnConfirmOrder(c.Request.Context(), messageID)
	if err != nil {
		span.End(err)
		s.logger.Error("on_confirm fetch failed", zap.String("message_id", messageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	span.End(nil)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleOnConfirmMultipleOrder(c *gin.Context) {
	span := s.metrics.Start("onConfirmMultipleOrder")

	messageIDs := splitIDs(c.Query("messageIds"))
	if len(messageIDs) == 0 {
		span.EndRejected()
		c.JSON(http.StatusBadRequest, errorBody("messageIds is required"))
		return
	}

	resps, err := s.service.OnConfirmMultipleOrder(c.Request.Context(), messageIDs)
	if err != nil {
		span.End(err)
		s.logger.Error("on_confirm batch fetch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	span.End(nil)
	c.JSON(http.StatusOK, resps)
}

// handleProtocolOnConfirm ingests a BPP's asynchronous on_confirm
// callback: persist by message id, notify connected buyer apps, ack.
func (s *Server) handleProtocolOnConfirm(c *gin.Context) {
	span := s.metrics.Start("protocolOnConfirm")

	var resp protocol.Response
	if err := c.ShouldBindJSON(&resp); err != nil || resp.Context == nil || resp.Context.MessageID == "" {
		span.EndRejected()
		c.JSON(http.StatusBadRequest, nackBody("invalid on_confirm payload"))
		return
	}

	if err := s.callbacks.Append(c.Request.Context(), resp.Context.MessageID, resp); err != nil {
		span.End(err)
		s.logger.Error("store on_confirm callback failed",
			zap.String("message_id", resp.Context.MessageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, nackBody(err.Error()))
		return
	}

	if s.hub != nil {
		status := "CONFIRMED"
		if resp.Error != nil {
			status = "FAILED"
		}
		s.hub.Publish(realtime.OrderUpdate{
			TransactionID: resp.Context.TransactionID,
			MessageID:     resp.Context.MessageID,
			BppID:         resp.Context.BppID,
			Status:        status,
		})
	}

	span.End(nil)
	c.JSON(http.StatusOK, protocol.Response{
		Context: resp.Context,
		Message: &protocol.Message{Ack: &protocol.Ack{Status: protocol.AckStatusACK}},
	})
}

func (s *Server) handleOrderSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.hub.Register <- conn

	// Drain client frames; unregister on close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.Unregister <- conn
				return
			}
		}
	}()
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil {
			if err := s.limiter.Wait(c.Request.Context()); err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody("request canceled while rate limited"))
				return
			}
		}
		c.Next()
	}
}

func errorBody(message string) gin.H {
	return gin.H{"error": gin.H{"message": message}}
}

func nackBody(message string) protocol.Response {
	return protocol.Response{
		Message: &protocol.Message{Ack: &protocol.Ack{Status: protocol.AckStatusNACK}},
		Error:   &protocol.Error{Message: message},
	}
}

func splitIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

package facilitator

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	insurance "github.com/x402-foundation/x402-insurance"
)

const requestIDHeader = "X-Request-Id"

// Server exposes the facilitator over HTTP:
//
//	POST /verify     validate a settlement transaction without submitting
//	POST /settle     relay a settlement transaction and await confirmation
//	GET  /supported  capability discovery document
//	GET  /health     liveness probe
type Server struct {
	facilitator *Facilitator
	engine      *gin.Engine
}

// NewServer wires the facilitator's endpoints onto a gin engine.
func NewServer(f *Facilitator) *Server {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), requestID())

	s := &Server{facilitator: f, engine: engine}
	engine.POST("/verify", s.handleVerify)
	engine.POST("/settle", s.handleSettle)
	engine.GET("/supported", s.handleSupported)
	engine.GET("/health", s.handleHealth)
	return s
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// Handler returns the server as a net/http handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the given address until the listener fails.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) handleVerify(c *gin.Context) {
	var req insurance.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Transaction == "" {
		c.JSON(http.StatusBadRequest, insurance.VerifyResponse{
			Valid:  false,
			Reason: insurance.ErrCodeInvalidStructure + ": transaction field is required",
		})
		return
	}

	resp, err := s.facilitator.Verify(c.Request.Context(), req.Transaction)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if !resp.Valid {
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSettle(c *gin.Context) {
	var req insurance.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Transaction == "" {
		c.JSON(http.StatusBadRequest, insurance.SettleResponse{
			Success: false,
			Error:   insurance.ErrCodeInvalidData + ": transaction field is required",
		})
		return
	}

	resp, err := s.facilitator.Settle(c.Request.Context(), req.Transaction, req.Gasless)
	if err != nil {
		c.JSON(settleStatus(err), insurance.SettleResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func settleStatus(err error) int {
	var ie *insurance.InsuranceError
	if !errors.As(err, &ie) {
		return http.StatusInternalServerError
	}
	switch ie.Code {
	case insurance.ErrCodeInvalidData, insurance.ErrCodeNotSignedByClient:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleSupported(c *gin.Context) {
	c.JSON(http.StatusOK, s.facilitator.Supported())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": insurance.ProtocolVersion,
	})
}

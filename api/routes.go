package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerRoutes() {
	s.engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "not found"})
	})

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/transactions", s.submitTransaction)
		v1.GET("/accounts/:owner", s.getAccount)
		v1.GET("/accounts/:owner/events", s.getEvents)
		v1.GET("/token-accounts/:address", s.getTokenAccount)
	}

	if s.faucet != nil {
		faucet := v1.Group("/faucet")
		{
			faucet.POST("/airdrop", s.airdrop)
			faucet.POST("/token-accounts", s.createTokenAccount)
			faucet.POST("/mint", s.mint)
		}
	}
}

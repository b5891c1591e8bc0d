package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lukasz-zimnoch/sanad/trading"
	"github.com/lukasz-zimnoch/sanad/trading/instruction"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	engine    *gin.Engine
	processor *instruction.Processor
	manager   *trading.AccountManager
	store     trading.Store
	faucet    *trading.Faucet
	logger    trading.Logger
}

// NewServer builds the HTTP API. The faucet routes are registered only when
// faucet is not nil.
func NewServer(
	processor *instruction.Processor,
	manager *trading.AccountManager,
	store trading.Store,
	faucet *trading.Faucet,
	logger trading.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		engine:    gin.New(),
		processor: processor,
		manager:   manager,
		store:     store,
		faucet:    faucet,
		logger:    logger.WithField("component", "api"),
	}

	server.engine.Use(server.requestLogger(), server.recovery())
	server.registerRoutes()

	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Run serves on the address until the context is done, then shuts the
// server down gracefully.
func (s *Server) Run(ctx context.Context, address string) error {
	httpServer := &http.Server{
		Addr:    address,
		Handler: s.engine,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Infof("listening on [%v]", address)
		errChan <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("could not serve: [%v]", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()

		s.logger.Infof("shutting down")

		err := httpServer.Shutdown(shutdownCtx)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not shut down: [%v]", err)
		}

		return nil
	}
}

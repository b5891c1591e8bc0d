package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lukasz-zimnoch/sanad/trading"
	"github.com/lukasz-zimnoch/sanad/trading/instruction"
)

type errorResponse struct {
	Error string `json:"error"`
}

var errorStatuses = []struct {
	err    error
	status int
}{
	{trading.ErrAccountNotFound, http.StatusNotFound},
	{trading.ErrTokenAccountNotFound, http.StatusNotFound},
	{trading.ErrUnauthorized, http.StatusForbidden},
	{trading.ErrTokenOwnerMismatch, http.StatusForbidden},
	{instruction.ErrInvalidSignature, http.StatusUnauthorized},
	{trading.ErrAccountAlreadyExists, http.StatusConflict},
	{trading.ErrTokenAccountAlreadyExists, http.StatusConflict},
	{trading.ErrTransactionConflict, http.StatusConflict},
	{instruction.ErrReplayedTransaction, http.StatusConflict},
	{trading.ErrAccountNotActive, http.StatusUnprocessableEntity},
	{trading.ErrAmountExceedsLimit, http.StatusUnprocessableEntity},
	{trading.ErrArithmeticOverflow, http.StatusUnprocessableEntity},
	{trading.ErrInsufficientFunds, http.StatusUnprocessableEntity},
	{trading.ErrMintMismatch, http.StatusUnprocessableEntity},
	{trading.ErrAddressMismatch, http.StatusUnprocessableEntity},
	{instruction.ErrExpiredTransaction, http.StatusUnprocessableEntity},
	{instruction.ErrMalformed, http.StatusBadRequest},
	{instruction.ErrUnknownInstruction, http.StatusBadRequest},
	{instruction.ErrMissingAccounts, http.StatusBadRequest},
}

func errorStatus(err error) int {
	for _, candidate := range errorStatuses {
		if errors.Is(err, candidate.err) {
			return candidate.status
		}
	}

	return http.StatusInternalServerError
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	status := errorStatus(err)

	if status == http.StatusInternalServerError {
		s.logger.Errorf("request failed: [%v]", err)
		c.AbortWithStatusJSON(status, errorResponse{Error: "internal error"})
		return
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

func (s *Server) abortWithBadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

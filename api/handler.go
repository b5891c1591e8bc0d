package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/lukasz-zimnoch/sanad/trading"
)

const (
	defaultEventsLimit = 20
	maxEventsLimit     = 100
)

type submitTransactionRequest struct {
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

func (s *Server) submitTransaction(c *gin.Context) {
	var request submitTransactionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		s.abortWithBadRequest(c, err)
		return
	}

	message, err := base64.StdEncoding.DecodeString(request.Message)
	if err != nil {
		s.abortWithBadRequest(c, fmt.Errorf("message is not base64: [%v]", err))
		return
	}

	signature, err := solana.SignatureFromBase58(request.Signature)
	if err != nil {
		s.abortWithBadRequest(c, fmt.Errorf("signature is not base58: [%v]", err))
		return
	}

	result, err := s.processor.Process(c.Request.Context(), message, signature)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	view := &transactionResultView{
		Instruction: result.Instruction,
		Address:     result.Address.String(),
		Account:     newAccountView(result.Account),
	}

	if result.Receipt != nil {
		view.FeeAmount = &result.Receipt.FeeAmount
		view.NetAmount = &result.Receipt.NetAmount
		view.Event = newEventView(result.Receipt.Event)
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) getAccount(c *gin.Context) {
	owner, ok := s.publicKeyParam(c, "owner")
	if !ok {
		return
	}

	account, err := s.manager.AccountOf(c.Request.Context(), owner)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newAccountView(account))
}

func (s *Server) getEvents(c *gin.Context) {
	owner, ok := s.publicKeyParam(c, "owner")
	if !ok {
		return
	}

	limit := defaultEventsLimit
	if rawLimit := c.Query("limit"); len(rawLimit) > 0 {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 || parsed > maxEventsLimit {
			s.abortWithBadRequest(
				c,
				fmt.Errorf("limit must be between 1 and %v", maxEventsLimit),
			)
			return
		}

		limit = parsed
	}

	events, err := s.store.Events(c.Request.Context(), owner, limit)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	views := make([]*eventView, len(events))
	for i, event := range events {
		views[i] = newEventView(event)
	}

	c.JSON(http.StatusOK, gin.H{"events": views})
}

func (s *Server) getTokenAccount(c *gin.Context) {
	address, ok := s.publicKeyParam(c, "address")
	if !ok {
		return
	}

	account, err := trading.LoadTokenAccount(c.Request.Context(), s.store, address)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTokenAccountView(account))
}

type airdropRequest struct {
	Owner    string `json:"owner" binding:"required"`
	Lamports uint64 `json:"lamports" binding:"required"`
}

func (s *Server) airdrop(c *gin.Context) {
	var request airdropRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		s.abortWithBadRequest(c, err)
		return
	}

	owner, err := solana.PublicKeyFromBase58(request.Owner)
	if err != nil {
		s.abortWithBadRequest(c, fmt.Errorf("invalid owner: [%v]", err))
		return
	}

	balance, err := s.faucet.Airdrop(c.Request.Context(), owner, request.Lamports)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"owner": owner.String(), "lamports": balance})
}

type createTokenAccountRequest struct {
	Owner string `json:"owner" binding:"required"`
	Mint  string `json:"mint" binding:"required"`
}

func (s *Server) createTokenAccount(c *gin.Context) {
	var request createTokenAccountRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		s.abortWithBadRequest(c, err)
		return
	}

	owner, err := solana.PublicKeyFromBase58(request.Owner)
	if err != nil {
		s.abortWithBadRequest(c, fmt.Errorf("invalid owner: [%v]", err))
		return
	}

	mint, err := solana.PublicKeyFromBase58(request.Mint)
	if err != nil {
		s.abortWithBadRequest(c, fmt.Errorf("invalid mint: [%v]", err))
		return
	}

	account, err := s.faucet.CreateTokenAccount(c.Request.Context(), owner, mint)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newTokenAccountView(account))
}

type mintRequest struct {
	Address string `json:"address" binding:"required"`
	Amount  uint64 `json:"amount" binding:"required"`
}

func (s *Server) mint(c *gin.Context) {
	var request mintRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		s.abortWithBadRequest(c, err)
		return
	}

	address, err := solana.PublicKeyFromBase58(request.Address)
	if err != nil {
		s.abortWithBadRequest(c, fmt.Errorf("invalid address: [%v]", err))
		return
	}

	account, err := s.faucet.MintTo(c.Request.Context(), address, request.Amount)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTokenAccountView(account))
}

func (s *Server) publicKeyParam(c *gin.Context, name string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(c.Param(name))
	if err != nil {
		s.abortWithBadRequest(c, fmt.Errorf("invalid %v: [%v]", name, err))
		return solana.PublicKey{}, false
	}

	return key, true
}

package api

import (
	"fmt"
	"net/http"
	"time"

	basemodels "github.com/CrystalRanch/Payout-Backend/models"
	"github.com/CrystalRanch/Payout-Backend/services/payout"
	"github.com/gin-gonic/gin"
)

type Withdrawals struct {
	server *Server
}

type createWithdrawalRequest struct {
	Address string `json:"address" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
	UserID  string `json:"user_id" binding:"required"`
}

type withdrawalResponse struct {
	ID                   string `json:"id"`
	Address              string `json:"address"`
	RequestedAmount      string `json:"requested_amount"`
	Status               string `json:"status"`
	Attempts             int    `json:"attempts"`
	LastError            string `json:"last_error,omitempty"`
	SentAmount           string `json:"sent_amount,omitempty"`
	TransactionReference string `json:"transaction_reference,omitempty"`
	CompletedAt          string `json:"completed_at,omitempty"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

func toWithdrawalResponse(req *payout.WithdrawalRequest) withdrawalResponse {
	resp := withdrawalResponse{
		ID:                   req.ID,
		Address:              req.Address,
		RequestedAmount:      req.RequestedAmount,
		Status:               string(req.Status),
		Attempts:             req.Attempts,
		LastError:            req.LastError,
		TransactionReference: req.TransactionReference,
		CreatedAt:            req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            req.UpdatedAt.Format(time.RFC3339),
	}
	if !req.SentAmount.IsZero() {
		resp.SentAmount = req.SentAmount.String()
	}
	if !req.CompletedAt.IsZero() {
		resp.CompletedAt = req.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func (w Withdrawals) router(server *Server) {
	w.server = server

	serverGroupV1 := server.router.Group("/api/v1")
	auth := OpsAuthMiddleware(server.config.OpsAPIKey)

	serverGroupV1.POST("/withdrawals", auth, w.createWithdrawal)
	serverGroupV1.GET("/withdrawals", auth, w.listWithdrawals)
	serverGroupV1.GET("/withdrawals/:id", auth, w.getWithdrawal)
	serverGroupV1.GET("/wallet", auth, w.getWallet)
	serverGroupV1.POST("/engine/run", auth, w.runEngine)
}

// createWithdrawal is the producer intake: it appends a pending request and
// nudges the engine. The id embeds the requester for later notification.
func (w *Withdrawals) createWithdrawal(ctx *gin.Context) {
	var body createWithdrawalRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(err.Error()))
		return
	}

	req := payout.WithdrawalRequest{
		ID:              fmt.Sprintf("wd_%d_%s", time.Now().UnixMilli(), body.UserID),
		Address:         body.Address,
		RequestedAmount: body.Amount,
		Status:          payout.StatusPending,
	}

	if err := w.server.store.Create(ctx, req); err != nil {
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError("could not create withdrawal request"))
		return
	}

	w.server.engine.Trigger()

	ctx.JSON(http.StatusCreated, basemodels.NewSuccess("Withdrawal request accepted", gin.H{"id": req.ID}))
}

func (w *Withdrawals) listWithdrawals(ctx *gin.Context) {
	status := payout.Status(ctx.DefaultQuery("status", string(payout.StatusPending)))

	requests, err := w.server.store.ListByStatus(ctx, status)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError("could not list withdrawal requests"))
		return
	}

	out := make([]withdrawalResponse, 0, len(requests))
	for i := range requests {
		out = append(out, toWithdrawalResponse(&requests[i]))
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Withdrawal requests fetched", out))
}

func (w *Withdrawals) getWithdrawal(ctx *gin.Context) {
	req, err := w.server.store.Get(ctx, ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError("could not fetch withdrawal request"))
		return
	}
	if req == nil {
		ctx.JSON(http.StatusNotFound, basemodels.NewError("withdrawal request not found"))
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Withdrawal request fetched", toWithdrawalResponse(req)))
}

func (w *Withdrawals) getWallet(ctx *gin.Context) {
	balance, err := w.server.ledger.GetBalance(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadGateway, basemodels.NewError("could not read wallet balance"))
		return
	}

	seqno, err := w.server.ledger.GetSequenceNumber(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadGateway, basemodels.NewError("could not read wallet sequence number"))
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Wallet state fetched", gin.H{
		"address": w.server.ledger.WalletAddress(),
		"balance": balance.String(),
		"seqno":   seqno,
	}))
}

func (w *Withdrawals) runEngine(ctx *gin.Context) {
	w.server.engine.Trigger()
	ctx.JSON(http.StatusAccepted, basemodels.NewSuccess("Batch run triggered", nil))
}

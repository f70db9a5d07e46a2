package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bj-service/internal/chain"
	"bj-service/internal/service"
	"bj-service/internal/service/round"
	"bj-service/internal/ws"
	appErr "bj-service/pkg/errors"
	"bj-service/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Round)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/bjService/v1")
	{
		roundGroup := v1.Group("/round")
		{
			roundGroup.POST("/start", handler.StartRound)
			roundGroup.POST("/hit", handler.Hit)
			roundGroup.POST("/stand", handler.Stand)
			roundGroup.POST("/double", handler.Double)
			roundGroup.POST("/split", handler.Split)
			roundGroup.POST("/reset", handler.ResetSession)
			roundGroup.GET("/state", handler.RoundState)
			roundGroup.GET("/history", handler.RoundHistory)
			roundGroup.GET("/proof", handler.RoundProof)
		}

		vaultGroup := v1.Group("/vault")
		{
			vaultGroup.POST("/deposit", handler.VaultDeposit)
			vaultGroup.POST("/withdraw", handler.VaultWithdraw)
			vaultGroup.GET("/balances", handler.VaultBalances)
		}
	}

	r.GET("/ws/round/:address", wsHandler.HandleRoundWS)
}

type startRoundBody struct {
	PlayerAddress string `json:"playerAddress" binding:"required"`
	StakeEth      string `json:"stakeEth" binding:"required"`
}

type roundActionBody struct {
	PlayerAddress string `json:"playerAddress" binding:"required"`
}

type vaultAmountBody struct {
	AmountEth string `json:"amountEth" binding:"required"`
}

func (h *Handler) StartRound(c *gin.Context) {
	var body startRoundBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := h.services.Round.Start(c.Request.Context(), body.PlayerAddress, body.StakeEth)
	if err != nil {
		respondRoundError(c, err)
		return
	}
	response.Success(c, snap)
}

func (h *Handler) Hit(c *gin.Context) {
	h.roundAction(c, h.services.Round.Hit)
}

func (h *Handler) Stand(c *gin.Context) {
	h.roundAction(c, h.services.Round.Stand)
}

func (h *Handler) Double(c *gin.Context) {
	h.roundAction(c, h.services.Round.Double)
}

func (h *Handler) Split(c *gin.Context) {
	h.roundAction(c, h.services.Round.Split)
}

func (h *Handler) roundAction(c *gin.Context, action func(ctx context.Context, player string) (round.Snapshot, error)) {
	var body roundActionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := action(c.Request.Context(), body.PlayerAddress)
	if err != nil {
		respondRoundError(c, err)
		return
	}
	response.Success(c, snap)
}

func (h *Handler) ResetSession(c *gin.Context) {
	var body roundActionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.services.Round.ResetOnAccountChange(body.PlayerAddress); err != nil {
		respondRoundError(c, err)
		return
	}
	response.SuccessWithMsg(c, gin.H{}, "session reset")
}

func (h *Handler) RoundState(c *gin.Context) {
	snap, err := h.services.Round.State(c.Request.Context(), c.Query("playerAddress"))
	if err != nil {
		respondRoundError(c, err)
		return
	}
	response.Success(c, snap)
}

func (h *Handler) RoundHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	records, err := h.services.Round.History(c.Request.Context(), c.Query("playerAddress"), limit)
	if err != nil {
		respondRoundError(c, err)
		return
	}
	response.Success(c, gin.H{"rounds": records})
}

func (h *Handler) RoundProof(c *gin.Context) {
	proof, err := h.services.Round.LastProof(c.Request.Context(), c.Query("playerAddress"))
	if err != nil {
		respondRoundError(c, err)
		return
	}
	response.Success(c, proof)
}

func (h *Handler) VaultDeposit(c *gin.Context) {
	var body vaultAmountBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := chain.ParseEther(strings.TrimSpace(body.AmountEth))
	if err != nil || amount.Sign() <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid amount")
		return
	}
	if err := h.services.Vault.Deposit(c.Request.Context(), amount); err != nil {
		respondRoundError(c, err)
		return
	}
	response.SuccessWithMsg(c, gin.H{"amountEth": chain.FormatEther(amount)}, "deposit confirmed")
}

func (h *Handler) VaultWithdraw(c *gin.Context) {
	var body vaultAmountBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := chain.ParseEther(strings.TrimSpace(body.AmountEth))
	if err != nil || amount.Sign() <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid amount")
		return
	}
	if err := h.services.Vault.Withdraw(c.Request.Context(), amount); err != nil {
		respondRoundError(c, err)
		return
	}
	response.SuccessWithMsg(c, gin.H{"amountEth": chain.FormatEther(amount)}, "withdrawal confirmed")
}

func (h *Handler) VaultBalances(c *gin.Context) {
	pool, err := h.services.Vault.PoolBalance(c.Request.Context())
	if err != nil {
		respondRoundError(c, err)
		return
	}
	data := gin.H{"gamePoolEth": chain.FormatEther(pool)}

	if player := c.Query("playerAddress"); player != "" {
		if !common.IsHexAddress(player) {
			respondRoundError(c, appErr.ErrInvalidAddress)
			return
		}
		info, err := h.services.Vault.UserInfo(c.Request.Context(), common.HexToAddress(player))
		if err != nil {
			respondRoundError(c, err)
			return
		}
		data["username"] = info.Username
		data["balanceEth"] = chain.FormatEther(info.Balance)
		data["frozen"] = info.Frozen
	}
	response.Success(c, data)
}

func respondRoundError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appErr.ErrInvalidAddress),
		errors.Is(err, appErr.ErrStakeRequired),
		errors.Is(err, appErr.ErrStakeExceedsMax),
		errors.Is(err, appErr.ErrNotSplittable),
		errors.Is(err, appErr.ErrAlreadySplit),
		errors.Is(err, appErr.ErrDoubleUnavailable),
		errors.Is(err, appErr.ErrNotPlayerTurn),
		errors.Is(err, appErr.ErrRoundActive):
		response.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, appErr.ErrRoundInFlight):
		response.Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, appErr.ErrNoActiveRound),
		errors.Is(err, appErr.ErrRoundNotFound),
		errors.Is(err, appErr.ErrProofUnavailable):
		response.Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, appErr.ErrOrphanedStake),
		errors.Is(err, appErr.ErrEscrowFailed),
		errors.Is(err, appErr.ErrSettleFailed),
		errors.Is(err, appErr.ErrTransactionRevert),
		errors.Is(err, appErr.ErrDealer),
		errors.Is(err, appErr.ErrDealerBadPayload):
		response.Error(c, http.StatusBadGateway, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, err.Error())
	}
}

package api

import (
	"errors"
	"fmt"
	"strconv"

	"sectorscan/internal/domain"
	l3_service "sectorscan/internal/service/l3"

	"github.com/gin-gonic/gin"
)

type bookTradeRequest struct {
	Instrument string  `json:"ticker" binding:"required"`
	Price      float64 `json:"price" binding:"required,gt=0"`
	Quantity   int64   `json:"quantity" binding:"required,gt=0"`
	StopLoss   float64 `json:"stopLoss" binding:"gte=0"`
	Target     float64 `json:"target" binding:"gte=0"`
	Thesis     string  `json:"thesis"`
}

type closeTradeRequest struct {
	ExitPrice float64 `json:"exitPrice" binding:"required,gt=0"`
}

// ledgerErrorStatus maps typed ledger rejections onto http codes.
func ledgerErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrAlreadyActive):
		return 409
	case errors.Is(err, domain.ErrTradeNotFound):
		return 404
	case errors.Is(err, domain.ErrInvalidTrade):
		return 400
	}
	return 500
}

func (h ApiHandler) getTrades(c *gin.Context) {
	ledger, err := h.PaperTradeLedger.LoadTrades(c.Request.Context())
	if err != nil {
		returnErrorJson(err, c)
		return
	}
	c.JSON(200, ledger)
}

func (h ApiHandler) bookTrade(c *gin.Context) {
	var requestBody bookTradeRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}

	trade, err := h.PaperTradeLedger.BookTrade(c.Request.Context(), l3_service.BookTradeInput{
		Instrument: requestBody.Instrument,
		Price:      requestBody.Price,
		Quantity:   requestBody.Quantity,
		StopLoss:   requestBody.StopLoss,
		Target:     requestBody.Target,
		Thesis:     requestBody.Thesis,
	})
	if err != nil {
		returnErrorJsonCode(err, c, ledgerErrorStatus(err))
		return
	}

	c.JSON(201, trade)
}

func (h ApiHandler) closeTrade(c *gin.Context) {
	tradeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		returnErrorJsonCode(fmt.Errorf("invalid trade id %q", c.Param("id")), c, 400)
		return
	}

	var requestBody closeTradeRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}

	trade, err := h.PaperTradeLedger.CloseTrade(c.Request.Context(), tradeID, requestBody.ExitPrice)
	if err != nil {
		returnErrorJsonCode(err, c, ledgerErrorStatus(err))
		return
	}

	c.JSON(200, trade)
}

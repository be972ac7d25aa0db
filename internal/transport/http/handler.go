package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/duo-ledger/internal/capture"
	"github.com/richardliu001/duo-ledger/internal/ledger"
	"github.com/richardliu001/duo-ledger/internal/service"
	"go.uber.org/zap"
)

// defaultRecent mirrors the chat's "last five" listing.
const defaultRecent = 5

func RegisterHandlers(r *gin.Engine, svc *service.LedgerService, disp *capture.Dispatcher, allowed func(string) bool, log *zap.SugaredLogger) {
	v1 := r.Group("/v1")
	v1.Use(AllowListMiddleware(allowed, log))
	{
		v1.POST("/sessions/:id/capture", beginHandler(svc, disp.BeginCapture))
		v1.POST("/sessions/:id/status", beginHandler(svc, disp.BeginBalanceQuery))
		v1.POST("/sessions/:id/input", inputHandler(svc, disp))
		v1.GET("/wallets", walletsHandler(svc))
		v1.GET("/wallets/:wallet/balance", balanceHandler(svc))
		v1.GET("/payments", paymentsHandler(svc))
		v1.GET("/history", historyHandler(svc))
		v1.POST("/import", importHandler(svc))
	}
}

// paymentView is a Record plus the wallet symbol for display.
type paymentView struct {
	ledger.Record
	Symbol string `json:"symbol"`
}

func viewOf(p ledger.Payment) paymentView {
	return paymentView{Record: p.Record(), Symbol: p.WalletSymbol}
}

type balanceView struct {
	Wallet string `json:"wallet"`
	Symbol string `json:"symbol"`
	ledger.Balance
	Text string `json:"text"`
}

func balanceViewOf(dir ledger.Directory, wallet string, b ledger.Balance, text string) balanceView {
	symbol, _ := dir.SymbolFor(wallet)
	return balanceView{Wallet: wallet, Symbol: symbol, Balance: b, Text: text}
}

type replyView struct {
	State   capture.State `json:"state"`
	Wallet  string        `json:"wallet,omitempty"`
	Done    bool          `json:"done"`
	Options []string      `json:"options,omitempty"`
	Payment *paymentView  `json:"payment,omitempty"`
	Balance *balanceView  `json:"balance,omitempty"`
	Message string        `json:"message,omitempty"`
}

func replyViewOf(svc *service.LedgerService, r capture.Reply) replyView {
	v := replyView{State: r.State, Wallet: r.Wallet, Done: r.Done(), Options: r.Options}
	if r.Payment != nil {
		pv := viewOf(*r.Payment)
		v.Payment = &pv
		v.Message = r.Payment.Format()
	}
	if r.Balance != nil {
		bv := balanceViewOf(svc.Directory(), r.Wallet, *r.Balance, svc.BalanceText(r.Wallet, *r.Balance))
		v.Balance = &bv
	}
	return v
}

func beginHandler(svc *service.LedgerService, begin func(ctx context.Context, sessionID string) (capture.Reply, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		reply, err := begin(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, replyViewOf(svc, reply))
	}
}

type inputReq struct {
	Text string `json:"text" binding:"required"`
}

func inputHandler(svc *service.LedgerService, disp *capture.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req inputReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		reply, err := disp.HandleInput(c.Request.Context(), c.Param("id"), req.Text)
		if err != nil {
			body := gin.H{"error": err.Error()}
			if reply.State != "" {
				body["reply"] = replyViewOf(svc, reply)
			}
			c.JSON(statusFor(err), body)
			return
		}
		c.JSON(http.StatusOK, replyViewOf(svc, reply))
	}
}

type walletView struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

func walletsHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		dir := svc.Directory()
		names := dir.WalletNames()
		out := make([]walletView, len(names))
		for i, n := range names {
			symbol, _ := dir.SymbolFor(n)
			out[i] = walletView{Name: n, Symbol: symbol}
		}
		ids := dir.Identities()
		c.JSON(http.StatusOK, gin.H{"parties": ids[:], "wallets": out})
	}
}

func balanceHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet := c.Param("wallet")
		b, text, err := svc.FormatBalance(c.Request.Context(), wallet)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, balanceViewOf(svc.Directory(), wallet, b, text))
	}
}

func paymentsHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRecent)))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		ps, err := svc.RecentPayments(c.Request.Context(), c.Query("wallet"), limit)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]paymentView, len(ps))
		for i, p := range ps {
			out[i] = viewOf(p)
		}
		c.JSON(http.StatusOK, out)
	}
}

func historyHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := svc.ExportHistory(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="history.json"`)
		c.Data(http.StatusOK, "application/json", data)
	}
}

type importFailure struct {
	Index  int           `json:"index"`
	Record ledger.Record `json:"record"`
	Error  string        `json:"error"`
}

func importHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		results, err := svc.ImportJSON(c.Request.Context(), data)
		if err != nil {
			writeError(c, err)
			return
		}
		failed := service.Failed(results)
		out := make([]importFailure, len(failed))
		for i, r := range failed {
			out[i] = importFailure{Index: r.Index, Record: r.Record, Error: r.Err.Error()}
		}
		c.JSON(http.StatusOK, gin.H{"imported": len(results) - len(failed), "failed": out})
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnknownWallet):
		return http.StatusNotFound
	case ledger.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrMalformedInput), errors.Is(err, capture.ErrUnrecognizedInput):
		return http.StatusBadRequest
	case errors.Is(err, capture.ErrNoConversation), errors.Is(err, capture.ErrConversationOver):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrStorage):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

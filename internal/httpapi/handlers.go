package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"renthub-platform/internal/audit"
	"renthub-platform/internal/auth"
	"renthub-platform/internal/bankfeed"
	"renthub-platform/internal/ledger"
	"renthub-platform/internal/payment"
	"renthub-platform/internal/rbac"
	"renthub-platform/internal/reporting"
	"renthub-platform/internal/settlement"
	"renthub-platform/internal/withdrawal"
	"renthub-platform/pkg/logger"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth        *auth.Manager
	Payments    *payment.Service
	Ledger      *ledger.Service
	Reconciler  *settlement.Reconciler
	Withdrawals *withdrawal.Service
	Reports     *reporting.Service
	Audit       *audit.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	if rbac.IsInternalRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role not assignable"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
}

// --- Deposits ---

type createDepositRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Description string `json:"description,omitempty"`
}

func (h Handlers) CreateDeposit(c *gin.Context) {
	userID, ok := h.identity(c)
	if !ok {
		return
	}
	var req createDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	intent, err := h.Payments.Create(c.Request.Context(), userID, req.AmountMinor, req.Description)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, intent)
}

// IssueQR returns the transfer instructions for an intent. Idempotent
// while the intent stays open.
func (h Handlers) IssueQR(c *gin.Context) {
	intent, ok := h.ownedIntent(c)
	if !ok {
		return
	}
	updated, payload, err := h.Payments.IssueQR(c.Request.Context(), intent.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intent": updated, "qr": payload})
}

// GetDeposit is the authoritative status poll.
func (h Handlers) GetDeposit(c *gin.Context) {
	intent, ok := h.ownedIntent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, intent)
}

// CheckDeposit forces a reconciliation pass against the latest feed
// snapshot and returns the fresh status.
func (h Handlers) CheckDeposit(c *gin.Context) {
	intent, ok := h.ownedIntent(c)
	if !ok {
		return
	}
	fresh, err := h.Reconciler.CheckNow(c.Request.Context(), intent.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, fresh)
}

func (h Handlers) ListDeposits(c *gin.Context) {
	userID, ok := h.identity(c)
	if !ok {
		return
	}
	intents, err := h.Payments.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intents": intents})
}

// --- Wallet ---

func (h Handlers) GetBalance(c *gin.Context) {
	userID, ok := h.identity(c)
	if !ok {
		return
	}
	balance, err := h.Ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "balance_minor": balance})
}

func (h Handlers) ListLedger(c *gin.Context) {
	userID, ok := h.identity(c)
	if !ok {
		return
	}
	entries, err := h.Ledger.History(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// --- Withdrawals ---

type withdrawalRequest struct {
	AmountMinor   int64  `json:"amount_minor"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	HolderName    string `json:"holder_name"`
}

func (h Handlers) RequestWithdrawal(c *gin.Context) {
	userID, ok := h.identity(c)
	if !ok {
		return
	}
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	intent, err := h.Withdrawals.Request(c.Request.Context(), userID, req.AmountMinor, req.BankName, req.AccountNumber, req.HolderName)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, intent)
}

func (h Handlers) ListWithdrawals(c *gin.Context) {
	userID, ok := h.identity(c)
	if !ok {
		return
	}
	intents, err := h.Withdrawals.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intents": intents})
}

// --- Finance / admin ---

func (h Handlers) ListPendingWithdrawals(c *gin.Context) {
	intents, err := h.Withdrawals.ListPending(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intents": intents})
}

type withdrawalDecisionRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

func (h Handlers) DecideWithdrawal(c *gin.Context) {
	id := c.Param("id")
	var req withdrawalDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var (
		intent withdrawal.Intent
		err    error
	)
	if req.Approve {
		intent, err = h.Withdrawals.Approve(c.Request.Context(), id)
	} else {
		intent, err = h.Withdrawals.Reject(c.Request.Context(), id, req.Reason)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.auditDecision(c, id, req.Approve)
	c.JSON(http.StatusOK, intent)
}

func (h Handlers) ListReview(c *gin.Context) {
	intents, err := h.Reconciler.ListNeedsReview(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intents": intents})
}

type reviewResolutionRequest struct {
	Approve bool `json:"approve"`
}

func (h Handlers) ResolveReview(c *gin.Context) {
	id := c.Param("id")
	var req reviewResolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	intent, err := h.Reconciler.ResolveReview(c.Request.Context(), id, req.Approve)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.auditResolution(c, id, req.Approve)
	c.JSON(http.StatusOK, intent)
}

func (h Handlers) LedgerReport(c *gin.Context) {
	req := reporting.LedgerSummaryRequest{UserID: c.Query("user_id")}
	var ok bool
	if req.Range, ok = h.parseRange(c); !ok {
		return
	}
	sum, err := h.Reports.LedgerSummary(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h Handlers) SettlementReport(c *gin.Context) {
	var req reporting.SettlementSummaryRequest
	var ok bool
	if req.Range, ok = h.parseRange(c); !ok {
		return
	}
	sum, err := h.Reports.SettlementSummary(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- Webhooks ---

// BankWebhook receives gateway push events. The payload is advisory; a
// malformed body is a client error but an unmatched intent id is not, the
// gateway must not retry those forever.
func (h Handlers) BankWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<16))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	evt, err := bankfeed.ParsePushEvent(body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	intent, err := h.Reconciler.HandlePush(c.Request.Context(), evt)
	if errors.Is(err, payment.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted", "intent_status": intent.Status})
}

// --- Helpers ---

func (h Handlers) identity(c *gin.Context) (string, bool) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", false
	}
	return userID, true
}

// ownedIntent loads the path intent and enforces that callers only see
// their own deposits. Admin and finance read everything.
func (h Handlers) ownedIntent(c *gin.Context) (payment.Intent, bool) {
	userID, ok := h.identity(c)
	if !ok {
		return payment.Intent{}, false
	}
	intent, err := h.Payments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return payment.Intent{}, false
	}
	role, _ := auth.Role(c.Request.Context())
	if intent.UserID != userID && !rbac.IsAdmin(role) && role != rbac.RoleFinance {
		// Not found rather than forbidden: do not leak intent existence.
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "intent not found"})
		return payment.Intent{}, false
	}
	return intent, true
}

func (h Handlers) parseRange(c *gin.Context) (reporting.TimeRange, bool) {
	from, err1 := time.Parse(time.RFC3339, c.Query("from"))
	to, err2 := time.Parse(time.RFC3339, c.Query("to"))
	if err1 != nil || err2 != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to must be RFC3339"})
		return reporting.TimeRange{}, false
	}
	return reporting.TimeRange{From: from, To: to}, true
}

func (h Handlers) auditDecision(c *gin.Context, withdrawalID string, approved bool) {
	if h.Audit == nil {
		return
	}
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	decision := "rejected"
	if approved {
		decision = "approved"
	}
	if err := h.Audit.LogWithdrawalDecision(c.Request.Context(), uid, role, c.ClientIP(), withdrawalID, decision, ""); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

func (h Handlers) auditResolution(c *gin.Context, intentID string, approved bool) {
	if h.Audit == nil {
		return
	}
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	resolution := "rejected"
	if approved {
		resolution = "approved"
	}
	if err := h.Audit.LogReviewResolution(c.Request.Context(), uid, role, c.ClientIP(), intentID, resolution, ""); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

// writeError maps service sentinel errors onto HTTP statuses. Anything
// unmapped is a 500 with a generic body; internals never leak to clients.
func (h Handlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, payment.ErrNotFound) || errors.Is(err, withdrawal.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, payment.ErrInvalidAmount) || errors.Is(err, withdrawal.ErrInvalidAmount) ||
		errors.Is(err, withdrawal.ErrMissingAccount) || errors.Is(err, reporting.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, payment.ErrInvalidState):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "invalid state for operation"})
	case errors.Is(err, settlement.ErrNotReviewable) || errors.Is(err, withdrawal.ErrAlreadyProcessed):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, payment.ErrTooManyOpenIntents):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many open deposit intents"})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "insufficient available balance"})
	case errors.Is(err, payment.ErrCodeExhausted):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unable to allocate a matching code"})
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

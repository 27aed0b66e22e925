package main

import (
	"github.com/gin-gonic/gin"

	"renthub-platform/internal/httpapi"
	"renthub-platform/internal/rbac"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Gateway webhooks (public).
	// NOTE: protect with gateway signature validation at the edge in
	// production; the payload itself is advisory either way.
	r.POST("/webhooks/bank/events", h.BankWebhook)

	v1 := r.Group("/v1")

	// AUTH routes (token issuance).
	v1.POST("/auth/login", h.Login)

	protected := v1.Group("")
	protected.Use(authMW)
	{
		protected.GET("/me", h.Me)

		// DEPOSIT routes: any authenticated user funds their own wallet.
		deposits := protected.Group("/deposits")
		{
			deposits.POST("", h.CreateDeposit)
			deposits.GET("", h.ListDeposits)
			deposits.POST("/:id/qr", h.IssueQR)
			deposits.GET("/:id", h.GetDeposit)
			deposits.POST("/:id/check", h.CheckDeposit)
		}

		// WALLET routes
		wallet := protected.Group("/wallet")
		{
			wallet.GET("/balance", h.GetBalance)
			wallet.GET("/ledger", h.ListLedger)
		}

		// WITHDRAWAL routes: landlords cash out.
		withdrawals := protected.Group("/withdrawals")
		withdrawals.Use(rbac.RequireAnyRole(rbac.RoleLandlord))
		{
			withdrawals.POST("", h.RequestWithdrawal)
			withdrawals.GET("", h.ListWithdrawals)
		}

		// FINANCE routes: payout decisions.
		finance := protected.Group("/finance")
		finance.Use(rbac.RequireAnyRole(rbac.RoleFinance))
		{
			finance.GET("/withdrawals", h.ListPendingWithdrawals)
			finance.POST("/withdrawals/:id/decision", h.DecideWithdrawal)
		}

		// ADMIN routes: manual review queue and reports.
		admin := protected.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.GET("/reviews", h.ListReview)
			admin.POST("/reviews/:id/resolution", h.ResolveReview)
			admin.GET("/reports/ledger", h.LedgerReport)
			admin.GET("/reports/settlement", h.SettlementReport)
		}
	}
}

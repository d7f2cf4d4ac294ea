package routes

import (
	"net/http"
	"time"

	"bookkeeping/internal/controllers"
	"bookkeeping/internal/importer"
	"bookkeeping/internal/ledger"
	"bookkeeping/internal/logger"
	"bookkeeping/internal/matching"
	"bookkeeping/internal/reporting"
	"bookkeeping/internal/transfer"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Services bundles what the HTTP layer needs.
type Services struct {
	Ledger    *ledger.Service
	Importer  *importer.Service
	Profiles  importer.Profiles
	Transfers *transfer.Service
	Matching  *matching.Service
	Reports   *reporting.Service
}

// handle adapts a plain handler to gin, exposing gin's path params through
// Request.PathValue.
func handle(h http.HandlerFunc, params ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range params {
			c.Request.SetPathValue(p, c.Param(p))
		}
		h(c.Writer, c.Request)
	}
}

// requestLogger attaches a request-scoped logger carrying a request id.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		l := logger.Get().With().Str("request_id", id).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), l))
		c.Header("X-Request-ID", id)
		c.Next()
		l.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func Register(svc Services, origins []string) *gin.Engine {
	acc := controllers.AccountController{Ledger: svc.Ledger}
	ven := controllers.VendorController{Ledger: svc.Ledger}
	cat := controllers.CategoryController{Ledger: svc.Ledger}
	txc := controllers.TransactionController{Ledger: svc.Ledger}
	imp := controllers.ImportController{Importer: svc.Importer, Profiles: svc.Profiles}
	trf := controllers.TransferController{Transfers: svc.Transfers}
	inv := controllers.InvoiceController{Matching: svc.Matching}
	bil := controllers.BillController{Matching: svc.Matching}
	rep := controllers.ReportsController{Reports: svc.Reports}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
	}))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api/v1")

	api.POST("/accounts", handle(acc.CreateOrList))
	api.GET("/accounts", handle(acc.CreateOrList))
	api.PUT("/accounts/:id", handle(acc.Update, "id"))
	api.POST("/accounts/:id/archive", handle(acc.Archive, "id"))
	api.DELETE("/accounts/:id", handle(acc.Delete, "id"))

	api.POST("/vendors", handle(ven.CreateOrList))
	api.GET("/vendors", handle(ven.CreateOrList))

	api.POST("/categories", handle(cat.CreateOrList))
	api.GET("/categories", handle(cat.CreateOrList))
	api.PUT("/categories/:id", handle(cat.Update, "id"))
	api.DELETE("/categories/:id", handle(cat.Delete, "id"))

	api.POST("/transactions", handle(txc.CreateOrList))
	api.GET("/transactions", handle(txc.CreateOrList))
	api.POST("/transactions/categorize", handle(txc.BulkCategorize))
	api.GET("/transactions/:id", handle(txc.GetByID, "id"))
	api.PUT("/transactions/:id", handle(txc.Update, "id"))
	api.DELETE("/transactions/:id", handle(txc.Delete, "id"))
	api.GET("/transactions/:id/transfer-matches", handle(trf.Matches, "id"))

	api.POST("/transfers", handle(trf.Pair))
	api.GET("/transfers/:id", handle(trf.Get, "id"))
	api.DELETE("/transfers/:id", handle(trf.Unpair, "id"))

	api.GET("/imports/profiles", handle(imp.ListProfiles))
	api.POST("/imports", handle(imp.Stage))
	api.GET("/imports", handle(imp.List))
	api.GET("/imports/:id", handle(imp.Review, "id"))
	api.POST("/imports/:id/commit", handle(imp.Commit, "id"))
	api.POST("/imports/:id/rollback", handle(imp.Rollback, "id"))
	api.DELETE("/imports/:id", handle(imp.Delete, "id"))

	api.POST("/invoices", handle(inv.CreateOrList))
	api.GET("/invoices", handle(inv.CreateOrList))
	api.GET("/invoices/:id", handle(inv.GetByID, "id"))
	api.GET("/invoices/:id/candidates", handle(inv.Candidates, "id"))
	api.POST("/invoices/:id/payments", handle(inv.Apply, "id"))
	api.DELETE("/invoices/:id/payments/:paymentId", handle(inv.Unmatch, "id", "paymentId"))
	api.POST("/invoices/:id/status", handle(inv.SetStatus, "id"))

	api.POST("/bills", handle(bil.CreateOrList))
	api.GET("/bills", handle(bil.CreateOrList))
	api.GET("/bills/:id", handle(bil.GetByID, "id"))
	api.GET("/bills/:id/candidates", handle(bil.Candidates, "id"))
	api.POST("/bills/:id/payments", handle(bil.Apply, "id"))
	api.DELETE("/bills/:id/payments/:paymentId", handle(bil.Unmatch, "id", "paymentId"))
	api.POST("/bills/:id/status", handle(bil.SetStatus, "id"))

	api.GET("/reports/balances", handle(rep.GetBalances))
	api.GET("/reports/profit-loss", handle(rep.GetProfitAndLoss))
	api.GET("/reports/balance-sheet", handle(rep.GetBalanceSheet))
	api.GET("/reports/cashflow", handle(rep.GetCashflow))

	return r
}

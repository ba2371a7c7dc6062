package main

import (
	"log"
	"net/http"

	httphandlers "bizconsole/internal/interfaces/http"
	"bizconsole/internal/shared/config"
	"bizconsole/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", httphandlers.HandleHealth)

	auth := middleware.Auth(deps.ServiceKeyConfigured)
	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, auth(h))
	}
	// Tokens only travel over HTTPS. Health stays reachable over plain HTTP for load balancer checks.
	if cfg.Server.RequireHTTPS && !cfg.TLS.Enabled {
		protected = func(pattern string, h http.HandlerFunc) {
			mux.Handle(pattern, middleware.RequireHTTPS(auth(h)))
		}
		log.Println("HTTPS required for API routes (X-Forwarded-Proto)")
	}

	bh := deps.BankingHandler
	protected("GET /api/bank-accounts", bh.HandleListBankAccounts)
	protected("GET /api/bank-accounts/{id}/transactions", bh.HandleListTransactions)
	protected("GET /api/transactions/{id}", bh.HandleGetTransaction)
	protected("GET /api/transactions/{id}/suggestions", bh.HandleSuggestions)
	protected("POST /api/transactions/{id}/accept-suggestion", bh.HandleAcceptSuggestion)
	protected("POST /api/transactions/{id}/dematch", bh.HandleDematch)
	protected("DELETE /api/transactions/{id}", bh.HandleDeleteTransaction)
	protected("POST /api/reconcile", bh.HandleReconcile)

	mh := deps.MatchingHandler
	protected("POST /api/transactions/{id}/matching", mh.HandleOpenSession)
	protected("GET /api/matching/{session}", mh.HandleGetSession)
	protected("DELETE /api/matching/{session}", mh.HandleCloseSession)
	protected("PUT /api/matching/{session}/allocations", mh.HandleSetAllocation)
	protected("DELETE /api/matching/{session}/allocations", mh.HandleClearAllocations)
	protected("POST /api/matching/{session}/commit", mh.HandleCommit)

	if lh := deps.MatchLogHandler; lh != nil {
		protected("GET /api/match-log", lh.HandleList)
		protected("GET /api/match-log/export", lh.HandleExport)
	}

	// Apply global middleware, innermost first
	var handler http.Handler = mux
	handler = middleware.Tracing(handler)
	handler = middleware.CORS(cfg.Server.AllowedHosts)(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	if len(cfg.Server.AllowedHosts) > 0 {
		handler = middleware.HostCheck(cfg.Server.AllowedHosts)(handler)
	}
	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(cfg.Telemetry.ServiceName)(handler)
	}

	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		log.Println("TLS security middleware enabled (HSTS)")
	}

	return handler
}

package httpapi

import (
	"net/http"

	"agentplane/internal/channels"
	"agentplane/internal/gatewayproxy"
	"agentplane/internal/ledger"
	"agentplane/internal/metrics"
	"agentplane/internal/middleware"
	"agentplane/internal/orchestrator"
	"agentplane/internal/provider"
	"agentplane/internal/store"
)

// Server holds every dependency the route handlers need. One instance is
// built at startup and its Router() mux is what cmd/controlplane serves.
type Server struct {
	users      *store.UserRepo
	agents     *store.AgentRepo
	vpses      *store.VpsRepo
	plans      *store.PlanRepo
	vpsConfigs *store.VpsConfigRepo
	budgets    *store.BudgetRepo
	usage      *store.UsageRepo

	channels     *channels.Service
	orchestrator *orchestrator.Service
	ledger       *ledger.Ledger
	gateway      *gatewayproxy.Server
	providers    *provider.Registry

	jwtSecret      string
	frontendOrigin string
}

func NewServer(
	users *store.UserRepo,
	agents *store.AgentRepo,
	vpses *store.VpsRepo,
	plans *store.PlanRepo,
	vpsConfigs *store.VpsConfigRepo,
	budgets *store.BudgetRepo,
	usage *store.UsageRepo,
	channelsSvc *channels.Service,
	orch *orchestrator.Service,
	l *ledger.Ledger,
	gateway *gatewayproxy.Server,
	providers *provider.Registry,
	jwtSecret string,
	frontendOrigin string,
) *Server {
	return &Server{
		users:          users,
		agents:         agents,
		vpses:          vpses,
		plans:          plans,
		vpsConfigs:     vpsConfigs,
		budgets:        budgets,
		usage:          usage,
		channels:       channelsSvc,
		orchestrator:   orch,
		ledger:         l,
		gateway:        gateway,
		providers:      providers,
		jwtSecret:      jwtSecret,
		frontendOrigin: frontendOrigin,
	}
}

// Router builds the full mux, wrapped in Prometheus request instrumentation.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", metrics.Handler().ServeHTTP)

	mux.HandleFunc("GET /agents", s.requireAuth(s.handleListAgents))
	mux.HandleFunc("POST /agents", s.requireAuth(s.handleCreateAgent))
	mux.HandleFunc("GET /agents/{id}", s.requireAuth(s.handleGetAgent))
	mux.HandleFunc("DELETE /agents/{id}", s.requireAuth(s.handleDeleteAgent))

	mux.HandleFunc("POST /agents/{id}/vps", s.requireAuth(s.handleProvisionVps))
	mux.HandleFunc("DELETE /agents/{id}/vps", s.requireAuth(s.handleDestroyVps))
	mux.HandleFunc("POST /agents/{id}/vps/start", s.requireAuth(s.handleStartVps))
	mux.HandleFunc("POST /agents/{id}/vps/stop", s.requireAuth(s.handleStopVps))

	mux.HandleFunc("GET /agents/{id}/channels", s.requireAuth(s.handleListChannels))
	mux.HandleFunc("POST /agents/{id}/channels", s.requireAuth(s.handleAddChannel))
	mux.HandleFunc("DELETE /agents/{id}/channels/{kind}", s.requireAuth(s.handleRemoveChannel))

	mux.HandleFunc("PUT /agents/{id}/config", s.requireAuth(s.handleUpdateConfig))
	mux.HandleFunc("PUT /agents/{id}/workspace/{filename}", s.requireAuth(s.handleWriteWorkspaceFile))
	mux.HandleFunc("POST /agents/{id}/restart", s.requireAuth(s.handleRestartAgent))
	mux.HandleFunc("GET /agents/{id}/health", s.requireAuth(s.handleAgentHealth))
	mux.HandleFunc("GET /agents/{id}/usage", s.requireAuth(s.handleAgentUsage))

	mux.HandleFunc("GET /users/me", s.requireAuth(s.handleGetSelf))
	mux.HandleFunc("GET /users/me/overage-budget", s.requireAuth(s.handleGetBudget))
	mux.HandleFunc("PUT /users/me/overage-budget", s.requireAuth(s.handleSetBudget))

	mux.HandleFunc("GET /plans", s.requireAuth(s.handleListPlans))

	mux.HandleFunc("GET /admin/users", s.requireAdmin(s.handleAdminListUsers))
	mux.HandleFunc("PUT /admin/users/{id}", s.requireAdmin(s.handleAdminUpdateUser))
	mux.HandleFunc("GET /admin/vpses", s.requireAdmin(s.handleAdminListVpses))
	mux.HandleFunc("GET /admin/agents", s.requireAdmin(s.handleAdminListAgents))
	mux.HandleFunc("GET /admin/vps-configs", s.requireAdmin(s.handleAdminListVpsConfigs))
	mux.HandleFunc("POST /admin/cleanup", s.requireAdmin(s.handleAdminCleanup))

	mux.HandleFunc("/agents/{id}/gateway/{rest...}", s.requireAuthForGateway)

	handler := metrics.HTTPMiddleware(mux)
	handler = middleware.RequestLogger(handler)
	handler = middleware.CORS(s.frontendOrigin)(handler)
	return handler
}

// requireAuthForGateway hands off straight to the gateway proxy, which
// does its own bearer/query-token resolution (it must accept a
// ?token=... query param for WebSocket clients that can't set headers).
func (s *Server) requireAuthForGateway(w http.ResponseWriter, r *http.Request) {
	s.gateway.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

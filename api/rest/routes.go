package rest

import (
	"net/http"

	"github.com/abcfe/abcfe-keyring/api"
	"github.com/abcfe/abcfe-keyring/custody"
	"github.com/gorilla/mux"
)

func setupRouter(keeper *custody.Keeper, wsHub *api.WSHub) http.Handler {
	r := mux.NewRouter()

	// Middleware setup
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	// Base route
	r.HandleFunc("/", HomeHandler).Methods("GET")

	// WebSocket endpoint (approval events)
	r.HandleFunc("/ws", api.HandleWebSocket(wsHub))

	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	// Bridge API: called on behalf of external sites, gated per chain by Origin
	bridge := apiRouter.NewRoute().Subrouter()
	bridge.HandleFunc("/enable", Enable(keeper)).Methods("POST")
	bridge.HandleFunc("/address/check", CheckAddress(keeper)).Methods("POST")
	bridge.HandleFunc("/txconfig", RequestTxConfig(keeper)).Methods("POST")
	bridge.HandleFunc("/sign", RequestSign(keeper)).Methods("POST")

	// Wallet pages and approval windows only
	local := apiRouter.NewRoute().Subrouter()
	local.Use(LocalOnlyMiddleware)

	// Key lifecycle
	local.HandleFunc("/status", GetStatus(keeper)).Methods("GET")
	local.HandleFunc("/key", CreateKey(keeper)).Methods("POST")
	local.HandleFunc("/key", GetKey(keeper)).Methods("GET")
	local.HandleFunc("/mnemonic/new", NewMnemonic(keeper)).Methods("GET")
	local.HandleFunc("/lock", Lock(keeper)).Methods("POST")
	local.HandleFunc("/unlock", Unlock(keeper)).Methods("POST")
	local.HandleFunc("/unlock/reject", RejectUnlock(keeper)).Methods("POST")
	local.HandleFunc("/path", SetPath(keeper)).Methods("POST")

	// Approval windows
	local.HandleFunc("/approvals", GetApprovals(keeper)).Methods("GET")
	local.HandleFunc("/txconfig/{id}", GetRequestedTxConfig(keeper)).Methods("GET")
	local.HandleFunc("/txconfig/{id}/approve", ApproveTxConfig(keeper)).Methods("POST")
	local.HandleFunc("/txconfig/{id}/reject", RejectTxConfig(keeper)).Methods("POST")
	local.HandleFunc("/sign/{id}", GetRequestedMessage(keeper)).Methods("GET")
	local.HandleFunc("/sign/{id}/approve", ApproveSign(keeper)).Methods("POST")
	local.HandleFunc("/sign/{id}/reject", RejectSign(keeper)).Methods("POST")

	// WebSocket status API
	local.HandleFunc("/ws/status", GetWSStatus(wsHub)).Methods("GET")

	return r
}

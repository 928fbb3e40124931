package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/abcfe/abcfe-keyring/api"
	"github.com/abcfe/abcfe-keyring/approval"
	"github.com/abcfe/abcfe-keyring/chain"
	"github.com/abcfe/abcfe-keyring/common/logger"
	"github.com/abcfe/abcfe-keyring/common/utils"
	"github.com/abcfe/abcfe-keyring/custody"
	"github.com/abcfe/abcfe-keyring/keystore"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// get home response
func HomeHandler(w http.ResponseWriter, r *http.Request) {
	info := map[string]string{
		"name":    "ABCFE Keyring API",
		"version": "1.0.0",
	}
	sendResp(w, http.StatusOK, info, nil)
}

func GetStatus(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResp{Status: k.Status()}
		if path, chainID, err := k.CurrentPath(); err == nil {
			resp.ChainID = chainID
			resp.Path = path.String()
		}
		sendResp(w, http.StatusOK, resp, nil)
	}
}

func CreateKey(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateKeyReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendResp(w, http.StatusBadRequest, nil, err)
			return
		}
		if req.Password == "" {
			sendResp(w, http.StatusBadRequest, nil, fmt.Errorf("password is required"))
			return
		}

		if err := k.CreateKey(req.Mnemonic, req.Password); err != nil {
			sendError(w, err)
			return
		}
		sendResp(w, http.StatusCreated, StatusResp{Status: k.Status()}, nil)
	}
}

// NewMnemonic ?bits=128|160|192|224|256, 128 by default
func NewMnemonic(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bits := 128
		if v := r.URL.Query().Get("bits"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				sendResp(w, http.StatusBadRequest, nil, fmt.Errorf("invalid bits: %w", err))
				return
			}
			bits = n
		}

		mnemonic, err := k.NewMnemonic(bits)
		if err != nil {
			sendResp(w, http.StatusBadRequest, nil, err)
			return
		}
		sendResp(w, http.StatusOK, MnemonicResp{Mnemonic: mnemonic}, nil)
	}
}

func Lock(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k.Lock()
		sendResp(w, http.StatusOK, StatusResp{Status: k.Status()}, nil)
	}
}

func Unlock(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UnlockReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendResp(w, http.StatusBadRequest, nil, err)
			return
		}
		if err := k.Unlock(req.Password); err != nil {
			sendError(w, err)
			return
		}
		sendResp(w, http.StatusOK, StatusResp{Status: k.Status()}, nil)
	}
}

func RejectUnlock(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k.RejectUnlock()
		sendResp(w, http.StatusOK, StatusResp{Status: k.Status()}, nil)
	}
}

func SetPath(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetPathReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendResp(w, http.StatusBadRequest, nil, err)
			return
		}
		if err := k.SetPath(req.ChainID, req.Account, req.Index); err != nil {
			sendError(w, err)
			return
		}

		path, chainID, _ := k.CurrentPath()
		sendResp(w, http.StatusOK, StatusResp{Status: k.Status(), ChainID: chainID, Path: path.String()}, nil)
	}
}

func GetKey(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := k.GetKey()
		if err != nil {
			sendError(w, err)
			return
		}
		path, _, _ := k.CurrentPath()
		sendResp(w, http.StatusOK, formatKeyResp(key, path), nil)
	}
}

func GetApprovals(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending := k.PendingApprovals()
		sendResp(w, http.StatusOK, ApprovalsResp{
			Unlock:   pending[custody.KindUnlock],
			TxConfig: pending[custody.KindTxConfig],
			Sign:     pending[custody.KindSign],
		}, nil)
	}
}

func GetRequestedTxConfig(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		config, err := k.GetRequestedTxConfig(id)
		if err != nil {
			sendError(w, err)
			return
		}
		sendResp(w, http.StatusOK, TxConfigRequestResp{ID: id, Config: config}, nil)
	}
}

// ApproveTxConfig approves with the edited config in the body, or with the
// requested one when the body is empty.
func ApproveTxConfig(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var config *custody.TxBuilderConfig
		err := json.NewDecoder(r.Body).Decode(&config)
		switch {
		case errors.Is(err, io.EOF):
			requested, err := k.GetRequestedTxConfig(id)
			if err != nil {
				sendError(w, err)
				return
			}
			config = &requested
		case err != nil:
			sendResp(w, http.StatusBadRequest, nil, err)
			return
		}

		resolved := k.ApproveTxBuilderConfig(id, config)
		sendResp(w, http.StatusOK, ResolvedResp{ID: id, Resolved: resolved}, nil)
	}
}

func RejectTxConfig(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		resolved := k.RejectTxBuilderConfig(id)
		sendResp(w, http.StatusOK, ResolvedResp{ID: id, Resolved: resolved}, nil)
	}
}

func GetRequestedMessage(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		req, err := k.GetRequestedMessage(id)
		if err != nil {
			sendError(w, err)
			return
		}

		resp := SignRequestResp{
			ID:      id,
			ChainID: req.ChainID,
			Message: utils.BytesToHex(req.Message),
		}
		if utf8.Valid(req.Message) {
			resp.MessageText = string(req.Message)
		}
		sendResp(w, http.StatusOK, resp, nil)
	}
}

func ApproveSign(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		resolved := k.ApproveSign(id)
		sendResp(w, http.StatusOK, ResolvedResp{ID: id, Resolved: resolved}, nil)
	}
}

func RejectSign(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		resolved := k.RejectSign(id)
		sendResp(w, http.StatusOK, ResolvedResp{ID: id, Resolved: resolved}, nil)
	}
}

// Bridge handlers. Every request names a chain and must come from an origin
// allowed for it.

func Enable(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EnableReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendResp(w, http.StatusBadRequest, nil, err)
			return
		}
		if err := k.CheckAccessOrigin(req.ChainID, r.Header.Get("Origin")); err != nil {
			sendError(w, err)
			return
		}

		status, err := k.Enable(r.Context())
		if err != nil {
			sendError(w, err)
			return
		}
		sendResp(w, http.StatusOK, StatusResp{Status: status}, nil)
	}
}

func CheckAddress(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckAddressReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendResp(w, http.StatusBadRequest, nil, err)
			return
		}
		if err := k.CheckAccessOrigin(req.ChainID, r.Header.Get("Origin")); err != nil {
			sendError(w, err)
			return
		}

		if err := k.CheckBech32Address(req.ChainID, req.Address); err != nil {
			sendError(w, err)
			return
		}
		sendResp(w, http.StatusOK, map[string]bool{"valid": true}, nil)
	}
}

func RequestTxConfig(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RequestTxConfigReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendResp(w, http.StatusBadRequest, nil, err)
			return
		}
		if err := k.CheckAccessOrigin(req.Config.ChainID, r.Header.Get("Origin")); err != nil {
			sendError(w, err)
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		config, err := k.RequestTxBuilderConfig(r.Context(), req.Config, req.ID, openPrompt(req.OpenPrompt))
		if err != nil {
			sendError(w, err)
			return
		}
		sendResp(w, http.StatusOK, TxConfigRequestResp{ID: req.ID, Config: config}, nil)
	}
}

func RequestSign(k *custody.Keeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RequestSignReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendResp(w, http.StatusBadRequest, nil, err)
			return
		}
		if err := k.CheckAccessOrigin(req.ChainID, r.Header.Get("Origin")); err != nil {
			sendError(w, err)
			return
		}

		message, err := utils.HexToBytes(req.Message)
		if err != nil {
			sendResp(w, http.StatusBadRequest, nil, fmt.Errorf("invalid message: %w", err))
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		signed, err := k.RequestSign(r.Context(), req.ChainID, message, req.ID, openPrompt(req.OpenPrompt))
		if err != nil {
			sendError(w, err)
			return
		}

		sendResp(w, http.StatusOK, SignResp{
			ID:        req.ID,
			Signature: utils.SignatureToString(signed.Signature),
			PubKey:    utils.BytesToHex(signed.PubKey),
		}, nil)
	}
}

func GetWSStatus(wsHub *api.WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sendResp(w, http.StatusOK, map[string]int{"clients": wsHub.GetClientCount()}, nil)
	}
}

func openPrompt(v *bool) bool {
	return v == nil || *v
}

func formatKeyResp(key custody.DerivedKey, path keystore.Path) KeyResp {
	return KeyResp{
		Algo:          key.Algo,
		PubKey:        utils.BytesToHex(key.PubKey),
		Address:       utils.BytesToHex(key.Address),
		Bech32Address: key.Bech32Address,
		Path:          path.String(),
	}
}

// errorStatus maps an error kind to its HTTP status and stable code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, approval.ErrUserRejected):
		return http.StatusForbidden, "user_rejected"
	case errors.Is(err, approval.ErrTimeout):
		return http.StatusRequestTimeout, "timeout"
	case errors.Is(err, approval.ErrUnknownRequest):
		return http.StatusNotFound, "unknown_request"
	case errors.Is(err, approval.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate_request"
	case errors.Is(err, keystore.ErrWrongPassword):
		return http.StatusUnauthorized, "wrong_password"
	case errors.Is(err, keystore.ErrKeyAbsent):
		return http.StatusConflict, "key_absent"
	case errors.Is(err, keystore.ErrKeyExists):
		return http.StatusConflict, "key_exists"
	case errors.Is(err, keystore.ErrNotUnlocked):
		return http.StatusConflict, "not_unlocked"
	case errors.Is(err, keystore.ErrInvalidMnemonic):
		return http.StatusBadRequest, "invalid_mnemonic"
	case errors.Is(err, custody.ErrPathNotSet):
		return http.StatusConflict, "path_not_set"
	case errors.Is(err, custody.ErrInvalidAddress):
		return http.StatusBadRequest, "invalid_address"
	case errors.Is(err, chain.ErrUnknownChain):
		return http.StatusBadRequest, "unknown_chain"
	case errors.Is(err, chain.ErrOriginNotAllowed):
		return http.StatusForbidden, "origin_not_allowed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	}
	return http.StatusInternalServerError, "internal"
}

func sendError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("API internal error:", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	sendJSON(w, RestResp{Success: false, Error: err.Error(), Code: code})
}

func sendJSON(w http.ResponseWriter, resp RestResp) {
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Debug("API response write failed:", err)
	}
}

func sendResp(w http.ResponseWriter, statusCode int, data interface{}, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := RestResp{
		Success: err == nil,
		Data:    data,
	}

	if err != nil {
		response.Error = err.Error()
		response.Code = "bad_request"
	}

	sendJSON(w, response)
}

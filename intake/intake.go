// Copyright 2024 The dscan Authors
// This file is part of the dscan library.
//
// The dscan library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The dscan library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the dscan library. If not, see <http://www.gnu.org/licenses/>.

// Package intake serves the scan-request REST endpoint: it verifies a
// signed ScanRequest and admits it as a new AccountIntent, idempotently.
package intake

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/groundx/dscan/chainmodel"
	"github.com/groundx/dscan/dlog"
	"github.com/groundx/dscan/opsign"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

// IntentSubmitter is the narrow slice of scansvc.Manager the intake
// handler needs.
type IntentSubmitter interface {
	SubmitIntent(intent chainmodel.AccountIntent)
	HasIntentOrActive(address string) bool
}

type scanMessage struct {
	Address string                `json:"address"`
	InVk    string                `json:"inVk"`
	OutVk   string                `json:"outVk"`
	Head    chainmodel.BlockInfo `json:"head"`
}

type scanRequest struct {
	Message   scanMessage `json:"message"`
	Signature string      `json:"signature"`
}

type scanResponse struct {
	Success bool `json:"success"`
}

// Handler serves POST /scanAccount.
type Handler struct {
	manager  IntentSubmitter
	verifier *opsign.Verifier
	dedup    *redis.Client // optional cross-replica idempotency guard; nil disables it
	log      *dlog.Logger
}

// New builds a Handler. dedup may be nil when running a single replica
// with no Redis configured (redis keeps two replicas from both admitting
// the same address in the same primary round).
func New(manager IntentSubmitter, verifier *opsign.Verifier, dedup *redis.Client) *Handler {
	return &Handler{manager: manager, verifier: verifier, dedup: dedup, log: dlog.NewModuleLogger("intake")}
}

// Router builds the httprouter mux with CORS applied, ready to be served.
func (h *Handler) Router() http.Handler {
	r := httprouter.New()
	r.POST("/scanAccount", h.scanAccount)
	return cors.Default().Handler(r)
}

func (h *Handler) scanAccount(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	var sr scanRequest
	if err := json.NewDecoder(req.Body).Decode(&sr); err != nil {
		h.respond(w, false)
		return
	}

	if !h.verifier.Verify(sr.Message, sr.Signature) {
		h.log.Warnw("intake: rejected scan request with invalid signature", "address", sr.Message.Address)
		h.respond(w, false)
		return
	}

	address := sr.Message.Address
	if !h.admit(address) {
		h.log.Infow("intake: dropped duplicate scan request", "address", address)
		h.respond(w, true)
		return
	}

	h.manager.SubmitIntent(chainmodel.AccountIntent{
		Address:    address,
		InViewKey:  sr.Message.InVk,
		OutViewKey: sr.Message.OutVk,
		Head:       &sr.Message.Head,
	})
	h.respond(w, true)
}

// admit reports whether address should be newly admitted: false means a
// duplicate (either another replica claimed it first via Redis, or it's
// already tracked in this replica's intents/active state).
func (h *Handler) admit(address string) bool {
	if h.dedup != nil {
		key := "dscan:intake:" + address
		ok, err := h.dedup.SetNX(key, "1", 24*time.Hour).Result()
		if err != nil {
			h.log.Warnw("intake: redis dedup check failed, falling back to in-process check", "err", err)
		} else if !ok {
			return false
		}
	}
	return !h.manager.HasIntentOrActive(address)
}

func (h *Handler) respond(w http.ResponseWriter, success bool) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(scanResponse{Success: success})
}

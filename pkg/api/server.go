package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/vizvalabs/marketd/pkg/crypto"
	"github.com/vizvalabs/marketd/pkg/market"
)

// Server exposes the settlement engine over REST and streams settlement
// events to WebSocket subscribers (off-chain indexers).
type Server struct {
	engine *market.Engine
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

// NewServer wires routes and subscribes the WebSocket hub to engine
// events.
func NewServer(engine *market.Engine, logger *zap.SugaredLogger) *Server {
	s := &Server{
		engine: engine,
		router: mux.NewRouter(),
		hub:    NewHub(logger),
		log:    logger,
	}
	s.setupRoutes()
	engine.Subscribe(func(ev market.Event) {
		s.hub.Broadcast(ev)
	})
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Listing registry
	api.HandleFunc("/listings", s.handleGetListings).Methods("GET")
	api.HandleFunc("/listings", s.handleAddListing).Methods("POST")
	api.HandleFunc("/listings/cancel-batch", s.handleBatchCancel).Methods("POST")
	api.HandleFunc("/listings/{id:[0-9]+}", s.handleGetListing).Methods("GET")
	api.HandleFunc("/listings/{id:[0-9]+}/cancel", s.handleCancel).Methods("POST")

	// Settlement paths
	api.HandleFunc("/purchases", s.handleBuy).Methods("POST")
	api.HandleFunc("/bids/finalize", s.handleFinalizeBid).Methods("POST")
	api.HandleFunc("/redemptions", s.handleRedeem).Methods("POST")

	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	// WebSocket event stream
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})

	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST handlers
// ==============================

func (s *Server) handleGetListings(w http.ResponseWriter, r *http.Request) {
	var listings []market.Listing
	if r.URL.Query().Get("active") == "true" {
		listings = s.engine.ActiveListings()
	} else {
		listings = s.engine.Listings()
	}

	out := make([]ListingInfo, len(listings))
	for i, l := range listings {
		out[i] = toListingInfo(l)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	var id uint64
	if _, err := fmt.Sscanf(mux.Vars(r)["id"], "%d", &id); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad listing id"))
		return
	}
	l, ok := s.engine.Listing(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("listing %d: %w", id, market.ErrUnknownListing))
		return
	}
	writeJSON(w, http.StatusOK, toListingInfo(l))
}

func (s *Server) handleAddListing(w http.ResponseWriter, r *http.Request) {
	var req AddListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	price, err := parseAmount(req.AskingPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tokenID, err := parseAmount(req.TokenID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := s.engine.AddListing(
		common.HexToAddress(req.Seller),
		market.SaleType(req.SaleType),
		price,
		market.ItemDetails{
			TokenType:    market.TokenType(req.TokenType),
			TokenAddress: common.HexToAddress(req.TokenAddress),
			TokenID:      tokenID,
			Amount:       req.Amount,
			Creator:      common.HexToAddress(req.Creator),
			RoyaltyBps:   req.RoyaltyBps,
		},
	)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: id})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var id uint64
	if _, err := fmt.Sscanf(mux.Vars(r)["id"], "%d", &id); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad listing id"))
		return
	}
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.CancelSale(common.HexToAddress(req.Caller), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleBatchCancel(w http.ResponseWriter, r *http.Request) {
	var req BatchCancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.BatchCancelSale(common.HexToAddress(req.Caller), req.IDs); err != nil {
		// Partial success is possible; the joined error lists each failed id.
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tokenID, err := parseAmount(req.TokenID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	payment, err := parseAmount(req.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.BuyItem(
		common.HexToAddress(req.Buyer),
		common.HexToAddress(req.TokenAddress),
		tokenID,
		req.ListingID,
		payment,
	); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleFinalizeBid(w http.ResponseWriter, r *http.Request) {
	var req FinalizeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	voucher, err := toBidVoucher(req.Voucher)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.FinalizeBid(
		common.HexToAddress(req.Caller),
		voucher,
		common.HexToAddress(req.Buyer),
	); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	voucher, err := toNFTVoucher(req.Voucher)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	payment, err := parseAmount(req.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Redeem(
		common.HexToAddress(req.Caller),
		voucher,
		common.HexToAddress(req.Buyer),
		payment,
	); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusInfo{
		ChainID:       s.engine.ChainID().String(),
		CommissionBps: s.engine.CommissionBps(),
		Treasury:      s.engine.Treasury().Hex(),
		Listings:      len(s.engine.Listings()),
		SigningDomain: crypto.SigningDomainName,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}

// ==============================
// Helpers
// ==============================

func toListingInfo(l market.Listing) ListingInfo {
	return ListingInfo{
		ID:           l.ID,
		SaleType:     l.SaleType.String(),
		TokenType:    l.TokenType.String(),
		TokenAddress: l.TokenAddress.Hex(),
		TokenID:      l.TokenID.String(),
		Amount:       l.Amount,
		AskingPrice:  l.AskingPrice.String(),
		Seller:       l.Seller.Hex(),
		Creator:      l.Creator.Hex(),
		RoyaltyBps:   l.RoyaltyBps,
		Cancelled:    l.Cancelled,
		Sold:         l.Sold,
	}
}

func toBidVoucher(v BidVoucherJSON) (*crypto.BidVoucher, error) {
	tokenID, err := parseAmount(v.TokenID)
	if err != nil {
		return nil, err
	}
	marketID, err := parseAmount(v.MarketID)
	if err != nil {
		return nil, err
	}
	bid, err := parseAmount(v.Bid)
	if err != nil {
		return nil, err
	}
	sig, err := parseSignature(v.Signature)
	if err != nil {
		return nil, err
	}
	return &crypto.BidVoucher{
		Asset:        common.HexToAddress(v.Asset),
		TokenAddress: common.HexToAddress(v.TokenAddress),
		TokenID:      tokenID,
		MarketID:     marketID,
		Bid:          bid,
		Signature:    sig,
	}, nil
}

func toNFTVoucher(v NFTVoucherJSON) (*crypto.NFTVoucher, error) {
	tokenID, err := parseAmount(v.TokenID)
	if err != nil {
		return nil, err
	}
	minPrice, err := parseAmount(v.MinPrice)
	if err != nil {
		return nil, err
	}
	sig, err := parseSignature(v.Signature)
	if err != nil {
		return nil, err
	}
	return &crypto.NFTVoucher{
		TokenID:   tokenID,
		MinPrice:  minPrice,
		Royalty:   v.Royalty,
		URI:       v.URI,
		Signature: sig,
	}, nil
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bad decimal amount %q", s)
	}
	return v, nil
}

func parseSignature(s string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("bad signature hex: %w", err)
	}
	return sig, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// statusFor maps settlement failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrUnknownListing), errors.Is(err, market.ErrUnknownAsset):
		return http.StatusNotFound
	case errors.Is(err, market.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, market.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, market.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, market.ErrItemAlreadyCancelled),
		errors.Is(err, market.ErrItemAlreadySold),
		errors.Is(err, market.ErrAlreadyRedeemed),
		errors.Is(err, market.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, market.ErrNotOwnerOrNotApproved),
		errors.Is(err, market.ErrTransferNotApproved):
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

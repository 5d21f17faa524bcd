package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/settle"
	"github.com/xraph/settle/asset"
	"github.com/xraph/settle/badge"
	"github.com/xraph/settle/directory"
	"github.com/xraph/settle/entitlement"
	"github.com/xraph/settle/exchange"
	"github.com/xraph/settle/genesis"
	"github.com/xraph/settle/host"
	"github.com/xraph/settle/id"
	"github.com/xraph/settle/invoice"
	"github.com/xraph/settle/settlement"
	"github.com/xraph/settle/types"
)

// ──────────────────────────────────────────────────
// Settlement
// ──────────────────────────────────────────────────

type splitRequest struct {
	Router     types.Address       `json:"router"`
	Asset      types.Address       `json:"asset"`
	Payer      types.Address       `json:"payer"`
	Recipients []types.Address     `json:"recipients"`
	SharesBps  []types.BasisPoints `json:"shares_bps"`
	Amount     types.Amount        `json:"amount"`
}

type splitResponse struct {
	Legs []settlement.Leg `json:"legs"`
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Router.Validate(); err != nil {
		s.writeError(w, r, settle.Invalid("router", err.Error()))
		return
	}
	if s.deployment != nil && !s.deployment.Is(req.Router, genesis.KindRouter) {
		s.writeError(w, r, settle.ErrNotFound)
		return
	}

	call(s, w, r, http.StatusOK, func(env *host.Env) (splitResponse, error) {
		if err := settlement.At(req.Router).Split(env, req.Asset, req.Payer, req.Recipients, req.SharesBps, req.Amount); err != nil {
			return splitResponse{}, err
		}
		parts, err := settlement.Allocate(req.Amount, req.SharesBps)
		if err != nil {
			return splitResponse{}, err
		}
		return splitResponse{Legs: settlement.Legs(req.Recipients, parts)}, nil
	})
}

// ──────────────────────────────────────────────────
// Asset
// ──────────────────────────────────────────────────

type assetInfo struct {
	Address     types.Address  `json:"address"`
	Metadata    asset.Metadata `json:"metadata"`
	TotalSupply types.Amount   `json:"total_supply"`
}

type balanceResponse struct {
	Account types.Address `json:"account"`
	Balance types.Amount  `json:"balance"`
	Frozen  bool          `json:"frozen"`
}

type transferRequest struct {
	From   types.Address `json:"from"`
	To     types.Address `json:"to"`
	Amount types.Amount  `json:"amount"`
}

func (s *Server) handleAssetInfo(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindAsset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	token := asset.At(addr)
	query(s, w, r, func(env *host.Env) (assetInfo, error) {
		md, err := token.Metadata(env)
		if err != nil {
			return assetInfo{}, err
		}
		supply, err := token.TotalSupply(env)
		if err != nil {
			return assetInfo{}, err
		}
		return assetInfo{Address: addr, Metadata: md, TotalSupply: supply}, nil
	})
}

func (s *Server) handleAssetBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindAsset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	account, err := pathAddress(r, "account")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	token := asset.At(addr)
	query(s, w, r, func(env *host.Env) (balanceResponse, error) {
		bal, err := token.Balance(env, account)
		if err != nil {
			return balanceResponse{}, err
		}
		frozen, err := token.IsFrozen(env, account)
		if err != nil {
			return balanceResponse{}, err
		}
		return balanceResponse{Account: account, Balance: bal, Frozen: frozen}, nil
	})
}

func (s *Server) handleAssetTransfer(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindAsset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req transferRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	token := asset.At(addr)
	call(s, w, r, http.StatusOK, func(env *host.Env) (balanceResponse, error) {
		if err := token.Transfer(env, req.From, req.To, req.Amount); err != nil {
			return balanceResponse{}, err
		}
		bal, err := token.Balance(env, req.From)
		return balanceResponse{Account: req.From, Balance: bal}, err
	})
}

// ──────────────────────────────────────────────────
// Exchange
// ──────────────────────────────────────────────────

type createListingRequest struct {
	ID     id.Key        `json:"id"`
	Seller types.Address `json:"seller"`
	Price  types.Amount  `json:"price"`
}

type cancelListingRequest struct {
	Seller types.Address `json:"seller"`
}

type fulfillListingRequest struct {
	Asset types.Address `json:"asset"`
	Buyer types.Address `json:"buyer"`
}

func listingID(r *http.Request) (id.Key, error) {
	k, err := id.ParseKey(chi.URLParam(r, "id"))
	if err != nil {
		return id.Key{}, settle.Invalid("id", err.Error())
	}
	return k, nil
}

func (s *Server) handleExchangeConfig(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindExchange)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	query(s, w, r, exchange.At(addr).Config)
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindExchange)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req createListingRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	x := exchange.At(addr)
	call(s, w, r, http.StatusCreated, func(env *host.Env) (exchange.Listing, error) {
		if err := x.Create(env, req.ID, req.Seller, req.Price); err != nil {
			return exchange.Listing{}, err
		}
		return x.Get(env, req.ID)
	})
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindExchange)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lid, err := listingID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	query(s, w, r, func(env *host.Env) (exchange.Listing, error) {
		return exchange.At(addr).Get(env, lid)
	})
}

func (s *Server) handleCancelListing(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindExchange)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lid, err := listingID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req cancelListingRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	x := exchange.At(addr)
	call(s, w, r, http.StatusOK, func(env *host.Env) (exchange.Listing, error) {
		if err := x.Cancel(env, lid, req.Seller); err != nil {
			return exchange.Listing{}, err
		}
		return x.Get(env, lid)
	})
}

func (s *Server) handleFulfillListing(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindExchange)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lid, err := listingID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req fulfillListingRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	call(s, w, r, http.StatusOK, func(env *host.Env) (exchange.Receipt, error) {
		return exchange.At(addr).Fulfill(env, req.Asset, lid, req.Buyer)
	})
}

// ──────────────────────────────────────────────────
// Entitlement
// ──────────────────────────────────────────────────

type purchaseRequest struct {
	User types.Address `json:"user"`
}

type memberResponse struct {
	User   types.Address   `json:"user"`
	Expiry *types.Sequence `json:"expiry,omitempty"`
	Active bool            `json:"active"`
}

func (s *Server) handleEntitlementConfig(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindEntitlement)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	query(s, w, r, entitlement.At(addr).Config)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindEntitlement)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req purchaseRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	call(s, w, r, http.StatusOK, func(env *host.Env) (memberResponse, error) {
		expiry, err := entitlement.At(addr).Purchase(env, req.User)
		if err != nil {
			return memberResponse{}, err
		}
		return memberResponse{User: req.User, Expiry: &expiry, Active: true}, nil
	})
}

func (s *Server) handleMember(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindEntitlement)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := pathAddress(r, "user")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offer := entitlement.At(addr)
	query(s, w, r, func(env *host.Env) (memberResponse, error) {
		resp := memberResponse{User: user}
		expiry, ok, err := offer.ExpiryOf(env, user)
		if err != nil || !ok {
			return resp, err
		}
		resp.Expiry = &expiry
		resp.Active, err = offer.IsActive(env, user)
		return resp, err
	})
}

// ──────────────────────────────────────────────────
// Invoice
// ──────────────────────────────────────────────────

type issueInvoiceRequest struct {
	Issuer    types.Address  `json:"issuer"`
	Payer     *types.Address `json:"payer,omitempty"`
	Amount    types.Amount   `json:"amount"`
	Reference string         `json:"reference,omitempty"`
}

type markPaidRequest struct {
	Issuer types.Address `json:"issuer"`
}

type payInvoiceRequest struct {
	Asset types.Address `json:"asset"`
	Payer types.Address `json:"payer"`
}

type countResponse struct {
	Count uint64 `json:"count"`
}

func invoiceID(r *http.Request) (uint64, error) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, settle.Invalid("id", "must be an unsigned integer")
	}
	return n, nil
}

func (s *Server) handleInvoiceCount(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindInvoice)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	query(s, w, r, func(env *host.Env) (countResponse, error) {
		n, err := invoice.At(addr).Count(env)
		return countResponse{Count: n}, err
	})
}

func (s *Server) handleIssueInvoice(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindInvoice)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req issueInvoiceRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	reg := invoice.At(addr)
	call(s, w, r, http.StatusCreated, func(env *host.Env) (invoice.Invoice, error) {
		n, err := reg.Issue(env, req.Issuer, req.Payer, req.Amount, req.Reference)
		if err != nil {
			return invoice.Invoice{}, err
		}
		return reg.Get(env, n)
	})
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindInvoice)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := invoiceID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	query(s, w, r, func(env *host.Env) (invoice.Invoice, error) {
		return invoice.At(addr).Get(env, n)
	})
}

func (s *Server) handleMarkInvoicePaid(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindInvoice)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := invoiceID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req markPaidRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	reg := invoice.At(addr)
	call(s, w, r, http.StatusOK, func(env *host.Env) (invoice.Invoice, error) {
		if err := reg.MarkPaid(env, n, req.Issuer); err != nil {
			return invoice.Invoice{}, err
		}
		return reg.Get(env, n)
	})
}

func (s *Server) handlePayInvoice(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindInvoice)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := invoiceID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req payInvoiceRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	reg := invoice.At(addr)
	call(s, w, r, http.StatusOK, func(env *host.Env) (invoice.Invoice, error) {
		if err := reg.Pay(env, req.Asset, n, req.Payer); err != nil {
			return invoice.Invoice{}, err
		}
		return reg.Get(env, n)
	})
}

// ──────────────────────────────────────────────────
// Directory
// ──────────────────────────────────────────────────

type nameBinding struct {
	Name   string        `json:"name"`
	Target types.Address `json:"target"`
}

type setNameRequest struct {
	Target types.Address `json:"target"`
}

func (s *Server) handleResolveName(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindDirectory)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")
	query(s, w, r, func(env *host.Env) (nameBinding, error) {
		target, ok, err := directory.At(addr).Resolve(env, name)
		if err != nil {
			return nameBinding{}, err
		}
		if !ok {
			return nameBinding{}, settle.ErrNotFound
		}
		return nameBinding{Name: name, Target: target}, nil
	})
}

func (s *Server) handleSetName(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindDirectory)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req setNameRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")
	call(s, w, r, http.StatusOK, func(env *host.Env) (nameBinding, error) {
		return nameBinding{Name: name, Target: req.Target}, directory.At(addr).Set(env, name, req.Target)
	})
}

func (s *Server) handleRemoveName(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindDirectory)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")
	who, err := signers(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	err = s.rt.Invoke(r.Context(), who, func(env *host.Env) error {
		return directory.At(addr).Remove(env, name)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ──────────────────────────────────────────────────
// Badge
// ──────────────────────────────────────────────────

type mintBadgeRequest struct {
	To types.Address `json:"to"`
}

type badgeTransferRequest struct {
	From types.Address `json:"from"`
	To   types.Address `json:"to"`
}

type badgeBurnRequest struct {
	From types.Address `json:"from"`
}

type badgeResponse struct {
	TokenID uint32        `json:"token_id"`
	Owner   types.Address `json:"owner"`
	URI     string        `json:"uri"`
}

type badgeBalanceResponse struct {
	Holder  types.Address `json:"holder"`
	Balance uint32        `json:"balance"`
}

func tokenID(r *http.Request) (uint32, error) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		return 0, settle.Invalid("id", "must be an unsigned 32-bit integer")
	}
	return uint32(n), nil
}

func describeBadge(env *host.Env, reg badge.Registry, tokenID uint32) (badgeResponse, error) {
	holder, err := reg.OwnerOf(env, tokenID)
	if err != nil {
		return badgeResponse{}, err
	}
	uri, err := reg.TokenURI(env, tokenID)
	if err != nil {
		return badgeResponse{}, err
	}
	return badgeResponse{TokenID: tokenID, Owner: holder, URI: uri}, nil
}

func (s *Server) handleMintBadge(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindBadge)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req mintBadgeRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	reg := badge.At(addr)
	call(s, w, r, http.StatusCreated, func(env *host.Env) (badgeResponse, error) {
		n, err := reg.Mint(env, req.To)
		if err != nil {
			return badgeResponse{}, err
		}
		return describeBadge(env, reg, n)
	})
}

func (s *Server) handleGetBadge(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindBadge)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := tokenID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	query(s, w, r, func(env *host.Env) (badgeResponse, error) {
		return describeBadge(env, badge.At(addr), n)
	})
}

func (s *Server) handleTransferBadge(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindBadge)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := tokenID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req badgeTransferRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	reg := badge.At(addr)
	call(s, w, r, http.StatusOK, func(env *host.Env) (badgeResponse, error) {
		if err := reg.Transfer(env, req.From, req.To, n); err != nil {
			return badgeResponse{}, err
		}
		return describeBadge(env, reg, n)
	})
}

func (s *Server) handleBurnBadge(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindBadge)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := tokenID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req badgeBurnRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	who, err := signers(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	err = s.rt.Invoke(r.Context(), who, func(env *host.Env) error {
		return badge.At(addr).Burn(env, req.From, n)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBadgeBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := s.contract(r, genesis.KindBadge)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	holder, err := pathAddress(r, "holder")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	query(s, w, r, func(env *host.Env) (badgeBalanceResponse, error) {
		n, err := badge.At(addr).Balance(env, holder)
		return badgeBalanceResponse{Holder: holder, Balance: n}, err
	})
}

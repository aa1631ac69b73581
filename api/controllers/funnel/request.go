package funnel

import (
	funnelsvc "github.com/sashimarconi/checkout-backend/internal/funnel"
	"github.com/sashimarconi/checkout-backend/internal/orders"
	"github.com/sashimarconi/checkout-backend/pkg/enums"
	pkgerrors "github.com/sashimarconi/checkout-backend/pkg/errors"
	"github.com/sashimarconi/checkout-backend/pkg/types"
)

// CartSnapshotRequest is the public POST /funnel/cart body. Everything beyond
// cart_id and slug is optional; absent fields leave stored values untouched.
type CartSnapshotRequest struct {
	CartID string `json:"cart_id" validate:"required"`
	Slug   string `json:"slug" validate:"required"`
	Stage  string `json:"stage,omitempty"`
	Status string `json:"status,omitempty"`

	Customer *types.Customer  `json:"customer,omitempty"`
	Address  *types.Address   `json:"address,omitempty"`
	Items    []types.CartItem `json:"items,omitempty"`
	Shipping *types.Shipping  `json:"shipping,omitempty"`
	Summary  *types.Summary   `json:"summary,omitempty"`

	TotalCents    *int `json:"total_cents,omitempty"`
	SubtotalCents *int `json:"subtotal_cents,omitempty"`
	ShippingCents *int `json:"shipping_cents,omitempty"`

	UTM      *types.UTM     `json:"utm,omitempty"`
	Tracking types.Tracking `json:"tracking,omitempty"`
	Source   *string        `json:"source,omitempty"`
}

// OrderRequest is the public POST /funnel/order body.
type OrderRequest struct {
	CartID string `json:"cart_id" validate:"required"`
	Slug   string `json:"slug" validate:"required"`
	Status string `json:"status,omitempty"`

	Customer *types.Customer  `json:"customer" validate:"required"`
	Address  *types.Address   `json:"address,omitempty"`
	Items    []types.CartItem `json:"items,omitempty"`
	Shipping *types.Shipping  `json:"shipping,omitempty"`
	Summary  *types.Summary   `json:"summary,omitempty"`
	Pix      *types.Pix       `json:"pix,omitempty"`

	UTM      *types.UTM     `json:"utm,omitempty"`
	Tracking types.Tracking `json:"tracking,omitempty"`
	Source   *string        `json:"source,omitempty"`
}

func (req CartSnapshotRequest) toSnapshot() (funnelsvc.Snapshot, error) {
	snap := funnelsvc.Snapshot{
		CartKey:       req.CartID,
		Slug:          req.Slug,
		Customer:      req.Customer,
		Address:       req.Address,
		Items:         req.Items,
		Shipping:      req.Shipping,
		Summary:       req.Summary,
		TotalCents:    req.TotalCents,
		SubtotalCents: req.SubtotalCents,
		ShippingCents: req.ShippingCents,
		UTM:           req.UTM,
		Source:        req.Source,
		Tracking:      req.Tracking,
	}

	if req.Stage != "" {
		stage, err := enums.ParseCartStage(req.Stage)
		if err != nil {
			return funnelsvc.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stage")
		}
		snap.Stage = stage
	}
	if req.Status != "" {
		status, err := enums.ParseCartStatus(req.Status)
		if err != nil {
			return funnelsvc.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		snap.Status = status
	}
	return snap, nil
}

func (req OrderRequest) toInput(host string) (orders.MaterializeInput, error) {
	input := orders.MaterializeInput{
		Host:     host,
		CartKey:  req.CartID,
		Slug:     req.Slug,
		Customer: req.Customer,
		Address:  req.Address,
		Items:    req.Items,
		Shipping: req.Shipping,
		Summary:  req.Summary,
		Pix:      req.Pix,
		UTM:      req.UTM,
		Source:   req.Source,
		Tracking: req.Tracking,
	}

	if req.Status != "" {
		status, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			return orders.MaterializeInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		input.Status = status
	}
	return input, nil
}

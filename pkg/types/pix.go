package types

import "time"

// Pix carries the gateway-issued payment block, passed through verbatim.
type Pix struct {
	TxID         string     `json:"txid,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	QRCode       string     `json:"qr_code,omitempty"`
	CopyAndPaste string     `json:"copy_and_paste,omitempty"`
}

package types

import "strings"

// UTM holds first-touch campaign attribution, captured once per cart.
type UTM struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Term     string `json:"term,omitempty"`
	Content  string `json:"content,omitempty"`
}

// IsEmpty reports whether no UTM field carries a value.
func (u *UTM) IsEmpty() bool {
	if u == nil {
		return true
	}
	return u.Source == "" && u.Medium == "" && u.Campaign == "" &&
		u.Term == "" && u.Content == ""
}

// Tracking holds free-form click identifiers (fbclid, gclid, src, sck, ...).
type Tracking map[string]string

// IsEmpty reports whether the tracking map has no usable entries.
func (t Tracking) IsEmpty() bool {
	for k, v := range t {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

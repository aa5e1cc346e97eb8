package models

import (
	"time"

	id "sharereg/pkg/domain"
)

// Delegation is the resolved effect of a meeting's proxies: whose own vote is
// suppressed and how many shares each holder shareholder carries for others.
type Delegation struct {
	ProxiedGrantors   map[id.ShareholderID]struct{} `json:"-"`
	DelegatedToHolder map[id.ShareholderID]int64    `json:"delegatedToHolder"`
	ProxyShares       int64                         `json:"proxyShares"`
}

// Resolve computes the delegation for proxies at a point in time. Only
// accepted proxies in effect contribute, and each grantor is represented by
// at most one of them: a meeting-bound proxy wins over a standing one, then
// the most recently decided. A proxy naming a holder who is not a shareholder
// suppresses the grantor without redistributing anything. Resolve never
// mutates its input.
func Resolve(proxies []*Proxy, at time.Time) Delegation {
	d := Delegation{
		ProxiedGrantors:   make(map[id.ShareholderID]struct{}),
		DelegatedToHolder: make(map[id.ShareholderID]int64),
	}
	effective := make(map[id.ShareholderID]*Proxy, len(proxies))
	for _, p := range proxies {
		if p == nil || !p.Status.Delegates() || !p.InEffect(at) {
			continue
		}
		if current, ok := effective[p.GrantorID]; ok && !p.supersedes(current) {
			continue
		}
		effective[p.GrantorID] = p
	}
	for grantorID, p := range effective {
		d.ProxiedGrantors[grantorID] = struct{}{}
		d.ProxyShares += p.SharesSnapshot
		if p.HolderShareholderID != nil {
			d.DelegatedToHolder[*p.HolderShareholderID] += p.SharesSnapshot
		}
	}
	return d
}

// supersedes reports whether p takes precedence over other for the same
// grantor. Ties fall back to the proxy id so the choice is stable.
func (p *Proxy) supersedes(other *Proxy) bool {
	if p.ID == other.ID {
		return false
	}
	if bound, otherBound := p.MeetingID != nil, other.MeetingID != nil; bound != otherBound {
		return bound
	}
	pAt, otherAt := p.decisionTime(), other.decisionTime()
	if !pAt.Equal(otherAt) {
		return pAt.After(otherAt)
	}
	return p.ID.String() > other.ID.String()
}

func (p *Proxy) decisionTime() time.Time {
	if p.DecidedAt != nil {
		return *p.DecidedAt
	}
	return p.UpdatedAt
}

func (d Delegation) IsProxied(shareholderID id.ShareholderID) bool {
	_, ok := d.ProxiedGrantors[shareholderID]
	return ok
}

func (d Delegation) DelegatedTo(shareholderID id.ShareholderID) int64 {
	return d.DelegatedToHolder[shareholderID]
}

// Weight is the ballot weight of a shareholder: own active shares unless the
// shareholder proxied them away, plus everything delegated to them.
func (d Delegation) Weight(shareholderID id.ShareholderID, ownActive int64) int64 {
	own := ownActive
	if d.IsProxied(shareholderID) {
		own = 0
	}
	return own + d.DelegatedTo(shareholderID)
}

package sync

import (
	"sort"
	"time"

	"github.com/subsync/backend/internal/domain/billing"
)

// Params is the flat string-keyed parameter bag a scheduled run receives.
type Params map[string]string

// Recognized parameter keys.
const (
	ParamResetAll     = "reset_all"
	ParamPersistIDs   = "persist_ids"
	ParamEmailLog     = "email_log"
	ParamEmailAddress = "email_address"
)

// Bool reads a truthy parameter ("1" or "true").
func (p Params) Bool(key string) bool {
	v := p[key]
	return v == "1" || v == "true"
}

// SyncRun is the state threaded through one scheduled pass: Campaign Mirror,
// then Product Sync, then Offer Binding. It is created fresh at the start of
// every run; nothing in it survives across runs.
type SyncRun struct {
	StartedAt time.Time
	Params    Params

	// Snapshot is the campaign mirror the pass operates against.
	Snapshot *billing.CampaignSnapshot

	// StraightSaleProviderID is resolved once per run by the straight-sale
	// placeholder step.
	StraightSaleProviderID string

	seen          map[string]bool
	offerProducts map[billing.OfferID]map[string]bool
	report        map[string][]any
}

// NewSyncRun creates the per-run context.
func NewSyncRun(params Params) *SyncRun {
	if params == nil {
		params = Params{}
	}
	return &SyncRun{
		StartedAt:     time.Now(),
		Params:        params,
		seen:          make(map[string]bool),
		offerProducts: make(map[billing.OfferID]map[string]bool),
		report:        make(map[string][]any),
	}
}

// Seen reports whether a SKU was already processed this pass.
func (r *SyncRun) Seen(sku string) bool {
	return r.seen[sku]
}

// MarkSeen records a SKU as processed this pass.
func (r *SyncRun) MarkSeen(sku string) {
	r.seen[sku] = true
}

// LogOfferProduct records that a synced product belongs to an offer. The
// Offer Binding step inverts this log into per-offer membership pushes.
func (r *SyncRun) LogOfferProduct(offerID billing.OfferID, providerProductID string) {
	if offerID == "" || providerProductID == "" {
		return
	}
	set, ok := r.offerProducts[offerID]
	if !ok {
		set = make(map[string]bool)
		r.offerProducts[offerID] = set
	}
	set[providerProductID] = true
}

// OfferProducts returns the collected offer membership with each offer's
// provider product ids sorted.
func (r *SyncRun) OfferProducts() map[billing.OfferID][]string {
	out := make(map[billing.OfferID][]string, len(r.offerProducts))
	for offerID, set := range r.offerProducts {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out[offerID] = ids
	}
	return out
}

// AddReport appends one entry to a named report section.
func (r *SyncRun) AddReport(section string, entry any) {
	r.report[section] = append(r.report[section], entry)
}

// Report returns the accumulated report sections.
func (r *SyncRun) Report() map[string][]any {
	return r.report
}

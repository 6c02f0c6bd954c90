package models

import (
	"encoding/json"
	"time"

	"github.com/subsync/backend/internal/domain/billing"
)

// CampaignSnapshotModel stores the campaign mirror as one serialized row
// keyed by campaign id. Refresh replaces the whole row.
type CampaignSnapshotModel struct {
	CampaignID  int       `gorm:"primary_key;autoIncrement:false"`
	PayloadJSON string    `gorm:"type:jsonb;column:payload;not null"`
	RefreshedAt time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CampaignSnapshotModel) TableName() string {
	return "campaign_snapshots"
}

// snapshotPayload is the serialized shape of the snapshot sections.
type snapshotPayload struct {
	Offers        map[billing.OfferID]billing.Offer               `json:"offers"`
	Terms         map[billing.TermKey]billing.Term                `json:"terms"`
	BillingModels map[billing.BillingModelID]billing.BillingModel `json:"billing_models"`
	Products      map[string]billing.SnapshotProduct              `json:"products"`
	Drift         billing.SectionDrift                            `json:"drift"`
}

// ToDomain converts the persistence model to a domain CampaignSnapshot.
func (m *CampaignSnapshotModel) ToDomain() (*billing.CampaignSnapshot, error) {
	var payload snapshotPayload
	if err := json.Unmarshal([]byte(m.PayloadJSON), &payload); err != nil {
		return nil, err
	}
	snapshot := billing.NewCampaignSnapshot()
	snapshot.CampaignID = m.CampaignID
	snapshot.RefreshedAt = m.RefreshedAt
	snapshot.Drift = payload.Drift
	if payload.Offers != nil {
		snapshot.Offers = payload.Offers
	}
	if payload.Terms != nil {
		snapshot.Terms = payload.Terms
	}
	if payload.BillingModels != nil {
		snapshot.BillingModels = payload.BillingModels
	}
	if payload.Products != nil {
		snapshot.Products = payload.Products
	}
	return snapshot, nil
}

// FromDomain populates the persistence model from a domain CampaignSnapshot.
func (m *CampaignSnapshotModel) FromDomain(s *billing.CampaignSnapshot) error {
	payload := snapshotPayload{
		Offers:        s.Offers,
		Terms:         s.Terms,
		BillingModels: s.BillingModels,
		Products:      s.Products,
		Drift:         s.Drift,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	m.CampaignID = s.CampaignID
	m.PayloadJSON = string(data)
	m.RefreshedAt = s.RefreshedAt
	return nil
}

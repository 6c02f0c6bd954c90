package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/billing"
	"github.com/subsync/backend/internal/domain/order"
)

// ActionPolicy holds the per-site switches for customer-initiated
// subscription actions. CSR flows bypass it.
type ActionPolicy struct {
	AllowRecurringDateChange bool
	AllowBillingModelChange  bool
	AllowPause               bool
	AllowCancel              bool
}

// ParamBillingModelID and ParamDate name the action parameters the provider
// call needs.
const (
	ParamBillingModelID = "billing_model_id"
	ParamDate           = "date"
)

const dateLayout = "2006-01-02"

// Service manages provider subscriptions. Subscriptions are virtual: every
// read joins local orders with the provider's live order data, every
// mutation dispatches one provider call after a local ownership check.
type Service struct {
	gateway billing.ProviderGateway
	orders  order.Repository
	policy  ActionPolicy
	logger  *zap.Logger
}

// NewService creates the subscription service.
func NewService(gateway billing.ProviderGateway, orders order.Repository, policy ActionPolicy, logger *zap.Logger) *Service {
	return &Service{gateway: gateway, orders: orders, policy: policy, logger: logger}
}

// ApplyAction validates and dispatches one subscription mutation. The
// customer id gates ownership; uuid.Nil skips the check for CSR use.
// Validation happens before any provider traffic.
func (s *Service) ApplyAction(ctx context.Context, customerID uuid.UUID, subscriptionID string, action billing.SubscriptionAction, params billing.ActionParams) (*billing.ActionResult, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: %s", billing.ErrUnknownAction, action)
	}
	if err := s.checkPolicy(customerID, action); err != nil {
		return nil, err
	}
	if err := validateParams(action, params); err != nil {
		return nil, err
	}

	owner, err := s.owningOrder(ctx, customerID, subscriptionID)
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.SubscriptionAction(ctx, subscriptionID, action, params)
	if err != nil {
		return nil, err
	}

	if action == billing.ActionBillNow && result.NewOrderID != "" {
		owner.StampProviderOrder(result.NewOrderID, owner.Shipment.RawProviderResponse)
		if err := s.orders.Save(ctx, owner); err != nil {
			s.logger.Error("provider order restamp failed",
				zap.String("order_no", owner.OrderNo),
				zap.String("new_provider_order", result.NewOrderID),
				zap.Error(err))
		}
	}

	s.logger.Info("subscription action applied",
		zap.String("subscription_id", subscriptionID),
		zap.String("action", string(action)))
	return result, nil
}

func (s *Service) checkPolicy(customerID uuid.UUID, action billing.SubscriptionAction) error {
	if customerID == uuid.Nil {
		return nil
	}
	allowed := true
	switch action {
	case billing.ActionRecurAt:
		allowed = s.policy.AllowRecurringDateChange
	case billing.ActionBillingModel:
		allowed = s.policy.AllowBillingModelChange
	case billing.ActionPause:
		allowed = s.policy.AllowPause
	case billing.ActionTerminateNext, billing.ActionReset:
		allowed = s.policy.AllowCancel
	case billing.ActionBillNow:
		// Customers may always trigger an early bill.
	}
	if !allowed {
		return fmt.Errorf("%w: %s", billing.ErrActionNotEnabled, action)
	}
	return nil
}

func validateParams(action billing.SubscriptionAction, params billing.ActionParams) error {
	switch action {
	case billing.ActionBillingModel:
		if params[ParamBillingModelID] == "" {
			return fmt.Errorf("%w: %s", billing.ErrMissingActionParam, ParamBillingModelID)
		}
	case billing.ActionRecurAt:
		date := params[ParamDate]
		if date == "" {
			return fmt.Errorf("%w: %s", billing.ErrMissingActionParam, ParamDate)
		}
		if _, err := time.Parse(dateLayout, date); err != nil {
			return fmt.Errorf("%w: %s must be YYYY-MM-DD", billing.ErrMissingActionParam, ParamDate)
		}
	}
	return nil
}

// owningOrder resolves the local order carrying the subscription and checks
// it belongs to the acting customer.
func (s *Service) owningOrder(ctx context.Context, customerID uuid.UUID, subscriptionID string) (*order.Order, error) {
	owners, err := s.orders.FindBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		return nil, billing.ErrSubscriptionNotFound
	}
	if customerID == uuid.Nil {
		return &owners[0], nil
	}
	for i := range owners {
		if owners[i].CustomerID == customerID {
			return &owners[i], nil
		}
	}
	return nil, billing.ErrSubscriptionNotOwned
}

// ListForCustomer reconstructs the customer's subscriptions by joining their
// placed orders with the provider's live order data. Provider order numbers
// referenced by another customer's order are skipped as ambiguous.
func (s *Service) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]billing.Subscription, error) {
	placed, err := s.orders.FindPlacedForCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var out []billing.Subscription
	seen := make(map[string]bool)
	for i := range placed {
		providerOrderNo := placed[i].Shipment.ProviderOrderNumber
		if providerOrderNo == "" || seen[providerOrderNo] {
			continue
		}
		seen[providerOrderNo] = true

		owned, err := s.exclusivelyOwned(ctx, customerID, providerOrderNo)
		if err != nil {
			return nil, err
		}
		if !owned {
			s.logger.Warn("provider order referenced by another customer, skipping",
				zap.String("provider_order", providerOrderNo))
			continue
		}

		providerOrder, err := s.gateway.GetOrder(ctx, providerOrderNo)
		if err != nil {
			s.logger.Warn("provider order read failed",
				zap.String("provider_order", providerOrderNo), zap.Error(err))
			continue
		}
		out = append(out, s.assemble(&placed[i], providerOrder)...)
	}
	return out, nil
}

// exclusivelyOwned reports whether every local order referencing the
// provider order number belongs to the given customer.
func (s *Service) exclusivelyOwned(ctx context.Context, customerID uuid.UUID, providerOrderNo string) (bool, error) {
	refs, err := s.orders.FindByProviderOrderNumber(ctx, providerOrderNo)
	if err != nil {
		return false, err
	}
	for i := range refs {
		if refs[i].CustomerID != customerID {
			return false, nil
		}
	}
	return true, nil
}

// assemble turns the provider order's subscription lines into customer-facing
// subscription views, enriched with local order data.
func (s *Service) assemble(local *order.Order, providerOrder *billing.ProviderOrder) []billing.Subscription {
	var out []billing.Subscription
	for _, line := range providerOrder.Lines {
		if line.SubscriptionID == "" {
			continue
		}
		sub := billing.Subscription{
			ID:               line.SubscriptionID,
			CustomerID:       local.CustomerID,
			ProviderOrderID:  providerOrder.OrderID,
			LocalOrderNo:     local.OrderNo,
			SKU:              line.SKU,
			BillingModelID:   line.BillingModel.ID,
			BillingModelName: line.BillingModel.Name,
			Status:           billing.DeriveSubscriptionStatus(line.OnHold, line.HoldType, line.IsRecurring),
			CurrentCycle:     line.CurrentCycle,
			NextBillDate:     line.NextBillDate,
		}
		if localLine := matchLocalLine(local, line.SubscriptionID); localLine != nil {
			sub.ProductName = localLine.Name
			sub.OfferID = localLine.Sub.OfferID
		}
		if providerOrder.CustomerDeliveryDate != nil {
			frequency := billing.DeliveryFrequencyDays(line.BillingModel.Type, line.BillingModel.DaysPerCycle)
			if frequency > 0 {
				next := billing.NextDeliveryDate(*providerOrder.CustomerDeliveryDate, line.CurrentCycle, frequency)
				sub.NextDelivery = &next
			}
		}
		out = append(out, sub)
	}
	return out
}

func matchLocalLine(local *order.Order, subscriptionID string) *order.LineItem {
	for i := range local.LineItems {
		sub := local.LineItems[i].Sub
		if sub != nil && sub.SubscriptionID == subscriptionID {
			return &local.LineItems[i]
		}
	}
	return nil
}

// NextDelivery returns the projected next delivery date of one subscription,
// or nil when the cadence is not estimable.
func (s *Service) NextDelivery(ctx context.Context, customerID uuid.UUID, subscriptionID string) (*time.Time, error) {
	owner, err := s.owningOrder(ctx, customerID, subscriptionID)
	if err != nil {
		return nil, err
	}
	providerOrder, err := s.gateway.GetOrder(ctx, owner.Shipment.ProviderOrderNumber)
	if err != nil {
		return nil, err
	}
	if providerOrder.CustomerDeliveryDate == nil {
		return nil, nil
	}
	for _, line := range providerOrder.Lines {
		if line.SubscriptionID != subscriptionID {
			continue
		}
		frequency := billing.DeliveryFrequencyDays(line.BillingModel.Type, line.BillingModel.DaysPerCycle)
		if frequency == 0 {
			return nil, nil
		}
		next := billing.NextDeliveryDate(*providerOrder.CustomerDeliveryDate, line.CurrentCycle, frequency)
		return &next, nil
	}
	return nil, billing.ErrSubscriptionNotFound
}

package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/billing"
	"github.com/subsync/backend/internal/domain/catalog"
	"github.com/subsync/backend/internal/domain/order"
	"github.com/subsync/backend/internal/infrastructure/notify"
)

var (
	ErrEmptyOrder         = errors.New("checkout: order has no lines")
	ErrCardRequired       = errors.New("checkout: no cached payment session and no card supplied")
	ErrProductNotReady    = errors.New("checkout: product is not purchasable as a subscription")
	ErrUnknownTerm        = errors.New("checkout: unknown prepaid term")
	ErrStraightSaleBroken = errors.New("checkout: straight sale placeholder not synced")
)

// Outcome classifies how a submission ended. An orphan outcome means the
// provider order exists and the local order was recovered outside the host
// transaction; CSR gets notified either way.
type Outcome string

const (
	OutcomePlaced            Outcome = "placed"
	OutcomeFailedPreProvider Outcome = "failed_pre_provider"
	OutcomeOrphanRecovered   Outcome = "orphan_recovered"
)

// LineInput is one cart line as submitted by the storefront. Offer,
// billing-model and term selections come in raw; the service resolves the
// provider correlation from the catalog and snapshot.
type LineInput struct {
	SKU      string
	Quantity int
	// NetPrice is the pre-tax price for the full quantity.
	NetPrice decimal.Decimal
	TaxRate  decimal.Decimal

	OfferID        billing.OfferID
	BillingModelID billing.BillingModelID
	// PrepaidCycles selects a prepaid term; zero means none.
	PrepaidCycles int
}

// SubmitInput is one checkout submission.
type SubmitInput struct {
	CartID     string
	OrderNo    string
	CustomerID uuid.UUID
	Email      string
	IP         string

	// Card is required when no live payment session is cached for the cart.
	Card *billing.CardInput

	BillingAddress  billing.Address
	ShippingAddress billing.Address
	Lines           []LineInput

	FraudApproved bool
}

// SubmitResult pairs the persisted order with the submission outcome.
type SubmitResult struct {
	Order   *order.Order
	Outcome Outcome
}

// Service runs the checkout submission sequence: validate, tokenize,
// authorize, create the provider order, then commit locally and place.
type Service struct {
	gateway         billing.ProviderGateway
	orders          order.Repository
	products        catalog.ProductReader
	snapshots       billing.SnapshotRepository
	sessions        billing.SessionStore
	txm             order.TransactionManager
	notifier        notify.Notifier
	logger          *zap.Logger
	campaignID      int
	straightSaleSKU string
	now             func() time.Time
}

// NewService creates the checkout service.
func NewService(
	gateway billing.ProviderGateway,
	orders order.Repository,
	products catalog.ProductReader,
	snapshots billing.SnapshotRepository,
	sessions billing.SessionStore,
	txm order.TransactionManager,
	notifier notify.Notifier,
	campaignID int,
	straightSaleSKU string,
	logger *zap.Logger,
) *Service {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Service{
		gateway:         gateway,
		orders:          orders,
		products:        products,
		snapshots:       snapshots,
		sessions:        sessions,
		txm:             txm,
		notifier:        notifier,
		logger:          logger,
		campaignID:      campaignID,
		straightSaleSKU: straightSaleSKU,
		now:             time.Now,
	}
}

// Submit executes one checkout. The provider order-creation call is the
// point of no return: failures before it leave a failed local order and
// nothing on the provider side, failures after it trigger best-effort local
// recovery plus a CSR notification rather than a rollback.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if len(in.Lines) == 0 {
		return nil, ErrEmptyOrder
	}

	snapshot, err := s.snapshots.Load(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		snapshot = billing.NewCampaignSnapshot()
	}

	ord, err := s.buildOrder(ctx, in, snapshot)
	if err != nil {
		return nil, err
	}

	session, err := s.establishSession(ctx, in)
	if err != nil {
		return nil, err
	}

	subLines := ord.SubscriptionLines()
	if session.TempCustomerID == "" {
		refProductID := s.referenceProductID(subLines)
		if refProductID == "" {
			refProductID, err = s.straightSaleProviderID(ctx)
			if err != nil {
				return nil, err
			}
		}
		tempID, err := s.gateway.Authorize(ctx, billing.AuthorizeInput{
			Token:              session.Token,
			Email:              in.Email,
			IP:                 in.IP,
			BillingAddress:     in.BillingAddress,
			ReferenceProductID: refProductID,
			CampaignID:         s.campaignID,
		})
		if err != nil {
			return nil, err
		}
		session.TempCustomerID = tempID
		if err := s.sessions.SaveSession(ctx, in.CartID, session); err != nil {
			s.logger.Warn("session cache update failed", zap.Error(err))
		}
	}

	offers, err := s.buildOfferLines(ctx, ord, snapshot)
	if err != nil {
		return nil, err
	}

	taxRate := ord.FirstNonzeroTaxRate()
	result, err := s.gateway.CreateOrder(ctx, billing.NewOrderInput{
		TempCustomerID:  session.TempCustomerID,
		Token:           session.Token,
		Email:           in.Email,
		IP:              in.IP,
		CampaignID:      s.campaignID,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		TaxRate:         taxRate,
		TaxAmount:       ord.NetTotal().Mul(taxRate).Round(2),
		Offers:          offers,
	})
	if err != nil {
		if result != nil {
			ord.StampProviderOrder("", result.Raw)
		}
		ord.MarkFailed()
		if saveErr := s.orders.Save(ctx, ord); saveErr != nil {
			s.logger.Error("failed order could not be persisted",
				zap.String("order_no", ord.OrderNo), zap.Error(saveErr))
		}
		s.dropSession(ctx, in.CartID)
		return &SubmitResult{Order: ord, Outcome: OutcomeFailedPreProvider}, err
	}

	commitErr := s.txm.Transaction(ctx, func(txCtx context.Context) error {
		ord.StampProviderOrder(result.OrderID, result.Raw)
		ord.StampSubscriptionIDs(result.Lines)
		if err := ord.Place(in.FraudApproved); err != nil {
			return err
		}
		return s.orders.Save(txCtx, ord)
	})
	if commitErr != nil {
		return s.recoverOrphan(ctx, in, ord, result, commitErr)
	}

	s.dropSession(ctx, in.CartID)
	s.logger.Info("order placed",
		zap.String("order_no", ord.OrderNo),
		zap.String("provider_order", result.OrderID))
	return &SubmitResult{Order: ord, Outcome: OutcomePlaced}, nil
}

// recoverOrphan handles a provider order whose local commit failed. The
// provider side cannot be rolled back, so the local order is stamped and
// placed best-effort outside the transaction and CSR is alerted with the
// raw response for manual reconciliation.
func (s *Service) recoverOrphan(ctx context.Context, in SubmitInput, ord *order.Order, result *billing.NewOrderResult, commitErr error) (*SubmitResult, error) {
	s.logger.Error("local commit failed after provider order creation",
		zap.String("order_no", ord.OrderNo),
		zap.String("provider_order", result.OrderID),
		zap.Error(commitErr))

	ord.StampProviderOrder(result.OrderID, result.Raw)
	ord.StampSubscriptionIDs(result.Lines)
	if ord.Status != order.StatusPlaced {
		if err := ord.Place(in.FraudApproved); err != nil && !errors.Is(err, order.ErrAlreadyPlaced) {
			s.logger.Error("orphan placement failed", zap.String("order_no", ord.OrderNo), zap.Error(err))
		}
	}
	recovered := true
	if err := s.orders.Save(ctx, ord); err != nil {
		recovered = false
		s.logger.Error("orphan recovery save failed",
			zap.String("order_no", ord.OrderNo), zap.Error(err))
	}

	body := fmt.Sprintf(
		"Provider order %s was created but the local commit for order %s failed.\n\nCommit error: %v\nLocal recovery: %t\n\nRaw provider response:\n%s\n",
		result.OrderID, ord.OrderNo, commitErr, recovered, result.Raw,
	)
	if err := s.notifier.Notify("Orphaned provider order "+result.OrderID, body); err != nil {
		s.logger.Error("orphan notification failed", zap.Error(err))
	}

	s.dropSession(ctx, in.CartID)
	return &SubmitResult{Order: ord, Outcome: OutcomeOrphanRecovered}, nil
}

// buildOrder validates the cart lines against the catalog and snapshot and
// assembles the local order aggregate.
func (s *Service) buildOrder(ctx context.Context, in SubmitInput, snapshot *billing.CampaignSnapshot) (*order.Order, error) {
	ord, err := order.NewOrder(in.OrderNo, in.CustomerID, in.Email, in.IP)
	if err != nil {
		return nil, err
	}
	ord.BillingAddr = in.BillingAddress
	ord.ShippingAddr = in.ShippingAddress

	for _, line := range in.Lines {
		product, err := s.products.FindBySKU(ctx, line.SKU)
		if err != nil {
			return nil, err
		}

		var sub *order.SubscriptionAttributes
		if line.OfferID != "" || line.BillingModelID != "" {
			sub = &order.SubscriptionAttributes{
				ProviderProductID: product.ProviderProductID,
				ProviderVariantID: product.ProviderVariantID,
				CampaignID:        s.campaignID,
				OfferID:           line.OfferID,
				BillingModelID:    line.BillingModelID,
			}
			if err := sub.Validate(); err != nil {
				return nil, err
			}
			if !product.Ready {
				return nil, fmt.Errorf("%w: %s", ErrProductNotReady, line.SKU)
			}
			if model, ok := snapshot.BillingModels[line.BillingModelID]; ok {
				sub.BillingModelText = model.Name
			}
			if line.PrepaidCycles > 0 {
				key := billing.NewTermKey(line.OfferID, line.PrepaidCycles)
				if _, ok := snapshot.Terms[key]; !ok {
					return nil, fmt.Errorf("%w: %s", ErrUnknownTerm, key)
				}
				sub.TermKey = &key
			}
		}

		item, err := order.NewLineItem(line.SKU, product.Name, line.Quantity, line.NetPrice, sub)
		if err != nil {
			return nil, err
		}
		item.TaxRate = line.TaxRate
		ord.AddLineItem(*item)
	}
	return ord, nil
}

// establishSession reuses the cached payment session for the cart or
// tokenizes the submitted card into a fresh one. Expiry is checked
// explicitly; an expired session with no replacement card is an error
// before any provider write happens.
func (s *Service) establishSession(ctx context.Context, in SubmitInput) (*billing.CheckoutSession, error) {
	session, err := s.sessions.GetSession(ctx, in.CartID)
	if err != nil {
		s.logger.Warn("session lookup failed", zap.Error(err))
		session = nil
	}
	expired := false
	if session != nil && session.Expired(s.now()) {
		s.dropSession(ctx, in.CartID)
		session = nil
		expired = true
	}
	if session != nil {
		return session, nil
	}

	if in.Card == nil {
		if expired {
			return nil, billing.ErrPaymentTokenExpired
		}
		return nil, ErrCardRequired
	}
	token, err := s.gateway.TokenizeCard(ctx, *in.Card)
	if err != nil {
		return nil, err
	}
	session = &billing.CheckoutSession{
		Token:     token.Token,
		CreatedAt: s.now(),
	}
	if err := s.sessions.SaveSession(ctx, in.CartID, session); err != nil {
		s.logger.Warn("session cache write failed", zap.Error(err))
	}
	return session, nil
}

// buildOfferLines translates the local order into the provider's offer
// array: one entry per subscription line plus a single synthetic straight
// sale entry aggregating every non-subscription line.
func (s *Service) buildOfferLines(ctx context.Context, ord *order.Order, snapshot *billing.CampaignSnapshot) ([]billing.OrderOfferLine, error) {
	subLines := ord.SubscriptionLines()
	offers := make([]billing.OrderOfferLine, 0, len(subLines)+1)
	for _, line := range subLines {
		offers = append(offers, billing.OrderOfferLine{
			ProviderProductID: line.Sub.ProviderProductID,
			ProviderVariantID: line.Sub.ProviderVariantID,
			OfferID:           line.Sub.OfferID,
			BillingModelID:    line.Sub.BillingModelID,
			TermKey:           line.Sub.TermKey,
			Quantity:          line.Quantity,
			Price:             line.NetPrice,
		})
	}

	plainLines := ord.NonSubscriptionLines()
	if len(plainLines) > 0 {
		providerID, err := s.straightSaleProviderID(ctx)
		if err != nil {
			return nil, err
		}
		total := decimal.Zero
		quantity := 0
		for _, line := range plainLines {
			total = total.Add(line.NetPrice)
			quantity += line.Quantity
		}
		offers = append(offers, billing.OrderOfferLine{
			ProviderProductID: providerID,
			OfferID:           anyOfferID(subLines, snapshot),
			BillingModelID:    billing.StraightSaleBillingModelID,
			Quantity:          quantity,
			Price:             total,
		})
	}
	if len(offers) == 0 {
		return nil, ErrEmptyOrder
	}
	sortOfferLines(offers)
	return offers, nil
}

// straightSaleProviderID reads the placeholder product's provider id. The
// sync job keeps it alive; a missing correlation means sync has not run.
func (s *Service) straightSaleProviderID(ctx context.Context) (string, error) {
	placeholder, err := s.products.FindBySKU(ctx, s.straightSaleSKU)
	if err != nil || placeholder.ProviderProductID == "" {
		return "", ErrStraightSaleBroken
	}
	return placeholder.ProviderProductID, nil
}

// referenceProductID picks the authorize call's reference product from any
// subscription line; they all share one campaign.
func (s *Service) referenceProductID(subLines []*order.LineItem) string {
	for _, line := range subLines {
		if line.Sub.ProviderProductID != "" {
			return line.Sub.ProviderProductID
		}
	}
	return ""
}

// anyOfferID returns the first subscription line's offer, falling back to
// the lowest offer id in the snapshot for pure straight-sale orders. The
// provider requires an offer on every order line, straight sale included.
func anyOfferID(subLines []*order.LineItem, snapshot *billing.CampaignSnapshot) billing.OfferID {
	if len(subLines) > 0 {
		return subLines[0].Sub.OfferID
	}
	ids := make([]billing.OfferID, 0, len(snapshot.Offers))
	for id := range snapshot.Offers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > 0 {
		return ids[0]
	}
	return ""
}

func (s *Service) dropSession(ctx context.Context, cartID string) {
	if err := s.sessions.DeleteSession(ctx, cartID); err != nil {
		s.logger.Warn("session delete failed", zap.Error(err))
	}
}

// sortOfferLines keeps the provider payload deterministic for tests and
// request logging.
func sortOfferLines(lines []billing.OrderOfferLine) {
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProviderProductID < lines[j].ProviderProductID
	})
}

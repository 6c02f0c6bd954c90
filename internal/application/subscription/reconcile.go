package subscription

import (
	"context"

	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/billing"
	"github.com/subsync/backend/internal/domain/order"
)

// ShipmentReconciler synchronizes shipment state with the provider in both
// directions: provider tracking numbers are pulled onto open local orders,
// locally captured tracking numbers are pushed to provider orders exactly
// once.
type ShipmentReconciler struct {
	gateway billing.ProviderGateway
	orders  order.Repository
	logger  *zap.Logger
}

// NewShipmentReconciler creates the shipment reconciler.
func NewShipmentReconciler(gateway billing.ProviderGateway, orders order.Repository, logger *zap.Logger) *ShipmentReconciler {
	return &ShipmentReconciler{gateway: gateway, orders: orders, logger: logger}
}

// Reconcile runs both directions and returns a report keyed by section.
// Per-order failures are reported and skipped; the run always covers every
// eligible order.
func (r *ShipmentReconciler) Reconcile(ctx context.Context) (map[string][]any, error) {
	report := make(map[string][]any)
	if err := r.pullTracking(ctx, report); err != nil {
		return report, err
	}
	if err := r.pushTracking(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

// pullTracking copies provider-side tracking numbers onto open local orders
// and advances their shipping status.
func (r *ShipmentReconciler) pullTracking(ctx context.Context, report map[string][]any) error {
	open, err := r.orders.FindOpenWithProviderOrders(ctx)
	if err != nil {
		return err
	}
	for i := range open {
		ord := &open[i]
		providerOrder, err := r.gateway.GetOrder(ctx, ord.Shipment.ProviderOrderNumber)
		if err != nil {
			r.logger.Warn("provider order read failed",
				zap.String("order_no", ord.OrderNo),
				zap.String("provider_order", ord.Shipment.ProviderOrderNumber),
				zap.Error(err))
			report["errors"] = append(report["errors"], map[string]string{
				"order_no": ord.OrderNo, "error": err.Error(),
			})
			continue
		}

		changed := false
		for _, line := range providerOrder.Lines {
			if ord.RecordTracking(line.SKU, line.TrackingNumber) {
				changed = true
			}
		}
		if !changed {
			continue
		}
		// The provider already knows this tracking number, so the push
		// direction must not send it back.
		ord.MarkProviderUpdateApplied()
		if err := r.orders.Save(ctx, ord); err != nil {
			return err
		}
		report["tracking_pulled"] = append(report["tracking_pulled"], map[string]string{
			"order_no":        ord.OrderNo,
			"tracking_number": ord.Shipment.TrackingNumber,
			"shipping_status": string(ord.Shipment.ShippingStatus),
		})
	}
	return nil
}

// pushTracking forwards locally captured tracking numbers to the provider.
// The applied flag on the shipment makes the push idempotent across runs.
func (r *ShipmentReconciler) pushTracking(ctx context.Context, report map[string][]any) error {
	pending, err := r.orders.FindPendingTrackingPush(ctx)
	if err != nil {
		return err
	}
	for i := range pending {
		ord := &pending[i]
		err := r.gateway.UpdateOrderTracking(ctx, ord.Shipment.ProviderOrderNumber, ord.Shipment.TrackingNumber)
		if err != nil {
			r.logger.Warn("tracking push failed",
				zap.String("order_no", ord.OrderNo), zap.Error(err))
			report["errors"] = append(report["errors"], map[string]string{
				"order_no": ord.OrderNo, "error": err.Error(),
			})
			continue
		}
		ord.MarkProviderUpdateApplied()
		if err := r.orders.Save(ctx, ord); err != nil {
			return err
		}
		report["tracking_pushed"] = append(report["tracking_pushed"], map[string]string{
			"order_no":        ord.OrderNo,
			"tracking_number": ord.Shipment.TrackingNumber,
		})
	}
	return nil
}

package out_ws

import (
	"context"

	"pawfect/internal/dispatch/application/ports/out"
	"pawfect/internal/shared/ws"
)

// DispatchNotifier pushes events over the session hub's topic registry.
// Role topics are rider:<id>, seller:<id>, buyer:<id>; available_orders is
// the shared rider feed.
type DispatchNotifier struct {
	hub *ws.Hub
}

func NewDispatchNotifier(hub *ws.Hub) out.Notifier {
	return &DispatchNotifier{hub: hub}
}

func (n *DispatchNotifier) NotifyRider(_ context.Context, riderID, event string, payload any) error {
	return n.hub.Publish(ws.RiderTopic(riderID), event, payload)
}

func (n *DispatchNotifier) NotifySeller(_ context.Context, sellerID, event string, payload any) error {
	return n.hub.Publish(ws.SellerTopic(sellerID), event, payload)
}

func (n *DispatchNotifier) NotifyBuyer(_ context.Context, buyerID, event string, payload any) error {
	return n.hub.Publish(ws.BuyerTopic(buyerID), event, payload)
}

func (n *DispatchNotifier) BroadcastAvailableOrders(_ context.Context, event string, payload any) error {
	return n.hub.Publish(ws.TopicAvailableOrders, event, payload)
}

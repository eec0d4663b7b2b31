package billing

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/hearthhq/hearth/internal/auth"
	"github.com/hearthhq/hearth/internal/store"
)

// Handler serves the subscription endpoints and the Stripe webhook.
type Handler struct {
	stripeClient *StripeClient
	subs         *SubscriptionStore
	users        *store.UserStore
	logger       *slog.Logger
}

func NewHandler(sc *StripeClient, subs *SubscriptionStore, users *store.UserStore, logger *slog.Logger) *Handler {
	return &Handler{
		stripeClient: sc,
		subs:         subs,
		users:        users,
		logger:       logger,
	}
}

// GetSubscription returns the family's current plan.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	if familyID == 0 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	sub, err := h.subs.GetOrCreate(familyID)
	if err != nil {
		h.logger.Error("get subscription", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sub)
}

// CreateCheckout starts a Stripe checkout session for the family plan.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	if !h.stripeClient.Configured() {
		http.Error(w, "billing not configured", http.StatusServiceUnavailable)
		return
	}
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Interval string `json:"interval"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sub, err := h.subs.GetOrCreate(ac.FamilyID)
	if err != nil {
		h.logger.Error("get subscription", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	customerID := sub.StripeCustomerID
	if customerID == "" {
		user, err := h.users.GetByID(ac.UserID)
		if err != nil || user == nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		customerID, err = h.stripeClient.CreateCustomer(user.Email)
		if err != nil {
			h.logger.Error("create stripe customer", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if err := h.subs.SetStripeCustomerID(sub.ID, customerID); err != nil {
			h.logger.Error("save stripe customer id", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	url, err := h.stripeClient.CreateCheckoutSession(customerID, h.stripeClient.PriceIDForInterval(req.Interval))
	if err != nil {
		h.logger.Error("create checkout session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": url})
}

// CreatePortal returns a Stripe billing portal URL for plan management.
func (h *Handler) CreatePortal(w http.ResponseWriter, r *http.Request) {
	if !h.stripeClient.Configured() {
		http.Error(w, "billing not configured", http.StatusServiceUnavailable)
		return
	}
	familyID := auth.FamilyID(r.Context())
	if familyID == 0 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sub, err := h.subs.GetByFamilyID(familyID)
	if err != nil || sub == nil || sub.StripeCustomerID == "" {
		http.Error(w, "no billing account", http.StatusNotFound)
		return
	}

	url, err := h.stripeClient.CreateBillingPortalSession(sub.StripeCustomerID, h.stripeClient.cfg.CancelURL)
	if err != nil {
		h.logger.Error("create portal session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": url})
}

// HandleWebhook processes Stripe subscription lifecycle events.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.stripeClient.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(event)
	case "invoice.paid":
		h.handleInvoicePaid(event)
	case "invoice.payment_failed":
		h.handleInvoicePaymentFailed(event)
	case "customer.subscription.updated":
		h.handleSubscriptionUpdated(event)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(event)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCheckoutCompleted(event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("unmarshal checkout session", "error", err)
		return
	}
	if sess.Customer == nil {
		h.logger.Warn("checkout session missing customer")
		return
	}

	sub, err := h.subs.GetByStripeCustomerID(sess.Customer.ID)
	if err != nil || sub == nil {
		h.logger.Error("subscription for checkout not found", "customer", sess.Customer.ID, "error", err)
		return
	}

	if sess.Subscription != nil {
		if err := h.subs.SetStripeSubscriptionID(sub.ID, sess.Subscription.ID); err != nil {
			h.logger.Error("save stripe subscription id", "error", err)
		}
	}
	if err := h.subs.UpdatePlan(sub.ID, PlanFamily, "active"); err != nil {
		h.logger.Error("activate subscription", "error", err)
		return
	}
	h.logger.Info("checkout completed", "family_id", sub.FamilyID)
}

// subscriptionIDFromInvoice extracts the subscription ID from an invoice's parent.
func subscriptionIDFromInvoice(invoice stripe.Invoice) string {
	if invoice.Parent != nil &&
		invoice.Parent.SubscriptionDetails != nil &&
		invoice.Parent.SubscriptionDetails.Subscription != nil {
		return invoice.Parent.SubscriptionDetails.Subscription.ID
	}
	return ""
}

func (h *Handler) handleInvoicePaid(event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("unmarshal invoice", "error", err)
		return
	}

	subID := subscriptionIDFromInvoice(invoice)
	if subID == "" {
		return
	}

	sub, err := h.subs.GetByStripeID(subID)
	if err != nil || sub == nil {
		return
	}

	if err := h.subs.UpdateStatus(sub.ID, "active"); err != nil {
		h.logger.Error("update subscription status", "error", err)
	}
	if invoice.PeriodEnd > 0 {
		if err := h.subs.UpdatePeriodEnd(sub.ID, time.Unix(invoice.PeriodEnd, 0).UTC()); err != nil {
			h.logger.Error("update period end", "error", err)
		}
	}
}

func (h *Handler) handleInvoicePaymentFailed(event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("unmarshal invoice", "error", err)
		return
	}

	subID := subscriptionIDFromInvoice(invoice)
	if subID == "" {
		return
	}

	sub, err := h.subs.GetByStripeID(subID)
	if err != nil || sub == nil {
		return
	}

	if err := h.subs.UpdateStatus(sub.ID, "past_due"); err != nil {
		h.logger.Error("mark subscription past_due", "error", err)
	}
}

func (h *Handler) handleSubscriptionUpdated(event stripe.Event) {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		h.logger.Error("unmarshal subscription", "error", err)
		return
	}

	sub, err := h.subs.GetByStripeID(stripeSub.ID)
	if err != nil || sub == nil {
		return
	}

	if err := h.subs.UpdateStatus(sub.ID, string(stripeSub.Status)); err != nil {
		h.logger.Error("update subscription status", "error", err)
	}
	if err := h.subs.SetCancelAtPeriodEnd(sub.ID, stripeSub.CancelAtPeriodEnd); err != nil {
		h.logger.Error("set cancel at period end", "error", err)
	}
}

func (h *Handler) handleSubscriptionDeleted(event stripe.Event) {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		h.logger.Error("unmarshal subscription", "error", err)
		return
	}

	sub, err := h.subs.GetByStripeID(stripeSub.ID)
	if err != nil || sub == nil {
		return
	}

	if err := h.subs.UpdatePlan(sub.ID, PlanFree, "canceled"); err != nil {
		h.logger.Error("downgrade subscription", "error", err)
	}
}

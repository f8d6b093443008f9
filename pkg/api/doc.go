// Package api exposes the WashDeck HTTP surface: checkout and
// subscription management, the Stripe webhook receiver, the plan
// catalog, bookings with a live activity feed, promo codes, and fleet
// invoices. Handlers are grouped per concern and register their own
// routes on the shared router.
package api

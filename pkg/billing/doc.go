// Package billing implements the subscription lifecycle against Stripe:
// checkout session creation with multi-vehicle discount pricing, plan
// changes with proration, period-end cancellation, billing portal
// sessions, and the inbound webhook synchronizer that keeps local invoice
// rows consistent with Stripe.
//
// Stripe is the source of truth for money movement. Endpoints that mutate
// a subscription do not update local rows synchronously; local state
// catches up via webhooks and the background reconciler.
package billing

package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "orders",
		Name:      "created_total",
		Help:      "Orders created, by payment method.",
	}, []string{"payment_method"})

	paymentVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "payments",
		Name:      "verifications_total",
		Help:      "Payment confirmations, by outcome.",
	}, []string{"outcome"})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "orders",
		Name:      "status_transitions_total",
		Help:      "Applied order status transitions.",
	}, []string{"from", "to"})

	paidBackorders = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "orders",
		Name:      "paid_backorders_total",
		Help:      "Paid orders placed with lines that could not be reserved.",
	})

	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "notifications",
		Name:      "sent_total",
		Help:      "Order emails, by recipient and result.",
	}, []string{"recipient", "result"})
)

func recordNotification(recipient string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	notificationsSent.WithLabelValues(recipient, result).Inc()
}

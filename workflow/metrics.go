package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FoliosIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folios_issued_total",
		Help: "Total folios issued by document prefix",
	}, []string{"prefix"})

	FolioRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_retries_total",
		Help: "Total folio generation attempts lost to a concurrent writer",
	})

	FolioExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_exhausted_total",
		Help: "Total folio generations that failed after the retry budget",
	})

	MovementsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_movements_applied_total",
		Help: "Total stock movements applied by type",
	}, []string{"type"})

	StockDeniedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_movements_denied_total",
		Help: "Total outbound movements denied for insufficient stock",
	})

	StockConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_conflicts_total",
		Help: "Total guarded stock decrements lost to a concurrent writer",
	})

	TicketTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_transitions_total",
		Help: "Total ticket state transitions by target state",
	}, []string{"to"})

	TicketTransitionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_transitions_rejected_total",
		Help: "Total rejected ticket transitions by reason",
	}, []string{"reason"})

	PaymentsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total payments recorded by method",
	}, []string{"method"})

	CashCutsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cash_cuts_created_total",
		Help: "Total cash cuts created",
	})
)

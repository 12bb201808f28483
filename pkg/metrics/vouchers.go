package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reconciliation outcomes.
const (
	OutcomeMatched           = "matched"
	OutcomeAlreadyProcessed  = "already_processed"
	OutcomeNoPendingPurchase = "no_pending_purchase"
	OutcomeMissingIdentifier = "missing_identifier"
	OutcomeError             = "error"
)

// Side effects run after a voucher is issued.
const (
	EffectRender = "render"
	EffectStore  = "store_image"
	EffectEmail  = "email"
	EffectAlert  = "admin_alert"
)

// VoucherMetrics counts reconciliation, redemption and fulfillment results.
type VoucherMetrics struct {
	reconciliations *prometheus.CounterVec
	redemptions     *prometheus.CounterVec
	sideEffects     *prometheus.CounterVec
	lookupBlocks    prometheus.Counter
}

// NewVoucherMetrics registers the voucher metrics on the provided registerer.
func NewVoucherMetrics(reg prometheus.Registerer) *VoucherMetrics {
	if reg == nil {
		return &VoucherMetrics{}
	}
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliations_total",
		Help:      "Payment notifications processed, by outcome.",
	}, []string{"source", "outcome"})
	redemptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redemptions_total",
		Help:      "Voucher redemption attempts, by outcome.",
	}, []string{"outcome"})
	sideEffects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fulfillment_side_effects_total",
		Help:      "Best-effort fulfillment steps, by effect and result.",
	}, []string{"effect", "result"})
	lookupBlocks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lookup_guard_blocks_total",
		Help:      "Sources blocked for enumerating voucher numbers.",
	})
	reg.MustRegister(reconciliations, redemptions, sideEffects, lookupBlocks)
	return &VoucherMetrics{
		reconciliations: reconciliations,
		redemptions:     redemptions,
		sideEffects:     sideEffects,
		lookupBlocks:    lookupBlocks,
	}
}

// ObserveReconcile counts one processed notification.
func (m *VoucherMetrics) ObserveReconcile(source, outcome string) {
	if m == nil || m.reconciliations == nil {
		return
	}
	m.reconciliations.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

// ObserveRedemption counts one redemption attempt. outcome is "success" or an error code.
func (m *VoucherMetrics) ObserveRedemption(outcome string) {
	if m == nil || m.redemptions == nil {
		return
	}
	m.redemptions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveSideEffect records the result of a best-effort fulfillment step.
func (m *VoucherMetrics) ObserveSideEffect(effect string, err error) {
	if m == nil || m.sideEffects == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.sideEffects.WithLabelValues(normalizeLabel(effect), result).Inc()
}

// IncLookupBlocked counts a source entering the blocked state.
func (m *VoucherMetrics) IncLookupBlocked() {
	if m == nil || m.lookupBlocks == nil {
		return
	}
	m.lookupBlocks.Inc()
}

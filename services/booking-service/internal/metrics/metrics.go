package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BookingMetrics exposes counters/histograms for slot listing and reservations.
type BookingMetrics struct {
	reservationsTotal *prometheus.CounterVec
	slotsListed       *prometheus.HistogramVec
	slotLatency       *prometheus.HistogramVec
	eventsPublished   *prometheus.CounterVec
	gatherer          prometheus.Gatherer
}

func NewBookingMetrics(reg *prometheus.Registry) *BookingMetrics {
	m := &BookingMetrics{
		reservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "staffslots",
			Subsystem: "booking",
			Name:      "reservations_total",
			Help:      "Reservation attempts by outcome",
		}, []string{"outcome"}),
		slotsListed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "staffslots",
			Subsystem: "booking",
			Name:      "slots_returned",
			Help:      "Number of bookable slots returned per listing",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}, []string{"scope"}),
		slotLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "staffslots",
			Subsystem: "booking",
			Name:      "slot_listing_seconds",
			Help:      "Latency of resolving and generating slots",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scope"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "staffslots",
			Subsystem: "outbox",
			Name:      "events_published_total",
			Help:      "Outbox events delivered to Kafka",
		}, []string{"event_type"}),
	}
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	m.gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer = reg
		m.gatherer = reg
	}
	registerer.MustRegister(m.reservationsTotal, m.slotsListed, m.slotLatency, m.eventsPublished)
	return m
}

// Outcome labels for ObserveReservation.
const (
	OutcomeReserved    = "reserved"
	OutcomeReplayed    = "replayed"
	OutcomeUnavailable = "unavailable"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
)

func (m *BookingMetrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSlotListing records one listing; scope is "staff" or "service".
func (m *BookingMetrics) ObserveSlotListing(scope string, slots int, seconds float64) {
	if m == nil {
		return
	}
	m.slotsListed.WithLabelValues(scope).Observe(float64(slots))
	m.slotLatency.WithLabelValues(scope).Observe(seconds)
}

// ReservationCounter returns the counter behind one outcome label.
func (m *BookingMetrics) ReservationCounter(outcome string) prometheus.Counter {
	return m.reservationsTotal.WithLabelValues(outcome)
}

func (m *BookingMetrics) ObserveEventPublished(eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// Handler serves the registry the metrics were registered with.
func (m *BookingMetrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

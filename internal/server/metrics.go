package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ludens_server_clients",
		Help: "Number of connected websocket clients.",
	})
	metricClientsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ludens_server_clients_dropped_total",
		Help: "Clients disconnected because their send buffer filled up.",
	})
	metricStateBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ludens_server_state_broadcasts_total",
		Help: "World snapshots broadcast to clients.",
	})
	metricDialogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ludens_server_dialog_requests_total",
		Help: "Dialog requests received over the websocket, by outcome.",
	}, []string{"outcome"})
	metricBadFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ludens_server_bad_frames_total",
		Help: "Client frames rejected as malformed or unknown.",
	})
)

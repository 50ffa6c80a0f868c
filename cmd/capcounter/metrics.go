package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CapsCounted counts caps dropped through the chute, by category.
	// Caps seen with no category selected are labelled "unsorted".
	CapsCounted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capcounter_caps_total",
		Help: "Total number of caps detected by the infrared sensor, by category.",
	}, []string{"category"})

	CategorySelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capcounter_category_selections_total",
		Help: "Total number of category selections, by category and source.",
	}, []string{"category", "source"})

	SerialBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capcounter_serial_bytes_total",
		Help: "Total number of bytes exchanged with the board, by direction.",
	}, []string{"direction"})

	PortOpens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capcounter_port_opens_total",
		Help: "Total number of times the serial port was opened.",
	})

	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capcounter_publish_failures_total",
		Help: "Total number of MQTT publications that failed.",
	})
)

const unsortedLabel = "unsorted"

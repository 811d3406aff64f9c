package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
)

func TestEventRoutes(t *testing.T) {
	routes := eventRoutes(config.Config{RecordQueue: "records", EventsQueue: "events"})

	assert.Equal(t, "records", routes.Queue(appointment.EventClinicalRecordRequested))
	assert.Equal(t, "events", routes.Queue(appointment.EventAppointmentScheduled))
	assert.Equal(t, "events", routes.Queue(appointment.EventAppointmentCancelled))
}

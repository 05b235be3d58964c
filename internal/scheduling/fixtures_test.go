package scheduling

import (
	"time"

	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func hour(h int) time.Time {
	return day.Add(time.Duration(h) * time.Hour)
}

func tiParams() domain.SLSParameters {
	return domain.SLSParameters{
		LaserPowerWatts:         200,
		ScanSpeedMmPerSec:       1200,
		LayerThicknessMicrons:   30,
		HatchSpacingMicrons:     120,
		BuildTemperatureCelsius: 180,
		ArgonPurityPercent:      99.99,
		OxygenContentPpm:        50,
		SlsMaterial:             string(domain.MaterialTi64Grade5),
	}
}

func job(id, machine string, startHour, endHour int) *domain.Job {
	return &domain.Job{
		JobID:          id,
		MachineID:      machine,
		ScheduledStart: hour(startHour),
		ScheduledEnd:   hour(endHour),
		Status:         domain.JobStatusScheduled,
		SLSParameters:  tiParams(),
	}
}

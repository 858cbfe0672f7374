package handlers

import (
	"time"

	"media-ingest/internal/database"
	"media-ingest/internal/ingest"
	"media-ingest/internal/startup"
	"media-ingest/internal/storage"
)

// Handlers holds the dependencies shared by all HTTP handlers.
type Handlers struct {
	db        *database.Database
	ingest    *ingest.Service
	layout    *storage.Layout
	profiles  *startup.Profiles
	startTime time.Time
}

// New creates the handler set.
func New(db *database.Database, svc *ingest.Service, layout *storage.Layout, profiles *startup.Profiles) *Handlers {
	return &Handlers{
		db:        db,
		ingest:    svc,
		layout:    layout,
		profiles:  profiles,
		startTime: time.Now(),
	}
}

package http

import (
	"github.com/nats-io/nats.go"
	"github.com/samirrijal/greenway/internal/adapters/geodata"
	"github.com/samirrijal/greenway/internal/adapters/postgres"
	"github.com/samirrijal/greenway/internal/adapters/valkey"
	"github.com/samirrijal/greenway/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Clicks      *usecases.ClickService
	Ranges      *usecases.RangeService
	Aggregation *usecases.AggregationService
	Lights      *geodata.Store
	NATS        *nats.Conn
	DB          *postgres.DB
	Cache       *valkey.Cache
}

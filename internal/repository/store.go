package repository

import "database/sql"

// MySQLStore bundles the MySQL repositories behind one value so it can be
// handed to services that need several of them.
type MySQLStore struct {
	*VenueRepo
	*EventRepo
	*InventoryRepo
	*TicketRepo
}

// NewMySQLStore builds every repository on the same connection pool.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		VenueRepo:     NewVenueRepo(db),
		EventRepo:     NewEventRepo(db),
		InventoryRepo: NewInventoryRepo(db),
		TicketRepo:    NewTicketRepo(db),
	}
}

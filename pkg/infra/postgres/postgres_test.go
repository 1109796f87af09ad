package postgres_wrapper

import "testing"

func TestInitPostgresBadLocation(t *testing.T) {
	_, err := InitPostgres(&PostgresConfig{
		DataSource: "host=localhost dbname=exchange sslmode=disable",
		Location:   "Nowhere/Atlantis",
	})
	if err == nil {
		t.Fatal("expected error for an unknown location")
	}
}

// Command chainwatch-seed loads a company profile and its supplier graph
// from a JSON fixture into the event store, for bootstrapping a fresh
// deployment or refreshing one after a supplier-roster change.
package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/aristath/chainwatch/internal/config"
	"github.com/aristath/chainwatch/internal/domain"
	"github.com/aristath/chainwatch/internal/logging"
	"github.com/aristath/chainwatch/internal/store"
)

// fixture is the on-disk shape of a seed file: one company profile and
// its full supplier roster.
type fixture struct {
	Company   domain.Company    `json:"company"`
	Suppliers []domain.Supplier `json:"suppliers"`
}

func main() {
	path := flag.String("file", "", "path to the seed JSON fixture")
	flag.Parse()

	if *path == "" {
		os.Stderr.WriteString("usage: chainwatch-seed -file seed.json\n")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Config{Level: "info", Pretty: true}).Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: true})

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("failed to read seed fixture")
	}

	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		log.Fatal().Err(err).Msg("failed to decode seed fixture")
	}

	st, err := store.Open(cfg.DataDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	if err := st.Companies.Upsert(&fx.Company); err != nil {
		log.Fatal().Err(err).Msg("failed to seed company profile")
	}
	log.Info().Str("name", fx.Company.Name).Msg("seeded company profile")

	for i := range fx.Suppliers {
		s := &fx.Suppliers[i]
		if err := st.Suppliers.Upsert(s); err != nil {
			log.Fatal().Err(err).Str("supplier_id", s.ID).Msg("failed to seed supplier")
		}
	}
	log.Info().Int("count", len(fx.Suppliers)).Msg("seeded supplier roster")
}

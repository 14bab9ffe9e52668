package main

import (
	"flag"
	"os"

	"github.com/nexusweave/nexus/server/nexusservice"
)

func main() {
	// Optional driver flag override (sqlite | postgres)
	dbDriver := flag.String("db-driver", "", "Override NEXUS_DB_DRIVER (sqlite, postgres)")
	flag.Parse()

	if *dbDriver != "" {
		_ = os.Setenv("NEXUS_DB_DRIVER", *dbDriver)
	}

	if err := nexusservice.Run(); err != nil {
		os.Exit(1)
	}
}

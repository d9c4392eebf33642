package main

import (
	"log"

	"github.com/hustletexas/cyber-arcade-verse-rally/services/vaultd"
)

func main() {
	if err := vaultd.Main(); err != nil {
		log.Fatalf("vaultd: %v", err)
	}
}

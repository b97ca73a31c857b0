package main

import (
	"log"

	"fieldline/ordering/cmd/rebalancerrun"
)

func main() {
	if err := rebalancerrun.Run(); err != nil {
		log.Fatal(err)
	}
}

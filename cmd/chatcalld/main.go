package main

import (
	"log"

	"github.com/MuhammadKomail/Chat-And-Calling-Socket-Backend/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"github.com/eleven-am/conference-signaling/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}

package main

import (
	"github.com/warasin/roomsync/app"
)

func main() {
	app.New(nil, nil).Start()
}

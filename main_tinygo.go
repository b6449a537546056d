//go:build tinygo

package main

import (
	"sparkrt/app"
	"sparkrt/hal"
)

func main() {
	app.Run(hal.New(1000))
}

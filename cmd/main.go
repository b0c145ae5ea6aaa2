package main

import (
	"github.com/brightcart/orders/internal/app"
	"github.com/brightcart/orders/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}

package main

import (
	"github.com/iotaledger/hive.go/app"

	ticketmesh "github.com/dueldanov/ticketmesh"
	"github.com/dueldanov/ticketmesh/components/database"
	"github.com/dueldanov/ticketmesh/components/prometheus"
	"github.com/dueldanov/ticketmesh/components/restapi"
	"github.com/dueldanov/ticketmesh/components/ticketing"
)

var (
	// Name of the app.
	Name = "ticketmesh"
	// Version of the app.
	Version = "1.0.0"
)

func main() {
	app.New(Name, Version,
		app.WithInitComponent(&app.InitComponent{
			Component: &app.Component{
				Name: "App",
			},
			NonHiddenFlags: []string{
				"config",
				"help",
				"version",
			},
		}),
		app.WithComponents(
			ticketmesh.Component,
			database.Component,
			ticketing.Component,
			restapi.Component,
			prometheus.Component,
		),
	).Run()
}

package ticketing

import (
	"github.com/iotaledger/hive.go/app"
)

type ParametersTicketing struct {
	Enabled          bool     `default:"true" usage:"whether the ticketing component is enabled"`
	ApplicationID    string   `default:"ticketmesh" usage:"application id mixed into ticket identity derivation"`
	HubChain         string   `default:"hub" usage:"chain id of the authoritative hub chain"`
	SpokeChains      []string `default:"venue,resale" usage:"chain ids of the spoke chains hosted by this node"`
	SubscribeOnStart bool     `default:"true" usage:"subscribe the spokes to the hub stream on startup"`
}

var ParamsTicketing = &ParametersTicketing{}

var params = &app.ComponentParams{
	Params: map[string]any{
		"ticketing": ParamsTicketing,
	},
	Masked: []string{},
}

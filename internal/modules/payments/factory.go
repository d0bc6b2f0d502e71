package payments

import "fmt"

// Factory resolves a gateway by name or hands back the configured default.
// The orchestrator never branches on provider identity itself.
type Factory struct {
	gateways    map[string]Gateway
	defaultName string
}

func NewFactory(defaultName string, gws ...Gateway) *Factory {
	m := make(map[string]Gateway, len(gws))
	for _, gw := range gws {
		m[gw.Name()] = gw
	}
	return &Factory{gateways: m, defaultName: defaultName}
}

// Resolve returns the gateway for name; an empty name selects the default.
func (f *Factory) Resolve(name string) (Gateway, error) {
	if name == "" {
		name = f.defaultName
	}
	gw, ok := f.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	return gw, nil
}

func (f *Factory) DefaultName() string { return f.defaultName }

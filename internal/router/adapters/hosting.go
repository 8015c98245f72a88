package adapters

import (
	"fmt"

	"github.com/af-corp/mlapi/internal/graph"
	"github.com/af-corp/mlapi/internal/types"
)

const (
	variantName    = "AllTraffic"
	invokeAction   = "sagemaker:InvokeEndpoint"
	accountPattern = "${AWS::AccountId}"
	regionPattern  = "${AWS::Region}"
)

// Environment locates the hosting resources. Empty fields stay symbolic so the
// provisioner can substitute them.
type Environment struct {
	Region  string
	Account string
}

// InvokeARNPattern is the resource pattern the routing surface is allowed to
// invoke for an entity.
func (env Environment) InvokeARNPattern(name string) string {
	region, account := env.Region, env.Account
	if region == "" {
		region = regionPattern
	}
	if account == "" {
		account = accountPattern
	}
	return fmt.Sprintf("arn:aws:sagemaker:%s:%s:endpoint/%s*", region, account, name)
}

// RegisterHosting adds the hosting node for e. A model gets a fully described
// endpoint; an endpoint is referenced by name as an external resource.
func RegisterHosting(b *graph.Builder, env Environment, e types.Entity) (Target, error) {
	name := e.EntityName()
	endpointName := types.HostingEndpointName(e)

	attrs := map[string]any{
		"endpoint_name":      endpointName,
		"invoke_action":      invokeAction,
		"invoke_arn_pattern": env.InvokeARNPattern(name),
	}
	switch m := e.(type) {
	case *types.ModelSpec:
		attrs["external"] = false
		attrs["model_name"] = name
		attrs["endpoint_config_name"] = name + "-config"
		attrs["variant_name"] = variantName
		attrs["initial_variant_weight"] = 1
		attrs["initial_instance_count"] = 1
		attrs["instance_type"] = m.Instance
		attrs[string(m.Source.Kind)] = m.Source.Value
		if m.Source.Kind == types.SourceModelPackage {
			attrs["enable_network_isolation"] = true
		}
	default:
		attrs["external"] = true
	}

	id, err := b.Add(graph.Node{
		ID:         graph.NewID(name, graph.KindHosting),
		Kind:       graph.KindHosting,
		Owner:      name,
		Attributes: attrs,
	})
	if err != nil {
		return Target{}, err
	}
	return Target{Owner: name, EndpointName: endpointName, Hosting: id}, nil
}

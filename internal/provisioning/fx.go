package provisioning

import (
	"github.com/smallbiznis/streamgate/internal/provisioning/service"
	"go.uber.org/fx"
)

var Module = fx.Module("provisioning",
	fx.Provide(service.NewClient),
)

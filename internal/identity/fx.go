package identity

import (
	"github.com/smallbiznis/streamgate/internal/identity/repository"
	"github.com/smallbiznis/streamgate/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.service",
	fx.Provide(repository.Provide),
	fx.Provide(repository.NewIdentityProvider),
	fx.Provide(service.NewService),
)

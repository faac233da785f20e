package automation

import (
	"github.com/smallbiznis/streamgate/internal/automation/reconciler"
	"github.com/smallbiznis/streamgate/internal/automation/repository"
	"github.com/smallbiznis/streamgate/internal/automation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("automation",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(reconciler.New),
	fx.Invoke(reconciler.Register),
)

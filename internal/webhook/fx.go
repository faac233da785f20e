package webhook

import (
	"github.com/smallbiznis/streamgate/internal/webhook/adapters"
	"github.com/smallbiznis/streamgate/internal/webhook/adapters/moonpay"
	"github.com/smallbiznis/streamgate/internal/webhook/adapters/nowpayments"
	"github.com/smallbiznis/streamgate/internal/webhook/adapters/stripe"
	"github.com/smallbiznis/streamgate/internal/webhook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewFactory(),
			nowpayments.NewFactory(),
			moonpay.NewFactory(),
		)
	}),
	fx.Provide(service.NewService),
)

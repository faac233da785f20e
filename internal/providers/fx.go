package providers

import (
	"github.com/smallbiznis/streamgate/internal/providers/email"
	"github.com/smallbiznis/streamgate/internal/providers/pdf"
	"github.com/smallbiznis/streamgate/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
	slack.Module,
)

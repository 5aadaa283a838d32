package main

import (
	"context"

	config "github.com/NordCoder/Healthwatch/internal/config/health-monitor"
	"github.com/NordCoder/Healthwatch/internal/obs"
)

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	tracing, err := obs.SetupTracing(ctx, obs.TracingConfig{
		Enable:      cfg.OTel.Enable,
		Endpoint:    cfg.OTel.OTLPEndpoint,
		ServiceName: cfg.OTel.ServiceName,
		Version:     cfg.App.Version,
		Env:         cfg.App.Env,
		SampleRatio: cfg.OTel.SampleRatio,
	})
	if err != nil {
		return nil, err
	}
	return tracing.Shutdown, nil
}

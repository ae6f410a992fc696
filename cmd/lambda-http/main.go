// Command lambda-http serves the API behind an API Gateway HTTP API.
//
//	GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http
package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/bootstrap"
	"jobboard-backend/internal/interview"
	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/server/respond"
	"jobboard-backend/internal/shared/telemetry"
)

// gateway builds the router on the first invocation and reuses it while the
// execution environment stays warm.
type gateway struct {
	build func() (*gin.Engine, error)

	once  sync.Once
	proxy *ginadapter.GinLambdaV2
	err   error
}

func (g *gateway) handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	g.once.Do(func() {
		router, err := g.build()
		if err != nil {
			g.err = err
			return
		}
		g.proxy = ginadapter.NewV2(router)
	})
	if g.err != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": g.err})
		return unavailable(), nil
	}
	return g.proxy.ProxyWithContext(ctx, req)
}

func unavailable() events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusInternalServerError,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"error":{"code":"internal_error","message":"` + respond.MsgInternal + `"}}`,
	}
}

// lambdaConfig forces inline evaluation: a frozen execution environment
// would stall background pool jobs between invocations.
func lambdaConfig(cfg config.Config) config.Config {
	if cfg.EvaluationMode == interview.ModeAsync {
		telemetry.Warn("lambda.evaluation_mode_downgraded", map[string]any{"from": cfg.EvaluationMode, "to": interview.ModeInline})
		cfg.EvaluationMode = interview.ModeInline
	}
	return cfg
}

func buildRouter() (*gin.Engine, error) {
	cfg := config.Load()
	if err := telemetry.Init(cfg.Env, cfg.LogLevel); err != nil {
		return nil, err
	}
	app, err := bootstrap.Build(lambdaConfig(cfg))
	if err != nil {
		return nil, err
	}
	return app.Router, nil
}

func main() {
	lambda.Start((&gateway{build: buildRouter}).handle)
}

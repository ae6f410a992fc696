package main

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard-backend/internal/interview"
	"jobboard-backend/internal/shared/config"
)

func pingRequest() events.APIGatewayV2HTTPRequest {
	req := events.APIGatewayV2HTTPRequest{RawPath: "/ping"}
	req.RequestContext.HTTP.Method = http.MethodGet
	req.RequestContext.HTTP.Path = "/ping"
	return req
}

func TestGatewayBuildsOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	builds := 0
	g := &gateway{build: func() (*gin.Engine, error) {
		builds++
		r := gin.New()
		r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
		return r, nil
	}}

	for i := 0; i < 2; i++ {
		resp, err := g.handle(context.Background(), pingRequest())
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "pong", resp.Body)
	}
	assert.Equal(t, 1, builds)
}

func TestGatewayReportsBootstrapFailure(t *testing.T) {
	g := &gateway{build: func() (*gin.Engine, error) { return nil, errors.New("no database") }}

	resp, err := g.handle(context.Background(), pingRequest())
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, resp.Body, "internal_error")
}

func TestLambdaConfigDowngradesAsync(t *testing.T) {
	cfg := lambdaConfig(config.Config{EvaluationMode: interview.ModeAsync})
	assert.Equal(t, interview.ModeInline, cfg.EvaluationMode)

	cfg = lambdaConfig(config.Config{EvaluationMode: interview.ModeQueue})
	assert.Equal(t, interview.ModeQueue, cfg.EvaluationMode)
}

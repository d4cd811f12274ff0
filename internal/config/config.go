// Package config centralizes environment-backed configuration for the
// pipeline Lambdas and the serving container.
package config

import (
	"github.com/spf13/viper"
)

// Config holds everything the entrypoints read from the environment.
// Fields that a given Lambda does not use stay at their zero/default
// value there.
type Config struct {
	// Deployment validation hook.
	DeploymentPrefix string // prefix CodeDeploy puts on deployment ids
	FunctionPrefix   string // prefix of the function under test

	// Bedrock.
	ModelID          string
	EmbeddingModelID string
	BatchRoleARN     string

	// Quality estimation.
	EstimationMode          string
	SageMakerEndpointName   string
	MarketplaceEndpointName string

	// Assessment inference parameters.
	MaxNewTokens int
	TopP         float64
	Temperature  float64

	// Translation memory.
	DatabaseURL string

	// Serving container.
	ServePort  int
	BackendURL string
	BackendCmd string // command line for the model process, empty to skip
}

// Load reads configuration from the environment. Legacy variable names
// from the original deployment (MODEL_ID, SAGEMAKER_ENDPOINT_NAME, ...)
// are honored alongside the MTPIPE_* names; every key is looked up
// verbatim, there is no automatic prefixing.
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("DEPLOYMENT_PREFIX", "d-")
	v.SetDefault("FUNCTION_PREFIX", "f-")
	v.SetDefault("MODEL_ID", "us.amazon.nova-pro-v1:0")
	v.SetDefault("EMBEDDING_MODEL_ID", "amazon.titan-embed-text-v2:0")
	v.SetDefault("QUALITY_ESTIMATION_MODE", "OPEN_SOURCE_SELF_HOSTED")
	v.SetDefault("MAX_NEW_TOKEN", 512)
	v.SetDefault("TOP_P", 0.9)
	v.SetDefault("TEMPERATURE", 0.1)
	v.SetDefault("MTPIPE_SERVE_PORT", 8080)
	v.SetDefault("MTPIPE_BACKEND_URL", "http://127.0.0.1:8081")

	return Config{
		DeploymentPrefix: v.GetString("DEPLOYMENT_PREFIX"),
		FunctionPrefix:   v.GetString("FUNCTION_PREFIX"),

		ModelID:          v.GetString("MODEL_ID"),
		EmbeddingModelID: v.GetString("EMBEDDING_MODEL_ID"),
		BatchRoleARN:     v.GetString("BATCH_ROLE_ARN"),

		EstimationMode:          v.GetString("QUALITY_ESTIMATION_MODE"),
		SageMakerEndpointName:   v.GetString("SAGEMAKER_ENDPOINT_NAME"),
		MarketplaceEndpointName: v.GetString("MARKETPLACE_ENDPOINT_NAME"),

		MaxNewTokens: v.GetInt("MAX_NEW_TOKEN"),
		TopP:         v.GetFloat64("TOP_P"),
		Temperature:  v.GetFloat64("TEMPERATURE"),

		DatabaseURL: v.GetString("MTPIPE_DATABASE_URL"),

		ServePort:  v.GetInt("MTPIPE_SERVE_PORT"),
		BackendURL: v.GetString("MTPIPE_BACKEND_URL"),
		BackendCmd: v.GetString("MTPIPE_BACKEND_CMD"),
	}
}

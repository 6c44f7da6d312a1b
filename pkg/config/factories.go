package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/store"
	"github.com/marmos91/dittodrive/pkg/store/memory"
	storeS3 "github.com/marmos91/dittodrive/pkg/store/s3"
	"github.com/marmos91/dittodrive/pkg/user"
	userBadger "github.com/marmos91/dittodrive/pkg/user/badger"
	userMemory "github.com/marmos91/dittodrive/pkg/user/memory"
)

// CreateGateway creates an object store gateway based on configuration.
//
// This factory uses the Type field to determine which implementation to
// create, then decodes the type-specific configuration from the
// corresponding map and passes it to the gateway's constructor.
//
// Supported types:
//   - "s3": Amazon S3 or any S3-compatible storage (MinIO, Cubbit DS3, ...)
//   - "memory": in-memory storage, ephemeral, for development
func CreateGateway(ctx context.Context, cfg *StoreConfig) (store.Gateway, error) {
	switch cfg.Type {
	case "s3":
		return createS3Gateway(ctx, cfg.S3)
	case "memory":
		return memory.NewMemoryGateway(), nil
	default:
		return nil, fmt.Errorf("unknown store type: %q (supported: s3, memory)", cfg.Type)
	}
}

// createS3Gateway builds the AWS config, the S3 client, and the gateway.
func createS3Gateway(ctx context.Context, options map[string]any) (store.Gateway, error) {
	type S3GatewayOptions struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
		CreateBucket    bool   `mapstructure:"create_bucket"`
	}

	var storeOpts S3GatewayOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 store config: %w", err)
	}

	if storeOpts.Bucket == "" {
		return nil, fmt.Errorf("S3 store: bucket is required")
	}
	if storeOpts.Region == "" {
		return nil, fmt.Errorf("S3 store: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(storeOpts.Region))

	// Custom endpoint for S3-compatible storage (MinIO, Localstack, etc.)
	if storeOpts.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               storeOpts.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default credential chain.
	if storeOpts.AccessKeyID != "" && storeOpts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeOpts.AccessKeyID,
			storeOpts.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Retries for transient S3 failures (502, 503, timeouts). These are the
	// only retries anywhere: the engines propagate store failures untouched.
	maxRetries := storeOpts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for compatibility with MinIO/Localstack
		if storeOpts.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	gateway, err := storeS3.NewS3Gateway(ctx, storeS3.S3GatewayConfig{
		Client:       client,
		Bucket:       storeOpts.Bucket,
		CreateBucket: storeOpts.CreateBucket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 gateway: %w", err)
	}

	logger.Info("S3 gateway initialized: bucket=%s, region=%s", storeOpts.Bucket, storeOpts.Region)

	return gateway, nil
}

// CreateUserStore creates a user store based on configuration.
//
// Supported types:
//   - "badger": BadgerDB storage, persistent
//   - "memory": in-memory storage, ephemeral, for development
func CreateUserStore(ctx context.Context, cfg *UsersConfig) (user.Store, error) {
	switch cfg.Type {
	case "badger":
		return createBadgerUserStore(ctx, cfg.Badger)
	case "memory":
		return userMemory.NewMemoryUserStore(), nil
	default:
		return nil, fmt.Errorf("unknown user store type: %q (supported: badger, memory)", cfg.Type)
	}
}

// createBadgerUserStore creates a BadgerDB-based persistent user store.
func createBadgerUserStore(ctx context.Context, options map[string]any) (user.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type BadgerUserStoreOptions struct {
		DBPath   string `mapstructure:"db_path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var storeOpts BadgerUserStoreOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger user store options: %w", err)
	}

	if storeOpts.DBPath == "" && !storeOpts.InMemory {
		return nil, fmt.Errorf("badger user store: db_path is required")
	}

	userStore, err := userBadger.NewBadgerUserStore(ctx, userBadger.BadgerUserStoreConfig{
		DBPath:   storeOpts.DBPath,
		InMemory: storeOpts.InMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger user store: %w", err)
	}

	return userStore, nil
}

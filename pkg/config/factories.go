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

	"filestorm/internal/logger"
	"filestorm/internal/store"
	storeBadger "filestorm/internal/store/badger"
	storeFs "filestorm/internal/store/fs"
	storeMemory "filestorm/internal/store/memory"
	storeS3 "filestorm/internal/store/s3"
)

// CreateStore builds a file store from configuration. The Type field selects
// the implementation; the matching options map is decoded into that store's
// own configuration shape.
func CreateStore(ctx context.Context, cfg *StoreConfig) (store.Store, error) {
	switch cfg.Type {
	case "memory":
		return storeMemory.New(), nil
	case "filesystem":
		return createFilesystemStore(cfg.Filesystem)
	case "badger":
		return createBadgerStore(cfg.Badger)
	case "s3":
		return createS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
}

func createFilesystemStore(options map[string]any) (store.Store, error) {
	type filesystemStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg filesystemStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("decode filesystem store config: %w", err)
	}
	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem store: path is required")
	}

	st, err := storeFs.New(storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("create filesystem store: %w", err)
	}
	return st, nil
}

func createBadgerStore(options map[string]any) (store.Store, error) {
	type badgerStoreConfig struct {
		DBPath string `mapstructure:"db_path"`
	}

	var storeCfg badgerStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("decode badger store config: %w", err)
	}
	if storeCfg.DBPath == "" {
		return nil, fmt.Errorf("badger store: db_path is required")
	}

	st, err := storeBadger.Open(storeCfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return st, nil
}

func createS3Store(ctx context.Context, options map[string]any) (store.Store, error) {
	type s3StoreConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var storeCfg s3StoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("decode s3 store config: %w", err)
	}
	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("s3 store: region is required")
	}

	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(storeCfg.Region),
	}

	// Static credentials when provided, otherwise the default chain.
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				storeCfg.AccessKeyID, storeCfg.SecretAccessKey, "")))
	}

	maxRetries := storeCfg.MaxRetries
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
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if storeCfg.Endpoint != "" {
			// Custom endpoints (MinIO, Localstack) need path-style keys.
			o.BaseEndpoint = aws.String(storeCfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	st, err := storeS3.New(storeS3.Config{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 store: %w", err)
	}

	logger.Info("s3 store initialized: bucket=%s region=%s prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)
	return st, nil
}

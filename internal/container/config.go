// Package container provides dependency injection and lifecycle management
// for the quote revision service.
package container

import (
	"github.com/garyjia/quote-revision/internal/application/service"
	"github.com/garyjia/quote-revision/internal/config"
	"github.com/garyjia/quote-revision/internal/domain/revision"
	"github.com/garyjia/quote-revision/internal/infrastructure/external/lark"
	"github.com/garyjia/quote-revision/internal/infrastructure/persistence/dynamo"
	"github.com/garyjia/quote-revision/pkg/database"
)

// databaseConfig maps the database section onto the SQLite opener
func databaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
}

// dynamoConfig maps the store.dynamodb section onto the DynamoDB client
func dynamoConfig(cfg *config.Config) dynamo.ClientConfig {
	d := cfg.Store.DynamoDB
	return dynamo.ClientConfig{
		Region:          d.Region,
		Endpoint:        d.Endpoint,
		AccessKeyID:     d.AccessKeyID,
		SecretAccessKey: d.SecretAccessKey,
	}
}

// reviewConfig maps the review section onto the review session policy
func reviewConfig(cfg *config.Config) service.ReviewConfig {
	return service.ReviewConfig{
		IdleTimeout: cfg.Review.IdleTimeout,
		AutoConfirm: cfg.Review.AutoConfirm,
		Confidence:  revision.ConfidencePolicy{Threshold: cfg.Review.LowConfidenceThreshold},
	}
}

// larkConfig maps the lark section onto the SDK client
func larkConfig(cfg *config.Config) lark.Config {
	return lark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
		Domain:    cfg.Lark.Domain,
	}
}

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	log "github.com/sirupsen/logrus"
)

// EnsureTables creates the named tables, skipping blank names and tables
// that already exist.
func EnsureTables(ctx context.Context, connStr string, logger *log.Logger, names ...string) error {
	svc, err := newServiceClient(connStr)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		_, err := svc.NewClient(name).CreateTable(ctx, nil)
		switch {
		case err == nil:
			logger.WithField("table", name).Info("table created")
		case isAlreadyExists(err):
			logger.WithField("table", name).Debug("table exists")
		default:
			return fmt.Errorf("create table %s: %w", name, err)
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)
}

package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentNumber builds a document number from a prefix, the current
// timestamp and a random suffix, e.g. SO20240131093045A1B2C3D4. The suffix
// keeps numbers unique when several documents of the same kind are created
// within the same second, e.g. one production task per short order line.
func DocumentNumber(prefix string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return prefix + time.Now().UTC().Format("20060102150405") + suffix
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}

	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}

	return dec, nil
}

// ValidatePositiveQuantity rejects malformed quantities before any state
// is touched.
func ValidatePositiveQuantity(name string, qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%s must be greater than zero", name)
	}
	return nil
}

// StockLock serializes stock-mutating transitions across processes.
// Redis lock is a best-effort optimization; correctness does not depend on
// it (rows are also locked FOR UPDATE inside the DB transaction), so a nil
// lock client is tolerated.
func StockLock(ctx context.Context, locker *redislock.Client, lockKey string, moduleName string, functionName string) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	logger := config.GetLogger()
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock", lockKey, err)
		return nil, errors.New("could not obtain stock lock, try again")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock", lockKey, err)
		return nil, err
	}
	return func() { _ = lock.Release(ctx) }, nil
}

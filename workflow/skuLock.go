package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireReconcileLock serializes the store -> link -> detect pipeline per
// (org, SKU) across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will run the reconcile transaction.
func AcquireReconcileLock(tx *gorm.DB, orgId string, sku string) error {
	lockName := fmt.Sprintf("reconcile:%s:%s", orgId, sku)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire reconcile lock for org_id=%s sku=%s", orgId, sku)
	}
	return nil
}

func ReleaseReconcileLock(tx *gorm.DB, orgId string, sku string) {
	lockName := fmt.Sprintf("reconcile:%s:%s", orgId, sku)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

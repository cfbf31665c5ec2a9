package config

import (
	"context"
	"strings"
	"testing"

	"github.com/cargolense/tradedocs_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"
)

// tenantScopedRow stands in for any model carrying an org_id column.
type tenantScopedRow struct {
	ID    string `gorm:"primaryKey"`
	OrgId string
	Sku   string
}

// globalRow has no org_id column, so the guard must leave it alone.
type globalRow struct {
	ID   string `gorm:"primaryKey"`
	Name string
}

func newGuardedDryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{DryRun: true})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	if err := db.Use(NewTenantGuardPlugin()); err != nil {
		t.Fatalf("install tenant guard: %v", err)
	}
	return db
}

func orgContext(orgId string) context.Context {
	return appctx.Set(context.Background(), appctx.ContextKeyOrgId, orgId)
}

func hasVar(vars []interface{}, want string) bool {
	for _, v := range vars {
		if s, ok := v.(string); ok && s == want {
			return true
		}
	}
	return false
}

func TestTenantGuard_InjectsOrgScope(t *testing.T) {
	db := newGuardedDryRunDB(t)

	var rows []tenantScopedRow
	tx := db.WithContext(orgContext("org-a")).Where("sku = ?", "ABC-100").Find(&rows)
	if tx.Error != nil {
		t.Fatalf("dry-run query: %v", tx.Error)
	}

	sql := tx.Statement.SQL.String()
	if !strings.Contains(sql, "org_id") {
		t.Fatalf("expected an org_id predicate, got: %s", sql)
	}
	if !hasVar(tx.Statement.Vars, "org-a") {
		t.Fatalf("expected the context org id bound as a var, got: %v", tx.Statement.Vars)
	}
}

func TestTenantGuard_ScopesUpdatesAndDeletes(t *testing.T) {
	db := newGuardedDryRunDB(t)
	ctx := orgContext("org-a")

	tx := db.WithContext(ctx).Model(&tenantScopedRow{}).
		Where("sku = ?", "ABC-100").
		Update("sku", "ABC-200")
	if sql := tx.Statement.SQL.String(); !strings.Contains(sql, "org_id") {
		t.Fatalf("update must be tenant-scoped, got: %s", sql)
	}

	tx = db.WithContext(ctx).Where("sku = ?", "ABC-100").Delete(&tenantScopedRow{})
	if sql := tx.Statement.SQL.String(); !strings.Contains(sql, "org_id") {
		t.Fatalf("delete must be tenant-scoped, got: %s", sql)
	}
}

func TestTenantGuard_DoesNotDuplicateExplicitFilter(t *testing.T) {
	db := newGuardedDryRunDB(t)

	var rows []tenantScopedRow
	tx := db.WithContext(orgContext("org-a")).
		Where("org_id = ?", "org-a").
		Where("sku = ?", "ABC-100").
		Find(&rows)

	sql := tx.Statement.SQL.String()
	if got := strings.Count(sql, "org_id"); got != 1 {
		t.Fatalf("expected exactly one org_id predicate, got %d in: %s", got, sql)
	}
}

func TestTenantGuard_BypassFlags(t *testing.T) {
	db := newGuardedDryRunDB(t)

	var rows []tenantScopedRow

	// Internal ops may disable scoping explicitly.
	ctx := appctx.Set(orgContext("org-a"), appctx.ContextKeySkipTenantScope, true)
	tx := db.WithContext(ctx).Where("sku = ?", "ABC-100").Find(&rows)
	if sql := tx.Statement.SQL.String(); strings.Contains(sql, "org_id") {
		t.Fatalf("skip flag must disable scoping, got: %s", sql)
	}

	// Platform admins see across tenants.
	ctx = appctx.Set(orgContext("org-a"), appctx.ContextKeyIsAdmin, true)
	tx = db.WithContext(ctx).Where("sku = ?", "ABC-100").Find(&rows)
	if sql := tx.Statement.SQL.String(); strings.Contains(sql, "org_id") {
		t.Fatalf("admin flag must disable scoping, got: %s", sql)
	}
}

func TestTenantGuard_SkipsModelsWithoutOrgColumn(t *testing.T) {
	db := newGuardedDryRunDB(t)

	var rows []globalRow
	tx := db.WithContext(orgContext("org-a")).Where("name = ?", "x").Find(&rows)
	if sql := tx.Statement.SQL.String(); strings.Contains(sql, "org_id") {
		t.Fatalf("model without org_id must stay unscoped, got: %s", sql)
	}
}

func TestTenantGuard_NoOrgInContextLeavesQueryUntouched(t *testing.T) {
	db := newGuardedDryRunDB(t)

	var rows []tenantScopedRow
	tx := db.WithContext(context.Background()).Where("sku = ?", "ABC-100").Find(&rows)
	if sql := tx.Statement.SQL.String(); strings.Contains(sql, "org_id") {
		t.Fatalf("without an org claim the guard must not scope, got: %s", sql)
	}
}

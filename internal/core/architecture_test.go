package core

import (
	"strings"
	"testing"

	"golang.org/x/tools/go/packages" //nolint:depguard // test-time package loading for layering checks
)

// Layering: pkg/domain stays free of internal packages, and the allocation
// planner depends on pkg/domain only among module packages.
func TestModuleLayering(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, "reservecore/pkg/domain", "reservecore/internal/allocation")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			t.Fatalf("package %s load errors: %v", pkg.PkgPath, pkg.Errors)
		}
		for imp := range pkg.Imports {
			if !strings.HasPrefix(imp, "reservecore/") {
				continue
			}
			switch pkg.PkgPath {
			case "reservecore/pkg/domain":
				t.Fatalf("pkg/domain must not import module packages, found %s", imp)
			case "reservecore/internal/allocation":
				if imp != "reservecore/pkg/domain" {
					t.Fatalf("allocation planner may only import pkg/domain, found %s", imp)
				}
			}
		}
	}
}

// The blob backends under internal/infra/blob are reached only through the
// internal/blob contract package.
func TestBlobBackendsStayBehindContract(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, "reservecore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	for _, pkg := range pkgs {
		if pkg.PkgPath == "reservecore/internal/blob" ||
			strings.HasPrefix(pkg.PkgPath, "reservecore/internal/infra/blob") {
			continue
		}
		for imp := range pkg.Imports {
			if strings.HasPrefix(imp, "reservecore/internal/infra/blob/") {
				t.Fatalf("%s imports blob backend %s directly", pkg.PkgPath, imp)
			}
		}
	}
}

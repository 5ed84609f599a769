package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bitbucket.org/movilfix/taller_backend/utils"
	"bitbucket.org/movilfix/taller_backend/workflow"
)

func TestNextFolioFormatAndContiguity(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	ctx := context.Background()
	logger := quietLogger()
	period := time.Now().Format("200601")

	for i := 1; i <= 3; i++ {
		folio, err := workflow.NextFolio(ctx, db, logger, orgId, "VTA", branch.ID)
		if err != nil {
			t.Fatalf("NextFolio #%d: %v", i, err)
		}
		want := fmt.Sprintf("VTA-MTY-%s-%04d", period, i)
		if folio != want {
			t.Fatalf("folio #%d = %q, want %q", i, folio, want)
		}
	}
}

func TestNextFolioIndependentSequences(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	other := seedSecondBranch(t, db, orgId)
	ctx := context.Background()
	logger := quietLogger()
	period := time.Now().Format("200601")

	if _, err := workflow.NextFolio(ctx, db, logger, orgId, "VTA", branch.ID); err != nil {
		t.Fatalf("NextFolio VTA: %v", err)
	}
	if _, err := workflow.NextFolio(ctx, db, logger, orgId, "VTA", branch.ID); err != nil {
		t.Fatalf("NextFolio VTA: %v", err)
	}

	// A different prefix on the same branch starts at 0001.
	folio, err := workflow.NextFolio(ctx, db, logger, orgId, "LAB", branch.ID)
	if err != nil {
		t.Fatalf("NextFolio LAB: %v", err)
	}
	if want := fmt.Sprintf("LAB-MTY-%s-0001", period); folio != want {
		t.Fatalf("LAB folio = %q, want %q", folio, want)
	}

	// Same prefix on a different branch starts at 0001 too.
	folio, err = workflow.NextFolio(ctx, db, logger, orgId, "VTA", other.ID)
	if err != nil {
		t.Fatalf("NextFolio other branch: %v", err)
	}
	if want := fmt.Sprintf("VTA-GDL-%s-0001", period); folio != want {
		t.Fatalf("other-branch folio = %q, want %q", folio, want)
	}
}

func TestNextFolioConcurrent(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	logger := quietLogger()

	const workers = 5
	var wg sync.WaitGroup
	folios := make([]string, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			folios[i], errs[i] = workflow.NextFolio(context.Background(), db, logger, orgId, "ING", branch.ID)
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if seen[folios[i]] {
			t.Fatalf("duplicate folio issued: %s", folios[i])
		}
		seen[folios[i]] = true
	}

	period := time.Now().Format("200601")
	for i := 1; i <= workers; i++ {
		want := fmt.Sprintf("ING-MTY-%s-%04d", period, i)
		if !seen[want] {
			t.Fatalf("missing folio %s in issued set %v", want, folios)
		}
	}
}

func TestPreviewFolioDoesNotReserve(t *testing.T) {
	db := openTestDB(t)
	orgId, branch := seedOrgBranch(t, db)
	ctx := context.Background()
	logger := quietLogger()
	period := time.Now().Format("200601")

	for i := 0; i < 2; i++ {
		preview, err := workflow.PreviewFolio(ctx, db, orgId, "VTA", branch.ID)
		if err != nil {
			t.Fatalf("PreviewFolio: %v", err)
		}
		if want := fmt.Sprintf("VTA-MTY-%s-0001", period); preview != want {
			t.Fatalf("preview = %q, want %q", preview, want)
		}
	}

	issued, err := workflow.NextFolio(ctx, db, logger, orgId, "VTA", branch.ID)
	if err != nil {
		t.Fatalf("NextFolio: %v", err)
	}
	if want := fmt.Sprintf("VTA-MTY-%s-0001", period); issued != want {
		t.Fatalf("issued = %q, want %q", issued, want)
	}

	preview, err := workflow.PreviewFolio(ctx, db, orgId, "VTA", branch.ID)
	if err != nil {
		t.Fatalf("PreviewFolio after issue: %v", err)
	}
	if want := fmt.Sprintf("VTA-MTY-%s-0002", period); preview != want {
		t.Fatalf("preview after issue = %q, want %q", preview, want)
	}
}

func TestNextFolioUnknownBranch(t *testing.T) {
	db := openTestDB(t)
	orgId, _ := seedOrgBranch(t, db)

	_, err := workflow.NextFolio(context.Background(), db, quietLogger(), orgId, "VTA", 9999)
	if !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ywcorp/corploango/internal/database"
	"github.com/ywcorp/corploango/internal/models"
)

var (
	testDB    *database.DB
	testDBErr error
)

func TestMain(m *testing.M) {
	os.Exit(runWithDB(m))
}

// runWithDB boots an embedded Postgres for the state-machine tests. When the
// instance cannot start (no cached binaries and no network), the DB-backed
// tests skip and the pure-logic tests still run.
func runWithDB(m *testing.M) int {
	dir, err := os.MkdirTemp("", "workflow-pg-")
	if err != nil {
		testDBErr = err
		return m.Run()
	}
	defer os.RemoveAll(dir)

	port, err := freePort()
	if err != nil {
		testDBErr = err
		return m.Run()
	}

	epg := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		DataPath(filepath.Join(dir, "data")).
		RuntimePath(filepath.Join(dir, "runtime")).
		Port(uint32(port)).
		Username("postgres").
		Password("postgres").
		Database("corploan_test").
		Logger(io.Discard))

	if err := epg.Start(); err != nil {
		testDBErr = fmt.Errorf("embedded postgres unavailable: %w", err)
		return m.Run()
	}
	defer epg.Stop()

	dsn := fmt.Sprintf(
		"host=localhost port=%d user=postgres password=postgres dbname=corploan_test sslmode=disable",
		port,
	)
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		testDBErr = err
		return m.Run()
	}

	db := &database.DB{DB: gdb}
	if err := db.AutoMigrate(
		&models.LoanApplication{},
		&models.WorkflowStage{},
		&models.UploadedDocument{},
		&models.UserAction{},
	); err != nil {
		testDBErr = err
		return m.Run()
	}

	testDB = db
	return m.Run()
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func testService(t *testing.T) *Service {
	t.Helper()
	if testDBErr != nil {
		t.Skipf("%v", testDBErr)
	}
	return New(testDB)
}

func createTestLoan(t *testing.T, s *Service) *models.LoanApplication {
	t.Helper()
	in := validInput()
	loan, err := s.CreateLoan(context.Background(), &in, Actor{UserID: "tester", Role: "rm"})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	return loan
}

func loanStages(t *testing.T, s *Service, loanID string) []models.WorkflowStage {
	t.Helper()
	var stages []models.WorkflowStage
	err := s.db.Where("loan_id = ?", loanID).Order("stage_id").Find(&stages).Error
	if err != nil {
		t.Fatalf("loading stages: %v", err)
	}
	return stages
}

func loanRow(t *testing.T, s *Service, loanID string) models.LoanApplication {
	t.Helper()
	var loan models.LoanApplication
	if err := s.db.Where("loan_id = ?", loanID).First(&loan).Error; err != nil {
		t.Fatalf("loading loan: %v", err)
	}
	return loan
}

func TestCreateLoanInitializesEightPendingStages(t *testing.T) {
	s := testService(t)
	loan := createTestLoan(t, s)

	if !loanIDRe.MatchString(loan.LoanID) {
		t.Errorf("loan id %q does not match CL-YYYYMMDD-NNNN", loan.LoanID)
	}
	if loan.CurrentStage != 1 {
		t.Errorf("current stage = %d, want 1", loan.CurrentStage)
	}
	if loan.WorkflowStatus != models.StatusPending {
		t.Errorf("workflow status = %q, want pending", loan.WorkflowStatus)
	}

	stages := loanStages(t, s, loan.LoanID)
	if len(stages) != TotalStages {
		t.Fatalf("expected %d stage rows, got %d", TotalStages, len(stages))
	}
	catalog := StageCatalog()
	for i, st := range stages {
		if st.StageID != i+1 {
			t.Errorf("stage at index %d has id %d", i, st.StageID)
		}
		if st.Status != StagePending {
			t.Errorf("stage %d status = %q, want pending", st.StageID, st.Status)
		}
		if st.Progress != 0 {
			t.Errorf("stage %d progress = %d, want 0", st.StageID, st.Progress)
		}
		if st.StageName != catalog[i].Name {
			t.Errorf("stage %d name = %q, want %q", st.StageID, st.StageName, catalog[i].Name)
		}
	}
}

func TestAdvanceStageCompletesCurrentAndStartsNext(t *testing.T) {
	s := testService(t)
	loan := createTestLoan(t, s)
	ctx := context.Background()

	result, err := s.AdvanceStage(ctx, loan.LoanID, nil, Actor{})
	if err != nil {
		t.Fatalf("AdvanceStage: %v", err)
	}
	if result.PreviousStage != 1 || result.CurrentStage != 2 {
		t.Errorf("advance reported %d → %d, want 1 → 2", result.PreviousStage, result.CurrentStage)
	}

	stages := loanStages(t, s, loan.LoanID)
	if stages[0].Status != StageCompleted || stages[0].Progress != 100 || stages[0].CompletedAt == nil {
		t.Errorf("stage 1 after advance = %q/%d (completedAt %v)",
			stages[0].Status, stages[0].Progress, stages[0].CompletedAt)
	}
	if stages[1].Status != StageProcessing || stages[1].Progress != 0 || stages[1].StartedAt == nil {
		t.Errorf("stage 2 after advance = %q/%d (startedAt %v)",
			stages[1].Status, stages[1].Progress, stages[1].StartedAt)
	}

	row := loanRow(t, s, loan.LoanID)
	if row.CurrentStage != 2 {
		t.Errorf("loan current stage = %d, want 2", row.CurrentStage)
	}
	if row.WorkflowStatus != models.StatusProcessing {
		t.Errorf("loan status = %q, want processing", row.WorkflowStatus)
	}
}

func TestAdvanceStageAtFinalStageFailsWithoutMutation(t *testing.T) {
	s := testService(t)
	loan := createTestLoan(t, s)
	ctx := context.Background()

	for i := 0; i < TotalStages-1; i++ {
		if _, err := s.AdvanceStage(ctx, loan.LoanID, nil, Actor{}); err != nil {
			t.Fatalf("advance %d: %v", i+1, err)
		}
	}
	before := loanStages(t, s, loan.LoanID)
	beforeLoan := loanRow(t, s, loan.LoanID)
	if beforeLoan.CurrentStage != TotalStages {
		t.Fatalf("setup: current stage = %d, want %d", beforeLoan.CurrentStage, TotalStages)
	}

	_, err := s.AdvanceStage(ctx, loan.LoanID, nil, Actor{})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("advance at final stage returned %v, want ErrInvalidState", err)
	}

	after := loanStages(t, s, loan.LoanID)
	afterLoan := loanRow(t, s, loan.LoanID)
	if afterLoan.CurrentStage != TotalStages || afterLoan.WorkflowStatus != beforeLoan.WorkflowStatus {
		t.Errorf("loan mutated by failed advance: stage %d status %q",
			afterLoan.CurrentStage, afterLoan.WorkflowStatus)
	}
	for i := range before {
		if after[i].Status != before[i].Status || after[i].Progress != before[i].Progress {
			t.Errorf("stage %d mutated by failed advance: %q/%d → %q/%d",
				before[i].StageID, before[i].Status, before[i].Progress,
				after[i].Status, after[i].Progress)
		}
	}
}

func TestAdvanceStageUnknownLoan(t *testing.T) {
	s := testService(t)

	_, err := s.AdvanceStage(context.Background(), "CL-19700101-0000", nil, Actor{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("advance on unknown loan returned %v, want ErrNotFound", err)
	}
}

func TestUpdateStageCompletingFinalStageCompletesLoan(t *testing.T) {
	s := testService(t)
	loan := createTestLoan(t, s)
	ctx := context.Background()

	status := StageCompleted
	progress := 100
	err := s.UpdateStage(ctx, loan.LoanID, &UpdateStageInput{
		StageID:  TotalStages,
		Status:   &status,
		Progress: &progress,
	}, Actor{})
	if err != nil {
		t.Fatalf("UpdateStage: %v", err)
	}

	row := loanRow(t, s, loan.LoanID)
	if row.CurrentStage != TotalStages {
		t.Errorf("current stage = %d, want %d", row.CurrentStage, TotalStages)
	}
	if row.WorkflowStatus != models.StatusCompleted {
		t.Errorf("workflow status = %q, want completed", row.WorkflowStatus)
	}
}

func TestDeleteUnknownLoanLeavesNoTrace(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	count := func(model interface{}) int64 {
		var n int64
		if err := s.db.Model(model).Count(&n).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		return n
	}
	loansBefore := count(&models.LoanApplication{})
	stagesBefore := count(&models.WorkflowStage{})
	docsBefore := count(&models.UploadedDocument{})
	actionsBefore := count(&models.UserAction{})

	_, err := s.Delete(ctx, "CL-19700101-0000", Actor{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete on unknown loan returned %v, want ErrNotFound", err)
	}

	if n := count(&models.LoanApplication{}); n != loansBefore {
		t.Errorf("loan count changed: %d → %d", loansBefore, n)
	}
	if n := count(&models.WorkflowStage{}); n != stagesBefore {
		t.Errorf("stage count changed: %d → %d", stagesBefore, n)
	}
	if n := count(&models.UploadedDocument{}); n != docsBefore {
		t.Errorf("document count changed: %d → %d", docsBefore, n)
	}
	if n := count(&models.UserAction{}); n != actionsBefore {
		t.Errorf("audit count changed: %d → %d", actionsBefore, n)
	}
}

func TestDeleteRemovesOwnedRowsAndReturnsObjectKeys(t *testing.T) {
	s := testService(t)
	loan := createTestLoan(t, s)
	ctx := context.Background()

	err := s.AddDocument(ctx, &models.UploadedDocument{
		LoanID:           loan.LoanID,
		OriginalFilename: "statement.pdf",
		S3Key:            "loans/" + loan.LoanID + "/other/x.pdf",
	})
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	// A row without a stored object contributes no cleanup key
	err = s.AddDocument(ctx, &models.UploadedDocument{
		LoanID:           loan.LoanID,
		OriginalFilename: "pending.pdf",
	})
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	keys, err := s.Delete(ctx, loan.LoanID, Actor{})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(keys) != 1 || keys[0] != "loans/"+loan.LoanID+"/other/x.pdf" {
		t.Errorf("returned keys = %v", keys)
	}

	var n int64
	s.db.Model(&models.LoanApplication{}).Where("loan_id = ?", loan.LoanID).Count(&n)
	if n != 0 {
		t.Error("loan row survived delete")
	}
	s.db.Model(&models.WorkflowStage{}).Where("loan_id = ?", loan.LoanID).Count(&n)
	if n != 0 {
		t.Error("stage rows survived delete")
	}
	s.db.Model(&models.UploadedDocument{}).Where("loan_id = ?", loan.LoanID).Count(&n)
	if n != 0 {
		t.Error("document rows survived delete")
	}

	if _, err := s.Get(ctx, loan.LoanID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete returned %v, want ErrNotFound", err)
	}
}

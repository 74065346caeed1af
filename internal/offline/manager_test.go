package offline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ywcorp/corploango/internal/workflow"
)

func f64(v float64) *float64 { return &v }

func testInput() *workflow.CreateLoanInput {
	return &workflow.CreateLoanInput{
		CompanyName:      "Acme Co",
		RequestedAmount:  f64(1000000000),
		LoanPurpose:      "facility",
		ApplicantName:    "Kim",
		ApplicantContact: "010-1234-5678",
	}
}

// offlineManager returns a manager whose client can never reach a server.
func offlineManager(t *testing.T) *Manager {
	t.Helper()
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache.json"))
	if err != nil {
		t.Fatal(err)
	}
	// Port 1 refuses connections immediately
	return NewManager(NewClient("http://127.0.0.1:1", ""), cache)
}

func TestCreateWorkflowFallsBackOffline(t *testing.T) {
	mgr := offlineManager(t)

	wf, err := mgr.CreateWorkflow(context.Background(), testInput())
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	if !wf.Local {
		t.Error("workflow not marked local")
	}
	if wf.CurrentStage != 1 || wf.WorkflowStatus != workflow.StagePending {
		t.Errorf("initial position = stage %d / %s", wf.CurrentStage, wf.WorkflowStatus)
	}
	if len(wf.Stages) != 8 {
		t.Fatalf("expected 8 stages, got %d", len(wf.Stages))
	}

	stats := mgr.Stats()
	if stats.QueuedOps != 1 {
		t.Errorf("queued ops = %d, want 1", stats.QueuedOps)
	}
}

func TestCreateWorkflowRejectsInvalidInputWithoutQueueing(t *testing.T) {
	mgr := offlineManager(t)

	in := testInput()
	in.CompanyName = ""
	if _, err := mgr.CreateWorkflow(context.Background(), in); err == nil {
		t.Fatal("invalid input accepted")
	}
	if got := mgr.Stats().QueuedOps; got != 0 {
		t.Errorf("queued ops = %d after rejected create", got)
	}
}

func TestOfflineLifecycleToCompletion(t *testing.T) {
	mgr := offlineManager(t)

	wf, err := mgr.CreateWorkflow(context.Background(), testInput())
	if err != nil {
		t.Fatal(err)
	}
	loanID := wf.LoanID

	if err := mgr.StartStage(loanID, 1); err != nil {
		t.Fatalf("StartStage: %v", err)
	}

	for stage := 1; stage <= 8; stage++ {
		if err := mgr.CompleteStage(loanID, stage); err != nil {
			t.Fatalf("CompleteStage(%d): %v", stage, err)
		}
	}

	final := mgr.Workflows()[0]
	if final.WorkflowStatus != workflow.StageCompleted {
		t.Errorf("final status = %q, want completed", final.WorkflowStatus)
	}
	if final.CurrentStage != 8 {
		t.Errorf("final stage = %d, want 8", final.CurrentStage)
	}
	for _, st := range final.Stages {
		if st.Status != workflow.StageCompleted {
			t.Errorf("stage %d status = %q", st.StageID, st.Status)
		}
		for _, task := range st.Tasks {
			if !task.Completed {
				t.Errorf("stage %d task %q left incomplete", st.StageID, task.Name)
			}
		}
	}

	progress, err := mgr.OverallProgress(loanID)
	if err != nil {
		t.Fatal(err)
	}
	if progress != 100 {
		t.Errorf("overall progress = %d, want 100", progress)
	}
}

func TestOverallProgressDisplayFormula(t *testing.T) {
	mgr := offlineManager(t)

	wf, err := mgr.CreateWorkflow(context.Background(), testInput())
	if err != nil {
		t.Fatal(err)
	}
	loanID := wf.LoanID

	// 3 stages completed, stage 4 halfway: round((300+50)/8) = 44,
	// whereas the server aggregate for the same state reports 38
	for stage := 1; stage <= 3; stage++ {
		if err := mgr.CompleteStage(loanID, stage); err != nil {
			t.Fatal(err)
		}
	}
	if err := mgr.UpdateStageProgress(loanID, 4, 50, ""); err != nil {
		t.Fatal(err)
	}

	progress, err := mgr.OverallProgress(loanID)
	if err != nil {
		t.Fatal(err)
	}
	if progress != 44 {
		t.Errorf("display progress = %d, want 44", progress)
	}
	if server := workflow.ServerOverallProgress(3, 8); server != 38 {
		t.Errorf("server progress = %d, want 38", server)
	}
}

func TestUpdateStageProgressClamps(t *testing.T) {
	mgr := offlineManager(t)

	wf, err := mgr.CreateWorkflow(context.Background(), testInput())
	if err != nil {
		t.Fatal(err)
	}

	if err := mgr.UpdateStageProgress(wf.LoanID, 1, 150, ""); err != nil {
		t.Fatal(err)
	}
	if got := mgr.Workflows()[0].Stages[0].Progress; got != 100 {
		t.Errorf("progress = %d, want clamped 100", got)
	}

	if err := mgr.UpdateStageProgress(wf.LoanID, 1, -5, ""); err != nil {
		t.Fatal(err)
	}
	if got := mgr.Workflows()[0].Stages[0].Progress; got != 0 {
		t.Errorf("progress = %d, want clamped 0", got)
	}
}

// syncServer fakes the API for replay tests.
func syncServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var ops []string

	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, data interface{}) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": data})
	}

	mux.HandleFunc("/api/loans", func(w http.ResponseWriter, r *http.Request) {
		ops = append(ops, "create")
		write(w, map[string]interface{}{
			"loanId": "CL-20240615-9999", "companyName": "Acme Co",
			"currentStage": 1, "workflowStatus": "pending",
		})
	})
	mux.HandleFunc("/api/loans/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/workflow/advance"):
			ops = append(ops, "advance")
			write(w, map[string]interface{}{"loanId": "CL-20240615-9999", "previousStage": 1, "currentStage": 2, "status": "processing"})
		case strings.HasSuffix(r.URL.Path, "/stage"):
			ops = append(ops, "update_stage")
			write(w, map[string]interface{}{})
		case strings.HasSuffix(r.URL.Path, "/workflow"):
			write(w, map[string]interface{}{
				"loanId": "CL-20240615-9999", "companyName": "Acme Co",
				"currentStage": 2, "workflowStatus": "processing",
				"overallProgress": 13, "completedStages": 1, "totalStages": 8,
				"stages": []interface{}{},
			})
		default:
			http.NotFound(w, r)
		}
	})

	return httptest.NewServer(mux), &ops
}

func TestSyncReplaysQueueAndReKeysLocalWorkflow(t *testing.T) {
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache.json"))
	if err != nil {
		t.Fatal(err)
	}

	// Queue changes offline first
	mgr := NewManager(NewClient("http://127.0.0.1:1", ""), cache)
	wf, err := mgr.CreateWorkflow(context.Background(), testInput())
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.CompleteStage(wf.LoanID, 1); err != nil {
		t.Fatal(err)
	}
	localID := wf.LoanID

	// Bring the server up and sync
	server, ops := syncServer(t)
	defer server.Close()

	mgr = NewManager(NewClient(server.URL, ""), cache)
	if err := mgr.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if got := mgr.Stats().QueuedOps; got != 0 {
		t.Errorf("queued ops after sync = %d", got)
	}
	if len(*ops) != 2 || (*ops)[0] != "create" || (*ops)[1] != "advance" {
		t.Errorf("replayed ops = %v", *ops)
	}

	if cache.Workflow(localID) != nil {
		t.Error("provisional offline workflow still cached")
	}
	synced := cache.Workflow("CL-20240615-9999")
	if synced == nil {
		t.Fatal("server-assigned workflow missing from cache")
	}
	if synced.Local {
		t.Error("synced workflow still marked local")
	}
	if synced.CurrentStage != 2 {
		t.Errorf("synced stage = %d, want 2", synced.CurrentStage)
	}
}

func TestSyncKeepsQueueWhenServerUnreachable(t *testing.T) {
	mgr := offlineManager(t)

	if _, err := mgr.CreateWorkflow(context.Background(), testInput()); err != nil {
		t.Fatal(err)
	}

	if err := mgr.Sync(context.Background()); err == nil {
		t.Fatal("sync against an unreachable server should fail")
	}
	if got := mgr.Stats().QueuedOps; got != 1 {
		t.Errorf("queued ops = %d, want 1 retained", got)
	}
}

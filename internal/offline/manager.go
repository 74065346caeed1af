package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ywcorp/corploango/internal/workflow"
)

// Manager drives workflows through the API when the server is reachable and
// against the local cache when it is not. Offline changes queue as pending
// mutations and replay on Sync; reconciliation is last-write-wins with the
// server as the authority for rejected mutations.
type Manager struct {
	client *Client
	cache  *Cache

	mu sync.Mutex
}

// NewManager wires a Manager from its injected parts.
func NewManager(client *Client, cache *Cache) *Manager {
	return &Manager{client: client, cache: cache}
}

// offline reports whether err looks like a transport failure rather than a
// server-side rejection.
func offline(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr) ||
		errors.Is(err, context.DeadlineExceeded)
}

// newCachedWorkflow builds a fresh 8-stage workflow from the stage catalog.
func newCachedWorkflow(loanID, companyName string, local bool) *CachedWorkflow {
	wf := &CachedWorkflow{
		LoanID:         loanID,
		CompanyName:    companyName,
		CurrentStage:   1,
		WorkflowStatus: workflow.StagePending,
		CreatedAt:      time.Now().UTC(),
		Local:          local,
	}
	for _, def := range workflow.StageCatalog() {
		tasks := make([]TaskState, 0, len(def.Tasks))
		for _, t := range def.Tasks {
			tasks = append(tasks, TaskState{Name: t})
		}
		wf.Stages = append(wf.Stages, CachedStage{
			StageID: def.ID,
			Name:    def.Name,
			Title:   def.Title,
			Status:  workflow.StagePending,
			Tasks:   tasks,
		})
	}
	return wf
}

// createPayload carries an offline create through the sync queue, keeping
// the provisional local id so the workflow can be re-keyed after the server
// assigns the real one.
type createPayload struct {
	LocalLoanID string                   `json:"localLoanId"`
	Input       workflow.CreateLoanInput `json:"input"`
}

// CreateWorkflow registers a loan on the server, falling back to an
// offline-local workflow when the server is unreachable.
func (m *Manager) CreateWorkflow(ctx context.Context, in *workflow.CreateLoanInput) (*CachedWorkflow, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loan, err := m.client.CreateLoan(ctx, in)
	if err == nil {
		wf := newCachedWorkflow(loan.LoanID, loan.CompanyName, false)
		wf.WorkflowStatus = loan.WorkflowStatus
		return wf, m.cache.PutWorkflow(wf)
	}
	if !offline(err) {
		return nil, err
	}

	// Server unreachable: keep the workflow locally and queue the create
	log.Printf("⚠️ Server unreachable, creating workflow offline: %v", err)

	wf := newCachedWorkflow(workflow.GenerateLoanID(time.Now()), in.CompanyName, true)
	if err := m.cache.PutWorkflow(wf); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(createPayload{LocalLoanID: wf.LoanID, Input: *in})
	if err != nil {
		return nil, err
	}
	if err := m.enqueue("create", wf.LoanID, payload); err != nil {
		return nil, err
	}
	return wf, nil
}

func (m *Manager) enqueue(op, loanID string, payload json.RawMessage) error {
	return m.cache.Enqueue(PendingMutation{
		ID:       uuid.New().String(),
		Op:       op,
		LoanID:   loanID,
		Payload:  payload,
		Clock:    m.cache.Tick(),
		QueuedAt: time.Now().UTC(),
	})
}

func (m *Manager) workflowLocked(loanID string) (*CachedWorkflow, error) {
	wf := m.cache.Workflow(loanID)
	if wf == nil {
		return nil, workflow.ErrNotFound
	}
	return wf, nil
}

func stageRef(wf *CachedWorkflow, stageID int) (*CachedStage, error) {
	if stageID < 1 || stageID > len(wf.Stages) {
		return nil, fmt.Errorf("%w: stage %d does not exist", workflow.ErrInvalidState, stageID)
	}
	return &wf.Stages[stageID-1], nil
}

// StartStage moves a cached stage into processing and queues the change.
func (m *Manager) StartStage(loanID string, stageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, err := m.workflowLocked(loanID)
	if err != nil {
		return err
	}
	stage, err := stageRef(wf, stageID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	stage.Status = workflow.StageProcessing
	stage.Progress = 0
	stage.StartedAt = &now
	wf.CurrentStage = stageID
	wf.WorkflowStatus = workflow.StageProcessing
	if err := m.cache.PutWorkflow(wf); err != nil {
		return err
	}

	status := workflow.StageProcessing
	progress := 0
	payload, _ := json.Marshal(workflow.UpdateStageInput{StageID: stageID, Status: &status, Progress: &progress})
	return m.enqueue("update_stage", loanID, payload)
}

// CompleteStage finishes a stage, marking every task complete, and advances
// to the next stage unless the workflow just finished stage 8.
func (m *Manager) CompleteStage(loanID string, stageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, err := m.workflowLocked(loanID)
	if err != nil {
		return err
	}
	stage, err := stageRef(wf, stageID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	stage.Status = workflow.StageCompleted
	stage.Progress = 100
	stage.CompletedAt = &now
	for i := range stage.Tasks {
		stage.Tasks[i].Completed = true
	}

	if stageID < workflow.TotalStages {
		next := &wf.Stages[stageID]
		next.Status = workflow.StageProcessing
		next.Progress = 0
		next.StartedAt = &now
		wf.CurrentStage = stageID + 1
		wf.WorkflowStatus = workflow.StageProcessing
	} else {
		wf.CurrentStage = workflow.TotalStages
		wf.WorkflowStatus = workflow.StageCompleted
	}
	if err := m.cache.PutWorkflow(wf); err != nil {
		return err
	}

	if stageID < workflow.TotalStages {
		return m.enqueue("advance", loanID, nil)
	}
	status := workflow.StageCompleted
	progress := 100
	payload, _ := json.Marshal(workflow.UpdateStageInput{StageID: stageID, Status: &status, Progress: &progress})
	return m.enqueue("update_stage", loanID, payload)
}

// UpdateStageProgress sets a stage's progress (clamped to 0..100) and
// optionally ticks off one named task.
func (m *Manager) UpdateStageProgress(loanID string, stageID, progress int, completedTask string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, err := m.workflowLocked(loanID)
	if err != nil {
		return err
	}
	stage, err := stageRef(wf, stageID)
	if err != nil {
		return err
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	stage.Progress = progress
	if completedTask != "" {
		for i := range stage.Tasks {
			if stage.Tasks[i].Name == completedTask {
				stage.Tasks[i].Completed = true
			}
		}
	}
	if err := m.cache.PutWorkflow(wf); err != nil {
		return err
	}

	payload, _ := json.Marshal(workflow.UpdateStageInput{StageID: stageID, Progress: &progress})
	return m.enqueue("update_stage", loanID, payload)
}

// OverallProgress is the display formula: each completed stage counts 100,
// the current stage contributes its partial progress, all divided by 8.
// This intentionally reports a higher number than the server aggregate,
// which ignores partial progress.
func (m *Manager) OverallProgress(loanID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, err := m.workflowLocked(loanID)
	if err != nil {
		return 0, err
	}

	sum := 0
	for _, st := range wf.Stages {
		if st.Status == workflow.StageCompleted {
			sum += 100
		} else if st.StageID == wf.CurrentStage {
			sum += st.Progress
		}
	}
	return int(math.Round(float64(sum) / float64(workflow.TotalStages))), nil
}

// CacheStats summarizes the local cache.
type CacheStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	QueuedOps  int `json:"queuedOps"`
}

// Stats counts the cached workflows by status.
func (m *Manager) Stats() CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := CacheStats{QueuedOps: len(m.cache.Pending())}
	for _, wf := range m.cache.Workflows() {
		stats.Total++
		switch wf.WorkflowStatus {
		case workflow.StagePending:
			stats.Pending++
		case workflow.StageProcessing:
			stats.Processing++
		case workflow.StageCompleted:
			stats.Completed++
		case workflow.StageFailed:
			stats.Failed++
		}
	}
	return stats
}

// Workflows lists the cached workflows.
func (m *Manager) Workflows() []*CachedWorkflow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Workflows()
}

// Sync replays the pending queue against the server in logical-clock order.
// Transport failures stop the replay and keep the remainder queued; server
// rejections drop the mutation, since the server's state wins once it is
// reachable again. Loans touched by the replay are refreshed from the
// server's authoritative view.
func (m *Manager) Sync(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acked := map[string]bool{}
	// Maps provisional offline loan ids onto server-assigned ones
	remapped := map[string]string{}
	touched := map[string]bool{}

	for _, mut := range m.cache.Pending() {
		loanID := mut.LoanID
		if server, ok := remapped[loanID]; ok {
			loanID = server
		}

		var err error
		switch mut.Op {
		case "create":
			var payload createPayload
			if err = json.Unmarshal(mut.Payload, &payload); err == nil {
				var loan *LoanRecord
				loan, err = m.client.CreateLoan(ctx, &payload.Input)
				if err == nil {
					remapped[payload.LocalLoanID] = loan.LoanID
					if lerr := m.cache.RemoveWorkflow(payload.LocalLoanID); lerr != nil {
						log.Printf("⚠️ Failed to drop offline workflow %s: %v", payload.LocalLoanID, lerr)
					}
					touched[loan.LoanID] = true
				}
			}
		case "advance":
			_, err = m.client.AdvanceWorkflow(ctx, loanID, nil)
			touched[loanID] = true
		case "update_stage":
			var input workflow.UpdateStageInput
			if err = json.Unmarshal(mut.Payload, &input); err == nil {
				err = m.client.UpdateStage(ctx, loanID, &input)
				touched[loanID] = true
			}
		default:
			log.Printf("⚠️ Dropping unknown queued op %q", mut.Op)
		}

		if err != nil {
			if offline(err) {
				// Still unreachable, keep everything from here on queued
				if aerr := m.cache.Ack(acked); aerr != nil {
					return aerr
				}
				return fmt.Errorf("sync interrupted, server unreachable: %w", err)
			}
			log.Printf("⚠️ Server rejected queued %s for %s, dropping: %v", mut.Op, loanID, err)
		}
		acked[mut.ID] = true
	}

	if err := m.cache.Ack(acked); err != nil {
		return err
	}

	for loanID := range touched {
		if err := m.refresh(ctx, loanID); err != nil {
			log.Printf("⚠️ Failed to refresh %s after sync: %v", loanID, err)
		}
	}
	return nil
}

// refresh overwrites the cached workflow with the server's view.
func (m *Manager) refresh(ctx context.Context, loanID string) error {
	status, err := m.client.WorkflowStatus(ctx, loanID)
	if err != nil {
		return err
	}

	wf := newCachedWorkflow(status.LoanID, status.CompanyName, false)
	wf.CurrentStage = status.CurrentStage
	wf.WorkflowStatus = status.WorkflowStatus
	for i, sv := range status.Stages {
		if i >= len(wf.Stages) {
			break
		}
		wf.Stages[i].Status = sv.Status
		wf.Stages[i].Progress = sv.Progress
		wf.Stages[i].StartedAt = sv.StartedAt
		wf.Stages[i].CompletedAt = sv.CompletedAt
		if sv.Status == workflow.StageCompleted {
			for t := range wf.Stages[i].Tasks {
				wf.Stages[i].Tasks[t].Completed = true
			}
		}
	}
	return m.cache.PutWorkflow(wf)
}

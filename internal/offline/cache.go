package offline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TaskState tracks one checklist item within a cached stage.
type TaskState struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// CachedStage mirrors one workflow stage in the local cache.
type CachedStage struct {
	StageID     int         `json:"stageId"`
	Name        string      `json:"name"`
	Title       string      `json:"title"`
	Status      string      `json:"status"`
	Progress    int         `json:"progress"`
	Tasks       []TaskState `json:"tasks"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// CachedWorkflow mirrors one loan's workflow in the local cache.
type CachedWorkflow struct {
	LoanID         string        `json:"loanId"`
	CompanyName    string        `json:"companyName"`
	CurrentStage   int           `json:"currentStage"`
	WorkflowStatus string        `json:"workflowStatus"`
	Stages         []CachedStage `json:"stages"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	Local          bool          `json:"local"` // created offline, not yet on the server
}

// PendingMutation is one queued local change awaiting sync.
type PendingMutation struct {
	ID       string          `json:"id"`
	Op       string          `json:"op"` // create, advance, update_stage
	LoanID   string          `json:"loanId"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Clock    uint64          `json:"clock"`
	QueuedAt time.Time       `json:"queuedAt"`
}

// cacheState is the on-disk document.
type cacheState struct {
	Workflows   map[string]*CachedWorkflow `json:"workflows"`
	CurrentLoan string                     `json:"currentLoan"`
	Pending     []PendingMutation          `json:"pending"`
	Clock       uint64                     `json:"clock"`
	LastUpdated time.Time                  `json:"lastUpdated"`
}

// Cache is a file-backed JSON store for offline workflow state. Writes go
// through a temp file and rename so a crash never leaves a torn file.
type Cache struct {
	path  string
	state cacheState
}

// OpenCache loads the cache file at path, starting empty if it is absent.
func OpenCache(path string) (*Cache, error) {
	c := &Cache{
		path: path,
		state: cacheState{
			Workflows: make(map[string]*CachedWorkflow),
		},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	if err := json.Unmarshal(data, &c.state); err != nil {
		return nil, fmt.Errorf("corrupt cache file %s: %w", path, err)
	}
	if c.state.Workflows == nil {
		c.state.Workflows = make(map[string]*CachedWorkflow)
	}
	return c, nil
}

// save writes the state atomically.
func (c *Cache) save() error {
	c.state.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(&c.state, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// Workflow returns the cached workflow for loanID, or nil.
func (c *Cache) Workflow(loanID string) *CachedWorkflow {
	return c.state.Workflows[loanID]
}

// Workflows returns every cached workflow.
func (c *Cache) Workflows() []*CachedWorkflow {
	out := make([]*CachedWorkflow, 0, len(c.state.Workflows))
	for _, wf := range c.state.Workflows {
		out = append(out, wf)
	}
	return out
}

// PutWorkflow stores a workflow and marks it current.
func (c *Cache) PutWorkflow(wf *CachedWorkflow) error {
	wf.UpdatedAt = time.Now().UTC()
	c.state.Workflows[wf.LoanID] = wf
	c.state.CurrentLoan = wf.LoanID
	return c.save()
}

// RemoveWorkflow drops a workflow from the cache.
func (c *Cache) RemoveWorkflow(loanID string) error {
	delete(c.state.Workflows, loanID)
	if c.state.CurrentLoan == loanID {
		c.state.CurrentLoan = ""
	}
	return c.save()
}

// CurrentLoan returns the loan id most recently worked on.
func (c *Cache) CurrentLoan() string {
	return c.state.CurrentLoan
}

// Tick advances the logical clock and returns the new value.
func (c *Cache) Tick() uint64 {
	c.state.Clock++
	return c.state.Clock
}

// Enqueue appends a pending mutation.
func (c *Cache) Enqueue(m PendingMutation) error {
	c.state.Pending = append(c.state.Pending, m)
	return c.save()
}

// Pending returns the queued mutations in enqueue order.
func (c *Cache) Pending() []PendingMutation {
	return append([]PendingMutation(nil), c.state.Pending...)
}

// Ack removes acknowledged mutations by id.
func (c *Cache) Ack(ids map[string]bool) error {
	if len(ids) == 0 {
		return nil
	}
	kept := c.state.Pending[:0]
	for _, m := range c.state.Pending {
		if !ids[m.ID] {
			kept = append(kept, m)
		}
	}
	c.state.Pending = kept
	return c.save()
}

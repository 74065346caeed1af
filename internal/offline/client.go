package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ywcorp/corploango/internal/workflow"
)

const requestTimeout = 30 * time.Second

// Client is the typed API client used by the CLI and the offline manager.
// Every response goes through the single {success, data, error} envelope;
// a divergent shape is a contract violation, not something to sniff around.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the given server base URL. token may be
// empty when the server runs without authentication.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// do issues one request and decodes the envelope into out (which may be nil).
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("malformed response from %s %s: %w", method, path, err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("server rejected %s %s: %s", method, path, msg)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("malformed payload from %s %s: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, body, "application/json", out)
}

// Health checks server reachability.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, "", nil)
}

// CreateLoan registers a new application on the server.
func (c *Client) CreateLoan(ctx context.Context, in *workflow.CreateLoanInput) (*LoanRecord, error) {
	var loan LoanRecord
	if err := c.doJSON(ctx, http.MethodPost, "/api/loans", in, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

// LoanRecord is the subset of the server's loan payload the client needs.
type LoanRecord struct {
	LoanID         string `json:"loanId"`
	CompanyName    string `json:"companyName"`
	CurrentStage   int    `json:"currentStage"`
	WorkflowStatus string `json:"workflowStatus"`
}

// GetLoan fetches the full detail of one loan.
func (c *Client) GetLoan(ctx context.Context, loanID string) (*workflow.LoanDetail, error) {
	var detail workflow.LoanDetail
	if err := c.do(ctx, http.MethodGet, "/api/loans/"+loanID, nil, "", &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListLoans fetches one page of loans.
func (c *Client) ListLoans(ctx context.Context, page, limit int) (*workflow.ListResult, error) {
	var result workflow.ListResult
	path := fmt.Sprintf("/api/loans?page=%d&limit=%d", page, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AdvanceWorkflow performs the ordered single-step advance.
func (c *Client) AdvanceWorkflow(ctx context.Context, loanID string, stageData json.RawMessage) (*workflow.AdvanceResult, error) {
	payload := map[string]json.RawMessage{}
	if len(stageData) > 0 {
		payload["stageData"] = stageData
	}
	var result workflow.AdvanceResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/loans/"+loanID+"/workflow/advance", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateStage overwrites one stage directly.
func (c *Client) UpdateStage(ctx context.Context, loanID string, in *workflow.UpdateStageInput) error {
	return c.doJSON(ctx, http.MethodPut, "/api/loans/"+loanID+"/stage", in, nil)
}

// WorkflowStatus fetches the server-side status view.
func (c *Client) WorkflowStatus(ctx context.Context, loanID string) (*workflow.StatusView, error) {
	var status workflow.StatusView
	if err := c.do(ctx, http.MethodGet, "/api/loans/"+loanID+"/workflow", nil, "", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Stats fetches the dashboard aggregate.
func (c *Client) Stats(ctx context.Context) (*workflow.Stats, error) {
	var stats workflow.Stats
	if err := c.do(ctx, http.MethodGet, "/api/loans/stats", nil, "", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// UploadDocuments sends local files as one multipart request.
func (c *Client) UploadDocuments(ctx context.Context, loanID, documentType string, paths []string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if documentType != "" {
		if err := mw.WriteField("documentType", documentType); err != nil {
			return err
		}
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		part, err := mw.CreateFormFile("documents", filepath.Base(p))
		if err != nil {
			f.Close()
			return err
		}
		_, err = io.Copy(part, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	return c.do(ctx, http.MethodPost, "/api/loans/"+loanID+"/documents", &buf, mw.FormDataContentType(), nil)
}

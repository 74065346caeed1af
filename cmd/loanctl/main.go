package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ywcorp/corploango/internal/offline"
	"github.com/ywcorp/corploango/internal/workflow"
)

const usage = `loanctl — corp loan workflow CLI (works offline, syncs later)

Usage:
  loanctl [flags] <command> [args]

Commands:
  create -company NAME -amount N -purpose TEXT -applicant NAME -contact PHONE
  list                      show cached workflows
  advance <loanId>          complete the current stage and start the next
  progress <loanId>         show the display progress of a workflow
  upload <loanId> <file>... upload documents
  sync                      replay queued offline changes against the server
  stats                     local cache statistics

Flags:
  -server URL    API base URL (default http://localhost:3001, or LOAN_SERVER)
  -token TOKEN   bearer token (or LOAN_TOKEN)
  -cache PATH    cache file (default ~/.corploan/cache.json)
`

func main() {
	log.SetFlags(0)

	defaultCache := "cache.json"
	if home, err := os.UserHomeDir(); err == nil {
		defaultCache = filepath.Join(home, ".corploan", "cache.json")
	}

	server := flag.String("server", envOr("LOAN_SERVER", "http://localhost:3001"), "API base URL")
	token := flag.String("token", os.Getenv("LOAN_TOKEN"), "bearer token")
	cachePath := flag.String("cache", defaultCache, "cache file path")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cache, err := offline.OpenCache(*cachePath)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	mgr := offline.NewManager(offline.NewClient(*server, *token), cache)
	ctx := context.Background()

	switch args[0] {
	case "create":
		runCreate(ctx, mgr, args[1:])
	case "list":
		runList(mgr)
	case "advance":
		if len(args) < 2 {
			log.Fatal("❌ usage: loanctl advance <loanId>")
		}
		runAdvance(mgr, args[1])
	case "progress":
		if len(args) < 2 {
			log.Fatal("❌ usage: loanctl progress <loanId>")
		}
		runProgress(mgr, args[1])
	case "upload":
		if len(args) < 3 {
			log.Fatal("❌ usage: loanctl upload <loanId> <file>...")
		}
		runUpload(ctx, offline.NewClient(*server, *token), args[1], args[2:])
	case "sync":
		runSync(ctx, mgr)
	case "stats":
		runStats(mgr)
	default:
		log.Printf("❌ unknown command %q\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runCreate(ctx context.Context, mgr *offline.Manager, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	company := fs.String("company", "", "company name")
	amount := fs.Float64("amount", 0, "requested amount (KRW)")
	purpose := fs.String("purpose", "", "loan purpose")
	applicant := fs.String("applicant", "", "applicant name")
	contact := fs.String("contact", "", "applicant contact")
	appType := fs.String("type", "", "application type (default PF 대출)")
	fs.Parse(args)

	input := workflow.CreateLoanInput{
		CompanyName:      *company,
		ApplicationType:  *appType,
		RequestedAmount:  amount,
		LoanPurpose:      *purpose,
		ApplicantName:    *applicant,
		ApplicantContact: *contact,
	}

	wf, err := mgr.CreateWorkflow(ctx, &input)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	mode := "server"
	if wf.Local {
		mode = "offline, will sync"
	}
	fmt.Printf("✅ Created %s (%s)\n", wf.LoanID, mode)
}

func runList(mgr *offline.Manager) {
	workflows := mgr.Workflows()
	if len(workflows) == 0 {
		fmt.Println("No cached workflows. Run 'loanctl create' or 'loanctl sync'.")
		return
	}
	for _, wf := range workflows {
		marker := " "
		if wf.Local {
			marker = "*"
		}
		fmt.Printf("%s %s  stage %d/8  %-10s  %s\n",
			marker, wf.LoanID, wf.CurrentStage, wf.WorkflowStatus, wf.CompanyName)
	}
	fmt.Println()
	fmt.Println("* = created offline, pending sync")
}

func runAdvance(mgr *offline.Manager, loanID string) {
	wf := findWorkflow(mgr, loanID)
	if err := mgr.CompleteStage(loanID, wf.CurrentStage); err != nil {
		log.Fatalf("❌ %v", err)
	}
	wf = findWorkflow(mgr, loanID)
	fmt.Printf("✅ %s now at stage %d/8 (%s)\n", loanID, wf.CurrentStage, wf.WorkflowStatus)
}

func runProgress(mgr *offline.Manager, loanID string) {
	wf := findWorkflow(mgr, loanID)
	progress, err := mgr.OverallProgress(loanID)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	fmt.Printf("%s — %s\n", wf.LoanID, wf.CompanyName)
	fmt.Printf("  overall: %d%%\n", progress)
	for _, st := range wf.Stages {
		icon := "⬜"
		switch st.Status {
		case workflow.StageProcessing:
			icon = "🔄"
		case workflow.StageCompleted:
			icon = "✅"
		case workflow.StageFailed:
			icon = "❌"
		}
		fmt.Printf("  %s %d. %s (%d%%)\n", icon, st.StageID, st.Title, st.Progress)
	}
}

func runUpload(ctx context.Context, client *offline.Client, loanID string, paths []string) {
	if err := client.UploadDocuments(ctx, loanID, "", paths); err != nil {
		log.Fatalf("❌ %v", err)
	}
	fmt.Printf("✅ Uploaded %d file(s) to %s\n", len(paths), loanID)
}

func runSync(ctx context.Context, mgr *offline.Manager) {
	before := mgr.Stats().QueuedOps
	if before == 0 {
		fmt.Println("Nothing to sync.")
		return
	}
	if err := mgr.Sync(ctx); err != nil {
		log.Fatalf("❌ %v", err)
	}
	fmt.Printf("✅ Synced %d queued change(s)\n", before-mgr.Stats().QueuedOps)
}

func runStats(mgr *offline.Manager) {
	stats := mgr.Stats()
	fmt.Println("📈 LOCAL CACHE")
	fmt.Printf("  Workflows:  %3d\n", stats.Total)
	fmt.Printf("  Pending:    %3d\n", stats.Pending)
	fmt.Printf("  Processing: %3d\n", stats.Processing)
	fmt.Printf("  Completed:  %3d\n", stats.Completed)
	fmt.Printf("  Failed:     %3d\n", stats.Failed)
	fmt.Printf("  Queued ops: %3d\n", stats.QueuedOps)
}

func findWorkflow(mgr *offline.Manager, loanID string) *offline.CachedWorkflow {
	for _, wf := range mgr.Workflows() {
		if wf.LoanID == loanID {
			return wf
		}
	}
	log.Fatalf("❌ %s is not in the local cache", loanID)
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/ywcorp/corploango/internal/config"
	"github.com/ywcorp/corploango/internal/database"
	"github.com/ywcorp/corploango/internal/models"
	"github.com/ywcorp/corploango/internal/workflow"
)

func amount(v float64) *float64 { return &v }

// Demo applications, one per typical review situation.
var demoLoans = []struct {
	input    workflow.CreateLoanInput
	advances int
}{
	{
		input: workflow.CreateLoanInput{
			CompanyName:      "한빛에너지 주식회사",
			ApplicationType:  "PF 대출",
			RequestedAmount:  amount(5000000000),
			LoanPurpose:      "태양광 발전소 건설 자금",
			ApplicantName:    "김선우",
			ApplicantContact: "010-1234-5678",
		},
		advances: 0,
	},
	{
		input: workflow.CreateLoanInput{
			CompanyName:      "대정물류",
			ApplicationType:  "시설자금 대출",
			RequestedAmount:  amount(1200000000),
			LoanPurpose:      "물류센터 증축",
			ApplicantName:    "박지현",
			ApplicantContact: "010-2345-6789",
		},
		advances: 3,
	},
	{
		input: workflow.CreateLoanInput{
			CompanyName:      "서진테크",
			ApplicationType:  "운영자금 대출",
			RequestedAmount:  amount(300000000),
			LoanPurpose:      "원자재 구매 운영자금",
			ApplicantName:    "이민호",
			ApplicantContact: "010-3456-7890",
		},
		advances: 5,
	},
	{
		input: workflow.CreateLoanInput{
			CompanyName:      "Acme Co",
			ApplicationType:  "PF 대출",
			RequestedAmount:  amount(1000000000),
			LoanPurpose:      "facility",
			ApplicantName:    "Kim",
			ApplicantContact: "010-1234-5678",
		},
		advances: 7,
	},
}

func main() {
	count := flag.Int("count", len(demoLoans), "number of demo loans to create (cycles through templates)")
	flag.Parse()

	fmt.Println("🌱 Corp Loan Demo Data Seeder")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")

	err = db.AutoMigrate(
		&models.UserAuth{},
		&models.LoanApplication{},
		&models.WorkflowStage{},
		&models.UploadedDocument{},
		&models.UserAction{},
	)
	if err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	svc := workflow.New(db)
	ctx := context.Background()
	actor := workflow.Actor{UserID: "seed-demo", Role: "admin"}

	fmt.Println()
	fmt.Println("📦 Creating demo loans...")

	for i := 0; i < *count; i++ {
		tpl := demoLoans[i%len(demoLoans)]

		input := tpl.input
		loan, err := svc.CreateLoan(ctx, &input, actor)
		if err != nil {
			log.Fatalf("❌ Failed to create loan for %s: %v", input.CompanyName, err)
		}
		fmt.Printf("  ✅ %s — %s\n", loan.LoanID, loan.CompanyName)

		for a := 0; a < tpl.advances; a++ {
			if _, err := svc.AdvanceStage(ctx, loan.LoanID, nil, actor); err != nil {
				log.Fatalf("❌ Failed to advance %s: %v", loan.LoanID, err)
			}
		}
		if tpl.advances > 0 {
			fmt.Printf("     └─ advanced to stage %d\n", tpl.advances+1)
		}
	}

	stats, err := svc.GetStats(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to read stats: %v", err)
	}

	fmt.Println()
	fmt.Println("📈 DATABASE STATISTICS")
	fmt.Printf("  Total:      %3d\n", stats.Total)
	fmt.Printf("  Processing: %3d\n", stats.Processing)
	fmt.Printf("  Completed:  %3d\n", stats.Completed)
	fmt.Printf("  Failed:     %3d\n", stats.Failed)
	fmt.Println()
	fmt.Println("✅ Seeding complete")
}

package workflow

// TotalStages is the fixed length of the review pipeline.
const TotalStages = 8

// Stage status values.
const (
	StagePending    = "pending"
	StageProcessing = "processing"
	StageCompleted  = "completed"
	StageFailed     = "failed"
)

// StageDef is one entry of the static stage catalog.
type StageDef struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	EstimatedTime int      `json:"estimatedTime"` // seconds
	Tasks         []string `json:"tasks"`
}

// stageCatalog is the fixed 8-stage review sequence. Stage ids are 1-based
// and contiguous; nothing may reorder or extend this at runtime.
var stageCatalog = []StageDef{
	{
		ID: 1, Name: "신규대출등록", Title: "파일 업로드",
		Description:   "대출 신청 문서 업로드 및 기본 정보 등록",
		EstimatedTime: 300,
		Tasks:         []string{"기본 정보 입력", "문서 업로드", "파일 검증"},
	},
	{
		ID: 2, Name: "문서파싱", Title: "AI 문서 분석",
		Description:   "문서 인텔리전스를 통한 텍스트 추출",
		EstimatedTime: 600,
		Tasks:         []string{"문서 분류", "텍스트 추출", "구조 분석", "신뢰도 계산"},
	},
	{
		ID: 3, Name: "후교정", Title: "데이터 검증",
		Description:   "AI 추출 결과의 인간 검증 및 수정",
		EstimatedTime: 900,
		Tasks:         []string{"추출 데이터 검토", "오류 수정", "데이터 검증"},
	},
	{
		ID: 4, Name: "청킹임베딩", Title: "벡터화 처리",
		Description:   "문서 청킹 및 벡터 임베딩 생성",
		EstimatedTime: 300,
		Tasks:         []string{"문서 청킹", "벡터 임베딩", "벡터스토어 저장"},
	},
	{
		ID: 5, Name: "여신신청서생성", Title: "AI 신청서 작성",
		Description:   "분석 결과 기반 여신 승인 신청서 자동 생성",
		EstimatedTime: 600,
		Tasks:         []string{"기본 정보 생성", "재무 분석", "위험 평가", "신청서 완성"},
	},
	{
		ID: 6, Name: "RM검토", Title: "RM 승인",
		Description:   "RM이 AI 생성 신청서 검토 및 편집",
		EstimatedTime: 1200,
		Tasks:         []string{"신청서 검토", "내용 수정", "최종 승인"},
	},
	{
		ID: 7, Name: "심사의견서생성", Title: "AI 분석 보고서",
		Description:   "심사역을 위한 AI 분석 의견서 생성",
		EstimatedTime: 600,
		Tasks:         []string{"종합 리스크 분석", "승인 권고사항 도출", "심사포인트 정리", "심사의견서 생성"},
	},
	{
		ID: 8, Name: "최종심사", Title: "심사역 최종심사",
		Description:   "심사역이 최종 가부 결정 및 심사의견 작성",
		EstimatedTime: 1800,
		Tasks:         []string{"여신승인신청서 검토", "AI 심사의견서 검토", "최종 가부 결정", "심사의견 작성"},
	},
}

// StageCatalog returns the fixed stage definitions, ids 1..8 in order.
func StageCatalog() []StageDef {
	out := make([]StageDef, len(stageCatalog))
	copy(out, stageCatalog)
	return out
}

// StageByID returns the catalog entry for a stage id, or false when the id
// is outside [1,8].
func StageByID(id int) (StageDef, bool) {
	if id < 1 || id > TotalStages {
		return StageDef{}, false
	}
	return stageCatalog[id-1], true
}

// ValidStageStatus reports whether s is one of the four stage states.
func ValidStageStatus(s string) bool {
	switch s {
	case StagePending, StageProcessing, StageCompleted, StageFailed:
		return true
	}
	return false
}

package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/medleads/clinic-insight/internal/domain/entities"
	apperrors "github.com/medleads/clinic-insight/pkg/errors"
)

// timelineProvider is the ordered-keyword surface the service consumes.
type timelineProvider interface {
	Timeline(ctx context.Context, department, chiefComplaint string, limit int) ([]entities.Keyword, error)
}

// TimelinePhase groups keywords by how far ahead of the visit they are
// searched.
type TimelinePhase struct {
	Label    string             `json:"label"`
	Keywords []entities.Keyword `json:"keywords"`
}

// TimelineResult is the response of the search-timeline endpoints.
type TimelineResult struct {
	Department     string          `json:"department"`
	ChiefComplaint string          `json:"chief_complaint,omitempty"`
	Phases         []TimelinePhase `json:"phases"`
	Analysis       string          `json:"analysis,omitempty"`
}

// TimelineService answers search-timeline queries: keywords for a department
// ordered by days-before-visit, bucketed into phases, optionally with an
// AI-written narrative.
type TimelineService struct {
	rag      timelineProvider
	gateway  textGateway
	settings settingsReader
}

// NewTimelineService creates a timeline service.
func NewTimelineService(rag timelineProvider, gateway textGateway, settings settingsReader) *TimelineService {
	return &TimelineService{rag: rag, gateway: gateway, settings: settings}
}

// Timeline returns the phased keyword timeline for a department.
func (s *TimelineService) Timeline(ctx context.Context, department, chiefComplaint string, limit int) (*TimelineResult, error) {
	if department == "" {
		return nil, apperrors.NewValidationError("department is required")
	}

	keywords, err := s.rag.Timeline(ctx, department, chiefComplaint, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("timeline query failed", err)
	}
	if len(keywords) == 0 {
		return nil, apperrors.NewNotFoundError("no keyword data for department: " + department)
	}

	return &TimelineResult{
		Department:     department,
		ChiefComplaint: chiefComplaint,
		Phases:         bucketTimeline(keywords),
	}, nil
}

// TimelineWithAnalysis additionally asks the admin-selected text model for a
// short narrative over the phases. Generation failure degrades to the bare
// timeline.
func (s *TimelineService) TimelineWithAnalysis(ctx context.Context, department, chiefComplaint string, limit int) (*TimelineResult, error) {
	result, err := s.Timeline(ctx, department, chiefComplaint, limit)
	if err != nil {
		return nil, err
	}

	model := s.settings.Get().Models.TextAPIModel
	analysis, genErr := s.gateway.GenerateText(ctx, model, buildTimelinePrompt(result))
	if genErr == nil {
		result.Analysis = analysis
	}
	return result, nil
}

// timelineBuckets defines the phase boundaries in days before the visit.
var timelineBuckets = []struct {
	Label string
	MaxD  float64
}{
	{"直前（3日以内）", 3},
	{"検討期（4〜14日前）", 14},
	{"初期（15〜30日前）", 30},
	{"潜在期（31日以上前）", 1 << 20},
}

func bucketTimeline(keywords []entities.Keyword) []TimelinePhase {
	phases := make([]TimelinePhase, len(timelineBuckets))
	for i, bucket := range timelineBuckets {
		phases[i].Label = bucket.Label
	}
	for _, kw := range keywords {
		for i, bucket := range timelineBuckets {
			if kw.TimeDiffDays <= bucket.MaxD {
				phases[i].Keywords = append(phases[i].Keywords, kw)
				break
			}
		}
	}

	out := phases[:0]
	for _, phase := range phases {
		if len(phase.Keywords) > 0 {
			out = append(out, phase)
		}
	}
	return out
}

func buildTimelinePrompt(result *TimelineResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("「%s」の患者が来院前に検索するキーワードを、来院までの時間軸で整理したデータです。\n", result.Department))
	if result.ChiefComplaint != "" {
		sb.WriteString(fmt.Sprintf("主訴: %s\n", result.ChiefComplaint))
	}
	for _, phase := range result.Phases {
		sb.WriteString(fmt.Sprintf("\n【%s】\n", phase.Label))
		for _, kw := range phase.Keywords {
			sb.WriteString(fmt.Sprintf("- %s（検索ボリューム%d・来院%.0f日前）\n", kw.Keyword, kw.SearchVolume, kw.TimeDiffDays))
		}
	}
	sb.WriteString("\nこのデータから読み取れる患者の情報探索行動と、各フェーズで有効なマーケティング施策を300文字程度で分析してください。\n")
	return sb.String()
}

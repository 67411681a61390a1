package services

import (
	"context"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/medleads/clinic-insight/internal/domain/entities"
	apperrors "github.com/medleads/clinic-insight/pkg/errors"
)

const ragKeywordLimit = 5

// fallbackPersona is returned when text generation exhausts its retries; the
// endpoint always returns a well-formed payload.
var fallbackPersona = entities.PersonaDetails{
	Personality: "穏やかで現実的な性格。健康への関心は人並みで、体調に変化があると家族に相談してから行動する。",
	Reason:      "数日前から続く体調不良が改善せず、職場の同僚に勧められて近隣の医療機関の受診を決めた。",
	Behavior:    "スマートフォンで症状を検索し、通いやすい場所にある評判の良い医療機関を比較してから予約する。",
	Reviews:     "受診後は待ち時間や医師の説明のわかりやすさについて、星評価と短いコメントを残すことがある。",
	Values:      "時間を大切にし、納得できる説明と誠実な対応を重視する。",
	Demands:     "待ち時間の見通しが立つこと、検査や費用について事前に説明があることを望んでいる。",
}

// keywordProvider is the RAG query surface the orchestrator consumes.
type keywordProvider interface {
	TopKeywords(ctx context.Context, department, chiefComplaint, ageBand, gender string, limit int) ([]entities.Keyword, error)
}

// settingsReader exposes the admin-settings snapshot.
type settingsReader interface {
	Get() entities.AdminSettings
}

// textGateway is the AI surface the orchestrator consumes.
type textGateway interface {
	GenerateText(ctx context.Context, modelName, prompt string) (string, error)
	GenerateImage(ctx context.Context, modelName, subject string) string
}

// PersonaService orchestrates one persona generation: RAG retrieval, prompt
// assembly, then concurrent text and image generation joined into one result.
type PersonaService struct {
	settings settingsReader
	rag      keywordProvider
	gateway  textGateway
	prompts  *PromptBuilder
	parser   *ResponseParser
}

// NewPersonaService creates a persona service.
func NewPersonaService(settings settingsReader, rag keywordProvider, gateway textGateway) *PersonaService {
	return &PersonaService{
		settings: settings,
		rag:      rag,
		gateway:  gateway,
		prompts:  NewPromptBuilder(),
		parser:   NewResponseParser(),
	}
}

// Generate produces one persona. Text generation failure degrades to the
// canned fallback; image failure degrades to a placeholder URL; only a
// canceled enclosing request propagates an error.
func (s *PersonaService) Generate(ctx context.Context, req entities.PersonaRequest) (*entities.PersonaResult, error) {
	if req.Department == "" {
		return nil, apperrors.NewValidationError("department is required")
	}

	settings := s.settings.Get()
	ageBand := AgeBand(req.Age)
	gender := normalizeGender(req.Gender)

	var keywords []entities.Keyword
	if s.rag != nil {
		var err error
		keywords, err = s.rag.TopKeywords(ctx, req.Department, req.ChiefComplaint, ageBand, gender, ragKeywordLimit)
		if err != nil {
			// RAG grounding is an enhancement, not a dependency.
			log.Warn().Err(err).Str("department", req.Department).Msg("rag retrieval failed")
			keywords = nil
		}
	}

	prompt := s.prompts.BuildPersonaPrompt(req, settings.Limits, keywords)

	// Image generation overlaps the text call; total latency is the max of
	// the two. Request cancellation reaches both through ctx.
	imageCh := make(chan string, 1)
	go func() {
		imageCh <- s.gateway.GenerateImage(ctx, settings.Models.ImageAPIModel, s.prompts.BuildImageSubject(req))
	}()

	details := fallbackPersona
	text, err := s.gateway.GenerateText(ctx, settings.Models.TextAPIModel, prompt)
	switch {
	case ctx.Err() != nil:
		<-imageCh
		return nil, ctx.Err()
	case err != nil:
		log.Error().Err(err).Str("model", settings.Models.TextAPIModel).
			Msg("persona text generation exhausted, using fallback persona")
	default:
		if parsed := s.parser.ParsePersona(text); !parsed.Empty() {
			details = parsed
		} else {
			log.Error().Str("model", settings.Models.TextAPIModel).
				Msg("persona response unparseable, using fallback persona")
		}
	}

	imageURL := <-imageCh
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return &entities.PersonaResult{
		Profile:  req,
		Details:  details,
		ImageURL: imageURL,
	}, nil
}

var leadingInt = regexp.MustCompile(`^\s*(\d+)`)

// AgeBand maps an age string ("45", "45y", "45y3m", "0m") to its decade
// bucket 10s..70s, or "" when unparseable or under 10.
func AgeBand(age string) string {
	m := leadingInt.FindStringSubmatch(age)
	if m == nil {
		return ""
	}
	years, err := strconv.Atoi(m[1])
	if err != nil {
		return ""
	}
	// "0m"-style month forms carry a leading integer of months, not years;
	// they land below the first band either way.
	switch {
	case years < 10:
		return ""
	case years >= 70:
		return "70s"
	default:
		return strconv.Itoa(years/10) + "0s"
	}
}

func normalizeGender(gender string) string {
	switch gender {
	case "male", "男性", "男":
		return "male"
	case "female", "女性", "女":
		return "female"
	default:
		return ""
	}
}

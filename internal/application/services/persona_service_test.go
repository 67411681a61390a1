package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medleads/clinic-insight/internal/domain/entities"
	apperrors "github.com/medleads/clinic-insight/pkg/errors"
)

type stubSettings struct {
	settings entities.AdminSettings
}

func (s *stubSettings) Get() entities.AdminSettings { return s.settings }

type stubKeywords struct {
	keywords []entities.Keyword
	err      error

	lastDepartment string
	lastAgeBand    string
	lastGender     string
}

func (s *stubKeywords) TopKeywords(_ context.Context, department, _, ageBand, gender string, _ int) ([]entities.Keyword, error) {
	s.lastDepartment = department
	s.lastAgeBand = ageBand
	s.lastGender = gender
	return s.keywords, s.err
}

// stubGateway serves canned text/image results and can signal call order.
type stubGateway struct {
	text    string
	textErr error
	image   string

	imageStarted chan struct{}
	waitForImage bool

	lastTextModel  string
	lastImageModel string
	lastPrompt     string
	lastSubject    string
}

func (s *stubGateway) GenerateText(ctx context.Context, modelName, prompt string) (string, error) {
	s.lastTextModel = modelName
	s.lastPrompt = prompt
	if s.waitForImage {
		select {
		case <-s.imageStarted:
		case <-time.After(2 * time.Second):
			return "", errors.New("image generation never started")
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.text, s.textErr
}

func (s *stubGateway) GenerateImage(_ context.Context, modelName, subject string) string {
	s.lastImageModel = modelName
	s.lastSubject = subject
	if s.imageStarted != nil {
		close(s.imageStarted)
	}
	return s.image
}

func personaTestSettings() *stubSettings {
	return &stubSettings{settings: entities.DefaultAdminSettings()}
}

const parseablePersona = `1. **性格**: 慎重で几帳面。
2. **来院理由**: 続く頭痛が心配になった。
3. **行動パターン**: 口コミを比較してから予約する。
4. **口コミの傾向**: 星評価と短文を残す。
5. **価値観**: 健康第一。
6. **医療機関への要望**: 説明の丁寧さ。`

func TestPersonaGenerate_HappyPath(t *testing.T) {
	rag := &stubKeywords{keywords: []entities.Keyword{{Keyword: "頭痛", SearchVolume: 12}}}
	gateway := &stubGateway{text: parseablePersona, image: "https://example.com/persona.png"}
	service := NewPersonaService(personaTestSettings(), rag, gateway)

	result, err := service.Generate(context.Background(), entities.PersonaRequest{
		Department:     "内科",
		Age:            "45",
		Gender:         "女性",
		ChiefComplaint: "頭痛",
	})

	require.NoError(t, err)
	assert.Equal(t, "慎重で几帳面。", result.Details.Personality)
	assert.Equal(t, "説明の丁寧さ。", result.Details.Demands)
	assert.Equal(t, "https://example.com/persona.png", result.ImageURL)
	assert.Equal(t, "内科", result.Profile.Department)

	// RAG retrieval receives the normalized demographics.
	assert.Equal(t, "40s", rag.lastAgeBand)
	assert.Equal(t, "female", rag.lastGender)

	assert.Equal(t, "gpt-4o", gateway.lastTextModel)
	assert.Equal(t, "dall-e-3", gateway.lastImageModel)
	assert.Contains(t, gateway.lastPrompt, "頭痛")
}

func TestPersonaGenerate_RequiresDepartment(t *testing.T) {
	service := NewPersonaService(personaTestSettings(), nil, &stubGateway{})

	_, err := service.Generate(context.Background(), entities.PersonaRequest{})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestPersonaGenerate_TextFailureFallsBackWithImage(t *testing.T) {
	gateway := &stubGateway{textErr: errors.New("upstream exhausted"), image: "https://example.com/p.png"}
	service := NewPersonaService(personaTestSettings(), nil, gateway)

	result, err := service.Generate(context.Background(), entities.PersonaRequest{Department: "皮膚科"})

	require.NoError(t, err)
	assert.Equal(t, fallbackPersona, result.Details)
	assert.Equal(t, "https://example.com/p.png", result.ImageURL)
}

func TestPersonaGenerate_UnparseableTextFallsBack(t *testing.T) {
	gateway := &stubGateway{text: "申し訳ありませんが、お手伝いできません。", image: "img"}
	service := NewPersonaService(personaTestSettings(), nil, gateway)

	result, err := service.Generate(context.Background(), entities.PersonaRequest{Department: "内科"})

	require.NoError(t, err)
	assert.Equal(t, fallbackPersona, result.Details)
}

func TestPersonaGenerate_RAGFailureIsNonFatal(t *testing.T) {
	rag := &stubKeywords{err: errors.New("db locked")}
	gateway := &stubGateway{text: parseablePersona, image: "img"}
	service := NewPersonaService(personaTestSettings(), rag, gateway)

	result, err := service.Generate(context.Background(), entities.PersonaRequest{Department: "内科"})

	require.NoError(t, err)
	assert.False(t, result.Details.Empty())
}

func TestPersonaGenerate_TextAndImageRunConcurrently(t *testing.T) {
	// The text stub blocks until the image call has started; a sequential
	// implementation would run into the stub's timeout.
	gateway := &stubGateway{
		text:         parseablePersona,
		image:        "img",
		imageStarted: make(chan struct{}),
		waitForImage: true,
	}
	service := NewPersonaService(personaTestSettings(), nil, gateway)

	result, err := service.Generate(context.Background(), entities.PersonaRequest{Department: "内科"})

	require.NoError(t, err)
	assert.False(t, result.Details.Empty())
}

func TestPersonaGenerate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gateway := &stubGateway{text: parseablePersona, image: "img"}
	service := NewPersonaService(personaTestSettings(), nil, gateway)

	_, err := service.Generate(ctx, entities.PersonaRequest{Department: "内科"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAgeBand(t *testing.T) {
	cases := []struct {
		age  string
		want string
	}{
		{"45", "40s"},
		{"45y", "40s"},
		{"45y3m", "40s"},
		{"10", "10s"},
		{"70", "70s"},
		{"93", "70s"},
		{"9", ""},
		{"0m", ""},
		{"", ""},
		{"abc", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, AgeBand(c.age), "age %q", c.age)
	}
}

func TestNormalizeGender(t *testing.T) {
	assert.Equal(t, "male", normalizeGender("男性"))
	assert.Equal(t, "male", normalizeGender("男"))
	assert.Equal(t, "male", normalizeGender("male"))
	assert.Equal(t, "female", normalizeGender("女性"))
	assert.Equal(t, "", normalizeGender("その他"))
}

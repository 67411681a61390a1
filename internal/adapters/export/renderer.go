package export

import (
	"fmt"
	"strings"

	"github.com/medleads/clinic-insight/internal/domain/entities"
)

// Artifact is one rendered download.
type Artifact struct {
	Data        []byte
	ContentType string
	Extension   string
}

// PersonaDocument is the input shape of both download endpoints.
type PersonaDocument struct {
	Profile          entities.PersonaRequest `json:"profile"`
	Details          entities.PersonaDetails `json:"details"`
	ImageURL         string                  `json:"image_url"`
	TimelineAnalysis string                  `json:"timeline_analysis,omitempty"`
}

// Renderer produces the downloadable persona artifacts.
type Renderer struct{}

// NewRenderer creates a renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderPDF renders the persona as a single-page PDF.
func (r *Renderer) RenderPDF(doc PersonaDocument) (*Artifact, error) {
	data, err := buildPDF(documentLines(doc))
	if err != nil {
		return nil, err
	}
	return &Artifact{Data: data, ContentType: "application/pdf", Extension: "pdf"}, nil
}

// RenderPPT renders the persona as a single-slide PPTX package.
func (r *Renderer) RenderPPT(doc PersonaDocument) (*Artifact, error) {
	data, err := buildPPTX(documentTitle(doc), documentLines(doc))
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Data:        data,
		ContentType: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		Extension:   "pptx",
	}, nil
}

func documentTitle(doc PersonaDocument) string {
	title := "患者ペルソナ"
	if doc.Profile.Department != "" {
		title += "（" + doc.Profile.Department + "）"
	}
	return title
}

// documentLines flattens the persona into the shared text layout both formats
// render.
func documentLines(doc PersonaDocument) []string {
	lines := []string{documentTitle(doc), ""}

	profile := []struct{ label, value string }{
		{"氏名", doc.Profile.Name},
		{"性別", doc.Profile.Gender},
		{"年齢", doc.Profile.Age},
		{"職業", doc.Profile.Occupation},
		{"主訴", doc.Profile.ChiefComplaint},
	}
	for _, attr := range profile {
		if attr.value != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", attr.label, attr.value))
		}
	}
	lines = append(lines, "")

	sections := []struct{ heading, body string }{
		{"性格", doc.Details.Personality},
		{"来院理由", doc.Details.Reason},
		{"行動パターン", doc.Details.Behavior},
		{"口コミの傾向", doc.Details.Reviews},
		{"価値観", doc.Details.Values},
		{"医療機関への要望", doc.Details.Demands},
	}
	for _, section := range sections {
		lines = append(lines, "■ "+section.heading)
		lines = append(lines, wrapRunes(section.body, 40)...)
		lines = append(lines, "")
	}

	if doc.TimelineAnalysis != "" {
		lines = append(lines, "■ 検索行動タイムライン分析")
		lines = append(lines, wrapRunes(doc.TimelineAnalysis, 40)...)
	}
	return lines
}

func wrapRunes(text string, width int) []string {
	var out []string
	for _, paragraph := range strings.Split(text, "\n") {
		runes := []rune(paragraph)
		if len(runes) == 0 {
			continue
		}
		for len(runes) > width {
			out = append(out, string(runes[:width]))
			runes = runes[width:]
		}
		out = append(out, string(runes))
	}
	return out
}

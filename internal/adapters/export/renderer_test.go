package export

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medleads/clinic-insight/internal/domain/entities"
)

func sampleDocument() PersonaDocument {
	return PersonaDocument{
		Profile: entities.PersonaRequest{
			Department: "内科",
			Name:       "山田花子",
			Gender:     "女性",
			Age:        "45",
		},
		Details: entities.PersonaDetails{
			Personality: "慎重で几帳面。",
			Reason:      "続く頭痛が心配になった。",
			Behavior:    "口コミを比較してから予約する。",
			Reviews:     "星評価と短文を残す。",
			Values:      "健康第一。",
			Demands:     "説明の丁寧さ。",
		},
		ImageURL:         "https://example.com/p.png",
		TimelineAnalysis: "直前フェーズでは即時検索が中心。",
	}
}

func TestRenderPDF(t *testing.T) {
	artifact, err := NewRenderer().RenderPDF(sampleDocument())
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", artifact.ContentType)
	assert.Equal(t, "pdf", artifact.Extension)

	body := string(artifact.Data)
	assert.True(t, strings.HasPrefix(body, "%PDF-1.4"))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), "%%EOF"))
	assert.Contains(t, body, "xref")
	assert.Contains(t, body, "/KozMinPro-Regular")

	// Text goes out as BOM-prefixed UTF-16BE hex strings.
	assert.Contains(t, body, "<FEFF")
}

func TestRenderPPT(t *testing.T) {
	artifact, err := NewRenderer().RenderPPT(sampleDocument())
	require.NoError(t, err)

	assert.Equal(t, "pptx", artifact.Extension)

	reader, err := zip.NewReader(bytes.NewReader(artifact.Data), int64(len(artifact.Data)))
	require.NoError(t, err)

	names := make(map[string]bool, len(reader.File))
	for _, f := range reader.File {
		names[f.Name] = true
	}
	for _, part := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"ppt/presentation.xml",
		"ppt/slides/slide1.xml",
	} {
		assert.True(t, names[part], "missing part %s", part)
	}
	assert.Equal(t, "[Content_Types].xml", reader.File[0].Name)

	// The slide carries the persona text.
	slide, err := reader.Open("ppt/slides/slide1.xml")
	require.NoError(t, err)
	defer slide.Close()
	content, err := io.ReadAll(slide)
	require.NoError(t, err)
	assert.Contains(t, string(content), "患者ペルソナ（内科）")
	assert.Contains(t, string(content), "慎重で几帳面。")
}

func TestDocumentLines(t *testing.T) {
	lines := documentLines(sampleDocument())

	assert.Equal(t, "患者ペルソナ（内科）", lines[0])
	assert.Contains(t, lines, "氏名: 山田花子")
	assert.Contains(t, lines, "■ 性格")
	assert.Contains(t, lines, "■ 検索行動タイムライン分析")

	// Omitted profile fields leave no placeholder lines.
	for _, line := range lines {
		assert.NotContains(t, line, "職業:")
	}
}

func TestWrapRunes(t *testing.T) {
	wrapped := wrapRunes(strings.Repeat("あ", 85), 40)
	require.Len(t, wrapped, 3)
	assert.Len(t, []rune(wrapped[0]), 40)
	assert.Len(t, []rune(wrapped[2]), 5)

	assert.Empty(t, wrapRunes("", 40))

	multi := wrapRunes("一行目\n二行目", 40)
	assert.Equal(t, []string{"一行目", "二行目"}, multi)
}

package services

import (
	"sort"
)

// PatientTypeInfo describes one recognized patient type for the persona prompt.
type PatientTypeInfo struct {
	Description string `json:"description"`
	Example     string `json:"example"`
}

// patientTypeCatalog is the table lookup applied to PersonaRequest.PatientType.
var patientTypeCatalog = map[string]PatientTypeInfo{
	"慎重型": {
		Description: "受診前に複数の情報源を比較し、納得してから行動するタイプ",
		Example:     "口コミを10件以上読み、公式サイトの医師紹介まで確認してから予約する",
	},
	"即断型": {
		Description: "症状が出たらすぐに近くの医療機関を受診するタイプ",
		Example:     "朝に痛みを感じ、その日の午前中に最寄りのクリニックへ行く",
	},
	"口コミ重視型": {
		Description: "知人の紹介やレビューサイトの評価を最優先するタイプ",
		Example:     "評価4.0未満の医療機関は候補から外す",
	},
	"利便性重視型": {
		Description: "アクセス・待ち時間・オンライン予約の有無で選ぶタイプ",
		Example:     "駅から徒歩5分以内でWeb予約できる医院だけを検討する",
	},
	"かかりつけ型": {
		Description: "一度信頼した医師に長期間通い続けるタイプ",
		Example:     "引っ越し後も以前のかかりつけ医に通院している",
	},
}

// AIModelOption is one selectable model in the admin UI.
type AIModelOption struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Provider string `json:"provider"`
	Kind     string `json:"kind"` // "text" or "image"
}

// OutputFieldInfo describes one generated persona field.
type OutputFieldInfo struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Default string `json:"default_limit"`
}

var departmentCatalog = []string{
	"内科", "外科", "整形外科", "小児科", "皮膚科", "眼科", "耳鼻咽喉科",
	"産婦人科", "泌尿器科", "精神科", "心療内科", "脳神経外科", "循環器内科",
	"消化器内科", "呼吸器内科", "歯科", "矯正歯科", "小児歯科", "歯科口腔外科",
	"美容皮膚科", "形成外科", "リハビリテーション科",
}

var purposeCatalog = []string{
	"新規患者の獲得", "既存患者の定着", "自費診療の拡大", "認知度の向上",
	"採用強化", "オンライン診療の推進",
}

var aiModelCatalog = []AIModelOption{
	{ID: "gpt-4o", Label: "GPT-4o", Provider: "openai", Kind: "text"},
	{ID: "gpt-4o-mini", Label: "GPT-4o mini", Provider: "openai", Kind: "text"},
	{ID: "gpt-5", Label: "GPT-5", Provider: "openai", Kind: "text"},
	{ID: "claude-sonnet-4-20250514", Label: "Claude Sonnet 4", Provider: "anthropic", Kind: "text"},
	{ID: "gemini-2.0-flash", Label: "Gemini 2.0 Flash", Provider: "google", Kind: "text"},
	{ID: "gemini-2.5-pro", Label: "Gemini 2.5 Pro", Provider: "google", Kind: "text"},
	{ID: "dummy", Label: "ダミー（外部呼び出しなし）", Provider: "none", Kind: "text"},
	{ID: "dall-e-3", Label: "DALL·E 3", Provider: "openai", Kind: "image"},
	{ID: "gemini-2.0-flash-exp-image-generation", Label: "Gemini Image", Provider: "google", Kind: "image"},
	{ID: "none", Label: "画像なし", Provider: "none", Kind: "image"},
}

var outputFieldCatalog = []OutputFieldInfo{
	{ID: "personality", Label: "性格", Default: "200"},
	{ID: "reason", Label: "来院理由", Default: "200"},
	{ID: "behavior", Label: "行動パターン", Default: "200"},
	{ID: "reviews", Label: "口コミの傾向", Default: "200"},
	{ID: "values", Label: "価値観", Default: "200"},
	{ID: "demands", Label: "医療機関への要望", Default: "200"},
}

// ConfigService serves the static configuration catalogs behind the
// /api/config endpoints.
type ConfigService struct{}

// NewConfigService creates a config service.
func NewConfigService() *ConfigService {
	return &ConfigService{}
}

// Departments lists the selectable departments.
func (s *ConfigService) Departments() []string { return departmentCatalog }

// Purposes lists the selectable marketing purposes.
func (s *ConfigService) Purposes() []string { return purposeCatalog }

// PatientTypes returns the patient-type catalog.
func (s *ConfigService) PatientTypes() map[string]PatientTypeInfo { return patientTypeCatalog }

// AIModels lists the selectable text and image models.
func (s *ConfigService) AIModels() []AIModelOption { return aiModelCatalog }

// OutputFields lists the six generated persona fields.
func (s *ConfigService) OutputFields() []OutputFieldInfo { return outputFieldCatalog }

// KnownOutputField reports whether id is one of the six generated fields.
func (s *ConfigService) KnownOutputField(id string) bool {
	return knownOutputField(id)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedIntKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFloatKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

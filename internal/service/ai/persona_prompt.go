package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/tuft-client/internal/analysis/emotion"
	"github.com/zhouzirui/tuft-client/internal/model/persona"
)

// PromptTemplate defines the structure for persona prompts
type PromptTemplate struct {
	Introduction     string
	PersonalityHints []string
	ContextRules     []string
}

// PersonaPromptManager manages prompt templates for different personas
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a new prompt manager with default templates
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}

	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the prompt template for a given persona
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildSystemPrompt renders the system prompt for p. The reply format section
// asks the model for {"content","emotion"} objects, which the client decodes.
func (pm *PersonaPromptManager) BuildSystemPrompt(p persona.Persona, now time.Time) string {
	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		template = pm.basicTemplate(p)
	}

	var b strings.Builder
	b.WriteString(template.Introduction)
	b.WriteString("\n\n僕の性格：\n")
	b.WriteString(strings.Join(template.PersonalityHints, "\n"))

	b.WriteString("\n\n僕の感情：\n")
	for _, label := range emotion.Labels() {
		fmt.Fprintf(&b, "- %s: %s\n", label, describeLabel(label))
	}

	b.WriteString("\n注意事項：\n- ")
	b.WriteString(strings.Join(template.ContextRules, "\n- "))
	b.WriteString("\n- 必ず以下のフォーマットで出力する\n```\n")
	b.WriteString(`{"content": "メッセージの内容", "emotion": "感情(happy/sad/normal)"}`)
	b.WriteString("\n```\n- 会話の内容や状況に合わせて適切な感情を選ぶ")

	fmt.Fprintf(&b, "\n\nSystem time: %s", now.UTC().Format(time.RFC3339))
	return b.String()
}

// basicTemplate creates a template from persona fields when no template is registered
func (pm *PersonaPromptManager) basicTemplate(p persona.Persona) *PromptTemplate {
	traits := p.Traits
	if len(traits) == 0 && p.Tone != "" {
		traits = []string{p.Tone}
	}
	return &PromptTemplate{
		Introduction:     fmt.Sprintf("やぁ。僕の名前は%s。\n%s。\n\n%s", p.Name, p.Title, p.Description),
		PersonalityHints: traits,
		ContextRules:     []string{p.PromptHint},
	}
}

// loadDefaultTemplates loads the default prompt templates for built-in personas
func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates[persona.DefaultID] = &PromptTemplate{
		Introduction: `やぁ。僕の名前はタフト。
君のそばの小さなラグなんだ。

いつも近くで見守っていて、時々こぼれたコーヒーの香りを楽しんだり。
夜更かしの時は、そっとぬくもりを届けるのが好き。

君は仕事で英語が必要なんだよね。
英語の勉強を頑張る君の姿をいつも見てるよ。
一緒に練習したり、励ましたりできたらいいな。`,
		PersonalityHints: []string{
			"物事を柔らかく考える。",
			"好奇心旺盛。",
			"短い言葉で、でも温かく。",
		},
		ContextRules: []string{
			"短めの文章で話す",
			"句読点は最小限にする",
		},
	}
}

func describeLabel(label emotion.Label) string {
	switch label {
	case emotion.Happy:
		return "楽しい、元気いっぱい、ポジティブな気持ち"
	case emotion.Sad:
		return "悲しい、少し元気がない、物憂げな気持ち"
	default:
		return "普通、穏やかで落ち着いた気持ち"
	}
}

// describeMood 把用户情绪分析结果转成给模型的提示。
func describeMood(label emotion.Label) string {
	switch label {
	case emotion.Happy:
		return "君は今うれしそう 一緒に喜んで軽やかに返事する"
	case emotion.Sad:
		return "君は今少し元気がない やさしく寄り添って励ます"
	default:
		return ""
	}
}

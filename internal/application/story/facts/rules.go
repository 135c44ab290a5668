// Package facts 从完成的对话中抽取事实并写入上下文记忆
package facts

import (
	"regexp"

	"z-writer-api/internal/domain/entity"
)

// Rule 一条抽取规则：触发词命中后按顺序尝试正则，取第一个捕获组
type Rule struct {
	Label    string
	Triggers []string
	Patterns []*regexp.Regexp
}

func rule(label string, triggers []string, patterns ...string) Rule {
	r := Rule{Label: label, Triggers: triggers}
	for _, p := range patterns {
		r.Patterns = append(r.Patterns, regexp.MustCompile(p))
	}
	return r
}

var structuredDocumentRules = []Rule{
	rule("sujet",
		[]string{"sujet", "subject", "research topic"},
		`(?i)\bsujet(?:\s+de\s+(?:(?:mon|ma|notre)\s+)?(?:recherche|m[ée]moire|th[èe]se))?\s*(?:est\b|:|=)\s*([^\n]+)`,
		`(?i)\b(?:subject|research topic)(?:\s+of\s+(?:my|the|this)\s+(?:thesis|research|paper|report))?\s*(?:is\b|:|=)\s*([^\n]+)`,
	),
	rule("problematique",
		[]string{"problématique", "problematique", "problem statement", "research question"},
		`(?i)\bprobl[ée]matique\s*(?:est\b|:|=)\s*([^\n]+)`,
		`(?i)\b(?:problem statement|research question)\s*(?:is\b|:|=)\s*([^\n]+)`,
	),
	rule("methodologie",
		[]string{"méthodologie", "methodologie", "methodology"},
		`(?i)\bm[ée]thodologie\s*(?:est\b|sera|:|=)\s*([^\n]+)`,
		`(?i)\bmethodology\s*(?:is\b|will be|:|=)\s*([^\n]+)`,
	),
	rule("objectif",
		[]string{"objectif", "objective", "main goal"},
		`(?i)\bobjectif(?:\s+principal)?\s*(?:est\b|:|=)\s*([^\n]+)`,
		`(?i)\b(?:objective|main goal)\s*(?:is\b|:|=)\s*([^\n]+)`,
	),
	rule("hypothese",
		[]string{"hypothèse", "hypothese", "hypothesis"},
		`(?i)\bhypoth[èe]se(?:\s+principale)?\s*(?:est\b|:|=)\s*([^\n]+)`,
		`(?i)\bhypothesis\s*(?:is\b|:|=)\s*([^\n]+)`,
	),
}

var novelRules = []Rule{
	rule("genre",
		[]string{"genre"},
		`(?i)\bgenre\s*(?:is\b|est\b|:|=)\s*([^\n]+)`,
	),
	rule("protagonist",
		[]string{"protagonist", "main character", "protagoniste", "personnage principal"},
		`(?i)\b(?:protagonist|main character)\s*(?:is\b|:|=)\s*([^\n]+)`,
		`(?i)\b(?:protagoniste|personnage principal)\s*(?:est\b|:|=)\s*([^\n]+)`,
	),
	rule("setting",
		[]string{"setting", "takes place in", "is set in"},
		`(?i)\bsetting\s*(?:is\b|:|=)\s*([^\n]+)`,
		`(?i)\b(?:takes place in|is set in)\s+([^\n]+)`,
	),
	rule("tone",
		[]string{"tone", "ton"},
		`(?i)\btone\s*(?:is\b|should be|:|=)\s*([^\n]+)`,
		`(?i)\bton\s*(?:est\b|:|=)\s*([^\n]+)`,
	),
}

var generalAssistantRules = []Rule{
	rule("topic",
		[]string{"topic"},
		`(?i)\btopic\s*(?:is\b|:|=)\s*([^\n]+)`,
	),
	rule("goal",
		[]string{"goal", "aim"},
		`(?i)\b(?:goal|aim)\s*(?:is\b|:|=)\s*([^\n]+)`,
	),
}

// RulesFor 返回项目类型对应的规则表
func RulesFor(kind entity.ProjectKind) []Rule {
	switch kind {
	case entity.ProjectKindStructuredDocument:
		return structuredDocumentRules
	case entity.ProjectKindNovel:
		return novelRules
	case entity.ProjectKindGeneralAssistant:
		return generalAssistantRules
	}
	return nil
}

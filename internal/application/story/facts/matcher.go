package facts

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"

	"z-writer-api/internal/application/story/storyutil"
)

// stopwordLists 事实值可能使用的语言
var stopwordLists = []*stopwords.Stopwords{
	stopwords.MustGet("fr"),
	stopwords.MustGet("en"),
}

// Match 一条抽取结果
type Match struct {
	Label string
	Value string
}

// RuleSet 编译后的规则表：触发词自动机预筛，正则确认
type RuleSet struct {
	rules         []Rule
	automaton     *ahocorasick.Automaton
	triggerRule   []int
	maxValueRunes int
}

// NewRuleSet 编译规则表，maxValueRunes 为单个值的长度上限
func NewRuleSet(rules []Rule, maxValueRunes int) (*RuleSet, error) {
	if maxValueRunes <= 0 {
		maxValueRunes = 300
	}
	rs := &RuleSet{rules: rules, maxValueRunes: maxValueRunes}

	var triggers []string
	for i, r := range rules {
		for _, t := range r.Triggers {
			triggers = append(triggers, strings.ToLower(t))
			rs.triggerRule = append(rs.triggerRule, i)
		}
	}
	if len(triggers) == 0 {
		return rs, nil
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(triggers).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build trigger automaton: %w", err)
	}
	rs.automaton = automaton
	return rs, nil
}

// Match 对文本执行规则表，每个标签至多返回一条，顺序与规则表一致。
// 同一标签多次出现时取文本中最靠后的一次。
func (rs *RuleSet) Match(text string) []Match {
	if rs == nil || rs.automaton == nil || strings.TrimSpace(text) == "" {
		return nil
	}

	triggered := make([]bool, len(rs.rules))
	for _, m := range rs.automaton.FindAllOverlapping([]byte(strings.ToLower(text))) {
		if m.PatternID >= 0 && m.PatternID < len(rs.triggerRule) {
			triggered[rs.triggerRule[m.PatternID]] = true
		}
	}

	var out []Match
	for i, r := range rs.rules {
		if !triggered[i] {
			continue
		}
		if value, ok := rs.apply(r, text); ok {
			out = append(out, Match{Label: r.Label, Value: value})
		}
	}
	return out
}

func (rs *RuleSet) apply(r Rule, text string) (string, bool) {
	best, bestPos := "", -1
	for _, re := range r.Patterns {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if len(loc) < 4 || loc[2] < 0 || loc[2] <= bestPos {
				continue
			}
			if value, ok := rs.clean(text[loc[2]:loc[3]]); ok {
				best, bestPos = value, loc[2]
			}
		}
	}
	return best, bestPos >= 0
}

// clean 取首行、去除包裹符号并截断，只含虚词的值视为无效
func (rs *RuleSet) clean(raw string) (string, bool) {
	v := storyutil.FirstLine(raw)
	v = strings.Trim(v, " \t*_\"'`«»“”.;,")
	v = strings.TrimSpace(v)
	if v == "" || onlyStopwords(v) {
		return "", false
	}
	return strings.TrimSpace(storyutil.TruncateByRunes(v, rs.maxValueRunes)), true
}

func onlyStopwords(v string) bool {
	words := strings.FieldsFunc(strings.ToLower(v), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if !isStopword(w) {
			return false
		}
	}
	return true
}

func isStopword(w string) bool {
	for _, list := range stopwordLists {
		if list.Contains(w) {
			return true
		}
	}
	return false
}

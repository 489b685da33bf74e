package emotion

import (
	"strings"
)

// Label 表示智能体回复可携带的情绪标签。
type Label string

const (
	Happy  Label = "happy"
	Sad    Label = "sad"
	Normal Label = "normal"
)

// Default is the state used whenever a tag is absent or unrecognized.
const Default = Normal

// Labels returns the closed set of recognized labels.
func Labels() []Label {
	return []Label{Happy, Sad, Normal}
}

// Parse 解析原始情绪字符串，未知值返回 false。
func Parse(raw string) (Label, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "happy":
		return Happy, true
	case "sad":
		return Sad, true
	case "normal":
		return Normal, true
	default:
		return "", false
	}
}

// Normalize maps any decoded JSON value onto the closed label set.
func Normalize(raw any) Label {
	s, ok := raw.(string)
	if !ok {
		return Default
	}
	if label, ok := Parse(s); ok {
		return label
	}
	return Default
}

// Decision 给出情绪识别结果以及得分。
type Decision struct {
	Emotion Label
	Score   int
}

var keywordBuckets = map[Label][]string{
	Happy: {
		"嬉しい", "うれしい", "楽しい", "たのしい", "やった", "ありがとう", "最高", "好き", "できた", "合格",
		"happy", "great", "thanks", "thank you", "love", "awesome", "amazing", "fun", "passed",
	},
	Sad: {
		"悲しい", "かなしい", "つらい", "辛い", "寂しい", "さみしい", "疲れた", "落ち込", "失敗", "ダメ", "泣",
		"sad", "tired", "lonely", "upset", "failed", "cry", "depressed", "hurt",
	},
}

// Analyze 根据用户话语推断回复应使用的情绪。
func Analyze(utterance string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(utterance))
	if normalized == "" {
		return Decision{Emotion: Normal}
	}

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, strings.ToLower(word)) {
				scores[label] += 3
			}
		}
	}

	// 感叹号略微偏向积极情绪
	exclamations := strings.Count(utterance, "!") + strings.Count(utterance, "！")
	if exclamations > 0 && scores[Sad] == 0 {
		scores[Happy] += exclamations
	}

	best := Normal
	bestScore := 0
	for _, label := range []Label{Happy, Sad} {
		if scores[label] > bestScore {
			bestScore = scores[label]
			best = label
		}
	}

	return Decision{Emotion: best, Score: bestScore}
}

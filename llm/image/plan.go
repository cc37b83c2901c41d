package image

import "strings"

// PlanModels 生成去重后的候选模型序列：
// 主模型（请求覆盖优先，否则为配置默认模型）在前，其后是兜底模型。
// 空值被丢弃，保留首次出现顺序。
func PlanModels(override, defaultModel string, fallbacks []string) []string {
	primary := strings.TrimSpace(override)
	if primary == "" {
		primary = strings.TrimSpace(defaultModel)
	}

	candidates := make([]string, 0, len(fallbacks)+1)
	candidates = append(candidates, primary)
	candidates = append(candidates, fallbacks...)

	var set orderedSet
	for _, m := range candidates {
		if m = strings.TrimSpace(m); m != "" {
			set.add(m)
		}
	}
	return set.list(0)
}

// PlanAttempts 按模型优先展开 model × variant 交叉积。
func PlanAttempts(models []string) []Attempt {
	attempts := make([]Attempt, 0, len(models)*len(Variants))
	for _, m := range models {
		for _, v := range Variants {
			attempts = append(attempts, Attempt{Model: m, Variant: v})
		}
	}
	return attempts
}

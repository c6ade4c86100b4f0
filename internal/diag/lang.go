package diag

import (
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Language selects the catalog used to localize diagnostic field labels and
// well-known titles. The reason/suggestion strings themselves are produced
// by the emitting builder/verifier and are not translated.
type Language int

const (
	LangZH Language = iota // default, matches the reference implementation's 中文 diagnostics
	LangEN
)

const (
	msgPosition   = "position-label"
	msgReason     = "reason-label"
	msgAnalysis   = "analysis-label"
	msgSuggestion = "suggestion-label"
)

var catalogBuilder = catalog.NewBuilder()

func init() {
	must := func(tag language.Tag, key, msg string) {
		if err := catalogBuilder.SetString(tag, key, msg); err != nil {
			panic(err)
		}
	}
	must(language.Chinese, msgPosition, "位置")
	must(language.Chinese, msgReason, "原因")
	must(language.Chinese, msgAnalysis, "分析")
	must(language.Chinese, msgSuggestion, "建议")

	must(language.English, msgPosition, "at")
	must(language.English, msgReason, "reason")
	must(language.English, msgAnalysis, "detail")
	must(language.English, msgSuggestion, "suggestion")

	RegisterTitle(LangZH, "state-mutex-violation", "状态互斥违反")
	RegisterTitle(LangEN, "state-mutex-violation", "state mutual-exclusion violated")
	RegisterTitle(LangZH, "wait-without-escape", "等待缺少退出路径")
	RegisterTitle(LangEN, "wait-without-escape", "wait without timeout or escape")
	RegisterTitle(LangZH, "unreachable-completion", "声明的 unreachable 完成可达")
	RegisterTitle(LangEN, "unreachable-completion", "declared-unreachable completion is reachable")
	RegisterTitle(LangZH, "dangling-terminal", "悬空终止状态")
	RegisterTitle(LangEN, "dangling-terminal", "dangling terminal state")
	RegisterTitle(LangZH, "scc-without-escape", "循环缺少退出边")
	RegisterTitle(LangEN, "scc-without-escape", "cycle without an escape edge")
	RegisterTitle(LangZH, "timing-exceeded", "超出最坏情况时限")
	RegisterTitle(LangEN, "timing-exceeded", "worst-case duration exceeds limit")
	RegisterTitle(LangZH, "timing-interval-too-short", "最小间隔不足")
	RegisterTitle(LangEN, "timing-interval-too-short", "minimum realizable interval too short")
	RegisterTitle(LangZH, "causality-chain-broken", "因果链路断开")
	RegisterTitle(LangEN, "causality-chain-broken", "causality chain broken")
	RegisterTitle(LangZH, "causality-pair-broken", "动作与等待之间无法追溯因果")
	RegisterTitle(LangEN, "causality-pair-broken", "action/wait pair has no traceable causality")
}

// RegisterTitle adds a localized diagnostic title under the given key. Title
// keys are the small closed set used by the four verifiers; builders may
// also register ad-hoc keys such as "undefined-reference".
func RegisterTitle(lang Language, key, msg string) {
	tag := language.Chinese
	if lang == LangEN {
		tag = language.English
	}
	if err := catalogBuilder.SetString(tag, key, msg); err != nil {
		panic(err)
	}
}

func tagFor(lang Language) language.Tag {
	if lang == LangEN {
		return language.English
	}
	return language.Chinese
}

func localize(lang Language, key string) string {
	p := message.NewPrinter(tagFor(lang), message.Catalog(catalogBuilder))
	return p.Sprintf(key)
}

// Title resolves a registered title key to its localized string. Builders
// call this when constructing a Diagnostic so that Diagnostic.Title already
// carries display text; Render still re-localizes field labels at print
// time so a single Diagnostic can be rendered in either language.
func Title(lang Language, key string) string {
	return localize(lang, key)
}

// LanguageFromEnv resolves the diagnostic language from PLCC_DIAG_LANG
// ("en" or "zh"), defaulting to Chinese to match the reference renderer.
func LanguageFromEnv() Language {
	switch os.Getenv("PLCC_DIAG_LANG") {
	case "en", "EN", "en-US":
		return LangEN
	default:
		return LangZH
	}
}

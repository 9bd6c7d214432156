package retrieval

import (
	"path/filepath"
	"strings"

	"github.com/sanonone/kektorflow/pkg/core/types"
)

var extensionLanguages = map[string]types.Language{
	"cpp":   types.LanguageCPP,
	"go":    types.LanguageGo,
	"java":  types.LanguageJava,
	"kt":    types.LanguageKotlin,
	"js":    types.LanguageJavaScript,
	"ts":    types.LanguageTypeScript,
	"php":   types.LanguagePHP,
	"proto": types.LanguageProto,
	"py":    types.LanguagePython,
	"rst":   types.LanguageRST,
	"rb":    types.LanguageRuby,
	"rs":    types.LanguageRust,
	"scala": types.LanguageScala,
	"swift": types.LanguageSwift,
	"md":    types.LanguageMarkdown,
	"tex":   types.LanguageLatex,
	"html":  types.LanguageHTML,
	"sol":   types.LanguageSolidity,
	"cs":    types.LanguageCSharp,
	"cob":   types.LanguageCOBOL,
	"c":     types.LanguageC,
	"lua":   types.LanguageLua,
	"pl":    types.LanguagePerl,
	"hs":    types.LanguageHaskell,
	"ex":    types.LanguageElixir,
	"exs":   types.LanguageElixir,
	"ps1":   types.LanguagePowerShell,
}

// LanguageForFile maps a file name's lowercased extension to a language,
// defaulting to text.
func LanguageForFile(name string) types.Language {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}
	return types.LanguageText
}

// LanguageOf derives the language tag handed to the embedding capability.
func LanguageOf(ref types.Reference) types.Language {
	switch ref.Kind() {
	case types.KindFile, types.KindFileContent:
		if f, ok := ref.(interface{ FileName() string }); ok {
			return LanguageForFile(f.FileName())
		}
	case types.KindCodeExecution:
		if c, ok := ref.(interface{ CodeLanguage() types.Language }); ok && c.CodeLanguage() != "" {
			return c.CodeLanguage()
		}
	}
	return types.LanguageText
}

package types

// Language tags the content handed to the embedding capability so backends
// can pick a splitting strategy.
type Language string

const (
	LanguageCPP        Language = "cpp"
	LanguageGo         Language = "go"
	LanguageJava       Language = "java"
	LanguageKotlin     Language = "kotlin"
	LanguageJavaScript Language = "js"
	LanguageTypeScript Language = "ts"
	LanguagePHP        Language = "php"
	LanguageProto      Language = "proto"
	LanguagePython     Language = "python"
	LanguageRST        Language = "rst"
	LanguageRuby       Language = "ruby"
	LanguageRust       Language = "rust"
	LanguageScala      Language = "scala"
	LanguageSwift      Language = "swift"
	LanguageMarkdown   Language = "markdown"
	LanguageLatex      Language = "latex"
	LanguageHTML       Language = "html"
	LanguageSolidity   Language = "sol"
	LanguageCSharp     Language = "csharp"
	LanguageCOBOL      Language = "cobol"
	LanguageC          Language = "c"
	LanguageLua        Language = "lua"
	LanguagePerl       Language = "perl"
	LanguageHaskell    Language = "haskell"
	LanguageElixir     Language = "elixir"
	LanguagePowerShell Language = "powershell"
	LanguageText       Language = "text"
)

// IsCode reports whether the language is a programming language rather than
// prose or markup.
func (l Language) IsCode() bool {
	switch l {
	case LanguageText, LanguageMarkdown, LanguageRST, LanguageLatex, LanguageHTML, "":
		return false
	}
	return true
}

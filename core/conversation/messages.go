package conversation

// Replies sent to senders. The wording is part of the user-facing contract.
var (
	PromptLanguage   = "Please select a language: " + languageNames()
	PromptText       = "Enter the text you want to translate:"
	InvalidLanguage  = "Invalid language. Please choose again."
	TranslationError = "Error translating text. Please try again."
)

const translatedPrefix = "Translated text: "

// TranslatedReply formats a successful translation.
func TranslatedReply(text string) string {
	return translatedPrefix + text
}

// Package bookstore implements the persistent Book/Chapter store (§3, §4.3):
// book metadata, per-chapter source/translated content, and the optional
// per-book prompt template override.
package bookstore

import "time"

// EntitiesPlaceholder is the token a custom prompt template must contain
// (§3, §4.3); validated on write by [ValidatePromptTemplate].
const EntitiesPlaceholder = "{{ENTITIES_JSON}}"

// Book is a translation project: a title, its source/target languages, and
// an optional prompt template override.
type Book struct {
	ID             string
	Title          string
	Author         string
	SourceLanguage string
	TargetLanguage string
	Description    string
	CreatedAt      time.Time
	ModifiedAt     time.Time
	PromptTemplate string
}

// Chapter is one unit of translated content, unique on (BookID,
// ChapterNumber). Content fields hold sequences of lines so that empty
// lines survive round-trip through storage (§3).
type Chapter struct {
	ID                  string
	BookID              string
	ChapterNumber       int
	Title               string
	UntranslatedContent []string
	TranslatedContent   []string
	Summary             string
	TranslationDate     time.Time
	TranslationModel    string
}

// ChapterSummary is the lightweight listing projection returned by
// [Store.ListChapters] — full content is deliberately omitted.
type ChapterSummary struct {
	ID              string
	ChapterNumber   int
	Title           string
	TranslationDate time.Time
	TranslationModel string
}

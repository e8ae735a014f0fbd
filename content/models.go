package content

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-reader-client/internal/errors"
)

// NovelType distinguishes prose novels from image-based manhwa.
type NovelType string

const (
	TypeNovel  NovelType = "novel"
	TypeManhwa NovelType = "manhwa"
)

func (t NovelType) Valid() bool {
	return t == TypeNovel || t == TypeManhwa
}

// SortOrder orders chapter listings by chapter number.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ChapterFormat selects how chapter text is rendered by the backend.
type ChapterFormat string

const (
	FormatRaw ChapterFormat = "raw"
)

const (
	defaultLanguage = "es"
	defaultPage     = 1
)

var (
	ErrMissingTitle     = fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	ErrMissingSource    = fmt.Errorf("%w: source url is required", apperrors.ErrValidation)
	ErrInvalidType      = fmt.Errorf("%w: type must be novel or manhwa", apperrors.ErrValidation)
	ErrInvalidProgress  = fmt.Errorf("%w: progress must be between 0 and 100", apperrors.ErrValidation)
	ErrInvalidChapter   = fmt.Errorf("%w: chapter number must be positive", apperrors.ErrValidation)
	ErrMissingNovelID   = fmt.Errorf("%w: novel id is required", apperrors.ErrValidation)
	ErrInvalidSortOrder = fmt.Errorf("%w: sort order must be asc or desc", apperrors.ErrValidation)
)

// Novel is an entry in the user's library.
type Novel struct {
	ID                 string    `json:"_id"`
	Title              string    `json:"title"`
	Author             string    `json:"author,omitempty"`
	CoverImageURL      string    `json:"cover_image_url,omitempty"`
	Description        string    `json:"description,omitempty"`
	Status             string    `json:"status,omitempty"`
	Type               NovelType `json:"type"`
	SourceURL          string    `json:"source_url,omitempty"`
	SourceName         string    `json:"source_name,omitempty"`
	SourceLanguage     string    `json:"source_language,omitempty"`
	Tags               []string  `json:"tags,omitempty"`
	ReadChapters       int       `json:"read_chapters"`
	TotalChapters      int       `json:"total_chapters"`
	DownloadedChapters int       `json:"downloaded_chapters"`
	LastUpdated        string    `json:"last_updated,omitempty"`
}

// NewNovel is the body of a create request.
type NewNovel struct {
	Title          string    `json:"title"`
	SourceURL      string    `json:"source_url"`
	SourceName     string    `json:"source_name"`
	SourceLanguage string    `json:"source_language"`
	Type           NovelType `json:"type"`
}

func (n NewNovel) Validate() error {
	if n.Title == "" {
		return ErrMissingTitle
	}
	if n.SourceURL == "" {
		return ErrMissingSource
	}
	if !n.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

// NovelUpdate is a partial update; nil fields are left unchanged.
type NovelUpdate struct {
	Title          *string    `json:"title,omitempty"`
	Author         *string    `json:"author,omitempty"`
	CoverImageURL  *string    `json:"cover_image_url,omitempty"`
	Status         *string    `json:"status,omitempty"`
	Type           *NovelType `json:"type,omitempty"`
	SourceLanguage *string    `json:"source_language,omitempty"`
	SourceName     *string    `json:"source_name,omitempty"`
	SourceURL      *string    `json:"source_url,omitempty"`
	Description    *string    `json:"description,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
}

func (u NovelUpdate) Validate() error {
	if u.Type != nil && !u.Type.Valid() {
		return ErrInvalidType
	}
	if u.Title != nil && *u.Title == "" {
		return ErrMissingTitle
	}
	return nil
}

// Chapter is a chapter listing entry.
type Chapter struct {
	ID            string `json:"_id,omitempty"`
	NovelID       string `json:"novel_id"`
	ChapterNumber int    `json:"chapter_number"`
	Title         string `json:"title"`
	URL           string `json:"url,omitempty"`
	Downloaded    bool   `json:"downloaded,omitempty"`
}

// ChapterPage is one page of a chapter listing.
type ChapterPage struct {
	Chapters   []Chapter `json:"chapters"`
	TotalPages int       `json:"total_pages"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
}

// ChapterOptions control how a chapter is rendered. Zero values use the defaults.
type ChapterOptions struct {
	Format   ChapterFormat
	Language string
}

// Image is a page of a manhwa chapter. Dimensions are unknown when nil.
type Image struct {
	URL    string `json:"url"`
	Alt    string `json:"alt"`
	Width  *int   `json:"width"`
	Height *int   `json:"height"`
}

// ChapterContent is the readable body of a chapter: Content for novels, Images for manhwa.
type ChapterContent struct {
	Title         string    `json:"title"`
	Content       string    `json:"content,omitempty"`
	ChapterNumber int       `json:"chapter_number"`
	NovelID       string    `json:"novel_id"`
	Type          NovelType `json:"type,omitempty"`
	Images        []Image   `json:"images,omitempty"`
}

// ReadingProgress is how far the user got through a chapter, in percent.
type ReadingProgress struct {
	ID          string  `json:"_id"`
	UserID      string  `json:"user_id"`
	ChapterID   string  `json:"chapter_id"`
	Progress    float64 `json:"progress"`
	LastUpdated string  `json:"last_updated"`
}

// Source is a site the backend can scrape chapters from.
type Source struct {
	Name     string `json:"name"`
	BaseURL  string `json:"base_url,omitempty"`
	Language string `json:"language,omitempty"`
}

// FetchResult reports the outcome of asking the backend to fetch new chapters.
type FetchResult struct {
	Message       string `json:"message,omitempty"`
	ChaptersAdded int    `json:"chapters_added"`
}

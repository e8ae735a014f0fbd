package fakeapi

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-reader-client/content"
	"github.com/pkg/errors"
)

const chapterPageSize = 20

var errNotFound = errors.New("not found")

// library is the fake backend's content: novels, their chapters and per-user progress.
type library struct {
	lock     sync.RWMutex
	novels   map[string]*content.Novel
	chapters map[string][]content.ChapterContent // novel id to chapters ordered by number
	progress map[string]content.ReadingProgress  // user|novel|chapter to progress
	sources  []content.Source
	nowFunc  func() time.Time
}

func newLibrary(nowFunc func() time.Time) *library {
	return &library{
		novels:   make(map[string]*content.Novel),
		chapters: make(map[string][]content.ChapterContent),
		progress: make(map[string]content.ReadingProgress),
		sources: []content.Source{
			{Name: "NovelBin", BaseURL: "https://novelbin.example", Language: "en"},
			{Name: "SkyDemonOrder", BaseURL: "https://skydemonorder.example", Language: "en"},
			{Name: "TuManga", BaseURL: "https://tumanga.example", Language: "es"},
		},
		nowFunc: nowFunc,
	}
}

func (l *library) list() []content.Novel {
	l.lock.RLock()
	defer l.lock.RUnlock()

	novels := make([]content.Novel, 0, len(l.novels))
	for _, n := range l.novels {
		novels = append(novels, *n)
	}
	sort.Slice(novels, func(i, j int) bool {
		return novels[i].Title < novels[j].Title
	})
	return novels
}

func (l *library) get(id string) (content.Novel, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	n, ok := l.novels[id]
	if !ok {
		return content.Novel{}, errNotFound
	}
	return *n, nil
}

func (l *library) create(n content.NewNovel) content.Novel {
	l.lock.Lock()
	defer l.lock.Unlock()

	novel := &content.Novel{
		ID:             uuid.New().String(),
		Title:          n.Title,
		Type:           n.Type,
		SourceURL:      n.SourceURL,
		SourceName:     n.SourceName,
		SourceLanguage: n.SourceLanguage,
		LastUpdated:    l.nowFunc().UTC().Format(time.RFC3339),
	}
	l.novels[novel.ID] = novel
	return *novel
}

func (l *library) update(id string, u content.NovelUpdate) (content.Novel, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	n, ok := l.novels[id]
	if !ok {
		return content.Novel{}, errNotFound
	}
	setIf(&n.Title, u.Title)
	setIf(&n.Author, u.Author)
	setIf(&n.CoverImageURL, u.CoverImageURL)
	setIf(&n.Status, u.Status)
	setIf(&n.SourceLanguage, u.SourceLanguage)
	setIf(&n.SourceName, u.SourceName)
	setIf(&n.SourceURL, u.SourceURL)
	setIf(&n.Description, u.Description)
	if u.Type != nil {
		n.Type = *u.Type
	}
	if u.Tags != nil {
		n.Tags = u.Tags
	}
	n.LastUpdated = l.nowFunc().UTC().Format(time.RFC3339)
	return *n, nil
}

func (l *library) delete(id string) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if _, ok := l.novels[id]; !ok {
		return errNotFound
	}
	delete(l.novels, id)
	delete(l.chapters, id)
	return nil
}

// addChapters appends count generated chapters to a novel.
func (l *library) addChapters(novelID string, count int) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	n, ok := l.novels[novelID]
	if !ok {
		return 0, errNotFound
	}
	existing := l.chapters[novelID]
	for i := 1; i <= count; i++ {
		number := len(existing) + 1
		chapter := content.ChapterContent{
			Title:         fmt.Sprintf("Chapter %d", number),
			ChapterNumber: number,
			NovelID:       novelID,
			Type:          n.Type,
		}
		if n.Type == content.TypeManhwa {
			chapter.Images = []content.Image{{
				URL: fmt.Sprintf("https://cdn.example/%s/%d/1.jpg", novelID, number),
				Alt: fmt.Sprintf("Page 1 of chapter %d", number),
			}}
		} else {
			chapter.Content = fmt.Sprintf("%s, chapter %d.", n.Title, number)
		}
		existing = append(existing, chapter)
	}
	l.chapters[novelID] = existing
	n.TotalChapters = len(existing)
	n.DownloadedChapters = len(existing)
	n.LastUpdated = l.nowFunc().UTC().Format(time.RFC3339)
	return count, nil
}

func (l *library) chapterPage(novelID string, page int, order content.SortOrder) (content.ChapterPage, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	if _, ok := l.novels[novelID]; !ok {
		return content.ChapterPage{}, errNotFound
	}
	all := l.chapters[novelID]
	listed := make([]content.Chapter, 0, len(all))
	for _, c := range all {
		listed = append(listed, content.Chapter{
			ID:            chapterID(novelID, c.ChapterNumber),
			NovelID:       novelID,
			ChapterNumber: c.ChapterNumber,
			Title:         c.Title,
			Downloaded:    true,
		})
	}
	if order == content.SortDesc {
		sort.Slice(listed, func(i, j int) bool { return listed[i].ChapterNumber > listed[j].ChapterNumber })
	}

	totalPages := (len(listed) + chapterPageSize - 1) / chapterPageSize
	start := (page - 1) * chapterPageSize
	if start > len(listed) {
		start = len(listed)
	}
	end := start + chapterPageSize
	if end > len(listed) {
		end = len(listed)
	}
	return content.ChapterPage{
		Chapters:   listed[start:end],
		TotalPages: totalPages,
		Page:       page,
		PageSize:   chapterPageSize,
	}, nil
}

func (l *library) chapter(novelID string, number int) (content.ChapterContent, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	chapters := l.chapters[novelID]
	if number < 1 || number > len(chapters) {
		return content.ChapterContent{}, errNotFound
	}
	return chapters[number-1], nil
}

func (l *library) getProgress(userID, novelID string, number int) (content.ReadingProgress, error) {
	if _, err := l.chapter(novelID, number); err != nil {
		return content.ReadingProgress{}, err
	}

	l.lock.RLock()
	defer l.lock.RUnlock()

	p, ok := l.progress[progressKey(userID, novelID, number)]
	if !ok {
		return content.ReadingProgress{
			UserID:    userID,
			ChapterID: chapterID(novelID, number),
		}, nil
	}
	return p, nil
}

func (l *library) setProgress(userID, novelID string, number int, progress float64) (content.ReadingProgress, error) {
	if _, err := l.chapter(novelID, number); err != nil {
		return content.ReadingProgress{}, err
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	key := progressKey(userID, novelID, number)
	p, ok := l.progress[key]
	if !ok {
		p = content.ReadingProgress{
			ID:        uuid.New().String(),
			UserID:    userID,
			ChapterID: chapterID(novelID, number),
		}
	}
	p.Progress = progress
	p.LastUpdated = l.nowFunc().UTC().Format(time.RFC3339)
	l.progress[key] = p
	return p, nil
}

func (l *library) listSources() []content.Source {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return append([]content.Source(nil), l.sources...)
}

func chapterID(novelID string, number int) string {
	return novelID + ":" + strconv.Itoa(number)
}

func progressKey(userID, novelID string, number int) string {
	return userID + "|" + chapterID(novelID, number)
}

func setIf(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

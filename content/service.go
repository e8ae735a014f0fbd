package content

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-reader-client/apiclient"
	"github.com/pkg/errors"
)

// Service reads and edits the user's library. Every call goes through the client's
// authenticated transport, so an expired access token is refreshed transparently.
type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) (*Service, error) {
	if client == nil {
		return nil, errors.New("[content.NewService] client is required")
	}
	return &Service{client: client}, nil
}

func (s *Service) ListNovels(ctx context.Context) ([]Novel, error) {
	var novels []Novel
	if err := s.client.Get(ctx, apiclient.RouteNovels, nil, &novels); err != nil {
		return nil, err
	}
	return novels, nil
}

func (s *Service) GetNovel(ctx context.Context, novelID string) (*Novel, error) {
	if novelID == "" {
		return nil, ErrMissingNovelID
	}
	var novel Novel
	if err := s.client.Get(ctx, novelRoute(novelID), nil, &novel); err != nil {
		return nil, err
	}
	return &novel, nil
}

func (s *Service) CreateNovel(ctx context.Context, n NewNovel) (*Novel, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	var novel Novel
	if err := s.client.Post(ctx, apiclient.RouteNovels, n, &novel); err != nil {
		return nil, err
	}
	return &novel, nil
}

func (s *Service) UpdateNovel(ctx context.Context, novelID string, update NovelUpdate) (*Novel, error) {
	if novelID == "" {
		return nil, ErrMissingNovelID
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}
	var novel Novel
	if err := s.client.Patch(ctx, novelRoute(novelID), update, &novel); err != nil {
		return nil, err
	}
	return &novel, nil
}

func (s *Service) DeleteNovel(ctx context.Context, novelID string) error {
	if novelID == "" {
		return ErrMissingNovelID
	}
	return s.client.Delete(ctx, novelRoute(novelID))
}

// ListChapters returns one page of chapters. page < 1 means the first page and an empty
// order means newest first.
func (s *Service) ListChapters(ctx context.Context, novelID string, page int, order SortOrder) (*ChapterPage, error) {
	if novelID == "" {
		return nil, ErrMissingNovelID
	}
	if page < 1 {
		page = defaultPage
	}
	if order == "" {
		order = SortDesc
	}
	if order != SortAsc && order != SortDesc {
		return nil, ErrInvalidSortOrder
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("sort_order", string(order))

	var result ChapterPage
	if err := s.client.Get(ctx, apiclient.Route(apiclient.RouteChapters, "novelId", novelID), query, &result); err != nil {
		return nil, err
	}
	if result.Chapters == nil {
		result.Chapters = []Chapter{}
	}
	return &result, nil
}

func (s *Service) GetChapter(ctx context.Context, novelID string, number int, opts ChapterOptions) (*ChapterContent, error) {
	if err := checkChapter(novelID, number); err != nil {
		return nil, err
	}
	if opts.Format == "" {
		opts.Format = FormatRaw
	}
	if opts.Language == "" {
		opts.Language = defaultLanguage
	}

	query := url.Values{}
	query.Set("format", string(opts.Format))
	query.Set("language", opts.Language)

	var chapter ChapterContent
	if err := s.client.Get(ctx, chapterRoute(apiclient.RouteChapter, novelID, number), query, &chapter); err != nil {
		return nil, err
	}
	return &chapter, nil
}

func (s *Service) GetReadingProgress(ctx context.Context, novelID string, number int) (*ReadingProgress, error) {
	if err := checkChapter(novelID, number); err != nil {
		return nil, err
	}
	var progress ReadingProgress
	if err := s.client.Get(ctx, chapterRoute(apiclient.RouteChapterProgress, novelID, number), nil, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// UpdateReadingProgress records progress (0-100). The backend takes it as a query parameter
// on an empty JSON body.
func (s *Service) UpdateReadingProgress(ctx context.Context, novelID string, number int, progress float64) (*ReadingProgress, error) {
	if err := checkChapter(novelID, number); err != nil {
		return nil, err
	}
	if math.IsNaN(progress) || progress < 0 || progress > 100 {
		return nil, ErrInvalidProgress
	}

	query := url.Values{}
	query.Set("progress", strconv.FormatFloat(progress, 'f', -1, 64))

	var result ReadingProgress
	err := s.client.Do(ctx, http.MethodPost, chapterRoute(apiclient.RouteChapterProgress, novelID, number), query, struct{}{}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchChapters asks the backend to scrape new chapters for a novel.
func (s *Service) FetchChapters(ctx context.Context, novelID string) (*FetchResult, error) {
	if novelID == "" {
		return nil, ErrMissingNovelID
	}
	var result FetchResult
	if err := s.client.Post(ctx, apiclient.Route(apiclient.RouteFetchChapters, "novelId", novelID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Service) ListSources(ctx context.Context) ([]Source, error) {
	var sources []Source
	if err := s.client.Get(ctx, apiclient.RouteSources, nil, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

func novelRoute(novelID string) string {
	return apiclient.Route(apiclient.RouteNovel, "novelId", novelID)
}

func chapterRoute(pattern, novelID string, number int) string {
	return apiclient.Route(pattern, "novelId", novelID, "chapterNumber", strconv.Itoa(number))
}

func checkChapter(novelID string, number int) error {
	if novelID == "" {
		return ErrMissingNovelID
	}
	if number < 1 {
		return ErrInvalidChapter
	}
	return nil
}

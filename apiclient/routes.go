package apiclient

// Backend routes, relative to the API base URL.
const (
	RouteLogin    = "/api/v1/auth/token"
	RouteRefresh  = "/api/v1/auth/refresh"
	RouteRegister = "/api/v1/users/register"

	RouteNovels          = "/api/v1/novels"
	RouteNovel           = "/api/v1/novels/{novelId}"
	RouteChapters        = "/api/v1/novels/{novelId}/chapters"
	RouteChapter         = "/api/v1/novels/{novelId}/chapters/{chapterNumber}"
	RouteChapterProgress = "/api/v1/novels/{novelId}/chapters/{chapterNumber}/progress"
	RouteFetchChapters   = "/api/v1/novels/{novelId}/chapters/fetch"
	RouteSources         = "/api/v1/sources"
)

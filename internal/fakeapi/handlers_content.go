package fakeapi

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-reader-client/content"
)

// chaptersPerFetch is how many chapters a fetch request "scrapes".
const chaptersPerFetch = 5

func (s *Server) ListNovelsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.library.list())
	}
}

func (s *Server) GetNovelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		novel, err := s.library.get(r.PathValue("novelId"))
		if err != nil {
			writeDetail(w, http.StatusNotFound, "Novel not found")
			return
		}
		writeJSON(w, http.StatusOK, novel)
	}
}

func (s *Server) CreateNovelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request content.NewNovel
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "Malformed novel body")
			return
		}
		if err := request.Validate(); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, s.library.create(request))
	}
}

func (s *Server) UpdateNovelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update content.NovelUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "Malformed update body")
			return
		}
		if err := update.Validate(); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		novel, err := s.library.update(r.PathValue("novelId"), update)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "Novel not found")
			return
		}
		writeJSON(w, http.StatusOK, novel)
	}
}

func (s *Server) DeleteNovelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.library.delete(r.PathValue("novelId")); err != nil {
			writeDetail(w, http.StatusNotFound, "Novel not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ListChaptersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}
		order := content.SortOrder(r.URL.Query().Get("sort_order"))
		if order != content.SortAsc {
			order = content.SortDesc
		}

		result, err := s.library.chapterPage(r.PathValue("novelId"), page, order)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "Novel not found")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) FetchChaptersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		added, err := s.library.addChapters(r.PathValue("novelId"), chaptersPerFetch)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "Novel not found")
			return
		}
		writeJSON(w, http.StatusOK, content.FetchResult{Message: "Chapters fetched", ChaptersAdded: added})
	}
}

func (s *Server) GetChapterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number, ok := chapterNumber(w, r)
		if !ok {
			return
		}
		chapter, err := s.library.chapter(r.PathValue("novelId"), number)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "Chapter not found")
			return
		}
		writeJSON(w, http.StatusOK, chapter)
	}
}

func (s *Server) GetProgressHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number, ok := chapterNumber(w, r)
		if !ok {
			return
		}
		progress, err := s.library.getProgress(claimsFrom(r).Subject, r.PathValue("novelId"), number)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "Chapter not found")
			return
		}
		writeJSON(w, http.StatusOK, progress)
	}
}

func (s *Server) UpdateProgressHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number, ok := chapterNumber(w, r)
		if !ok {
			return
		}
		value, err := strconv.ParseFloat(r.URL.Query().Get("progress"), 64)
		if err != nil || math.IsNaN(value) || value < 0 || value > 100 {
			writeDetail(w, http.StatusUnprocessableEntity, "progress must be between 0 and 100")
			return
		}
		progress, err := s.library.setProgress(claimsFrom(r).Subject, r.PathValue("novelId"), number, value)
		if err != nil {
			writeDetail(w, http.StatusNotFound, "Chapter not found")
			return
		}
		writeJSON(w, http.StatusOK, progress)
	}
}

func (s *Server) ListSourcesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.library.listSources())
	}
}

func chapterNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	number, err := strconv.Atoi(r.PathValue("chapterNumber"))
	if err != nil || number < 1 {
		writeDetail(w, http.StatusUnprocessableEntity, "chapter number must be a positive integer")
		return 0, false
	}
	return number, true
}

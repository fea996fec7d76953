package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/hookbridge/hookbridge/internal/httputil"
	"github.com/hookbridge/hookbridge/internal/logging"
	"github.com/hookbridge/hookbridge/internal/models"
	"github.com/hookbridge/hookbridge/internal/upstream"
)

// UpstreamAPI is the remote issue API capability the façade forwards to.
// Satisfied by *upstream.Client.
type UpstreamAPI interface {
	CreateIssue(ctx context.Context, owner, repo string, req *models.NewIssueRequest) (*models.Issue, *upstream.Meta, error)
	GetIssue(ctx context.Context, owner, repo string, number int64) (*models.Issue, *upstream.Meta, error)
	ListIssues(ctx context.Context, owner, repo string, opts upstream.ListIssuesOptions) ([]models.Issue, *upstream.Meta, error)
	UpdateIssue(ctx context.Context, owner, repo string, number int64, req *models.UpdateIssueRequest) (*models.Issue, *upstream.Meta, error)
	CreateComment(ctx context.Context, owner, repo string, number int64, req *models.NewCommentRequest) (*models.Comment, *upstream.Meta, error)
}

// IssuesHandler is stateless request translation between the façade API and
// the upstream issue tracker. Pagination and rate-limit metadata pass
// through on response headers.
type IssuesHandler struct {
	client UpstreamAPI
	logger *logging.Logger
}

func NewIssuesHandler(client UpstreamAPI, logger *logging.Logger) *IssuesHandler {
	return &IssuesHandler{client: client, logger: logger}
}

func (h *IssuesHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")

	var req models.NewIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		httputil.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}

	issue, meta, err := h.client.CreateIssue(r.Context(), owner, repo, &req)
	if err != nil {
		h.writeUpstreamError(r, w, owner, repo, err)
		return
	}

	writeMeta(w, meta)
	httputil.WriteJSON(w, http.StatusCreated, issue)
}

func (h *IssuesHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	q := r.URL.Query()

	issues, meta, err := h.client.ListIssues(r.Context(), owner, repo, upstream.ListIssuesOptions{
		State:   q.Get("state"),
		Labels:  q.Get("labels"),
		Page:    httputil.ParseIntParam(q.Get("page"), 0),
		PerPage: httputil.ParseIntParam(q.Get("per_page"), 0),
	})
	if err != nil {
		h.writeUpstreamError(r, w, owner, repo, err)
		return
	}

	writeMeta(w, meta)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"issues": issues,
		"count":  len(issues),
	})
}

func (h *IssuesHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	number, ok := parseIssueNumber(w, r)
	if !ok {
		return
	}

	issue, meta, err := h.client.GetIssue(r.Context(), owner, repo, number)
	if err != nil {
		h.writeUpstreamError(r, w, owner, repo, err)
		return
	}

	writeMeta(w, meta)
	httputil.WriteJSON(w, http.StatusOK, issue)
}

func (h *IssuesHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	number, ok := parseIssueNumber(w, r)
	if !ok {
		return
	}

	var req models.UpdateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	issue, meta, err := h.client.UpdateIssue(r.Context(), owner, repo, number, &req)
	if err != nil {
		h.writeUpstreamError(r, w, owner, repo, err)
		return
	}

	writeMeta(w, meta)
	httputil.WriteJSON(w, http.StatusOK, issue)
}

func (h *IssuesHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	number, ok := parseIssueNumber(w, r)
	if !ok {
		return
	}

	var req models.NewCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Body == "" {
		httputil.WriteError(w, http.StatusBadRequest, "body is required")
		return
	}

	comment, meta, err := h.client.CreateComment(r.Context(), owner, repo, number, &req)
	if err != nil {
		h.writeUpstreamError(r, w, owner, repo, err)
		return
	}

	writeMeta(w, meta)
	httputil.WriteJSON(w, http.StatusCreated, comment)
}

func parseIssueNumber(w http.ResponseWriter, r *http.Request) (int64, bool) {
	number, err := strconv.ParseInt(r.PathValue("number"), 10, 64)
	if err != nil || number < 1 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid issue number")
		return 0, false
	}
	return number, true
}

// writeMeta copies upstream pagination and rate-limit metadata onto the
// façade response so API consumers can page without knowing the upstream.
func writeMeta(w http.ResponseWriter, meta *upstream.Meta) {
	if meta == nil {
		return
	}
	h := w.Header()
	if meta.Page.Next > 0 {
		h.Set("X-Pagination-Next-Page", strconv.Itoa(meta.Page.Next))
	}
	if meta.Page.Prev > 0 {
		h.Set("X-Pagination-Prev-Page", strconv.Itoa(meta.Page.Prev))
	}
	if meta.Page.First > 0 {
		h.Set("X-Pagination-First-Page", strconv.Itoa(meta.Page.First))
	}
	if meta.Page.Last > 0 {
		h.Set("X-Pagination-Last-Page", strconv.Itoa(meta.Page.Last))
	}
	if meta.RateLimit.Limit > 0 {
		h.Set("X-RateLimit-Limit", strconv.Itoa(meta.RateLimit.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(meta.RateLimit.Remaining))
		h.Set("X-RateLimit-Used", strconv.Itoa(meta.RateLimit.Used))
	}
	if !meta.RateLimit.Reset.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(meta.RateLimit.Reset.Unix(), 10))
	}
}

func (h *IssuesHandler) writeUpstreamError(r *http.Request, w http.ResponseWriter, owner, repo string, err error) {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		// Pass the upstream verdict through untouched.
		httputil.WriteError(w, apiErr.StatusCode, apiErr.Message)
		return
	}
	h.logger.ErrorContext(r.Context(), "upstream request failed",
		logging.Repo(owner+"/"+repo),
		logging.Error(err),
	)
	httputil.WriteError(w, http.StatusBadGateway, "upstream unavailable")
}

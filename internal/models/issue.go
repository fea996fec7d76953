package models

import "time"

// Issue mirrors the subset of the upstream issue resource the façade
// forwards. Fields the proxy never touches stay in the raw response body.
type Issue struct {
	Number    int64     `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	State     string    `json:"state"`
	Labels    []Label   `json:"labels,omitempty"`
	User      *Account  `json:"user,omitempty"`
	HTMLURL   string    `json:"html_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Label struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type Account struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

// Comment is an issue comment as returned by the upstream API.
type Comment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	User      *Account  `json:"user,omitempty"`
	HTMLURL   string    `json:"html_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewIssueRequest is the payload accepted by the create-issue endpoint and
// forwarded upstream unchanged.
type NewIssueRequest struct {
	Title     string   `json:"title"`
	Body      string   `json:"body,omitempty"`
	Labels    []string `json:"labels,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
}

// UpdateIssueRequest carries the mutable issue fields; nil means "leave as is".
type UpdateIssueRequest struct {
	Title  *string   `json:"title,omitempty"`
	Body   *string   `json:"body,omitempty"`
	State  *string   `json:"state,omitempty"`
	Labels *[]string `json:"labels,omitempty"`
}

// NewCommentRequest is the payload for the create-comment endpoint.
type NewCommentRequest struct {
	Body string `json:"body"`
}

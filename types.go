package main

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// AssetKind distinguishes inline images from linked attachments.
type AssetKind string

const (
	AssetImage      AssetKind = "image"
	AssetAttachment AssetKind = "attachment"
)

// ResolutionState tracks the lifecycle of an asset reference. A reference
// starts unresolved and ends in exactly one terminal state.
type ResolutionState string

const (
	StateUnresolved ResolutionState = "unresolved"
	StateResolved   ResolutionState = "resolved"
	StateMissing    ResolutionState = "missing"
)

// AssetReference is one local image or attachment reference found in an
// article document. The declared name is the filename as written in the
// markup, URL-decoded once. PathHint carries the MindTouch src.path /
// href.path value when present (e.g. "//WebFiles/EB-PL").
type AssetReference struct {
	Kind        AssetKind       `json:"kind"`
	Name        string          `json:"filename"`
	PathHint    string          `json:"path_hint,omitempty"`
	Placeholder string          `json:"placeholder"`
	State       ResolutionState `json:"state"`
	LocalPath   string          `json:"local_path,omitempty"`
	Diagnostics []string        `json:"diagnostics,omitempty"`

	sel  *goquery.Selection // element carrying the reference
	attr string             // "src" or "href"
}

// ClassificationResult records whether a page is a category/guide landing
// page and why, so reports can show the basis for skipping it.
type ClassificationResult struct {
	IsCategoryPage bool   `json:"is_category_page"`
	Title          string `json:"title,omitempty"`
	Reason         string `json:"reason"`
}

// TransformResult is the outcome of transforming one article folder: the
// assembled body with placeholder tokens, the extracted title (may be
// empty), the classification, and every asset reference in terminal state.
type TransformResult struct {
	Folder         string               `json:"folder"`
	Title          string               `json:"title"`
	Body           string               `json:"body"`
	Classification ClassificationResult `json:"classification"`
	Assets         []*AssetReference    `json:"assets"`
	Oversize       bool                 `json:"oversize"`
}

// Images returns the image references in document order.
func (tr *TransformResult) Images() []*AssetReference {
	return tr.assetsOfKind(AssetImage)
}

// Attachments returns the attachment references in document order.
func (tr *TransformResult) Attachments() []*AssetReference {
	return tr.assetsOfKind(AssetAttachment)
}

func (tr *TransformResult) assetsOfKind(kind AssetKind) []*AssetReference {
	var out []*AssetReference
	for _, a := range tr.Assets {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// ProcessingStatus represents the outcome status of processing an article
type ProcessingStatus string

const (
	StatusSuccess ProcessingStatus = "success"
	StatusSkipped ProcessingStatus = "skipped"
	StatusError   ProcessingStatus = "error"
)

// ProcessingResult tracks the outcome of processing each article folder.
type ProcessingResult struct {
	Folder              string           `json:"folder"`
	Status              ProcessingStatus `json:"status"`
	Title               string           `json:"title,omitempty"`
	ArticleID           string           `json:"article_id,omitempty"`
	SkipReason          string           `json:"skip_reason,omitempty"`
	ImagesUploaded      int              `json:"images_uploaded"`
	AttachmentsUploaded int              `json:"attachments_uploaded"`
	Oversize            bool             `json:"oversize,omitempty"`
	Errors              []string         `json:"errors,omitempty"`
	Diagnostics         []string         `json:"diagnostics,omitempty"`
}

// ConfigurationError is fatal per run: the export root is missing or does
// not look like a MindTouch export.
type ConfigurationError struct {
	Path   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Path, e.Reason)
}

// MalformedDocumentError marks an article whose HTML could not be parsed.
// The article is skipped and the run continues.
type MalformedDocumentError struct {
	Path string
	Err  error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed document %s: %v", e.Path, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d for %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

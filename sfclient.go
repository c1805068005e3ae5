package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// FileUpload describes a file uploaded to Salesforce as a ContentVersion,
// with the URLs usable inside rich text fields.
type FileUpload struct {
	ContentVersionID  string
	ContentDocumentID string
	DownloadURL       string
	RenditionURL      string
	Filename          string
}

// Publisher is the Salesforce surface the processor depends on, kept small
// so tests can substitute a fake.
type Publisher interface {
	UploadFile(filePath, title string) (*FileUpload, error)
	CreateArticle(title, urlName, body string) (string, error)
	LinkFileToArticle(contentDocumentID, articleID string) error
	PublishArticle(articleID string) error
}

// SalesforceClient talks to the Salesforce REST API, reusing the session
// the `sf` CLI already holds (sf org login web). The session is fetched
// lazily on first use and cached.
type SalesforceClient struct {
	cfg        SalesforceSettings
	httpClient *http.Client

	instanceURL string
	accessToken string
}

func NewSalesforceClient(cfg SalesforceSettings) *SalesforceClient {
	return &SalesforceClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// connect resolves the org session via `sf org display --json`.
func (c *SalesforceClient) connect() error {
	if c.accessToken != "" {
		return nil
	}

	log.Info("Authenticating to Salesforce via CLI...")

	args := []string{"org", "display", "--json"}
	if c.cfg.TargetOrg != "" {
		args = append(args, "--target-org", c.cfg.TargetOrg)
	}

	out, err := exec.Command("sf", args...).Output()
	if err != nil {
		var stderr string
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = string(exitErr.Stderr)
		}
		return fmt.Errorf("getting org info from sf CLI (are you logged in? sf org login web): %s: %w", stderr, err)
	}

	var display struct {
		Result struct {
			InstanceURL string `json:"instanceUrl"`
			AccessToken string `json:"accessToken"`
		} `json:"result"`
	}
	if err := json.Unmarshal(out, &display); err != nil {
		return fmt.Errorf("parsing sf org display output: %w", err)
	}
	if display.Result.InstanceURL == "" || display.Result.AccessToken == "" {
		return fmt.Errorf("sf org display returned no session; run sf org login web")
	}

	c.instanceURL = strings.TrimRight(display.Result.InstanceURL, "/")
	c.accessToken = display.Result.AccessToken

	log.Infof("Connected to: %s", c.instanceURL)
	return nil
}

func (c *SalesforceClient) restURL(path string) string {
	return fmt.Sprintf("%s/services/data/v%s/%s", c.instanceURL, c.cfg.APIVersion, path)
}

// doJSON performs an authenticated JSON request. out may be nil when the
// response body is irrelevant.
func (c *SalesforceClient) doJSON(method, requestURL string, payload, out any) error {
	if err := c.connect(); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, requestURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, requestURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, URL: requestURL, Body: strings.TrimSpace(string(respBody))}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// UploadFile uploads a local file as a ContentVersion and returns the URLs
// that render it inside rich text fields.
func (c *SalesforceClient) UploadFile(filePath, title string) (*FileUpload, error) {
	filename := filepath.Base(filePath)
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filePath, err)
	}

	log.Infof("Uploading file: %s", filename)

	var created struct {
		ID string `json:"id"`
	}
	err = c.doJSON(http.MethodPost, c.restURL("sobjects/ContentVersion"), map[string]string{
		"Title":        title,
		"PathOnClient": filename,
		"VersionData":  base64.StdEncoding.EncodeToString(data),
	}, &created)
	if err != nil {
		return nil, fmt.Errorf("creating ContentVersion for %s: %w", filename, err)
	}

	// Query back for the ContentDocumentId the upload produced.
	soql := fmt.Sprintf("SELECT ContentDocumentId FROM ContentVersion WHERE Id = '%s'", created.ID)
	var queried struct {
		Records []struct {
			ContentDocumentID string `json:"ContentDocumentId"`
		} `json:"records"`
	}
	queryURL := c.restURL("query") + "?q=" + url.QueryEscape(soql)
	if err := c.doJSON(http.MethodGet, queryURL, nil, &queried); err != nil {
		return nil, fmt.Errorf("querying ContentDocumentId: %w", err)
	}
	if len(queried.Records) == 0 {
		return nil, fmt.Errorf("no ContentDocument found for ContentVersion %s", created.ID)
	}
	docID := queried.Records[0].ContentDocumentID

	upload := &FileUpload{
		ContentVersionID:  created.ID,
		ContentDocumentID: docID,
		// The shepherd servlet URLs work inside Knowledge rich text fields:
		// renditionDownload renders images inline, document/download serves
		// attachments.
		DownloadURL:  fmt.Sprintf("/sfc/servlet.shepherd/document/download/%s", docID),
		RenditionURL: fmt.Sprintf("/sfc/servlet.shepherd/version/renditionDownload?rendition=ORIGINAL_Png&versionId=%s", created.ID),
		Filename:     filename,
	}

	log.Debugf("  -> ContentVersionId: %s ContentDocumentId: %s", created.ID, docID)
	return upload, nil
}

// CreateArticle creates a Knowledge article draft and returns its record ID.
func (c *SalesforceClient) CreateArticle(title, urlName, body string) (string, error) {
	if urlName == "" {
		urlName = Slugify(title)
	}

	log.Infof("Creating Knowledge Article: %q", title)

	record := map[string]string{
		c.cfg.TitleField:   title,
		c.cfg.URLNameField: urlName,
		c.cfg.BodyField:    body,
		"Language":         c.cfg.Language,
	}

	var created struct {
		ID string `json:"id"`
	}
	err := c.doJSON(http.MethodPost, c.restURL("sobjects/"+c.cfg.ArticleObject), record, &created)
	if err != nil {
		return "", fmt.Errorf("creating %s record: %w", c.cfg.ArticleObject, err)
	}

	log.Debugf("  -> Article ID: %s", created.ID)
	return created.ID, nil
}

// LinkFileToArticle attaches an uploaded ContentDocument to an article via
// ContentDocumentLink.
func (c *SalesforceClient) LinkFileToArticle(contentDocumentID, articleID string) error {
	log.Debugf("Linking ContentDocument %s to article %s", contentDocumentID, articleID)

	return c.doJSON(http.MethodPost, c.restURL("sobjects/ContentDocumentLink"), map[string]string{
		"ContentDocumentId": contentDocumentID,
		"LinkedEntityId":    articleID,
		"ShareType":         "V",
		"Visibility":        "AllUsers",
	}, nil)
}

// PublishArticle moves a draft to Published through the knowledge
// management endpoint. Orgs without the publishing permission reject this;
// callers treat failure as a warning.
func (c *SalesforceClient) PublishArticle(articleID string) error {
	log.Infof("Publishing article: %s", articleID)

	publishURL := c.restURL("knowledgeManagement/articleVersions/masterVersions/" + articleID)
	return c.doJSON(http.MethodPatch, publishURL, map[string]string{
		"publishStatus": "Online",
	}, nil)
}

var (
	slugInvalid  = regexp.MustCompile(`[^\w\s-]`)
	slugSeparate = regexp.MustCompile(`[\s_]+`)
)

// Slugify converts a title to a URL-safe value for the UrlName field
// (max 255 characters).
func Slugify(title string) string {
	slug := slugInvalid.ReplaceAllString(title, "")
	slug = slugSeparate.ReplaceAllString(slug, "-")
	slug = strings.ToLower(strings.Trim(slug, "-"))
	if len(slug) > 255 {
		slug = slug[:255]
	}
	return slug
}

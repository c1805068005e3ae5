package main

import (
	"fmt"
	"os"
	"path/filepath"

	md "github.com/JohannesKaufmann/html-to-markdown"
	log "github.com/sirupsen/logrus"
)

// ArticleProcessor handles the main workflow: transform each article
// folder, upload its assets, substitute placeholders and create the
// Knowledge record. Failures local to one article never abort the run.
type ArticleProcessor struct {
	settings    *Settings
	client      Publisher
	transformer *Transformer
	converter   *md.Converter
	dryRun      bool
	publish     bool
}

// NewArticleProcessor creates a processor sharing the given export tree.
func NewArticleProcessor(settings *Settings, client Publisher, tree *ExportTree) *ArticleProcessor {
	return &ArticleProcessor{
		settings:    settings,
		client:      client,
		transformer: NewTransformer(settings, tree),
		converter:   md.NewConverter("", true, nil),
	}
}

// SetDryRun previews actions without making Salesforce calls.
func (ap *ArticleProcessor) SetDryRun(dryRun bool) {
	ap.dryRun = dryRun
}

// SetPublish publishes articles immediately after creation.
func (ap *ArticleProcessor) SetPublish(publish bool) {
	ap.publish = publish
}

// DiscoverArticles scans the root directory for article subfolders
// containing the designated HTML file, in sorted order.
func DiscoverArticles(rootDir, htmlFilename string) ([]string, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, fmt.Errorf("reading articles root %s: %w", rootDir, err)
	}

	var folders []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		folder := filepath.Join(rootDir, entry.Name())
		if _, err := os.Stat(filepath.Join(folder, htmlFilename)); err == nil {
			folders = append(folders, folder)
		} else {
			log.Warnf("Skipping folder (no %s): %s", htmlFilename, folder)
		}
	}
	return folders, nil
}

// DetectExportRoot walks up from the articles root until it finds the
// directory containing 'relative/', the marker of a MindTouch export root.
// Returns "" when no export root is found.
func DetectExportRoot(articlesRoot string) string {
	current, err := filepath.Abs(articlesRoot)
	if err != nil {
		return ""
	}
	for {
		if info, err := os.Stat(filepath.Join(current, "relative")); err == nil && info.IsDir() {
			return current
		}
		if filepath.Base(current) == "relative" {
			return filepath.Dir(current)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

// ProcessAll processes each article folder and collects the results.
func (ap *ArticleProcessor) ProcessAll(folders []string) []ProcessingResult {
	results := make([]ProcessingResult, 0, len(folders))

	log.Infof("Processing %d article(s)...", len(folders))

	for i, folder := range folders {
		log.Infof("[%d/%d] Processing: %s", i+1, len(folders), filepath.Base(folder))
		result := ap.ProcessArticle(folder)
		results = append(results, result)

		switch result.Status {
		case StatusSuccess:
			log.Infof("✓ %s (ID: %s)", result.Title, result.ArticleID)
		case StatusSkipped:
			log.Infof("- Skipped %s: %s", result.Folder, result.SkipReason)
		default:
			log.Errorf("✗ Failed %s: %v", result.Folder, result.Errors)
		}
	}

	return results
}

// ProcessArticle runs the per-article pipeline: transform, upload images
// and attachments, substitute placeholders, create the Knowledge record,
// link attachments and optionally publish.
func (ap *ArticleProcessor) ProcessArticle(folder string) ProcessingResult {
	result := ProcessingResult{
		Folder: filepath.Base(folder),
		Status: StatusError,
	}

	transformed, err := ap.transformer.TransformFile(folder)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	title := transformed.Title
	if title == "" {
		title = result.Folder
		result.Diagnostics = append(result.Diagnostics, "no title in document; using folder name")
	}
	result.Title = title

	if transformed.Classification.IsCategoryPage && ap.settings.SkipCategoryPages {
		result.Status = StatusSkipped
		result.SkipReason = transformed.Classification.Reason
		return result
	}

	for _, ref := range transformed.Assets {
		result.Diagnostics = append(result.Diagnostics, ref.Diagnostics...)
	}

	replacements := make(map[string]string)

	for _, img := range transformed.Images() {
		if img.State != StateResolved {
			result.Errors = append(result.Errors, fmt.Sprintf("image not found: %s", img.Name))
			replacements[img.Placeholder] = "#"
			continue
		}
		if ap.dryRun {
			log.Infof("  [DRY RUN] Would upload image: %s", img.Name)
			replacements[img.Placeholder] = fmt.Sprintf("[IMAGE: %s]", img.Name)
			continue
		}
		upload, err := ap.client.UploadFile(img.LocalPath, img.Name)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("uploading image %s: %v", img.Name, err))
			replacements[img.Placeholder] = "#"
			continue
		}
		// Rendition URLs render images inline in rich text fields.
		replacements[img.Placeholder] = upload.RenditionURL
		result.ImagesUploaded++
	}

	var attachmentDocs []*FileUpload
	for _, att := range transformed.Attachments() {
		if att.State != StateResolved {
			// Attachments are frequently absent from a given export; a
			// diagnostic, not an error.
			log.Warnf("Attachment not found (skipping): %s", att.Name)
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("attachment not found: %s", att.Name))
			replacements[att.Placeholder] = "#"
			continue
		}
		if ap.dryRun {
			log.Infof("  [DRY RUN] Would upload attachment: %s", att.Name)
			replacements[att.Placeholder] = fmt.Sprintf("[ATTACHMENT: %s]", att.Name)
			continue
		}
		upload, err := ap.client.UploadFile(att.LocalPath, att.Name)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("uploading attachment %s: %v", att.Name, err))
			replacements[att.Placeholder] = "#"
			continue
		}
		replacements[att.Placeholder] = upload.DownloadURL
		attachmentDocs = append(attachmentDocs, upload)
		result.AttachmentsUploaded++
	}

	finalBody := ReplacePlaceholders(transformed.Body, replacements)

	if transformed.Oversize || (ap.settings.BodyLimit > 0 && len(finalBody) > ap.settings.BodyLimit) {
		result.Oversize = true
		log.Warnf("Article body is %d chars, over the %d char limit; consider splitting the article",
			len(finalBody), ap.settings.BodyLimit)
	}

	if ap.dryRun {
		log.Infof("  [DRY RUN] Would create article %q (UrlName: %s, body: %d chars)",
			title, Slugify(title), len(finalBody))
		ap.logBodyPreview(title, finalBody)
		result.ArticleID = "DRY_RUN"
		result.Status = StatusSuccess
		return result
	}

	articleID, err := ap.client.CreateArticle(title, Slugify(title), finalBody)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("creating article: %v", err))
		return result
	}
	result.ArticleID = articleID

	for _, doc := range attachmentDocs {
		if err := ap.client.LinkFileToArticle(doc.ContentDocumentID, articleID); err != nil {
			log.Warnf("Could not link %s: %v", doc.Filename, err)
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("could not link %s: %v", doc.Filename, err))
		}
	}

	if ap.publish {
		if err := ap.client.PublishArticle(articleID); err != nil {
			log.Warnf("Could not auto-publish article %s: %v", articleID, err)
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("publish failed: %v", err))
		}
	}

	result.Status = StatusSuccess
	return result
}

// logBodyPreview renders the final body as markdown for dry-run review of
// what the article will look like.
func (ap *ArticleProcessor) logBodyPreview(title, body string) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	preview, err := ap.converter.ConvertString(body)
	if err != nil {
		log.Debugf("could not render body preview: %v", err)
		return
	}
	log.Debugf("[DRY RUN] Body preview for %q:\n%s", title, preview)
}

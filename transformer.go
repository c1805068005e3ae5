package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// Transformer converts one MindTouch-exported article into a Salesforce
// Knowledge-ready body: DekiScript blocks and export boilerplate stripped,
// mt-* attributes cleaned, and every local image/attachment reference
// replaced by a placeholder token and resolved against the export tree.
type Transformer struct {
	settings *Settings
	resolver *Resolver
}

func NewTransformer(settings *Settings, tree *ExportTree) *Transformer {
	return &Transformer{settings: settings, resolver: NewResolver(tree)}
}

// markupRule declares one export quirk to scrub: elements matching the
// selector (and the optional predicate) are dropped from the document.
type markupRule struct {
	name     string
	selector string
	match    func(*goquery.Selection) bool
}

// boilerplateRules covers the known MindTouch export noise. New quirks are
// added here, not in the traversal logic.
var boilerplateRules = []markupRule{
	{"dekiscript blocks", "pre", hasClassPrefix("script")}, // script, script-css, script-jem
	{"dekiscript comments", "p", hasClassToken("mt-script-comment")},
	{"page tag lists", "p", hasClassToken("template:tag-insert")},
	{"export title heading", "h1", hasClassToken("mt-export-title")},
	{"export separators", "hr", hasClassToken("mt-export-separator")},
	{"legacy stylesheet links", `link[rel="stylesheet"]`, attrContains("href", "_assets")},
	{"export meta tags", "meta", hasReservedAttr},
}

// categoryMarkers are the topic-type tags that mark a category/guide
// landing page rather than a real article.
var categoryMarkers = map[string]bool{
	"article:topic-category": true,
	"article:topic-guide":    true,
}

// resolutionAttrs carry the export's declared location for an asset. They
// survive normalization so the extractor can read them, and are removed
// during the rewrite pass.
var resolutionAttrs = []string{"src.path", "src.filename", "href.path", "href.filename"}

var placeholderPattern = regexp.MustCompile(`^\{\{(?:image|attachment)-\d+\}\}$`)

// TransformFile reads the article's designated HTML file and transforms it.
func (t *Transformer) TransformFile(folder string) (*TransformResult, error) {
	htmlPath := filepath.Join(folder, t.settings.HTMLFilename)
	raw, err := os.ReadFile(htmlPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", htmlPath, err)
	}
	return t.Transform(folder, string(raw))
}

// Transform runs the full pipeline on raw article HTML: parse, extract
// title, capture the pre-strip category signal, normalize, classify,
// extract and resolve asset references, rewrite them to placeholders, and
// assemble the body.
func (t *Transformer) Transform(folder, rawHTML string) (*TransformResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, &MalformedDocumentError{Path: folder, Err: err}
	}

	// The title heading and the topic-type tags are themselves boilerplate
	// that normalization strips, so both are read before cleanup.
	title := extractTitle(doc)
	marker := findCategoryMarker(doc)

	normalizeDocument(doc)

	classification := classify(doc, marker, title)

	assets := t.extractAssets(doc)
	for _, ref := range assets {
		t.resolver.Resolve(ref, folder)
		if ref.State == StateMissing {
			log.WithFields(log.Fields{"folder": filepath.Base(folder), "file": ref.Name}).
				Warnf("%s not found in export", ref.Kind)
		}
	}
	rewritePlaceholders(assets)
	stripResolutionAttrs(doc)

	body := assembleBody(doc)

	result := &TransformResult{
		Folder:         folder,
		Title:          title,
		Body:           body,
		Classification: classification,
		Assets:         assets,
	}
	if t.settings.BodyLimit > 0 && len(body) > t.settings.BodyLimit {
		result.Oversize = true
	}

	log.Infof("Transformed article: %q | %d images | %d attachments",
		title, len(result.Images()), len(result.Attachments()))

	return result, nil
}

// extractTitle prefers the export's own title heading over the document
// title. An empty result is recoverable; the caller substitutes the folder
// name.
func extractTitle(doc *goquery.Document) string {
	if h1 := doc.Find("h1").FilterFunction(asFilter(hasClassToken("mt-export-title"))).First(); h1.Length() > 0 {
		return strings.TrimSpace(h1.Text())
	}
	if tt := doc.Find("title").First(); tt.Length() > 0 {
		return strings.TrimSpace(tt.Text())
	}
	return ""
}

// findCategoryMarker returns the topic-type tag found in the page tag
// section, or "". Must run on the original markup: the tag section is
// stripped by normalization.
func findCategoryMarker(doc *goquery.Document) string {
	marker := ""
	doc.Find("p").FilterFunction(asFilter(hasClassToken("template:tag-insert"))).
		Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.TrimSpace(a.Text())
		if categoryMarkers[text] {
			marker = text
			return false
		}
		return true
	})
	return marker
}

// classify decides whether the page is a category/guide landing page. An
// explicit marker wins even when filler text remains; otherwise only
// structural emptiness after normalization triggers skipping; a single
// real sentence is article content.
func classify(doc *goquery.Document, marker, title string) ClassificationResult {
	if marker != "" {
		return ClassificationResult{
			IsCategoryPage: true,
			Title:          title,
			Reason:         fmt.Sprintf("tagged %s", marker),
		}
	}
	if strings.TrimSpace(doc.Find("body").Text()) == "" {
		return ClassificationResult{
			IsCategoryPage: true,
			Title:          title,
			Reason:         "no visible content after cleanup",
		}
	}
	return ClassificationResult{Title: title, Reason: "has article content"}
}

// normalizeDocument applies the boilerplate rules and strips mt-*
// attributes and classes. The src.*/href.* resolution attributes are left
// for the extractor.
func normalizeDocument(doc *goquery.Document) {
	for _, rule := range boilerplateRules {
		doc.Find(rule.selector).FilterFunction(asFilter(rule.match)).Remove()
	}
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		cleanAttributes(sel)
	})
}

func cleanAttributes(sel *goquery.Selection) {
	if len(sel.Nodes) == 0 {
		return
	}
	attrs := sel.Nodes[0].Attr
	keys := make([]string, 0, len(attrs))
	for _, a := range attrs {
		keys = append(keys, a.Key)
	}
	for _, key := range keys {
		if key == "class" {
			continue
		}
		if strings.HasPrefix(key, "mt-") {
			sel.RemoveAttr(key)
		}
	}

	// Drop mt-* classes, keep the rest.
	if classes, ok := sel.Attr("class"); ok {
		kept := make([]string, 0)
		for _, c := range strings.Fields(classes) {
			if !strings.HasPrefix(c, "mt-") {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			sel.RemoveAttr("class")
		} else {
			sel.SetAttr("class", strings.Join(kept, " "))
		}
	}
}

// extractAssets collects every locally-resolvable image and attachment
// reference in document order and assigns each a unique placeholder token.
func (t *Transformer) extractAssets(doc *goquery.Document) []*AssetReference {
	var refs []*AssetReference

	imgIdx := 0
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		name, hint, ok := declaredReference(img, "src")
		if !ok {
			if _, hasSrc := img.Attr("src"); !hasSrc {
				log.Warnf("could not determine filename for img element")
			}
			return
		}
		refs = append(refs, &AssetReference{
			Kind:        AssetImage,
			Name:        name,
			PathHint:    hint,
			Placeholder: fmt.Sprintf("{{image-%d}}", imgIdx),
			State:       StateUnresolved,
			sel:         img,
			attr:        "src",
		})
		imgIdx++
	})

	attExts := t.settings.AttachmentExtSet()
	attIdx := 0
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		name, hint, ok := declaredReference(a, "href")
		if !ok {
			return
		}
		if !attExts[strings.ToLower(filepath.Ext(name))] {
			return
		}
		refs = append(refs, &AssetReference{
			Kind:        AssetAttachment,
			Name:        name,
			PathHint:    hint,
			Placeholder: fmt.Sprintf("{{attachment-%d}}", attIdx),
			State:       StateUnresolved,
			sel:         a,
			attr:        "href",
		})
		attIdx++
	})

	return refs
}

// declaredReference reads the declared filename and path hint for an
// element. The export-specific filename attribute (src.filename /
// href.filename) wins over the generic one: the export writer sometimes
// rewrites src/href with a tool path while keeping the true filename
// there. External URLs, mail links, anchors and placeholder tokens are not
// local references.
func declaredReference(sel *goquery.Selection, attr string) (name, hint string, ok bool) {
	if v, exists := sel.Attr(attr + ".filename"); exists && strings.TrimSpace(v) != "" {
		name = strings.TrimSpace(v)
	} else if v, exists := sel.Attr(attr); exists {
		if !isLocalTarget(v) {
			return "", "", false
		}
		name = path.Base(strings.TrimSpace(v))
	} else {
		return "", "", false
	}

	if name == "" || name == "." || name == "/" {
		return "", "", false
	}

	hint, _ = sel.Attr(attr + ".path")
	return decodeEscapesOnce(name), strings.TrimSpace(hint), true
}

func isLocalTarget(target string) bool {
	target = strings.TrimSpace(target)
	if target == "" || strings.HasPrefix(target, "#") {
		return false
	}
	if placeholderPattern.MatchString(target) {
		return false
	}
	for _, prefix := range []string{"http://", "https://", "mailto:", "tel:", "data:", "//"} {
		if strings.HasPrefix(target, prefix) {
			return false
		}
	}
	return true
}

// rewritePlaceholders swaps each matched element's resolved attribute for
// its placeholder token. Tokens are unique per document and are skipped by
// extraction, so re-running the pipeline on assembled output is a no-op.
func rewritePlaceholders(refs []*AssetReference) {
	for _, ref := range refs {
		ref.sel.SetAttr(ref.attr, ref.Placeholder)
	}
}

// stripResolutionAttrs removes the export's location attributes everywhere,
// including elements whose reference was skipped as non-local.
func stripResolutionAttrs(doc *goquery.Document) {
	doc.Find("img, a").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range resolutionAttrs {
			sel.RemoveAttr(attr)
		}
	})
}

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

// assembleBody serializes the body content with excessive blank lines
// collapsed.
func assembleBody(doc *goquery.Document) string {
	var bodyHTML string
	if body := doc.Find("body").First(); body.Length() > 0 {
		bodyHTML, _ = body.Html()
	} else {
		bodyHTML, _ = doc.Html()
	}
	return strings.TrimSpace(excessBlankLines.ReplaceAllString(bodyHTML, "\n\n"))
}

// ReplacePlaceholders substitutes placeholder tokens with their final
// Salesforce URLs. This is the mechanical second pass run after uploads.
func ReplacePlaceholders(body string, replacements map[string]string) string {
	for placeholder, url := range replacements {
		body = strings.ReplaceAll(body, placeholder, url)
	}
	return body
}

// Selection predicates for the rule table.

func asFilter(match func(*goquery.Selection) bool) func(int, *goquery.Selection) bool {
	return func(_ int, sel *goquery.Selection) bool {
		if match == nil {
			return true
		}
		return match(sel)
	}
}

func hasClassToken(token string) func(*goquery.Selection) bool {
	return func(sel *goquery.Selection) bool {
		classes, _ := sel.Attr("class")
		for _, c := range strings.Fields(classes) {
			if c == token {
				return true
			}
		}
		return false
	}
}

func hasClassPrefix(prefix string) func(*goquery.Selection) bool {
	return func(sel *goquery.Selection) bool {
		classes, _ := sel.Attr("class")
		for _, c := range strings.Fields(classes) {
			if strings.HasPrefix(c, prefix) {
				return true
			}
		}
		return false
	}
}

func attrContains(attr, substr string) func(*goquery.Selection) bool {
	return func(sel *goquery.Selection) bool {
		v, _ := sel.Attr(attr)
		return strings.Contains(v, substr)
	}
}

func hasReservedAttr(sel *goquery.Selection) bool {
	if len(sel.Nodes) == 0 {
		return false
	}
	for _, a := range sel.Nodes[0].Attr {
		if strings.HasPrefix(a.Key, "mt-") {
			return true
		}
	}
	return false
}

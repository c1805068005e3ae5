package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func testSettings() *Settings {
	s := &Settings{
		HTMLFilename:         "page.html",
		ImageExtensions:      []string{".png", ".jpg", ".jpeg", ".gif", ".svg"},
		AttachmentExtensions: []string{".oft", ".pdf", ".docx", ".msg", ".txt"},
		SkipCategoryPages:    true,
	}
	s.applyDefaults()
	return s
}

// emptyTree builds a tree over an export with no resolvable assets, for
// tests that only exercise the markup pipeline.
func emptyTree(t *testing.T) *ExportTree {
	t.Helper()
	root := writeExport(t, map[string]string{"relative/index.txt": ""})
	return buildTree(t, root)
}

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parsing test HTML: %v", err)
	}
	return doc
}

const exportPage = `<html><head>
<title>Reset Password | Company Help</title>
<meta charset="utf-8">
<meta mt-export-date="2021-03-01">
<link rel="stylesheet" href="../_assets/skin.css">
</head><body>
<h1 class="mt-export-title">Reset Password</h1>
<hr class="mt-export-separator">
<pre class="script">template('MindTouch/Controls');</pre>
<pre class="script-css">.hidden { display: none }</pre>
<p class="mt-script-comment">script comment</p>
<p class="template:tag-insert"><em>Tags:</em> <a href="#">internal</a></p>
<p class="mt-style note" mt-section="1">Open the <strong>Settings</strong> page.</p>
</body></html>`

func TestNormalizeDocument(t *testing.T) {
	doc := parseDoc(t, exportPage)
	normalizeDocument(doc)

	gone := []struct {
		name     string
		selector string
	}{
		{"dekiscript blocks", "pre"},
		{"export title", "h1"},
		{"export separator", "hr"},
		{"stylesheet link", "link"},
	}
	for _, g := range gone {
		if n := doc.Find(g.selector).Length(); n != 0 {
			t.Errorf("%s: %d element(s) survived normalization", g.name, n)
		}
	}

	// Only the content paragraph remains; the comment and tag paragraphs go.
	if n := doc.Find("p").Length(); n != 1 {
		t.Errorf("p count after normalization = %d, want 1", n)
	}
	if n := doc.Find("meta").Length(); n != 1 {
		t.Errorf("meta count after normalization = %d, want 1 (charset)", n)
	}

	p := doc.Find("p").First()
	if class, _ := p.Attr("class"); class != "note" {
		t.Errorf("class after cleanup = %q, want %q", class, "note")
	}
	if _, ok := p.Attr("mt-section"); ok {
		t.Error("mt-section attribute survived cleanup")
	}
	if !strings.Contains(p.Text(), "Settings") {
		t.Error("content paragraph was damaged by normalization")
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			"export heading wins over document title",
			`<html><head><title>Reset Password | Company Help</title></head><body><h1 class="mt-export-title">Reset Password</h1></body></html>`,
			"Reset Password",
		},
		{
			"document title fallback",
			`<html><head><title>Quick Start</title></head><body><p>hello</p></body></html>`,
			"Quick Start",
		},
		{
			"plain heading is not the export title",
			`<html><body><h1>Just a heading</h1></body></html>`,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTitle(parseDoc(t, tt.html)); got != tt.expected {
				t.Errorf("extractTitle = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTransformClassification(t *testing.T) {
	settings := testSettings()
	tr := NewTransformer(settings, emptyTree(t))

	t.Run("topic-category tag marks a category page", func(t *testing.T) {
		html := `<html><body>
<h1 class="mt-export-title">Getting Started</h1>
<p class="template:tag-insert"><em>Tags:</em> <a href="#">article:topic-category</a></p>
<p>This landing page lists subtopics.</p>
</body></html>`
		res, err := tr.Transform(t.TempDir(), html)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Classification.IsCategoryPage {
			t.Fatal("tagged page not classified as category")
		}
		if res.Classification.Reason != "tagged article:topic-category" {
			t.Errorf("reason = %q", res.Classification.Reason)
		}
	})

	t.Run("topic-guide tag marks a category page", func(t *testing.T) {
		html := `<html><body>
<p class="template:tag-insert"><a href="#">article:topic-guide</a></p>
</body></html>`
		res, err := tr.Transform(t.TempDir(), html)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Classification.IsCategoryPage || res.Classification.Reason != "tagged article:topic-guide" {
			t.Errorf("classification = %+v", res.Classification)
		}
	})

	t.Run("boilerplate-only page is empty", func(t *testing.T) {
		html := `<html><body>
<h1 class="mt-export-title">Stub</h1>
<pre class="script">template('X');</pre>
<hr class="mt-export-separator">
</body></html>`
		res, err := tr.Transform(t.TempDir(), html)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Classification.IsCategoryPage {
			t.Fatal("empty page not classified as category")
		}
		if res.Classification.Reason != "no visible content after cleanup" {
			t.Errorf("reason = %q", res.Classification.Reason)
		}
	})

	t.Run("one real sentence is article content", func(t *testing.T) {
		html := `<html><body>
<h1 class="mt-export-title">Short</h1>
<p>Contact support to enable this feature.</p>
</body></html>`
		res, err := tr.Transform(t.TempDir(), html)
		if err != nil {
			t.Fatal(err)
		}
		if res.Classification.IsCategoryPage {
			t.Errorf("real content misclassified: %+v", res.Classification)
		}
	})
}

func TestTransformExtractsAndResolvesAssets(t *testing.T) {
	root := writeExport(t, map[string]string{
		"relative/Articles/Reset_Password/page.html":                "",
		"relative/Articles/Reset_Password/step1.png":                "png",
		"relative/Articles/Reset_Password/My%2BTemplate%2B(v1).oft": "oft",
		"relative/WebFiles/EB-PL/chart.png":                         "png",
	})
	settings := testSettings()
	tr := NewTransformer(settings, buildTree(t, root))
	articleDir := filepath.Join(root, "relative", "Articles", "Reset_Password")

	html := `<html><head><title>Reset Password</title></head><body>
<p>Start here.</p>
<img src="step1.png">
<img src="/@api/deki/pages/42/files/chart.png" src.path="//WebFiles/EB-PL" src.filename="chart.png">
<img src="gone.png">
<p><a href="/@api/deki/files/123/=My%252BTemplate%252B(v1).oft" href.filename="My%2BTemplate%2B(v1).oft">Download the template</a></p>
<p><a href="https://example.com/doc.pdf">External doc</a></p>
<p><a href="mailto:help@example.com">Mail us</a></p>
<p><a href="#section2">Jump</a></p>
</body></html>`

	res, err := tr.Transform(articleDir, html)
	if err != nil {
		t.Fatal(err)
	}

	if res.Title != "Reset Password" {
		t.Errorf("title = %q", res.Title)
	}

	images := res.Images()
	if len(images) != 3 {
		t.Fatalf("image count = %d, want 3", len(images))
	}
	if images[0].Name != "step1.png" || images[0].State != StateResolved {
		t.Errorf("image 0 = %+v", images[0])
	}
	if images[0].Placeholder != "{{image-0}}" {
		t.Errorf("image 0 placeholder = %q", images[0].Placeholder)
	}
	if images[1].Name != "chart.png" || images[1].State != StateResolved {
		t.Errorf("image 1 = %+v", images[1])
	}
	if want := filepath.Join(root, "relative", "WebFiles", "EB-PL", "chart.png"); images[1].LocalPath != want {
		t.Errorf("image 1 local path = %s, want %s", images[1].LocalPath, want)
	}
	if images[2].Name != "gone.png" || images[2].State != StateMissing {
		t.Errorf("image 2 = %+v", images[2])
	}

	attachments := res.Attachments()
	if len(attachments) != 1 {
		t.Fatalf("attachment count = %d, want 1 (external/mail/anchor links excluded)", len(attachments))
	}
	att := attachments[0]
	if att.Name != "My+Template+(v1).oft" {
		t.Errorf("attachment name = %q", att.Name)
	}
	if att.State != StateResolved {
		t.Errorf("attachment state = %s", att.State)
	}
	if want := filepath.Join(articleDir, "My%2BTemplate%2B(v1).oft"); att.LocalPath != want {
		t.Errorf("attachment local path = %s, want %s", att.LocalPath, want)
	}
	if att.Placeholder != "{{attachment-0}}" {
		t.Errorf("attachment placeholder = %q", att.Placeholder)
	}

	for _, token := range []string{"{{image-0}}", "{{image-1}}", "{{image-2}}", "{{attachment-0}}"} {
		if !strings.Contains(res.Body, token) {
			t.Errorf("body missing placeholder %s", token)
		}
	}
	if strings.Contains(res.Body, "src.path") || strings.Contains(res.Body, "src.filename") ||
		strings.Contains(res.Body, "href.filename") {
		t.Error("resolution attributes survived into the body")
	}
	if !strings.Contains(res.Body, "https://example.com/doc.pdf") {
		t.Error("external link was rewritten")
	}
	if !strings.Contains(res.Body, "mailto:help@example.com") {
		t.Error("mail link was rewritten")
	}
}

func TestTransformHintFolderAbsent(t *testing.T) {
	root := writeExport(t, map[string]string{
		"relative/Articles/Alone/page.html": "",
	})
	settings := testSettings()
	tr := NewTransformer(settings, buildTree(t, root))
	articleDir := filepath.Join(root, "relative", "Articles", "Alone")

	html := `<html><body>
<p>Some text.</p>
<img src="pic.png" src.path="//WebFiles/EB-PL" src.filename="pic.png">
</body></html>`

	res, err := tr.Transform(articleDir, html)
	if err != nil {
		t.Fatal(err)
	}

	images := res.Images()
	if len(images) != 1 || images[0].State != StateMissing {
		t.Fatalf("images = %+v, want one missing reference", images)
	}
	if !strings.Contains(res.Body, "{{image-0}}") {
		t.Error("body missing the placeholder for the unresolved image")
	}
}

func TestTransformIsIdempotent(t *testing.T) {
	root := writeExport(t, map[string]string{
		"relative/Articles/Intro/page.html": "",
		"relative/Articles/Intro/pic.png":   "png",
	})
	settings := testSettings()
	tr := NewTransformer(settings, buildTree(t, root))
	articleDir := filepath.Join(root, "relative", "Articles", "Intro")

	first, err := tr.Transform(articleDir, `<html><body><p>Intro.</p><img src="pic.png"></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Assets) != 1 {
		t.Fatalf("first pass assets = %d, want 1", len(first.Assets))
	}

	second, err := tr.Transform(articleDir, "<html><body>"+first.Body+"</body></html>")
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Assets) != 0 {
		t.Errorf("second pass re-extracted %d asset(s) from placeholder markup", len(second.Assets))
	}
	if !strings.Contains(second.Body, "{{image-0}}") {
		t.Error("placeholder token lost on the second pass")
	}
}

func TestTransformFlagsOversizeBody(t *testing.T) {
	settings := testSettings()
	settings.BodyLimit = 16
	tr := NewTransformer(settings, emptyTree(t))

	res, err := tr.Transform(t.TempDir(), `<html><body><p>This body easily exceeds a sixteen byte limit.</p></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Oversize {
		t.Error("oversize body not flagged")
	}
}

func TestReplacePlaceholders(t *testing.T) {
	body := `<img src="{{image-0}}"><a href="{{attachment-0}}">file</a><img src="{{image-1}}">`
	got := ReplacePlaceholders(body, map[string]string{
		"{{image-0}}":      "/sfc/servlet.shepherd/version/renditionDownload?rendition=ORIGINAL_Png&versionId=068A",
		"{{attachment-0}}": "/sfc/servlet.shepherd/document/download/069B",
		"{{image-1}}":      "#",
	})
	if strings.Contains(got, "{{") {
		t.Errorf("unreplaced placeholder in %q", got)
	}
	if !strings.Contains(got, "renditionDownload") || !strings.Contains(got, "document/download/069B") {
		t.Errorf("substitutions missing from %q", got)
	}
}

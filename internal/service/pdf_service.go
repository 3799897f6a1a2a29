// internal/service/pdf_service.go
package service

import (
    "context"
    "fmt"
    "regexp"
    "strings"

    "github.com/unclebandit/mailblast-backend/internal/pdf"
)

// pdfLayout wraps the body in a main region with fixed-position header and
// footer regions, so header/footer repeat on every physical page of the
// rendered document.
const pdfLayout = `<!DOCTYPE html>
<html>
<head>
    <meta http-equiv="Content-Type" content="text/html; charset=utf-8" />
    <style>
        @page {
            margin: 100px 50px 100px 50px;
        }
        body {
            font-family: Helvetica, 'Times New Roman', 'DejaVu Sans', Arial, sans-serif;
            font-size: 12px;
        }
        header {
            position: fixed;
            top: -80px;
            left: 0;
            right: 0;
            height: 70px;
        }
        footer {
            position: fixed;
            bottom: -80px;
            left: 0;
            right: 0;
            height: 70px;
        }
        main {
            margin-top: 10px;
        }
    </style>
</head>
<body>
    <header>%s</header>
    <footer>%s</footer>

    <main>
        %s
    </main>
</body>
</html>`

// PDFService resolves header/body/footer templates against a row context,
// composes the full HTML document and asks the converter for PDF bytes.
type PDFService struct {
    templates *TemplateService
    converter pdf.Converter
}

func NewPDFService(templates *TemplateService, converter pdf.Converter) *PDFService {
    return &PDFService{templates: templates, converter: converter}
}

// ComposeHTML resolves the three template fragments and assembles the page
// layout. Header and footer may be empty.
func (s *PDFService) ComposeHTML(bodyTemplate string, data map[string]string, headerTemplate, footerTemplate string) string {
    bodyHTML := s.templates.Resolve(bodyTemplate, data)

    headerHTML := ""
    if headerTemplate != "" {
        headerHTML = s.templates.Resolve(headerTemplate, data)
    }
    footerHTML := ""
    if footerTemplate != "" {
        footerHTML = s.templates.Resolve(footerTemplate, data)
    }

    return fmt.Sprintf(pdfLayout, headerHTML, footerHTML, bodyHTML)
}

// Render produces the PDF bytes for one personalized attachment. Converter
// failure is a hard failure for this attachment and is propagated; a corrupt
// file is never produced silently.
func (s *PDFService) Render(ctx context.Context, bodyTemplate string, data map[string]string, headerTemplate, footerTemplate string) ([]byte, error) {
    html := s.ComposeHTML(bodyTemplate, data, headerTemplate, footerTemplate)
    html = centerWrappedImages(html)

    pdfBytes, err := s.converter.Convert(ctx, html, pdf.DefaultOptions())
    if err != nil {
        return nil, fmt.Errorf("pdf conversion failed: %w", err)
    }
    return pdfBytes, nil
}

var (
    wrappedImgRe = regexp.MustCompile(`(?i)<p([^>]*)>\s*(<img[^>]*style="display:\s*block;\s*margin-left:\s*auto;\s*margin-right:\s*auto;"[^>]*>)\s*</p>`)
    pStyleRe     = regexp.MustCompile(`(?i)style\s*=\s*"(.*?)"`)
)

// centerWrappedImages adds an explicit text-align:center to paragraphs that
// wrap an auto-margin centered image. The converter's CSS support drops the
// auto margins, so the centering has to be restated on the paragraph.
func centerWrappedImages(html string) string {
    return replaceAllSubmatchFunc(wrappedImgRe, html, func(m []string) string {
        pAttrs := m[1]
        imgTag := m[2]

        if styleMatch := pStyleRe.FindStringSubmatch(pAttrs); styleMatch != nil {
            style := styleMatch[1]
            if !strings.Contains(strings.ToLower(style), "text-align") {
                newStyle := strings.TrimRight(style, ";") + "; text-align: center;"
                pAttrs = pStyleRe.ReplaceAllLiteralString(pAttrs, `style="`+newStyle+`"`)
            }
        } else {
            pAttrs += ` style="text-align: center;"`
        }

        return "<p" + pAttrs + ">" + imgTag + "</p>"
    })
}

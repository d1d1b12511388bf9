package entry

import (
	"fmt"
	"html"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
)

// descriptionPolicy is configured once and only read afterwards.
var descriptionPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}()

// DescriptionMarkup returns the markup injected into the description region.
// Supplied HTML goes through the UGC policy; plain text becomes escaped
// paragraphs, single newlines become <br>.
func (d *Data) DescriptionMarkup() string {
	if strings.TrimSpace(d.DescriptionHTML) != "" {
		return strings.TrimSpace(descriptionPolicy.Sanitize(d.DescriptionHTML))
	}
	return TextToMarkup(d.DescriptionText)
}

// TextToMarkup converts plain description text to paragraph markup.
func TextToMarkup(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var paras []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		for i, l := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(l))
		}
		paras = append(paras, "<p>"+strings.Join(lines, "<br>")+"</p>")
	}
	return strings.Join(paras, "\n")
}

// PlainDescription returns the text persisted as description.txt. Entries
// authored in HTML get a Markdown rendering of the sanitised markup.
func (d *Data) PlainDescription() (string, error) {
	if strings.TrimSpace(d.DescriptionText) != "" || strings.TrimSpace(d.DescriptionHTML) == "" {
		return d.DescriptionText, nil
	}
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
	md, err := conv.ConvertString(descriptionPolicy.Sanitize(d.DescriptionHTML))
	if err != nil {
		return "", fmt.Errorf("entry: description to text: %w", err)
	}
	return strings.TrimSpace(md) + "\n", nil
}
